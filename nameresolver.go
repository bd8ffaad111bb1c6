package blend

import "strings"

// NameResolver reads the common ID.name prefix from a named block and
// strips Blender's two-letter type code, per component C8.
type NameResolver struct{}

// Resolve reads block i's ID.name field, trims trailing NULs and
// whitespace, and strips a leading two-ASCII-uppercase-letter type
// prefix if present. Returns ("", false) when the block has no name
// field or the name is empty.
func (NameResolver) Resolve(i int, f *File) (string, bool) {
	view, err := f.FieldView(i)
	if err != nil {
		return "", false
	}
	raw, err := view.ReadFieldString("ID", "name")
	if err != nil {
		return "", false
	}
	name := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if name == "" {
		return "", false
	}
	if len(name) >= 2 && isUpperPrefix(name[:2]) {
		name = name[2:]
	}
	if name == "" {
		return "", false
	}
	return name, true
}

func isUpperPrefix(s string) bool {
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// DisplayName returns "CODE (name)" when block i has a resolved name,
// else just "CODE".
func (r NameResolver) DisplayName(i int, f *File) string {
	b, ok := f.Block(i)
	if !ok {
		return ""
	}
	code := b.Header.Code.String()
	if name, ok := r.Resolve(i, f); ok {
		return code + " (" + name + ")"
	}
	return code
}
