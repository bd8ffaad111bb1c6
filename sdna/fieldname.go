package sdna

import "strings"

// FieldName is a decoded entry from the SDNA NAME table: the raw
// textual spelling plus the attributes the field's declarator implies
// (pointer-ness, array dimensions).
type FieldName struct {
	// Raw is the original spelling straight out of the NAME table,
	// e.g. "*mat", "mtex[18]", "name[66]".
	Raw string
	// Name is Raw with leading '*' and trailing "[N]..." stripped.
	Name string
	// IsPointer is true when Raw begins with one or more '*'.
	IsPointer bool
	// Dims holds array dimensions parsed from trailing "[N][M]...";
	// nil when the field is not an array.
	Dims []int
}

func parseFieldName(raw string) FieldName {
	fn := FieldName{Raw: raw}

	s := raw
	for strings.HasPrefix(s, "*") {
		fn.IsPointer = true
		s = s[1:]
	}
	// Some function-pointer declarators look like "(*next)()"; keep only
	// what is inside the first pair of parens so Name stays meaningful,
	// and treat the declarator as a pointer.
	if strings.HasPrefix(s, "(") {
		if end := strings.IndexByte(s, ')'); end > 0 {
			s = s[1:end]
		}
		for strings.HasPrefix(s, "*") {
			fn.IsPointer = true
			s = s[1:]
		}
	}

	name := s
	var dims []int
	for {
		open := strings.IndexByte(name, '[')
		if open < 0 {
			break
		}
		close := strings.IndexByte(name[open:], ']')
		if close < 0 {
			break
		}
		close += open
		n := 0
		for _, c := range name[open+1 : close] {
			if c < '0' || c > '9' {
				n = 0
				break
			}
			n = n*10 + int(c-'0')
		}
		dims = append(dims, n)
		name = name[:open] + name[close+1:]
	}
	fn.Name = name
	fn.Dims = dims
	return fn
}

func (fn FieldName) arrayLen() int {
	if len(fn.Dims) == 0 {
		return 1
	}
	n := 1
	for _, d := range fn.Dims {
		n *= d
	}
	return n
}
