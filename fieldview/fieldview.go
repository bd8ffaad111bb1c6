// Package fieldview provides zero-copy, name-addressed reads of typed
// fields out of a block's payload bytes, given the file's SDNA schema,
// byte order, and pointer width. See the blend package for how a
// payload slice and a *sdna.Sdna are obtained.
package fieldview

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/blendtrace/blend/sdna"
)

// FieldView borrows a block's payload plus the schema/header context
// needed to interpret it. It never copies beyond what a read
// explicitly returns (e.g. ReadFieldString materializes a Go string;
// ReadFieldArray returns a sub-slice of the original payload).
type FieldView struct {
	payload      []byte
	schema       *sdna.Sdna
	order        binary.ByteOrder
	pointerWidth int
}

// New constructs a FieldView over payload using schema, order, and
// pointerWidth (4 or 8) taken from the owning file's header.
func New(payload []byte, schema *sdna.Sdna, order binary.ByteOrder, pointerWidth int) *FieldView {
	return &FieldView{payload: payload, schema: schema, order: order, pointerWidth: pointerWidth}
}

// Reason classifies why a FieldError was returned, so callers outside
// this package (notably blend.AsKind) can translate it into their own
// error taxonomy without string-matching FieldError.Error()'s message.
type Reason string

const (
	// ReasonUnknownStruct means structName has no entry in the schema
	// at all.
	ReasonUnknownStruct Reason = "unknown struct"
	// ReasonNoSuchField means the struct exists but declares no member
	// by that name.
	ReasonNoSuchField Reason = "no such field"
	// ReasonNoSuchArrayField is ReasonNoSuchField's counterpart for the
	// "name[i]" index-literal call pattern: the bracket-suffixed base
	// field itself is missing.
	ReasonNoSuchArrayField Reason = "no such array field"
)

// FieldError reports that a struct or field could not be located. A
// read that would run past the payload returns a plain error instead.
// Expanders must treat a FieldError as "field not present in this
// Blender version" and continue rather than propagate.
type FieldError struct {
	Struct string
	Field  string
	Reason Reason
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("fieldview: invalid field %s.%s: %s", e.Struct, e.Field, e.Reason)
}

func invalidField(structName, fieldName string, reason Reason) error {
	return &FieldError{Struct: structName, Field: fieldName, Reason: reason}
}

// resolveField looks up a field by struct+field name, also accepting
// the "base name plus index literal" call pattern (e.g. "mtex[0]")
// against a bracket-suffixed schema entry (e.g. schema field "mtex[18]").
func (v *FieldView) resolveField(structName, fieldName string) (sdna.Field, int, error) {
	st, ok := v.schema.FindStruct(structName)
	if !ok {
		return sdna.Field{}, 0, invalidField(structName, fieldName, ReasonUnknownStruct)
	}

	if f, ok := st.FindField(fieldName); ok {
		return f, f.Offset, nil
	}

	// "mtex[0]" style: split off the trailing "[i]" index literal and
	// look up the bracket-suffixed base field, then compute the
	// element offset ourselves.
	base, idx, ok := splitIndexLiteral(fieldName)
	if !ok {
		return sdna.Field{}, 0, invalidField(structName, fieldName, ReasonNoSuchField)
	}
	f, ok := st.FindField(base)
	if !ok {
		return sdna.Field{}, 0, invalidField(structName, fieldName, ReasonNoSuchArrayField)
	}
	elemSize := v.elementSize(f)
	offset := f.Offset + idx*elemSize
	return f, offset, nil
}

// splitIndexLiteral parses "name[i]" into ("name", i, true); returns
// false if fieldName doesn't end in a single bracketed integer.
func splitIndexLiteral(fieldName string) (string, int, bool) {
	if !strings.HasSuffix(fieldName, "]") {
		return "", 0, false
	}
	open := strings.LastIndexByte(fieldName, '[')
	if open < 0 {
		return "", 0, false
	}
	idxStr := fieldName[open+1 : len(fieldName)-1]
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return "", 0, false
	}
	return fieldName[:open], idx, true
}

// elementSize returns the per-element byte size used to compute the
// offset of "name[i]"-style index-literal accesses (e.g. "mtex[3]")
// against a bracket-suffixed schema field (e.g. "*mtex[18]"). A
// pointer array's element size is always the file's pointer width,
// regardless of how many slots the schema declares — f.Size there is
// the array's total size, not one slot's. A non-pointer array's element
// size is its total size divided by its element count.
func (v *FieldView) elementSize(f sdna.Field) int {
	if f.IsPointer() {
		return v.pointerWidth
	}
	if f.NameIndex >= 0 && f.NameIndex < len(v.schema.Names) {
		n := 1
		for _, d := range v.schema.Names[f.NameIndex].Dims {
			n *= d
		}
		if n > 0 {
			return f.Size / n
		}
	}
	return f.Size
}

func (v *FieldView) bounds(offset, size int) error {
	if offset < 0 || size < 0 || offset+size > len(v.payload) {
		return fmt.Errorf("fieldview: read of %d bytes at offset %d exceeds payload length %d", size, offset, len(v.payload))
	}
	return nil
}

// ReadFieldU8 reads a single byte field.
func (v *FieldView) ReadFieldU8(structName, fieldName string) (uint8, error) {
	_, off, err := v.resolveField(structName, fieldName)
	if err != nil {
		return 0, err
	}
	if err := v.bounds(off, 1); err != nil {
		return 0, err
	}
	return v.payload[off], nil
}

// ReadFieldU16 reads a u16 scalar field, endianness-adjusted.
func (v *FieldView) ReadFieldU16(structName, fieldName string) (uint16, error) {
	_, off, err := v.resolveField(structName, fieldName)
	if err != nil {
		return 0, err
	}
	if err := v.bounds(off, 2); err != nil {
		return 0, err
	}
	return v.order.Uint16(v.payload[off : off+2]), nil
}

// ReadFieldU32 reads a u32 scalar field, endianness-adjusted.
func (v *FieldView) ReadFieldU32(structName, fieldName string) (uint32, error) {
	_, off, err := v.resolveField(structName, fieldName)
	if err != nil {
		return 0, err
	}
	if err := v.bounds(off, 4); err != nil {
		return 0, err
	}
	return v.order.Uint32(v.payload[off : off+4]), nil
}

// ReadFieldU64 reads a u64 scalar field, endianness-adjusted.
func (v *FieldView) ReadFieldU64(structName, fieldName string) (uint64, error) {
	_, off, err := v.resolveField(structName, fieldName)
	if err != nil {
		return 0, err
	}
	if err := v.bounds(off, 8); err != nil {
		return 0, err
	}
	return v.order.Uint64(v.payload[off : off+8]), nil
}

// ReadFieldI32 reads an i32 scalar field, endianness-adjusted.
func (v *FieldView) ReadFieldI32(structName, fieldName string) (int32, error) {
	u, err := v.ReadFieldU32(structName, fieldName)
	return int32(u), err
}

// ReadFieldI64 reads an i64 scalar field, endianness-adjusted.
func (v *FieldView) ReadFieldI64(structName, fieldName string) (int64, error) {
	u, err := v.ReadFieldU64(structName, fieldName)
	return int64(u), err
}

// ReadFieldF32 reads an f32 scalar field, endianness-adjusted.
func (v *FieldView) ReadFieldF32(structName, fieldName string) (float32, error) {
	u, err := v.ReadFieldU32(structName, fieldName)
	if err != nil {
		return 0, err
	}
	return decodeFloat32(u), nil
}

// ReadFieldF64 reads an f64 scalar field, endianness-adjusted.
func (v *FieldView) ReadFieldF64(structName, fieldName string) (float64, error) {
	u, err := v.ReadFieldU64(structName, fieldName)
	if err != nil {
		return 0, err
	}
	return decodeFloat64(u), nil
}

// ReadFieldPointer reads a pointer-width value at a field's offset and
// widens it to 64 bits; 0 means null. It does not require the field's
// declared type to be a pointer: reading a ListBase-typed field this
// way yields its first member (ListBase's layout leads with `first`),
// which is how callers walk Scene.base, bNodeTree.nodes,
// Collection.gobject, and Collection.children without a dedicated
// nested-field accessor.
func (v *FieldView) ReadFieldPointer(structName, fieldName string) (uint64, error) {
	_, off, err := v.resolveField(structName, fieldName)
	if err != nil {
		return 0, err
	}
	return v.ReadPointer(off)
}

// ReadPointer reads a raw pointer at an arbitrary byte offset, using
// the view's pointer width. Used to walk pointer arrays (e.g. the
// materials array, mat[i]) once the array block itself has been
// resolved.
func (v *FieldView) ReadPointer(offset int) (uint64, error) {
	if err := v.bounds(offset, v.pointerWidth); err != nil {
		return 0, err
	}
	if v.pointerWidth == 4 {
		return uint64(v.order.Uint32(v.payload[offset : offset+4])), nil
	}
	return v.order.Uint64(v.payload[offset : offset+8]), nil
}

// ReadFieldString copies a NUL-terminated C string out of a
// fixed-size char array field.
func (v *FieldView) ReadFieldString(structName, fieldName string) (string, error) {
	f, off, err := v.resolveField(structName, fieldName)
	if err != nil {
		return "", err
	}
	if err := v.bounds(off, f.Size); err != nil {
		return "", err
	}
	raw := v.payload[off : off+f.Size]
	if idx := indexByte(raw, 0); idx >= 0 {
		raw = raw[:idx]
	}
	return string(raw), nil
}

// ReadFieldArray returns a zero-copy slice spanning the field's full
// extent (e.g. a raw byte buffer field, or the backing bytes of an
// inline array you intend to decode element-by-element yourself).
func (v *FieldView) ReadFieldArray(structName, fieldName string) ([]byte, error) {
	f, off, err := v.resolveField(structName, fieldName)
	if err != nil {
		return nil, err
	}
	if err := v.bounds(off, f.Size); err != nil {
		return nil, err
	}
	return v.payload[off : off+f.Size], nil
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}
