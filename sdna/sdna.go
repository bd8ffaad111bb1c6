// Package sdna decodes the SDNA ("Structure DNA") block embedded in a
// .blend file: the struct/type/field tables Blender writes alongside
// every save, used to compute byte offsets for every struct it can
// persist. See the blend package's DNA1 block for where this payload
// comes from.
package sdna

import (
	"encoding/binary"
	"fmt"
)

// Type is one entry of the SDNA TYPE/TLEN tables: a type name and its
// on-disk size in bytes.
type Type struct {
	Name string
	Size int
}

// Field is one member of a Struct, with its byte offset and size
// already resolved relative to the struct's start.
type Field struct {
	TypeIndex int
	NameIndex int
	Offset    int
	Size      int

	// name and isPointer are denormalized from the NAME table at
	// decode time so Struct.FindField needs no back-reference to the
	// owning Sdna.
	name      string
	isPointer bool
}

// Name returns the field's clean name (no leading '*', no "[N]..." suffix).
func (f Field) Name() string { return f.name }

// IsPointer reports whether the field's declarator begins with '*'.
func (f Field) IsPointer() bool { return f.isPointer }

// Struct is one entry of the SDNA STRC table: the type it defines, and
// its fields in declaration order with offsets already computed.
type Struct struct {
	TypeIndex int
	Fields    []Field
}

// FindField returns the field named name, or false if no such field
// exists on this struct. Callers (notably expanders) must treat a
// missing field as "not present in this Blender version", not an
// error.
func (s Struct) FindField(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Sdna is the fully decoded schema: interned name/type tables plus the
// per-struct field layout, computed once at load time.
type Sdna struct {
	Names   []FieldName
	Types   []Type
	Structs []Struct

	structIndexByTypeName map[string]int // type name -> index into Structs
}

// FindStruct returns the struct whose type name matches name.
func (s *Sdna) FindStruct(name string) (*Struct, bool) {
	idx, ok := s.structIndexByTypeName[name]
	if !ok {
		return nil, false
	}
	return &s.Structs[idx], true
}

// FindFieldIn looks up a field by struct name + field name in one
// call, the shape fieldview uses on every read.
func (s *Sdna) FindFieldIn(structName, fieldName string) (Field, bool) {
	st, ok := s.FindStruct(structName)
	if !ok {
		return Field{}, false
	}
	return st.FindField(fieldName)
}

const sdnaMagic = "SDNA"

// Decode parses the DNA1 block payload into a Sdna schema.
func Decode(payload []byte, order binary.ByteOrder, pointerWidth int) (*Sdna, error) {
	r := &cursor{buf: payload}

	if err := r.expect(sdnaMagic); err != nil {
		return nil, err
	}

	rawNames, err := r.readNameTable(order)
	if err != nil {
		return nil, fmt.Errorf("sdna: NAME table: %w", err)
	}
	typeNames, err := r.readTypeNameTable(order)
	if err != nil {
		return nil, fmt.Errorf("sdna: TYPE table: %w", err)
	}
	sizes, err := r.readTypeSizeTable(order, len(typeNames))
	if err != nil {
		return nil, fmt.Errorf("sdna: TLEN table: %w", err)
	}
	rawStructs, err := r.readStructTable(order)
	if err != nil {
		return nil, fmt.Errorf("sdna: STRC table: %w", err)
	}

	types := make([]Type, len(typeNames))
	for i, n := range typeNames {
		types[i] = Type{Name: n, Size: sizes[i]}
	}

	fieldNames := make([]FieldName, len(rawNames))
	for i, n := range rawNames {
		fieldNames[i] = parseFieldName(n)
	}

	typeIndexToStruct := make(map[int]int, len(rawStructs))
	for i, rs := range rawStructs {
		typeIndexToStruct[rs.typeIndex] = i
	}

	// Struct sizes are resolved lazily (memoized, cycle-guarded)
	// because a struct's fields may reference a struct type defined
	// later in the STRC table.
	sizeCache := make(map[int]int, len(rawStructs))
	resolving := make(map[int]bool, len(rawStructs))

	var structTotalSize func(structIdx int) (int, error)
	structTotalSize = func(structIdx int) (int, error) {
		if sz, ok := sizeCache[structIdx]; ok {
			return sz, nil
		}
		if resolving[structIdx] {
			return 0, fmt.Errorf("sdna: cyclic struct size resolution at struct index %d", structIdx)
		}
		resolving[structIdx] = true
		defer delete(resolving, structIdx)

		total := 0
		for _, rf := range rawStructs[structIdx].fields {
			fn := fieldNames[rf.nameIndex]
			sz, err := fieldSizeOf(types, typeIndexToStruct, structTotalSize, pointerWidth, fn, rf.typeIndex)
			if err != nil {
				return 0, err
			}
			total += sz
		}
		sizeCache[structIdx] = total
		return total, nil
	}

	structs := make([]Struct, len(rawStructs))
	for i, rs := range rawStructs {
		fields := make([]Field, len(rs.fields))
		offset := 0
		for j, rf := range rs.fields {
			fn := fieldNames[rf.nameIndex]
			sz, err := fieldSizeOf(types, typeIndexToStruct, structTotalSize, pointerWidth, fn, rf.typeIndex)
			if err != nil {
				return nil, err
			}
			fields[j] = Field{
				TypeIndex: rf.typeIndex,
				NameIndex: rf.nameIndex,
				Offset:    offset,
				Size:      sz,
				name:      fn.Name,
				isPointer: fn.IsPointer,
			}
			offset += sz
		}
		structs[i] = Struct{TypeIndex: rs.typeIndex, Fields: fields}
	}

	structIndexByTypeName := make(map[string]int, len(structs))
	for i, st := range structs {
		if st.TypeIndex >= 0 && st.TypeIndex < len(types) {
			structIndexByTypeName[types[st.TypeIndex].Name] = i
		}
	}

	return &Sdna{
		Names:                 fieldNames,
		Types:                 types,
		Structs:               structs,
		structIndexByTypeName: structIndexByTypeName,
	}, nil
}

// fieldSizeOf computes the on-disk size of one field declaration,
// recursing into struct-typed fields via structTotalSize. A pointer
// field's size is always the file's pointer width regardless of the
// pointed-to type, an array field's size is its element size times
// the product of dimensions, and an inline-struct field's size is the
// referenced struct's total size.
func fieldSizeOf(types []Type, typeIndexToStruct map[int]int, structTotalSize func(int) (int, error), pointerWidth int, fn FieldName, typeIndex int) (int, error) {
	if fn.IsPointer {
		return pointerWidth * fn.arrayLen(), nil
	}
	if structIdx, ok := typeIndexToStruct[typeIndex]; ok {
		base, err := structTotalSize(structIdx)
		if err != nil {
			return 0, err
		}
		return base * fn.arrayLen(), nil
	}
	if typeIndex < 0 || typeIndex >= len(types) {
		return 0, fmt.Errorf("sdna: unknown type index %d", typeIndex)
	}
	return types[typeIndex].Size * fn.arrayLen(), nil
}
