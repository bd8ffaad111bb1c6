package fieldview

import (
	"encoding/binary"
	"testing"

	"github.com/blendtrace/blend/sdna"
	"github.com/stretchr/testify/require"
)

// buildSchema constructs a minimal Sdna by hand via the same SDNA
// encoding sdna.Decode parses, avoiding an import cycle on the sdna
// package's own test helpers.
func buildSchema(t *testing.T, order binary.ByteOrder, pointerWidth int) *sdna.Sdna {
	t.Helper()
	var buf []byte
	putU32 := func(v uint32) {
		b := make([]byte, 4)
		order.PutUint32(b, v)
		buf = append(buf, b...)
	}
	putU16 := func(v uint16) {
		b := make([]byte, 2)
		order.PutUint16(b, v)
		buf = append(buf, b...)
	}
	putCString := func(s string) {
		buf = append(buf, []byte(s)...)
		buf = append(buf, 0)
	}
	align4 := func() {
		for len(buf)%4 != 0 {
			buf = append(buf, 0)
		}
	}

	buf = append(buf, "SDNA"...)

	buf = append(buf, "NAME"...)
	names := []string{"totcol", "*data", "*mat", "*mtex[2]"}
	putU32(uint32(len(names)))
	for _, n := range names {
		putCString(n)
	}
	align4()

	buf = append(buf, "TYPE"...)
	types := []string{"int", "Object"}
	putU32(uint32(len(types)))
	for _, tn := range types {
		putCString(tn)
	}
	align4()

	buf = append(buf, "TLEN"...)
	putU16(4)
	putU16(0)
	align4()

	buf = append(buf, "STRC"...)
	putU32(1)
	putU16(1) // type index 1 ("Object")
	putU16(4) // field count
	putU16(0)
	putU16(0) // totcol: int
	putU16(1)
	putU16(1) // *data: Object* (type doesn't matter, it's a pointer)
	putU16(1)
	putU16(2) // *mat: Object*
	putU16(1)
	putU16(3) // *mtex[2]: Object* array

	s, err := sdna.Decode(buf, order, pointerWidth)
	require.NoError(t, err)
	return s
}

func TestReadFieldScalarsAndPointer(t *testing.T) {
	order := binary.LittleEndian
	schema := buildSchema(t, order, 8)

	// Object layout (8-byte pointers): totcol(4) data(8) mat(8) mtex(16) = 36 bytes.
	payload := make([]byte, 36)
	order.PutUint32(payload[0:4], 3)
	order.PutUint64(payload[4:12], 0xaaaa)
	order.PutUint64(payload[12:20], 0xbbbb)
	order.PutUint64(payload[20:28], 0x1111) // mtex[0]
	order.PutUint64(payload[28:36], 0x2222) // mtex[1]

	v := New(payload, schema, order, 8)

	totcol, err := v.ReadFieldU32("Object", "totcol")
	require.NoError(t, err)
	require.EqualValues(t, 3, totcol)

	data, err := v.ReadFieldPointer("Object", "data")
	require.NoError(t, err)
	require.EqualValues(t, 0xaaaa, data)

	mat, err := v.ReadFieldPointer("Object", "mat")
	require.NoError(t, err)
	require.EqualValues(t, 0xbbbb, mat)

	mtex0, err := v.ReadFieldPointer("Object", "mtex[0]")
	require.NoError(t, err)
	require.EqualValues(t, 0x1111, mtex0)

	mtex1, err := v.ReadFieldPointer("Object", "mtex[1]")
	require.NoError(t, err)
	require.EqualValues(t, 0x2222, mtex1)
}

func TestReadFieldPointerWithoutPointerTypeReadsRawBytes(t *testing.T) {
	// Non-pointer fields (e.g. an embedded ListBase) are still readable
	// via ReadFieldPointer: it reads pointer-width bytes at the field's
	// offset regardless of declared type, which is how callers walk
	// Scene.base / Collection.gobject / bNodeTree.nodes.
	order := binary.LittleEndian
	schema := buildSchema(t, order, 8)
	payload := make([]byte, 36)
	order.PutUint32(payload[0:4], 42)

	v := New(payload, schema, order, 8)
	got, err := v.ReadFieldPointer("Object", "totcol")
	require.NoError(t, err)
	// Reading 8 bytes starting at offset 0 picks up totcol's 4 bytes
	// plus the low 4 bytes of the next field.
	require.EqualValues(t, 42, got&0xffffffff)
}

func TestResolveFieldUnknownStruct(t *testing.T) {
	order := binary.LittleEndian
	schema := buildSchema(t, order, 8)
	v := New(make([]byte, 4), schema, order, 8)

	_, err := v.ReadFieldU32("NoSuchStruct", "x")
	require.Error(t, err)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
}

func TestReadFieldArrayZeroCopy(t *testing.T) {
	order := binary.LittleEndian
	schema := buildSchema(t, order, 8)
	payload := make([]byte, 36)
	order.PutUint64(payload[20:28], 0x1111)
	order.PutUint64(payload[28:36], 0x2222)

	v := New(payload, schema, order, 8)
	raw, err := v.ReadFieldArray("Object", "mtex")
	require.NoError(t, err)
	require.Len(t, raw, 16)
	require.Equal(t, payload[20:36], raw)
}

func TestBoundsRejectsOutOfRangeRead(t *testing.T) {
	order := binary.LittleEndian
	schema := buildSchema(t, order, 4)
	// 4-byte pointer width shrinks the struct; a 6-byte payload covers
	// totcol (offset 0, size 4) but not data (offset 4, size 4).
	v := New(make([]byte, 6), schema, order, 4)
	_, err := v.ReadFieldU32("Object", "totcol")
	require.NoError(t, err, "totcol itself still fits")
	_, err = v.ReadFieldPointer("Object", "data")
	require.Error(t, err)
}
