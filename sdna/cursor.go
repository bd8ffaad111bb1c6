package sdna

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// cursor is a tiny forward-only reader over the DNA1 payload. It
// exists because the SDNA tables are a sequence of tag-prefixed,
// 4-byte-padded sections rather than a single fixed layout —
// binary.Read alone can't express the padding/alignment rules.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) remaining() []byte { return c.buf[c.pos:] }

func (c *cursor) expect(tag string) error {
	if len(c.remaining()) < len(tag) || string(c.buf[c.pos:c.pos+len(tag)]) != tag {
		return fmt.Errorf("sdna: expected tag %q at offset %d", tag, c.pos)
	}
	c.pos += len(tag)
	return nil
}

func (c *cursor) readU32(order binary.ByteOrder) (uint32, error) {
	if len(c.remaining()) < 4 {
		return 0, fmt.Errorf("sdna: truncated u32 at offset %d", c.pos)
	}
	v := order.Uint32(c.buf[c.pos : c.pos+4])
	c.pos += 4
	return v, nil
}

func (c *cursor) readU16(order binary.ByteOrder) (uint16, error) {
	if len(c.remaining()) < 2 {
		return 0, fmt.Errorf("sdna: truncated u16 at offset %d", c.pos)
	}
	v := order.Uint16(c.buf[c.pos : c.pos+2])
	c.pos += 2
	return v, nil
}

// readCString reads one NUL-terminated string starting at the cursor.
func (c *cursor) readCString() (string, error) {
	idx := bytes.IndexByte(c.remaining(), 0)
	if idx < 0 {
		return "", fmt.Errorf("sdna: unterminated string at offset %d", c.pos)
	}
	s := string(c.buf[c.pos : c.pos+idx])
	c.pos += idx + 1
	return s, nil
}

// align4 pads the cursor forward to the next 4-byte boundary, the
// alignment every SDNA section uses between tables.
func (c *cursor) align4() {
	if rem := c.pos % 4; rem != 0 {
		c.pos += 4 - rem
	}
}

func (c *cursor) readNameTable(order binary.ByteOrder) ([]string, error) {
	if err := c.expect("NAME"); err != nil {
		return nil, err
	}
	count, err := c.readU32(order)
	if err != nil {
		return nil, err
	}
	names := make([]string, count)
	for i := range names {
		s, err := c.readCString()
		if err != nil {
			return nil, err
		}
		names[i] = s
	}
	c.align4()
	return names, nil
}

func (c *cursor) readTypeNameTable(order binary.ByteOrder) ([]string, error) {
	if err := c.expect("TYPE"); err != nil {
		return nil, err
	}
	count, err := c.readU32(order)
	if err != nil {
		return nil, err
	}
	names := make([]string, count)
	for i := range names {
		s, err := c.readCString()
		if err != nil {
			return nil, err
		}
		names[i] = s
	}
	c.align4()
	return names, nil
}

func (c *cursor) readTypeSizeTable(order binary.ByteOrder, count int) ([]int, error) {
	if err := c.expect("TLEN"); err != nil {
		return nil, err
	}
	sizes := make([]int, count)
	for i := range sizes {
		v, err := c.readU16(order)
		if err != nil {
			return nil, err
		}
		sizes[i] = int(v)
	}
	c.align4()
	return sizes, nil
}

// rawField is a struct-table field entry before offset/size resolution.
type rawField struct {
	typeIndex int
	nameIndex int
}

// rawStruct is a struct-table entry before field offsets are resolved.
type rawStruct struct {
	typeIndex int
	fields    []rawField
}

func (c *cursor) readStructTable(order binary.ByteOrder) ([]rawStruct, error) {
	if err := c.expect("STRC"); err != nil {
		return nil, err
	}
	count, err := c.readU32(order)
	if err != nil {
		return nil, err
	}
	structs := make([]rawStruct, count)
	for i := range structs {
		typeIdx, err := c.readU16(order)
		if err != nil {
			return nil, err
		}
		fieldCount, err := c.readU16(order)
		if err != nil {
			return nil, err
		}
		fields := make([]rawField, fieldCount)
		for j := range fields {
			ft, err := c.readU16(order)
			if err != nil {
				return nil, err
			}
			fn, err := c.readU16(order)
			if err != nil {
				return nil, err
			}
			fields[j] = rawField{typeIndex: int(ft), nameIndex: int(fn)}
		}
		structs[i] = rawStruct{typeIndex: int(typeIdx), fields: fields}
	}
	return structs, nil
}
