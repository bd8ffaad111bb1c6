package blend

import "strings"

// BlockCode is a 4-byte block tag, packed little-endian into a u32 so
// it can be compared and used as a map key cheaply. Two-letter ID
// codes (OB, ME, MA, ...) are stored with trailing NULs.
type BlockCode uint32

func fourcc(b [4]byte) BlockCode {
	return BlockCode(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

func newBlockCode(raw []byte) BlockCode {
	var b [4]byte
	copy(b[:], raw)
	return fourcc(b)
}

// CodeFromString builds a BlockCode from its short textual spelling
// ("OB", "DATA", ...), padding with NULs as the on-disk codes do. This
// is the exported constructor expanders use to recognize block codes
// without reaching into the package's internal byte layout.
func CodeFromString(s string) BlockCode {
	return newBlockCode([]byte(s))
}

// Well-known block codes the rest of the package checks against by name.
var (
	CodeDATA = newBlockCode([]byte("DATA"))
	CodeDNA1 = newBlockCode([]byte("DNA1"))
	CodeENDB = newBlockCode([]byte("ENDB"))
	CodeGLOB = newBlockCode([]byte("GLOB"))
	CodeREND = newBlockCode([]byte("REND"))
	CodeTEST = newBlockCode([]byte("TEST"))
	CodeUSER = newBlockCode([]byte("USER"))
)

// Bytes returns the code's raw 4 bytes (trailing NULs for 2-letter
// codes), in on-disk order.
func (c BlockCode) Bytes() [4]byte {
	return [4]byte{
		byte(c),
		byte(c >> 8),
		byte(c >> 16),
		byte(c >> 24),
	}
}

// String renders the code as a short human-readable tag, e.g. "OB" or
// "DATA", trimming trailing NULs.
func (c BlockCode) String() string {
	b := c.Bytes()
	return strings.TrimRight(string(b[:]), "\x00")
}

// IsEnd reports whether this is the ENDB terminator code.
func (c BlockCode) IsEnd() bool { return c == CodeENDB }

// BHeadKind identifies which of the three on-disk BHead layouts a
// block header was read with.
type BHeadKind int

const (
	BHead4 BHeadKind = iota
	SmallBHead8
	LargeBHead8
)

func (k BHeadKind) String() string {
	switch k {
	case BHead4:
		return "BHead4"
	case SmallBHead8:
		return "SmallBHead8"
	case LargeBHead8:
		return "LargeBHead8"
	default:
		return "unknown"
	}
}

// OldPtr is the persisted in-memory address a block had when the file
// was saved. It is an opaque identity key — never dereferenced as a
// real address, never used in pointer arithmetic. Width disjoins the
// 32-bit and 64-bit pointer spaces so that OldPtr{Width:4,Value:1} and
// OldPtr{Width:8,Value:1} never collide in the address index.
type OldPtr struct {
	Width uint8 // 0 (null), 4, or 8
	Value uint64
}

// IsNull reports whether this pointer is the null pointer.
func (p OldPtr) IsNull() bool { return p.Width == 0 || p.Value == 0 }

// oldPtrKey is a normalized key suitable for use in the address index:
// the pointer width is folded in so that 32- and 64-bit namespaces
// never collide even if files of each width happened to reuse the same
// numeric address.
type oldPtrKey struct {
	width uint8
	value uint64
}

func (p OldPtr) key() oldPtrKey {
	if p.IsNull() {
		return oldPtrKey{}
	}
	return oldPtrKey{width: p.Width, value: p.Value}
}

// BHead is the normalized, pointer-width- and version-independent
// block header every decoded on-disk variant is mapped into.
type BHead struct {
	Code      BlockCode
	SDNAIndex int64 // -1 for untyped DATA blocks
	Old       OldPtr
	Length    int64 // payload byte count
	Count     int64 // number of struct instances in the payload
	Kind      BHeadKind
}
