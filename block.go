package blend

import "encoding/binary"

// Block couples a normalized BHead with a borrowed slice of its
// payload bytes. Many Blocks may share the same backing buffer as the
// File that produced them; the payload is only valid as long as that
// File is alive.
type Block struct {
	Header  BHead
	Payload []byte
}

// decodeBHead reads one block header out of raw (which must contain at
// least the bytes for the chosen variant starting at offset 0) using
// the given byte order, pointer width, and file-format version. It
// returns the normalized BHead and the number of bytes consumed.
func decodeBHead(raw []byte, order binary.ByteOrder, pointerWidth, fileFormatVersion int) (BHead, int, error) {
	switch {
	case pointerWidth == 4:
		return decodeBHead4(raw, order)
	case pointerWidth == 8 && fileFormatVersion == 0:
		return decodeSmallBHead8(raw, order)
	case pointerWidth == 8 && fileFormatVersion >= 1:
		return decodeLargeBHead8(raw, order)
	default:
		return BHead{}, 0, newErrf(KindUnsupportedVersion, "unsupported pointer width %d / file format version %d", pointerWidth, fileFormatVersion)
	}
}

// decodeBHead4 reads the 4-byte-pointer variant:
// code(4) sdna_index(4) old_ptr(4) len(4) nr(4) = 20 bytes.
func decodeBHead4(raw []byte, order binary.ByteOrder) (BHead, int, error) {
	const size = 20
	if len(raw) < size {
		return BHead{}, 0, newErr(KindIO, "truncated BHead4")
	}
	code := newBlockCode(raw[0:4])
	sdnaIndex := order.Uint32(raw[4:8])
	oldPtr := order.Uint32(raw[8:12])
	length := order.Uint32(raw[12:16])
	count := order.Uint32(raw[16:20])
	return BHead{
		Code:      code,
		SDNAIndex: int64(int32(sdnaIndex)),
		Old:       OldPtr{Width: 4, Value: uint64(oldPtr)},
		Length:    int64(length),
		Count:     int64(count),
		Kind:      BHead4,
	}, size, nil
}

// decodeSmallBHead8 reads the legacy 8-byte-pointer variant:
// code(4) sdna_index(4) old_ptr(8) len(4) nr(4) = 24 bytes.
func decodeSmallBHead8(raw []byte, order binary.ByteOrder) (BHead, int, error) {
	const size = 24
	if len(raw) < size {
		return BHead{}, 0, newErr(KindIO, "truncated SmallBHead8")
	}
	code := newBlockCode(raw[0:4])
	sdnaIndex := order.Uint32(raw[4:8])
	oldPtr := order.Uint64(raw[8:16])
	length := order.Uint32(raw[16:20])
	count := order.Uint32(raw[20:24])
	return BHead{
		Code:      code,
		SDNAIndex: int64(int32(sdnaIndex)),
		Old:       OldPtr{Width: 8, Value: oldPtr},
		Length:    int64(length),
		Count:     int64(count),
		Kind:      SmallBHead8,
	}, size, nil
}

// decodeLargeBHead8 reads the v1 extended variant, where every field
// widens to 8 bytes: code(4, padded) sdna_index(8) old_ptr(8) len(8)
// nr(8) = 36 bytes (4 bytes of code plus 32 bytes of u64 fields).
func decodeLargeBHead8(raw []byte, order binary.ByteOrder) (BHead, int, error) {
	const size = 36
	if len(raw) < size {
		return BHead{}, 0, newErr(KindIO, "truncated LargeBHead8")
	}
	code := newBlockCode(raw[0:4])
	sdnaIndex := order.Uint64(raw[4:12])
	oldPtr := order.Uint64(raw[12:20])
	length := order.Uint64(raw[20:28])
	count := order.Uint64(raw[28:36])
	return BHead{
		Code:      code,
		SDNAIndex: int64(sdnaIndex),
		Old:       OldPtr{Width: 8, Value: oldPtr},
		Length:    int64(length),
		Count:     int64(count),
		Kind:      LargeBHead8,
	}, size, nil
}

// bheadSize returns the on-disk size of a BHead variant for the given
// pointer width and file-format version, without decoding it.
func bheadSize(pointerWidth, fileFormatVersion int) int {
	switch {
	case pointerWidth == 4:
		return 20
	case pointerWidth == 8 && fileFormatVersion == 0:
		return 24
	default:
		return 36
	}
}

// frameBlocks walks buf starting at offset, decoding block headers and
// slicing payloads without copying, until the ENDB terminator. It
// returns the ordered block table.
func frameBlocks(buf []byte, offset int, order binary.ByteOrder, pointerWidth, fileFormatVersion int) ([]Block, error) {
	var blocks []Block
	hsize := bheadSize(pointerWidth, fileFormatVersion)
	for {
		if offset+hsize > len(buf) {
			return nil, newErrf(KindIO, "truncated block header at offset %d", offset)
		}
		head, consumed, err := decodeBHead(buf[offset:], order, pointerWidth, fileFormatVersion)
		if err != nil {
			return nil, err
		}
		offset += consumed

		if head.Length < 0 || offset+int(head.Length) > len(buf) {
			return nil, newErrf(KindInvalidData, "block %s payload of length %d exceeds file bounds at offset %d", head.Code, head.Length, offset)
		}
		payload := buf[offset : offset+int(head.Length)]
		offset += int(head.Length)

		blocks = append(blocks, Block{Header: head, Payload: payload})

		if head.Code.IsEnd() {
			return blocks, nil
		}
	}
}
