package blend

import (
	"encoding/binary"
)

// Header is the decoded file header, supporting both the 12-byte
// legacy variant and the 17-byte v1 variant introduced alongside the
// extended BHead. See decodeHeader below for the on-disk layout each
// variant is read from.
type Header struct {
	PointerWidth      int // 4 or 8 bytes
	Endian            binary.ByteOrder
	FileFormatVersion int // 0 (legacy) or 1 (v1)
	BlenderVersion    int // e.g. 405 == "4.05", 500 == "5.00"
}

const magic = "BLENDER"

// decodeHeader reads the file magic and dispatches to the legacy or v1
// header decoder based on the byte immediately following the magic.
//
// Legacy (12 bytes): "BLENDER" + pointer-size char + endian char + 3
// ASCII digit version.
// v1 (17 bytes): "BLENDER" + 2 digit header size ("17") + '-' + 2 digit
// file-format version + endian char + 4 digit version.
func decodeHeader(raw []byte) (Header, error) {
	if len(raw) < 9 || string(raw[:7]) != magic {
		return Header{}, newErr(KindInvalidMagic, "missing BLENDER magic")
	}
	// raw[7] disambiguates: legacy stores the pointer-size char here
	// ('_' or '-'); v1 stores the first digit of the header-size field.
	switch raw[7] {
	case '_', '-':
		return decodeLegacyHeader(raw)
	case '1':
		return decodeV1Header(raw)
	default:
		return Header{}, newErrf(KindUnsupportedHeader, "unrecognized header byte 0x%02x at offset 7", raw[7])
	}
}

func decodeLegacyHeader(raw []byte) (Header, error) {
	const size = 12
	if len(raw) < size {
		return Header{}, newErr(KindInvalidHeader, "legacy header truncated")
	}
	pointerChar := raw[7]
	endianChar := raw[8]
	versionBytes := raw[9:12]

	h := Header{FileFormatVersion: 0}
	switch pointerChar {
	case '_':
		h.PointerWidth = 4
	case '-':
		h.PointerWidth = 8
	default:
		return Header{}, newErrf(KindInvalidHeader, "unknown pointer size char %q", pointerChar)
	}
	switch endianChar {
	case 'v':
		h.Endian = binary.LittleEndian
	case 'V':
		h.Endian = binary.BigEndian
	default:
		return Header{}, newErrf(KindInvalidHeader, "unknown endian char %q", endianChar)
	}
	v, err := parseASCIIDigits(versionBytes)
	if err != nil {
		return Header{}, wrapErr(KindInvalidHeader, "invalid version digits", err)
	}
	h.BlenderVersion = v
	return h, nil
}

func decodeV1Header(raw []byte) (Header, error) {
	const size = 17
	if len(raw) < size {
		return Header{}, newErr(KindInvalidHeader, "v1 header truncated")
	}
	// raw[7:9] == "17" header size, raw[9] == '-', raw[10:12] format
	// version, raw[12] endian char, raw[13:17] blender version.
	if raw[7] != '1' || raw[8] != '7' {
		return Header{}, newErrf(KindUnsupportedHeader, "unexpected v1 header size field %q", raw[7:9])
	}
	if raw[9] != '-' {
		return Header{}, newErrf(KindInvalidHeader, "expected '-' separator, got %q", raw[9])
	}
	fv, err := parseASCIIDigits(raw[10:12])
	if err != nil {
		return Header{}, wrapErr(KindInvalidHeader, "invalid file-format-version digits", err)
	}
	endianChar := raw[12]
	if endianChar != 'v' {
		return Header{}, newErrf(KindInvalidHeader, "v1 header endian must be little ('v'), got %q", endianChar)
	}
	version, err := parseASCIIDigits(raw[13:17])
	if err != nil {
		return Header{}, wrapErr(KindInvalidHeader, "invalid version digits", err)
	}
	return Header{
		PointerWidth:      8,
		Endian:            binary.LittleEndian,
		FileFormatVersion: fv,
		BlenderVersion:    version,
	}, nil
}

// headerSize returns how many bytes decodeHeader needs to have already
// peeked at in order to fully decode the header starting at raw[0].
func headerSize(raw []byte) (int, error) {
	if len(raw) < 9 || string(raw[:7]) != magic {
		return 0, newErr(KindInvalidMagic, "missing BLENDER magic")
	}
	switch raw[7] {
	case '_', '-':
		return 12, nil
	case '1':
		return 17, nil
	default:
		return 0, newErrf(KindUnsupportedHeader, "unrecognized header byte 0x%02x at offset 7", raw[7])
	}
}

func parseASCIIDigits(b []byte) (int, error) {
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, newErrf(KindInvalidHeader, "non-digit byte %q", c)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
