package blend

import (
	"encoding/binary"
	"testing"
)

func TestDecodeHeaderLegacy(t *testing.T) {
	tests := []struct {
		name       string
		raw        []byte
		wantWidth  int
		wantEndian binary.ByteOrder
		wantVer    int
	}{
		{
			name:       "64-bit little-endian",
			raw:        []byte("BLENDER-v280"),
			wantWidth:  8,
			wantEndian: binary.LittleEndian,
			wantVer:    280,
		},
		{
			name:       "32-bit little-endian",
			raw:        []byte("BLENDER_v279"),
			wantWidth:  4,
			wantEndian: binary.LittleEndian,
			wantVer:    279,
		},
		{
			name:       "64-bit big-endian",
			raw:        []byte("BLENDER-V260"),
			wantWidth:  8,
			wantEndian: binary.BigEndian,
			wantVer:    260,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h, err := decodeHeader(tc.raw)
			if err != nil {
				t.Fatalf("decodeHeader: %v", err)
			}
			if h.PointerWidth != tc.wantWidth {
				t.Errorf("PointerWidth = %d, want %d", h.PointerWidth, tc.wantWidth)
			}
			if h.Endian != tc.wantEndian {
				t.Errorf("Endian = %v, want %v", h.Endian, tc.wantEndian)
			}
			if h.BlenderVersion != tc.wantVer {
				t.Errorf("BlenderVersion = %d, want %d", h.BlenderVersion, tc.wantVer)
			}
			if h.FileFormatVersion != 0 {
				t.Errorf("FileFormatVersion = %d, want 0", h.FileFormatVersion)
			}
		})
	}
}

func TestDecodeHeaderV1(t *testing.T) {
	raw := []byte("BLENDER17-00v4000")
	h, err := decodeHeader(raw)
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if h.PointerWidth != 8 {
		t.Errorf("PointerWidth = %d, want 8", h.PointerWidth)
	}
	if h.Endian != binary.LittleEndian {
		t.Errorf("Endian = %v, want LittleEndian", h.Endian)
	}
	if h.FileFormatVersion != 0 {
		t.Errorf("FileFormatVersion = %d, want 0", h.FileFormatVersion)
	}
	if h.BlenderVersion != 4000 {
		t.Errorf("BlenderVersion = %d, want 4000", h.BlenderVersion)
	}
}

func TestDecodeHeaderRejectsBadMagic(t *testing.T) {
	_, err := decodeHeader([]byte("NOTBLEND-v280"))
	if err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestDecodeHeaderRejectsUnknownDiscriminator(t *testing.T) {
	_, err := decodeHeader([]byte("BLENDERxv280"))
	if err == nil {
		t.Fatal("expected error for unrecognized header byte")
	}
}

func TestHeaderSize(t *testing.T) {
	tests := []struct {
		raw  []byte
		want int
	}{
		{[]byte("BLENDER-v280"), 12},
		{[]byte("BLENDER_v279"), 12},
		{[]byte("BLENDER17-00v4000"), 17},
	}
	for _, tc := range tests {
		got, err := headerSize(tc.raw)
		if err != nil {
			t.Fatalf("headerSize(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Errorf("headerSize(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestParseASCIIDigits(t *testing.T) {
	n, err := parseASCIIDigits([]byte("280"))
	if err != nil {
		t.Fatalf("parseASCIIDigits: %v", err)
	}
	if n != 280 {
		t.Errorf("got %d, want 280", n)
	}
	if _, err := parseASCIIDigits([]byte("2x0")); err == nil {
		t.Fatal("expected error for non-digit byte")
	}
}
