// Package blend reads Blender's .blend binary container: the file
// header, the framed sequence of blocks, and the embedded SDNA schema,
// and exposes zero-copy named-field reads against any block's payload.
// Dependency tracing over the parsed blocks lives in the sibling
// tracer package.
package blend

import (
	"errors"
	"io"
	"log"

	"github.com/blendtrace/blend/fieldview"
	"github.com/blendtrace/blend/internal/source"
	"github.com/blendtrace/blend/sdna"
)

// File owns the header, ordered block table, schema, address index,
// and the backing byte buffer. It is immutable after Open/OpenReader
// returns.
type File struct {
	header Header
	blocks []Block
	schema *sdna.Sdna
	index  map[oldPtrKey]int

	buf *source.Buffer
}

// Open loads a .blend file from disk, transparently decompressing a
// gzip/zstd-wrapped input per opts.
func Open(path string, opts ...Option) (*File, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	buf, err := source.Open(path, o.toSourcePolicy())
	if err != nil {
		return nil, translateSourceErr(err)
	}
	f, err := load(buf)
	if err != nil {
		buf.Close()
		return nil, err
	}
	return f, nil
}

// OpenReader loads a .blend file from an arbitrary reader (which need
// not be seekable — decompression is streamed into memory or a scratch
// file as governed by opts).
func OpenReader(r io.Reader, opts ...Option) (*File, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	buf, err := source.OpenReader(r, o.toSourcePolicy())
	if err != nil {
		return nil, translateSourceErr(err)
	}
	f, err := load(buf)
	if err != nil {
		buf.Close()
		return nil, err
	}
	return f, nil
}

func load(buf *source.Buffer) (*File, error) {
	data := buf.Bytes()
	hsize, err := headerSize(data)
	if err != nil {
		return nil, err
	}
	if len(data) < hsize {
		return nil, newErr(KindInvalidHeader, "file shorter than header")
	}
	header, err := decodeHeader(data[:hsize])
	if err != nil {
		return nil, err
	}

	blocks, err := frameBlocks(data, hsize, header.Endian, header.PointerWidth, header.FileFormatVersion)
	if err != nil {
		return nil, err
	}

	dnaPayload, err := findDNA1(blocks)
	if err != nil {
		return nil, err
	}
	schema, err := sdna.Decode(dnaPayload, header.Endian, header.PointerWidth)
	if err != nil {
		return nil, wrapErr(KindInvalidDna, "decode SDNA", err)
	}

	index := buildAddressIndex(blocks)

	return &File{
		header: header,
		blocks: blocks,
		schema: schema,
		index:  index,
		buf:    buf,
	}, nil
}

// translateSourceErr maps a *source.Error's Kind onto this package's
// own taxonomy so a caller of Open/OpenReader only ever switches on
// blend.Kind, regardless of which internal package detected the
// fault.
func translateSourceErr(err error) error {
	var se *source.Error
	if !errors.As(err, &se) {
		return wrapErr(KindIO, "open source", err)
	}
	switch se.Kind {
	case source.KindUnsupportedCompression:
		return wrapErr(KindUnsupportedCompression, "open source", se.Err)
	case source.KindDecompressionFailed:
		return wrapErr(KindDecompressionFailed, "open source", se.Err)
	case source.KindTempFile:
		return wrapErr(KindTempFileError, "open source", se.Err)
	case source.KindNonSeekable:
		return wrapErr(KindNonSeekableSource, "open source", se.Err)
	case source.KindSizeLimitExceeded:
		return wrapErr(KindSizeLimitExceeded, "open source", se.Err)
	default:
		return wrapErr(KindIO, "open source", se.Err)
	}
}

func findDNA1(blocks []Block) ([]byte, error) {
	for _, b := range blocks {
		if b.Header.Code == CodeDNA1 {
			return b.Payload, nil
		}
	}
	return nil, newErr(KindNoDnaFound, "no DNA1 block in file")
}

// buildAddressIndex maps every non-null old address to its block. On a
// collision the later block wins and the collision is logged.
func buildAddressIndex(blocks []Block) map[oldPtrKey]int {
	idx := make(map[oldPtrKey]int, len(blocks))
	for i, b := range blocks {
		if b.Header.Old.IsNull() {
			continue
		}
		k := b.Header.Old.key()
		if prev, dup := idx[k]; dup {
			log.Printf("blend: blocks %d and %d share old address 0x%x; keeping block %d", prev, i, b.Header.Old.Value, i)
		}
		idx[k] = i
	}
	return idx
}

// Close releases any resources (temp file, mmap) backing the loaded
// file. Payload bytes and field views obtained before Close must not
// be used afterward.
func (f *File) Close() error {
	if f.buf == nil {
		return nil
	}
	return f.buf.Close()
}

// Header returns the decoded file header.
func (f *File) Header() Header { return f.header }

// BlocksLen returns the number of blocks in the file, including the
// ENDB terminator.
func (f *File) BlocksLen() int { return len(f.blocks) }

// Block returns the block at index i.
func (f *File) Block(i int) (Block, bool) {
	if i < 0 || i >= len(f.blocks) {
		return Block{}, false
	}
	return f.blocks[i], true
}

// Schema returns the decoded SDNA schema.
func (f *File) Schema() *sdna.Sdna { return f.schema }

// FindBlockByAddress resolves a persisted old_address to a block
// index via the address index; 0 is always treated as null.
func (f *File) FindBlockByAddress(addr uint64) (int, bool) {
	if addr == 0 {
		return 0, false
	}
	width := uint8(f.header.PointerWidth)
	i, ok := f.index[OldPtr{Width: width, Value: addr}.key()]
	return i, ok
}

// ReadBlockSlice returns a zero-copy handle to the payload of block i.
func (f *File) ReadBlockSlice(i int) ([]byte, error) {
	b, ok := f.Block(i)
	if !ok {
		return nil, newErrf(KindInvalidBlockIndex, "block index %d out of range", i)
	}
	return b.Payload, nil
}

// CreateFieldView builds a FieldView over an arbitrary payload slice
// using this file's schema, byte order, and pointer width.
func (f *File) CreateFieldView(payload []byte) *fieldview.FieldView {
	return fieldview.New(payload, f.schema, f.header.Endian, f.header.PointerWidth)
}

// FieldView is a convenience wrapper around CreateFieldView for block
// i's own payload.
func (f *File) FieldView(i int) (*fieldview.FieldView, error) {
	payload, err := f.ReadBlockSlice(i)
	if err != nil {
		return nil, err
	}
	return f.CreateFieldView(payload), nil
}

// rawBytes exposes the whole decoded (post-decompression) byte buffer,
// used by tests that compare it against the input they loaded.
func (f *File) rawBytes() []byte { return f.buf.Bytes() }
