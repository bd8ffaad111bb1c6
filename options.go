package blend

import "github.com/blendtrace/blend/internal/source"

// Options configures how a .blend input is loaded, in particular how
// a gzip/zstd-wrapped input is decompressed. The zero value is usable
// and picks sensible defaults (64MiB in-memory ceiling, OS temp dir).
type Options struct {
	// MaxInMemoryBytes bounds how large a decompressed stream may be
	// before it is spilled to a temp file instead of held in memory.
	MaxInMemoryBytes int64
	// TempDir overrides the directory used for spilled decompressed
	// data; empty means os.TempDir().
	TempDir string
	// PreferMmapTemp memory-maps a spilled temp file and copies its
	// contents out of the mapping into memory; the mapping stays open
	// until the File is closed.
	PreferMmapTemp bool
	// MaxTotalBytes, if positive, hard-caps decompressed input size
	// regardless of MaxInMemoryBytes/spilling, guarding against
	// decompression bombs. Zero means unlimited.
	MaxTotalBytes int64
}

// Option mutates Options; see With* constructors below.
type Option func(*Options)

// WithMaxInMemoryBytes sets the in-memory decompression ceiling.
func WithMaxInMemoryBytes(n int64) Option {
	return func(o *Options) { o.MaxInMemoryBytes = n }
}

// WithTempDir overrides the scratch directory for spilled decompression.
func WithTempDir(dir string) Option {
	return func(o *Options) { o.TempDir = dir }
}

// WithPreferMmapTemp enables memory-mapping spilled temp files.
func WithPreferMmapTemp(v bool) Option {
	return func(o *Options) { o.PreferMmapTemp = v }
}

// WithMaxTotalBytes sets a hard ceiling on decompressed input size,
// independent of MaxInMemoryBytes, to guard against decompression
// bombs.
func WithMaxTotalBytes(n int64) Option {
	return func(o *Options) { o.MaxTotalBytes = n }
}

func (o Options) toSourcePolicy() source.DecompressionPolicy {
	return source.DecompressionPolicy{
		MaxInMemoryBytes: o.MaxInMemoryBytes,
		TempDir:          o.TempDir,
		PreferMmapTemp:   o.PreferMmapTemp,
		MaxTotalBytes:    o.MaxTotalBytes,
	}
}

const defaultMaxInMemoryBytes = 64 << 20 // 64MiB

func defaultOptions() Options {
	return Options{MaxInMemoryBytes: defaultMaxInMemoryBytes}
}
