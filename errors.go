package blend

import (
	"errors"
	"fmt"

	"github.com/blendtrace/blend/fieldview"
)

// Kind classifies a decoding failure so callers can tell a fatal
// framing error from a benign "field not present in this version" miss.
type Kind int

const (
	// KindUnknown is the zero value; never returned directly.
	KindUnknown Kind = iota
	KindIO
	KindInvalidHeader
	KindInvalidMagic
	KindUnsupportedHeader
	KindUnsupportedVersion
	KindNoDnaFound
	KindInvalidDna
	KindInvalidBlockIndex
	KindInvalidField
	KindInvalidData
	KindUnsupportedCompression
	KindDecompressionFailed
	KindTempFileError
	KindNonSeekableSource
	KindSizeLimitExceeded
	KindUnknownStructIndex
	KindUnknownTypeIndex
	KindUnknownMemberIndex
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindInvalidHeader:
		return "invalid_header"
	case KindInvalidMagic:
		return "invalid_magic"
	case KindUnsupportedHeader:
		return "unsupported_header"
	case KindUnsupportedVersion:
		return "unsupported_version"
	case KindNoDnaFound:
		return "no_dna_found"
	case KindInvalidDna:
		return "invalid_dna"
	case KindInvalidBlockIndex:
		return "invalid_block_index"
	case KindInvalidField:
		return "invalid_field"
	case KindInvalidData:
		return "invalid_data"
	case KindUnsupportedCompression:
		return "unsupported_compression"
	case KindDecompressionFailed:
		return "decompression_failed"
	case KindTempFileError:
		return "temp_file_error"
	case KindNonSeekableSource:
		return "non_seekable_source"
	case KindSizeLimitExceeded:
		return "size_limit_exceeded"
	case KindUnknownStructIndex:
		return "unknown_struct_index"
	case KindUnknownTypeIndex:
		return "unknown_type_index"
	case KindUnknownMemberIndex:
		return "unknown_member_index"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by this package. It carries
// enough context (indices, names, offsets) to locate the fault.
type Error struct {
	Kind    Kind
	Message string
	// Context is optional extra detail: a struct/field name, a byte
	// offset, a block index. Left nil when there is nothing to add.
	Context map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Context != nil {
		return fmt.Sprintf("blend: %s: %s %v", e.Kind, e.Message, e.Context)
	}
	return fmt.Sprintf("blend: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func newErrf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapErr(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// AsKind classifies err into this package's Kind taxonomy, unwrapping
// both this package's own *Error and a *fieldview.FieldError — the
// tracer's expanders absorb FieldError internally and never propagate
// it, but a caller reading fields directly off a *fieldview.FieldView
// (via File.FieldView) sees it raw, so this is the one place that
// taxonomy is still reachable from outside the fieldview package.
func AsKind(err error) (Kind, bool) {
	var fe *fieldview.FieldError
	if errors.As(err, &fe) {
		switch fe.Reason {
		case fieldview.ReasonUnknownStruct:
			return KindInvalidField, true
		case fieldview.ReasonNoSuchField, fieldview.ReasonNoSuchArrayField:
			return KindUnknownMemberIndex, true
		default:
			return KindInvalidField, true
		}
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Kind, true
	}
	return KindUnknown, false
}
