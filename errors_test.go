package blend

import (
	"errors"
	"testing"

	"github.com/blendtrace/blend/fieldview"
)

func TestAsKindClassifiesUnknownStructAsInvalidField(t *testing.T) {
	err := &fieldview.FieldError{Struct: "Bogus", Field: "x", Reason: fieldview.ReasonUnknownStruct}
	kind, ok := AsKind(err)
	if !ok || kind != KindInvalidField {
		t.Errorf("AsKind = (%v, %v), want (KindInvalidField, true)", kind, ok)
	}
}

func TestAsKindClassifiesMissingFieldAsUnknownMemberIndex(t *testing.T) {
	for _, reason := range []fieldview.Reason{fieldview.ReasonNoSuchField, fieldview.ReasonNoSuchArrayField} {
		err := &fieldview.FieldError{Struct: "Object", Field: "nope", Reason: reason}
		kind, ok := AsKind(err)
		if !ok || kind != KindUnknownMemberIndex {
			t.Errorf("AsKind(%v) = (%v, %v), want (KindUnknownMemberIndex, true)", reason, kind, ok)
		}
	}
}

func TestAsKindPassesThroughOwnErrorKind(t *testing.T) {
	err := newErr(KindInvalidDna, "bad schema")
	kind, ok := AsKind(err)
	if !ok || kind != KindInvalidDna {
		t.Errorf("AsKind = (%v, %v), want (KindInvalidDna, true)", kind, ok)
	}
}

func TestAsKindReportsFalseForUnrelatedError(t *testing.T) {
	kind, ok := AsKind(errors.New("some other failure"))
	if ok || kind != KindUnknown {
		t.Errorf("AsKind = (%v, %v), want (KindUnknown, false)", kind, ok)
	}
}
