package jobs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrapNilIsNil(t *testing.T) {
	if err := Wrap(ErrDecode, nil); err != nil {
		t.Errorf("expected Wrap(kind, nil) to be nil, got %v", err)
	}
}

func TestKindOfReturnsWrappedKind(t *testing.T) {
	err := Wrap(ErrUpload, errors.New("network down"))
	if got := KindOf(err); got != ErrUpload {
		t.Errorf("KindOf() = %v, want %v", got, ErrUpload)
	}
}

func TestKindOfUnwrapsThroughFmtErrorf(t *testing.T) {
	base := Wrap(ErrDecode, errors.New("bad header"))
	wrapped := fmt.Errorf("decode stage: %w", base)
	if got := KindOf(wrapped); got != ErrDecode {
		t.Errorf("KindOf() through fmt.Errorf = %v, want %v", got, ErrDecode)
	}
}

func TestKindOfDefaultsToDSPForUnclassifiedError(t *testing.T) {
	if got := KindOf(errors.New("no kind here")); got != ErrDSP {
		t.Errorf("KindOf() for a bare error = %v, want default %v", got, ErrDSP)
	}
}

func TestKindErrorMessageIncludesKind(t *testing.T) {
	err := Wrap(ErrWebhook, errors.New("timeout"))
	if got := err.Error(); !strings.Contains(got, string(ErrWebhook)) {
		t.Fatalf("expected the error message to include %q, got %q", ErrWebhook, got)
	}
}
