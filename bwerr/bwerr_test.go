package bwerr_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hmarui66/bwtree-go/bwerr"
)

func TestIsAgain_matchesAgainOnly(t *testing.T) {
	if !bwerr.IsAgain(bwerr.Again()) {
		t.Errorf("IsAgain(Again()) = false, want true")
	}
	if bwerr.IsAgain(bwerr.Corrupted("x")) {
		t.Errorf("IsAgain(Corrupted()) = true, want false")
	}
	if bwerr.IsAgain(nil) {
		t.Errorf("IsAgain(nil) = true, want false")
	}
}

func TestIs_unwrapsWrappedCause(t *testing.T) {
	cause := errors.New("disk full")
	err := bwerr.Io(cause)
	if !bwerr.Is(err, bwerr.KindIo) {
		t.Errorf("Is(Io(cause), KindIo) = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(Io(cause), cause) = false, want true (Unwrap must expose the cause)")
	}
}

func TestIs_unwrapsThroughFmtErrorf(t *testing.T) {
	err := fmt.Errorf("context: %w", bwerr.Again())
	if !bwerr.Is(err, bwerr.KindAgain) {
		t.Errorf("Is(fmt.Errorf-wrapped Again(), KindAgain) = false, want true")
	}
}

func TestError_stringIncludesCause(t *testing.T) {
	cause := errors.New("eof")
	err := bwerr.Io(cause)
	msg := err.Error()
	if !strings.Contains(msg, "eof") {
		t.Fatalf("Error() = %q, want it to include the cause %q", msg, "eof")
	}
}
