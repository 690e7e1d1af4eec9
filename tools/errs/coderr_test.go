package errs

import (
	"errors"
	"testing"
)

func TestSentinelMatchingSurvivesWrap(t *testing.T) {
	err := ErrValidation.WrapMsg("missing target", "kind", "send-message")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("wrapped error must still match its sentinel")
	}
	if errors.Is(err, ErrAuth) {
		t.Fatalf("codes must not cross-match")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(ErrRegistryInvariant.WithDetail("leave personal")); got != CodeRegistryInvariant {
		t.Fatalf("CodeOf=%d, want %d", got, CodeRegistryInvariant)
	}
	if got := CodeOf(errors.New("plain")); got != CodeValidation {
		t.Fatalf("plain errors default to validation, got %d", got)
	}
}

func TestErrorString(t *testing.T) {
	err := NewCodeError(1234, "boom").WithDetail("ctx")
	want := "1234 boom ctx"
	if err.Error() != want {
		t.Fatalf("Error()=%q, want %q", err.Error(), want)
	}
}
