package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestIs_MatchesByKind(t *testing.T) {
	err := New(KindNotFound, "ATT-GET-001", "attestation not found")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected errors.Is(ErrNotFound)")
	}
	if errors.Is(err, ErrInvalidAttestation) {
		t.Fatalf("unexpected match against ErrInvalidAttestation")
	}
}

func TestIs_RuleIDNarrowsMatch(t *testing.T) {
	err := New(KindInvalidRevocation, "REV-STATE-001", "already revoked")
	if !errors.Is(err, &Error{Kind: KindInvalidRevocation, RuleID: "REV-STATE-001"}) {
		t.Fatalf("expected RuleID match")
	}
	if errors.Is(err, &Error{Kind: KindInvalidRevocation, RuleID: "REV-SCHEMA-001"}) {
		t.Fatalf("unexpected match for different RuleID")
	}
}

func TestWrapped_StillStructured(t *testing.T) {
	inner := New(KindOutOfBounds, "RES-DATA-001", "data too short")
	outer := fmt.Errorf("resolver: %w", inner)

	if !IsKind(outer, KindOutOfBounds) {
		t.Fatalf("expected KindOutOfBounds through wrapping")
	}
	if got := RuleID(outer); got != "RES-DATA-001" {
		t.Fatalf("RuleID: got %q", got)
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Fatalf("KindOf(plain): got %s", got)
	}
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindInternal, "LED-ARCH-001", "archive write failed", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if Wrap(KindInternal, "X", "m", nil).(*Error).Cause != nil {
		t.Fatalf("nil cause should not be stored")
	}
}

func TestKinds_Unique(t *testing.T) {
	seen := map[Kind]bool{}
	for _, k := range Kinds() {
		if seen[k] {
			t.Fatalf("duplicate kind %s", k)
		}
		seen[k] = true
	}
}
