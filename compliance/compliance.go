package compliance

import (
	"fmt"
	"strings"
)

// ComplianceMode selects how strictly the ledger treats references to
// attestations that exist but are no longer active.
//
// Permissive accepts a refUID naming any stored attestation, including
// revoked or expired ones. Strict additionally requires the referenced
// attestation to be active at the time of the request.
//
// Both modes reject references to attestations that do not exist.
type ComplianceMode int

const (
	Permissive ComplianceMode = iota
	Strict
)

func (m ComplianceMode) String() string {
	switch m {
	case Permissive:
		return "permissive"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("ComplianceMode(%d)", int(m))
	}
}

// Parse maps a configuration string to a mode. The empty string is Permissive.
func Parse(s string) (ComplianceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "permissive":
		return Permissive, nil
	case "strict":
		return Strict, nil
	default:
		return 0, fmt.Errorf("compliance: unknown mode %q", s)
	}
}

// AcceptsReference reports whether a stored reference target satisfies the mode.
func (m ComplianceMode) AcceptsReference(revoked, expired bool) bool {
	if m == Strict {
		return !revoked && !expired
	}
	return true
}
