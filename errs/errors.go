// Package errs defines the failure taxonomy shared by the schema registry,
// resolvers and the attestation ledger.
//
// Every failure surfaced by the core is a *Error carrying a stable Kind and a
// RuleID naming the violated check. Callers branch on Kind (or RuleID), never
// on the message text.
package errs

import "errors"

// Kind is a stable failure category.
type Kind string

const (
	KindInvalidSchema          Kind = "InvalidSchema"
	KindInvalidExpirationTime  Kind = "InvalidExpirationTime"
	KindInvalidAttestation     Kind = "InvalidAttestation"
	KindInvalidRevocation      Kind = "InvalidRevocation"
	KindIrrevocable            Kind = "Irrevocable"
	KindNotPayable             Kind = "NotPayable"
	KindAlreadyExists          Kind = "AlreadyExists"
	KindOutOfBounds            Kind = "OutOfBounds"
	KindNotFound               Kind = "NotFound"
	KindAccessDenied           Kind = "AccessDenied"
	KindInvalidLength          Kind = "InvalidLength"
	KindAlreadyTimestamped     Kind = "AlreadyTimestamped"
	KindAlreadyRevokedOffchain Kind = "AlreadyRevokedOffchain"
	KindInternal               Kind = "Internal"
)

// Error is the structured error type returned by every core package.
//
// RuleID (e.g. ATT-REF-001) identifies the exact check that failed.
// Message is for humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches sentinels by Kind, so errors.Is(err, errs.ErrNotFound) holds for
// every NotFound failure regardless of RuleID.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if t.RuleID != "" && t.RuleID != e.RuleID {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInvalidSchema          = &Error{Kind: KindInvalidSchema}
	ErrInvalidExpirationTime  = &Error{Kind: KindInvalidExpirationTime}
	ErrInvalidAttestation     = &Error{Kind: KindInvalidAttestation}
	ErrInvalidRevocation      = &Error{Kind: KindInvalidRevocation}
	ErrIrrevocable            = &Error{Kind: KindIrrevocable}
	ErrNotPayable             = &Error{Kind: KindNotPayable}
	ErrAlreadyExists          = &Error{Kind: KindAlreadyExists}
	ErrOutOfBounds            = &Error{Kind: KindOutOfBounds}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrAccessDenied           = &Error{Kind: KindAccessDenied}
	ErrInvalidLength          = &Error{Kind: KindInvalidLength}
	ErrAlreadyTimestamped     = &Error{Kind: KindAlreadyTimestamped}
	ErrAlreadyRevokedOffchain = &Error{Kind: KindAlreadyRevokedOffchain}
	ErrInternal               = &Error{Kind: KindInternal}
)

func New(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

func Wrap(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return New(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of a structured error, or KindInternal for anything else.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return KindInternal
	}
	return e.Kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}

// Kinds lists every Kind, in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindInvalidSchema,
		KindInvalidExpirationTime,
		KindInvalidAttestation,
		KindInvalidRevocation,
		KindIrrevocable,
		KindNotPayable,
		KindAlreadyExists,
		KindOutOfBounds,
		KindNotFound,
		KindAccessDenied,
		KindInvalidLength,
		KindAlreadyTimestamped,
		KindAlreadyRevokedOffchain,
		KindInternal,
	}
}
