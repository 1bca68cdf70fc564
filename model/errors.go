package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"xdao.co/attest/errs"
)

type ErrorCode string

// Transport-level codes. Ledger failures use the code derived from their
// errs.Kind (e.g. INVALID_ATTESTATION).
const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"
	ErrUnauthenticated ErrorCode = "UNAUTHENTICATED"
	ErrInternal        ErrorCode = "INTERNAL"
)

// CodedError is a stable error with a machine-readable code and a human message.
type CodedError struct {
	Code    ErrorCode `json:"code"`
	RuleID  string    `json:"ruleID,omitempty"`
	Message string    `json:"message"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

// CodeFor maps a kind to its wire code: InvalidAttestation -> INVALID_ATTESTATION.
func CodeFor(k errs.Kind) ErrorCode {
	var b strings.Builder
	for i, r := range string(k) {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return ErrorCode(b.String())
}

var kindByCode = func() map[ErrorCode]errs.Kind {
	m := make(map[ErrorCode]errs.Kind)
	for _, k := range errs.Kinds() {
		m[CodeFor(k)] = k
	}
	return m
}()

// FromError projects any error onto the wire shape.
func FromError(err error) *CodedError {
	if err == nil {
		return nil
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded
	}
	var e *errs.Error
	if errors.As(err, &e) {
		msg := e.Message
		if e.Cause != nil {
			msg += ": " + e.Cause.Error()
		}
		return &CodedError{Code: CodeFor(e.Kind), RuleID: e.RuleID, Message: msg}
	}
	return &CodedError{Code: ErrInternal, Message: err.Error()}
}

// Err turns a wire error back into the structured error callers match on.
// Codes without a ledger kind stay *CodedError.
func (e *CodedError) Err() error {
	if e == nil {
		return nil
	}
	if k, ok := kindByCode[e.Code]; ok {
		return &errs.Error{Kind: k, RuleID: e.RuleID, Message: e.Message}
	}
	return e
}
