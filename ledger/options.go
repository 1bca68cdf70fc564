package ledger

import (
	"go.uber.org/zap"

	"xdao.co/attest/clock"
	"xdao.co/attest/compliance"
	"xdao.co/attest/event"
	"xdao.co/attest/storage"
)

type Option func(*Ledger)

// WithClock sets the time source. Defaults to clock.System.
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithSink receives events of committed operations, in commit order.
func WithSink(s event.Sink) Option {
	return func(l *Ledger) { l.sink = s }
}

// WithArchive writes the canonical encoding of every committed attestation
// (including revocation updates) to cas before the ledger tables change.
func WithArchive(cas storage.CAS) Option {
	return func(l *Ledger) { l.archive = cas }
}

// WithReferencePolicy selects how refUID targets that are revoked or expired
// are treated. Defaults to compliance.Permissive.
func WithReferencePolicy(m compliance.ComplianceMode) Option {
	return func(l *Ledger) { l.refPolicy = m }
}
