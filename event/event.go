// Package event defines the observable side effects of ledger operations.
//
// Events are delivered in the order of the operations that caused them, and
// only for operations that committed.
package event

import (
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"xdao.co/attest/uid"
)

type Type string

const (
	SchemaRegistered Type = "SchemaRegistered"
	Attested         Type = "Attested"
	Revoked          Type = "Revoked"
	Timestamped      Type = "Timestamped"
	RevokedOffchain  Type = "RevokedOffchain"
)

// Event is a single emitted record. Fields not meaningful for a Type are zero:
//   - SchemaRegistered: UID
//   - Attested: UID, Schema, Attester, Recipient, Time
//   - Revoked: UID, Schema, Attester, Recipient, Time (of revocation)
//   - Timestamped: UID (the data), Time
//   - RevokedOffchain: UID (the data), Attester (revoker), Time
type Event struct {
	Type      Type           `json:"type"`
	UID       uid.UID        `json:"uid"`
	Schema    uid.UID        `json:"schema"`
	Attester  common.Address `json:"attester"`
	Recipient common.Address `json:"recipient"`
	Time      uint64         `json:"time,omitempty"`
}

// Sink receives committed events.
type Sink interface {
	Emit(events ...Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(...Event) {}

// Log is an append-only in-memory sink with synchronous subscribers.
type Log struct {
	mu     sync.RWMutex
	events []Event
	subs   []func(Event)
}

func NewLog() *Log { return &Log{} }

func (l *Log) Emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	l.mu.Lock()
	l.events = append(l.events, events...)
	subs := slices.Clone(l.subs)
	l.mu.Unlock()

	for _, e := range events {
		for _, fn := range subs {
			fn(e)
		}
	}
}

// Subscribe registers fn for every future event.
func (l *Log) Subscribe(fn func(Event)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, fn)
}

// Events returns a copy of every event emitted so far.
func (l *Log) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Event(nil), l.events...)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Since returns events emitted after the first n.
func (l *Log) Since(n int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n >= len(l.events) {
		return nil
	}
	if n < 0 {
		n = 0
	}
	return append([]Event(nil), l.events[n:]...)
}

// Multi fans out to several sinks in order.
type Multi []Sink

func (m Multi) Emit(events ...Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(events...)
		}
	}
}
