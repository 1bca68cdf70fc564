// Package schema implements the schema registry: an insert-only table of
// immutable schema records keyed by content-derived UID.
package schema

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"xdao.co/attest/errs"
	"xdao.co/attest/event"
	"xdao.co/attest/record"
	"xdao.co/attest/uid"
)

// Registry stores schema records. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	schemas map[uid.UID]record.Schema

	sink event.Sink
	log  *zap.Logger
}

type Option func(*Registry)

// WithSink delivers SchemaRegistered events to s.
func WithSink(s event.Sink) Option {
	return func(r *Registry) { r.sink = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.log = l }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		schemas: make(map[uid.UID]record.Schema),
		sink:    event.Discard{},
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register stores a new schema and returns its UID.
//
// Registering the same (schema, resolver, revocable) tuple twice fails with
// AlreadyExists and leaves the original record untouched. The schema string
// is opaque to the registry.
func (r *Registry) Register(schema string, resolver common.Address, revocable bool) (uid.UID, error) {
	id := uid.Schema(schema, resolver, revocable)

	r.mu.Lock()
	if _, exists := r.schemas[id]; exists {
		r.mu.Unlock()
		return uid.Zero, errs.New(errs.KindAlreadyExists, "SCH-REG-001", "schema already registered: "+id.Hex())
	}
	r.schemas[id] = record.Schema{
		UID:       id,
		Resolver:  resolver,
		Revocable: revocable,
		Schema:    schema,
	}
	r.mu.Unlock()

	r.log.Debug("schema registered",
		zap.Stringer("uid", id),
		zap.Stringer("resolver", resolver),
		zap.Bool("revocable", revocable))
	r.sink.Emit(event.Event{Type: event.SchemaRegistered, UID: id})
	return id, nil
}

// Get returns the schema record for id, or a NotFound error.
func (r *Registry) Get(id uid.UID) (record.Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[id]
	if !ok {
		return record.Schema{}, errs.New(errs.KindNotFound, "SCH-GET-001", "schema not found: "+id.Hex())
	}
	return s, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id uid.UID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.schemas[id]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}

// List returns every schema ordered by UID.
func (r *Registry) List() []record.Schema {
	r.mu.RLock()
	out := make([]record.Schema, 0, len(r.schemas))
	for _, s := range r.schemas {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].UID[:], out[j].UID[:]) < 0 })
	return out
}
