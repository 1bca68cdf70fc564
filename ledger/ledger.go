// Package ledger implements the attestation store: single and batched
// attest and revoke with schema validation, resolver dispatch and
// all-or-nothing commit.
//
// Every mutating operation runs against a private staging transaction. The
// transaction is committed only when every request in the call validated and
// every resolver accepted; otherwise it is discarded and the ledger is left
// exactly as it was. Operations are linearized by a single mutex.
package ledger

import (
	"bytes"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"xdao.co/attest/clock"
	"xdao.co/attest/compliance"
	"xdao.co/attest/errs"
	"xdao.co/attest/event"
	"xdao.co/attest/record"
	"xdao.co/attest/resolver"
	"xdao.co/attest/schema"
	"xdao.co/attest/storage"
	"xdao.co/attest/uid"
)

type Ledger struct {
	mu sync.RWMutex

	schemas   *schema.Registry
	resolvers *resolver.Directory

	clock     clock.Clock
	log       *zap.Logger
	sink      event.Sink
	archive   storage.CAS
	refPolicy compliance.ComplianceMode

	attestations map[uid.UID]record.Attestation
	nonce        uint64
	timestamps   map[uid.UID]uint64
	offchain     map[common.Address]map[uid.UID]uint64
	balances     map[common.Address]*big.Int
	archived     map[uid.UID]cid.Cid
}

// New returns an empty ledger over the given schema registry and resolver
// directory. Both are shared by reference; the ledger never inserts schemas.
func New(schemas *schema.Registry, resolvers *resolver.Directory, opts ...Option) *Ledger {
	l := &Ledger{
		schemas:      schemas,
		resolvers:    resolvers,
		clock:        clock.System{},
		log:          zap.NewNop(),
		sink:         event.Discard{},
		attestations: make(map[uid.UID]record.Attestation),
		timestamps:   make(map[uid.UID]uint64),
		offchain:     make(map[common.Address]map[uid.UID]uint64),
		balances:     make(map[common.Address]*big.Int),
		archived:     make(map[uid.UID]cid.Cid),
	}
	if resolvers == nil {
		l.resolvers = resolver.NewDirectory()
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Ledger) Schemas() *schema.Registry { return l.schemas }

func (l *Ledger) Resolvers() *resolver.Directory { return l.resolvers }

func (l *Ledger) GetSchema(id uid.UID) (record.Schema, error) {
	return l.schemas.Get(id)
}

// GetAttestation returns a copy of the stored attestation, or NotFound.
func (l *Ledger) GetAttestation(id uid.UID) (record.Attestation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.attestations[id]
	if !ok {
		return record.Attestation{}, errs.New(errs.KindNotFound, "LED-GET-001", "attestation not found: "+id.Hex())
	}
	return a.Clone(), nil
}

// IsAttestationValid reports whether id names a stored attestation,
// regardless of revocation or expiry.
func (l *Ledger) IsAttestationValid(id uid.UID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.attestations[id]
	return ok
}

// Attestations returns copies of every stored attestation ordered by UID.
func (l *Ledger) Attestations() []record.Attestation {
	l.mu.RLock()
	out := make([]record.Attestation, 0, len(l.attestations))
	for _, a := range l.attestations {
		out = append(out, a.Clone())
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].UID[:], out[j].UID[:]) < 0 })
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.attestations)
}

// Balance is the total value credited to the resolver at addr by committed
// operations.
func (l *Ledger) Balance(addr common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// ArchiveCID returns the CID of the latest archived record for id.
func (l *Ledger) ArchiveCID(id uid.UID) (cid.Cid, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.archived[id]
	return c, ok
}

// GetTimestamp returns the time data was timestamped, or 0.
func (l *Ledger) GetTimestamp(data uid.UID) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.timestamps[data]
}

// GetRevokeOffchain returns the time revoker revoked data offchain, or 0.
func (l *Ledger) GetRevokeOffchain(revoker common.Address, data uid.UID) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.offchain[revoker][data]
}

// run executes fn inside a fresh transaction and commits it if fn succeeds.
func (l *Ledger) run(op string, from common.Address, fn func(t *tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := l.begin()
	// Zero marks unset times (revocation, timestamps), so it cannot be a
	// commit time.
	if t.now == 0 {
		err := errs.New(errs.KindInternal, "LED-CLOCK-001", "clock reported time 0")
		l.log.Error("operation refused", zap.String("op", op), zap.Error(err))
		return err
	}
	if err := fn(t); err != nil {
		l.log.Debug("operation rejected",
			zap.String("op", op),
			zap.Stringer("from", from),
			zap.String("kind", string(errs.KindOf(err))),
			zap.String("rule", errs.RuleID(err)),
			zap.Error(err))
		return err
	}
	if err := l.commit(t); err != nil {
		l.log.Error("commit failed", zap.String("op", op), zap.Error(err))
		return err
	}
	l.log.Debug("operation committed",
		zap.String("op", op),
		zap.Stringer("from", from),
		zap.Int("records", len(t.order)),
		zap.Int("events", len(t.events)))
	return nil
}

// commit applies t: archive writes first, then tables, then events. Archive
// objects are immutable and content-addressed, so a failure part way through
// leaves only unreferenced blobs behind.
func (l *Ledger) commit(t *tx) error {
	cids := make(map[uid.UID]cid.Cid, len(t.order))
	if l.archive != nil {
		for _, id := range t.order {
			c, err := l.archive.Put(record.Encode(t.attestations[id]))
			if err != nil {
				return errs.Wrap(errs.KindInternal, "LED-COMMIT-001", "archive write failed for "+id.Hex(), err)
			}
			cids[id] = c
		}
	}

	for _, id := range t.order {
		l.attestations[id] = t.attestations[id]
	}
	for id, c := range cids {
		l.archived[id] = c
	}
	l.nonce = t.nonce
	for data, ts := range t.timestamps {
		l.timestamps[data] = ts
	}
	for revoker, m := range t.offchain {
		dst, ok := l.offchain[revoker]
		if !ok {
			dst = make(map[uid.UID]uint64, len(m))
			l.offchain[revoker] = dst
		}
		for data, ts := range m {
			dst[data] = ts
		}
	}
	for addr, v := range t.credits {
		b, ok := l.balances[addr]
		if !ok {
			b = new(big.Int)
			l.balances[addr] = b
		}
		b.Add(b, v)
	}

	l.sink.Emit(t.events...)
	return nil
}
