package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"xdao.co/attest/event"
	"xdao.co/attest/record"
	"xdao.co/attest/uid"
)

// tx is the staging overlay for one operation. Reads fall through to the
// committed tables; writes stay in the overlay until commit.
//
// tx also serves as the resolver.View, so resolvers see records staged
// earlier in the same call.
type tx struct {
	l     *Ledger
	now   uint64
	nonce uint64

	attestations map[uid.UID]record.Attestation
	order        []uid.UID
	timestamps   map[uid.UID]uint64
	offchain     map[common.Address]map[uid.UID]uint64
	credits      map[common.Address]*big.Int
	events       []event.Event
}

func (l *Ledger) begin() *tx {
	return &tx{
		l:            l,
		now:          l.clock.Now(),
		nonce:        l.nonce,
		attestations: make(map[uid.UID]record.Attestation),
		timestamps:   make(map[uid.UID]uint64),
		offchain:     make(map[common.Address]map[uid.UID]uint64),
		credits:      make(map[common.Address]*big.Int),
	}
}

func (t *tx) lookup(id uid.UID) (record.Attestation, bool) {
	if a, ok := t.attestations[id]; ok {
		return a, true
	}
	a, ok := t.l.attestations[id]
	return a, ok
}

func (t *tx) GetAttestation(id uid.UID) (record.Attestation, bool) {
	a, ok := t.lookup(id)
	if !ok {
		return record.Attestation{}, false
	}
	return a.Clone(), true
}

func (t *tx) IsAttestationValid(id uid.UID) bool {
	_, ok := t.lookup(id)
	return ok
}

func (t *tx) Now() uint64 { return t.now }

func (t *tx) put(a record.Attestation) {
	if _, staged := t.attestations[a.UID]; !staged {
		t.order = append(t.order, a.UID)
	}
	t.attestations[a.UID] = a
}

func (t *tx) emit(e event.Event) {
	t.events = append(t.events, e)
}

func (t *tx) credit(addr common.Address, v *big.Int) {
	if v.Sign() == 0 {
		return
	}
	c, ok := t.credits[addr]
	if !ok {
		c = new(big.Int)
		t.credits[addr] = c
	}
	c.Add(c, v)
}

func (t *tx) timestamp(data uid.UID) (uint64, bool) {
	if ts, ok := t.timestamps[data]; ok {
		return ts, true
	}
	ts, ok := t.l.timestamps[data]
	return ts, ok
}

func (t *tx) revokedOffchain(revoker common.Address, data uid.UID) bool {
	if _, ok := t.offchain[revoker][data]; ok {
		return true
	}
	_, ok := t.l.offchain[revoker][data]
	return ok
}
