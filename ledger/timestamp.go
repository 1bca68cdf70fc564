package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"xdao.co/attest/errs"
	"xdao.co/attest/event"
	"xdao.co/attest/uid"
)

// Timestamp anchors data at the current ledger time. Each value can be
// timestamped once.
func (l *Ledger) Timestamp(data uid.UID) (uint64, error) {
	var ts uint64
	err := l.run("timestamp", common.Address{}, func(t *tx) error {
		var err error
		ts, err = t.stageTimestamp(data)
		return err
	})
	return ts, err
}

// MultiTimestamp timestamps every value or none of them.
func (l *Ledger) MultiTimestamp(data []uid.UID) (uint64, error) {
	var now uint64
	err := l.run("multi-timestamp", common.Address{}, func(t *tx) error {
		now = t.now
		for i, d := range data {
			if _, err := t.stageTimestamp(d); err != nil {
				return annotate(err, fmt.Sprintf("item %d", i))
			}
		}
		return nil
	})
	return now, err
}

func (t *tx) stageTimestamp(data uid.UID) (uint64, error) {
	if _, ok := t.timestamp(data); ok {
		return 0, errs.New(errs.KindAlreadyTimestamped, "LED-TS-001", "already timestamped: "+data.Hex())
	}
	t.timestamps[data] = t.now
	t.emit(event.Event{Type: event.Timestamped, UID: data, Time: t.now})
	return t.now, nil
}

// RevokeOffchain records that revoker revoked an offchain attestation
// identified by data. Records are kept per revoker.
func (l *Ledger) RevokeOffchain(revoker common.Address, data uid.UID) (uint64, error) {
	var ts uint64
	err := l.run("revoke-offchain", revoker, func(t *tx) error {
		var err error
		ts, err = t.stageRevokeOffchain(revoker, data)
		return err
	})
	return ts, err
}

func (l *Ledger) MultiRevokeOffchain(revoker common.Address, data []uid.UID) (uint64, error) {
	var now uint64
	err := l.run("multi-revoke-offchain", revoker, func(t *tx) error {
		now = t.now
		for i, d := range data {
			if _, err := t.stageRevokeOffchain(revoker, d); err != nil {
				return annotate(err, fmt.Sprintf("item %d", i))
			}
		}
		return nil
	})
	return now, err
}

func (t *tx) stageRevokeOffchain(revoker common.Address, data uid.UID) (uint64, error) {
	if t.revokedOffchain(revoker, data) {
		return 0, errs.New(errs.KindAlreadyRevokedOffchain, "LED-OFF-001", "already revoked offchain: "+data.Hex())
	}
	m, ok := t.offchain[revoker]
	if !ok {
		m = make(map[uid.UID]uint64)
		t.offchain[revoker] = m
	}
	m[data] = t.now
	t.emit(event.Event{Type: event.RevokedOffchain, UID: data, Attester: revoker, Time: t.now})
	return t.now, nil
}
