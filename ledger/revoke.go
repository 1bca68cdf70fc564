package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"xdao.co/attest/errs"
	"xdao.co/attest/event"
	"xdao.co/attest/record"
	"xdao.co/attest/uid"
)

// Revoke revokes one attestation previously issued by from.
func (l *Ledger) Revoke(from common.Address, req RevocationRequest) error {
	return l.run("revoke", from, func(t *tx) error {
		return t.revokeGroup(from, req.Schema, []RevocationRequestData{req.Data})
	})
}

// MultiRevoke revokes every listed attestation, or none of them.
func (l *Ledger) MultiRevoke(from common.Address, reqs []MultiRevocationRequest) error {
	return l.run("multi-revoke", from, func(t *tx) error {
		for i, g := range reqs {
			if err := t.revokeGroup(from, g.Schema, g.Data); err != nil {
				return annotate(err, fmt.Sprintf("group %d", i))
			}
		}
		return nil
	})
}

func (t *tx) revokeGroup(from common.Address, schemaUID uid.UID, items []RevocationRequestData) error {
	s, err := t.l.schemas.Get(schemaUID)
	if err != nil {
		return errs.New(errs.KindInvalidSchema, "LED-REV-001", "unknown schema "+schemaUID.Hex())
	}
	r, err := t.boundResolver(s, "LED-REV-007")
	if err != nil {
		return err
	}

	atts := make([]record.Attestation, 0, len(items))
	for i, item := range items {
		a, err := t.stageRevocation(from, s, item)
		if err != nil {
			if len(items) > 1 {
				return annotate(err, fmt.Sprintf("request %d", i))
			}
			return err
		}
		atts = append(atts, a)
	}

	values := lo.Map(items, func(item RevocationRequestData, _ int) *big.Int { return item.Value })
	return t.resolve(s, r, atts, values, true)
}

func (t *tx) stageRevocation(from common.Address, s record.Schema, item RevocationRequestData) (record.Attestation, error) {
	a, ok := t.lookup(item.UID)
	if !ok {
		return record.Attestation{}, errs.New(errs.KindNotFound, "LED-REV-002", "attestation not found: "+item.UID.Hex())
	}
	if a.Schema != s.UID {
		return record.Attestation{}, errs.New(errs.KindInvalidRevocation, "LED-REV-003",
			"attestation "+item.UID.Hex()+" belongs to schema "+a.Schema.Hex())
	}
	if a.Attester != from {
		return record.Attestation{}, errs.New(errs.KindAccessDenied, "LED-REV-004", "only the attester may revoke "+item.UID.Hex())
	}
	if !a.Revocable {
		return record.Attestation{}, errs.New(errs.KindIrrevocable, "LED-REV-005", "attestation "+item.UID.Hex()+" is not revocable")
	}
	if a.IsRevoked() {
		return record.Attestation{}, errs.New(errs.KindInvalidRevocation, "LED-REV-006", "attestation "+item.UID.Hex()+" already revoked")
	}
	if item.Value != nil && item.Value.Sign() < 0 {
		return record.Attestation{}, errs.New(errs.KindInvalidRevocation, "LED-REV-008", "negative value")
	}

	a = a.Clone()
	a.RevocationTime = t.now
	t.put(a)
	t.emit(event.Event{
		Type:      event.Revoked,
		UID:       a.UID,
		Schema:    a.Schema,
		Attester:  a.Attester,
		Recipient: a.Recipient,
		Time:      a.RevocationTime,
	})
	return a, nil
}
