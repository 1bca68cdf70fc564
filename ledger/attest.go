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

// Attest creates one attestation issued by from.
func (l *Ledger) Attest(from common.Address, req AttestationRequest) (uid.UID, error) {
	var id uid.UID
	err := l.run("attest", from, func(t *tx) error {
		ids, err := t.attestGroup(from, req.Schema, []AttestationRequestData{req.Data})
		if err != nil {
			return err
		}
		id = ids[0]
		return nil
	})
	if err != nil {
		return uid.Zero, err
	}
	return id, nil
}

// MultiAttest creates every attestation of every group, or none of them.
// Groups are processed in order and each resolver-bearing group is
// dispatched to its resolver as one batch. The returned UIDs follow request
// order across groups.
func (l *Ledger) MultiAttest(from common.Address, reqs []MultiAttestationRequest) ([]uid.UID, error) {
	var out []uid.UID
	err := l.run("multi-attest", from, func(t *tx) error {
		for i, g := range reqs {
			ids, err := t.attestGroup(from, g.Schema, g.Data)
			if err != nil {
				return annotate(err, fmt.Sprintf("group %d", i))
			}
			out = append(out, ids...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *tx) attestGroup(from common.Address, schemaUID uid.UID, items []AttestationRequestData) ([]uid.UID, error) {
	s, err := t.l.schemas.Get(schemaUID)
	if err != nil {
		return nil, errs.New(errs.KindInvalidSchema, "LED-ATT-001", "unknown schema "+schemaUID.Hex())
	}
	r, err := t.boundResolver(s, "LED-ATT-002")
	if err != nil {
		return nil, err
	}

	atts := make([]record.Attestation, 0, len(items))
	for i, item := range items {
		a, err := t.stageAttestation(from, s, item)
		if err != nil {
			if len(items) > 1 {
				return nil, annotate(err, fmt.Sprintf("request %d", i))
			}
			return nil, err
		}
		atts = append(atts, a)
	}

	values := lo.Map(items, func(item AttestationRequestData, _ int) *big.Int { return item.Value })
	if err := t.resolve(s, r, atts, values, false); err != nil {
		return nil, err
	}
	return lo.Map(atts, func(a record.Attestation, _ int) uid.UID { return a.UID }), nil
}

// stageAttestation validates one request and stages the resulting record.
func (t *tx) stageAttestation(from common.Address, s record.Schema, item AttestationRequestData) (record.Attestation, error) {
	if item.ExpirationTime != 0 && item.ExpirationTime <= t.now {
		return record.Attestation{}, errs.New(errs.KindInvalidExpirationTime, "LED-ATT-003",
			fmt.Sprintf("expiration time %d is not after %d", item.ExpirationTime, t.now))
	}
	if item.Revocable && !s.Revocable {
		return record.Attestation{}, errs.New(errs.KindIrrevocable, "LED-ATT-004", "schema "+s.UID.Hex()+" is not revocable")
	}
	if !item.RefUID.IsZero() {
		ref, ok := t.lookup(item.RefUID)
		if !ok {
			return record.Attestation{}, errs.New(errs.KindInvalidAttestation, "LED-ATT-005", "referenced attestation does not exist: "+item.RefUID.Hex())
		}
		if !t.l.refPolicy.AcceptsReference(ref.IsRevoked(), ref.IsExpired(t.now)) {
			return record.Attestation{}, errs.New(errs.KindInvalidAttestation, "LED-ATT-006", "referenced attestation is not active: "+item.RefUID.Hex())
		}
	}
	if item.Value != nil && item.Value.Sign() < 0 {
		return record.Attestation{}, errs.New(errs.KindInvalidAttestation, "LED-ATT-008", "negative value")
	}

	t.nonce++
	a := record.Attestation{
		Schema:         s.UID,
		Time:           t.now,
		ExpirationTime: item.ExpirationTime,
		RefUID:         item.RefUID,
		Recipient:      item.Recipient,
		Attester:       from,
		Revocable:      item.Revocable,
		Data:           append([]byte(nil), item.Data...),
		Value:          new(big.Int).Set(record.ValueOrZero(item.Value)),
	}
	a.UID = uid.Attestation(uid.Fields{
		Schema:         a.Schema,
		Recipient:      a.Recipient,
		Attester:       a.Attester,
		Time:           a.Time,
		ExpirationTime: a.ExpirationTime,
		Revocable:      a.Revocable,
		RefUID:         a.RefUID,
		Data:           a.Data,
		Nonce:          t.nonce,
	})
	if _, exists := t.lookup(a.UID); exists {
		return record.Attestation{}, errs.New(errs.KindInvalidAttestation, "LED-ATT-007", "attestation uid collision: "+a.UID.Hex())
	}

	t.put(a)
	t.emit(event.Event{
		Type:      event.Attested,
		UID:       a.UID,
		Schema:    a.Schema,
		Attester:  a.Attester,
		Recipient: a.Recipient,
		Time:      a.Time,
	})
	return a, nil
}

// annotate prefixes a structured error's message with its batch position,
// keeping kind and rule intact.
func annotate(err error, where string) error {
	e, ok := err.(*errs.Error)
	if !ok {
		return err
	}
	cp := *e
	cp.Message = where + ": " + e.Message
	return &cp
}
