package model

import (
	"math/big"
	"strings"

	"github.com/samber/lo"

	"xdao.co/attest/ledger"
	"xdao.co/attest/record"
)

func FromSchema(s record.Schema) Schema {
	return Schema{UID: s.UID, Resolver: s.Resolver, Revocable: s.Revocable, Schema: s.Schema}
}

func FromAttestation(a record.Attestation) Attestation {
	return Attestation{
		UID:            a.UID,
		Schema:         a.Schema,
		Time:           a.Time,
		ExpirationTime: a.ExpirationTime,
		RevocationTime: a.RevocationTime,
		RefUID:         a.RefUID,
		Recipient:      a.Recipient,
		Attester:       a.Attester,
		Revocable:      a.Revocable,
		Data:           append([]byte(nil), a.Data...),
		Value:          record.ValueOrZero(a.Value).String(),
	}
}

// ParseValue decodes a decimal amount. The empty string is zero.
func ParseValue(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, NewError(ErrInvalidRequest, "value must be a non-negative decimal integer: "+s)
	}
	return v, nil
}

func FormatValue(v *big.Int) string {
	if v == nil || v.Sign() == 0 {
		return ""
	}
	return v.String()
}

func (d AttestationRequestData) ToLedger() (ledger.AttestationRequestData, error) {
	v, err := ParseValue(d.Value)
	if err != nil {
		return ledger.AttestationRequestData{}, err
	}
	return ledger.AttestationRequestData{
		Recipient:      d.Recipient,
		ExpirationTime: d.ExpirationTime,
		Revocable:      d.Revocable,
		RefUID:         d.RefUID,
		Data:           append([]byte(nil), d.Data...),
		Value:          v,
	}, nil
}

func FromLedgerAttestationData(d ledger.AttestationRequestData) AttestationRequestData {
	return AttestationRequestData{
		Recipient:      d.Recipient,
		ExpirationTime: d.ExpirationTime,
		Revocable:      d.Revocable,
		RefUID:         d.RefUID,
		Data:           append([]byte(nil), d.Data...),
		Value:          FormatValue(d.Value),
	}
}

func (r AttestationRequest) ToLedger() (ledger.AttestationRequest, error) {
	d, err := r.Data.ToLedger()
	if err != nil {
		return ledger.AttestationRequest{}, err
	}
	return ledger.AttestationRequest{Schema: r.Schema, Data: d}, nil
}

func MultiAttestToLedger(groups []MultiAttestationRequest) ([]ledger.MultiAttestationRequest, error) {
	out := make([]ledger.MultiAttestationRequest, 0, len(groups))
	for _, g := range groups {
		data := make([]ledger.AttestationRequestData, 0, len(g.Data))
		for _, d := range g.Data {
			ld, err := d.ToLedger()
			if err != nil {
				return nil, err
			}
			data = append(data, ld)
		}
		out = append(out, ledger.MultiAttestationRequest{Schema: g.Schema, Data: data})
	}
	return out, nil
}

func MultiAttestFromLedger(groups []ledger.MultiAttestationRequest) []MultiAttestationRequest {
	return lo.Map(groups, func(g ledger.MultiAttestationRequest, _ int) MultiAttestationRequest {
		return MultiAttestationRequest{Schema: g.Schema, Data: lo.Map(g.Data, func(d ledger.AttestationRequestData, _ int) AttestationRequestData {
			return FromLedgerAttestationData(d)
		})}
	})
}

func (d RevocationRequestData) ToLedger() (ledger.RevocationRequestData, error) {
	v, err := ParseValue(d.Value)
	if err != nil {
		return ledger.RevocationRequestData{}, err
	}
	return ledger.RevocationRequestData{UID: d.UID, Value: v}, nil
}

func (r RevocationRequest) ToLedger() (ledger.RevocationRequest, error) {
	d, err := r.Data.ToLedger()
	if err != nil {
		return ledger.RevocationRequest{}, err
	}
	return ledger.RevocationRequest{Schema: r.Schema, Data: d}, nil
}

func MultiRevokeToLedger(groups []MultiRevocationRequest) ([]ledger.MultiRevocationRequest, error) {
	out := make([]ledger.MultiRevocationRequest, 0, len(groups))
	for _, g := range groups {
		data := make([]ledger.RevocationRequestData, 0, len(g.Data))
		for _, d := range g.Data {
			ld, err := d.ToLedger()
			if err != nil {
				return nil, err
			}
			data = append(data, ld)
		}
		out = append(out, ledger.MultiRevocationRequest{Schema: g.Schema, Data: data})
	}
	return out, nil
}

func MultiRevokeFromLedger(groups []ledger.MultiRevocationRequest) []MultiRevocationRequest {
	return lo.Map(groups, func(g ledger.MultiRevocationRequest, _ int) MultiRevocationRequest {
		return MultiRevocationRequest{Schema: g.Schema, Data: lo.Map(g.Data, func(d ledger.RevocationRequestData, _ int) RevocationRequestData {
			return RevocationRequestData{UID: d.UID, Value: FormatValue(d.Value)}
		})}
	})
}
