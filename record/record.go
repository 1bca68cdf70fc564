// Package record holds the two ledger entities: schemas and attestations.
//
// Records are plain values. Only the schema registry creates Schema records
// and only the ledger creates or mutates Attestation records; everything else
// receives copies.
package record

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"xdao.co/attest/uid"
)

// NoResolver is the sentinel resolver address meaning "no resolver bound".
var NoResolver = common.Address{}

// Schema is an immutable, registered claim template.
type Schema struct {
	UID       uid.UID
	Resolver  common.Address
	Revocable bool
	Schema    string
}

func (s Schema) HasResolver() bool { return s.Resolver != NoResolver }

// Attestation is a claim made under a schema.
//
// ExpirationTime 0 means "never expires"; RevocationTime 0 means "active".
type Attestation struct {
	UID            uid.UID
	Schema         uid.UID
	Time           uint64
	ExpirationTime uint64
	RevocationTime uint64
	RefUID         uid.UID
	Recipient      common.Address
	Attester       common.Address
	Revocable      bool
	Data           []byte
	Value          *big.Int
}

func (a Attestation) IsRevoked() bool { return a.RevocationTime != 0 }

// IsExpired reports whether the attestation had expired at now.
func (a Attestation) IsExpired(now uint64) bool {
	return a.ExpirationTime != 0 && a.ExpirationTime <= now
}

// IsActive reports whether the attestation is neither revoked nor expired at now.
func (a Attestation) IsActive(now uint64) bool {
	return !a.IsRevoked() && !a.IsExpired(now)
}

// Clone returns a deep copy; Data and Value are never shared.
func (a Attestation) Clone() Attestation {
	out := a
	out.Data = bytes.Clone(a.Data)
	out.Value = ValueOrZero(a.Value)
	return out
}

// ValueOrZero returns a copy of v, or a new zero for nil.
func ValueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
