// Package uid derives the content-addressed identifiers of schemas and
// attestations.
//
// A UID is keccak-256 over a canonical, length-prefixed encoding of an
// entity's immutable fields (see Encoder). Derivation is pure: the same
// fields always give the same UID and distinct field tuples give distinct
// UIDs with overwhelming probability.
package uid

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipfs/go-cid"
	"golang.org/x/crypto/sha3"

	"xdao.co/attest/cidutil"
)

// Size is the width of a UID in bytes.
const Size = 32

const (
	domainSchema      = "xdao-attest/schema/v1"
	domainAttestation = "xdao-attest/attestation/v1"
)

// UID is a 32-byte content-derived identifier. The zero value means "none".
type UID [Size]byte

// Zero is the "no UID" sentinel.
var Zero UID

func (u UID) IsZero() bool { return u == Zero }

func (u UID) Bytes() []byte { return u[:] }

func (u UID) Hex() string { return "0x" + hex.EncodeToString(u[:]) }

func (u UID) String() string { return u.Hex() }

// CID renders the UID as a CIDv1 wrapping the keccak-256 digest.
func (u UID) CID() cid.Cid {
	id, err := cidutil.FromKeccak256(u[:])
	if err != nil {
		// FromKeccak256 only fails on a wrong digest length.
		return cid.Undef
	}
	return id
}

func (u UID) MarshalText() ([]byte, error) { return []byte(u.Hex()), nil }

// UnmarshalText accepts the empty string as Zero.
func (u *UID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*u = Zero
		return nil
	}
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// Parse decodes a 0x-prefixed (or bare) 64-char hex string.
func Parse(s string) (UID, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != 2*Size {
		return Zero, fmt.Errorf("uid: expected %d hex chars, got %d", 2*Size, len(s))
	}
	var u UID
	if _, err := hex.Decode(u[:], []byte(s)); err != nil {
		return Zero, fmt.Errorf("uid: %w", err)
	}
	return u, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) UID {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// FromBytes copies b into a UID; b must be exactly Size bytes.
func FromBytes(b []byte) (UID, error) {
	if len(b) != Size {
		return Zero, fmt.Errorf("uid: expected %d bytes, got %d", Size, len(b))
	}
	var u UID
	copy(u[:], b)
	return u, nil
}

// FromCID reverses UID.CID.
func FromCID(id cid.Cid) (UID, error) {
	d, err := cidutil.Keccak256Digest(id)
	if err != nil {
		return Zero, err
	}
	return FromBytes(d)
}

// Keccak256 hashes b with legacy Keccak-256 (the EVM hash).
func Keccak256(b []byte) UID {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(b)
	var u UID
	h.Sum(u[:0])
	return u
}

// Schema derives a schema UID from (schema string, resolver, revocable).
func Schema(schema string, resolver common.Address, revocable bool) UID {
	return NewEncoder(domainSchema).
		String(schema).
		Address(resolver).
		Bool(revocable).
		Sum()
}

// Fields are the canonical inputs of an attestation UID.
//
// Nonce is the ledger's attestation sequence number; it separates otherwise
// identical requests made at the same time.
type Fields struct {
	Schema         UID
	Recipient      common.Address
	Attester       common.Address
	Time           uint64
	ExpirationTime uint64
	Revocable      bool
	RefUID         UID
	Data           []byte
	Nonce          uint64
}

// Encode returns the canonical encoding of f.
func (f Fields) Encode() []byte {
	return f.encoder().Encoded()
}

func (f Fields) encoder() *Encoder {
	return NewEncoder(domainAttestation).
		Bytes32(f.Schema).
		Address(f.Recipient).
		Address(f.Attester).
		Uint64(f.Time).
		Uint64(f.ExpirationTime).
		Bool(f.Revocable).
		Bytes32(f.RefUID).
		Blob(f.Data).
		Uint64(f.Nonce)
}

// Attestation derives an attestation UID.
func Attestation(f Fields) UID {
	return f.encoder().Sum()
}
