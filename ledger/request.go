package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"xdao.co/attest/uid"
)

// AttestationRequestData is the caller-supplied part of a new attestation.
// The attester is the caller; the time comes from the ledger clock.
type AttestationRequestData struct {
	Recipient      common.Address
	ExpirationTime uint64 // 0 = never
	Revocable      bool
	RefUID         uid.UID // zero = no reference
	Data           []byte
	Value          *big.Int // nil = 0
}

type AttestationRequest struct {
	Schema uid.UID
	Data   AttestationRequestData
}

// MultiAttestationRequest is one schema group of a MultiAttest call.
type MultiAttestationRequest struct {
	Schema uid.UID
	Data   []AttestationRequestData
}

type RevocationRequestData struct {
	UID   uid.UID
	Value *big.Int
}

type RevocationRequest struct {
	Schema uid.UID
	Data   RevocationRequestData
}

// MultiRevocationRequest is one schema group of a MultiRevoke call.
type MultiRevocationRequest struct {
	Schema uid.UID
	Data   []RevocationRequestData
}
