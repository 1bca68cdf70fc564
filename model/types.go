package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"xdao.co/attest/uid"
)

type Schema struct {
	UID       uid.UID        `json:"uid"`
	Resolver  common.Address `json:"resolver"`
	Revocable bool           `json:"revocable"`
	Schema    string         `json:"schema"`
}

type SchemaRegistration struct {
	Schema    string         `json:"schema"`
	Resolver  common.Address `json:"resolver"`
	Revocable bool           `json:"revocable"`
}

type Attestation struct {
	UID            uid.UID        `json:"uid"`
	Schema         uid.UID        `json:"schema"`
	Time           uint64         `json:"time"`
	ExpirationTime uint64         `json:"expirationTime"`
	RevocationTime uint64         `json:"revocationTime"`
	RefUID         uid.UID        `json:"refUID"`
	Recipient      common.Address `json:"recipient"`
	Attester       common.Address `json:"attester"`
	Revocable      bool           `json:"revocable"`
	Data           hexutil.Bytes  `json:"data"`
	Value          string         `json:"value"`
	ArchiveCID     string         `json:"archiveCID,omitempty"`
}

type AttestationRequestData struct {
	Recipient      common.Address `json:"recipient"`
	ExpirationTime uint64         `json:"expirationTime"`
	Revocable      bool           `json:"revocable"`
	RefUID         uid.UID        `json:"refUID"`
	Data           hexutil.Bytes  `json:"data"`
	Value          string         `json:"value,omitempty"`
}

type AttestationRequest struct {
	Schema uid.UID                `json:"schema"`
	Data   AttestationRequestData `json:"data"`
}

type MultiAttestationRequest struct {
	Schema uid.UID                  `json:"schema"`
	Data   []AttestationRequestData `json:"data"`
}

type RevocationRequestData struct {
	UID   uid.UID `json:"uid"`
	Value string  `json:"value,omitempty"`
}

type RevocationRequest struct {
	Schema uid.UID               `json:"schema"`
	Data   RevocationRequestData `json:"data"`
}

type MultiRevocationRequest struct {
	Schema uid.UID                 `json:"schema"`
	Data   []RevocationRequestData `json:"data"`
}

// UIDList is the body of batch timestamp and offchain revocation calls, and
// the result of batch attestation.
type UIDList struct {
	UIDs []uid.UID `json:"uids"`
}

// UIDRef names a single record.
type UIDRef struct {
	UID uid.UID `json:"uid"`
}

// TimeResult carries the ledger time an operation was recorded at.
type TimeResult struct {
	Time uint64 `json:"time"`
}

type ValidResult struct {
	Valid bool `json:"valid"`
}

type OffchainQuery struct {
	Revoker common.Address `json:"revoker"`
	UID     uid.UID        `json:"uid"`
}

type Balance struct {
	Resolver common.Address `json:"resolver"`
	Value    string         `json:"value"`
}
