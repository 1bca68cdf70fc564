package model

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"xdao.co/attest/uid"
)

const envelopeDomain = "xdao-attest/envelope/v1"

// Envelope carries a mutating request together with the caller's signature.
// The signer's address becomes the attester (or revoker) of the request.
type Envelope struct {
	Method string          `json:"method"`
	Body   json.RawMessage `json:"body"`
	// Nonce makes every envelope single-use.
	Nonce string `json:"nonce"`
	// Expires is the unix time after which the envelope is refused.
	Expires   uint64        `json:"expires"`
	Signature hexutil.Bytes `json:"signature"`
}

// SigningDigest is the Keccak-256 hash the signature covers. It binds the
// method, nonce, expiry and exact body bytes.
func (e Envelope) SigningDigest() [32]byte {
	return uid.NewEncoder(envelopeDomain).
		String(e.Method).
		String(e.Nonce).
		Uint64(e.Expires).
		Blob(e.Body).
		Sum()
}
