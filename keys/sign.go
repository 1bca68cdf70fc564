package keys

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"xdao.co/attest/model"
)

// Sign returns a 65-byte [R || S || V] signature over a 32-byte digest.
func Sign(digest []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, errors.New("missing private key")
	}
	return crypto.Sign(digest, key)
}

// Recover returns the address that produced sig over digest.
func Recover(digest, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignEnvelope fills env.Signature.
func SignEnvelope(env *model.Envelope, key *ecdsa.PrivateKey) error {
	d := env.SigningDigest()
	sig, err := Sign(d[:], key)
	if err != nil {
		return err
	}
	env.Signature = sig
	return nil
}

// EnvelopeSigner recovers the address that signed env.
func EnvelopeSigner(env model.Envelope) (common.Address, error) {
	d := env.SigningDigest()
	return Recover(d[:], env.Signature)
}
