package keys

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SeedSize is the length of a secp256k1 private scalar.
const SeedSize = 32

const roleDomain = "xdao-attest-kms-lite-v1"

// PrivateKeyFromSeed validates seed as a secp256k1 scalar.
func PrivateKeyFromSeed(seed []byte) (*ecdsa.PrivateKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", SeedSize, len(seed))
	}
	return crypto.ToECDSA(seed)
}

// AddressFromSeed returns the address controlled by seed.
func AddressFromSeed(seed []byte) (common.Address, error) {
	key, err := PrivateKeyFromSeed(seed)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// DeriveRoleSeed deterministically derives a role key from a root key.
// The derivation is keccak256(root || 0 || domain || 0 || "role:" || role ||
// counter), retried with the next counter in the negligible case the digest
// is not a valid scalar.
func DeriveRoleSeed(rootSeed []byte, role string) ([]byte, error) {
	if len(rootSeed) != SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", SeedSize)
	}
	if err := checkName("role", role); err != nil {
		return nil, err
	}
	for counter := byte(0); counter < 8; counter++ {
		sum := crypto.Keccak256(rootSeed, []byte{0}, []byte(roleDomain), []byte{0}, []byte("role:"+role), []byte{counter})
		if _, err := crypto.ToECDSA(sum); err == nil {
			return sum, nil
		}
	}
	return nil, fmt.Errorf("could not derive a valid key for role %q", role)
}
