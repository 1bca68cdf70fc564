package resolver

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"xdao.co/attest/record"
	"xdao.co/attest/uid"
)

// AttestationRef accepts an attestation only if the first 32 bytes of its
// data name an attestation already in the ledger. A payload shorter than 32
// bytes fails with OutOfBounds.
type AttestationRef struct {
	notPayable
	acceptRevoke
}

func (AttestationRef) OnAttest(v View, a record.Attestation, _ *big.Int) (bool, error) {
	ref, err := ToBytes32(a.Data, 0)
	if err != nil {
		return false, err
	}
	return v.IsAttestationValid(uid.UID(ref)), nil
}

// Recipient accepts attestations addressed to Target.
type Recipient struct {
	notPayable
	acceptRevoke
	Target common.Address
}

func (r Recipient) OnAttest(_ View, a record.Attestation, _ *big.Int) (bool, error) {
	return a.Recipient == r.Target, nil
}

// Attester accepts attestations issued by Target.
type Attester struct {
	notPayable
	acceptRevoke
	Target common.Address
}

func (r Attester) OnAttest(_ View, a record.Attestation, _ *big.Int) (bool, error) {
	return a.Attester == r.Target, nil
}

// Expiration requires an expiration time of at least Threshold. Attestations
// that never expire (zero) are rejected.
type Expiration struct {
	notPayable
	acceptRevoke
	Threshold uint64
}

func (r Expiration) OnAttest(_ View, a record.Attestation, _ *big.Int) (bool, error) {
	return a.ExpirationTime >= r.Threshold, nil
}

// Data accepts only payloads equal to one of Allowed.
type Data struct {
	notPayable
	acceptRevoke
	Allowed [][]byte
}

// NewBoolData accepts the single-byte payloads 0x00 and 0x01.
func NewBoolData() Data {
	return Data{Allowed: [][]byte{{0x00}, {0x01}}}
}

func (r Data) OnAttest(_ View, a record.Attestation, _ *big.Int) (bool, error) {
	for _, allowed := range r.Allowed {
		if bytes.Equal(a.Data, allowed) {
			return true, nil
		}
	}
	return false, nil
}

// Value is payable and accepts an attestation only when exactly Target is
// attached.
type Value struct {
	acceptRevoke
	Target *big.Int
}

func (Value) IsPayable() bool { return true }

func (r Value) OnAttest(_ View, _ record.Attestation, value *big.Int) (bool, error) {
	return record.ValueOrZero(value).Cmp(record.ValueOrZero(r.Target)) == 0, nil
}

// Revocation accepts every attestation and gates revocations on a switch
// that can be flipped at runtime.
type Revocation struct {
	notPayable

	mu      sync.RWMutex
	enabled bool
}

func NewRevocation(enabled bool) *Revocation {
	return &Revocation{enabled: enabled}
}

// SetRevocation toggles whether revocations are accepted.
func (r *Revocation) SetRevocation(enabled bool) {
	r.mu.Lock()
	r.enabled = enabled
	r.mu.Unlock()
}

func (r *Revocation) OnAttest(View, record.Attestation, *big.Int) (bool, error) {
	return true, nil
}

func (r *Revocation) OnRevoke(View, record.Attestation, *big.Int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled, nil
}

// ABI accepts attestations whose data ABI-decodes into Args.
type ABI struct {
	notPayable
	acceptRevoke
	Args abi.Arguments
}

// NewABI builds an ABI resolver from a schema-style field list such as
// "bytes32 eventId,uint8 ticketType,uint32 ticketNum". Field names are
// optional.
func NewABI(fields string) (*ABI, error) {
	var args abi.Arguments
	for i, field := range strings.Split(fields, ",") {
		parts := strings.Fields(field)
		if len(parts) == 0 || len(parts) > 2 {
			return nil, fmt.Errorf("resolver: malformed field %d in %q", i, fields)
		}
		typ, err := abi.NewType(parts[0], "", nil)
		if err != nil {
			return nil, fmt.Errorf("resolver: field %d: %w", i, err)
		}
		arg := abi.Argument{Type: typ}
		if len(parts) == 2 {
			arg.Name = parts[1]
		}
		args = append(args, arg)
	}
	return &ABI{Args: args}, nil
}

func (r *ABI) OnAttest(_ View, a record.Attestation, _ *big.Int) (bool, error) {
	if _, err := r.Args.Unpack(a.Data); err != nil {
		return false, nil
	}
	return true, nil
}
