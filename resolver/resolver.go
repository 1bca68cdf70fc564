// Package resolver defines the callback contract between the ledger and the
// per-schema validation logic bound to a schema at registration time.
//
// A resolver only accepts or rejects. It observes ledger state through a
// read-only View and can never mutate the schema or attestation tables.
package resolver

import (
	"fmt"
	"math/big"

	"xdao.co/attest/errs"
	"xdao.co/attest/record"
	"xdao.co/attest/uid"
)

// View is the read-only ledger state visible to a resolver during dispatch.
// It includes records staged earlier in the same operation.
type View interface {
	GetAttestation(id uid.UID) (record.Attestation, bool)
	// IsAttestationValid reports whether id names a stored attestation.
	IsAttestationValid(id uid.UID) bool
	Now() uint64
}

// Resolver is the full capability set the ledger dispatches to.
//
// Callbacks return (false, nil) to reject; the ledger turns that into
// InvalidAttestation or InvalidRevocation. A non-nil error aborts the
// operation with the error's own kind.
type Resolver interface {
	IsPayable() bool
	OnAttest(v View, a record.Attestation, value *big.Int) (bool, error)
	OnMultiAttest(v View, as []record.Attestation, values []*big.Int) (bool, error)
	OnRevoke(v View, a record.Attestation, value *big.Int) (bool, error)
	OnMultiRevoke(v View, as []record.Attestation, values []*big.Int) (bool, error)
}

// Hooks is the single-item subset a concrete resolver must provide.
type Hooks interface {
	IsPayable() bool
	OnAttest(v View, a record.Attestation, value *big.Int) (bool, error)
	OnRevoke(v View, a record.Attestation, value *big.Int) (bool, error)
}

// Batcher is implemented by hooks that dispatch a whole batch themselves.
type Batcher interface {
	OnMultiAttest(v View, as []record.Attestation, values []*big.Int) (bool, error)
	OnMultiRevoke(v View, as []record.Attestation, values []*big.Int) (bool, error)
}

// New returns h as a Resolver. Unless h also implements Batcher, the batch
// callbacks fold the single-item hook over every element and accept only if
// every element is accepted.
func New(h Hooks) Resolver {
	if r, ok := h.(Resolver); ok {
		return r
	}
	return folding{h}
}

type folding struct {
	Hooks
}

func (f folding) OnMultiAttest(v View, as []record.Attestation, values []*big.Int) (bool, error) {
	return Fold(v, as, values, f.Hooks.OnAttest)
}

func (f folding) OnMultiRevoke(v View, as []record.Attestation, values []*big.Int) (bool, error) {
	return Fold(v, as, values, f.Hooks.OnRevoke)
}

// Fold applies fn to each (attestation, value) pair in order and stops at
// the first rejection or error.
func Fold(v View, as []record.Attestation, values []*big.Int, fn func(View, record.Attestation, *big.Int) (bool, error)) (bool, error) {
	if len(as) != len(values) {
		return false, errs.New(errs.KindInvalidLength, "RES-BATCH-001",
			fmt.Sprintf("attestations and values differ in length: %d != %d", len(as), len(values)))
	}
	for i := range as {
		ok, err := fn(v, as[i], values[i])
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// ToBytes32 reads the 32-byte word at data[start:start+32].
func ToBytes32(data []byte, start int) ([32]byte, error) {
	var out [32]byte
	if start < 0 || start > len(data) || len(data)-start < 32 {
		return out, errs.New(errs.KindOutOfBounds, "RES-DATA-001",
			fmt.Sprintf("cannot read 32 bytes at offset %d of %d-byte payload", start, len(data)))
	}
	copy(out[:], data[start:start+32])
	return out, nil
}

// acceptRevoke is embedded by resolvers whose revocation hook never rejects.
type acceptRevoke struct{}

func (acceptRevoke) OnRevoke(View, record.Attestation, *big.Int) (bool, error) { return true, nil }

type notPayable struct{}

func (notPayable) IsPayable() bool { return false }
