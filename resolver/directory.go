package resolver

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"xdao.co/attest/errs"
	"xdao.co/attest/record"
)

// Directory maps resolver addresses to their handlers. Schemas name a
// resolver by address; the ledger looks the handler up here on dispatch.
type Directory struct {
	mu sync.RWMutex
	m  map[common.Address]Resolver
}

func NewDirectory() *Directory {
	return &Directory{m: make(map[common.Address]Resolver)}
}

// Bind installs r at addr. Bindings are permanent.
func (d *Directory) Bind(addr common.Address, r Resolver) error {
	if addr == record.NoResolver {
		return errs.New(errs.KindInvalidSchema, "RES-DIR-001", "cannot bind a resolver to the zero address")
	}
	if r == nil {
		return errs.New(errs.KindInvalidSchema, "RES-DIR-002", "nil resolver for "+addr.Hex())
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.m[addr]; exists {
		return errs.New(errs.KindAlreadyExists, "RES-DIR-003", "resolver already bound at "+addr.Hex())
	}
	d.m[addr] = r
	return nil
}

func (d *Directory) Lookup(addr common.Address) (Resolver, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.m[addr]
	return r, ok
}

// Addresses returns every bound address in ascending order.
func (d *Directory) Addresses() []common.Address {
	d.mu.RLock()
	out := make([]common.Address, 0, len(d.m))
	for a := range d.m {
		out = append(out, a)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// Kinds accepted by Build.
const (
	KindAttestationRef = "attestation-ref"
	KindRecipient      = "recipient"
	KindAttester       = "attester"
	KindExpiration     = "expiration"
	KindData           = "data"
	KindValue          = "value"
	KindRevocation     = "revocation"
	KindABI            = "abi"
)

func Kinds() []string {
	return []string{KindABI, KindAttestationRef, KindAttester, KindData, KindExpiration, KindRecipient, KindRevocation, KindValue}
}

// Build constructs a resolver from a configuration entry.
//
// Parameters by kind:
//
//	recipient, attester: target (hex address)
//	expiration:          threshold (unix seconds)
//	data:                allowed (comma-separated hex payloads; default 0x00,0x01)
//	value:               target (decimal)
//	revocation:          enabled (bool, default true)
//	abi:                 fields (e.g. "bytes32 eventId,uint8 ticketType")
func Build(kind string, params map[string]string) (Resolver, error) {
	switch kind {
	case KindAttestationRef:
		return New(AttestationRef{}), nil
	case KindRecipient, KindAttester:
		addr, err := addressParam(kind, params, "target")
		if err != nil {
			return nil, err
		}
		if kind == KindRecipient {
			return New(Recipient{Target: addr}), nil
		}
		return New(Attester{Target: addr}), nil
	case KindExpiration:
		n, err := strconv.ParseUint(params["threshold"], 10, 64)
		if err != nil {
			return nil, buildErr(kind, "threshold", err)
		}
		return New(Expiration{Threshold: n}), nil
	case KindData:
		raw := strings.TrimSpace(params["allowed"])
		if raw == "" {
			return New(NewBoolData()), nil
		}
		var allowed [][]byte
		for _, s := range strings.Split(raw, ",") {
			b, err := hexutil.Decode(strings.TrimSpace(s))
			if err != nil {
				return nil, buildErr(kind, "allowed", err)
			}
			allowed = append(allowed, b)
		}
		return New(Data{Allowed: allowed}), nil
	case KindValue:
		v, ok := new(big.Int).SetString(params["target"], 10)
		if !ok || v.Sign() < 0 {
			return nil, buildErr(kind, "target", fmt.Errorf("not a non-negative integer: %q", params["target"]))
		}
		return New(Value{Target: v}), nil
	case KindRevocation:
		enabled := true
		if s, ok := params["enabled"]; ok {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return nil, buildErr(kind, "enabled", err)
			}
			enabled = b
		}
		return New(NewRevocation(enabled)), nil
	case KindABI:
		a, err := NewABI(params["fields"])
		if err != nil {
			return nil, buildErr(kind, "fields", err)
		}
		return New(a), nil
	default:
		return nil, errs.New(errs.KindInvalidSchema, "RES-BUILD-001", "unknown resolver kind: "+kind)
	}
}

func addressParam(kind string, params map[string]string, key string) (common.Address, error) {
	s := params[key]
	if !common.IsHexAddress(s) {
		return common.Address{}, buildErr(kind, key, fmt.Errorf("not a hex address: %q", s))
	}
	return common.HexToAddress(s), nil
}

func buildErr(kind, key string, cause error) error {
	return errs.Wrap(errs.KindInvalidSchema, "RES-BUILD-002", fmt.Sprintf("%s resolver: bad %q parameter", kind, key), cause)
}
