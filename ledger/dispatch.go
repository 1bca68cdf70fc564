package ledger

import (
	"errors"
	"math/big"

	"github.com/samber/lo"

	"xdao.co/attest/errs"
	"xdao.co/attest/record"
	"xdao.co/attest/resolver"
)

// boundResolver returns the handler for s, or nil when s has no resolver.
// A schema naming an address with nothing bound to it is unusable.
func (t *tx) boundResolver(s record.Schema, ruleID string) (resolver.Resolver, error) {
	if !s.HasResolver() {
		return nil, nil
	}
	r, ok := t.l.resolvers.Lookup(s.Resolver)
	if !ok {
		return nil, errs.New(errs.KindInvalidSchema, ruleID, "no resolver bound at "+s.Resolver.Hex()+" for schema "+s.UID.Hex())
	}
	return r, nil
}

// resolve runs the payability checks and dispatches one schema group to its
// resolver. A group of one goes through the single-item callback. Accepted
// value is credited to the resolver in the overlay.
func (t *tx) resolve(s record.Schema, r resolver.Resolver, atts []record.Attestation, values []*big.Int, revocation bool) error {
	if len(atts) == 0 {
		return nil
	}
	attached := lo.ContainsBy(values, func(v *big.Int) bool { return v != nil && v.Sign() != 0 })

	if r == nil {
		if attached {
			return errs.New(errs.KindNotPayable, "LED-PAY-001", "schema "+s.UID.Hex()+" has no resolver to receive value")
		}
		return nil
	}
	if attached && !r.IsPayable() {
		return errs.New(errs.KindNotPayable, "LED-PAY-002", "resolver "+s.Resolver.Hex()+" is not payable")
	}

	views := lo.Map(atts, func(a record.Attestation, _ int) record.Attestation { return a.Clone() })
	vals := lo.Map(values, func(v *big.Int, _ int) *big.Int { return new(big.Int).Set(record.ValueOrZero(v)) })

	var (
		ok  bool
		err error
	)
	switch {
	case len(views) == 1 && !revocation:
		ok, err = r.OnAttest(t, views[0], vals[0])
	case len(views) == 1:
		ok, err = r.OnRevoke(t, views[0], vals[0])
	case !revocation:
		ok, err = r.OnMultiAttest(t, views, vals)
	default:
		ok, err = r.OnMultiRevoke(t, views, vals)
	}
	if err != nil {
		var structured *errs.Error
		if errors.As(err, &structured) {
			return err
		}
		return errs.Wrap(errs.KindInternal, "LED-RES-001", "resolver "+s.Resolver.Hex()+" failed", err)
	}
	if !ok {
		if revocation {
			return errs.New(errs.KindInvalidRevocation, "LED-RES-003", "rejected by resolver "+s.Resolver.Hex())
		}
		return errs.New(errs.KindInvalidAttestation, "LED-RES-002", "rejected by resolver "+s.Resolver.Hex())
	}

	total := lo.Reduce(values, func(acc *big.Int, v *big.Int, _ int) *big.Int {
		return acc.Add(acc, record.ValueOrZero(v))
	}, new(big.Int))
	t.credit(s.Resolver, total)
	return nil
}
