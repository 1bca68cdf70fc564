package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"xdao.co/attest/compliance"
	"xdao.co/attest/record"
	"xdao.co/attest/resolver"
	"xdao.co/attest/schema"
	"xdao.co/attest/uid"
)

// Validate rejects duplicate bindings or schemas, unknown resolver kinds,
// malformed addresses, and schemas naming an unbound resolver.
func (f File) Validate() error {
	if _, err := compliance.Parse(f.Compliance); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	bound := make(map[common.Address]struct{}, len(f.Resolvers))
	for i, b := range f.Resolvers {
		addr, err := parseAddress(fmt.Sprintf("resolvers[%d].address", i), b.Address)
		if err != nil {
			return err
		}
		if addr == record.NoResolver {
			return fmt.Errorf("config: resolvers[%d]: the zero address cannot be bound", i)
		}
		if _, dup := bound[addr]; dup {
			return fmt.Errorf("config: resolvers[%d]: duplicate binding for %s", i, addr.Hex())
		}
		if !lo.Contains(resolver.Kinds(), b.Kind) {
			return fmt.Errorf("config: resolvers[%d]: unknown kind %q", i, b.Kind)
		}
		bound[addr] = struct{}{}
	}

	seen := make(map[uid.UID]struct{}, len(f.Schemas))
	for i, s := range f.Schemas {
		addr, err := s.resolver(i)
		if err != nil {
			return err
		}
		if _, ok := bound[addr]; addr != record.NoResolver && !ok {
			return fmt.Errorf("config: schemas[%d]: resolver %s is not bound", i, addr.Hex())
		}
		id := uid.Schema(s.Schema, addr, s.Revocable)
		if _, dup := seen[id]; dup {
			return fmt.Errorf("config: schemas[%d]: duplicate schema %s", i, id.Hex())
		}
		seen[id] = struct{}{}
	}

	if f.Archive != nil {
		if err := f.Archive.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

func (s GenesisSchema) resolver(i int) (common.Address, error) {
	if strings.TrimSpace(s.Resolver) == "" {
		return record.NoResolver, nil
	}
	return parseAddress(fmt.Sprintf("schemas[%d].resolver", i), s.Resolver)
}

// BindResolvers builds and binds every declared resolver.
func (f File) BindResolvers(dir *resolver.Directory) error {
	for i, b := range f.Resolvers {
		addr, err := parseAddress(fmt.Sprintf("resolvers[%d].address", i), b.Address)
		if err != nil {
			return err
		}
		r, err := resolver.Build(b.Kind, b.Params)
		if err != nil {
			return fmt.Errorf("config: resolvers[%d]: %w", i, err)
		}
		if err := dir.Bind(addr, r); err != nil {
			return fmt.Errorf("config: resolvers[%d]: %w", i, err)
		}
	}
	return nil
}

// RegisterSchemas registers the genesis schemas in file order.
func (f File) RegisterSchemas(reg *schema.Registry) ([]uid.UID, error) {
	out := make([]uid.UID, 0, len(f.Schemas))
	for i, s := range f.Schemas {
		addr, err := s.resolver(i)
		if err != nil {
			return nil, err
		}
		id, err := reg.Register(s.Schema, addr, s.Revocable)
		if err != nil {
			return nil, fmt.Errorf("config: schemas[%d]: %w", i, err)
		}
		out = append(out, id)
	}
	return out, nil
}
