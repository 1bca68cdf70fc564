package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/attest/cidutil"
)

// Named pairs a backend with the name it was configured under.
type Named struct {
	Name string
	CAS  CAS
}

// Mirror spreads one archive over several backends. Reads try backends in
// order. With WriteAll unset only the first backend receives writes;
// otherwise every backend must accept the write and agree on its CID.
type Mirror struct {
	Backends []Named
	WriteAll bool
}

var _ CAS = Mirror{}

func (m Mirror) Put(bytes []byte) (cid.Cid, error) {
	if len(m.Backends) == 0 {
		return cid.Undef, ErrNoBackends
	}
	if !m.WriteAll {
		return m.Backends[0].CAS.Put(bytes)
	}

	want, err := cidutil.BlobCID(bytes)
	if err != nil {
		return cid.Undef, err
	}
	for _, b := range m.Backends {
		if b.CAS == nil {
			return cid.Undef, fmt.Errorf("storage: nil backend %q", b.Name)
		}
		got, err := b.CAS.Put(bytes)
		if err != nil {
			return cid.Undef, fmt.Errorf("storage: backend %q: %w", b.Name, err)
		}
		if got != want {
			return cid.Undef, fmt.Errorf("storage: backend %q: %w", b.Name, ErrCIDMismatch)
		}
	}
	return want, nil
}

func (m Mirror) Get(id cid.Cid) ([]byte, error) {
	for _, b := range m.Backends {
		if b.CAS == nil {
			continue
		}
		out, err := b.CAS.Get(id)
		if err == nil {
			return out, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (m Mirror) Has(id cid.Cid) bool {
	for _, b := range m.Backends {
		if b.CAS != nil && b.CAS.Has(id) {
			return true
		}
	}
	return false
}
