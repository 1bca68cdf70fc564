// Package memory is an in-process CAS used by tests and by daemons that do
// not need the archive to outlive the process.
package memory

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/attest/cidutil"
	"xdao.co/attest/storage"
)

type CAS struct {
	mu    sync.RWMutex
	blobs map[cid.Cid][]byte
}

func New() *CAS {
	return &CAS{blobs: make(map[cid.Cid][]byte)}
}

func (c *CAS) Put(b []byte) (cid.Cid, error) {
	id, err := cidutil.BlobCID(b)
	if err != nil {
		return cid.Undef, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.blobs[id]; ok {
		if !bytes.Equal(existing, b) {
			return cid.Undef, storage.ErrImmutable
		}
		return id, nil
	}
	c.blobs[id] = append([]byte(nil), b...)
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	c.mu.RLock()
	b, ok := c.blobs[id]
	c.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.blobs[id]
	return ok
}

func (c *CAS) List() ([]cid.Cid, error) {
	c.mu.RLock()
	out := make([]cid.Cid, 0, len(c.blobs))
	for id := range c.blobs {
		out = append(out, id)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (c *CAS) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blobs)
}
