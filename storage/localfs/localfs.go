// Package localfs archives records as read-only files under a root
// directory, sharded by the first two characters of the CID string.
package localfs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/ipfs/go-cid"

	"xdao.co/attest/cidutil"
	"xdao.co/attest/storage"
)

// CAS is a filesystem-backed storage.CAS. Objects are written once with
// mode 0444 and verified against their CID on every read.
type CAS struct {
	root string
}

// New constructs a filesystem CAS rooted at root. The directory will be created if needed.
func New(root string) (*CAS, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &CAS{root: root}, nil
}

func (c *CAS) Put(b []byte) (cid.Cid, error) {
	id, err := cidutil.BlobCID(b)
	if err != nil {
		return cid.Undef, err
	}
	path := c.pathFor(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cid.Undef, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if os.IsExist(err) {
		// Get re-verifies the stored bytes; anything unreadable or
		// mismatched means the object was altered out of band.
		if _, rerr := c.Get(id); rerr != nil {
			return cid.Undef, storage.ErrImmutable
		}
		return id, nil
	}
	if err != nil {
		return cid.Undef, err
	}

	_, werr := f.Write(b)
	if werr == nil {
		werr = f.Sync()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(path)
		return cid.Undef, werr
	}
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	path := c.pathFor(id)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	got, err := cidutil.BlobCID(b)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := os.Stat(c.pathFor(id))
	return err == nil
}

func (c *CAS) pathFor(id cid.Cid) string {
	s := id.String()
	if len(s) < 2 {
		return filepath.Join(c.root, s)
	}
	return filepath.Join(c.root, s[:2], s)
}

// List walks the root and returns every stored CID in ascending order.
// Files whose names do not parse as CIDs are skipped.
func (c *CAS) List() ([]cid.Cid, error) {
	var out []cid.Cid
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		id, perr := cid.Decode(d.Name())
		if perr != nil {
			return nil
		}
		out = append(out, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// Root returns the directory the store writes under.
func (c *CAS) Root() string { return c.root }
