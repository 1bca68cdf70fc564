// Package storage defines the content-addressed archive the ledger writes
// committed attestation records into.
package storage

import "github.com/ipfs/go-cid"

// CAS is a content-addressable blob store keyed by cidutil.BlobCID.
//
// Contract:
//   - Put is idempotent and returns the CID of the bytes written.
//   - Stored objects are immutable.
//   - Get returns ErrNotFound when the CID is absent, and never returns bytes
//     that do not hash to the requested CID.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}

// Lister is implemented by stores that can enumerate their contents.
type Lister interface {
	// List returns every stored CID in ascending string order.
	List() ([]cid.Cid, error)
}
