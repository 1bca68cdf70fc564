// Package testkit holds the conformance suite every storage.CAS backend runs.
package testkit

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipfs/go-cid"

	"xdao.co/attest/cidutil"
	"xdao.co/attest/record"
	"xdao.co/attest/storage"
	"xdao.co/attest/uid"
)

// NewCAS constructs a fresh, empty CAS isolated from other tests.
type NewCAS func(t *testing.T) storage.CAS

func RunCASConformance(t *testing.T, newCAS NewCAS) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		cas := newCAS(t)
		want := []byte("hello, attestation archive")

		id, err := cas.Put(want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		wantID, err := cidutil.BlobCID(want)
		if err != nil {
			t.Fatalf("BlobCID failed: %v", err)
		}
		if id != wantID {
			t.Fatalf("Put CID mismatch: got %s want %s", id, wantID)
		}

		got, err := cas.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("same bytes")

		id1, err := cas.Put(b)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		id2, err := cas.Put(b)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if id1 != id2 {
			t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("missing")
		id, err := cidutil.BlobCID(b)
		if err != nil {
			t.Fatalf("BlobCID failed: %v", err)
		}

		if cas.Has(id) {
			t.Fatalf("Has returned true for missing CID")
		}
		if _, err := cas.Get(id); !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}
		if _, err := cas.Put(b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !cas.Has(id) {
			t.Fatalf("Has returned false after Put")
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		cas := newCAS(t)
		var undef cid.Cid
		if cas.Has(undef) {
			t.Fatalf("Has should be false for undefined CID")
		}
		if _, err := cas.Get(undef); err == nil {
			t.Fatalf("Get should fail for undefined CID")
		}
	})

	t.Run("ArchivedRecordDecodes", func(t *testing.T) {
		cas := newCAS(t)
		a := record.Attestation{
			UID:       uid.Keccak256([]byte("archived")),
			Schema:    uid.Schema("bool isFriend", record.NoResolver, true),
			Time:      1700000000,
			Attester:  common.HexToAddress("0x00000000000000000000000000000000000000a7"),
			Revocable: true,
			Data:      []byte{0x01},
			Value:     big.NewInt(7),
		}
		id, err := cas.Put(record.Encode(a))
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		b, err := cas.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		got, err := record.Decode(b)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got.UID != a.UID || got.Value.Cmp(a.Value) != 0 {
			t.Fatalf("decoded record mismatch: %+v", got)
		}
	})

	t.Run("ListSorted", func(t *testing.T) {
		cas := newCAS(t)
		lister, ok := cas.(storage.Lister)
		if !ok {
			t.Skip("backend does not implement storage.Lister")
		}
		for _, s := range []string{"c", "a", "b"} {
			if _, err := cas.Put([]byte(s)); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
		}
		ids, err := lister.List()
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(ids) != 3 {
			t.Fatalf("List: got %d ids", len(ids))
		}
		for i := 1; i < len(ids); i++ {
			if ids[i-1].String() >= ids[i].String() {
				t.Fatalf("List not sorted at %d", i)
			}
		}
	})
}
