// Package cidutil maps ledger byte strings onto CIDv1 identifiers.
//
// Two shapes are used:
//   - archived record blobs: CIDv1, raw codec, sha2-256 over the bytes
//   - attestation/schema UIDs: CIDv1, raw codec, keccak-256 multihash wrapping
//     the 32-byte UID digest as-is (no re-hashing)
package cidutil

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// BlobCID returns the CID of an archived blob.
func BlobCID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// BlobCIDString is BlobCID rendered as a string, or "" on failure.
func BlobCIDString(data []byte) string {
	id, err := BlobCID(data)
	if err != nil {
		return ""
	}
	return id.String()
}

// FromKeccak256 wraps an existing keccak-256 digest in a CID.
func FromKeccak256(digest []byte) (cid.Cid, error) {
	if len(digest) != 32 {
		return cid.Undef, fmt.Errorf("cidutil: keccak-256 digest must be 32 bytes, got %d", len(digest))
	}
	mh, err := multihash.Encode(digest, multihash.KECCAK_256)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// Keccak256Digest extracts the digest from a CID produced by FromKeccak256.
func Keccak256Digest(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, fmt.Errorf("cidutil: undefined cid")
	}
	dec, err := multihash.Decode(id.Hash())
	if err != nil {
		return nil, err
	}
	if dec.Code != multihash.KECCAK_256 {
		return nil, fmt.Errorf("cidutil: expected keccak-256 multihash, got code 0x%x", dec.Code)
	}
	if len(dec.Digest) != 32 {
		return nil, fmt.Errorf("cidutil: keccak-256 digest must be 32 bytes, got %d", len(dec.Digest))
	}
	return dec.Digest, nil
}
