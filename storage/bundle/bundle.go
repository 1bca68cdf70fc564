// Package bundle packs archived attestation records into a deterministic TAR
// stream and loads them back.
//
// Layout:
//
//	records/<cid>   canonical record bytes (record.Encode)
//	index.json      attestation UID -> record CID, sorted by UID
package bundle

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/attest/cidutil"
	"xdao.co/attest/record"
	"xdao.co/attest/storage"
	"xdao.co/attest/uid"
)

// FormatVersion is the current index.json version.
const FormatVersion = 1

var epoch0 = time.Unix(0, 0).UTC()

// Entry names one archived record.
type Entry struct {
	UID uid.UID `json:"uid"`
	CID string  `json:"cid"`
}

type Index struct {
	Version int     `json:"version"`
	Records []Entry `json:"records"`
}

// Export writes the records named by entries. Output bytes depend only on the
// set of entries, not their order. Each record is re-verified against its
// CID and its decoded UID before it is written.
func Export(w io.Writer, cas storage.CAS, entries []Entry) error {
	if cas == nil {
		return fmt.Errorf("bundle: nil CAS")
	}

	byUID := make(map[uid.UID]Entry, len(entries))
	for _, e := range entries {
		if prev, ok := byUID[e.UID]; ok && prev.CID != e.CID {
			return fmt.Errorf("bundle: uid %s listed with two CIDs", e.UID)
		}
		byUID[e.UID] = e
	}
	sorted := make([]Entry, 0, len(byUID))
	for _, e := range byUID {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i].UID[:], sorted[j].UID[:]) < 0 })

	blobs := make(map[string][]byte, len(sorted))
	for _, e := range sorted {
		id, err := cid.Decode(e.CID)
		if err != nil || !id.Defined() {
			return storage.ErrInvalidCID
		}
		b, err := cas.Get(id)
		if err != nil {
			return fmt.Errorf("bundle: %s: %w", e.CID, err)
		}
		if err := verify(id, e.UID, b); err != nil {
			return err
		}
		blobs[id.String()] = b
	}

	names := make([]string, 0, len(blobs))
	for k := range blobs {
		names = append(names, k)
	}
	sort.Strings(names)

	tw := tar.NewWriter(w)
	for _, name := range names {
		if err := writeFile(tw, "records/"+name, blobs[name]); err != nil {
			_ = tw.Close()
			return err
		}
	}
	idx, err := json.Marshal(Index{Version: FormatVersion, Records: sorted})
	if err != nil {
		_ = tw.Close()
		return err
	}
	if err := writeFile(tw, "index.json", append(idx, '\n')); err != nil {
		_ = tw.Close()
		return err
	}
	return tw.Close()
}

// Import loads every record of a bundle into cas and returns its index.
// Unknown entries, CID mismatches and index entries without a record are
// rejected.
func Import(r io.Reader, cas storage.CAS) (Index, error) {
	if cas == nil {
		return Index{}, fmt.Errorf("bundle: nil CAS")
	}

	var idx *Index
	records := map[string][]byte{}

	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Index{}, err
		}
		name := cleanTarPath(h.Name)
		if name == "" || h.Typeflag != tar.TypeReg {
			return Index{}, fmt.Errorf("bundle: unexpected entry %q", h.Name)
		}
		payload, err := io.ReadAll(tr)
		if err != nil {
			return Index{}, err
		}

		switch {
		case name == "index.json":
			var got Index
			if err := json.Unmarshal(payload, &got); err != nil {
				return Index{}, fmt.Errorf("bundle: index.json: %w", err)
			}
			if got.Version != FormatVersion {
				return Index{}, fmt.Errorf("bundle: unsupported index version %d", got.Version)
			}
			idx = &got
		case strings.HasPrefix(name, "records/"):
			key := strings.TrimPrefix(name, "records/")
			if _, dup := records[key]; dup {
				return Index{}, fmt.Errorf("bundle: duplicate record %s", key)
			}
			records[key] = payload
		default:
			return Index{}, fmt.Errorf("bundle: unknown entry %s", name)
		}
	}
	if idx == nil {
		return Index{}, fmt.Errorf("bundle: missing index.json")
	}

	for _, e := range idx.Records {
		b, ok := records[e.CID]
		if !ok {
			return Index{}, fmt.Errorf("bundle: index names missing record %s", e.CID)
		}
		id, err := cid.Decode(e.CID)
		if err != nil {
			return Index{}, storage.ErrInvalidCID
		}
		if err := verify(id, e.UID, b); err != nil {
			return Index{}, err
		}
		put, err := cas.Put(b)
		if err != nil {
			return Index{}, err
		}
		if put != id {
			return Index{}, storage.ErrCIDMismatch
		}
	}
	return *idx, nil
}

func verify(id cid.Cid, want uid.UID, b []byte) error {
	got, err := cidutil.BlobCID(b)
	if err != nil {
		return err
	}
	if got != id {
		return storage.ErrCIDMismatch
	}
	a, err := record.Decode(b)
	if err != nil {
		return fmt.Errorf("bundle: %s: %w", id, err)
	}
	if a.UID != want {
		return fmt.Errorf("bundle: %s holds %s, index says %s", id, a.UID, want)
	}
	return nil
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(content)
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"), "./")
	if name == "" || strings.HasPrefix(name, "/") {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}

// Latest scans an enumerable archive and returns one entry per attestation:
// its revoked record when one was archived, else the original. Records that
// do not decode are skipped.
func Latest(cas storage.CAS) ([]Entry, error) {
	l, ok := cas.(storage.Lister)
	if !ok {
		return nil, fmt.Errorf("bundle: archive cannot be listed")
	}
	ids, err := l.List()
	if err != nil {
		return nil, err
	}
	type best struct {
		entry   Entry
		revoked uint64
	}
	byUID := make(map[uid.UID]best, len(ids))
	for _, id := range ids {
		b, err := cas.Get(id)
		if err != nil {
			return nil, err
		}
		a, err := record.Decode(b)
		if err != nil {
			continue
		}
		if prev, ok := byUID[a.UID]; ok && prev.revoked >= a.RevocationTime {
			continue
		}
		byUID[a.UID] = best{entry: Entry{UID: a.UID, CID: id.String()}, revoked: a.RevocationTime}
	}
	out := make([]Entry, 0, len(byUID))
	for _, b := range byUID {
		out = append(out, b.entry)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].UID[:], out[j].UID[:]) < 0 })
	return out, nil
}
