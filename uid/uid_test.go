package uid

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func baseFields() Fields {
	return Fields{
		Schema:         Schema("bool isFriend", common.Address{}, true),
		Recipient:      common.HexToAddress("0x1000000000000000000000000000000000000001"),
		Attester:       common.HexToAddress("0x2000000000000000000000000000000000000002"),
		Time:           1700000000,
		ExpirationTime: 0,
		Revocable:      true,
		RefUID:         Zero,
		Data:           []byte{0x12, 0x34},
		Nonce:          7,
	}
}

func TestAttestation_Deterministic(t *testing.T) {
	f := baseFields()
	a := Attestation(f)
	for i := 0; i < 50; i++ {
		if got := Attestation(f); got != a {
			t.Fatalf("run %d: UID changed: %s vs %s", i, got, a)
		}
	}
	if a.IsZero() {
		t.Fatalf("derived UID must not be zero")
	}
}

func TestAttestation_EveryFieldPerturbs(t *testing.T) {
	base := baseFields()
	golden := Attestation(base)

	perturb := []struct {
		name string
		mod  func(f *Fields)
	}{
		{"schema", func(f *Fields) { f.Schema[0] ^= 1 }},
		{"recipient", func(f *Fields) { f.Recipient[19] ^= 1 }},
		{"attester", func(f *Fields) { f.Attester[0] ^= 1 }},
		{"time", func(f *Fields) { f.Time++ }},
		{"expiration", func(f *Fields) { f.ExpirationTime = 1 }},
		{"revocable", func(f *Fields) { f.Revocable = false }},
		{"ref", func(f *Fields) { f.RefUID[31] = 1 }},
		{"data-byte", func(f *Fields) { f.Data = []byte{0x12, 0x35} }},
		{"data-len", func(f *Fields) { f.Data = []byte{0x12, 0x34, 0x00} }},
		{"data-empty", func(f *Fields) { f.Data = nil }},
		{"nonce", func(f *Fields) { f.Nonce++ }},
	}

	seen := map[UID]string{golden: "base"}
	for _, p := range perturb {
		f := base
		f.Data = append([]byte(nil), base.Data...)
		p.mod(&f)
		got := Attestation(f)
		if prev, dup := seen[got]; dup {
			t.Fatalf("%s collides with %s", p.name, prev)
		}
		seen[got] = p.name
	}
}

func TestSchema_DistinctTuples(t *testing.T) {
	resolver := common.HexToAddress("0x3000000000000000000000000000000000000003")
	cases := []UID{
		Schema("bool isFriend", common.Address{}, true),
		Schema("bool isFriend", common.Address{}, false),
		Schema("bool isFriend", resolver, true),
		Schema("bool isFriend ", common.Address{}, true),
		Schema("", common.Address{}, true),
	}
	seen := map[UID]int{}
	for i, u := range cases {
		if j, dup := seen[u]; dup {
			t.Fatalf("schema tuple %d collides with %d", i, j)
		}
		seen[u] = i
	}
	if Schema("bool isFriend", resolver, true) != cases[2] {
		t.Fatalf("schema UID not deterministic")
	}
}

func TestEncoder_NoSplitAmbiguity(t *testing.T) {
	a := NewEncoder("t").Blob([]byte("ab")).Blob([]byte("c")).Encoded()
	b := NewEncoder("t").Blob([]byte("a")).Blob([]byte("bc")).Encoded()
	if bytes.Equal(a, b) {
		t.Fatalf("different splits encoded identically")
	}

	// A domain tag cannot be confused with field content.
	c := NewEncoder("ta").Blob(nil).Encoded()
	d := NewEncoder("t").Blob([]byte("a")).Encoded()
	if bytes.Equal(c, d) {
		t.Fatalf("domain/field boundary ambiguity")
	}

	// Schema and attestation domains never share an encoding prefix.
	f := baseFields()
	if bytes.HasPrefix(f.Encode(), NewEncoder(domainSchema).Encoded()) {
		t.Fatalf("attestation encoding starts with schema domain")
	}
}

func TestParse_RoundTrip(t *testing.T) {
	u := Attestation(baseFields())
	got, err := Parse(u.Hex())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != u {
		t.Fatalf("round trip mismatch")
	}
	if _, err := Parse("0x1234"); err == nil {
		t.Fatalf("expected length error")
	}
	if _, err := Parse("0x" + string(bytes.Repeat([]byte("zz"), 32))); err == nil {
		t.Fatalf("expected hex error")
	}

	text, _ := u.MarshalText()
	var back UID
	if err := back.UnmarshalText(text); err != nil || back != u {
		t.Fatalf("text round trip failed: %v", err)
	}
}

func TestCID_RoundTrip(t *testing.T) {
	u := Schema("uint256 score", common.Address{}, false)
	id := u.CID()
	if !id.Defined() {
		t.Fatalf("expected defined CID")
	}
	back, err := FromCID(id)
	if err != nil {
		t.Fatalf("FromCID: %v", err)
	}
	if back != u {
		t.Fatalf("CID round trip mismatch")
	}
}

func TestKeccak256_KnownVector(t *testing.T) {
	// keccak256("") per the Ethereum yellow paper.
	want := MustParse("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	if got := Keccak256(nil); got != want {
		t.Fatalf("keccak256(\"\"): got %s", got)
	}
}
