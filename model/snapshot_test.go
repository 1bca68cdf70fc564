package model

import (
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"xdao.co/attest/errs"
	"xdao.co/attest/ledger"
	"xdao.co/attest/record"
	"xdao.co/attest/uid"
)

var (
	testSchema    = uid.Keccak256([]byte("schema"))
	testRecipient = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func TestSnapshot_AttestationRequest_JSONShape(t *testing.T) {
	req := AttestationRequest{
		Schema: testSchema,
		Data: AttestationRequestData{
			Recipient: testRecipient,
			Revocable: true,
			Data:      []byte{0x12, 0x34},
			Value:     "5",
		},
	}
	b, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}

	want := strings.Join([]string{
		"{",
		`  "schema": "` + testSchema.Hex() + `",`,
		`  "data": {`,
		`    "recipient": "0x00000000000000000000000000000000000000b1",`,
		`    "expirationTime": 0,`,
		`    "revocable": true,`,
		`    "refUID": "` + uid.Zero.Hex() + `",`,
		`    "data": "0x1234",`,
		`    "value": "5"`,
		`  }`,
		"}",
	}, "\n")
	if string(b) != want {
		t.Fatalf("snapshot mismatch:\n%s", string(b))
	}

	var back AttestationRequest
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	lr, err := back.ToLedger()
	if err != nil {
		t.Fatalf("ToLedger failed: %v", err)
	}
	if lr.Schema != testSchema || lr.Data.Value.Int64() != 5 || lr.Data.Recipient != testRecipient {
		t.Fatalf("unexpected ledger request: %+v", lr)
	}
}

func TestAttestationRequest_EmptyRefUIDIsZero(t *testing.T) {
	var d AttestationRequestData
	if err := json.Unmarshal([]byte(`{"refUID":"","data":"0x"}`), &d); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !d.RefUID.IsZero() {
		t.Fatalf("expected zero refUID")
	}
}

func TestFromAttestation(t *testing.T) {
	a := record.Attestation{
		UID:       uid.Keccak256([]byte("a")),
		Schema:    testSchema,
		Time:      10,
		Recipient: testRecipient,
		Data:      []byte{1},
	}
	got := FromAttestation(a)
	if got.Value != "0" {
		t.Fatalf("nil value should render as 0, got %q", got.Value)
	}
	got.Data[0] = 9
	if a.Data[0] != 1 {
		t.Fatalf("FromAttestation must copy data")
	}
}

func TestParseValue(t *testing.T) {
	for _, s := range []string{"", "0", "  42 ", "115792089237316195423570985008687907853269984665640564039457584007913129639935"} {
		if _, err := ParseValue(s); err != nil {
			t.Fatalf("ParseValue(%q): %v", s, err)
		}
	}
	for _, s := range []string{"-1", "1.5", "0x10", "ten"} {
		_, err := ParseValue(s)
		var coded *CodedError
		if !errors.As(err, &coded) || coded.Code != ErrInvalidRequest {
			t.Fatalf("ParseValue(%q): got %v", s, err)
		}
	}
	if FormatValue(nil) != "" || FormatValue(big.NewInt(7)) != "7" {
		t.Fatalf("FormatValue mismatch")
	}
}

func TestMultiRequests_RoundTrip(t *testing.T) {
	groups := []ledger.MultiAttestationRequest{{
		Schema: testSchema,
		Data: []ledger.AttestationRequestData{
			{Recipient: testRecipient, Value: big.NewInt(3)},
			{Data: []byte("x")},
		},
	}}
	back, err := MultiAttestToLedger(MultiAttestFromLedger(groups))
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != 1 || len(back[0].Data) != 2 || back[0].Data[0].Value.Int64() != 3 || back[0].Data[1].Value.Sign() != 0 {
		t.Fatalf("unexpected round trip: %+v", back)
	}

	revs := []ledger.MultiRevocationRequest{{Schema: testSchema, Data: []ledger.RevocationRequestData{{UID: testSchema}}}}
	rback, err := MultiRevokeToLedger(MultiRevokeFromLedger(revs))
	if err != nil {
		t.Fatal(err)
	}
	if rback[0].Data[0].UID != testSchema {
		t.Fatalf("unexpected revocation round trip: %+v", rback)
	}

	_, err = MultiRevokeToLedger([]MultiRevocationRequest{{Data: []RevocationRequestData{{Value: "-3"}}}})
	if err == nil {
		t.Fatalf("expected invalid value")
	}
}

func TestCodedError_RoundTrip(t *testing.T) {
	if got := CodeFor(errs.KindAlreadyRevokedOffchain); got != "ALREADY_REVOKED_OFFCHAIN" {
		t.Fatalf("CodeFor: %s", got)
	}

	orig := errs.New(errs.KindInvalidAttestation, "LED-ATT-005", "dangling ref")
	coded := FromError(orig)
	if coded.Code != "INVALID_ATTESTATION" || coded.RuleID != "LED-ATT-005" {
		t.Fatalf("unexpected coded error: %+v", coded)
	}

	b, err := json.Marshal(coded)
	if err != nil {
		t.Fatal(err)
	}
	var decoded CodedError
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	back := decoded.Err()
	if !errors.Is(back, errs.ErrInvalidAttestation) || errs.RuleID(back) != "LED-ATT-005" {
		t.Fatalf("round trip lost kind: %v", back)
	}

	if FromError(errors.New("plain")).Code != ErrInternal {
		t.Fatalf("plain errors map to INTERNAL")
	}
	unauth := NewError(ErrUnauthenticated, "bad signature")
	if FromError(unauth) != unauth {
		t.Fatalf("coded errors pass through")
	}
	if _, ok := unauth.Err().(*CodedError); !ok {
		t.Fatalf("transport codes stay coded")
	}
}
