package ledgerrpc

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/attest/clock"
	"xdao.co/attest/errs"
	"xdao.co/attest/keys"
	"xdao.co/attest/ledger"
	"xdao.co/attest/model"
	"xdao.co/attest/record"
	"xdao.co/attest/resolver"
	"xdao.co/attest/schema"
	"xdao.co/attest/storage/memory"
	"xdao.co/attest/uid"
)

var (
	refResolver = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	recipient   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

type harness struct {
	srv    *Server
	client *Client
	cc     *grpc.ClientConn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := resolver.NewDirectory()
	require.NoError(t, dir.Bind(refResolver, resolver.New(resolver.AttestationRef{})))
	l := ledger.New(schema.NewRegistry(), dir,
		ledger.WithClock(clock.NewManual(1700000000)),
		ledger.WithArchive(memory.New()),
		ledger.WithLogger(zaptest.NewLogger(t)),
	)

	log := zaptest.NewLogger(t)
	srv := NewServer(l, log)
	lis := bufconn.Listen(1024 * 1024)
	gs := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(log)))
	RegisterLedgerServer(gs, srv)
	go func() {
		_ = gs.Serve(lis)
	}()
	t.Cleanup(gs.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })

	key, err := keys.PrivateKeyFromSeed(crypto.Keccak256([]byte("alice")))
	require.NoError(t, err)
	client := NewClient(cc, key)
	client.Timeout = 2 * time.Second
	return &harness{srv: srv, client: client, cc: cc}
}

func TestLedgerRPC_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client

	schemaA, err := c.RegisterSchema(ctx, model.SchemaRegistration{Schema: "bool isFriend", Revocable: true})
	require.NoError(t, err)
	require.Equal(t, uid.Schema("bool isFriend", record.NoResolver, true), schemaA)

	schemaB, err := c.RegisterSchema(ctx, model.SchemaRegistration{
		Schema:    "bytes32 eventId,uint8 ticketType,uint32 ticketNum",
		Resolver:  refResolver,
		Revocable: true,
	})
	require.NoError(t, err)

	_, err = c.RegisterSchema(ctx, model.SchemaRegistration{Schema: "bool isFriend", Revocable: true})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	list, err := c.ListSchemas(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	got, err := c.GetSchema(ctx, schemaB)
	require.NoError(t, err)
	require.Equal(t, refResolver, got.Resolver)

	uid1, err := c.Attest(ctx, model.AttestationRequest{Schema: schemaA, Data: model.AttestationRequestData{
		Recipient: recipient, Revocable: true, Data: []byte{0x12, 0x34},
	}})
	require.NoError(t, err)

	att, err := c.GetAttestation(ctx, uid1)
	require.NoError(t, err)
	me, err := c.Address()
	require.NoError(t, err)
	require.Equal(t, me, att.Attester, "signer becomes the attester")
	require.Equal(t, uint64(1700000000), att.Time)
	require.NotEmpty(t, att.ArchiveCID)

	ids, err := c.MultiAttest(ctx, []model.MultiAttestationRequest{{
		Schema: schemaB,
		Data:   []model.AttestationRequestData{{Recipient: recipient, Revocable: true, Data: uid1.Bytes()}},
	}})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	// A dangling reference in the batch rejects the whole call.
	_, err = c.MultiAttest(ctx, []model.MultiAttestationRequest{{
		Schema: schemaB,
		Data: []model.AttestationRequestData{
			{Recipient: recipient, Revocable: true, Data: uid1.Bytes()},
			{Recipient: recipient, Revocable: true, Data: uid.Keccak256([]byte("nope")).Bytes()},
		},
	}})
	require.ErrorIs(t, err, errs.ErrInvalidAttestation)
	require.Equal(t, "LED-RES-002", errs.RuleID(err))

	valid, err := c.IsAttestationValid(ctx, uid1)
	require.NoError(t, err)
	require.True(t, valid)

	require.NoError(t, c.Revoke(ctx, model.RevocationRequest{Schema: schemaA, Data: model.RevocationRequestData{UID: uid1}}))
	att, err = c.GetAttestation(ctx, uid1)
	require.NoError(t, err)
	require.NotZero(t, att.RevocationTime)

	err = c.MultiRevoke(ctx, []model.MultiRevocationRequest{{Schema: schemaA, Data: []model.RevocationRequestData{{UID: uid1}}}})
	require.ErrorIs(t, err, errs.ErrInvalidRevocation)

	_, err = c.GetAttestation(ctx, uid.Keccak256([]byte("missing")))
	require.ErrorIs(t, err, errs.ErrNotFound)
	var structured *errs.Error
	require.True(t, errors.As(err, &structured), "client returns the structured error")

	bal, err := c.Balance(ctx, refResolver)
	require.NoError(t, err)
	require.Equal(t, "0", bal)
}

func TestLedgerRPC_TimestampsAndOffchain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.client
	data := uid.Keccak256([]byte("doc"))

	ts, err := c.Timestamp(ctx, data)
	require.NoError(t, err)
	require.Equal(t, uint64(1700000000), ts)
	_, err = c.MultiTimestamp(ctx, []uid.UID{uid.Keccak256([]byte("x")), data})
	require.ErrorIs(t, err, errs.ErrAlreadyTimestamped)
	got, err := c.GetTimestamp(ctx, uid.Keccak256([]byte("x")))
	require.NoError(t, err)
	require.Zero(t, got, "failed batch leaves nothing behind")

	_, err = c.RevokeOffchain(ctx, data)
	require.NoError(t, err)
	_, err = c.MultiRevokeOffchain(ctx, []uid.UID{data})
	require.ErrorIs(t, err, errs.ErrAlreadyRevokedOffchain)

	me, _ := c.Address()
	at, err := c.GetRevokeOffchain(ctx, me, data)
	require.NoError(t, err)
	require.Equal(t, uint64(1700000000), at)
}

func TestLedgerRPC_SignedCallsNeedAValidEnvelope(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	anon := NewClient(h.cc, nil)
	_, err := anon.Attest(ctx, model.AttestationRequest{})
	require.ErrorIs(t, err, ErrNoSigner)

	raw := func(body []byte) error {
		_, err := invoke(ctx, h.cc, MethodAttest, wrapperspb.Bytes(body))
		return err
	}

	// Unsigned payload.
	err = raw([]byte(`{"schema":"0x00"}`))
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	key := h.client.Key
	body, _ := json.Marshal(model.AttestationRequest{})
	expires := uint64(time.Now().Add(time.Minute).Unix())
	err = raw(seal(t, key, model.Envelope{Method: MethodRevoke, Body: body, Nonce: "n1", Expires: expires}))
	require.Equal(t, codes.Unauthenticated, status.Code(err), "envelope for another method")

	err = raw(seal(t, key, model.Envelope{Method: MethodAttest, Body: body, Nonce: "n2"}))
	require.Equal(t, codes.Unauthenticated, status.Code(err), "missing expiry")

	past := uint64(time.Now().Add(-time.Minute).Unix())
	err = raw(seal(t, key, model.Envelope{Method: MethodAttest, Body: body, Nonce: "n3", Expires: past}))
	require.Equal(t, codes.Unauthenticated, status.Code(err), "expired")

	far := uint64(time.Now().Add(MaxEnvelopeLifetime + time.Hour).Unix())
	err = raw(seal(t, key, model.Envelope{Method: MethodAttest, Body: body, Nonce: "n4", Expires: far}))
	require.Equal(t, codes.Unauthenticated, status.Code(err), "expiry beyond the lifetime bound")

	b := seal(t, key, model.Envelope{Method: MethodAttest, Body: body, Nonce: "n5", Expires: expires})
	err = raw(b)
	require.Equal(t, codes.FailedPrecondition, status.Code(err), "unknown schema reaches the ledger")

	err = raw(b)
	require.Equal(t, codes.Unauthenticated, status.Code(err), "replayed nonce")

	err = raw([]byte("not json"))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestMapRPC(t *testing.T) {
	orig := errs.New(errs.KindAccessDenied, "LED-REV-004", "not the attester")
	st := toStatus(orig)
	require.Equal(t, codes.PermissionDenied, status.Code(st))

	back := mapRPC(st)
	require.ErrorIs(t, back, errs.ErrAccessDenied)
	require.Equal(t, "LED-REV-004", errs.RuleID(back))

	plain := status.Error(codes.Unavailable, "connection refused")
	require.Equal(t, plain, mapRPC(plain))
	require.Nil(t, mapRPC(nil))
}

func TestReplay_SurvivesNonceFlood(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sid, err := h.client.RegisterSchema(ctx, model.SchemaRegistration{Schema: "bool isFriend", Revocable: true})
	require.NoError(t, err)
	body, _ := json.Marshal(model.AttestationRequest{Schema: sid, Data: model.AttestationRequestData{Revocable: true}})
	now := time.Now()
	expires := uint64(now.Add(time.Minute).Unix())
	captured := seal(t, h.client.Key, model.Envelope{Method: MethodAttest, Body: body, Nonce: "once", Expires: expires})

	send := func() error {
		_, err := invoke(ctx, h.cc, MethodAttest, wrapperspb.Bytes(captured))
		return err
	}
	require.NoError(t, send())

	for i := 0; i < 10000; i++ {
		require.True(t, h.srv.nonces.add(fmt.Sprintf("0xother/%d", i), expires, uint64(now.Unix())))
	}
	require.Equal(t, codes.Unauthenticated, status.Code(send()))

	h.srv.Now = func() time.Time { return now.Add(2 * time.Minute) }
	require.Equal(t, codes.Unauthenticated, status.Code(send()), "expired envelopes are refused outright")
	require.Equal(t, 1, h.srv.Ledger.Len())
}

func TestReplayCache_ForgetsOnlyExpired(t *testing.T) {
	c := newReplayCache()
	require.True(t, c.add("a", 100, 50))
	require.False(t, c.add("a", 100, 99))
	require.True(t, c.add("a", 300, 101), "a lapsed at 100")

	// Fill to the sweep threshold with entries that lapse at 150.
	for i := 0; i < 1023; i++ {
		require.True(t, c.add(fmt.Sprintf("k%d", i), 150, 120))
	}
	require.True(t, c.add("late", 400, 200))
	require.Equal(t, 2, c.len(), "sweep keeps only unexpired entries")
	require.False(t, c.add("a", 300, 200))
}

func seal(t *testing.T, key *ecdsa.PrivateKey, env model.Envelope) []byte {
	t.Helper()
	require.NoError(t, keys.SignEnvelope(&env, key))
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return b
}
