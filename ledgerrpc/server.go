package ledgerrpc

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/attest/keys"
	"xdao.co/attest/ledger"
	"xdao.co/attest/model"
)

// MaxEnvelopeLifetime bounds how far in the future an envelope may expire.
// Used nonces are remembered until their envelope expires, so the replay
// cache never holds more than one lifetime of traffic.
const MaxEnvelopeLifetime = 5 * time.Minute

// Server exposes a ledger over the Ledger gRPC service.
type Server struct {
	Ledger *ledger.Ledger
	Log    *zap.Logger
	// Now is the wall clock used for envelope expiry.
	Now func() time.Time

	nonces *replayCache
}

func NewServer(l *ledger.Ledger, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{Ledger: l, Log: log, Now: time.Now, nonces: newReplayCache()}
}

type method struct {
	// signed methods take a model.Envelope; the recovered signer is the caller.
	signed bool
	call   func(s *Server, from common.Address, body []byte) (any, error)
}

var methods = map[string]method{
	MethodRegisterSchema: {call: func(s *Server, _ common.Address, body []byte) (any, error) {
		req, err := decode[model.SchemaRegistration](body)
		if err != nil {
			return nil, err
		}
		id, err := s.Ledger.Schemas().Register(req.Schema, req.Resolver, req.Revocable)
		if err != nil {
			return nil, err
		}
		return model.UIDRef{UID: id}, nil
	}},
	MethodGetSchema: {call: func(s *Server, _ common.Address, body []byte) (any, error) {
		req, err := decode[model.UIDRef](body)
		if err != nil {
			return nil, err
		}
		sc, err := s.Ledger.GetSchema(req.UID)
		if err != nil {
			return nil, err
		}
		return model.FromSchema(sc), nil
	}},
	MethodListSchemas: {call: func(s *Server, _ common.Address, _ []byte) (any, error) {
		list := s.Ledger.Schemas().List()
		out := make([]model.Schema, 0, len(list))
		for _, sc := range list {
			out = append(out, model.FromSchema(sc))
		}
		return out, nil
	}},
	MethodAttest: {signed: true, call: func(s *Server, from common.Address, body []byte) (any, error) {
		req, err := decode[model.AttestationRequest](body)
		if err != nil {
			return nil, err
		}
		lr, err := req.ToLedger()
		if err != nil {
			return nil, err
		}
		id, err := s.Ledger.Attest(from, lr)
		if err != nil {
			return nil, err
		}
		return model.UIDRef{UID: id}, nil
	}},
	MethodMultiAttest: {signed: true, call: func(s *Server, from common.Address, body []byte) (any, error) {
		req, err := decode[[]model.MultiAttestationRequest](body)
		if err != nil {
			return nil, err
		}
		groups, err := model.MultiAttestToLedger(req)
		if err != nil {
			return nil, err
		}
		ids, err := s.Ledger.MultiAttest(from, groups)
		if err != nil {
			return nil, err
		}
		return model.UIDList{UIDs: ids}, nil
	}},
	MethodRevoke: {signed: true, call: func(s *Server, from common.Address, body []byte) (any, error) {
		req, err := decode[model.RevocationRequest](body)
		if err != nil {
			return nil, err
		}
		lr, err := req.ToLedger()
		if err != nil {
			return nil, err
		}
		return struct{}{}, s.Ledger.Revoke(from, lr)
	}},
	MethodMultiRevoke: {signed: true, call: func(s *Server, from common.Address, body []byte) (any, error) {
		req, err := decode[[]model.MultiRevocationRequest](body)
		if err != nil {
			return nil, err
		}
		groups, err := model.MultiRevokeToLedger(req)
		if err != nil {
			return nil, err
		}
		return struct{}{}, s.Ledger.MultiRevoke(from, groups)
	}},
	MethodTimestamp: {call: func(s *Server, _ common.Address, body []byte) (any, error) {
		req, err := decode[model.UIDRef](body)
		if err != nil {
			return nil, err
		}
		return timeResult(s.Ledger.Timestamp(req.UID))
	}},
	MethodMultiTimestamp: {call: func(s *Server, _ common.Address, body []byte) (any, error) {
		req, err := decode[model.UIDList](body)
		if err != nil {
			return nil, err
		}
		return timeResult(s.Ledger.MultiTimestamp(req.UIDs))
	}},
	MethodRevokeOffchain: {signed: true, call: func(s *Server, from common.Address, body []byte) (any, error) {
		req, err := decode[model.UIDRef](body)
		if err != nil {
			return nil, err
		}
		return timeResult(s.Ledger.RevokeOffchain(from, req.UID))
	}},
	MethodMultiRevokeOffchain: {signed: true, call: func(s *Server, from common.Address, body []byte) (any, error) {
		req, err := decode[model.UIDList](body)
		if err != nil {
			return nil, err
		}
		return timeResult(s.Ledger.MultiRevokeOffchain(from, req.UIDs))
	}},
	MethodGetAttestation: {call: func(s *Server, _ common.Address, body []byte) (any, error) {
		req, err := decode[model.UIDRef](body)
		if err != nil {
			return nil, err
		}
		a, err := s.Ledger.GetAttestation(req.UID)
		if err != nil {
			return nil, err
		}
		out := model.FromAttestation(a)
		if id, ok := s.Ledger.ArchiveCID(a.UID); ok {
			out.ArchiveCID = id.String()
		}
		return out, nil
	}},
	MethodIsAttestationValid: {call: func(s *Server, _ common.Address, body []byte) (any, error) {
		req, err := decode[model.UIDRef](body)
		if err != nil {
			return nil, err
		}
		return model.ValidResult{Valid: s.Ledger.IsAttestationValid(req.UID)}, nil
	}},
	MethodGetTimestamp: {call: func(s *Server, _ common.Address, body []byte) (any, error) {
		req, err := decode[model.UIDRef](body)
		if err != nil {
			return nil, err
		}
		return model.TimeResult{Time: s.Ledger.GetTimestamp(req.UID)}, nil
	}},
	MethodGetRevokeOffchain: {call: func(s *Server, _ common.Address, body []byte) (any, error) {
		req, err := decode[model.OffchainQuery](body)
		if err != nil {
			return nil, err
		}
		return model.TimeResult{Time: s.Ledger.GetRevokeOffchain(req.Revoker, req.UID)}, nil
	}},
	MethodBalance: {call: func(s *Server, _ common.Address, body []byte) (any, error) {
		req, err := decode[model.Balance](body)
		if err != nil {
			return nil, err
		}
		return model.Balance{Resolver: req.Resolver, Value: s.Ledger.Balance(req.Resolver).String()}, nil
	}},
}

// Call dispatches one RPC. It implements LedgerServer.
func (s *Server) Call(ctx context.Context, name string, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	m, ok := methods[name]
	if !ok {
		return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", name)
	}
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}

	body := in.GetValue()
	var from common.Address
	if m.signed {
		signer, payload, err := s.open(name, body)
		if err != nil {
			return nil, toStatus(err)
		}
		from, body = signer, payload
	}

	out, err := m.call(s, from, body)
	if err != nil {
		return nil, toStatus(err)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(b), nil
}

// open verifies a signed envelope and returns its signer and payload.
func (s *Server) open(name string, body []byte) (common.Address, []byte, error) {
	env, err := decode[model.Envelope](body)
	if err != nil {
		return common.Address{}, nil, err
	}
	if env.Method != name {
		return common.Address{}, nil, model.NewError(model.ErrUnauthenticated, "envelope is for method "+env.Method)
	}
	if strings.TrimSpace(env.Nonce) == "" {
		return common.Address{}, nil, model.NewError(model.ErrUnauthenticated, "envelope nonce is required")
	}
	now := uint64(s.Now().Unix())
	switch {
	case env.Expires == 0:
		return common.Address{}, nil, model.NewError(model.ErrUnauthenticated, "envelope expiry is required")
	case env.Expires < now:
		return common.Address{}, nil, model.NewError(model.ErrUnauthenticated, "envelope expired")
	case env.Expires > now+uint64(MaxEnvelopeLifetime/time.Second):
		return common.Address{}, nil, model.NewError(model.ErrUnauthenticated, "envelope expiry is too far ahead")
	}
	signer, err := keys.EnvelopeSigner(env)
	if err != nil {
		return common.Address{}, nil, model.NewError(model.ErrUnauthenticated, "bad signature: "+err.Error())
	}
	if !s.nonces.add(signer.Hex()+"/"+env.Nonce, env.Expires, now) {
		return common.Address{}, nil, model.NewError(model.ErrUnauthenticated, "envelope nonce already used")
	}
	s.Log.Debug("envelope accepted", zap.String("method", name), zap.Stringer("signer", signer))
	return signer, env.Body, nil
}

func decode[T any](body []byte) (T, error) {
	var v T
	if len(body) == 0 {
		return v, model.NewError(model.ErrInvalidRequest, "empty request body")
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, model.NewError(model.ErrInvalidRequest, "malformed request: "+err.Error())
	}
	return v, nil
}

func timeResult(t uint64, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return model.TimeResult{Time: t}, nil
}

// replayCache remembers used nonces until the envelopes carrying them
// expire. An entry is never dropped while its envelope could still be
// accepted.
type replayCache struct {
	mu        sync.Mutex
	seen      map[string]uint64
	nextSweep int
}

func newReplayCache() *replayCache {
	return &replayCache{seen: make(map[string]uint64), nextSweep: 1024}
}

// add records key until expires and reports whether it was unused.
func (c *replayCache) add(key string, expires, now uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if exp, ok := c.seen[key]; ok && exp >= now {
		return false
	}
	if len(c.seen) >= c.nextSweep {
		for k, exp := range c.seen {
			if exp < now {
				delete(c.seen, k)
			}
		}
		c.nextSweep = max(1024, 2*len(c.seen))
	}
	c.seen[key] = expires
	return true
}

func (c *replayCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

var _ LedgerServer = (*Server)(nil)
