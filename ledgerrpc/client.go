package ledgerrpc

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/attest/keys"
	"xdao.co/attest/model"
	"xdao.co/attest/uid"
)

// ErrNoSigner is returned by mutating calls on a client without a key.
var ErrNoSigner = errors.New("ledgerrpc: client has no signing key")

// Client talks to a Ledger gRPC service.
type Client struct {
	cc    grpc.ClientConnInterface
	close func() error

	// Key signs mutating calls; its address is the attester or revoker.
	Key *ecdsa.PrivateKey

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration

	// EnvelopeLifetime is how long a signed request stays valid. Defaults to
	// one minute and must not exceed the server's MaxEnvelopeLifetime.
	EnvelopeLifetime time.Duration
}

type DialOptions struct {
	// AttemptTimeout bounds each connection attempt. Defaults to 2s.
	AttemptTimeout time.Duration

	// MaxRetries caps reconnect attempts after the first. Zero means no retry.
	MaxRetries uint64

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface, key *ecdsa.PrivateKey) *Client {
	return &Client{cc: cc, Key: key}
}

// Dial connects to target, retrying with exponential backoff until the
// connection is ready or the retries are exhausted.
func Dial(ctx context.Context, target string, key *ecdsa.PrivateKey, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}
	attempt := opts.AttemptTimeout
	if attempt <= 0 {
		attempt = 2 * time.Second
	}

	var cc *grpc.ClientConn
	connect := func() error {
		actx, cancel := context.WithTimeout(ctx, attempt)
		defer cancel()
		c, err := grpc.DialContext(actx, target, dialOpts...)
		if err != nil {
			return err
		}
		cc = c
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), opts.MaxRetries), ctx)
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, err
	}
	return &Client{cc: cc, close: cc.Close, Key: key}, nil
}

func (c *Client) Close() error {
	if c == nil || c.close == nil {
		return nil
	}
	return c.close()
}

// Address is the caller identity of signed calls.
func (c *Client) Address() (common.Address, error) {
	if c.Key == nil {
		return common.Address{}, ErrNoSigner
	}
	return crypto.PubkeyToAddress(c.Key.PublicKey), nil
}

func (c *Client) RegisterSchema(ctx context.Context, reg model.SchemaRegistration) (uid.UID, error) {
	var out model.UIDRef
	err := c.call(ctx, MethodRegisterSchema, reg, &out)
	return out.UID, err
}

func (c *Client) GetSchema(ctx context.Context, id uid.UID) (model.Schema, error) {
	var out model.Schema
	err := c.call(ctx, MethodGetSchema, model.UIDRef{UID: id}, &out)
	return out, err
}

func (c *Client) ListSchemas(ctx context.Context) ([]model.Schema, error) {
	var out []model.Schema
	err := c.call(ctx, MethodListSchemas, struct{}{}, &out)
	return out, err
}

func (c *Client) Attest(ctx context.Context, req model.AttestationRequest) (uid.UID, error) {
	var out model.UIDRef
	err := c.signed(ctx, MethodAttest, req, &out)
	return out.UID, err
}

func (c *Client) MultiAttest(ctx context.Context, reqs []model.MultiAttestationRequest) ([]uid.UID, error) {
	var out model.UIDList
	err := c.signed(ctx, MethodMultiAttest, reqs, &out)
	return out.UIDs, err
}

func (c *Client) Revoke(ctx context.Context, req model.RevocationRequest) error {
	return c.signed(ctx, MethodRevoke, req, nil)
}

func (c *Client) MultiRevoke(ctx context.Context, reqs []model.MultiRevocationRequest) error {
	return c.signed(ctx, MethodMultiRevoke, reqs, nil)
}

func (c *Client) Timestamp(ctx context.Context, data uid.UID) (uint64, error) {
	var out model.TimeResult
	err := c.call(ctx, MethodTimestamp, model.UIDRef{UID: data}, &out)
	return out.Time, err
}

func (c *Client) MultiTimestamp(ctx context.Context, data []uid.UID) (uint64, error) {
	var out model.TimeResult
	err := c.call(ctx, MethodMultiTimestamp, model.UIDList{UIDs: data}, &out)
	return out.Time, err
}

func (c *Client) RevokeOffchain(ctx context.Context, data uid.UID) (uint64, error) {
	var out model.TimeResult
	err := c.signed(ctx, MethodRevokeOffchain, model.UIDRef{UID: data}, &out)
	return out.Time, err
}

func (c *Client) MultiRevokeOffchain(ctx context.Context, data []uid.UID) (uint64, error) {
	var out model.TimeResult
	err := c.signed(ctx, MethodMultiRevokeOffchain, model.UIDList{UIDs: data}, &out)
	return out.Time, err
}

func (c *Client) GetAttestation(ctx context.Context, id uid.UID) (model.Attestation, error) {
	var out model.Attestation
	err := c.call(ctx, MethodGetAttestation, model.UIDRef{UID: id}, &out)
	return out, err
}

func (c *Client) IsAttestationValid(ctx context.Context, id uid.UID) (bool, error) {
	var out model.ValidResult
	err := c.call(ctx, MethodIsAttestationValid, model.UIDRef{UID: id}, &out)
	return out.Valid, err
}

func (c *Client) GetTimestamp(ctx context.Context, data uid.UID) (uint64, error) {
	var out model.TimeResult
	err := c.call(ctx, MethodGetTimestamp, model.UIDRef{UID: data}, &out)
	return out.Time, err
}

func (c *Client) GetRevokeOffchain(ctx context.Context, revoker common.Address, data uid.UID) (uint64, error) {
	var out model.TimeResult
	err := c.call(ctx, MethodGetRevokeOffchain, model.OffchainQuery{Revoker: revoker, UID: data}, &out)
	return out.Time, err
}

func (c *Client) Balance(ctx context.Context, resolver common.Address) (string, error) {
	var out model.Balance
	err := c.call(ctx, MethodBalance, model.Balance{Resolver: resolver}, &out)
	return out.Value, err
}

// signed wraps req in an envelope signed by c.Key under a fresh nonce.
func (c *Client) signed(ctx context.Context, name string, req, out any) error {
	if c.Key == nil {
		return ErrNoSigner
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	life := c.EnvelopeLifetime
	if life <= 0 {
		life = time.Minute
	}
	env := model.Envelope{
		Method:  name,
		Body:    body,
		Nonce:   uuid.NewString(),
		Expires: uint64(time.Now().Add(life).Unix()),
	}
	if err := keys.SignEnvelope(&env, c.Key); err != nil {
		return err
	}
	return c.call(ctx, name, env, out)
}

func (c *Client) call(ctx context.Context, name string, req, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	reply, err := invoke(ctx, c.cc, name, wrapperspb.Bytes(body))
	if err != nil {
		return mapRPC(err)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(reply.GetValue(), out)
}
