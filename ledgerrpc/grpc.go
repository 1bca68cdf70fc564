package ledgerrpc

import (
	"context"

	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
//
// Every method takes and returns a protobuf BytesValue holding a JSON model
// payload, so this package does not require a protoc/codegen toolchain.
// Mutating methods expect a model.Envelope as the request payload.
const ServiceName = "xdao.attest.ledger.v1.Ledger"

const (
	MethodRegisterSchema      = "RegisterSchema"
	MethodGetSchema           = "GetSchema"
	MethodListSchemas         = "ListSchemas"
	MethodAttest              = "Attest"
	MethodMultiAttest         = "MultiAttest"
	MethodRevoke              = "Revoke"
	MethodMultiRevoke         = "MultiRevoke"
	MethodTimestamp           = "Timestamp"
	MethodMultiTimestamp      = "MultiTimestamp"
	MethodRevokeOffchain      = "RevokeOffchain"
	MethodMultiRevokeOffchain = "MultiRevokeOffchain"
	MethodGetAttestation      = "GetAttestation"
	MethodIsAttestationValid  = "IsAttestationValid"
	MethodGetTimestamp        = "GetTimestamp"
	MethodGetRevokeOffchain   = "GetRevokeOffchain"
	MethodBalance             = "Balance"
)

// Methods lists every RPC in descriptor order.
var Methods = []string{
	MethodRegisterSchema,
	MethodGetSchema,
	MethodListSchemas,
	MethodAttest,
	MethodMultiAttest,
	MethodRevoke,
	MethodMultiRevoke,
	MethodTimestamp,
	MethodMultiTimestamp,
	MethodRevokeOffchain,
	MethodMultiRevokeOffchain,
	MethodGetAttestation,
	MethodIsAttestationValid,
	MethodGetTimestamp,
	MethodGetRevokeOffchain,
	MethodBalance,
}

// LedgerServer is the server API for the Ledger gRPC service.
type LedgerServer interface {
	Call(ctx context.Context, method string, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// RegisterLedgerServer registers the Ledger service on a gRPC server.
func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&Ledger_ServiceDesc, srv)
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func invoke(ctx context.Context, cc grpc.ClientConnInterface, name string, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := cc.Invoke(ctx, fullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func unaryMethod(name string) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(wrapperspb.BytesValue)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return srv.(LedgerServer).Call(ctx, name, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(LedgerServer).Call(ctx, name, req.(*wrapperspb.BytesValue))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Ledger_ServiceDesc is the grpc.ServiceDesc for the Ledger service.
var Ledger_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods:     lo.Map(Methods, func(name string, _ int) grpc.MethodDesc { return unaryMethod(name) }),
	Streams:     []grpc.StreamDesc{},
	Metadata:    "ledger.proto",
}
