package ledgerrpc

import (
	"encoding/json"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/attest/errs"
	"xdao.co/attest/model"
)

func grpcCode(c model.ErrorCode) codes.Code {
	switch c {
	case model.ErrInvalidRequest:
		return codes.InvalidArgument
	case model.ErrUnauthenticated:
		return codes.Unauthenticated
	case model.ErrInternal:
		return codes.Internal
	case model.CodeFor(errs.KindNotFound):
		return codes.NotFound
	case model.CodeFor(errs.KindAlreadyExists):
		return codes.AlreadyExists
	case model.CodeFor(errs.KindAccessDenied):
		return codes.PermissionDenied
	default:
		return codes.FailedPrecondition
	}
}

// toStatus carries the coded error as the JSON status message.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	coded := model.FromError(err)
	msg, merr := json.Marshal(coded)
	if merr != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return status.Error(grpcCode(coded.Code), string(msg))
}

// mapRPC restores the structured error a server sent. Transport failures
// without a coded payload pass through unchanged.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var coded model.CodedError
	if jerr := json.Unmarshal([]byte(st.Message()), &coded); jerr != nil || coded.Code == "" {
		return err
	}
	return coded.Err()
}
