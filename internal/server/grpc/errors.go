package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/dmitrijs2005/addonkeeper/internal/server/reload"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errorCodes = []struct {
	err  error
	code codes.Code
}{
	{common.ErrorNotFound, codes.NotFound},
	{common.ErrorUnauthorized, codes.Unauthenticated},
	{common.ErrInvalidToken, codes.Unauthenticated},
	{common.ErrTokenExpired, codes.Unauthenticated},
	{common.ErrInvalidArgument, codes.InvalidArgument},
	{common.ErrAlreadyExists, codes.AlreadyExists},
	{common.ErrDecrypt, codes.FailedPrecondition},
	{common.ErrMalformedManifest, codes.FailedPrecondition},
	{reload.ErrLocalAddon, codes.FailedPrecondition},
	{common.ErrFetch, codes.Unavailable},
	{common.ErrRemote, codes.Unavailable},
	{context.DeadlineExceeded, codes.DeadlineExceeded},
	{context.Canceled, codes.Canceled},
}

// toStatus maps service errors to gRPC statuses. Unknown errors are
// logged and reported as Internal without their text.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return status.Error(ec.code, err.Error())
		}
	}
	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
