package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/dmitrijs2005/addonkeeper/internal/logging"
	"github.com/dmitrijs2005/addonkeeper/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const accountIDKey ctxKey = "accountID"

// publicMethods are reachable without an access token.
var publicMethods = map[string]bool{
	FullMethod("Register"): true,
	FullMethod("Login"):    true,
}

func requiresToken(fullMethod string) bool {
	return strings.HasPrefix(fullMethod, "/"+ServiceName+"/") && !publicMethods[fullMethod]
}

// accessTokenInterceptor resolves the access_token metadata of control
// calls to an account id stored in the context. The account must still be
// logged in.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !requiresToken(info.FullMethod) {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
			accessToken = values[0]
		}
	}
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	accountID, err := auth.GetAccountIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}
	if s.services.Sessions != nil && !s.services.Sessions.Active(accountID) {
		return nil, status.Error(codes.Unauthenticated, "session expired")
	}

	ctx = context.WithValue(ctx, accountIDKey, accountID)
	ctx = logging.WithAttrs(ctx, "account_id", accountID)
	return handler(ctx, req)
}

func accountFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(accountIDKey).(string)
	if !ok || id == "" {
		return "", status.Error(codes.Unauthenticated, "missing account")
	}
	return id, nil
}
