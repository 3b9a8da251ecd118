package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/quotekeeper/internal/auth"
	"github.com/dmitrijs2005/quotekeeper/internal/common"
	"github.com/dmitrijs2005/quotekeeper/internal/rpc"
)

type ctxKey string

// OwnerIDKey holds the verified owner id in a handler's context.
const OwnerIDKey ctxKey = "ownerID"

func ownerFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(OwnerIDKey).(string)
	return v, ok && v != ""
}

// accessTokenInterceptor guards every record service method.
func (s *RecordServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !strings.HasPrefix(info.FullMethod, "/"+rpc.ServiceName+"/") {
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

	claims, err := auth.VerifyToken(accessToken, s.jwtSecret, s.clock.Now())
	if err != nil {
		s.logger.Warn(ctx, "rejected token", "method", info.FullMethod, "error", err)
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	ctx = context.WithValue(ctx, OwnerIDKey, claims.OwnerID())
	return handler(ctx, req)
}
