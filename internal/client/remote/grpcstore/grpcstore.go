// Package grpcstore implements the remote record store as a client of the
// record service (see package rpc). The owner is taken from the session
// token by the server, so every call carries the token in metadata.
package grpcstore

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/client/remote"
	"github.com/dmitrijs2005/quotekeeper/internal/common"
	"github.com/dmitrijs2005/quotekeeper/internal/rpc"
)

// TokenSource returns the current session token.
type TokenSource func(ctx context.Context) (string, error)

// Backend is a connection to the record service.
type Backend struct {
	conn   *grpc.ClientConn
	client rpc.RecordServiceClient
	token  TokenSource
}

// Dial creates a client for addr. Extra options are appended to the
// defaults (plaintext transport, token interceptor).
func Dial(addr string, token TokenSource, opts ...grpc.DialOption) (*Backend, error) {
	b := &Backend{token: token}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(b.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", common.ErrRemote, addr, err)
	}
	b.conn = conn
	b.client = rpc.NewRecordServiceClient(conn)
	return b, nil
}

func (b *Backend) Close() error { return b.conn.Close() }

func (b *Backend) Store(e models.EntityType) remote.Store {
	return &Store{client: b.client, entity: e}
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (b *Backend) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if b.token != nil {
		token, err := b.token(ctx)
		if err != nil {
			return err
		}
		ctx = withAccessToken(ctx, token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// mapError turns a status into the error taxonomy.
func mapError(op string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %s: %w", common.ErrRemote, op, err)
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s: %w: %s", common.ErrRemote, op, common.ErrInvalidToken, st.Message())
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s: %w: %s", common.ErrRemote, op, remote.ErrOwnerMismatch, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s: %w: %s", common.ErrRemote, op, common.ErrValidation, st.Message())
	default:
		return fmt.Errorf("%w: %s: %s: %s", common.ErrRemote, op, st.Code(), st.Message())
	}
}

// Store is the remote.Store of one entity type.
type Store struct {
	client rpc.RecordServiceClient
	entity models.EntityType
}

func (s *Store) Upsert(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	if _, err := s.client.Upsert(ctx, &rpc.UpsertRequest{Entity: s.entity, Records: records}); err != nil {
		return mapError("upsert", err)
	}
	return nil
}

// Query ignores q.OwnerID; the server scopes results to the token owner.
func (s *Store) Query(ctx context.Context, q remote.Query) ([]models.Record, error) {
	resp, err := s.client.Query(ctx, &rpc.QueryRequest{
		Entity:         s.entity,
		UpdatedAfter:   q.UpdatedAfter,
		AfterID:        q.AfterID,
		Limit:          q.Limit,
		ExcludeDeleted: q.ExcludeDeleted,
	})
	if err != nil {
		return nil, mapError("query", err)
	}
	return resp.Records, nil
}

// Delete ignores ownerID for the same reason as Query.
func (s *Store) Delete(ctx context.Context, id, _ string) error {
	if _, err := s.client.Delete(ctx, &rpc.DeleteRequest{Entity: s.entity, ID: id}); err != nil {
		return mapError("delete", err)
	}
	return nil
}
