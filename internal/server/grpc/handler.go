package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/client/remote"
	"github.com/dmitrijs2005/quotekeeper/internal/common"
	"github.com/dmitrijs2005/quotekeeper/internal/rpc"
)

func (s *RecordServer) store(e models.EntityType) (remote.Store, error) {
	if _, err := models.ParseEntityType(string(e)); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return s.backend.Store(e), nil
}

func (s *RecordServer) toStatus(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, remote.ErrOwnerMismatch):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		s.logger.Error(ctx, op+" failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *RecordServer) Upsert(ctx context.Context, req *rpc.UpsertRequest) (*rpc.UpsertResponse, error) {
	owner, ok := ownerFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no owner")
	}
	st, err := s.store(req.Entity)
	if err != nil {
		return nil, err
	}
	for _, r := range req.Records {
		if r.OwnerID != owner {
			return nil, status.Errorf(codes.PermissionDenied, "record %s is not owned by the caller", r.ID)
		}
	}

	if err := st.Upsert(ctx, req.Records); err != nil {
		return nil, s.toStatus(ctx, "upsert", err)
	}
	s.logger.Debug(ctx, "upserted", "entity", req.Entity, "count", len(req.Records))
	return &rpc.UpsertResponse{Upserted: len(req.Records)}, nil
}

func (s *RecordServer) Query(ctx context.Context, req *rpc.QueryRequest) (*rpc.QueryResponse, error) {
	owner, ok := ownerFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no owner")
	}
	st, err := s.store(req.Entity)
	if err != nil {
		return nil, err
	}

	records, err := st.Query(ctx, remote.Query{
		OwnerID:        owner,
		UpdatedAfter:   req.UpdatedAfter,
		AfterID:        req.AfterID,
		Limit:          req.Limit,
		ExcludeDeleted: req.ExcludeDeleted,
	})
	if err != nil {
		return nil, s.toStatus(ctx, "query", err)
	}
	return &rpc.QueryResponse{Records: records}, nil
}

func (s *RecordServer) Delete(ctx context.Context, req *rpc.DeleteRequest) (*rpc.DeleteResponse, error) {
	owner, ok := ownerFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no owner")
	}
	st, err := s.store(req.Entity)
	if err != nil {
		return nil, err
	}
	if err := st.Delete(ctx, req.ID, owner); err != nil {
		return nil, s.toStatus(ctx, "delete", err)
	}
	return &rpc.DeleteResponse{}, nil
}
