// Package grpc serves the record service over gRPC on top of any
// remote.Backend. It is the development relay the client's grpc backend
// talks to: it checks the session token and scopes every call to its owner.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/quotekeeper/internal/client/remote"
	"github.com/dmitrijs2005/quotekeeper/internal/logging"
	"github.com/dmitrijs2005/quotekeeper/internal/rpc"
	"github.com/dmitrijs2005/quotekeeper/internal/timex"
)

type RecordServer struct {
	address   string
	backend   remote.Backend
	logger    logging.Logger
	jwtSecret []byte
	clock     timex.Clock
}

func NewRecordServer(address string, l logging.Logger, backend remote.Backend, secretKey string, clock timex.Clock) *RecordServer {
	if clock == nil {
		clock = timex.SystemClock{}
	}
	return &RecordServer{
		address:   address,
		backend:   backend,
		logger:    logging.Module(l, "grpc_server"),
		jwtSecret: []byte(secretKey),
		clock:     clock,
	}
}

// NewServer returns a grpc.Server with the record service and the token
// interceptor registered, ready to Serve on any listener.
func (s *RecordServer) NewServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	rpc.RegisterRecordServiceServer(srv, s)
	return srv
}

// Run listens on the configured address until ctx is cancelled.
func (s *RecordServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	return srv.Serve(listen)
}
