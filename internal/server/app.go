// Package server initializes and runs the record server: it opens the
// configured storage backend, serves the record service over gRPC and
// shuts down on SIGINT/SIGTERM.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	jwtauth "github.com/dmitrijs2005/quotekeeper/internal/auth"
	"github.com/dmitrijs2005/quotekeeper/internal/client/remote"
	"github.com/dmitrijs2005/quotekeeper/internal/client/remote/postgres"
	"github.com/dmitrijs2005/quotekeeper/internal/client/remote/s3store"
	"github.com/dmitrijs2005/quotekeeper/internal/logging"
	"github.com/dmitrijs2005/quotekeeper/internal/server/config"

	gs "github.com/dmitrijs2005/quotekeeper/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	backend remote.Backend
	closer  io.Closer
}

// openBackend is a seam so tests can run without postgres or S3.
var openBackend = func(ctx context.Context, c *config.Config) (remote.Backend, io.Closer, error) {
	switch c.Backend {
	case config.BackendMemory:
		return remote.NewMemoryBackend(nil), nil, nil
	case config.BackendPostgres:
		b, err := postgres.Open(ctx, c.DatabaseDSN, nil)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case config.BackendS3:
		client, err := s3store.NewClient(ctx, s3store.Options{
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3store.New(client, c.S3Bucket, c.S3Prefix, nil), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logging.ParseLevel(c.LogLevel)})
	logger := logging.NewSlogLogger(slog.New(h))

	backend, closer, err := openBackend(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	return &App{config: c, logger: logger, backend: backend, closer: closer}, nil
}

// IssueToken writes a signed session token for owner to w. It is how
// development users get a token for the client's login command.
func IssueToken(w io.Writer, c *config.Config, now time.Time) error {
	token, err := jwtauth.GenerateToken(c.IssueOwner, c.IssueTier, []byte(c.SecretKey), c.TokenValidityDuration, now)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewRecordServer(app.config.EndpointAddrGRPC, app.logger, app.backend, app.config.SecretKey, nil)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "backend", app.config.Backend)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.closer != nil {
		if err := app.closer.Close(); err != nil {
			app.logger.Error(ctx, "close storage", "error", err)
		}
	}
}
