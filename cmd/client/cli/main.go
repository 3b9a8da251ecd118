package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/quotekeeper/internal/client/auth"
	"github.com/dmitrijs2005/quotekeeper/internal/client/cli"
	"github.com/dmitrijs2005/quotekeeper/internal/client/config"
	"github.com/dmitrijs2005/quotekeeper/internal/client/formula"
	"github.com/dmitrijs2005/quotekeeper/internal/client/localdb"
	"github.com/dmitrijs2005/quotekeeper/internal/client/matching"
	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/client/remote"
	"github.com/dmitrijs2005/quotekeeper/internal/client/remote/grpcstore"
	"github.com/dmitrijs2005/quotekeeper/internal/client/remote/postgres"
	"github.com/dmitrijs2005/quotekeeper/internal/client/remote/s3store"
	"github.com/dmitrijs2005/quotekeeper/internal/client/repair"
	"github.com/dmitrijs2005/quotekeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/quotekeeper/internal/client/services"
	"github.com/dmitrijs2005/quotekeeper/internal/client/store"
	"github.com/dmitrijs2005/quotekeeper/internal/client/syncer"
	"github.com/dmitrijs2005/quotekeeper/internal/filex"
	"github.com/dmitrijs2005/quotekeeper/internal/logging"
)

const onlineCheckInterval = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}

func openRemote(ctx context.Context, cfg *config.Config, tokens *auth.Provider) (remote.Backend, io.Closer, error) {
	switch cfg.RemoteBackend {
	case config.BackendMemory:
		return remote.NewMemoryBackend(nil), nil, nil
	case config.BackendPostgres:
		b, err := postgres.Open(ctx, cfg.RemoteDSN, nil)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case config.BackendGRPC:
		b, err := grpcstore.Dial(cfg.GRPCEndpointAddr, tokens.Token)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case config.BackendS3:
		client, err := s3store.NewClient(ctx, s3store.Options{
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3store.New(client, cfg.S3Bucket, cfg.S3Prefix, nil), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown remote backend %q", cfg.RemoteBackend)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	for _, p := range []string{cfg.DatabasePath, cfg.LogFile} {
		if err := filex.EnsureParentDir(p); err != nil {
			return err
		}
	}

	logger, logCloser := logging.NewFileLogger(logging.FileOptions{
		Path:       cfg.LogFile,
		Level:      cfg.LogLevel,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	})
	defer logCloser.Close()

	db, err := localdb.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("local database: %w", err)
	}
	defer db.Close()

	repo := kv.NewSQLiteRepository(db)
	st := store.New(repo, store.WithLogger(logger))
	sessions := auth.NewProvider(repo, nil)

	backend, remoteCloser, err := openRemote(ctx, cfg, sessions)
	if err != nil {
		return fmt.Errorf("remote store: %w", err)
	}
	if remoteCloser != nil {
		defer remoteCloser.Close()
	}

	engine := syncer.New(st, backend, repo, sessions,
		syncer.WithOptions(syncer.Options{
			Cooldown:       cfg.SyncCooldown,
			StaleLockAfter: cfg.StaleLockAfter,
			BatchSize:      cfg.SyncBatchSize,
		}),
		syncer.WithLogger(logger),
	)
	repairer := repair.New(st,
		repair.WithRemote(backend, sessions, auth.DefaultEntitlement),
		repair.WithDeletionQueue(engine),
		repair.WithLogger(logger),
	)

	records := services.NewRecordService(st, sessions,
		services.WithSync(engine, cfg.AutoSyncSchedule != ""),
		services.WithLogger(logger),
	)

	app := cli.NewApp(cli.Deps{
		Sessions:  sessions,
		Syncer:    engine,
		Repairer:  repairer,
		Records:   records,
		Quotes:    services.NewQuoteService(records, formula.New()),
		Templates: services.NewTemplateService(records, matching.WithWeights(cfg.MatchWeights())),
		Ping: func(ctx context.Context) error {
			owner, err := sessions.CurrentOwnerID(ctx)
			if err != nil {
				return err
			}
			_, err = backend.Store(models.EntityPricebook).Query(ctx, remote.Query{OwnerID: owner, Limit: 1})
			return err
		},
		Logger: logger,
	})

	go app.StartOnlineStatusWatcher(ctx, onlineCheckInterval)
	if cfg.AutoSyncSchedule != "" {
		if err := app.StartAutoSync(ctx, cfg.AutoSyncSchedule); err != nil {
			return err
		}
	}

	app.Run(ctx)
	return nil
}
