package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/quotekeeper/internal/server"
	"github.com/dmitrijs2005/quotekeeper/internal/server/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	if cfg.IssueOwner != "" {
		if err := server.IssueToken(os.Stdout, cfg, time.Now()); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
