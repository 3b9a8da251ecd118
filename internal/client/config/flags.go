package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/quotekeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-d string   local database path
//	-r string   remote backend (memory, postgres, grpc, s3)
//	-a string   address:port of the remote record service (grpc backend)
//	-s string   auto-sync cron schedule, "" disables background sync
//	-l string   log level
//
// Only these flags are looked at; see flagx.FilterArgs.
func parseFlags(cfg *Config, args []string) error {
	filtered := flagx.FilterArgs(args, []string{"-d", "-r", "-a", "-s", "-l"})

	fs := flag.NewFlagSet("quotekeeper", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.RemoteBackend, "r", cfg.RemoteBackend, "remote backend")
	fs.StringVar(&cfg.GRPCEndpointAddr, "a", cfg.GRPCEndpointAddr, "remote record service address")
	fs.StringVar(&cfg.AutoSyncSchedule, "s", cfg.AutoSyncSchedule, "auto-sync schedule")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	return fs.Parse(filtered)
}
