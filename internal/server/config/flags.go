package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/quotekeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-b string   storage backend (memory, postgres, s3)
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      issued token validity, hours
//	-l string   log level
//	-issue string  print a token for this owner and exit
//	-tier string   tier of the issued token
//
// Duration flags are accepted as integers in hours and then converted
// to time.Duration values.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-b", "-d", "-s", "-t", "-l", "-issue", "-tier"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.Backend, "b", config.Backend, "storage backend")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	validity := fs.Int("t", int(config.TokenValidityDuration.Hours()), "token validity (in hours)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.IssueOwner, "issue", config.IssueOwner, "issue a token for this owner and exit")
	fs.StringVar(&config.IssueTier, "tier", config.IssueTier, "tier of the issued token")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.TokenValidityDuration = time.Duration(*validity) * time.Hour
	return nil
}
