// Package config loads runtime configuration for the QuoteKeeper client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. A dotenv file (".env") and the process environment, QK_* names;
//     the real environment wins over the file.
//  3. Optional JSON file selected via -c or -config.
//  4. Command-line flags: -d, -r, -a, -s, -l.
//
// # JSON schema
//
// Durations use timex.Duration, so "5s" and integer nanoseconds both work:
//
//	{
//	  "database_path": "quotes.db",
//	  "remote_backend": "grpc",
//	  "grpc_endpoint_addr": "127.0.0.1:50051",
//	  "sync_cooldown": "5s",
//	  "stale_lock_after": "1m"
//	}
package config
