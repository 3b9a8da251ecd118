package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/quotekeeper/internal/flagx"
	"github.com/dmitrijs2005/quotekeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// timex.Duration accepts both "720h" and integer nanoseconds. Absent keys
// leave the current value alone.
type JsonConfig struct {
	EndpointAddrGRPC      *string         `json:"endpoint_addr_grpc"`
	Backend               *string         `json:"backend"`
	DatabaseDSN           *string         `json:"database_dsn"`
	SecretKey             *string         `json:"secret_key"`
	TokenValidityDuration *timex.Duration `json:"token_validity_duration"`
	S3AccessKey           *string         `json:"s3_access_key"`
	S3SecretKey           *string         `json:"s3_secret_key"`
	S3Bucket              *string         `json:"s3_bucket"`
	S3Region              *string         `json:"s3_region"`
	S3BaseEndpoint        *string         `json:"s3_base_endpoint"`
	S3Prefix              *string         `json:"s3_prefix"`
	LogLevel              *string         `json:"log_level"`
}

// parseJson loads configuration values from the file named by -c/-config.
// If the flag is absent nothing is loaded.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	for dst, v := range map[*string]*string{
		&config.EndpointAddrGRPC: c.EndpointAddrGRPC,
		&config.Backend:          c.Backend,
		&config.DatabaseDSN:      c.DatabaseDSN,
		&config.SecretKey:        c.SecretKey,
		&config.S3AccessKey:      c.S3AccessKey,
		&config.S3SecretKey:      c.S3SecretKey,
		&config.S3Bucket:         c.S3Bucket,
		&config.S3Region:         c.S3Region,
		&config.S3BaseEndpoint:   c.S3BaseEndpoint,
		&config.S3Prefix:         c.S3Prefix,
		&config.LogLevel:         c.LogLevel,
	} {
		if v != nil {
			*dst = *v
		}
	}
	if c.TokenValidityDuration != nil {
		config.TokenValidityDuration = c.TokenValidityDuration.Duration
	}
	return nil
}
