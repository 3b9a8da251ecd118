package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/quotekeeper/internal/flagx"
	"github.com/dmitrijs2005/quotekeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer and
// timex.Duration fields let a file override only what it mentions.
type JsonConfig struct {
	DatabasePath     *string         `json:"database_path"`
	RemoteBackend    *string         `json:"remote_backend"`
	RemoteDSN        *string         `json:"remote_dsn"`
	GRPCEndpointAddr *string         `json:"grpc_endpoint_addr"`
	S3Bucket         *string         `json:"s3_bucket"`
	S3Region         *string         `json:"s3_region"`
	S3BaseEndpoint   *string         `json:"s3_base_endpoint"`
	S3Prefix         *string         `json:"s3_prefix"`
	AutoSyncSchedule *string         `json:"auto_sync_schedule"`
	LogFile          *string         `json:"log_file"`
	LogLevel         *string         `json:"log_level"`
	SyncCooldown     *timex.Duration `json:"sync_cooldown"`
	StaleLockAfter   *timex.Duration `json:"stale_lock_after"`
	SyncBatchSize    *int            `json:"sync_batch_size"`

	MatchFuzzyFloor      *float64 `json:"match_fuzzy_floor"`
	MatchHighConfidence  *float64 `json:"match_high_confidence"`
	MatchPromoteToExact  *float64 `json:"match_promote_to_exact"`
	MatchMaxAlternatives *int     `json:"match_max_alternatives"`
}

// parseJson overlays Config with values from the file named by -c/-config.
// No flag means nothing to do.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.RemoteBackend, jc.RemoteBackend)
	setString(&cfg.RemoteDSN, jc.RemoteDSN)
	setString(&cfg.GRPCEndpointAddr, jc.GRPCEndpointAddr)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setString(&cfg.S3Prefix, jc.S3Prefix)
	setString(&cfg.AutoSyncSchedule, jc.AutoSyncSchedule)
	setString(&cfg.LogFile, jc.LogFile)
	setString(&cfg.LogLevel, jc.LogLevel)
	if jc.SyncCooldown != nil {
		cfg.SyncCooldown = jc.SyncCooldown.Duration
	}
	if jc.StaleLockAfter != nil {
		cfg.StaleLockAfter = jc.StaleLockAfter.Duration
	}
	if jc.SyncBatchSize != nil {
		cfg.SyncBatchSize = *jc.SyncBatchSize
	}
	setFloat(&cfg.MatchFuzzyFloor, jc.MatchFuzzyFloor)
	setFloat(&cfg.MatchHighConfidence, jc.MatchHighConfidence)
	setFloat(&cfg.MatchPromoteToExact, jc.MatchPromoteToExact)
	if jc.MatchMaxAlternatives != nil {
		cfg.MatchMaxAlternatives = *jc.MatchMaxAlternatives
	}
	return nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
