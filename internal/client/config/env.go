package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with QK_* variables. Values from the process
// environment win over values read from the dotenv file; a missing dotenv
// file is not an error.
func parseEnv(cfg *Config, dotenvPath string, lookup func(string) (string, bool)) error {
	fileVars := map[string]string{}
	if dotenvPath != "" {
		vars, err := godotenv.Read(dotenvPath)
		switch {
		case err == nil:
			fileVars = vars
		case errors.Is(err, fs.ErrNotExist):
		default:
			return fmt.Errorf("read %s: %w", dotenvPath, err)
		}
	}

	get := func(name string) (string, bool) {
		if lookup != nil {
			if v, ok := lookup(name); ok {
				return v, true
			}
		}
		v, ok := fileVars[name]
		return v, ok
	}

	strs := map[string]*string{
		"QK_DB_PATH":        &cfg.DatabasePath,
		"QK_REMOTE_BACKEND": &cfg.RemoteBackend,
		"QK_REMOTE_DSN":     &cfg.RemoteDSN,
		"QK_GRPC_ADDR":      &cfg.GRPCEndpointAddr,
		"QK_S3_BUCKET":      &cfg.S3Bucket,
		"QK_S3_REGION":      &cfg.S3Region,
		"QK_S3_ENDPOINT":    &cfg.S3BaseEndpoint,
		"QK_S3_ACCESS_KEY":  &cfg.S3AccessKey,
		"QK_S3_SECRET_KEY":  &cfg.S3SecretKey,
		"QK_S3_PREFIX":      &cfg.S3Prefix,
		"QK_AUTO_SYNC":      &cfg.AutoSyncSchedule,
		"QK_LOG_FILE":       &cfg.LogFile,
		"QK_LOG_LEVEL":      &cfg.LogLevel,
	}
	for name, dst := range strs {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"QK_SYNC_COOLDOWN":    &cfg.SyncCooldown,
		"QK_STALE_LOCK_AFTER": &cfg.StaleLockAfter,
	}
	for name, dst := range durations {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
	}

	ints := map[string]*int{
		"QK_SYNC_BATCH_SIZE":        &cfg.SyncBatchSize,
		"QK_MATCH_MAX_ALTERNATIVES": &cfg.MatchMaxAlternatives,
	}
	for name, dst := range ints {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
	}

	floats := map[string]*float64{
		"QK_MATCH_FUZZY_FLOOR":      &cfg.MatchFuzzyFloor,
		"QK_MATCH_HIGH_CONFIDENCE":  &cfg.MatchHighConfidence,
		"QK_MATCH_PROMOTE_TO_EXACT": &cfg.MatchPromoteToExact,
	}
	for name, dst := range floats {
		if v, ok := get(name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = f
		}
	}

	return nil
}
