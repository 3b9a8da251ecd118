package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/quotekeeper/internal/client/matching"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "quotekeeper.db", c.DatabasePath)
	assert.Equal(t, BackendMemory, c.RemoteBackend)
	assert.Equal(t, 5*time.Second, c.SyncCooldown)
	assert.Equal(t, 60*time.Second, c.StaleLockAfter)
	assert.Equal(t, 50, c.SyncBatchSize)
}

func TestLoad_NoSourcesKeepsDefaults(t *testing.T) {
	cfg, err := Load(nil, filepath.Join(t.TempDir(), "missing.env"), noEnv)
	require.NoError(t, err)

	var want Config
	want.LoadDefaults()
	assert.Empty(t, cmp.Diff(&want, cfg))
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()

	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("QK_DB_PATH=from-dotenv.db\nQK_LOG_LEVEL=debug\nQK_REMOTE_BACKEND=s3\n"), 0o600))

	jsonPath := filepath.Join(dir, "conf.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"remote_backend":"postgres","sync_cooldown":"10s","sync_batch_size":20}`), 0o600))

	env := envMap(map[string]string{"QK_LOG_LEVEL": "warn"})
	args := []string{"-c", jsonPath, "-d", "from-flag.db", "-unrelated", "x"}

	cfg, err := Load(args, dotenv, env)
	require.NoError(t, err)

	assert.Equal(t, "from-flag.db", cfg.DatabasePath, "flags win")
	assert.Equal(t, BackendPostgres, cfg.RemoteBackend, "json wins over dotenv")
	assert.Equal(t, "warn", cfg.LogLevel, "environment wins over dotenv")
	assert.Equal(t, 10*time.Second, cfg.SyncCooldown)
	assert.Equal(t, 20, cfg.SyncBatchSize)
	assert.Equal(t, 60*time.Second, cfg.StaleLockAfter, "untouched defaults survive")
}

func TestLoad_EnvDurationsAndNumbers(t *testing.T) {
	env := envMap(map[string]string{
		"QK_SYNC_COOLDOWN":    "2s",
		"QK_STALE_LOCK_AFTER": "90s",
		"QK_SYNC_BATCH_SIZE":  "10",
		"QK_AUTO_SYNC":        "",
	})
	cfg, err := Load(nil, "", env)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.SyncCooldown)
	assert.Equal(t, 90*time.Second, cfg.StaleLockAfter)
	assert.Equal(t, 10, cfg.SyncBatchSize)
	assert.Empty(t, cfg.AutoSyncSchedule)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(nil, "", envMap(map[string]string{"QK_SYNC_COOLDOWN": "soon"}))
	require.Error(t, err)

	_, err = Load(nil, "", envMap(map[string]string{"QK_SYNC_BATCH_SIZE": "many"}))
	require.Error(t, err)

	_, err = Load([]string{"-c", filepath.Join(t.TempDir(), "nope.json")}, "", noEnv)
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"sync_cooldown":`), 0o600))
	_, err = Load([]string{"-c", bad}, "", noEnv)
	require.Error(t, err)
}

func TestMatchWeights_DefaultsMatchMatcher(t *testing.T) {
	var c Config
	c.LoadDefaults()
	assert.Equal(t, matching.DefaultWeights(), c.MatchWeights())
}

func TestLoad_MatchThresholds(t *testing.T) {
	jsonPath := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"match_high_confidence":65,"match_max_alternatives":4}`), 0o600))

	env := envMap(map[string]string{
		"QK_MATCH_FUZZY_FLOOR":     "55",
		"QK_MATCH_HIGH_CONFIDENCE": "90",
	})
	cfg, err := Load([]string{"-c", jsonPath}, "", env)
	require.NoError(t, err)

	w := cfg.MatchWeights()
	assert.Equal(t, 55.0, w.FuzzyFloor)
	assert.Equal(t, 65.0, w.HighConfidence, "json wins over environment")
	assert.Equal(t, matching.PromoteToExact, w.PromoteToExact)
	assert.Equal(t, 4, w.MaxAlternatives)
	assert.Equal(t, matching.ExactWeight, w.Exact, "scoring weights are not configurable")

	_, err = Load(nil, "", envMap(map[string]string{"QK_MATCH_FUZZY_FLOOR": "high"}))
	require.Error(t, err)
}
