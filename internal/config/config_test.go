package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"store": "redis",
		"redis_addr": "localhost:6379",
		"locale": "pl",
		"concurrency": 4,
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "pl", cfg.Locale)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"defaults", Defaults(), ""},
		{"unknown store", Config{Store: "etcd"}, "'Store' failed 'oneof'"},
		{"bolt without path", Config{Store: StoreBolt}, "'bolt_path' is required"},
		{"postgres without url", Config{Store: StorePostgres}, "'database_url' is required"},
		{"postgres", Config{Store: StorePostgres, DatabaseURL: "postgres://localhost/ccx"}, ""},
		{"bad worker url", Config{WorkerURL: "not a url"}, "'WorkerURL' failed 'url'"},
		{"bad port", Config{Port: 70000}, "'Port' failed 'lte'"},
		{"negative concurrency", Config{Concurrency: -1}, "'Concurrency' failed 'gte'"},
		{"bad redis addr", Config{Store: StoreRedis, RedisAddr: "nohost"}, "'RedisAddr' failed 'hostname_port'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{Store: StoreRedis, Concurrency: 3}

	merged := cfg.MergeWithDefaults(Defaults())

	assert.Equal(t, StoreRedis, merged.Store)
	assert.Equal(t, 3, merged.Concurrency)
	assert.Equal(t, "ccx.db", merged.BoltPath)
	assert.Equal(t, "en", merged.Locale)
	assert.Equal(t, 8080, merged.Port)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CCX_STORE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://db/ccx")
	t.Setenv("CCX_WORKER_URL", "http://worker:8080")
	t.Setenv("CCX_CONCURRENCY", "8")
	t.Setenv("CCX_VERBOSE", "true")

	cfg := Config{Store: StoreBolt, Locale: "de"}
	cfg.ApplyEnv()

	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, "postgres://db/ccx", cfg.DatabaseURL)
	assert.Equal(t, "http://worker:8080", cfg.WorkerURL)
	assert.Equal(t, "de", cfg.Locale)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.True(t, cfg.Verbose)
}

func TestLoad(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{"store":"memory","locale":"pl"}`), 0644))
	t.Setenv("CCX_LOCALE", "")

	cfg, err := Load(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "pl", cfg.Locale)
	assert.Equal(t, 8080, cfg.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("CCX_TEST_INT", "12")
	t.Setenv("CCX_TEST_BAD_INT", "x")
	t.Setenv("CCX_TEST_DUR", "250ms")
	t.Setenv("CCX_TEST_LIST", " a, ,b ")

	assert.Equal(t, 12, EnvInt("CCX_TEST_INT", 1))
	assert.Equal(t, 1, EnvInt("CCX_TEST_BAD_INT", 1))
	assert.Equal(t, 250*time.Millisecond, EnvDuration("CCX_TEST_DUR", time.Second))
	assert.Equal(t, "fallback", EnvString("CCX_TEST_UNSET", "fallback"))
	assert.False(t, EnvBool("CCX_TEST_UNSET", false))
	assert.Equal(t, []string{"a", "b"}, EnvList("CCX_TEST_LIST"))
}
