package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/felixgeelhaar/apporte/internal/errors"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	return Options{
		Home:    dir,
		EnvFile: filepath.Join(dir, "missing.env"),
	}
}

func TestLoadDefaults(t *testing.T) {
	opts := testOptions(t)

	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api/v1", cfg.APIURL)
	assert.Equal(t, time.Duration(0), cfg.RequestTimeout)
	assert.Equal(t, StorageFile, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(opts.Home, "credentials.json"), cfg.Storage.Path)
	assert.Equal(t, "localhost:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, "apporte:", cfg.Storage.RedisPrefix)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, filepath.Join(opts.Home, "config.yaml"), cfg.File())
}

func TestLoadFile(t *testing.T) {
	opts := testOptions(t)
	content := `api_url: https://api.apporte.test/api/v1
request_timeout: 15s
storage:
  backend: redis
  redis_addr: cache:6379
  redis_ttl: 12h
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(opts.Home, "config.yaml"), []byte(content), 0o600))

	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, "https://api.apporte.test/api/v1", cfg.APIURL)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, StorageRedis, cfg.Storage.Backend)
	assert.Equal(t, "cache:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, 12*time.Hour, cfg.Storage.RedisTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	opts := testOptions(t)
	require.NoError(t, os.WriteFile(filepath.Join(opts.Home, "config.yaml"), []byte("api_url: https://file.test/api/v1\n"), 0o600))
	t.Setenv("APPORTE_API_URL", "https://env.test/api/v1")
	t.Setenv("APPORTE_STORAGE_BACKEND", "memory")

	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, "https://env.test/api/v1", cfg.APIURL)
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
}

func TestLoadDotEnv(t *testing.T) {
	opts := testOptions(t)
	opts.EnvFile = filepath.Join(opts.Home, ".env")
	require.NoError(t, os.WriteFile(opts.EnvFile, []byte("APPORTE_REQUEST_TIMEOUT=45s\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("APPORTE_REQUEST_TIMEOUT") })

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantKey string
	}{
		{name: "unknown backend", content: "storage:\n  backend: s3\n", wantKey: "storage.backend"},
		{name: "bad level", content: "logging:\n  level: loud\n", wantKey: "logging.level"},
		{name: "bad format", content: "logging:\n  format: xml\n", wantKey: "logging.format"},
		{name: "empty url", content: "api_url: \"\"\n", wantKey: "api_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(t)
			require.NoError(t, os.WriteFile(filepath.Join(opts.Home, "config.yaml"), []byte(tt.content), 0o600))

			_, err := Load(opts)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigInvalid))
			assert.Contains(t, err.Error(), tt.wantKey)
		})
	}
}

func TestLoadMalformedFile(t *testing.T) {
	opts := testOptions(t)
	require.NoError(t, os.WriteFile(filepath.Join(opts.Home, "config.yaml"), []byte("api_url: [unclosed\n"), 0o600))

	_, err := Load(opts)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigLoad))
}

func TestGet(t *testing.T) {
	cfg, err := Load(testOptions(t))
	require.NoError(t, err)

	got, err := cfg.Get("storage.backend")
	require.NoError(t, err)
	assert.Equal(t, "file", got)

	got, err = cfg.Get("request_timeout")
	require.NoError(t, err)
	assert.Equal(t, "0s", got)

	_, err = cfg.Get("providers.default")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigKey))
}

func TestSettings(t *testing.T) {
	cfg, err := Load(testOptions(t))
	require.NoError(t, err)

	settings := cfg.Settings()
	assert.Equal(t, "http://localhost:8000/api/v1", settings["api_url"])

	storage, ok := settings["storage"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "file", storage["backend"])
	assert.Equal(t, "0", storage["redis_db"])
}

func TestSetRoundTrip(t *testing.T) {
	opts := testOptions(t)
	path := filepath.Join(opts.Home, "nested", "config.yaml")
	opts.File = path

	require.NoError(t, Set(path, "api_url", "https://api.apporte.test/api/v1/"))
	require.NoError(t, Set(path, "storage.backend", "REDIS"))
	require.NoError(t, Set(path, "storage.redis_ttl", "90m"))
	require.NoError(t, Set(path, "storage.redis_db", "2"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, "https://api.apporte.test/api/v1", cfg.APIURL)
	assert.Equal(t, StorageRedis, cfg.Storage.Backend)
	assert.Equal(t, 90*time.Minute, cfg.Storage.RedisTTL)
	assert.Equal(t, 2, cfg.Storage.RedisDB)
}

func TestSetRejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	tests := []struct {
		key, value string
		code       apperrors.ErrorCode
	}{
		{key: "nope", value: "x", code: apperrors.ErrCodeConfigKey},
		{key: "api_url", value: "localhost:8000", code: apperrors.ErrCodeConfigInvalid},
		{key: "request_timeout", value: "soon", code: apperrors.ErrCodeConfigInvalid},
		{key: "request_timeout", value: "-1s", code: apperrors.ErrCodeConfigInvalid},
		{key: "storage.redis_db", value: "two", code: apperrors.ErrCodeConfigInvalid},
		{key: "logging.level", value: "trace", code: apperrors.ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := Set(path, tt.key, tt.value)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code))
		})
	}

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "rejected values must not create the file")
}

func TestKeysSorted(t *testing.T) {
	assert.IsIncreasing(t, Keys())
	assert.Contains(t, Keys(), "storage.redis_prefix")
}

func TestOverride(t *testing.T) {
	cfg, err := Load(testOptions(t))
	require.NoError(t, err)

	require.NoError(t, cfg.Override("api_url", "https://api.apporte.test/api/v1"))
	assert.Equal(t, "https://api.apporte.test/api/v1", cfg.APIURL)
	got, err := cfg.Get("api_url")
	require.NoError(t, err)
	assert.Equal(t, "https://api.apporte.test/api/v1", got)

	require.NoError(t, cfg.Override("storage.backend", StorageMemory))
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)

	err = cfg.Override("storage.backend", "tape")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigInvalid))

	err = cfg.Override("colour", "blue")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigKey))
}
