package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowOrigins)
	assert.Equal(t, 5*time.Minute, cfg.ExportTimeout)
	assert.Equal(t, 4, cfg.ExportWindows)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 10, cfg.Fetch.Concurrency)
	assert.EqualValues(t, 200<<20, cfg.Fetch.MaxBytes)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.EqualValues(t, 16<<20, cfg.Cache.MaxEntryBytes)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("FETCH_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":7000"
export_timeout: 2m
fetch:
  concurrency: 4
  local_root: /srv/media
cache:
  backend: none
`), 0o644))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("FETCH_CONCURRENCY", "6")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, 2*time.Minute, cfg.ExportTimeout)
	assert.Equal(t, 6, cfg.Fetch.Concurrency)
	assert.Equal(t, "/srv/media", cfg.Fetch.LocalRoot)
	assert.Equal(t, "none", cfg.Cache.Backend)
}

func TestValidate(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	t.Setenv("CACHE_BACKEND", "redis")
	_, err := Load()
	assert.ErrorContains(t, err, "REDIS_ADDR")

	t.Setenv("CACHE_BACKEND", "disk")
	_, err = Load()
	assert.ErrorContains(t, err, "CACHE_BACKEND")

	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("LOG_FORMAT", "xml")
	_, err = Load()
	assert.ErrorContains(t, err, "LOG_FORMAT")

	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("EXPORT_WINDOW_CONCURRENCY", "0")
	_, err = Load()
	assert.ErrorContains(t, err, "EXPORT_WINDOW_CONCURRENCY")
}

func TestInitLogging(t *testing.T) {
	std := logrus.StandardLogger()
	prevOut, prevLevel, prevFormatter := std.Out, std.GetLevel(), std.Formatter
	t.Cleanup(func() {
		std.SetOutput(prevOut)
		std.SetLevel(prevLevel)
		std.SetFormatter(prevFormatter)
	})

	file := filepath.Join(t.TempDir(), "app.log")
	closer, err := InitLogging(LogConfig{Level: "debug", Format: "json", File: file})
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, std.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, std.Formatter)

	logrus.WithField("scene", 1).Info("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"scene":1`)

	_, err = InitLogging(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
