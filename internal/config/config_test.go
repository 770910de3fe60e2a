package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.Equal(t, StoreMySQL, cfg.Store)
	require.True(t, cfg.Discovery.UseSample)
	require.Equal(t, 10*time.Second, cfg.Fetch.Timeout)
	require.EqualValues(t, 1<<20, cfg.Fetch.MaxBodyBytes)
	require.GreaterOrEqual(t, cfg.Lookup.Concurrency, 1)
	require.Contains(t, cfg.MySQL.DSN(), "clientFoundRows=true")
	require.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
env: staging
grpc_addr: ":7000"
store: memory
redis:
  addr: ""
cache:
  enable: false
  ttl: 30s
discovery:
  use_sample: false
  url: https://op.example.com/.well-known/openid-configuration
  max_tries: 3
fetch:
  timeout: 2s
  max_body_bytes: 4096
lookup:
  concurrency: 7
registration:
  initial_access_token: s3cret
limits:
  register_per_minute: 5
  window: 2m
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	require.Equal(t, "staging", cfg.Env)
	require.Equal(t, ":7000", cfg.GRPCAddr)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, StoreMemory, cfg.Store)
	require.Empty(t, cfg.Redis.Addr)
	require.False(t, cfg.Cache.Enable)
	require.Equal(t, 30*time.Second, cfg.Cache.TTL)
	require.False(t, cfg.Discovery.UseSample)
	require.EqualValues(t, 3, cfg.Discovery.MaxTries)
	require.Equal(t, 2*time.Second, cfg.Fetch.Timeout)
	require.EqualValues(t, 4096, cfg.Fetch.MaxBodyBytes)
	require.Equal(t, 7, cfg.Lookup.Concurrency)
	require.Equal(t, "s3cret", cfg.Registration.InitialAccessToken)
	require.Equal(t, 5, cfg.Limits.RegisterPerMinute)
	require.Equal(t, 2*time.Minute, cfg.Limits.Window)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateProdBaseline(t *testing.T) {
	cfg := Defaults()
	cfg.Env = "prod"
	require.Error(t, cfg.Validate())

	cfg.MySQL.Password = "strong"
	require.Error(t, cfg.Validate(), "sample discovery must be rejected in prod")

	cfg.Discovery.UseSample = false
	cfg.Discovery.URL = "https://op.example.com/.well-known/openid-configuration"
	require.NoError(t, cfg.Validate())

	cfg.Store = StoreMemory
	require.Error(t, cfg.Validate())
}
