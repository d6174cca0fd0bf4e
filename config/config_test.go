package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/segcodec/internal/compression"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segcodec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
postings:
  default: FixedIntBlock
  blockSize: 64
  compression: snappy
  fields:
    id: Memory
docValues:
  fields:
    tags: JSON
  jsonCodec: json
storage:
  type: minio
  endpoint: localhost:9000
  bucket: segments
  prefix: idx/
  cacheBytes: 8388608
write:
  maxBytesPerSec: 1048576
logging:
  level: debug
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "FixedIntBlock", cfg.Postings.Default)
	assert.Equal(t, 64, cfg.Postings.BlockSize)
	assert.Equal(t, 64, cfg.Postings.BaseBlockSize)
	assert.Equal(t, map[string]string{"id": "Memory"}, cfg.Postings.Fields)
	assert.Equal(t, "Direct", cfg.DocValues.Default)
	assert.Equal(t, map[string]string{"tags": "JSON"}, cfg.DocValues.Fields)
	assert.Equal(t, 1048576, cfg.Write.MaxBytesPerSec)
	assert.Equal(t, StorageConfig{
		Type:           StorageMinio,
		Path:           ".",
		Bucket:         "segments",
		Prefix:         "idx/",
		Endpoint:       "localhost:9000",
		CacheBytes:     8 << 20,
		CacheBlockSize: 64 << 10,
	}, cfg.Storage)
	assert.True(t, cfg.Logging.JSON())

	ct, err := cfg.Postings.CompressionType()
	require.NoError(t, err)
	assert.Equal(t, compression.Snappy, ct)

	level, err := cfg.Logging.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte("postings: ["))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvDefaultPostings, "Memory")
	t.Setenv(EnvDefaultDocValues, "JSON")
	t.Setenv(EnvMaxBytesPerSec, "4096")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvStorageType, StorageMemory)
	t.Setenv(EnvStorageAccessKey, "ak")
	t.Setenv(EnvStorageSecretKey, "sk")

	cfg, err := Parse([]byte("postings:\n  default: VInt\n"))
	require.NoError(t, err)
	assert.Equal(t, "Memory", cfg.Postings.Default)
	assert.Equal(t, "JSON", cfg.DocValues.Default)
	assert.Equal(t, 4096, cfg.Write.MaxBytesPerSec)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON())
	assert.Equal(t, StorageMemory, cfg.Storage.Type)
	assert.Equal(t, "ak", cfg.Storage.AccessKey)
	assert.Equal(t, "sk", cfg.Storage.SecretKey)
}

func TestEnvOverrideInvalidNumber(t *testing.T) {
	t.Setenv(EnvMaxBytesPerSec, "fast")
	_, err := Parse(nil)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty postings default", func(c *Config) { c.Postings.Default = "" }},
		{"empty doc values default", func(c *Config) { c.DocValues.Default = "" }},
		{"zero block size", func(c *Config) { c.Postings.BlockSize = 0 }},
		{"negative base block size", func(c *Config) { c.Postings.BaseBlockSize = -1 }},
		{"negative write rate", func(c *Config) { c.Write.MaxBytesPerSec = -1 }},
		{"empty field override", func(c *Config) { c.Postings.Fields = map[string]string{"id": ""} }},
		{"empty doc values override", func(c *Config) { c.DocValues.Fields = map[string]string{"n": ""} }},
		{"unknown postings compression", func(c *Config) { c.Postings.Compression = "brotli" }},
		{"unknown doc values compression", func(c *Config) { c.DocValues.Compression = "gzip" }},
		{"unknown json codec", func(c *Config) { c.DocValues.JSONCodec = "sonic" }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "ftp" }},
		{"fs without path", func(c *Config) { c.Storage.Path = "" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = StorageS3 }},
		{"minio without endpoint", func(c *Config) { c.Storage = StorageConfig{Type: StorageMinio, Bucket: "b"} }},
		{"negative cache", func(c *Config) { c.Storage.CacheBytes = -1 }},
		{"cache without block size", func(c *Config) { c.Storage.CacheBytes = 1 << 20; c.Storage.CacheBlockSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}

	assert.NoError(t, Default().Validate())
}
