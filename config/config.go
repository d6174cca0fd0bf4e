// Package config loads codec configuration from YAML files with
// environment-variable overrides: which postings and doc values format each
// field uses, the parameters of the built-in formats, where segments are
// stored, write throttling and logging.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/segcodec/internal/compression"
	"github.com/hupe1980/segcodec/internal/jsoncodec"
)

// Environment variables that override file values.
const (
	EnvDefaultPostings  = "SEGCODEC_DEFAULT_POSTINGS"
	EnvDefaultDocValues = "SEGCODEC_DEFAULT_DOC_VALUES"
	EnvMaxBytesPerSec   = "SEGCODEC_MAX_WRITE_BYTES_PER_SEC"
	EnvLogLevel         = "SEGCODEC_LOG_LEVEL"
	EnvLogFormat        = "SEGCODEC_LOG_FORMAT"
	EnvStorageType      = "SEGCODEC_STORAGE_TYPE"
	EnvStorageAccessKey = "SEGCODEC_STORAGE_ACCESS_KEY"
	EnvStorageSecretKey = "SEGCODEC_STORAGE_SECRET_KEY"
)

// Storage types.
const (
	StorageFS     = "fs"
	StorageLocal  = "local"
	StorageMemory = "memory"
	StorageS3     = "s3"
	StorageMinio  = "minio"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the top-level codec configuration.
type Config struct {
	Postings  PostingsConfig  `yaml:"postings"`
	DocValues DocValuesConfig `yaml:"docValues"`
	Storage   StorageConfig   `yaml:"storage"`
	Write     WriteConfig     `yaml:"write"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PostingsConfig selects postings formats by registered name.
type PostingsConfig struct {
	Default string `yaml:"default"`
	// Fields maps a field name to the format used instead of Default.
	Fields map[string]string `yaml:"fields"`
	// BlockSize of the FixedIntBlock and CompressedIntBlock formats.
	BlockSize int `yaml:"blockSize"`
	// BaseBlockSize of the VariableIntBlock format.
	BaseBlockSize int `yaml:"baseBlockSize"`
	// Compression of the CompressedIntBlock and Memory formats.
	Compression string `yaml:"compression"`
}

// DocValuesConfig selects doc values formats by registered name.
type DocValuesConfig struct {
	Default string            `yaml:"default"`
	Fields  map[string]string `yaml:"fields"`
	// Compression of the Direct format.
	Compression string `yaml:"compression"`
	// JSONCodec is the JSON implementation of the JSON format.
	JSONCodec string `yaml:"jsonCodec"`
}

// StorageConfig selects the directory segments live in.
type StorageConfig struct {
	// Type is one of fs, local, memory, s3 or minio.
	Type string `yaml:"type"`
	// Path is the root of fs and local storage.
	Path string `yaml:"path"`

	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Secure    bool   `yaml:"secure"`

	// CacheBytes enables a block cache of that capacity in front of blob
	// storage. Zero disables it.
	CacheBytes     int64 `yaml:"cacheBytes"`
	CacheBlockSize int64 `yaml:"cacheBlockSize"`
}

// WriteConfig controls segment writes.
type WriteConfig struct {
	// MaxBytesPerSec throttles writes; zero disables throttling.
	MaxBytesPerSec int `yaml:"maxBytesPerSec"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Postings: PostingsConfig{
			Default:       "VInt",
			BlockSize:     128,
			BaseBlockSize: 64,
			Compression:   "zstd",
		},
		DocValues: DocValuesConfig{
			Default:     "Direct",
			Compression: "lz4",
			JSONCodec:   jsoncodec.Default.Name(),
		},
		Storage: StorageConfig{
			Type:           StorageFS,
			Path:           ".",
			CacheBlockSize: 64 << 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults, then applies environment overrides
// and validates.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvDefaultPostings); v != "" {
		cfg.Postings.Default = v
	}
	if v := os.Getenv(EnvDefaultDocValues); v != "" {
		cfg.DocValues.Default = v
	}
	if v := os.Getenv(EnvMaxBytesPerSec); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvMaxBytesPerSec, v, err)
		}
		cfg.Write.MaxBytesPerSec = n
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv(EnvStorageType); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv(EnvStorageAccessKey); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv(EnvStorageSecretKey); v != "" {
		cfg.Storage.SecretKey = v
	}
	return nil
}

// Validate reports the first invalid setting. Format names are checked when
// a codec is built from the configuration.
func (c *Config) Validate() error {
	switch {
	case c.Postings.Default == "":
		return fmt.Errorf("%w: postings.default is empty", ErrInvalid)
	case c.DocValues.Default == "":
		return fmt.Errorf("%w: docValues.default is empty", ErrInvalid)
	case c.Postings.BlockSize <= 0:
		return fmt.Errorf("%w: postings.blockSize must be positive, got %d", ErrInvalid, c.Postings.BlockSize)
	case c.Postings.BaseBlockSize <= 0:
		return fmt.Errorf("%w: postings.baseBlockSize must be positive, got %d", ErrInvalid, c.Postings.BaseBlockSize)
	case c.Write.MaxBytesPerSec < 0:
		return fmt.Errorf("%w: write.maxBytesPerSec is negative", ErrInvalid)
	}
	for field, name := range c.Postings.Fields {
		if name == "" {
			return fmt.Errorf("%w: postings.fields.%s is empty", ErrInvalid, field)
		}
	}
	for field, name := range c.DocValues.Fields {
		if name == "" {
			return fmt.Errorf("%w: docValues.fields.%s is empty", ErrInvalid, field)
		}
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if _, err := c.Postings.CompressionType(); err != nil {
		return fmt.Errorf("%w: postings.compression: %v", ErrInvalid, err)
	}
	if _, err := c.DocValues.CompressionType(); err != nil {
		return fmt.Errorf("%w: docValues.compression: %v", ErrInvalid, err)
	}
	if _, ok := jsoncodec.ByName(c.DocValues.JSONCodec); !ok {
		return fmt.Errorf("%w: docValues.jsonCodec %q is unknown", ErrInvalid, c.DocValues.JSONCodec)
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return fmt.Errorf("%w: logging.level: %v", ErrInvalid, err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging.format %q is not text or json", ErrInvalid, c.Logging.Format)
	}
	return nil
}

func (s StorageConfig) validate() error {
	switch s.Type {
	case StorageFS, StorageLocal:
		if s.Path == "" {
			return fmt.Errorf("%w: storage.path is required for %s storage", ErrInvalid, s.Type)
		}
	case StorageMemory:
	case StorageS3, StorageMinio:
		if s.Bucket == "" {
			return fmt.Errorf("%w: storage.bucket is required for %s storage", ErrInvalid, s.Type)
		}
		if s.Type == StorageMinio && s.Endpoint == "" {
			return fmt.Errorf("%w: storage.endpoint is required for minio storage", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: storage.type %q is unknown", ErrInvalid, s.Type)
	}
	if s.CacheBytes < 0 {
		return fmt.Errorf("%w: storage.cacheBytes is negative", ErrInvalid)
	}
	if s.CacheBytes > 0 && s.CacheBlockSize <= 0 {
		return fmt.Errorf("%w: storage.cacheBlockSize must be positive", ErrInvalid)
	}
	return nil
}

// CompressionType parses Compression.
func (p PostingsConfig) CompressionType() (compression.Type, error) {
	return compression.ParseType(p.Compression)
}

// CompressionType parses Compression.
func (d DocValuesConfig) CompressionType() (compression.Type, error) {
	return compression.ParseType(d.Compression)
}

// SlogLevel parses Level ("debug", "info", "warn", "error").
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(l.Level))
	return level, err
}

// JSON reports whether logs are written as JSON.
func (l LoggingConfig) JSON() bool { return strings.EqualFold(l.Format, "json") }
