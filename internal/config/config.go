package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"exprview/domain/sample"
	"exprview/internal/errors"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig
	Data      DataConfig
	Database  DatabaseConfig
	Snapshots SnapshotConfig
	Downloads DownloadConfig
	Engine    EngineConfig
	Schema    sample.DataSchema
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
	// SessionIdleTimeout closes sessions unused for this long; zero disables
	SessionIdleTimeout time.Duration
}

// Value source drivers
const (
	DataTestkit  = "testkit"
	DataExcel    = "excel"
	DataPostgres = "postgres"
)

// DataConfig selects where samples, probes and values come from
type DataConfig struct {
	Driver string
	// WorkbookPath is an .xlsx file or a directory of CSV files
	WorkbookPath string
	// Seed drives the generated testkit dataset
	Seed int64
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// Snapshot drivers
const (
	SnapshotsNone     = "none"
	SnapshotsPostgres = "postgres"
	SnapshotsSQLite   = "sqlite"
)

// SnapshotConfig selects where saved sessions are kept
type SnapshotConfig struct {
	Driver     string
	SQLitePath string
}

// Download drivers
const (
	DownloadsLocal = "local"
	DownloadsS3    = "s3"
)

// DownloadConfig selects where prepared downloads are written
type DownloadConfig struct {
	Driver    string
	Directory string
	// URLPrefix is the public path the local store's files are served under
	URLPrefix string
	TTL       time.Duration

	S3Bucket    string
	S3Region    string
	S3Prefix    string
	S3Endpoint  string
	S3PathStyle bool
}

// EngineConfig tunes matrix builds
type EngineConfig struct {
	MaxConcurrentBuilds int64
	FetchParallelism    int
	FetchChunkSize      int
	DefaultPageSize     int
}

// Load reads configuration from environment variables and validates it.
// Callers that want .env support load it before calling Load.
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:               getEnvOrDefault("PORT", "8080"),
			GinMode:            getEnvOrDefault("GIN_MODE", "release"),
			SessionIdleTimeout: getEnvDurationOrDefault("SESSION_IDLE_TIMEOUT", 2*time.Hour),
		},
		Data: DataConfig{
			Driver:       strings.ToLower(getEnvOrDefault("DATA_DRIVER", DataTestkit)),
			WorkbookPath: getEnvOrDefault("WORKBOOK_PATH", ""),
			Seed:         int64(getEnvIntOrDefault("TESTKIT_SEED", 42)),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Snapshots: SnapshotConfig{
			Driver:     strings.ToLower(getEnvOrDefault("SNAPSHOT_DRIVER", SnapshotsNone)),
			SQLitePath: getEnvOrDefault("SNAPSHOT_SQLITE_PATH", "data/snapshots.db"),
		},
		Downloads: DownloadConfig{
			Driver:      strings.ToLower(getEnvOrDefault("DOWNLOAD_DRIVER", DownloadsLocal)),
			Directory:   getEnvOrDefault("DOWNLOAD_DIR", "data/downloads"),
			URLPrefix:   getEnvOrDefault("DOWNLOAD_URL_PREFIX", "/downloads"),
			TTL:         getEnvDurationOrDefault("DOWNLOAD_TTL", 24*time.Hour),
			S3Bucket:    os.Getenv("DOWNLOAD_S3_BUCKET"),
			S3Region:    getEnvOrDefault("DOWNLOAD_S3_REGION", "us-east-1"),
			S3Prefix:    getEnvOrDefault("DOWNLOAD_S3_PREFIX", "downloads"),
			S3Endpoint:  os.Getenv("DOWNLOAD_S3_ENDPOINT"),
			S3PathStyle: getEnvBoolOrDefault("DOWNLOAD_S3_PATH_STYLE", false),
		},
		Engine: EngineConfig{
			MaxConcurrentBuilds: int64(getEnvIntOrDefault("MAX_CONCURRENT_BUILDS", 4)),
			FetchParallelism:    getEnvIntOrDefault("FETCH_PARALLELISM", 4),
			FetchChunkSize:      getEnvIntOrDefault("FETCH_CHUNK_SIZE", 500),
			DefaultPageSize:     getEnvIntOrDefault("DEFAULT_PAGE_SIZE", 50),
		},
	}

	schema, err := LoadSchema(os.Getenv("SCHEMA_FILE"))
	if err != nil {
		return nil, err
	}
	config.Schema = schema

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// LoadSchema reads a DataSchema from a TOML file. An empty path yields the
// default schema; keys missing from the file keep their default values.
func LoadSchema(path string) (sample.DataSchema, error) {
	def := sample.DefaultSchema()
	if path == "" {
		return def, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return sample.DataSchema{}, errors.ConfigInvalid(fmt.Sprintf("cannot read schema file %s: %v", path, err))
	}
	var schema sample.DataSchema
	if err := toml.Unmarshal(raw, &schema); err != nil {
		return sample.DataSchema{}, errors.ConfigInvalid(fmt.Sprintf("cannot parse schema file %s: %v", path, err))
	}
	if schema.MajorParameter == "" {
		schema.MajorParameter = def.MajorParameter
	}
	if schema.MediumParameter == "" {
		schema.MediumParameter = def.MediumParameter
	}
	if schema.MinorParameter == "" {
		schema.MinorParameter = def.MinorParameter
	}
	if schema.TimeParameter == "" {
		schema.TimeParameter = schema.MinorParameter
	}
	if schema.ControlValues == nil {
		schema.ControlValues = def.ControlValues
	}
	if schema.SortedValues == nil {
		schema.SortedValues = def.SortedValues
	}
	if schema.Titles == nil {
		schema.Titles = def.Titles
	}
	if err := schema.Validate(); err != nil {
		return sample.DataSchema{}, errors.ConfigInvalid(fmt.Sprintf("schema file %s: %v", path, err))
	}
	return schema, nil
}

func validateConfig(config *Config) error {
	switch config.Data.Driver {
	case DataTestkit:
	case DataExcel:
		if config.Data.WorkbookPath == "" {
			return errors.ConfigInvalid("WORKBOOK_PATH is required for the excel data driver")
		}
	case DataPostgres:
		if config.Database.URL == "" {
			return errors.ConfigInvalid("DATABASE_URL is required for the postgres data driver")
		}
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown DATA_DRIVER %q", config.Data.Driver))
	}

	switch config.Snapshots.Driver {
	case SnapshotsNone, SnapshotsSQLite:
	case SnapshotsPostgres:
		if config.Database.URL == "" {
			return errors.ConfigInvalid("DATABASE_URL is required for the postgres snapshot driver")
		}
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown SNAPSHOT_DRIVER %q", config.Snapshots.Driver))
	}

	switch config.Downloads.Driver {
	case DownloadsLocal:
		if config.Downloads.Directory == "" {
			return errors.ConfigInvalid("DOWNLOAD_DIR is required for the local download driver")
		}
	case DownloadsS3:
		if config.Downloads.S3Bucket == "" {
			return errors.ConfigInvalid("DOWNLOAD_S3_BUCKET is required for the s3 download driver")
		}
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown DOWNLOAD_DRIVER %q", config.Downloads.Driver))
	}

	if config.Engine.MaxConcurrentBuilds <= 0 || config.Engine.FetchParallelism <= 0 || config.Engine.FetchChunkSize <= 0 {
		return errors.ConfigInvalid("engine limits must be positive")
	}
	if config.Engine.DefaultPageSize <= 0 {
		return errors.ConfigInvalid("DEFAULT_PAGE_SIZE must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
