package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"exprview/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATA_DRIVER", "")
	t.Setenv("SNAPSHOT_DRIVER", "")
	t.Setenv("DOWNLOAD_DRIVER", "")
	t.Setenv("SCHEMA_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DataTestkit, cfg.Data.Driver)
	assert.Equal(t, SnapshotsNone, cfg.Snapshots.Driver)
	assert.Equal(t, DownloadsLocal, cfg.Downloads.Driver)
	assert.Equal(t, "compound_name", cfg.Schema.MajorParameter)
	assert.Equal(t, int64(4), cfg.Engine.MaxConcurrentBuilds)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_DRIVER", "Excel")
	t.Setenv("WORKBOOK_PATH", "/data/dataset.xlsx")
	t.Setenv("SNAPSHOT_DRIVER", "sqlite")
	t.Setenv("DOWNLOAD_DRIVER", "s3")
	t.Setenv("DOWNLOAD_S3_BUCKET", "exports")
	t.Setenv("DOWNLOAD_S3_PATH_STYLE", "true")
	t.Setenv("DOWNLOAD_TTL", "90m")
	t.Setenv("FETCH_CHUNK_SIZE", "250")
	t.Setenv("SCHEMA_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, DataExcel, cfg.Data.Driver)
	assert.Equal(t, "/data/dataset.xlsx", cfg.Data.WorkbookPath)
	assert.Equal(t, SnapshotsSQLite, cfg.Snapshots.Driver)
	assert.Equal(t, "exports", cfg.Downloads.S3Bucket)
	assert.True(t, cfg.Downloads.S3PathStyle)
	assert.Equal(t, 90*time.Minute, cfg.Downloads.TTL)
	assert.Equal(t, 250, cfg.Engine.FetchChunkSize)
}

func TestLoadRejectsInvalidCombinations(t *testing.T) {
	cases := map[string]map[string]string{
		"excel without workbook":  {"DATA_DRIVER": "excel", "WORKBOOK_PATH": ""},
		"postgres without url":    {"DATA_DRIVER": "postgres", "DATABASE_URL": ""},
		"unknown data driver":     {"DATA_DRIVER": "mongo"},
		"unknown snapshot driver": {"SNAPSHOT_DRIVER": "redis"},
		"s3 without bucket":       {"DOWNLOAD_DRIVER": "s3", "DOWNLOAD_S3_BUCKET": ""},
		"zero page size":          {"DEFAULT_PAGE_SIZE": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("SCHEMA_FILE", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestLoadSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.toml")
	content := `
major = "organism"
medium = "treatment"
minor = "day"
time = "day"
control_values = ["vehicle", "untreated"]

[sorted_values]
day = ["1", "3", "7"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	schema, err := LoadSchema(path)
	require.NoError(t, err)
	assert.Equal(t, "organism", schema.MajorParameter)
	assert.Equal(t, []string{"vehicle", "untreated"}, schema.ControlValues)
	assert.Equal(t, []string{"1", "3", "7"}, schema.SortedValues["day"])
	assert.True(t, schema.IsControlValue("vehicle"))
}

func TestLoadSchemaErrors(t *testing.T) {
	_, err := LoadSchema(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("major = "), 0o644))
	_, err = LoadSchema(path)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))

	// major and medium must differ
	require.NoError(t, os.WriteFile(path, []byte(`major = "x"
medium = "x"`), 0o644))
	_, err = LoadSchema(path)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}
