package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, found, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, "0.0.0.0:8080", cfg.ListenAddr)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "nextflow", cfg.Pipeline.Executable)
	assert.Equal(t, "BCCDC-PHL/16s-nf", cfg.Pipeline.Name)
	assert.Equal(t, "16s-nf-v0.1-output", cfg.Pipeline.OutputName)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 64, cfg.QueueSize)
	assert.Equal(t, "none", cfg.Archive.Driver)
	assert.Empty(t, cfg.Pipeline.BlastDBDir)
}

func TestLoadFromDotenv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte(
		"RRNA16S_WORKERS=5\n"+
			"RRNA16S_DATABASE_DRIVER=Postgres\n"+
			"RRNA16S_DATABASE_URI=postgres://u:p@localhost/rrna\n"+
			"RRNA16S_BLAST_DB_DIR="+dir+"\n"+
			"RRNA16S_BLAST_DB_NAME=16S_ribosomal_RNA\n"), 0o644))
	for _, k := range []string{"WORKERS", "DATABASE_DRIVER", "DATABASE_URI", "BLAST_DB_DIR", "BLAST_DB_NAME"} {
		// godotenv never overrides the real environment; make sure it is clean
		// and restored afterwards.
		t.Setenv(envPrefix+k, "")
		os.Unsetenv(envPrefix + k)
	}

	cfg, found, err := Load(env)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 5, cfg.Workers)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, dir, cfg.Pipeline.BlastDBDir)
}

func TestLoadRejectsBadValues(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")

	t.Run("workers not a number", func(t *testing.T) {
		t.Setenv("RRNA16S_WORKERS", "many")
		_, _, err := Load(missing)
		assert.Error(t, err)
	})
	t.Run("zero workers", func(t *testing.T) {
		t.Setenv("RRNA16S_WORKERS", "0")
		_, _, err := Load(missing)
		assert.Error(t, err)
	})
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("RRNA16S_DATABASE_DRIVER", "mysql")
		_, _, err := Load(missing)
		assert.Error(t, err)
	})
	t.Run("db name without dir", func(t *testing.T) {
		t.Setenv("RRNA16S_BLAST_DB_NAME", "16S_ribosomal_RNA")
		_, _, err := Load(missing)
		assert.Error(t, err)
	})
	t.Run("db dir missing", func(t *testing.T) {
		t.Setenv("RRNA16S_BLAST_DB_DIR", filepath.Join(t.TempDir(), "nope"))
		t.Setenv("RRNA16S_BLAST_DB_NAME", "16S_ribosomal_RNA")
		_, _, err := Load(missing)
		assert.ErrorContains(t, err, "not a directory")
	})
	t.Run("s3 without bucket", func(t *testing.T) {
		t.Setenv("RRNA16S_ARCHIVE_DRIVER", "s3")
		_, _, err := Load(missing)
		assert.Error(t, err)
	})
}

func TestSQLitePath(t *testing.T) {
	tests := map[string]string{
		"./data/app.db":       "data/app.db",
		"sqlite:///app.db":    "app.db",
		"sqlite:////srv/a.db": "/srv/a.db",
		"/var/lib/rrna16s.db": "/var/lib/rrna16s.db",
	}
	for uri, want := range tests {
		c := &Config{DatabaseURI: uri}
		assert.Equal(t, want, c.SQLitePath(), uri)
	}
}
