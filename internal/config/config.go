// Package config collects the process settings into one struct that is built
// at start up and handed to every component that needs it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/yumyai/rrna16s/internal/util"
)

const envPrefix = "RRNA16S_"

// Config holds everything read from the environment (and an optional .env).
type Config struct {
	ListenAddr string

	DatabaseDriver string // sqlite | postgres
	DatabaseURI    string

	Pipeline PipelineConfig

	Workers   int
	QueueSize int

	Archive ArchiveConfig

	LogLevel string
	LogJSON  bool
}

// PipelineConfig is the invocation contract for the nextflow pipeline.
type PipelineConfig struct {
	Executable   string
	Name         string
	Revision     string
	Profile      string
	CacheDir     string
	WorkRoot     string // per-submission analysis directories live here
	NextflowWork string // nextflow -work-dir root
	OutputName   string
	BlastDBDir   string
	BlastDBName  string
}

// ArchiveConfig selects where run artifacts (trace, report, log) are copied.
type ArchiveConfig struct {
	Driver      string // none | fs | s3
	FSRoot      string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
	// Optional static credentials (MinIO); the AWS default chain is used otherwise.
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Load reads .env (if present) and the environment. The returned bool reports
// whether a .env file was found so the caller can log it once the logger exists.
func Load(dotenvFiles ...string) (*Config, bool, error) {
	foundDotenv := godotenv.Load(dotenvFiles...) == nil

	cfg := &Config{
		ListenAddr:     getenv("LISTEN_ADDR", "0.0.0.0:8080"),
		DatabaseDriver: strings.ToLower(getenv("DATABASE_DRIVER", "sqlite")),
		DatabaseURI:    getenv("DATABASE_URI", "./data/app.db"),
		Pipeline: PipelineConfig{
			Executable:   getenv("NEXTFLOW_BIN", "nextflow"),
			Name:         getenv("PIPELINE", "BCCDC-PHL/16s-nf"),
			Revision:     getenv("PIPELINE_REVISION", "main"),
			Profile:      getenv("PIPELINE_PROFILE", "conda"),
			CacheDir:     util.ExpandHome(getenv("PIPELINE_CACHE", "~/.conda/envs")),
			WorkRoot:     getenv("WORK_ROOT", "./analysis"),
			NextflowWork: getenv("NEXTFLOW_WORK_ROOT", "./work"),
			OutputName:   getenv("PIPELINE_OUTPUT_NAME", "16s-nf-v0.1-output"),
			BlastDBDir:   getenv("BLAST_DB_DIR", ""),
			BlastDBName:  getenv("BLAST_DB_NAME", ""),
		},
		Archive: ArchiveConfig{
			Driver:     strings.ToLower(getenv("ARCHIVE_DRIVER", "none")),
			FSRoot:     getenv("ARCHIVE_FS_ROOT", "./archive"),
			S3Bucket:   getenv("ARCHIVE_S3_BUCKET", ""),
			S3Region:   getenv("ARCHIVE_S3_REGION", ""),
			S3Endpoint: getenv("ARCHIVE_S3_ENDPOINT", ""),

			S3AccessKeyID:     getenv("ARCHIVE_S3_ACCESS_KEY_ID", ""),
			S3SecretAccessKey: getenv("ARCHIVE_S3_SECRET_ACCESS_KEY", ""),
		},
		LogLevel: getenv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.Workers, err = getenvInt("WORKERS", 2); err != nil {
		return nil, foundDotenv, err
	}
	if cfg.QueueSize, err = getenvInt("QUEUE_SIZE", 64); err != nil {
		return nil, foundDotenv, err
	}
	if cfg.LogJSON, err = getenvBool("LOG_JSON", false); err != nil {
		return nil, foundDotenv, err
	}
	if cfg.Archive.S3PathStyle, err = getenvBool("ARCHIVE_S3_PATH_STYLE", false); err != nil {
		return nil, foundDotenv, err
	}

	return cfg, foundDotenv, cfg.Validate()
}

// Validate checks the values that would otherwise fail late, inside a worker.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config error: unknown database driver %q", c.DatabaseDriver)
	}
	if strings.TrimSpace(c.DatabaseURI) == "" {
		return fmt.Errorf("config error: database uri is empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("config error: workers must be at least 1, got %d", c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("config error: queue size must be at least 1, got %d", c.QueueSize)
	}
	if c.Pipeline.Executable == "" || c.Pipeline.Name == "" {
		return fmt.Errorf("config error: pipeline executable and name are required")
	}
	if c.Pipeline.WorkRoot == "" {
		return fmt.Errorf("config error: work root is empty")
	}
	// Either both or neither: the pipeline ignores a name without a directory.
	if (c.Pipeline.BlastDBDir == "") != (c.Pipeline.BlastDBName == "") {
		return fmt.Errorf("config error: BLAST_DB_DIR and BLAST_DB_NAME must be set together")
	}
	if c.Pipeline.BlastDBDir != "" && !util.DirExists(c.Pipeline.BlastDBDir) {
		return fmt.Errorf("config error: BLAST_DB_DIR %q is not a directory", c.Pipeline.BlastDBDir)
	}
	switch c.Archive.Driver {
	case "", "none", "fs":
	case "s3":
		if c.Archive.S3Bucket == "" {
			return fmt.Errorf("config error: %sARCHIVE_S3_BUCKET required for s3 archive", envPrefix)
		}
	default:
		return fmt.Errorf("config error: unknown archive driver %q", c.Archive.Driver)
	}
	return nil
}

// SQLitePath returns the database file path when the sqlite driver is used.
// SQLAlchemy style URIs ("sqlite:///app.db") are accepted.
func (c *Config) SQLitePath() string {
	p := c.DatabaseURI
	if strings.HasPrefix(p, "sqlite:///") {
		p = strings.TrimPrefix(p, "sqlite:///")
	} else {
		p = strings.TrimPrefix(p, "sqlite://")
	}
	return filepath.Clean(p)
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	raw := getenv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config error: %s%s must be an integer: %w", envPrefix, key, err)
	}
	return v, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	raw := getenv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config error: %s%s must be a bool: %w", envPrefix, key, err)
	}
	return v, nil
}
