// Package archive keeps copies of pipeline run artifacts (trace, report and
// the captured log) after the working directory is gone. Keys are
// "<analysis uuid>/<file name>".
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/yumyai/rrna16s/internal/config"
)

// Driver identifies an archive backend.
type Driver string

const (
	DriverNone       Driver = "none"
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// Info describes a stored artifact.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the subset of an object store the orchestrator needs.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// ErrExists is returned by Put when the key is already taken.
var ErrExists = errors.New("archive: object already exists")

// Open builds the store selected by cfg. The "none" driver returns a nil
// Store and no error; callers treat nil as archiving disabled.
func Open(ctx context.Context, cfg config.ArchiveConfig) (Store, error) {
	switch Driver(cfg.Driver) {
	case "", DriverNone:
		return nil, nil
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PathStyle:       cfg.S3PathStyle,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown archive driver %s", cfg.Driver)
	}
}

// Key is the object key of file for an analysis.
func Key(analysisUUID, file string) string {
	return path.Join(analysisUUID, filepath.Base(file))
}

// PutFiles copies each existing file into the store under the analysis'
// prefix. Files that do not exist are skipped; a failed run may not have
// produced a report. It returns what was stored and the first error seen.
func PutFiles(ctx context.Context, s Store, analysisUUID string, files []string) ([]Info, error) {
	stored := make([]Info, 0, len(files))
	var firstErr error
	for _, file := range files {
		info, err := putFile(ctx, s, analysisUUID, file)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		stored = append(stored, info)
	}
	return stored, firstErr
}

func putFile(ctx context.Context, s Store, analysisUUID, file string) (Info, error) {
	f, err := os.Open(file)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(file))
	if contentType == "" {
		contentType = "text/plain"
	}
	info, err := s.Put(ctx, Key(analysisUUID, file), f, contentType)
	if err != nil {
		return Info{}, fmt.Errorf("archive %s: %w", filepath.Base(file), err)
	}
	return info, nil
}
