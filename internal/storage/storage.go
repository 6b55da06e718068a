// Package storage persists uploaded assets (organization logos). Backend
// selection is configuration; only the local-disk backend is implemented.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/CredenceNG/confirmd-platform/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedBackend = errors.New("unsupported_storage_backend")
	ErrInvalidFileName    = errors.New("invalid_file_name")
)

// Store writes uploaded files and returns the public URL they are served
// under.
type Store interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Remove(ctx context.Context, name string) error
}

type localStore struct {
	dir     string
	baseURL string
	log     *zap.Logger
}

// NewFromConfig builds the configured backend.
func NewFromConfig(cfg config.Config, log *zap.Logger) (Store, error) {
	switch cfg.Storage.Backend {
	case "local", "":
		if err := os.MkdirAll(cfg.Storage.LocalDir, 0o755); err != nil {
			return nil, err
		}
		return &localStore{
			dir:     cfg.Storage.LocalDir,
			baseURL: strings.TrimRight(cfg.Storage.BaseURL, "/"),
			log:     log.Named("storage.local"),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Storage.Backend)
	}
}

func (s *localStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	clean := filepath.Base(strings.TrimSpace(name))
	if clean == "" || clean == "." || clean == ".." {
		return "", ErrInvalidFileName
	}

	path := filepath.Join(s.dir, clean)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", err
	}

	s.log.Debug("stored file", zap.String("path", path))
	return s.baseURL + "/" + clean, nil
}

func (s *localStore) Remove(ctx context.Context, name string) error {
	clean := filepath.Base(strings.TrimSpace(name))
	if clean == "" || clean == "." || clean == ".." {
		return ErrInvalidFileName
	}
	err := os.Remove(filepath.Join(s.dir, clean))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

var Module = fx.Module("storage",
	fx.Provide(NewFromConfig),
)
