package overrides

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/genomic-case-qc/internal/logging"
)

// jsonBackend rewrites the whole document on every change through a temp file
// in the same directory followed by a rename, so readers never observe a
// partially written store.
type jsonBackend struct {
	path string
}

// OpenFile opens a JSON override store. A missing file starts an empty store
// at minVersion; an existing file must declare a version of at least
// minVersion.
func OpenFile(path string, minVersion int, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	b := &jsonBackend{path: path}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		store := newStore(path, minVersion, minVersion, nil, b, logger)
		if err := b.persist(context.Background(), minVersion, store.data, nil); err != nil {
			return nil, fmt.Errorf("initializing override store: %w", err)
		}
		logger.WithFields(logrus.Fields{"path": path, "version": minVersion}).Info("Created new override store")
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening override store: %w", err)
	}
	defer f.Close()

	version, data, err := decodeFile(f, path)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(path, version, minVersion); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"path":    path,
		"version": *version,
		"entries": len(data),
	}).Info("Loaded override store")
	return newStore(path, *version, minVersion, data, b, logger), nil
}

func (b *jsonBackend) persist(_ context.Context, version int, data map[string]*Entry, _ []string) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&File{Version: version, Data: data}); err != nil {
		return fmt.Errorf("encoding override store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), "."+filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		cleanup()
		return fmt.Errorf("replacing override store: %w", err)
	}
	return nil
}

func (b *jsonBackend) close() error { return nil }
