package overrides

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/genomic-case-qc/internal/domain"
)

// backend persists the store. persist receives the full state after a change
// together with the keys that changed; it must be atomic.
type backend interface {
	persist(ctx context.Context, version int, data map[string]*Entry, changed []string) error
	close() error
}

// Store is the in-memory view of an override store with a durable backend.
// Every mutation is persisted before it becomes visible; a failed write leaves
// the previous state in place.
type Store struct {
	mu         sync.RWMutex
	version    int
	minVersion int
	data       map[string]*Entry
	backend    backend
	location   string
	log        *logrus.Logger
}

func newStore(location string, version, minVersion int, data map[string]*Entry, b backend, logger *logrus.Logger) *Store {
	if data == nil {
		data = make(map[string]*Entry)
	}
	return &Store{
		version:    version,
		minVersion: minVersion,
		data:       data,
		backend:    b,
		location:   location,
		log:        logger,
	}
}

// checkVersion enforces the load-time contract shared by all backends.
func checkVersion(location string, version *int, minVersion int) error {
	if version == nil {
		return &domain.MissingVersionError{Path: location}
	}
	if *version < minVersion {
		return &domain.StaleStoreError{Path: location, Found: *version, Required: minVersion}
	}
	return nil
}

// Version returns the store's schema version.
func (s *Store) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Location returns the file the store is persisted to.
func (s *Store) Location() string {
	return s.location
}

// Contains reports whether an entry exists for key.
func (s *Store) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// GetCleaned returns the curated replacement descriptions for key, or nil.
func (s *Store) GetCleaned(key string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.data[key]; ok {
		return append([]string(nil), e.Cleaned...)
	}
	return nil
}

// GetEntry returns a copy of the entry for key.
func (s *Store) GetEntry(key string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok {
		return nil, false
	}
	return e.clone(), true
}

// Keys returns all entry ids in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.data)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// RecordFailure merges a failed resolution into the entry for key, creating it
// if needed, and persists the store before returning.
func (s *Store) RecordFailure(ctx context.Context, key string, info domain.Document, succeeded, failed []string) error {
	err := s.update(ctx, key, func(e *Entry) {
		e.merge(info, succeeded, failed)
	})
	if err != nil {
		return fmt.Errorf("recording failure for %s: %w", key, err)
	}
	s.log.WithFields(logrus.Fields{
		"entry_id":  key,
		"succeeded": len(succeeded),
		"failed":    len(failed),
	}).Debug("Recorded variant resolution failure")
	return nil
}

// SetCleaned replaces the curated descriptions for key.
func (s *Store) SetCleaned(ctx context.Context, key string, cleaned []string) error {
	err := s.update(ctx, key, func(e *Entry) {
		e.Cleaned = append([]string{}, cleaned...)
	})
	if err != nil {
		return fmt.Errorf("setting cleaned for %s: %w", key, err)
	}
	return nil
}

// SetCorrectGene records a curated gene for key.
func (s *Store) SetCorrectGene(ctx context.Context, key string, gene domain.Gene) error {
	err := s.update(ctx, key, func(e *Entry) {
		g := gene
		e.CorrectGene = &g
	})
	if err != nil {
		return fmt.Errorf("setting correct gene for %s: %w", key, err)
	}
	return nil
}

// BumpVersion increments the version, as done after manual curation.
func (s *Store) BumpVersion(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.version + 1
	if err := s.backend.persist(ctx, next, s.data, nil); err != nil {
		return s.version, fmt.Errorf("bumping store version: %w", err)
	}
	s.version = next
	s.log.WithField("version", next).Info("Override store version bumped")
	return next, nil
}

func (s *Store) update(ctx context.Context, key string, mutate func(*Entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.data[key].clone()
	mutate(entry)

	next := make(map[string]*Entry, len(s.data)+1)
	for k, v := range s.data {
		next[k] = v
	}
	next[key] = entry

	if err := s.backend.persist(ctx, s.version, next, []string{key}); err != nil {
		return err
	}
	s.data = next
	return nil
}

// Snapshot returns a deep copy of the whole store.
func (s *Store) Snapshot() *File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := &File{Version: s.version, Data: make(map[string]*Entry, len(s.data))}
	for k, v := range s.data {
		f.Data[k] = v.clone()
	}
	return f
}

// ExportJSON writes the store in the interchange format.
func (s *Store) ExportJSON(ctx context.Context, writer io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(s.Snapshot())
}

// ImportJSON imports entries from an interchange document. Entries whose id
// already exists are skipped. The document must pass the same version check
// as a store file.
func (s *Store) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	version, data, err := decodeFile(reader, "import")
	if err != nil {
		return 0, 0, err
	}
	if err := checkVersion("import", version, s.minVersion); err != nil {
		return 0, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*Entry, len(s.data)+len(data))
	for k, v := range s.data {
		next[k] = v
	}
	var changed []string
	for _, key := range sortedKeys(data) {
		if _, exists := next[key]; exists {
			skipped++
			continue
		}
		next[key] = data[key].clone()
		changed = append(changed, key)
		imported++
	}

	newVersion := s.version
	if *version > newVersion {
		newVersion = *version
	}
	if err := s.backend.persist(ctx, newVersion, next, changed); err != nil {
		return 0, 0, fmt.Errorf("persisting import: %w", err)
	}
	s.data = next
	s.version = newVersion
	return imported, skipped, nil
}

// Close closes the store and releases resources.
func (s *Store) Close() error {
	return s.backend.close()
}

// decodeFile parses an interchange document. A version that is absent or null
// is reported as nil so callers can raise MissingVersionError.
func decodeFile(r io.Reader, location string) (*int, map[string]*Entry, error) {
	var raw struct {
		Version json.RawMessage   `json:"version"`
		Data    map[string]*Entry `json:"data"`
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, &domain.MalformedInputError{Source: location, Reason: "override store is not a JSON object", Err: err}
	}
	if raw.Data == nil {
		raw.Data = make(map[string]*Entry)
	}
	for k, v := range raw.Data {
		raw.Data[k] = v.clone()
	}
	if len(raw.Version) == 0 || string(raw.Version) == "null" {
		return nil, raw.Data, nil
	}
	var version int
	if err := json.Unmarshal(raw.Version, &version); err != nil {
		return nil, nil, &domain.MalformedInputError{Source: location, Reason: "version is not an integer", Err: err}
	}
	return &version, raw.Data, nil
}
