// Package jsonstore provides a JSON file-based implementation of BuildRepository.
package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/gofrs/flock"

	"github.com/snowman2/cimatrix/internal/domain"
)

// Ensure Store implements BuildRepository.
var _ domain.BuildRepository = (*Store)(nil)

// storeData represents the JSON file structure.
// Fields are ordered to minimize memory padding.
type storeData struct {
	Builds map[string]*domain.Build `json:"builds"`
	Meta   meta                     `json:"meta"`
}

// meta contains store metadata.
type meta struct {
	NextBuildNumber int `json:"nextBuildNumber"`
}

// Store implements domain.BuildRepository using a JSON file.
// The file lock guards against other processes; mu guards goroutines
// sharing the Store.
type Store struct {
	lock *flock.Flock
	path string
	mu   sync.Mutex
}

// New creates a new Store for the given file path.
// The file does not need to exist; it will be created on first write.
func New(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// NextNumber reserves and returns the next build number.
func (s *Store) NextNumber() (int, error) {
	var n int
	err := s.withLockWrite(func(data *storeData) error {
		n = data.Meta.NextBuildNumber
		data.Meta.NextBuildNumber++
		return nil
	})
	return n, err
}

// Save creates or updates a build.
func (s *Store) Save(build *domain.Build) error {
	return s.withLockWrite(func(data *storeData) error {
		data.Builds[strconv.Itoa(build.Number)] = build
		if build.Number >= data.Meta.NextBuildNumber {
			data.Meta.NextBuildNumber = build.Number + 1
		}
		return nil
	})
}

// Get retrieves a build by number.
func (s *Store) Get(number int) (*domain.Build, error) {
	var build *domain.Build
	err := s.withLock(func(data *storeData) error {
		build = data.Builds[strconv.Itoa(number)]
		return nil
	})
	return build, err
}

// List returns builds ordered by number.
func (s *Store) List(limit int) ([]*domain.Build, error) {
	var builds []*domain.Build
	err := s.withLock(func(data *storeData) error {
		for _, b := range data.Builds {
			builds = append(builds, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(builds, func(a, b *domain.Build) int {
		return a.Number - b.Number
	})
	if limit > 0 && len(builds) > limit {
		builds = builds[len(builds)-limit:]
	}
	return builds, nil
}

// Last returns the most recent build with a result.
func (s *Store) Last() (*domain.Build, error) {
	builds, err := s.List(0)
	if err != nil {
		return nil, err
	}
	for i := len(builds) - 1; i >= 0; i-- {
		if builds[i].State.HasResult() {
			return builds[i], nil
		}
	}
	return nil, nil
}

// withLock executes fn with a shared (read) lock.
func (s *Store) withLock(fn func(*storeData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return err
	}
	if err := s.lock.RLock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := s.read()
	if err != nil {
		return err
	}
	return fn(data)
}

// withLockWrite executes fn with an exclusive (write) lock and writes the result.
func (s *Store) withLockWrite(fn func(*storeData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return err
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	return s.write(data)
}

func (s *Store) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}

// read loads the store file. A missing file is an empty store.
func (s *Store) read() (*storeData, error) {
	data := &storeData{
		Builds: make(map[string]*domain.Build),
		Meta:   meta{NextBuildNumber: 1},
	}

	content, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return data, nil
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}

	if err := json.Unmarshal(content, data); err != nil {
		return nil, fmt.Errorf("parse store file: %w", err)
	}
	if data.Builds == nil {
		data.Builds = make(map[string]*domain.Build)
	}
	if data.Meta.NextBuildNumber < 1 {
		data.Meta.NextBuildNumber = 1
	}
	return data, nil
}

func (s *Store) write(data *storeData) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store data: %w", err)
	}

	// Write to temp file first, then rename for atomicity
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath) // Clean up
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
