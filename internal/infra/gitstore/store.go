// Package gitstore provides a Git plumbing-based implementation of BuildRepository.
package gitstore

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"gopkg.in/yaml.v3"

	"github.com/snowman2/cimatrix/internal/domain"
)

// Ensure Store implements BuildRepository.
var _ domain.BuildRepository = (*Store)(nil)

// DefaultNamespace is the ref namespace used for build history.
const DefaultNamespace = "cimatrix"

// Store implements domain.BuildRepository using Git plumbing (refs and blobs).
//
// Data structure:
//
//	refs/<namespace>/
//	  meta        → blob (nextBuildNumber)
//	  builds/
//	    <number>  → blob (build YAML)
//
// Nothing is committed, so history never shows up in the working tree or log.
type Store struct {
	repo      *git.Repository
	namespace string
	mu        sync.RWMutex
}

// meta contains store metadata.
type meta struct {
	NextBuildNumber int `yaml:"nextBuildNumber"`
}

// New opens the repository at repoPath.
func New(repoPath, namespace string) (*Store, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, domain.ErrNotGitRepository
		}
		return nil, fmt.Errorf("open git repository: %w", err)
	}
	return NewWithRepo(repo, namespace), nil
}

// NewWithRepo creates a new Store with an existing repository instance.
func NewWithRepo(repo *git.Repository, namespace string) *Store {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Store{
		repo:      repo,
		namespace: namespace,
	}
}

// refPrefix returns the ref prefix for this namespace.
func (s *Store) refPrefix() string {
	return "refs/" + s.namespace + "/"
}

func (s *Store) buildsPrefix() string {
	return s.refPrefix() + "builds/"
}

// buildRef returns the ref name for a build.
func (s *Store) buildRef(number int) plumbing.ReferenceName {
	return plumbing.ReferenceName(s.buildsPrefix() + strconv.Itoa(number))
}

// metaRef returns the ref name for metadata.
func (s *Store) metaRef() plumbing.ReferenceName {
	return plumbing.ReferenceName(s.refPrefix() + "meta")
}

// NextNumber reserves and returns the next build number.
func (s *Store) NextNumber() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadMeta()
	if err != nil {
		return 0, err
	}

	n := m.NextBuildNumber
	m.NextBuildNumber++

	if err := s.saveMeta(m); err != nil {
		return 0, err
	}
	return n, nil
}

// Save creates or updates a build.
func (s *Store) Save(build *domain.Build) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(build)
	if err != nil {
		return fmt.Errorf("marshal build: %w", err)
	}

	hash, err := s.writeBlob(data)
	if err != nil {
		return err
	}

	ref := plumbing.NewHashReference(s.buildRef(build.Number), hash)
	if err := s.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("set build ref: %w", err)
	}

	m, err := s.loadMeta()
	if err != nil {
		return err
	}
	if build.Number >= m.NextBuildNumber {
		m.NextBuildNumber = build.Number + 1
		return s.saveMeta(m)
	}
	return nil
}

// Get retrieves a build by number.
func (s *Store) Get(number int) (*domain.Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, err := s.repo.Reference(s.buildRef(number), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get build ref: %w", err)
	}
	return s.decodeBuild(ref.Hash(), number)
}

// List returns builds ordered by number.
func (s *Store) List(limit int) ([]*domain.Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var builds []*domain.Build
	prefix := s.buildsPrefix()

	refs, err := s.repo.References()
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}

	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().String()
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		number, parseErr := strconv.Atoi(strings.TrimPrefix(name, prefix))
		if parseErr != nil {
			return nil // Skip foreign refs
		}

		build, decodeErr := s.decodeBuild(ref.Hash(), number)
		if decodeErr != nil {
			return decodeErr
		}
		builds = append(builds, build)
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

func (s *Store) decodeBuild(hash plumbing.Hash, number int) (*domain.Build, error) {
	data, err := s.readBlob(hash)
	if err != nil {
		return nil, fmt.Errorf("read build %d: %w", number, err)
	}

	var build domain.Build
	if err := yaml.Unmarshal(data, &build); err != nil {
		return nil, fmt.Errorf("decode build %d: %w", number, err)
	}
	build.Number = number
	return &build, nil
}

// loadMeta loads metadata from the meta ref.
// If the meta ref doesn't exist, it derives the next number from existing builds.
func (s *Store) loadMeta() (*meta, error) {
	ref, err := s.repo.Reference(s.metaRef(), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return &meta{NextBuildNumber: s.calculateNextNumber()}, nil
		}
		return nil, fmt.Errorf("get meta ref: %w", err)
	}

	data, err := s.readBlob(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}

	var m meta
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	if m.NextBuildNumber < 1 {
		m.NextBuildNumber = s.calculateNextNumber()
	}
	return &m, nil
}

// calculateNextNumber returns the highest stored build number plus one.
func (s *Store) calculateNextNumber() int {
	maxNumber := 0

	iter, err := s.repo.References()
	if err != nil {
		return 1
	}

	prefix := s.buildsPrefix()
	_ = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().String()
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		if n, parseErr := strconv.Atoi(strings.TrimPrefix(name, prefix)); parseErr == nil && n > maxNumber {
			maxNumber = n
		}
		return nil
	})

	return maxNumber + 1
}

// saveMeta saves metadata to the meta ref.
func (s *Store) saveMeta(m *meta) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	hash, err := s.writeBlob(data)
	if err != nil {
		return err
	}

	ref := plumbing.NewHashReference(s.metaRef(), hash)
	if err := s.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("set meta ref: %w", err)
	}
	return nil
}

// writeBlob writes data to a blob and returns the hash.
func (s *Store) writeBlob(data []byte) (plumbing.Hash, error) {
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("create blob writer: %w", err)
	}

	if _, writeErr := writer.Write(data); writeErr != nil {
		_ = writer.Close()
		return plumbing.ZeroHash, fmt.Errorf("write blob: %w", writeErr)
	}
	_ = writer.Close()

	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store blob: %w", err)
	}
	return hash, nil
}

// readBlob reads the content of a blob.
func (s *Store) readBlob(hash plumbing.Hash) ([]byte, error) {
	blob, err := s.repo.BlobObject(hash)
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}

	reader, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read blob data: %w", err)
	}
	return data, nil
}
