package advertdna

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/engine"
	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/identifier"
	"github.com/himanishpuri/AdvertDNA/pkg/models"
	"github.com/himanishpuri/AdvertDNA/pkg/utils"
)

// contentEngine indexes clips by the SHA-1 of their bytes and writes the
// identifier row into store as a side effect, like the real engine does.
type contentEngine struct {
	mu      sync.Mutex
	store   *memoryStore
	byHash  map[string]models.FingerprintRecord
	byName  map[string]string
	nextID  int
	delay   time.Duration
	matchFn func(path string) ([]models.FingerprintRecord, error)

	matchErr error
	indexErr error

	matchCalls int
	indexCalls int
	paths      []string
}

func newContentEngine(store *memoryStore) *contentEngine {
	return &contentEngine{
		store:  store,
		byHash: map[string]models.FingerprintRecord{},
		byName: map[string]string{},
	}
}

func (e *contentEngine) Match(_ context.Context, path string) ([]models.FingerprintRecord, error) {
	e.mu.Lock()
	e.matchCalls++
	e.paths = append(e.paths, path)
	matchErr, matchFn := e.matchErr, e.matchFn
	e.mu.Unlock()

	if matchErr != nil {
		return nil, matchErr
	}
	if matchFn != nil {
		return matchFn(path)
	}

	sum, err := sha1File(path)
	if err != nil {
		return nil, err
	}
	time.Sleep(e.delay)

	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.byHash[sum]
	if !ok {
		return []models.FingerprintRecord{}, nil
	}
	return []models.FingerprintRecord{rec}, nil
}

func (e *contentEngine) Index(_ context.Context, path string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.indexCalls++
	e.paths = append(e.paths, path)
	if e.indexErr != nil {
		return "", e.indexErr
	}

	sum, err := sha1File(path)
	if err != nil {
		return "", err
	}
	name := utils.CanonicalName(path)
	if prior, ok := e.byName[name]; ok {
		if prior != sum {
			return "", fmt.Errorf("%w: %w", engine.ErrIndexFailed, engine.ErrNameTaken)
		}
		return e.byHash[sum].Identifier, nil
	}
	e.nextID++
	id := fmt.Sprintf("ad-%d", e.nextID)
	e.byHash[sum] = models.FingerprintRecord{
		Identifier:            id,
		CanonicalName:         name,
		FingerprintConfidence: 1,
		InputConfidence:       1,
	}
	e.byName[name] = sum
	if e.store != nil {
		e.store.put(name, id)
	}
	return id, nil
}

func (e *contentEngine) calls() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.matchCalls, e.indexCalls
}

type memoryStore struct {
	mu   sync.Mutex
	rows map[string]string
	err  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[string]string{}}
}

func (s *memoryStore) put(name, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[name] = id
}

func (s *memoryStore) Resolve(_ context.Context, name string, _ int, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	id, ok := s.rows[name]
	if !ok {
		return "", identifier.ErrNotFound
	}
	return id, nil
}

func (s *memoryStore) List(context.Context) ([]models.IdentifierRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	rows := make([]models.IdentifierRow, 0, len(s.rows))
	for name, id := range s.rows {
		rows = append(rows, models.IdentifierRow{Identifier: id, CanonicalName: name})
	}
	return rows, nil
}

func sha1File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}
