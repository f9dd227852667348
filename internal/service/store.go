package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/joeblew999/plat-ogc/internal/datasource"
)

// Store persists the options of data sources created at runtime.
type Store interface {
	LoadAll(ctx context.Context) ([]datasource.Options, error)
	Put(ctx context.Context, opts datasource.Options) error
	Delete(ctx context.Context, id int) error
}

// FileStore keeps data source options in a JSON file under the data directory.
type FileStore struct {
	dataDir string
	mu      sync.Mutex
}

// NewFileStore creates a store writing to dataDir/datasources.json.
func NewFileStore(dataDir string) *FileStore {
	return &FileStore{dataDir: dataDir}
}

// LoadAll returns the stored options ordered by id. A missing file is an
// empty store.
func (s *FileStore) LoadAll(_ context.Context) ([]datasource.Options, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]datasource.Options, 0, len(stored))
	for _, o := range stored {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].ID < *out[j].ID })
	return out, nil
}

// Put inserts or replaces the options stored under opts.ID.
func (s *FileStore) Put(_ context.Context, opts datasource.Options) error {
	if opts.ID == nil {
		return fmt.Errorf("%w: id is required", datasource.ErrInvalidConfig)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.load()
	if err != nil {
		return err
	}
	stored[strconv.Itoa(*opts.ID)] = opts
	return s.save(stored)
}

// Delete removes id. Deleting an unknown id is not an error.
func (s *FileStore) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.load()
	if err != nil {
		return err
	}
	key := strconv.Itoa(id)
	if _, ok := stored[key]; !ok {
		return nil
	}
	delete(stored, key)
	return s.save(stored)
}

func (s *FileStore) configFile() string {
	return filepath.Join(s.dataDir, "datasources.json")
}

func (s *FileStore) load() (map[string]datasource.Options, error) {
	data, err := os.ReadFile(s.configFile())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]datasource.Options), nil
		}
		return nil, err
	}

	var stored map[string]datasource.Options
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.configFile(), err)
	}
	if stored == nil {
		stored = make(map[string]datasource.Options)
	}
	for key, o := range stored {
		if o.ID == nil {
			return nil, fmt.Errorf("decode %s: entry %q has no id", s.configFile(), key)
		}
	}
	return stored, nil
}

func (s *FileStore) save(stored map[string]datasource.Options) error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.configFile() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.configFile())
}

// MemoryStore is a Store that forgets everything on restart.
type MemoryStore struct {
	mu   sync.Mutex
	opts map[int]datasource.Options
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{opts: make(map[int]datasource.Options)}
}

func (s *MemoryStore) LoadAll(_ context.Context) ([]datasource.Options, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]datasource.Options, 0, len(s.opts))
	for _, o := range s.opts {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].ID < *out[j].ID })
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, opts datasource.Options) error {
	if opts.ID == nil {
		return fmt.Errorf("%w: id is required", datasource.ErrInvalidConfig)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts[*opts.ID] = opts
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.opts, id)
	return nil
}
