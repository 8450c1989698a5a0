package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insightdelivered/ideabank/internal/models"
	"github.com/insightdelivered/ideabank/internal/parser"
)

// Dataset is one loaded export kept for follow-up queries.
type Dataset struct {
	ID       string                `json:"id"`
	Name     string                `json:"name,omitempty"`
	Ideas    []models.Idea         `json:"-"`
	Report   parser.Report         `json:"report"`
	Defaults models.FilterCriteria `json:"defaults"`
	LoadedAt time.Time             `json:"loadedAt"`
}

// Store keeps datasets in memory. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{datasets: make(map[string]*Dataset)}
}

// Add stores ds under a fresh id and returns it.
func (s *Store) Add(ds *Dataset) *Dataset {
	ds.ID = uuid.NewString()
	if ds.LoadedAt.IsZero() {
		ds.LoadedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.datasets[ds.ID] = ds
	s.mu.Unlock()
	return ds
}

// Get returns the dataset with id.
func (s *Store) Get(id string) (*Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.datasets[id]
	return ds, ok
}

// Delete drops the dataset with id and reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[id]; !ok {
		return false
	}
	delete(s.datasets, id)
	return true
}

// Len returns the number of stored datasets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.datasets)
}
