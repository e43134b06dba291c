package intake

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a lead does not exist.
var ErrNotFound = errors.New("intake: lead not found")

// Store persists leads.
type Store interface {
	// Save creates or replaces a lead.
	Save(lead *Lead) error

	// Get retrieves a lead by ID.
	Get(id string) (*Lead, error)

	// List returns all leads, newest first.
	List() ([]*Lead, error)

	// Count returns the number of leads.
	Count() int
}

// JSONStore implements Store using a JSON file for persistence.
type JSONStore struct {
	path  string
	leads map[string]*Lead
	mu    sync.RWMutex
}

// storeData is the JSON structure for the store file.
type storeData struct {
	Version   int     `json:"version"`
	UpdatedAt string  `json:"updated_at"`
	Leads     []*Lead `json:"leads"`
}

const currentVersion = 1

// NewJSONStore creates a store at path, loading any existing file.
func NewJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{
		path:  path,
		leads: make(map[string]*Lead),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("failed to load store: %w", err)
		}
	}
	return s, nil
}

func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var stored storeData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	for _, l := range stored.Leads {
		s.leads[l.ID] = l
	}
	return nil
}

// save writes the store to disk. Callers hold mu.
func (s *JSONStore) save() error {
	stored := storeData{
		Version:   currentVersion,
		UpdatedAt: time.Now().Format(time.RFC3339),
		Leads:     s.sorted(),
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	// Write to temp file first, then rename (atomic write)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Save creates or replaces a lead.
func (s *JSONStore) Save(lead *Lead) error {
	if lead.ID == "" {
		return fmt.Errorf("intake: lead has no ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}
	cp := *lead
	s.leads[lead.ID] = &cp
	return s.save()
}

// Get retrieves a lead by ID.
func (s *JSONStore) Get(id string) (*Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.leads[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *l
	return &cp, nil
}

// List returns all leads, newest first.
func (s *JSONStore) List() ([]*Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(), nil
}

func (s *JSONStore) sorted() []*Lead {
	out := make([]*Lead, 0, len(s.leads))
	for _, l := range s.leads {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of leads.
func (s *JSONStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.leads)
}

// Path returns the file path of the store.
func (s *JSONStore) Path() string {
	return s.path
}
