package dataset

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryStore is a Store held in memory, used by tests across the module.
type MemoryStore struct {
	mu         sync.RWMutex
	datasets   map[string]Dataset
	order      []string
	properties map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		datasets:   make(map[string]Dataset),
		properties: make(map[string]map[string]string),
	}
}

// Add inserts a dataset. Children are returned in insertion order.
func (s *MemoryStore) Add(name, mountpoint string) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[name]; !ok {
		s.order = append(s.order, name)
	}
	s.datasets[name] = Dataset{Name: name, Mountpoint: mountpoint}
	return s
}

// Set assigns a property on an existing or implicit dataset.
func (s *MemoryStore) Set(name, property, value string) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.properties[name] == nil {
		s.properties[name] = make(map[string]string)
	}
	s.properties[name][property] = value
	return s
}

func (s *MemoryStore) Children(ctx context.Context, name string) ([]Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.datasets[name]; !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	var children []Dataset
	for _, n := range s.order {
		rest := strings.TrimPrefix(n, name+"/")
		if rest == n || rest == "" || strings.Contains(rest, "/") {
			continue
		}
		children = append(children, s.datasets[n])
	}
	return children, nil
}

func (s *MemoryStore) Property(ctx context.Context, name, property string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if property == "mountpoint" {
		if ds, ok := s.datasets[name]; ok {
			return ds.Mountpoint, nil
		}
	}
	props, ok := s.properties[name]
	if !ok {
		if _, exists := s.datasets[name]; !exists {
			return "", fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return "", nil
	}
	return props[property], nil
}
