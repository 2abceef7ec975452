package store

import (
	"context"
	"slices"
	"sync"
	"time"

	sweeterrors "github.com/abgdnv/sweetshop/internal/errors"
	"github.com/google/uuid"
)

// InMemoryStore implements SweetStore using an in-memory map.
// It keeps creation order so FindAll enumerates sweets the same way PgStore does.
type InMemoryStore struct {
	mu     sync.RWMutex
	sweets map[uuid.UUID]Sweet
	names  map[string]uuid.UUID
	order  []uuid.UUID
	now    func() time.Time
}

// NewInMemoryStore creates a new, empty in-memory sweet store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sweets: make(map[uuid.UUID]Sweet),
		names:  make(map[string]uuid.UUID),
		now:    time.Now,
	}
}

// FindByID retrieves a sweet by its ID.
func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*Sweet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sweet, ok := s.sweets[id]
	if !ok {
		return nil, sweeterrors.ErrSweetNotFound
	}
	return &sweet, nil
}

// FindAll retrieves all sweets in creation order.
func (s *InMemoryStore) FindAll(_ context.Context) ([]Sweet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Sweet, 0, len(s.order))
	for _, id := range s.order {
		list = append(list, s.sweets[id])
	}
	return list, nil
}

// ExistsByName reports whether a sweet with exactly this name is stored.
func (s *InMemoryStore) ExistsByName(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.names[name]
	return ok, nil
}

// Create creates a new sweet and returns it.
func (s *InMemoryStore) Create(_ context.Context, params CreateParams) (*Sweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.names[params.Name]; taken {
		return nil, sweeterrors.ErrDuplicateName
	}
	now := s.now()
	sweet := Sweet{
		ID:        uuid.New(),
		Name:      params.Name,
		Category:  params.Category,
		Price:     params.Price,
		Quantity:  params.Quantity,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sweets[sweet.ID] = sweet
	s.names[sweet.Name] = sweet.ID
	s.order = append(s.order, sweet.ID)

	return &sweet, nil
}

// Update replaces the sweet's fields if params.Version matches the stored version.
func (s *InMemoryStore) Update(_ context.Context, params UpdateParams) (*Sweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sweets[params.ID]
	if !ok {
		return nil, sweeterrors.ErrSweetNotFound
	}
	if current.Version != params.Version {
		return nil, sweeterrors.ErrVersionMismatch
	}
	if owner, taken := s.names[params.Name]; taken && owner != params.ID {
		return nil, sweeterrors.ErrDuplicateName
	}

	delete(s.names, current.Name)
	current.Name = params.Name
	current.Category = params.Category
	current.Price = params.Price
	current.Quantity = params.Quantity
	current.Version++
	current.UpdatedAt = s.now()
	s.sweets[current.ID] = current
	s.names[current.Name] = current.ID

	return &current, nil
}

// DeleteByID deletes a sweet by its ID.
func (s *InMemoryStore) DeleteByID(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sweet, exists := s.sweets[id]
	if !exists {
		return sweeterrors.ErrSweetNotFound
	}
	delete(s.sweets, id)
	delete(s.names, sweet.Name)
	s.order = slices.DeleteFunc(s.order, func(v uuid.UUID) bool { return v == id })
	return nil
}
