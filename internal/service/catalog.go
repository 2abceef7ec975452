package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/abgdnv/sweetshop/internal/store"
)

// Catalog defines the read side of the shop.
type Catalog interface {
	// ListAll returns every sweet in the store's enumeration order.
	ListAll(ctx context.Context) ([]SweetDto, error)

	// Search returns the sweets matching every supplied predicate of filter, in enumeration order.
	// An inverted price range yields an empty result.
	Search(ctx context.Context, filter SearchFilter) ([]SweetDto, error)
}

// CatalogService implements Catalog over a full snapshot of the store.
// Every request reads the store itself, so it sees everything committed before it started.
type CatalogService struct {
	store store.SweetStore
}

func NewCatalogService(st store.SweetStore) *CatalogService {
	return &CatalogService{store: st}
}

func (c *CatalogService) ListAll(ctx context.Context) ([]SweetDto, error) {
	sweets, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	dtos := make([]SweetDto, len(sweets))
	for i := range sweets {
		dtos[i] = toDto(&sweets[i])
	}
	return dtos, nil
}

func (c *CatalogService) Search(ctx context.Context, filter SearchFilter) ([]SweetDto, error) {
	sweets, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	m := newMatcher(filter)
	dtos := make([]SweetDto, 0)
	for i := range sweets {
		if m.matches(&sweets[i]) {
			dtos = append(dtos, toDto(&sweets[i]))
		}
	}
	return dtos, nil
}

func (c *CatalogService) snapshot(ctx context.Context) ([]store.Sweet, error) {
	sweets, err := c.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sweets: %w", err)
	}
	return sweets, nil
}

type matcher struct {
	name    string
	hasName bool
	filter  SearchFilter
}

func newMatcher(f SearchFilter) matcher {
	m := matcher{filter: f}
	if f.Name != nil {
		m.name = strings.ToLower(*f.Name)
		m.hasName = true
	}
	return m
}

func (m matcher) matches(s *store.Sweet) bool {
	if m.hasName && !strings.Contains(strings.ToLower(s.Name), m.name) {
		return false
	}
	if m.filter.Category != nil && s.Category != *m.filter.Category {
		return false
	}
	if m.filter.MinPrice != nil && s.Price < *m.filter.MinPrice {
		return false
	}
	if m.filter.MaxPrice != nil && s.Price > *m.filter.MaxPrice {
		return false
	}
	return true
}
