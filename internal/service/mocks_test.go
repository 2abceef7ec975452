package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/abgdnv/sweetshop/internal/store"
	"github.com/abgdnv/sweetshop/pkg/config"
	"github.com/abgdnv/sweetshop/pkg/messaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var testRetry = config.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Microsecond}

type mockSweetStore struct {
	mock.Mock
}

func (m *mockSweetStore) FindByID(ctx context.Context, id uuid.UUID) (*store.Sweet, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*store.Sweet)
	return s, args.Error(1)
}

func (m *mockSweetStore) FindAll(ctx context.Context) ([]store.Sweet, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).([]store.Sweet)
	return s, args.Error(1)
}

func (m *mockSweetStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *mockSweetStore) Create(ctx context.Context, params store.CreateParams) (*store.Sweet, error) {
	args := m.Called(ctx, params)
	s, _ := args.Get(0).(*store.Sweet)
	return s, args.Error(1)
}

// Update accepts either a *store.Sweet or a func deriving the result from the params as return value.
func (m *mockSweetStore) Update(ctx context.Context, params store.UpdateParams) (*store.Sweet, error) {
	args := m.Called(ctx, params)
	if fn, ok := args.Get(0).(func(context.Context, store.UpdateParams) *store.Sweet); ok {
		return fn(ctx, params), args.Error(1)
	}
	s, _ := args.Get(0).(*store.Sweet)
	return s, args.Error(1)
}

func (m *mockSweetStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event messaging.Event) error {
	return m.Called(ctx, event).Error(0)
}

// applied mirrors what a store returns after a successful conditional update.
func applied(p store.UpdateParams) *store.Sweet {
	return &store.Sweet{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		Price:    p.Price,
		Quantity: p.Quantity,
		Version:  p.Version + 1,
	}
}
