package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	sweeterrors "github.com/abgdnv/sweetshop/internal/errors"
	"github.com/abgdnv/sweetshop/pkg/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSweetStore struct {
	mock.Mock
}

func (m *MockSweetStore) FindByID(ctx context.Context, id uuid.UUID) (*Sweet, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*Sweet)
	return s, args.Error(1)
}

func (m *MockSweetStore) FindAll(ctx context.Context) ([]Sweet, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).([]Sweet)
	return s, args.Error(1)
}

func (m *MockSweetStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockSweetStore) Create(ctx context.Context, params CreateParams) (*Sweet, error) {
	args := m.Called(ctx, params)
	s, _ := args.Get(0).(*Sweet)
	return s, args.Error(1)
}

func (m *MockSweetStore) Update(ctx context.Context, params UpdateParams) (*Sweet, error) {
	args := m.Called(ctx, params)
	s, _ := args.Get(0).(*Sweet)
	return s, args.Error(1)
}

func (m *MockSweetStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

var cbConfig = config.CircuitBreakerConfig{
	Enabled:             true,
	ConsecutiveFailures: 3,
	ErrorRatePercent:    100,
	OpenTimeout:         time.Minute,
}

func newTestBreaker(next SweetStore) *BreakerStore {
	return NewBreakerStore(next, cbConfig, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBreakerStore_TripsOnInfrastructureFailures(t *testing.T) {
	// given
	next := new(MockSweetStore)
	next.On("FindAll", mock.Anything).Return(nil, errors.New("connection refused")).Times(3)
	b := newTestBreaker(next)

	// when
	for range 3 {
		_, err := b.FindAll(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, sweeterrors.ErrStoreUnavailable)
	}
	_, err := b.FindAll(context.Background())

	// then
	assert.ErrorIs(t, err, sweeterrors.ErrStoreUnavailable)
	next.AssertNumberOfCalls(t, "FindAll", 3)
}

func TestBreakerStore_DomainErrorsDoNotTrip(t *testing.T) {
	// given
	id := uuid.New()
	next := new(MockSweetStore)
	next.On("FindByID", mock.Anything, id).Return(nil, sweeterrors.ErrSweetNotFound)
	next.On("Update", mock.Anything, mock.Anything).Return(nil, sweeterrors.ErrVersionMismatch)
	next.On("DeleteByID", mock.Anything, id).Return(context.Canceled)
	b := newTestBreaker(next)

	// when
	for range 5 {
		_, err := b.FindByID(context.Background(), id)
		assert.ErrorIs(t, err, sweeterrors.ErrSweetNotFound)
		_, err = b.Update(context.Background(), UpdateParams{ID: id})
		assert.ErrorIs(t, err, sweeterrors.ErrVersionMismatch)
		assert.ErrorIs(t, b.DeleteByID(context.Background(), id), context.Canceled)
	}

	// then
	next.AssertNumberOfCalls(t, "FindByID", 5)
}

func TestBreakerStore_CallerDeadlinesDoNotTrip(t *testing.T) {
	// given
	next := new(MockSweetStore)
	next.On("FindAll", mock.Anything).Return(nil, fmt.Errorf("failed to find all sweets: %w", context.DeadlineExceeded))
	b := newTestBreaker(next)

	// when
	for range 10 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		_, err := b.FindAll(ctx)
		cancel()
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}

	// then
	next.AssertNumberOfCalls(t, "FindAll", 10)
}

func TestBreakerStore_PassesResultsThrough(t *testing.T) {
	sweet := &Sweet{ID: uuid.New(), Name: "Halwa"}
	next := new(MockSweetStore)
	next.On("Create", mock.Anything, CreateParams{Name: "Halwa"}).Return(sweet, nil)
	next.On("ExistsByName", mock.Anything, "Halwa").Return(true, nil)
	b := newTestBreaker(next)

	created, err := b.Create(context.Background(), CreateParams{Name: "Halwa"})
	require.NoError(t, err)
	assert.Same(t, sweet, created)

	exists, err := b.ExistsByName(context.Background(), "Halwa")
	require.NoError(t, err)
	assert.True(t, exists)
}
