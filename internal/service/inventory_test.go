package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	sweeterrors "github.com/abgdnv/sweetshop/internal/errors"
	"github.com/abgdnv/sweetshop/internal/store"
	"github.com/abgdnv/sweetshop/pkg/messaging/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestInventory(st store.SweetStore, pub *mockPublisher) *InventoryService {
	if pub == nil {
		return NewInventoryService(st, nil, testRetry, discardLogger)
	}
	return NewInventoryService(st, pub, testRetry, discardLogger)
}

func Test_InventoryService_AddSweet(t *testing.T) {
	created := &store.Sweet{ID: uuid.New(), Name: "Ladoo", Category: "Indian", Price: 2.5, Quantity: 10, Version: 1}
	storeErr := errors.New("db down")

	testCases := []struct {
		name        string
		input       SweetCreateDto
		setup       func(m *mockSweetStore)
		expected    *SweetDto
		expectError error
	}{
		{
			name:  "Success - sweet created",
			input: SweetCreateDto{Name: "Ladoo", Category: "Indian", Price: 2.5, Quantity: 10},
			setup: func(m *mockSweetStore) {
				m.On("ExistsByName", mock.Anything, "Ladoo").Return(false, nil)
				m.On("Create", mock.Anything, store.CreateParams{Name: "Ladoo", Category: "Indian", Price: 2.5, Quantity: 10}).Return(created, nil)
			},
			expected: &SweetDto{ID: created.ID, Name: "Ladoo", Category: "Indian", Price: 2.5, Quantity: 10, Version: 1},
		},
		{
			name:  "Success - zero price and quantity are allowed",
			input: SweetCreateDto{Name: "Sample", Category: "Free"},
			setup: func(m *mockSweetStore) {
				m.On("ExistsByName", mock.Anything, "Sample").Return(false, nil)
				m.On("Create", mock.Anything, store.CreateParams{Name: "Sample", Category: "Free"}).Return(&store.Sweet{Name: "Sample", Category: "Free", Version: 1}, nil)
			},
			expected: &SweetDto{Name: "Sample", Category: "Free", Version: 1},
		},
		{
			name:  "Error - duplicate name",
			input: SweetCreateDto{Name: "Ladoo", Category: "Indian", Price: 1, Quantity: 1},
			setup: func(m *mockSweetStore) {
				m.On("ExistsByName", mock.Anything, "Ladoo").Return(true, nil)
			},
			expectError: sweeterrors.ErrDuplicateName,
		},
		{
			name:  "Error - duplicate detected by the store",
			input: SweetCreateDto{Name: "Ladoo", Category: "Indian"},
			setup: func(m *mockSweetStore) {
				m.On("ExistsByName", mock.Anything, "Ladoo").Return(false, nil)
				m.On("Create", mock.Anything, mock.Anything).Return(nil, sweeterrors.ErrDuplicateName)
			},
			expectError: sweeterrors.ErrDuplicateName,
		},
		{
			name:        "Error - negative price",
			input:       SweetCreateDto{Name: "Ladoo", Price: -1, Quantity: 1},
			setup:       func(m *mockSweetStore) {},
			expectError: sweeterrors.ErrInvalidValue,
		},
		{
			name:        "Error - negative price and quantity is a single failure",
			input:       SweetCreateDto{Name: "Ladoo", Price: -1, Quantity: -1},
			setup:       func(m *mockSweetStore) {},
			expectError: sweeterrors.ErrInvalidValue,
		},
		{
			name:        "Error - blank name",
			input:       SweetCreateDto{Name: "   ", Price: 1},
			setup:       func(m *mockSweetStore) {},
			expectError: sweeterrors.ErrInvalidValue,
		},
		{
			name:  "Error - store failure",
			input: SweetCreateDto{Name: "Ladoo"},
			setup: func(m *mockSweetStore) {
				m.On("ExistsByName", mock.Anything, "Ladoo").Return(false, storeErr)
			},
			expectError: storeErr,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			m := new(mockSweetStore)
			tc.setup(m)
			svc := newTestInventory(m, nil)

			// when
			got, err := svc.AddSweet(context.Background(), tc.input)

			// then
			if tc.expectError != nil {
				require.ErrorIs(t, err, tc.expectError)
				assert.Nil(t, got)
				if errors.Is(tc.expectError, sweeterrors.ErrInvalidValue) {
					m.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
			m.AssertExpectations(t)
		})
	}
}

func Test_InventoryService_FindByID(t *testing.T) {
	id := uuid.New()
	m := new(mockSweetStore)
	m.On("FindByID", mock.Anything, id).Return(nil, sweeterrors.ErrSweetNotFound).Once()
	m.On("FindByID", mock.Anything, id).Return(&store.Sweet{ID: id, Name: "Peda", Version: 4}, nil).Once()
	svc := newTestInventory(m, nil)

	_, err := svc.FindByID(context.Background(), id)
	assert.ErrorIs(t, err, sweeterrors.ErrSweetNotFound)

	got, err := svc.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Peda", got.Name)
	assert.Equal(t, int32(4), got.Version)
}

func Test_InventoryService_UpdateSweet(t *testing.T) {
	id := uuid.New()
	current := &store.Sweet{ID: id, Name: "Barfi", Category: "Milk", Price: 5, Quantity: 3, Version: 2}

	testCases := []struct {
		name        string
		input       SweetUpdateDto
		setup       func(m *mockSweetStore)
		expectError error
	}{
		{
			name:  "Success - same name skips the uniqueness check",
			input: SweetUpdateDto{Name: "Barfi", Category: "Dessert", Price: 6, Quantity: 9},
			setup: func(m *mockSweetStore) {
				m.On("FindByID", mock.Anything, id).Return(current, nil)
				m.On("Update", mock.Anything, store.UpdateParams{ID: id, Name: "Barfi", Category: "Dessert", Price: 6, Quantity: 9, Version: 2}).
					Return(&store.Sweet{ID: id, Name: "Barfi", Category: "Dessert", Price: 6, Quantity: 9, Version: 3}, nil)
			},
		},
		{
			name:  "Success - rename to a free name",
			input: SweetUpdateDto{Name: "Kaju Barfi", Category: "Milk", Price: 5, Quantity: 3},
			setup: func(m *mockSweetStore) {
				m.On("FindByID", mock.Anything, id).Return(current, nil)
				m.On("ExistsByName", mock.Anything, "Kaju Barfi").Return(false, nil)
				m.On("Update", mock.Anything, mock.Anything).Return(&store.Sweet{ID: id, Name: "Kaju Barfi", Version: 3}, nil)
			},
		},
		{
			name:  "Error - rename onto an existing sweet",
			input: SweetUpdateDto{Name: "Ladoo", Category: "Milk"},
			setup: func(m *mockSweetStore) {
				m.On("FindByID", mock.Anything, id).Return(current, nil)
				m.On("ExistsByName", mock.Anything, "Ladoo").Return(true, nil)
			},
			expectError: sweeterrors.ErrDuplicateName,
		},
		{
			name:  "Error - sweet not found",
			input: SweetUpdateDto{Name: "Barfi"},
			setup: func(m *mockSweetStore) {
				m.On("FindByID", mock.Anything, id).Return(nil, sweeterrors.ErrSweetNotFound)
			},
			expectError: sweeterrors.ErrSweetNotFound,
		},
		{
			name:        "Error - negative quantity",
			input:       SweetUpdateDto{Name: "Barfi", Quantity: -4},
			setup:       func(m *mockSweetStore) {},
			expectError: sweeterrors.ErrInvalidValue,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			m := new(mockSweetStore)
			tc.setup(m)
			svc := newTestInventory(m, nil)

			// when
			got, err := svc.UpdateSweet(context.Background(), id, tc.input)

			// then
			if tc.expectError != nil {
				require.ErrorIs(t, err, tc.expectError)
				m.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.input.Name, got.Name)
			assert.Equal(t, int32(3), got.Version)
			m.AssertExpectations(t)
		})
	}
}

func Test_InventoryService_DeleteSweet(t *testing.T) {
	t.Run("Error - absent sweet never reaches the delete primitive", func(t *testing.T) {
		id := uuid.New()
		m := new(mockSweetStore)
		m.On("FindByID", mock.Anything, id).Return(nil, sweeterrors.ErrSweetNotFound)
		svc := newTestInventory(m, nil)

		err := svc.DeleteSweet(context.Background(), id)

		assert.ErrorIs(t, err, sweeterrors.ErrSweetNotFound)
		m.AssertNotCalled(t, "DeleteByID", mock.Anything, mock.Anything)
	})

	t.Run("Success - then a repeated delete is rejected", func(t *testing.T) {
		st := store.NewInMemoryStore()
		svc := newTestInventory(st, nil)
		created, err := svc.AddSweet(context.Background(), SweetCreateDto{Name: "Modak", Price: 1, Quantity: 1})
		require.NoError(t, err)

		require.NoError(t, svc.DeleteSweet(context.Background(), created.ID))

		assert.ErrorIs(t, svc.DeleteSweet(context.Background(), created.ID), sweeterrors.ErrSweetNotFound)
		assert.Zero(t, svc.locks.size())
	})
}

func Test_InventoryService_Purchase(t *testing.T) {
	id := uuid.New()
	current := &store.Sweet{ID: id, Name: "Gulab Jamun", Category: "Dessert", Price: 50, Quantity: 10, Version: 1}

	testCases := []struct {
		name            string
		qty             int32
		setup           func(m *mockSweetStore, p *mockPublisher)
		expectError     error
		expectAvailable int32
		expectMessage   string
		expectRemaining int32
	}{
		{
			name: "Success - stock decremented",
			qty:  3,
			setup: func(m *mockSweetStore, p *mockPublisher) {
				m.On("FindByID", mock.Anything, id).Return(current, nil)
				m.On("Update", mock.Anything, store.UpdateParams{ID: id, Name: "Gulab Jamun", Category: "Dessert", Price: 50, Quantity: 7, Version: 1}).
					Return(func(_ context.Context, p store.UpdateParams) *store.Sweet { return applied(p) }, nil)
				p.On("Publish", mock.Anything, mock.MatchedBy(func(e events.StockChangedEvent) bool {
					return e.SweetID == id && e.Delta == -3 && e.Quantity == 7 && e.Reason == events.ReasonPurchase
				})).Return(nil)
			},
			expectMessage:   "Purchased 3 x Gulab Jamun",
			expectRemaining: 7,
		},
		{
			name: "Success - whole stock",
			qty:  10,
			setup: func(m *mockSweetStore, p *mockPublisher) {
				m.On("FindByID", mock.Anything, id).Return(current, nil)
				m.On("Update", mock.Anything, mock.Anything).
					Return(func(_ context.Context, p store.UpdateParams) *store.Sweet { return applied(p) }, nil)
				p.On("Publish", mock.Anything, mock.Anything).Return(nil)
			},
			expectMessage:   "Purchased 10 x Gulab Jamun",
			expectRemaining: 0,
		},
		{
			name: "Success - publish failure does not undo the purchase",
			qty:  1,
			setup: func(m *mockSweetStore, p *mockPublisher) {
				m.On("FindByID", mock.Anything, id).Return(current, nil)
				m.On("Update", mock.Anything, mock.Anything).
					Return(func(_ context.Context, p store.UpdateParams) *store.Sweet { return applied(p) }, nil)
				p.On("Publish", mock.Anything, mock.Anything).Return(errors.New("nats down"))
			},
			expectMessage:   "Purchased 1 x Gulab Jamun",
			expectRemaining: 9,
		},
		{
			name: "Error - insufficient stock reports the available amount",
			qty:  11,
			setup: func(m *mockSweetStore, p *mockPublisher) {
				m.On("FindByID", mock.Anything, id).Return(current, nil)
			},
			expectError:     sweeterrors.ErrInsufficientStock,
			expectAvailable: 10,
		},
		{
			name:        "Error - zero quantity",
			qty:         0,
			setup:       func(m *mockSweetStore, p *mockPublisher) {},
			expectError: sweeterrors.ErrInvalidQuantity,
		},
		{
			name:        "Error - negative quantity",
			qty:         -5,
			setup:       func(m *mockSweetStore, p *mockPublisher) {},
			expectError: sweeterrors.ErrInvalidQuantity,
		},
		{
			name: "Error - sweet not found",
			qty:  1,
			setup: func(m *mockSweetStore, p *mockPublisher) {
				m.On("FindByID", mock.Anything, id).Return(nil, sweeterrors.ErrSweetNotFound)
			},
			expectError: sweeterrors.ErrSweetNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			m := new(mockSweetStore)
			p := new(mockPublisher)
			tc.setup(m, p)
			svc := newTestInventory(m, p)

			// when
			receipt, err := svc.Purchase(context.Background(), id, tc.qty)

			// then
			if tc.expectError != nil {
				require.ErrorIs(t, err, tc.expectError)
				m.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
				p.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
				if errors.Is(tc.expectError, sweeterrors.ErrInvalidQuantity) {
					m.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
				}
				var stockErr *sweeterrors.InsufficientStockError
				if errors.As(err, &stockErr) {
					assert.Equal(t, tc.expectAvailable, stockErr.Available)
					assert.Equal(t, tc.qty, stockErr.Requested)
					assert.Contains(t, err.Error(), "not enough stock. Available: 10")
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectMessage, receipt.Message)
			assert.Equal(t, tc.expectRemaining, receipt.Sweet.Quantity)
			m.AssertExpectations(t)
			p.AssertExpectations(t)
		})
	}
}

func Test_InventoryService_Restock(t *testing.T) {
	id := uuid.New()

	t.Run("Success - stock incremented", func(t *testing.T) {
		m := new(mockSweetStore)
		m.On("FindByID", mock.Anything, id).Return(&store.Sweet{ID: id, Name: "Rasgulla", Quantity: 20, Version: 5}, nil)
		m.On("Update", mock.Anything, store.UpdateParams{ID: id, Name: "Rasgulla", Quantity: 25, Version: 5}).
			Return(func(_ context.Context, p store.UpdateParams) *store.Sweet { return applied(p) }, nil)
		svc := newTestInventory(m, nil)

		receipt, err := svc.Restock(context.Background(), id, 5)

		require.NoError(t, err)
		assert.Equal(t, "Restocked 5 x Rasgulla", receipt.Message)
		assert.Equal(t, int32(25), receipt.Sweet.Quantity)
		assert.Equal(t, int32(6), receipt.Sweet.Version)
	})

	t.Run("Error - zero quantity never touches the store", func(t *testing.T) {
		m := new(mockSweetStore)
		svc := newTestInventory(m, nil)

		_, err := svc.Restock(context.Background(), id, 0)

		assert.ErrorIs(t, err, sweeterrors.ErrInvalidQuantity)
		m.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("Error - overflow", func(t *testing.T) {
		m := new(mockSweetStore)
		m.On("FindByID", mock.Anything, id).Return(&store.Sweet{ID: id, Name: "Rasgulla", Quantity: math.MaxInt32 - 1, Version: 1}, nil)
		svc := newTestInventory(m, nil)

		_, err := svc.Restock(context.Background(), id, 2)

		assert.ErrorIs(t, err, sweeterrors.ErrInvalidQuantity)
		m.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func Test_InventoryService_RetriesOnVersionMismatch(t *testing.T) {
	id := uuid.New()

	t.Run("Success - second attempt sees the fresh version", func(t *testing.T) {
		m := new(mockSweetStore)
		m.On("FindByID", mock.Anything, id).Return(&store.Sweet{ID: id, Name: "Peda", Quantity: 5, Version: 1}, nil).Once()
		m.On("FindByID", mock.Anything, id).Return(&store.Sweet{ID: id, Name: "Peda", Quantity: 4, Version: 2}, nil).Once()
		m.On("Update", mock.Anything, mock.MatchedBy(func(p store.UpdateParams) bool { return p.Version == 1 })).
			Return(nil, sweeterrors.ErrVersionMismatch).Once()
		m.On("Update", mock.Anything, store.UpdateParams{ID: id, Name: "Peda", Quantity: 2, Version: 2}).
			Return(func(_ context.Context, p store.UpdateParams) *store.Sweet { return applied(p) }, nil).Once()
		svc := newTestInventory(m, nil)

		receipt, err := svc.Purchase(context.Background(), id, 2)

		require.NoError(t, err)
		assert.Equal(t, int32(2), receipt.Sweet.Quantity)
		m.AssertExpectations(t)
	})

	t.Run("Error - conflict once attempts are exhausted", func(t *testing.T) {
		m := new(mockSweetStore)
		m.On("FindByID", mock.Anything, id).Return(&store.Sweet{ID: id, Name: "Peda", Quantity: 5, Version: 1}, nil)
		m.On("Update", mock.Anything, mock.Anything).Return(nil, sweeterrors.ErrVersionMismatch)
		svc := newTestInventory(m, nil)

		_, err := svc.Restock(context.Background(), id, 1)

		assert.ErrorIs(t, err, sweeterrors.ErrConflict)
		assert.NotErrorIs(t, err, sweeterrors.ErrInsufficientStock)
		m.AssertNumberOfCalls(t, "Update", int(testRetry.MaxAttempts))
	})

	t.Run("Error - cancelled while backing off", func(t *testing.T) {
		m := new(mockSweetStore)
		m.On("FindByID", mock.Anything, id).Return(&store.Sweet{ID: id, Name: "Peda", Quantity: 5, Version: 1}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		m.On("Update", mock.Anything, mock.Anything).Run(func(mock.Arguments) { cancel() }).Return(nil, sweeterrors.ErrVersionMismatch)
		svc := newTestInventory(m, nil)
		svc.retry.InitialBackoff = time.Hour

		_, err := svc.Purchase(ctx, id, 1)

		assert.ErrorIs(t, err, context.Canceled)
	})
}
