// Package service implements the sweet shop inventory and catalog engines.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	sweeterrors "github.com/abgdnv/sweetshop/internal/errors"
	"github.com/abgdnv/sweetshop/internal/store"
	"github.com/abgdnv/sweetshop/pkg/auth"
	"github.com/abgdnv/sweetshop/pkg/config"
	"github.com/abgdnv/sweetshop/pkg/messaging"
	"github.com/abgdnv/sweetshop/pkg/messaging/events"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
)

// Inventory defines the operations that create, change and remove sweets.
type Inventory interface {
	// AddSweet creates a new sweet.
	// Returns ErrDuplicateName if the name is taken and ErrInvalidValue for a negative price or quantity.
	AddSweet(ctx context.Context, sweet SweetCreateDto) (*SweetDto, error)

	// FindByID returns a single sweet or ErrSweetNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*SweetDto, error)

	// UpdateSweet replaces name, category, price and quantity of an existing sweet.
	// Renaming onto another sweet's name fails with ErrDuplicateName.
	UpdateSweet(ctx context.Context, id uuid.UUID, sweet SweetUpdateDto) (*SweetDto, error)

	// DeleteSweet removes a sweet permanently. Returns ErrSweetNotFound if it does not exist.
	DeleteSweet(ctx context.Context, id uuid.UUID) error

	// Purchase takes qty items off the shelf.
	// Returns ErrInvalidQuantity for qty < 1 and *InsufficientStockError when the shelf holds less than qty.
	Purchase(ctx context.Context, id uuid.UUID, qty int32) (*StockReceipt, error)

	// Restock puts qty items on the shelf. Returns ErrInvalidQuantity for qty < 1.
	Restock(ctx context.Context, id uuid.UUID, qty int32) (*StockReceipt, error)
}

// InventoryService implements Inventory.
//
// Every mutation of an existing sweet runs under an in-process lock keyed by the sweet id
// and is written with a version-conditioned update. The lock removes contention between
// requests served by this process, the conditional write keeps replicas sharing one
// database correct. A write that keeps losing the version race is retried with exponential
// backoff and fails with ErrConflict once the attempts are used up.
type InventoryService struct {
	store     store.SweetStore
	publisher messaging.Publisher
	locks     *keyedLock
	retry     config.RetryConfig
	logger    *slog.Logger
	now       func() time.Time

	purchasedCounter metric.Int64Counter
	restockedCounter metric.Int64Counter
	conflictCounter  metric.Int64Counter
}

// NewInventoryService creates an InventoryService. A nil publisher disables stock events.
func NewInventoryService(st store.SweetStore, publisher messaging.Publisher, retry config.RetryConfig, logger *slog.Logger) *InventoryService {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	meter := otel.Meter("sweetshop-inventory")
	return &InventoryService{
		store:            st,
		publisher:        publisher,
		locks:            newKeyedLock(),
		retry:            retry,
		logger:           logger.With("component", "inventory"),
		now:              time.Now,
		purchasedCounter: mustCounter(meter, "sweets_purchased", "Total number of sweets sold"),
		restockedCounter: mustCounter(meter, "sweets_restocked", "Total number of sweets put back on the shelf"),
		conflictCounter:  mustCounter(meter, "sweets_stock_conflicts", "Stock mutations that exhausted their retries"),
	}
}

func mustCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		panic(fmt.Sprintf("failed to create %s counter: %v", name, err))
	}
	return counter
}

func validateValues(price float64, quantity int32) error {
	switch {
	case price < 0 && quantity < 0:
		return fmt.Errorf("%w: price and quantity cannot be negative", sweeterrors.ErrInvalidValue)
	case price < 0:
		return fmt.Errorf("%w: price cannot be negative", sweeterrors.ErrInvalidValue)
	case quantity < 0:
		return fmt.Errorf("%w: quantity cannot be negative", sweeterrors.ErrInvalidValue)
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name cannot be empty", sweeterrors.ErrInvalidValue)
	}
	return nil
}

func (s *InventoryService) AddSweet(ctx context.Context, sweet SweetCreateDto) (*SweetDto, error) {
	if err := validateName(sweet.Name); err != nil {
		return nil, err
	}
	if err := validateValues(sweet.Price, sweet.Quantity); err != nil {
		return nil, err
	}
	exists, err := s.store.ExistsByName(ctx, sweet.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check sweet name: %w", err)
	}
	if exists {
		return nil, sweeterrors.ErrDuplicateName
	}
	created, err := s.store.Create(ctx, toCreateParams(sweet))
	if err != nil {
		return nil, fmt.Errorf("failed to create sweet: %w", err)
	}
	s.logger.InfoContext(ctx, "sweet added", "id", created.ID, "name", created.Name, "by", caller(ctx))

	dto := toDto(created)
	return &dto, nil
}

func (s *InventoryService) FindByID(ctx context.Context, id uuid.UUID) (*SweetDto, error) {
	found, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sweet by ID %s: %w", id, err)
	}
	dto := toDto(found)
	return &dto, nil
}

func (s *InventoryService) UpdateSweet(ctx context.Context, id uuid.UUID, sweet SweetUpdateDto) (*SweetDto, error) {
	if err := validateName(sweet.Name); err != nil {
		return nil, err
	}
	if err := validateValues(sweet.Price, sweet.Quantity); err != nil {
		return nil, err
	}
	updated, err := s.mutate(ctx, id, func(current store.Sweet) (store.UpdateParams, error) {
		if sweet.Name != current.Name {
			taken, err := s.store.ExistsByName(ctx, sweet.Name)
			if err != nil {
				return store.UpdateParams{}, fmt.Errorf("failed to check sweet name: %w", err)
			}
			if taken {
				return store.UpdateParams{}, sweeterrors.ErrDuplicateName
			}
		}
		params := toUpdateParams(current)
		params.Name = sweet.Name
		params.Category = sweet.Category
		params.Price = sweet.Price
		params.Quantity = sweet.Quantity
		return params, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update sweet with ID %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "sweet updated", "id", id, "version", updated.Version, "by", caller(ctx))

	dto := toDto(updated)
	return &dto, nil
}

func (s *InventoryService) DeleteSweet(ctx context.Context, id uuid.UUID) error {
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	// the delete primitive is only reached for a sweet that exists
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete sweet with ID %s: %w", id, err)
	}
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete sweet with ID %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "sweet deleted", "id", id, "by", caller(ctx))
	return nil
}

func (s *InventoryService) Purchase(ctx context.Context, id uuid.UUID, qty int32) (*StockReceipt, error) {
	if qty < 1 {
		return nil, sweeterrors.ErrInvalidQuantity
	}
	updated, err := s.mutate(ctx, id, func(current store.Sweet) (store.UpdateParams, error) {
		if current.Quantity < qty {
			return store.UpdateParams{}, &sweeterrors.InsufficientStockError{Available: current.Quantity, Requested: qty}
		}
		params := toUpdateParams(current)
		params.Quantity -= qty
		return params, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to purchase sweet with ID %s: %w", id, err)
	}
	s.purchasedCounter.Add(ctx, int64(qty))
	s.publishStockChanged(ctx, updated, -qty, events.ReasonPurchase)
	s.logger.InfoContext(ctx, "sweet purchased", "id", id, "qty", qty, "remaining", updated.Quantity, "by", caller(ctx))

	return &StockReceipt{
		Message: fmt.Sprintf("Purchased %d x %s", qty, updated.Name),
		Sweet:   toDto(updated),
	}, nil
}

func (s *InventoryService) Restock(ctx context.Context, id uuid.UUID, qty int32) (*StockReceipt, error) {
	if qty < 1 {
		return nil, sweeterrors.ErrInvalidQuantity
	}
	updated, err := s.mutate(ctx, id, func(current store.Sweet) (store.UpdateParams, error) {
		if current.Quantity > math.MaxInt32-qty {
			return store.UpdateParams{}, fmt.Errorf("%w: stock of %d cannot grow by %d", sweeterrors.ErrInvalidQuantity, current.Quantity, qty)
		}
		params := toUpdateParams(current)
		params.Quantity += qty
		return params, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to restock sweet with ID %s: %w", id, err)
	}
	s.restockedCounter.Add(ctx, int64(qty))
	s.publishStockChanged(ctx, updated, qty, events.ReasonRestock)
	s.logger.InfoContext(ctx, "sweet restocked", "id", id, "qty", qty, "stock", updated.Quantity, "by", caller(ctx))

	return &StockReceipt{
		Message: fmt.Sprintf("Restocked %d x %s", qty, updated.Name),
		Sweet:   toDto(updated),
	}, nil
}

// mutate reads the sweet, lets change derive the new state and writes it back conditioned
// on the version that was read. The whole span runs under the lock for id.
func (s *InventoryService) mutate(ctx context.Context, id uuid.UUID, change func(current store.Sweet) (store.UpdateParams, error)) (*store.Sweet, error) {
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	backoff := s.retry.InitialBackoff
	for attempt := uint(1); ; attempt++ {
		current, err := s.store.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		params, err := change(*current)
		if err != nil {
			return nil, err
		}
		updated, err := s.store.Update(ctx, params)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, sweeterrors.ErrVersionMismatch) {
			return nil, err
		}
		if attempt >= s.retry.MaxAttempts {
			s.conflictCounter.Add(ctx, 1)
			s.logger.WarnContext(ctx, "giving up on contended sweet", "id", id, "attempts", attempt)
			return nil, sweeterrors.ErrConflict
		}
		s.logger.DebugContext(ctx, "version moved, retrying", "id", id, "attempt", attempt, "backoff", backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

// publishStockChanged emits the event after the change has been committed.
// Publishing failures are logged and never undo the stock change.
func (s *InventoryService) publishStockChanged(ctx context.Context, sweet *store.Sweet, delta int32, reason events.StockChangeReason) {
	carrier := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	event := events.StockChangedEvent{
		Carrier:    carrier,
		SweetID:    sweet.ID,
		Name:       sweet.Name,
		Delta:      delta,
		Quantity:   sweet.Quantity,
		Reason:     reason,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish StockChangedEvent", "id", sweet.ID, "error", err)
	}
}

// caller names the authenticated subject for audit logs.
func caller(ctx context.Context) string {
	if p, ok := auth.PrincipalFrom(ctx); ok {
		return p.Subject
	}
	return "anonymous"
}
