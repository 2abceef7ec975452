package store

import (
	"context"
	"errors"
	"log/slog"

	sweeterrors "github.com/abgdnv/sweetshop/internal/errors"
	"github.com/abgdnv/sweetshop/pkg/config"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

// BreakerStore guards a SweetStore with a circuit breaker.
// Only infrastructure failures count against the breaker. While it is open every call
// fails fast with ErrStoreUnavailable.
type BreakerStore struct {
	next SweetStore
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreakerStore(next SweetStore, cfg config.CircuitBreakerConfig, logger *slog.Logger) *BreakerStore {
	st := gobreaker.Settings{
		Name:        "sweet-store-cb",
		MaxRequests: 3,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(total > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: isStoreHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerStore{next: next, cb: gobreaker.NewCircuitBreaker[any](st)}
}

// isStoreHealthy treats domain outcomes and callers giving up as successes.
// Caller deadlines reach the store, so a short client timeout says nothing about the store.
func isStoreHealthy(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, sweeterrors.ErrSweetNotFound),
		errors.Is(err, sweeterrors.ErrDuplicateName),
		errors.Is(err, sweeterrors.ErrVersionMismatch),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true
	default:
		return false
	}
}

func execute[T any](b *BreakerStore, fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(func() (any, error) { return fn() })
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, sweeterrors.ErrStoreUnavailable
	}
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

func (b *BreakerStore) FindByID(ctx context.Context, id uuid.UUID) (*Sweet, error) {
	return execute(b, func() (*Sweet, error) { return b.next.FindByID(ctx, id) })
}

func (b *BreakerStore) FindAll(ctx context.Context) ([]Sweet, error) {
	return execute(b, func() ([]Sweet, error) { return b.next.FindAll(ctx) })
}

func (b *BreakerStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	return execute(b, func() (bool, error) { return b.next.ExistsByName(ctx, name) })
}

func (b *BreakerStore) Create(ctx context.Context, params CreateParams) (*Sweet, error) {
	return execute(b, func() (*Sweet, error) { return b.next.Create(ctx, params) })
}

func (b *BreakerStore) Update(ctx context.Context, params UpdateParams) (*Sweet, error) {
	return execute(b, func() (*Sweet, error) { return b.next.Update(ctx, params) })
}

func (b *BreakerStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	_, err := execute(b, func() (struct{}, error) { return struct{}{}, b.next.DeleteByID(ctx, id) })
	return err
}
