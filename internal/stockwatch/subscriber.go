// Package stockwatch consumes stock change events and reports sweets that are running low.
package stockwatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/abgdnv/sweetshop/pkg/config"
	"github.com/abgdnv/sweetshop/pkg/messaging/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"
)

// ackableMsg is the part of jetstream.Msg the handler needs.
type ackableMsg interface {
	Data() []byte
	Ack() error
	Nak() error
}

// Watcher turns StockChangedEvents into low-stock alerts.
type Watcher struct {
	lowStock int32
	logger   *slog.Logger
}

func NewWatcher(lowStock int32, logger *slog.Logger) *Watcher {
	return &Watcher{lowStock: lowStock, logger: logger.With("component", "stockwatch")}
}

// Start creates or updates the durable consumer and runs cfg.Workers fetch loops until ctx is done.
func (w *Watcher) Start(ctx context.Context, js jetstream.JetStream, cfg config.SubscriberConfig) error {
	consumer, err := js.CreateOrUpdateConsumer(ctx, cfg.Stream, jetstream.ConsumerConfig{
		FilterSubject: cfg.Subject,
		Durable:       cfg.Consumer,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return err
	}
	g, gCtx := errgroup.WithContext(ctx)
	for range cfg.Workers {
		g.Go(func() error {
			return w.runWorker(gCtx, consumer, cfg)
		})
	}
	return g.Wait()
}

func (w *Watcher) runWorker(ctx context.Context, consumer jetstream.Consumer, cfg config.SubscriberConfig) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		batch, err := consumer.Fetch(cfg.Batch, jetstream.FetchMaxWait(cfg.Timeout))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			w.logger.ErrorContext(ctx, "failed to fetch messages", "error", err)
			time.Sleep(cfg.Interval)
			continue
		}
		for msg := range batch.Messages() {
			w.handleMessage(msg)
		}
		if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
			w.logger.WarnContext(ctx, "batch finished with error", "error", err)
		}
	}
}

// handleMessage acks every well-formed event and naks the rest.
func (w *Watcher) handleMessage(msg ackableMsg) {
	if msg == nil {
		w.logger.Error("received nil message")
		return
	}
	var event events.StockChangedEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		w.logger.Error("failed to unmarshal message", "error", err)
		if err := msg.Nak(); err != nil {
			w.logger.Error("failed to nack message", "error", err)
		}
		return
	}
	// continue the trace of the request that changed the stock
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.MapCarrier(event.Carrier))

	w.logger.DebugContext(ctx, "received stock changed event",
		slog.String("sweet_id", event.SweetID.String()),
		slog.String("reason", string(event.Reason)),
		slog.Int("delta", int(event.Delta)),
		slog.Int("quantity", int(event.Quantity)))

	if w.isLow(event) {
		w.logger.WarnContext(ctx, "sweet is running low",
			slog.String("sweet_id", event.SweetID.String()),
			slog.String("name", event.Name),
			slog.Int("quantity", int(event.Quantity)),
			slog.String("occurred_at", event.OccurredAt.Format(time.RFC3339)))
	}

	if err := msg.Ack(); err != nil {
		w.logger.Error("failed to ack message", "error", err)
	}
}

// isLow reports purchases that left the stock at or below the threshold.
// Restocks never alert.
func (w *Watcher) isLow(event events.StockChangedEvent) bool {
	return event.Reason == events.ReasonPurchase && event.Quantity <= w.lowStock
}
