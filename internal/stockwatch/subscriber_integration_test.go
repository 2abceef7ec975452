package stockwatch

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/abgdnv/sweetshop/pkg/config"
	"github.com/abgdnv/sweetshop/pkg/messaging"
	"github.com/abgdnv/sweetshop/pkg/messaging/events"
	pnats "github.com/abgdnv/sweetshop/pkg/nats"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"
)

const skipIntegrationTests = "SWEETSHOP_SKIP_INTEGRATION_TESTS"
const natsImg = "nats:2.11.6-alpine"

// syncBuffer lets worker goroutines log while the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Contains(s string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Contains(b.buf.Bytes(), []byte(s))
}

type WatcherSuite struct {
	suite.Suite
	ctx           context.Context
	natsContainer *tcnats.NATSContainer
	nc            *natsgo.Conn
	js            jetstream.JetStream
}

func TestWatcherIntegration(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	suite.Run(t, new(WatcherSuite))
}

func (s *WatcherSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.natsContainer, err = tcnats.Run(s.ctx, natsImg)
	require.NoError(s.T(), err, "Failed to run NATS container")

	natsURL, err := s.natsContainer.ConnectionString(s.ctx)
	require.NoError(s.T(), err)
	s.nc, err = pnats.NewClient(natsURL, 5*time.Second)
	require.NoError(s.T(), err)
	s.js, err = pnats.NewJetStreamContext(s.nc)
	require.NoError(s.T(), err)
}

func (s *WatcherSuite) TearDownSuite() {
	if s.nc != nil {
		s.nc.Close()
	}
	_ = testcontainers.TerminateContainer(s.natsContainer)
}

func (s *WatcherSuite) TestLowStockAlertFromPublishedEvent() {
	// given
	streamName := "SWEETS"
	require.NoError(s.T(), pnats.EnsureStream(s.ctx, s.js, streamName, messaging.SweetsSubjects))
	logs := &syncBuffer{}
	w := NewWatcher(2, slog.New(slog.NewTextHandler(logs, nil)))
	cfg := config.SubscriberConfig{
		Stream:   streamName,
		Subject:  messaging.StockChangedSubject,
		Consumer: "stockwatch-" + uuid.NewString(),
		Batch:    10,
		Timeout:  200 * time.Millisecond,
		Interval: 50 * time.Millisecond,
		Workers:  2,
	}
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, s.js, cfg) }()

	// when
	publisher := pnats.NewNatsPublisher(s.js)
	require.NoError(s.T(), publisher.Publish(s.ctx, events.StockChangedEvent{
		SweetID:    uuid.New(),
		Name:       "Kaju Katli",
		Delta:      -4,
		Quantity:   1,
		Reason:     events.ReasonPurchase,
		OccurredAt: time.Now().UTC(),
	}))

	// then
	s.Eventually(func() bool { return logs.Contains("sweet is running low") }, 10*time.Second, 50*time.Millisecond)
	s.True(logs.Contains("Kaju Katli"))

	cancel()
	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(5 * time.Second):
		s.Fail("watcher did not stop after cancellation")
	}
}
