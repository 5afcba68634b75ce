package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mcdev12/liveauction/go/internal/models"
	"github.com/mcdev12/liveauction/go/internal/room/phase"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	goleak.VerifyTestMain(m)
}

type memStore struct {
	mu      sync.Mutex
	batches [][]Entry
	fail    error
}

func (s *memStore) Append(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.batches = append(s.batches, append([]Entry(nil), entries...))
	return nil
}

func (s *memStore) entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []Entry
	for _, b := range s.batches {
		all = append(all, b...)
	}
	return all
}

func (s *memStore) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func bid(id, amount int64) models.Bid {
	return models.Bid{ID: id, AuctionID: "a1", BidderName: "Paddle 12", Class: models.BidderClassOnline, Amount: amount}
}

func TestWriterFlushesFullBatch(t *testing.T) {
	store := &memStore{}
	w := NewWriter(store, clockwork.NewFakeClock(), Config{BatchSize: 2, FlushInterval: time.Hour})
	require.NoError(t, w.Start(context.Background()))

	w.RecordBid("a1", bid(1, 100))
	w.RecordBid("a1", bid(2, 200))

	require.Eventually(t, func() bool { return store.batchCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	entries := store.entries()
	require.Len(t, entries, 2)
	assert.Equal(t, KindBid, entries[0].Kind)
	assert.Equal(t, int64(1), *entries[0].BidID)
	assert.Equal(t, int64(200), *entries[1].Amount)
	assert.JSONEq(t, `{"id":2,"auction_id":"a1","bidder_name":"Paddle 12","type":"online","amount":200,"timestamp":"0001-01-01T00:00:00Z"}`, string(entries[1].Payload))
}

func TestWriterFlushesOnInterval(t *testing.T) {
	store := &memStore{}
	clock := clockwork.NewFakeClock()
	w := NewWriter(store, clock, Config{BatchSize: 10, FlushInterval: time.Second})
	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	w.RecordPhase("a1", phase.Transition{From: models.AuctionPhaseScheduled, To: models.AuctionPhaseLive, At: clock.Now()})

	require.Eventually(t, func() bool {
		clock.Advance(time.Second)
		return store.batchCount() == 1
	}, time.Second, 5*time.Millisecond)

	entries := store.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, KindPhase, entries[0].Kind)
	assert.Equal(t, "live", entries[0].Phase)
	assert.Nil(t, entries[0].BidID)
}

func TestWriterStopFlushesQueued(t *testing.T) {
	store := &memStore{}
	w := NewWriter(store, clockwork.NewFakeClock(), Config{BatchSize: 100, FlushInterval: time.Hour})
	require.NoError(t, w.Start(context.Background()))

	for i := int64(1); i <= 5; i++ {
		w.RecordBid("a1", bid(i, i*100))
	}
	require.NoError(t, w.Stop())

	assert.Len(t, store.entries(), 5)
}

func TestWriterStopFlushesEntriesRecordedAfterCancel(t *testing.T) {
	store := &memStore{}
	w := NewWriter(store, clockwork.NewFakeClock(), Config{BatchSize: 10, FlushInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	w.RecordBid("a1", bid(1, 100))
	cancel()
	// A bid confirmed while the room shuts down.
	w.RecordBid("a1", bid(2, 200))
	require.NoError(t, w.Stop())

	entries := store.entries()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), *entries[1].BidID)
}

func TestWriterDropsWhenQueueFull(t *testing.T) {
	store := &memStore{}
	w := NewWriter(store, clockwork.NewFakeClock(), Config{QueueSize: 2})

	w.RecordBid("a1", bid(1, 100))
	w.RecordBid("a1", bid(2, 200))
	w.RecordBid("a1", bid(3, 300))

	assert.Equal(t, int64(1), w.Dropped())

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
	assert.Len(t, store.entries(), 2)
}

func TestWriterSurvivesStoreFailure(t *testing.T) {
	store := &memStore{fail: errors.New("connection refused")}
	w := NewWriter(store, clockwork.NewFakeClock(), Config{BatchSize: 1, FlushInterval: time.Hour})
	require.NoError(t, w.Start(context.Background()))

	w.RecordBid("a1", bid(1, 100))
	require.NoError(t, w.Stop())
	assert.Empty(t, store.entries())
}

func TestWriterStartStop(t *testing.T) {
	w := NewWriter(&memStore{}, clockwork.NewFakeClock(), DefaultConfig())

	assert.Error(t, w.Stop())
	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
}
