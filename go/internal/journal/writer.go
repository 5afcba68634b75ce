package journal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveauction/go/internal/models"
	"github.com/mcdev12/liveauction/go/internal/room/phase"
)

type Config struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueSize:     1024,
		BatchSize:     64,
		FlushInterval: time.Second,
		WriteTimeout:  5 * time.Second,
	}
}

// Writer batches entries from the room and appends them to a Store on its
// own goroutine. When the queue is full new entries are dropped.
type Writer struct {
	store  Store
	clock  clockwork.Clock
	config Config
	queue  chan Entry

	dropped atomic.Int64

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewWriter(store Store, clock clockwork.Clock, cfg Config) *Writer {
	defaults := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaults.FlushInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Writer{
		store:    store,
		clock:    clock,
		config:   cfg,
		queue:    make(chan Entry, cfg.QueueSize),
		stopChan: make(chan struct{}),
	}
}

func (w *Writer) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("journal writer already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	log.Info().
		Dur("flush_interval", w.config.FlushInterval).
		Int("batch_size", w.config.BatchSize).
		Msg("journal writer started")
	return nil
}

// Stop waits for the writer to exit and flushes whatever is still queued,
// including entries recorded after the Start context was canceled.
func (w *Writer) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("journal writer not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	// The loop may have exited on ctx before the last entries were queued.
	var rest []Entry
	w.drain(&rest)
	if len(rest) > 0 {
		w.write(rest)
	}

	log.Info().Int64("dropped", w.dropped.Load()).Msg("journal writer stopped")
	return nil
}

func (w *Writer) RecordBid(auctionID string, bid models.Bid) {
	e, err := newBidEntry(auctionID, bid, w.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("auction_id", auctionID).Msg("failed to journal bid")
		return
	}
	w.enqueue(e)
}

func (w *Writer) RecordPhase(auctionID string, t phase.Transition) {
	e, err := newPhaseEntry(auctionID, t, w.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("auction_id", auctionID).Msg("failed to journal phase change")
		return
	}
	w.enqueue(e)
}

// Dropped reports how many entries were discarded because the queue was full.
func (w *Writer) Dropped() int64 {
	return w.dropped.Load()
}

func (w *Writer) enqueue(e Entry) {
	select {
	case w.queue <- e:
	default:
		w.dropped.Add(1)
		log.Warn().
			Str("auction_id", e.AuctionID).
			Str("kind", string(e.Kind)).
			Msg("journal queue full, dropping entry")
	}
}

func (w *Writer) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := w.clock.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, w.config.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.write(batch)
		batch = make([]Entry, 0, w.config.BatchSize)
	}

	for {
		select {
		case <-ctx.Done():
			w.drain(&batch)
			flush()
			return
		case <-w.stopChan:
			w.drain(&batch)
			flush()
			return
		case e := <-w.queue:
			batch = append(batch, e)
			if len(batch) >= w.config.BatchSize {
				flush()
			}
		case <-ticker.Chan():
			flush()
		}
	}
}

func (w *Writer) drain(batch *[]Entry) {
	for {
		select {
		case e := <-w.queue:
			*batch = append(*batch, e)
		default:
			return
		}
	}
}

func (w *Writer) write(batch []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.WriteTimeout)
	defer cancel()

	if err := w.store.Append(ctx, batch); err != nil {
		log.Error().Err(err).Int("count", len(batch)).Msg("failed to write journal batch")
		return
	}
	log.Debug().Int("count", len(batch)).Msg("journal batch written")
}
