// Command roomwatch joins one live auction room, logs every state change and
// serves a local console for bidding and auctioneer actions.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveauction/go/internal/journal"
	"github.com/mcdev12/liveauction/go/internal/room"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	args, err := ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse arguments")
	}
	cfg, err := loadConfig(args)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := setupLogging(cfg.Log.Level); err != nil {
		log.Fatal().Err(err).Msg("failed to setup logging")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()

	var (
		recorder room.Recorder
		writer   *journal.Writer
		store    *journal.SQLStore
	)
	if cfg.Journal.Enabled {
		writer, store, err = setupJournal(ctx, cfg.Journal, clock)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to setup journal")
		}
		recorder = writer
	}

	services, err := setupServices(cfg, clock, recorder)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup services")
	}

	log.Info().
		Str("auction_id", cfg.Room.AuctionID).
		Str("api_url", cfg.API.BaseURL).
		Str("transport", cfg.Transport.Kind).
		Bool("journal", cfg.Journal.Enabled).
		Msg("starting roomwatch")

	logRegistrations(ctx, services, cfg.Room.AuctionID)

	joinCtx, joinCancel := context.WithTimeout(ctx, 30*time.Second)
	err = services.Session.Join(joinCtx, cfg.Room.AuctionID)
	joinCancel()
	if err != nil {
		// The channel keeps retrying and a reconnect resynchronizes the room.
		log.Error().Err(err).Str("auction_id", cfg.Room.AuctionID).Msg("initial room sync failed")
	}

	go watchState(ctx, services.Session)

	server := setupServer(cfg.Status, services, store)
	go func() {
		if err := server.ListenAndServe(); err != nil {
			log.Error().Err(err).Msg("status console stopped")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("status console shutdown failed")
	}

	// The session may still confirm bids while it closes; the journal
	// outlives it.
	if err := services.Close(); err != nil {
		log.Error().Err(err).Msg("transport shutdown failed")
	}
	cancel()
	if writer != nil {
		if err := writer.Stop(); err != nil {
			log.Error().Err(err).Msg("journal shutdown failed")
		}
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("journal database close failed")
		}
	}

	log.Info().Msg("roomwatch shutdown complete")
}

// watchState logs every published room snapshot until ctx is done.
func watchState(ctx context.Context, session *room.Session) {
	updates, unsubscribe := session.Subscribe()
	defer unsubscribe()

	var last room.State
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			logStateChange(last, st)
			last = st
		}
	}
}

func logStateChange(prev, next room.State) {
	if prev.Connection != next.Connection {
		log.Info().Str("auction_id", next.AuctionID).Stringer("connection", next.Connection).Msg("connection state changed")
	}
	if prev.Phase != next.Phase && next.Phase != "" {
		log.Info().Str("auction_id", next.AuctionID).Str("phase", string(next.Phase)).Msg("auction phase changed")
	}
	if prev.CurrentPrice != next.CurrentPrice {
		ev := log.Info().
			Str("auction_id", next.AuctionID).
			Int64("current_price", next.CurrentPrice).
			Int64("next_minimum_bid", next.NextMinimumBid).
			Int("bids_per_minute", next.BidsPerMinute)
		if len(next.Bids) > 0 {
			ev = ev.Str("bidder", next.Bids[0].BidderName)
		}
		ev.Msg("price changed")
	}
	if prev.ClosingStage != next.ClosingStage {
		log.Info().Str("auction_id", next.AuctionID).Int("closing_stage", next.ClosingStage).Msg("closing sequence")
	}
	if prev.ParticipantCount != next.ParticipantCount {
		log.Debug().Str("auction_id", next.AuctionID).Int("participants", next.ParticipantCount).Msg("roster changed")
	}
}

func logRegistrations(ctx context.Context, services *Services, auctionID string) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	regs, err := services.API.ListRegistrations(ctx, auctionID)
	if err != nil {
		log.Debug().Err(err).Str("auction_id", auctionID).Msg("registrations unavailable")
		return
	}
	pending, err := services.API.PendingRegistrations(ctx, auctionID)
	if err != nil {
		log.Debug().Err(err).Str("auction_id", auctionID).Msg("pending registrations unavailable")
		return
	}
	log.Info().
		Str("auction_id", auctionID).
		Int("registrations", len(regs)).
		Int("pending", len(pending)).
		Msg("auction registrations")
}
