package room

import (
	"context"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/mcdev12/liveauction/go/internal/models"
	"github.com/mcdev12/liveauction/go/internal/room/roomerr"
	"github.com/mcdev12/liveauction/go/internal/room/transport"
)

// sync fetches the auction snapshot, bid history and chat history and merges
// them into r. On a resync the fetched phase is applied as a confirmation so
// a change missed while disconnected is recorded as a transition.
func (s *Session) sync(ctx context.Context, r *joinedRoom, resync bool) error {
	auction, err := s.cfg.Auctions.GetAuction(ctx, r.auctionID)
	if err != nil {
		return roomerr.Classify("fetch auction", err)
	}
	bids, err := s.cfg.Bids.BidHistory(ctx, r.auctionID, s.cfg.PageSize, s.cfg.HistoryLimit)
	if err != nil {
		return roomerr.Classify("fetch bid history", err)
	}
	chat, err := s.cfg.Chat.ChatHistory(ctx, r.auctionID)
	if err != nil {
		// Chat is auxiliary; the room is usable without it.
		log.Warn().Err(err).Str("auction_id", r.auctionID).Msg("failed to fetch chat history")
	}

	s.mu.Lock()
	if s.room != r {
		s.mu.Unlock()
		return roomerr.Wrap("sync room", roomerr.ErrStaleRoom)
	}
	r.auction = auction
	r.chat = s.mergeChat(r.chat, chat...)
	if !resync {
		r.ledger.Load(bids, auction.BasePrice())
		r.phase.Seed(auction.Status)
		r.closing.Reset()
		r.synced = true
	}
	s.mu.Unlock()

	if resync {
		if !s.isCurrent(r) {
			return roomerr.Wrap("sync room", roomerr.ErrStaleRoom)
		}
		// Bids missed while disconnected go through the accept hooks like
		// live ones: they reset the closing stage and settle a pending bid.
		missed := r.ledger.Merge(bids, auction.BasePrice())
		if len(missed) > 0 {
			log.Info().Str("auction_id", r.auctionID).Int("missed_bids", len(missed)).Msg("recovered bids missed while disconnected")
		}
		r.phase.Confirm(auction.Status)

		s.mu.Lock()
		if s.room == r {
			r.synced = true
		}
		s.mu.Unlock()
	}

	log.Info().
		Str("auction_id", r.auctionID).
		Str("phase", string(auction.Status)).
		Int("bids", len(bids)).
		Int64("current_price", r.ledger.CurrentPrice()).
		Bool("resync", resync).
		Msg("room synchronized")

	s.publish()
	return nil
}

func (s *Session) resync(r *joinedRoom) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SyncTimeout)
	defer cancel()

	if err := s.sync(ctx, r, true); err != nil {
		if roomerr.IsStale(err) {
			log.Debug().Str("auction_id", r.auctionID).Msg("discarding stale resync")
			return
		}
		log.Error().Err(err).Str("auction_id", r.auctionID).Msg("failed to resynchronize room")
	}
}

// route applies one inbound event to the room joined at epoch.
func (s *Session) route(epoch uint64, ev transport.Event) {
	s.mu.Lock()
	r := s.room
	if r == nil || r.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	switch e := ev.(type) {
	case transport.BidAccepted:
		if e.Bid.AuctionID != "" && e.Bid.AuctionID != r.auctionID {
			log.Debug().Str("auction_id", e.Bid.AuctionID).Msg("ignoring bid for another auction")
			return
		}
		if e.Bid.AuctionID == "" {
			e.Bid.AuctionID = r.auctionID
		}
		if !r.ledger.AcceptConfirmation(e.Bid, e.ClientRef) {
			return
		}

	case transport.RosterSnapshot:
		r.presence.ApplyRosterSnapshot(e.Participants, e.Count)

	case transport.ChatPosted:
		s.mu.Lock()
		if s.room == r {
			r.chat = s.mergeChat(r.chat, e.Message)
		}
		s.mu.Unlock()

	case transport.PhaseChanged:
		if e.AuctionID != "" && e.AuctionID != r.auctionID {
			return
		}
		if !r.phase.Confirm(e.Phase) {
			return
		}

	case transport.ActionRejected:
		s.handleRejection(r, e)

	case transport.ConnectionChanged:
		switch e.State {
		case transport.StateReconnecting, transport.StateFailed:
			r.presence.MarkStale()
			s.mu.Lock()
			r.synced = false
			s.mu.Unlock()
		case transport.StateOpen:
			if !e.Reconnected {
				break
			}
			s.mu.Lock()
			if s.room != r {
				s.mu.Unlock()
				return
			}
			s.wg.Add(1)
			s.mu.Unlock()
			log.Info().Str("auction_id", r.auctionID).Msg("reconnected, resynchronizing room")
			go s.resync(r)
		}
	}

	s.publish()
}

func (s *Session) handleRejection(r *joinedRoom, e transport.ActionRejected) {
	ref := e.ClientRef
	if ref == "" && e.Action == transport.ActionPlaceBid {
		if p := r.ledger.Pending(); p != nil {
			ref = p.ClientRef
		}
	}
	log.Warn().
		Str("auction_id", r.auctionID).
		Str("action", string(e.Action)).
		Str("reason", e.Reason).
		Msg("action rejected by server")
	if ref == "" {
		return
	}
	r.ledger.DropPending(ref)
	s.resolve(r, ref, bidResult{err: roomerr.Rejected(string(e.Action), e.Reason, nil)})
}

// mergeChat adds messages not already present in creation order, keeping
// the newest ChatLimit.
func (s *Session) mergeChat(existing []models.ChatMessage, incoming ...models.ChatMessage) []models.ChatMessage {
	merged := lo.UniqBy(append(existing, incoming...), func(m models.ChatMessage) string {
		if m.ID == "" {
			return m.CreatedAt.String() + m.Message
		}
		return m.ID
	})
	slices.SortStableFunc(merged, func(a, b models.ChatMessage) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if len(merged) > s.cfg.ChatLimit {
		merged = merged[len(merged)-s.cfg.ChatLimit:]
	}
	return merged
}
