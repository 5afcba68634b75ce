package room

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveauction/go/internal/models"
	"github.com/mcdev12/liveauction/go/internal/room/ledger"
	"github.com/mcdev12/liveauction/go/internal/room/roomerr"
	"github.com/mcdev12/liveauction/go/internal/room/transport"
)

// PlaceBid proposes amount as the local participant's bid and waits for the
// outcome: the confirming bid, a server rejection, roomerr.ErrOutbid,
// roomerr.ErrConfirmationTimeout or ctx's error. Amounts at or below the
// current price fail with roomerr.ErrBidTooLow without reaching the server.
func (s *Session) PlaceBid(ctx context.Context, amount int64) (models.Bid, error) {
	r, err := s.current("place bid")
	if err != nil {
		return models.Bid{}, err
	}
	if s.cfg.BidsOverREST {
		return s.placeBidREST(ctx, r, amount)
	}

	// The waiter exists before the bid becomes pending so that any
	// acceptance settling it finds someone to resolve.
	clientRef := uuid.New().String()
	result := make(chan bidResult, 1)
	s.mu.Lock()
	if s.room != r {
		s.mu.Unlock()
		return models.Bid{}, roomerr.Wrap("place bid", roomerr.ErrStaleRoom)
	}
	r.waiters[clientRef] = result
	s.mu.Unlock()

	p, err := r.ledger.ProposeLocalBidWithRef(clientRef, amount, s.cfg.BidderLabel, func(p ledger.PendingBid) {
		s.cfg.Transport.Send(transport.Action{
			Event:      transport.ActionPlaceBid,
			AuctionID:  r.auctionID,
			Amount:     p.Amount,
			BidderName: p.BidderName,
			ClientRef:  p.ClientRef,
		})
	})
	if err != nil {
		s.mu.Lock()
		delete(r.waiters, clientRef)
		s.mu.Unlock()
		return models.Bid{}, err
	}

	var replaced []chan bidResult
	s.mu.Lock()
	for ref, w := range r.waiters {
		if ref != clientRef {
			replaced = append(replaced, w)
			delete(r.waiters, ref)
		}
	}
	s.mu.Unlock()
	for _, w := range replaced {
		w <- bidResult{err: roomerr.Rejected("place bid", "replaced by a newer bid", nil)}
	}
	s.publish()

	log.Debug().
		Str("auction_id", r.auctionID).
		Str("client_ref", p.ClientRef).
		Int64("amount", amount).
		Msg("bid proposed")

	timer := s.clock.NewTimer(s.cfg.ConfirmTimeout)
	defer timer.Stop()

	select {
	case res := <-result:
		return res.bid, res.err
	case <-timer.Chan():
		s.abandon(r, p.ClientRef)
		return models.Bid{}, roomerr.Wrap("place bid", roomerr.ErrConfirmationTimeout)
	case <-ctx.Done():
		s.abandon(r, p.ClientRef)
		return models.Bid{}, ctx.Err()
	}
}

func (s *Session) placeBidREST(ctx context.Context, r *joinedRoom, amount int64) (models.Bid, error) {
	p, err := r.ledger.ProposeLocalBid(amount, s.cfg.BidderLabel, nil)
	if err != nil {
		return models.Bid{}, err
	}
	s.publish()

	bid, err := s.cfg.Bids.SubmitBid(ctx, r.auctionID, amount)
	if err != nil {
		r.ledger.DropPending(p.ClientRef)
		s.publish()
		return models.Bid{}, roomerr.Classify("place bid", err)
	}
	if !s.isCurrent(r) {
		return *bid, roomerr.Wrap("place bid", roomerr.ErrStaleRoom)
	}
	r.ledger.AcceptConfirmation(*bid, p.ClientRef)
	s.publish()
	return *bid, nil
}

// abandon stops waiting for clientRef and withdraws the optimistic bid.
func (s *Session) abandon(r *joinedRoom, clientRef string) {
	s.mu.Lock()
	delete(r.waiters, clientRef)
	s.mu.Unlock()
	if r.ledger.DropPending(clientRef) {
		s.publish()
	}
}

// PlaceFloorBid records a bid made in the room on behalf of bidderLabel. The
// server's accepted bid is applied immediately; its later live delivery is
// ignored as a duplicate. Floor bids are not checked against the current price.
func (s *Session) PlaceFloorBid(ctx context.Context, amount int64, bidderLabel string) (models.Bid, error) {
	if amount <= 0 {
		return models.Bid{}, roomerr.Wrap("place floor bid", roomerr.ErrInvalidAmount)
	}
	r, err := s.current("place floor bid")
	if err != nil {
		return models.Bid{}, err
	}

	bid, err := s.cfg.Bids.SubmitFloorBid(ctx, models.FloorBidRequest{
		AuctionID:  r.auctionID,
		Amount:     amount,
		BidderName: bidderLabel,
	})
	if err != nil {
		return models.Bid{}, roomerr.Classify("place floor bid", err)
	}
	if !s.isCurrent(r) {
		return *bid, roomerr.Wrap("place floor bid", roomerr.ErrStaleRoom)
	}
	if bid.AuctionID == "" {
		bid.AuctionID = r.auctionID
	}
	r.ledger.AcceptServerBid(*bid)

	log.Info().
		Str("auction_id", r.auctionID).
		Int64("bid_id", bid.ID).
		Int64("amount", bid.Amount).
		Str("bidder", bidderLabel).
		Msg("floor bid placed")

	s.publish()
	return *bid, nil
}

// StartAuction asks the server to start the auction. The local phase only
// changes once the server confirms.
func (s *Session) StartAuction(ctx context.Context) error {
	r, err := s.current("start auction")
	if err != nil {
		return err
	}
	err = r.phase.RequestStart(ctx)
	s.publish()
	return err
}

func (s *Session) EndAuction(ctx context.Context) error {
	r, err := s.current("end auction")
	if err != nil {
		return err
	}
	err = r.phase.RequestEnd(ctx)
	s.publish()
	return err
}

// AdvanceClosing moves the closing sequence one stage forward and returns the new stage.
func (s *Session) AdvanceClosing(ctx context.Context) (int, error) {
	r, err := s.current("advance closing")
	if err != nil {
		return 0, err
	}
	stage, err := r.closing.Advance(ctx)
	s.publish()
	return stage, err
}

// PostChat posts message to the room's chat.
func (s *Session) PostChat(ctx context.Context, message string) (models.ChatMessage, error) {
	r, err := s.current("post chat")
	if err != nil {
		return models.ChatMessage{}, err
	}
	msg, err := s.cfg.Chat.PostMessage(ctx, models.ChatPost{AuctionID: r.auctionID, Message: message})
	if err != nil {
		return models.ChatMessage{}, roomerr.Classify("post chat", err)
	}

	s.mu.Lock()
	if s.room == r {
		r.chat = s.mergeChat(r.chat, *msg)
	}
	s.mu.Unlock()
	s.publish()
	return *msg, nil
}
