// Package journal persists confirmed room events so a session can be audited
// after the fact. Recording never blocks the room.
package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/liveauction/go/internal/models"
	"github.com/mcdev12/liveauction/go/internal/room/phase"
)

type Kind string

const (
	KindBid   Kind = "bid"
	KindPhase Kind = "phase"
)

// Entry is one journaled event.
type Entry struct {
	ID         uuid.UUID       `json:"id"`
	AuctionID  string          `json:"auction_id"`
	Kind       Kind            `json:"kind"`
	BidID      *int64          `json:"bid_id,omitempty"`
	Amount     *int64          `json:"amount,omitempty"`
	Phase      string          `json:"phase,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

func newBidEntry(auctionID string, bid models.Bid, at time.Time) (Entry, error) {
	payload, err := json.Marshal(bid)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal bid %d: %w", bid.ID, err)
	}
	id, amount := bid.ID, bid.Amount
	return Entry{
		ID:         uuid.New(),
		AuctionID:  auctionID,
		Kind:       KindBid,
		BidID:      &id,
		Amount:     &amount,
		Payload:    payload,
		RecordedAt: at,
	}, nil
}

func newPhaseEntry(auctionID string, t phase.Transition, at time.Time) (Entry, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal transition: %w", err)
	}
	return Entry{
		ID:         uuid.New(),
		AuctionID:  auctionID,
		Kind:       KindPhase,
		Phase:      string(t.To),
		Payload:    payload,
		RecordedAt: at,
	}, nil
}
