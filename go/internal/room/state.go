package room

import (
	"github.com/mcdev12/liveauction/go/internal/models"
	"github.com/mcdev12/liveauction/go/internal/room/ledger"
	"github.com/mcdev12/liveauction/go/internal/room/transport"
)

// State is a read-only snapshot of a joined room. The zero value describes
// a session with no room joined.
type State struct {
	AuctionID        string                    `json:"auction_id"`
	Title            string                    `json:"title,omitempty"`
	Phase            models.AuctionPhase       `json:"phase"`
	CurrentPrice     int64                     `json:"current_price"`
	NextMinimumBid   int64                     `json:"next_minimum_bid"`
	Bids             []models.Bid              `json:"bids"`
	Participants     []models.Participant      `json:"participants"`
	ParticipantCount int                       `json:"participant_count"`
	ClosingStage     int                       `json:"closing_stage"`
	Pending          *ledger.PendingBid        `json:"pending,omitempty"`
	Chat             []models.ChatMessage      `json:"chat"`
	Connection       transport.ConnectionState `json:"connection"`
	PresenceStale    bool                      `json:"presence_stale"`
	Synced           bool                      `json:"synced"`
	BidsPerMinute    int                       `json:"bids_per_minute"`
}

// Joined reports whether the snapshot belongs to a joined room.
func (s State) Joined() bool {
	return s.AuctionID != ""
}
