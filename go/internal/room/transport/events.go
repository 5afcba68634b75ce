package transport

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/liveauction/go/internal/models"
)

// EventType identifies an inbound room event.
type EventType string

const (
	EventTypeBidAccepted       EventType = "bid_update"
	EventTypeRosterSnapshot    EventType = "participantUpdate"
	EventTypeChatPosted        EventType = "chatMessage"
	EventTypePhaseChanged      EventType = "phase_update"
	EventTypeActionRejected    EventType = "action_rejected"
	EventTypeConnectionChanged EventType = "connection_changed" // generated locally, never on the wire
)

// Older servers emit these names for the same payloads.
const (
	legacyBidUpdated    = "bidUpdated"
	legacyAuctionStatus = "auctionStatus"
)

// Event is one of the typed room events below.
type Event interface {
	Type() EventType
}

// BidAccepted reports a bid the server accepted. ClientRef echoes the
// reference of the optimistic bid it confirms, if any.
type BidAccepted struct {
	Bid       models.Bid
	ClientRef string
}

// RosterSnapshot replaces the connected participant set. Servers that only
// publish a head count send Count with no Participants.
type RosterSnapshot struct {
	Participants []models.Participant
	Count        int
}

type ChatPosted struct {
	Message models.ChatMessage
}

// PhaseChanged carries a server-confirmed auction phase.
type PhaseChanged struct {
	AuctionID string
	Phase     models.AuctionPhase
}

// ActionRejected is the server's negative acknowledgment of an action.
type ActionRejected struct {
	Action    ActionKind
	ClientRef string
	Reason    string
}

// ConnectionChanged reports a transition of the channel's connection state.
// Reconnected is set when the channel reopens after having been open before
// within the same join.
type ConnectionChanged struct {
	State       ConnectionState
	RoomID      string
	Reconnected bool
}

func (BidAccepted) Type() EventType       { return EventTypeBidAccepted }
func (RosterSnapshot) Type() EventType    { return EventTypeRosterSnapshot }
func (ChatPosted) Type() EventType        { return EventTypeChatPosted }
func (PhaseChanged) Type() EventType      { return EventTypePhaseChanged }
func (ActionRejected) Type() EventType    { return EventTypeActionRejected }
func (ConnectionChanged) Type() EventType { return EventTypeConnectionChanged }

// envelope is the inbound wire frame.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type bidPayload struct {
	ID           models.WireInt  `json:"id"`
	AuctionID    string          `json:"auctionId"`
	NewPrice     models.WireInt  `json:"newPrice"`
	BidderName   string          `json:"bidderName"`
	BidderNumber string          `json:"bidderNumber"`
	Class        string          `json:"type"`
	Timestamp    models.WireTime `json:"timestamp"`
	ClientRef    string          `json:"clientRef"`
}

type rosterPayload struct {
	Participants []models.Participant `json:"participants"`
	Count        int                  `json:"count"`
}

type chatPayload struct {
	ID             string          `json:"id"`
	AuctionID      string          `json:"auction_id"`
	UserName       string          `json:"user_name"`
	Message        string          `json:"message"`
	IsAdminMessage bool            `json:"is_admin_message"`
	CreatedAt      models.WireTime `json:"created_at"`
}

type phasePayload struct {
	AuctionID string `json:"auctionId"`
	Status    string `json:"status"`
}

type rejectionPayload struct {
	Action    string `json:"action"`
	ClientRef string `json:"clientRef"`
	Reason    string `json:"reason"`
}

// Decode parses one inbound frame. Unknown event types yield (nil, nil).
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case string(EventTypeBidAccepted), legacyBidUpdated:
		// The legacy bid path also carries phase updates.
		if isPhasePayload(env.Data) {
			return decodePhase(env.Data)
		}
		var p bidPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if p.ID <= 0 {
			return nil, fmt.Errorf("decode %s: missing bid id", env.Type)
		}
		if p.NewPrice <= 0 {
			return nil, fmt.Errorf("decode %s: bid %d has non-positive amount %d", env.Type, p.ID, p.NewPrice)
		}
		return BidAccepted{
			Bid: models.Bid{
				ID:           int64(p.ID),
				AuctionID:    p.AuctionID,
				BidderName:   p.BidderName,
				BidderNumber: p.BidderNumber,
				Class:        models.BidderClass(p.Class),
				Amount:       int64(p.NewPrice),
				Timestamp:    p.Timestamp.Time(),
			},
			ClientRef: p.ClientRef,
		}, nil

	case string(EventTypeRosterSnapshot):
		var p rosterPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if p.Count == 0 {
			p.Count = len(p.Participants)
		}
		return RosterSnapshot{Participants: p.Participants, Count: p.Count}, nil

	case string(EventTypeChatPosted):
		var p chatPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ChatPosted{Message: models.ChatMessage{
			ID:             p.ID,
			AuctionID:      p.AuctionID,
			UserName:       p.UserName,
			Message:        p.Message,
			IsAdminMessage: p.IsAdminMessage,
			CreatedAt:      p.CreatedAt.Time(),
		}}, nil

	case string(EventTypePhaseChanged), legacyAuctionStatus:
		return decodePhase(env.Data)

	case string(EventTypeActionRejected):
		var p rejectionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ActionRejected{Action: ActionKind(p.Action), ClientRef: p.ClientRef, Reason: p.Reason}, nil

	default:
		return nil, nil
	}
}

func decodePhase(data json.RawMessage) (Event, error) {
	var p phasePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode phase: %w", err)
	}
	phase := models.AuctionPhase(p.Status)
	if !phase.Valid() {
		return nil, fmt.Errorf("decode phase: unknown status %q", p.Status)
	}
	return PhaseChanged{AuctionID: p.AuctionID, Phase: phase}, nil
}

func isPhasePayload(data json.RawMessage) bool {
	var shape struct {
		Status   *string          `json:"status"`
		NewPrice *json.RawMessage `json:"newPrice"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return false
	}
	return shape.Status != nil && shape.NewPrice == nil
}
