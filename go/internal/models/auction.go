package models

import (
	"encoding/json"
	"time"
)

// AuctionPhase defines the lifecycle stage of an auction.
type AuctionPhase string

const (
	AuctionPhaseScheduled AuctionPhase = "scheduled"
	AuctionPhaseLive      AuctionPhase = "live"
	AuctionPhaseCompleted AuctionPhase = "completed"
)

// Valid reports whether p is one of the known phases.
func (p AuctionPhase) Valid() bool {
	switch p {
	case AuctionPhaseScheduled, AuctionPhaseLive, AuctionPhaseCompleted:
		return true
	}
	return false
}

// Rank orders phases along the only permitted direction of travel.
func (p AuctionPhase) Rank() int {
	switch p {
	case AuctionPhaseScheduled:
		return 1
	case AuctionPhaseLive:
		return 2
	case AuctionPhaseCompleted:
		return 3
	default:
		return 0
	}
}

// DefaultBidIncrement is used when an auction does not carry its own increment.
const DefaultBidIncrement int64 = 1000

// Auction represents an auction as returned by the auction REST API.
type Auction struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description,omitempty"`
	ImageURL      string       `json:"image_url,omitempty"`
	Category      string       `json:"category,omitempty"`
	Location      string       `json:"location,omitempty"`
	Status        AuctionPhase `json:"status"`
	StartingPrice int64        `json:"starting_price"`
	CurrentPrice  int64        `json:"current_price"`
	BidIncrement  int64        `json:"bid_increment,omitempty"`
	AuctionDate   time.Time    `json:"auction_date"`
	EndTime       *time.Time   `json:"end_time,omitempty"` // advisory only
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// BasePrice is the price shown before any bid has been accepted.
func (a *Auction) BasePrice() int64 {
	if a.CurrentPrice > 0 {
		return a.CurrentPrice
	}
	return a.StartingPrice
}

// Increment returns the minimum step the control center suggests for the next bid.
func (a *Auction) Increment() int64 {
	if a.BidIncrement > 0 {
		return a.BidIncrement
	}
	return DefaultBidIncrement
}

// AuctionInput is the body for creating or updating an auction.
type AuctionInput struct {
	Title         string     `json:"title,omitempty"`
	Description   string     `json:"description,omitempty"`
	ImageURL      string     `json:"image_url,omitempty"`
	Category      string     `json:"category,omitempty"`
	Location      string     `json:"location,omitempty"`
	StartingPrice int64      `json:"starting_price,omitempty"`
	AuctionDate   *time.Time `json:"auction_date,omitempty"`
}

// UnmarshalJSON accepts decimal prices and zone-less timestamps.
func (a *Auction) UnmarshalJSON(data []byte) error {
	type plain Auction
	aux := struct {
		*plain
		StartingPrice WireInt   `json:"starting_price"`
		CurrentPrice  WireInt   `json:"current_price"`
		BidIncrement  WireInt   `json:"bid_increment"`
		AuctionDate   WireTime  `json:"auction_date"`
		EndTime       *WireTime `json:"end_time"`
		CreatedAt     WireTime  `json:"created_at"`
		UpdatedAt     WireTime  `json:"updated_at"`
	}{
		plain:         (*plain)(a),
		StartingPrice: WireInt(a.StartingPrice),
		CurrentPrice:  WireInt(a.CurrentPrice),
		BidIncrement:  WireInt(a.BidIncrement),
		AuctionDate:   WireTime(a.AuctionDate),
		CreatedAt:     WireTime(a.CreatedAt),
		UpdatedAt:     WireTime(a.UpdatedAt),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.StartingPrice = int64(aux.StartingPrice)
	a.CurrentPrice = int64(aux.CurrentPrice)
	a.BidIncrement = int64(aux.BidIncrement)
	a.AuctionDate = aux.AuctionDate.Time()
	a.EndTime = wireTimePtr(aux.EndTime)
	a.CreatedAt = aux.CreatedAt.Time()
	a.UpdatedAt = aux.UpdatedAt.Time()
	return nil
}
