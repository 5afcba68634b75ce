package models

import (
	"encoding/json"
	"time"
)

// BidderClass distinguishes online bidders from floor bids entered by the auctioneer.
type BidderClass string

const (
	BidderClassOnline BidderClass = "online"
	BidderClassFloor  BidderClass = "floor"
)

// Bid is a server-accepted bid. IDs are issued monotonically by the server and never reused.
type Bid struct {
	ID           int64       `json:"id"`
	AuctionID    string      `json:"auction_id"`
	BidderName   string      `json:"bidder_name"`
	BidderNumber string      `json:"bidder_number,omitempty"`
	Class        BidderClass `json:"type"`
	Amount       int64       `json:"amount"`
	Timestamp    time.Time   `json:"timestamp"`
}

// BidRequest submits an online bid.
type BidRequest struct {
	AuctionID string `json:"auction_id"`
	Amount    int64  `json:"amount"`
}

// FloorBidRequest submits a bid on behalf of an in-person bidder.
type FloorBidRequest struct {
	AuctionID    string `json:"auction_id"`
	Amount       int64  `json:"amount"`
	BidderName   string `json:"bidder_name"`
	BidderNumber string `json:"bidder_number,omitempty"`
}

// UnmarshalJSON accepts decimal amounts and zone-less timestamps.
func (b *Bid) UnmarshalJSON(data []byte) error {
	type plain Bid
	aux := struct {
		*plain
		ID        WireInt  `json:"id"`
		Amount    WireInt  `json:"amount"`
		Timestamp WireTime `json:"timestamp"`
	}{plain: (*plain)(b), ID: WireInt(b.ID), Amount: WireInt(b.Amount), Timestamp: WireTime(b.Timestamp)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	b.ID = int64(aux.ID)
	b.Amount = int64(aux.Amount)
	b.Timestamp = aux.Timestamp.Time()
	return nil
}
