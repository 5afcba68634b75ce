package transport

// ActionKind names an outbound room action. Bids are the only action sent
// over the channel; floor bids and phase changes go through the REST API.
type ActionKind string

const ActionPlaceBid ActionKind = "place_bid"

// Action is the outbound wire frame.
type Action struct {
	Event      ActionKind `json:"event"`
	AuctionID  string     `json:"auctionId"`
	Amount     int64      `json:"amount,omitempty"`
	BidderName string     `json:"bidderName,omitempty"`
	ClientRef  string     `json:"clientRef,omitempty"`
}
