package models

// Participant is a user currently connected to an auction room.
type Participant struct {
	UserID       string `json:"user_id"`
	DisplayName  string `json:"user_name"`
	BidderNumber string `json:"bidder_number,omitempty"`
}
