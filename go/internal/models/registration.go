package models

import (
	"encoding/json"
	"time"
)

// RegistrationType defines how a participant attends an auction.
type RegistrationType string

const (
	RegistrationTypeOnline  RegistrationType = "online"
	RegistrationTypeOnField RegistrationType = "onfield"
)

// RegistrationStatus defines the review state of a registration.
type RegistrationStatus string

const (
	RegistrationStatusRegistered RegistrationStatus = "registered"
	RegistrationStatusApproved   RegistrationStatus = "approved"
	RegistrationStatusRejected   RegistrationStatus = "rejected"
)

// Registration represents a participant's registration for a scheduled auction.
type Registration struct {
	ID           string             `json:"id"`
	AuctionID    string             `json:"auction_id"`
	UserID       string             `json:"user_id"`
	Type         RegistrationType   `json:"type"`
	Status       RegistrationStatus `json:"status"`
	BidderNumber string             `json:"bidder_number,omitempty"`
	RegisteredAt time.Time          `json:"registered_at"`
}

// RegistrationRequest registers the current user for an auction.
type RegistrationRequest struct {
	AuctionID string           `json:"auction_id"`
	Type      RegistrationType `json:"type"`
}

// UnmarshalJSON accepts zone-less timestamps.
func (r *Registration) UnmarshalJSON(data []byte) error {
	type plain Registration
	aux := struct {
		*plain
		RegisteredAt WireTime `json:"registered_at"`
	}{plain: (*plain)(r), RegisteredAt: WireTime(r.RegisteredAt)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.RegisteredAt = aux.RegisteredAt.Time()
	return nil
}
