package models

import (
	"encoding/json"
	"time"
)

// ChatMessage is a message posted to an auction room.
type ChatMessage struct {
	ID             string    `json:"id"`
	AuctionID      string    `json:"auction_id"`
	UserName       string    `json:"user_name,omitempty"`
	Message        string    `json:"message"`
	IsAdminMessage bool      `json:"is_admin_message"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChatPost is the body for posting a chat message.
type ChatPost struct {
	AuctionID      string `json:"auction_id"`
	Message        string `json:"message"`
	IsAdminMessage bool   `json:"is_admin_message,omitempty"`
}

// UnmarshalJSON accepts zone-less timestamps.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	type plain ChatMessage
	aux := struct {
		*plain
		CreatedAt WireTime `json:"created_at"`
	}{plain: (*plain)(m), CreatedAt: WireTime(m.CreatedAt)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.CreatedAt = aux.CreatedAt.Time()
	return nil
}
