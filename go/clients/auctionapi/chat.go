package auctionapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mcdev12/liveauction/go/internal/models"
)

func (c *Client) ChatHistory(ctx context.Context, auctionID string) ([]models.ChatMessage, error) {
	endpoint := fmt.Sprintf("%s/%s", ChatEndpoint, url.PathEscape(auctionID))
	var messages []models.ChatMessage
	if err := c.DoJSON(ctx, http.MethodGet, endpoint, nil, &messages); err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	return messages, nil
}

func (c *Client) PostMessage(ctx context.Context, post models.ChatPost) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	if err := c.DoJSON(ctx, http.MethodPost, ChatEndpoint+"/", post, &msg); err != nil {
		return nil, fmt.Errorf("failed to post chat message: %w", err)
	}
	return &msg, nil
}

// Announce posts an admin message, which is how closing stages reach the room.
func (c *Client) Announce(ctx context.Context, auctionID, message string) error {
	_, err := c.PostMessage(ctx, models.ChatPost{
		AuctionID:      auctionID,
		Message:        message,
		IsAdminMessage: true,
	})
	return err
}
