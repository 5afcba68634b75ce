package auctionapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mcdev12/liveauction/go/internal/models"
)

func (c *Client) GetAuction(ctx context.Context, auctionID string) (*models.Auction, error) {
	var auction models.Auction
	endpoint := fmt.Sprintf("%s/%s", AuctionsEndpoint, url.PathEscape(auctionID))
	if err := c.DoJSON(ctx, http.MethodGet, endpoint, nil, &auction); err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return &auction, nil
}

// ListAuctions lists auctions, optionally filtered by phase.
func (c *Client) ListAuctions(ctx context.Context, status models.AuctionPhase) ([]models.Auction, error) {
	endpoint := AuctionsEndpoint + "/"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(string(status))
	}
	var auctions []models.Auction
	if err := c.DoJSON(ctx, http.MethodGet, endpoint, nil, &auctions); err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	return auctions, nil
}

func (c *Client) CreateAuction(ctx context.Context, in models.AuctionInput) (*models.Auction, error) {
	var auction models.Auction
	if err := c.DoJSON(ctx, http.MethodPost, AuctionsEndpoint+"/", in, &auction); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}
	return &auction, nil
}

// UpdateAuction edits a scheduled auction.
func (c *Client) UpdateAuction(ctx context.Context, auctionID string, in models.AuctionInput) (*models.Auction, error) {
	var auction models.Auction
	endpoint := fmt.Sprintf("%s/%s", AuctionsEndpoint, url.PathEscape(auctionID))
	if err := c.DoJSON(ctx, http.MethodPut, endpoint, in, &auction); err != nil {
		return nil, fmt.Errorf("failed to update auction: %w", err)
	}
	return &auction, nil
}

func (c *Client) DeleteAuction(ctx context.Context, auctionID string) error {
	endpoint := fmt.Sprintf("%s/%s", AuctionsEndpoint, url.PathEscape(auctionID))
	if _, err := c.Delete(ctx, endpoint); err != nil {
		return fmt.Errorf("failed to delete auction: %w", err)
	}
	return nil
}

// StartAuction asks the server to move the auction to live. The returned
// auction carries the server's resulting status.
func (c *Client) StartAuction(ctx context.Context, auctionID string) (*models.Auction, error) {
	var auction models.Auction
	endpoint := fmt.Sprintf("%s/%s/start", AuctionsEndpoint, url.PathEscape(auctionID))
	if err := c.DoJSON(ctx, http.MethodPost, endpoint, nil, &auction); err != nil {
		return nil, fmt.Errorf("failed to start auction: %w", err)
	}
	return &auction, nil
}

func (c *Client) EndAuction(ctx context.Context, auctionID string) (*models.Auction, error) {
	var auction models.Auction
	endpoint := fmt.Sprintf("%s/%s/end", AuctionsEndpoint, url.PathEscape(auctionID))
	if err := c.DoJSON(ctx, http.MethodPost, endpoint, nil, &auction); err != nil {
		return nil, fmt.Errorf("failed to end auction: %w", err)
	}
	return &auction, nil
}
