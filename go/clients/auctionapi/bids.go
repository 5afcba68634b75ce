package auctionapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/samber/lo"

	"github.com/mcdev12/liveauction/go/internal/models"
)

// ListBids returns one page of an auction's bids, newest first.
func (c *Client) ListBids(ctx context.Context, auctionID string, skip, limit int) ([]models.Bid, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	endpoint := fmt.Sprintf("%s/%s?skip=%d&limit=%d", AuctionBidsEndpoint, url.PathEscape(auctionID), skip, limit)
	var bids []models.Bid
	if err := c.DoJSON(ctx, http.MethodGet, endpoint, nil, &bids); err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return bids, nil
}

// BidHistory pages through ListBids until max bids are collected or the
// server runs out. Bids repeated across pages, which happens when new bids
// land between requests, are returned once.
func (c *Client) BidHistory(ctx context.Context, auctionID string, pageSize, max int) ([]models.Bid, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	var all []models.Bid
	for skip := 0; max <= 0 || len(all) < max; skip += pageSize {
		limit := pageSize
		if max > 0 {
			limit = min(pageSize, max-len(all))
		}
		page, err := c.ListBids(ctx, auctionID, skip, limit)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < limit {
			break
		}
	}
	return lo.UniqBy(all, func(b models.Bid) int64 { return b.ID }), nil
}

// SubmitBid places an online bid as the authenticated user.
func (c *Client) SubmitBid(ctx context.Context, auctionID string, amount int64) (*models.Bid, error) {
	var bid models.Bid
	req := models.BidRequest{AuctionID: auctionID, Amount: amount}
	if err := c.DoJSON(ctx, http.MethodPost, BidsEndpoint+"/", req, &bid); err != nil {
		return nil, fmt.Errorf("failed to submit bid: %w", err)
	}
	return &bid, nil
}

// SubmitFloorBid records a bid made in the room on behalf of bidderName.
func (c *Client) SubmitFloorBid(ctx context.Context, req models.FloorBidRequest) (*models.Bid, error) {
	var bid models.Bid
	if err := c.DoJSON(ctx, http.MethodPost, FloorBidsEndpoint, req, &bid); err != nil {
		return nil, fmt.Errorf("failed to submit floor bid: %w", err)
	}
	return &bid, nil
}
