package auctionapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/samber/lo"

	"github.com/mcdev12/liveauction/go/internal/models"
)

func (c *Client) Register(ctx context.Context, req models.RegistrationRequest) (*models.Registration, error) {
	var reg models.Registration
	if err := c.DoJSON(ctx, http.MethodPost, RegistrationsEndpoint+"/", req, &reg); err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}
	return &reg, nil
}

func (c *Client) Unregister(ctx context.Context, registrationID string) error {
	endpoint := fmt.Sprintf("%s/%s", RegistrationsEndpoint, url.PathEscape(registrationID))
	if _, err := c.Delete(ctx, endpoint); err != nil {
		return fmt.Errorf("failed to unregister: %w", err)
	}
	return nil
}

func (c *Client) ListRegistrations(ctx context.Context, auctionID string) ([]models.Registration, error) {
	endpoint := fmt.Sprintf("%s/auction/%s", RegistrationsEndpoint, url.PathEscape(auctionID))
	var regs []models.Registration
	if err := c.DoJSON(ctx, http.MethodGet, endpoint, nil, &regs); err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return regs, nil
}

func (c *Client) ListUserRegistrations(ctx context.Context, userID string) ([]models.Registration, error) {
	endpoint := fmt.Sprintf("%s/user/%s", RegistrationsEndpoint, url.PathEscape(userID))
	var regs []models.Registration
	if err := c.DoJSON(ctx, http.MethodGet, endpoint, nil, &regs); err != nil {
		return nil, fmt.Errorf("failed to list user registrations: %w", err)
	}
	return regs, nil
}

// PendingRegistrations returns the auction's registrations still awaiting review.
func (c *Client) PendingRegistrations(ctx context.Context, auctionID string) ([]models.Registration, error) {
	regs, err := c.ListRegistrations(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return lo.Filter(regs, func(r models.Registration, _ int) bool {
		return r.Status == models.RegistrationStatusRegistered
	}), nil
}

func (c *Client) Approve(ctx context.Context, registrationID string) (*models.Registration, error) {
	return c.review(ctx, registrationID, "approve")
}

func (c *Client) Reject(ctx context.Context, registrationID string) (*models.Registration, error) {
	return c.review(ctx, registrationID, "reject")
}

func (c *Client) review(ctx context.Context, registrationID, action string) (*models.Registration, error) {
	var reg models.Registration
	endpoint := fmt.Sprintf("%s/%s/%s", RegistrationsEndpoint, url.PathEscape(registrationID), action)
	if err := c.DoJSON(ctx, http.MethodPost, endpoint, nil, &reg); err != nil {
		return nil, fmt.Errorf("failed to %s registration: %w", action, err)
	}
	return &reg, nil
}

// AssignBidderNumber sets the paddle number shown for a registered bidder.
func (c *Client) AssignBidderNumber(ctx context.Context, registrationID, bidderNumber string) (*models.Registration, error) {
	var reg models.Registration
	endpoint := fmt.Sprintf("%s/%s/bidder-number?bidder_number=%s",
		RegistrationsEndpoint, url.PathEscape(registrationID), url.QueryEscape(bidderNumber))
	if err := c.DoJSON(ctx, http.MethodPut, endpoint, nil, &reg); err != nil {
		return nil, fmt.Errorf("failed to assign bidder number: %w", err)
	}
	return &reg, nil
}
