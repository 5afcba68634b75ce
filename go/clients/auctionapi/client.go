// Package auctionapi is a client for the auction REST API.
package auctionapi

import (
	"time"

	"github.com/mcdev12/liveauction/go/clients"
)

type Client struct {
	*clients.BaseClient
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &Client{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetBearerToken(token)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return client
}
