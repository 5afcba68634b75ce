package auctionapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/liveauction/go/clients"
	"github.com/mcdev12/liveauction/go/internal/models"
	"github.com/mcdev12/liveauction/go/internal/room/roomerr"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "tok", 0)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestStartAuction(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auctions/a1/start", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, models.Auction{ID: "a1", Status: models.AuctionPhaseLive})
	}))

	auction, err := c.StartAuction(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, models.AuctionPhaseLive, auction.Status)
}

func TestStartAuctionRejectedIsServerRejection(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Auction is already completed"})
	}))

	_, err := c.StartAuction(context.Background(), "a1")
	require.Error(t, err)

	var apiErr *clients.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Auction is already completed", apiErr.Detail)

	classified := roomerr.Classify("start auction", err)
	assert.True(t, roomerr.IsServerRejection(classified))
}

func TestBidHistoryPages(t *testing.T) {
	// 7 bids, newest first; page boundaries overlap by one when a bid lands mid-fetch.
	var requests []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var page []models.Bid
		for id := int64(7 - skip); id >= 1 && len(page) < limit; id-- {
			page = append(page, models.Bid{ID: id, Amount: id * 100})
		}
		if skip == 3 {
			// Repeat of the last bid of the previous page.
			page = append([]models.Bid{{ID: 5, Amount: 500}}, page[:len(page)-1]...)
		}
		writeJSON(w, http.StatusOK, page)
	}))

	bids, err := c.BidHistory(context.Background(), "a1", 3, 0)
	require.NoError(t, err)

	ids := make([]int64, 0, len(bids))
	for _, b := range bids {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []int64{7, 6, 5, 4, 3, 1}, ids)
	assert.Equal(t, []string{"skip=0&limit=3", "skip=3&limit=3", "skip=6&limit=3"}, requests)
}

func TestBidHistoryRespectsMax(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		page := make([]models.Bid, limit)
		for i := range page {
			page[i] = models.Bid{ID: int64(1000 - i)}
		}
		writeJSON(w, http.StatusOK, page)
	}))

	bids, err := c.BidHistory(context.Background(), "a1", 50, 20)
	require.NoError(t, err)
	assert.Len(t, bids, 20)
}

func TestSubmitFloorBid(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bids/floor", r.URL.Path)
		var req models.FloorBidRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusCreated, models.Bid{
			ID:         9,
			AuctionID:  req.AuctionID,
			BidderName: req.BidderName,
			Class:      models.BidderClassFloor,
			Amount:     req.Amount,
		})
	}))

	bid, err := c.SubmitFloorBid(context.Background(), models.FloorBidRequest{AuctionID: "a1", Amount: 5000, BidderName: "Paddle 12"})
	require.NoError(t, err)
	assert.Equal(t, int64(9), bid.ID)
	assert.Equal(t, models.BidderClassFloor, bid.Class)
}

func TestAnnouncePostsAdminMessage(t *testing.T) {
	var got models.ChatPost
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, models.ChatMessage{ID: "m1", AuctionID: got.AuctionID, Message: got.Message, IsAdminMessage: true})
	}))

	require.NoError(t, c.Announce(context.Background(), "a1", "Going Once…"))
	assert.Equal(t, models.ChatPost{AuctionID: "a1", Message: "Going Once…", IsAdminMessage: true}, got)
}

func TestRegistrations(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/registrations/auction/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Registration{
			{ID: "r1", AuctionID: r.PathValue("id"), Status: models.RegistrationStatusRegistered},
			{ID: "r2", AuctionID: r.PathValue("id"), Status: models.RegistrationStatusApproved},
		})
	})
	mux.HandleFunc("POST /api/registrations/{id}/approve", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.Registration{ID: r.PathValue("id"), Status: models.RegistrationStatusApproved})
	})
	mux.HandleFunc("PUT /api/registrations/{id}/bidder-number", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.Registration{ID: r.PathValue("id"), BidderNumber: r.URL.Query().Get("bidder_number")})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	pending, err := c.PendingRegistrations(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "r1", pending[0].ID)

	reg, err := c.Approve(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusApproved, reg.Status)

	reg, err = c.AssignBidderNumber(ctx, "r1", "A 7")
	require.NoError(t, err)
	assert.Equal(t, "A 7", reg.BidderNumber)
}

func TestListAuctionsFilter(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "live", r.URL.Query().Get("status"))
		writeJSON(w, http.StatusOK, []models.Auction{{ID: "a1", Status: models.AuctionPhaseLive}})
	}))

	auctions, err := c.ListAuctions(context.Background(), models.AuctionPhaseLive)
	require.NoError(t, err)
	assert.Len(t, auctions, 1)
	assert.Equal(t, "a1", auctions[0].ID)
}

func TestDecodesPythonStylePayloads(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auctions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"a1","title":"Lot 1","status":"live","starting_price":5000.0,"current_price":"7500",` +
			`"auction_date":"2025-03-01T18:00:00","end_time":null,"created_at":"2025-02-01T09:30:00.123456","updated_at":"2025-03-01T18:00:00+00:00"}`))
	})
	mux.HandleFunc("GET /api/bids/auction/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":2,"auction_id":"a1","bidder_name":"Bo","type":"online","amount":7500.0,"timestamp":"2025-03-01T18:05:00.5"}]`))
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	auction, err := c.GetAuction(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), auction.StartingPrice)
	assert.Equal(t, int64(7500), auction.CurrentPrice)
	assert.Equal(t, time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC), auction.AuctionDate)
	assert.Equal(t, time.Date(2025, 2, 1, 9, 30, 0, 123456000, time.UTC), auction.CreatedAt)
	assert.Nil(t, auction.EndTime)

	bids, err := c.BidHistory(ctx, "a1", 50, 0)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, int64(7500), bids[0].Amount)
	assert.Equal(t, time.Date(2025, 3, 1, 18, 5, 0, 500000000, time.UTC), bids[0].Timestamp)
}

func TestUndecodableResponseIsProtocolError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"a1","current_price":12.5}`))
	}))

	_, err := c.GetAuction(context.Background(), "a1")
	require.Error(t, err)

	var decodeErr *clients.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, roomerr.KindProtocol, roomerr.KindOf(roomerr.Classify("fetch auction", err)))
}
