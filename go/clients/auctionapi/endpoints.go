package auctionapi

const (
	// Base URL
	DefaultBaseURL = "http://localhost:8000"

	// API Endpoints
	AuctionsEndpoint      = "/api/auctions"
	BidsEndpoint          = "/api/bids"
	FloorBidsEndpoint     = "/api/bids/floor"
	AuctionBidsEndpoint   = "/api/bids/auction"
	ChatEndpoint          = "/api/chat"
	RegistrationsEndpoint = "/api/registrations"

	// Paging
	DefaultPageSize = 50
)
