// Package statusapi serves a local operator console over a joined room.
package statusapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/liveauction/go/internal/journal"
	"github.com/mcdev12/liveauction/go/internal/models"
	"github.com/mcdev12/liveauction/go/internal/room"
	"github.com/mcdev12/liveauction/go/internal/room/roomerr"
)

// Room is the part of room.Session the console drives.
type Room interface {
	State() room.State
	Subscribe() (<-chan room.State, func())
	PlaceBid(ctx context.Context, amount int64) (models.Bid, error)
	PlaceFloorBid(ctx context.Context, amount int64, bidderLabel string) (models.Bid, error)
	StartAuction(ctx context.Context) error
	EndAuction(ctx context.Context) error
	AdvanceClosing(ctx context.Context) (int, error)
	PostChat(ctx context.Context, message string) (models.ChatMessage, error)
}

type Config struct {
	Addr string
	// KeepAlive is how often an idle event stream receives a comment line.
	KeepAlive time.Duration
}

func DefaultConfig() Config {
	return Config{Addr: ":8090", KeepAlive: 30 * time.Second}
}

type Server struct {
	config  Config
	room    Room
	journal journal.Reader // optional
	http    *http.Server
}

func NewServer(cfg Config, rm Room, reader journal.Reader) *Server {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultConfig().KeepAlive
	}
	s := &Server{config: cfg, room: rm, journal: reader}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the console routes wrapped in CORS and h2c.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /journal", s.handleJournal)
	mux.HandleFunc("POST /bids", s.handlePlaceBid)
	mux.HandleFunc("POST /floor-bids", s.handleFloorBid)
	mux.HandleFunc("POST /start", s.handleStart)
	mux.HandleFunc("POST /end", s.handleEnd)
	mux.HandleFunc("POST /closing/advance", s.handleAdvanceClosing)
	mux.HandleFunc("POST /chat", s.handleChat)
}

func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.http.Addr).Msg("status console starting")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status console failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Warn().Err(err).Msg("failed to write health check response")
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.room.State())
}

// handleEvents streams state snapshots as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates, cancel := s.room.Subscribe()
	defer cancel()

	if err := writeEvent(w, s.room.State()); err != nil {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(s.config.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, st); err != nil {
				log.Debug().Err(err).Msg("event stream closed")
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, errors.New("journal disabled"))
		return
	}
	st := s.room.State()
	if !st.Joined() {
		writeError(w, http.StatusConflict, roomerr.ErrNotJoined)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}
	entries, err := s.journal.Recent(r.Context(), st.AuctionID, limit)
	if err != nil {
		log.Error().Err(err).Str("auction_id", st.AuctionID).Msg("failed to read journal")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

type floorBidRequest struct {
	Amount      int64  `json:"amount"`
	BidderLabel string `json:"bidder_label"`
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	bid, err := s.room.PlaceBid(r.Context(), req.Amount)
	if err != nil {
		writeRoomError(w, "place bid", err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

func (s *Server) handleFloorBid(w http.ResponseWriter, r *http.Request) {
	var req floorBidRequest
	if !decodeBody(w, r, &req) {
		return
	}
	bid, err := s.room.PlaceFloorBid(r.Context(), req.Amount, req.BidderLabel)
	if err != nil {
		writeRoomError(w, "floor bid", err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.room.StartAuction(r.Context()); err != nil {
		writeRoomError(w, "start auction", err)
		return
	}
	writeJSON(w, http.StatusOK, s.room.State())
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if err := s.room.EndAuction(r.Context()); err != nil {
		writeRoomError(w, "end auction", err)
		return
	}
	writeJSON(w, http.StatusOK, s.room.State())
}

func (s *Server) handleAdvanceClosing(w http.ResponseWriter, r *http.Request) {
	stage, err := s.room.AdvanceClosing(r.Context())
	if err != nil {
		writeRoomError(w, "advance closing", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"closing_stage": stage})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, errors.New("message is required"))
		return
	}
	msg, err := s.room.PostChat(r.Context(), req.Message)
	if err != nil {
		writeRoomError(w, "post chat", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
