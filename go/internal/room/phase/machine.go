// Package phase mirrors the server-owned auction phase.
package phase

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveauction/go/internal/models"
	"github.com/mcdev12/liveauction/go/internal/room/roomerr"
)

// API is the subset of the auction service that changes phase.
type API interface {
	StartAuction(ctx context.Context, auctionID string) (*models.Auction, error)
	EndAuction(ctx context.Context, auctionID string) (*models.Auction, error)
}

// Transition is one applied phase change.
type Transition struct {
	From models.AuctionPhase `json:"from"`
	To   models.AuctionPhase `json:"to"`
	At   time.Time           `json:"at"`
}

// TransitionHook is called, without the lock held, for every applied transition.
type TransitionHook func(Transition)

// Machine only moves forward: scheduled, live, completed. Requests never
// change the phase by themselves; only server confirmations do.
type Machine struct {
	auctionID string
	api       API
	clock     clockwork.Clock

	mu          sync.RWMutex
	phase       models.AuctionPhase
	transitions []Transition
	hooks       []TransitionHook
}

func New(auctionID string, api API, clock clockwork.Clock) *Machine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Machine{
		auctionID: auctionID,
		api:       api,
		clock:     clock,
		phase:     models.AuctionPhaseScheduled,
	}
}

func (m *Machine) OnTransition(hook TransitionHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// Seed sets the phase from a fetched auction snapshot. It follows the same
// forward-only rule as Confirm but records no transition.
func (m *Machine) Seed(p models.AuctionPhase) {
	if !p.Valid() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Rank() > m.phase.Rank() {
		m.phase = p
	}
}

// Confirm applies a server-confirmed phase and reports whether it changed
// anything. Equal or earlier phases are ignored.
func (m *Machine) Confirm(p models.AuctionPhase) bool {
	if !p.Valid() {
		return false
	}

	m.mu.Lock()
	if p.Rank() <= m.phase.Rank() {
		m.mu.Unlock()
		return false
	}
	t := Transition{From: m.phase, To: p, At: m.clock.Now()}
	m.phase = p
	m.transitions = append(m.transitions, t)
	hooks := slices.Clone(m.hooks)
	m.mu.Unlock()

	log.Info().
		Str("auction_id", m.auctionID).
		Str("from", string(t.From)).
		Str("to", string(t.To)).
		Msg("auction phase changed")

	for _, hook := range hooks {
		hook(t)
	}
	return true
}

// RequestStart asks the server to start the auction. The request is always
// forwarded; the server decides whether it is valid.
func (m *Machine) RequestStart(ctx context.Context) error {
	return m.request(ctx, "start auction", m.api.StartAuction)
}

// RequestEnd asks the server to end the auction.
func (m *Machine) RequestEnd(ctx context.Context) error {
	return m.request(ctx, "end auction", m.api.EndAuction)
}

func (m *Machine) request(ctx context.Context, op string, call func(context.Context, string) (*models.Auction, error)) error {
	auction, err := call(ctx, m.auctionID)
	if err != nil {
		log.Warn().Err(err).Str("auction_id", m.auctionID).Msgf("%s failed", op)
		return roomerr.Classify(op, err)
	}
	if auction != nil {
		m.Confirm(auction.Status)
	}
	return nil
}

func (m *Machine) Phase() models.AuctionPhase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

func (m *Machine) IsLive() bool {
	return m.Phase() == models.AuctionPhaseLive
}

// Transitions returns the applied transitions in order.
func (m *Machine) Transitions() []Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.transitions)
}
