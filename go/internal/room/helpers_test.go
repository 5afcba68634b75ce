package room

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"

	"github.com/mcdev12/liveauction/go/clients"
	"github.com/mcdev12/liveauction/go/internal/models"
	"github.com/mcdev12/liveauction/go/internal/room/phase"
	"github.com/mcdev12/liveauction/go/internal/room/transport"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	goleak.VerifyTestMain(m)
}

// fakeTransport delivers events synchronously on the caller's goroutine.
type fakeTransport struct {
	mu       sync.Mutex
	handlers map[transport.SubscriptionID]subscription
	nextID   transport.SubscriptionID
	sent     []transport.Action
	joined   []string
	left     []string
	state    transport.ConnectionState
	onSend   func(transport.Action)
}

type subscription struct {
	t  transport.EventType
	fn transport.Handler
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[transport.SubscriptionID]subscription)}
}

func (f *fakeTransport) Join(ctx context.Context, roomID string) error {
	f.mu.Lock()
	f.joined = append(f.joined, roomID)
	f.state = transport.StateOpen
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Leave(roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, roomID)
	f.state = transport.StateIdle
}

func (f *fakeTransport) Send(a transport.Action) {
	f.mu.Lock()
	f.sent = append(f.sent, a)
	hook := f.onSend
	f.mu.Unlock()
	if hook != nil {
		hook(a)
	}
}

func (f *fakeTransport) Subscribe(t transport.EventType, fn transport.Handler) transport.SubscriptionID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.handlers[f.nextID] = subscription{t: t, fn: fn}
	return f.nextID
}

func (f *fakeTransport) Unsubscribe(id transport.SubscriptionID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, id)
}

func (f *fakeTransport) State() transport.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) emit(ev transport.Event) {
	f.mu.Lock()
	if cc, ok := ev.(transport.ConnectionChanged); ok {
		f.state = cc.State
	}
	var fns []transport.Handler
	for id := transport.SubscriptionID(1); id <= f.nextID; id++ {
		if s, ok := f.handlers[id]; ok && s.t == ev.Type() {
			fns = append(fns, s.fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (f *fakeTransport) sentActions() []transport.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Action(nil), f.sent...)
}

func (f *fakeTransport) subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

// fakeBackend implements the auction, bid and chat APIs in memory.
type fakeBackend struct {
	mu           sync.Mutex
	auctions     map[string]*models.Auction
	bids         map[string][]models.Bid // newest first
	chat         map[string][]models.ChatMessage
	announced    []string
	startErr     error
	floorNextID  int64
	historyCalls int

	// historyGate, when set, holds BidHistory until it is closed.
	historyGate    chan struct{}
	historyEntered chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		auctions:    make(map[string]*models.Auction),
		bids:        make(map[string][]models.Bid),
		chat:        make(map[string][]models.ChatMessage),
		floorNextID: 100,
	}
}

func (f *fakeBackend) addAuction(a models.Auction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auctions[a.ID] = &a
}

// addBid records a bid the server accepted, as history would return it.
func (f *fakeBackend) addBid(b models.Bid) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bids[b.AuctionID] = append([]models.Bid{b}, f.bids[b.AuctionID]...)
}

func (f *fakeBackend) GetAuction(ctx context.Context, id string) (*models.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok {
		return nil, &clients.APIError{StatusCode: 404, Detail: "Auction not found"}
	}
	cp := *a
	return &cp, nil
}

func (f *fakeBackend) StartAuction(ctx context.Context, id string) (*models.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	a := f.auctions[id]
	if a.Status != models.AuctionPhaseScheduled {
		return nil, &clients.APIError{StatusCode: 400, Detail: "Auction is already " + string(a.Status)}
	}
	a.Status = models.AuctionPhaseLive
	cp := *a
	return &cp, nil
}

func (f *fakeBackend) EndAuction(ctx context.Context, id string) (*models.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.auctions[id]
	if a.Status != models.AuctionPhaseLive {
		return nil, &clients.APIError{StatusCode: 400, Detail: "Can only end live auctions"}
	}
	a.Status = models.AuctionPhaseCompleted
	cp := *a
	return &cp, nil
}

func (f *fakeBackend) BidHistory(ctx context.Context, id string, pageSize, max int) ([]models.Bid, error) {
	f.mu.Lock()
	gate, entered := f.historyGate, f.historyEntered
	f.historyEntered = nil
	f.mu.Unlock()
	if gate != nil {
		if entered != nil {
			close(entered)
		}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	bids := f.bids[id]
	if max > 0 && len(bids) > max {
		bids = bids[:max]
	}
	return append([]models.Bid(nil), bids...), nil
}

func (f *fakeBackend) SubmitBid(ctx context.Context, id string, amount int64) (*models.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a := f.auctions[id]; a.CurrentPrice >= amount {
		return nil, &clients.APIError{StatusCode: 400, Detail: "Bid must be higher than current price"}
	}
	f.floorNextID++
	b := models.Bid{ID: f.floorNextID, AuctionID: id, BidderName: "me", Class: models.BidderClassOnline, Amount: amount}
	f.bids[id] = append([]models.Bid{b}, f.bids[id]...)
	f.auctions[id].CurrentPrice = amount
	return &b, nil
}

func (f *fakeBackend) SubmitFloorBid(ctx context.Context, req models.FloorBidRequest) (*models.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.floorNextID++
	b := models.Bid{ID: f.floorNextID, AuctionID: req.AuctionID, BidderName: req.BidderName, Class: models.BidderClassFloor, Amount: req.Amount}
	f.bids[req.AuctionID] = append([]models.Bid{b}, f.bids[req.AuctionID]...)
	return &b, nil
}

func (f *fakeBackend) ChatHistory(ctx context.Context, id string) ([]models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ChatMessage(nil), f.chat[id]...), nil
}

func (f *fakeBackend) PostMessage(ctx context.Context, post models.ChatPost) (*models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := models.ChatMessage{
		ID:             "m" + string(rune('a'+len(f.chat[post.AuctionID]))),
		AuctionID:      post.AuctionID,
		Message:        post.Message,
		IsAdminMessage: post.IsAdminMessage,
	}
	f.chat[post.AuctionID] = append(f.chat[post.AuctionID], msg)
	return &msg, nil
}

func (f *fakeBackend) Announce(ctx context.Context, id, message string) error {
	f.mu.Lock()
	f.announced = append(f.announced, message)
	f.mu.Unlock()
	_, err := f.PostMessage(ctx, models.ChatPost{AuctionID: id, Message: message, IsAdminMessage: true})
	return err
}

func (f *fakeBackend) announcements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.announced...)
}

func (f *fakeBackend) historyFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.historyCalls
}

// holdHistory makes the next BidHistory calls block until the returned
// release func runs. entered is closed once a call is waiting.
func (f *fakeBackend) holdHistory() (entered <-chan struct{}, release func()) {
	gate := make(chan struct{})
	in := make(chan struct{})
	f.mu.Lock()
	f.historyGate, f.historyEntered = gate, in
	f.mu.Unlock()
	return in, func() {
		f.mu.Lock()
		f.historyGate = nil
		f.mu.Unlock()
		close(gate)
	}
}

// fakeRecorder collects recorded events.
type fakeRecorder struct {
	mu          sync.Mutex
	bids        []models.Bid
	transitions []phase.Transition
}

func (r *fakeRecorder) RecordBid(auctionID string, bid models.Bid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bids = append(r.bids, bid)
}

func (r *fakeRecorder) RecordPhase(auctionID string, t phase.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
}

func (r *fakeRecorder) recordedBids() []models.Bid {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Bid(nil), r.bids...)
}

func (r *fakeRecorder) phases() []phase.Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]phase.Transition(nil), r.transitions...)
}
