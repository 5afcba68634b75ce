// Package room keeps one participant's view of a live auction room in step
// with the server.
package room

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/mcdev12/liveauction/go/internal/broadcast"
	"github.com/mcdev12/liveauction/go/internal/models"
	"github.com/mcdev12/liveauction/go/internal/room/closing"
	"github.com/mcdev12/liveauction/go/internal/room/ledger"
	"github.com/mcdev12/liveauction/go/internal/room/phase"
	"github.com/mcdev12/liveauction/go/internal/room/presence"
	"github.com/mcdev12/liveauction/go/internal/room/roomerr"
	"github.com/mcdev12/liveauction/go/internal/room/transport"
)

// Transport is the push channel a Session drives. *transport.Channel implements it.
type Transport interface {
	Join(ctx context.Context, roomID string) error
	Leave(roomID string)
	Send(action transport.Action)
	Subscribe(t transport.EventType, fn transport.Handler) transport.SubscriptionID
	Unsubscribe(id transport.SubscriptionID)
	State() transport.ConnectionState
}

// AuctionAPI fetches auction snapshots and requests phase changes.
type AuctionAPI interface {
	GetAuction(ctx context.Context, auctionID string) (*models.Auction, error)
	phase.API
}

type BidAPI interface {
	BidHistory(ctx context.Context, auctionID string, pageSize, max int) ([]models.Bid, error)
	SubmitBid(ctx context.Context, auctionID string, amount int64) (*models.Bid, error)
	SubmitFloorBid(ctx context.Context, req models.FloorBidRequest) (*models.Bid, error)
}

type ChatAPI interface {
	ChatHistory(ctx context.Context, auctionID string) ([]models.ChatMessage, error)
	PostMessage(ctx context.Context, post models.ChatPost) (*models.ChatMessage, error)
	closing.Announcer
}

// Recorder receives confirmed room events. Implementations must not block.
type Recorder interface {
	RecordBid(auctionID string, bid models.Bid)
	RecordPhase(auctionID string, t phase.Transition)
}

// Config wires a Session to its collaborators.
type Config struct {
	Transport Transport
	Auctions  AuctionAPI
	Bids      BidAPI
	Chat      ChatAPI
	Recorder  Recorder // optional
	Clock     clockwork.Clock

	// BidderLabel is the display name attached to local bids.
	BidderLabel string
	// BidsOverREST submits online bids through the Bid API instead of the channel.
	BidsOverREST    bool
	HistoryLimit    int
	PageSize        int
	ChatLimit       int
	ConfirmTimeout  time.Duration
	SyncTimeout     time.Duration
	VelocityWindow  time.Duration
	ClosingMessages []string
}

func DefaultConfig() Config {
	return Config{
		HistoryLimit:   50,
		PageSize:       50,
		ChatLimit:      200,
		ConfirmTimeout: 10 * time.Second,
		SyncTimeout:    15 * time.Second,
		VelocityWindow: time.Minute,
	}
}

// bidResult resolves a PlaceBid waiting for its confirmation.
type bidResult struct {
	bid models.Bid
	err error
}

// joinedRoom holds every component of one join. Nothing in it outlives the join.
type joinedRoom struct {
	auctionID string
	epoch     uint64

	ledger   *ledger.Ledger
	phase    *phase.Machine
	closing  *closing.Controller
	presence *presence.Tracker
	velocity *velocity

	// guarded by Session.mu
	auction *models.Auction
	chat    []models.ChatMessage
	synced  bool
	waiters map[string]chan bidResult
}

// Session binds one auction room at a time to a transport channel and the
// REST collaborators.
type Session struct {
	cfg     Config
	clock   clockwork.Clock
	updates *broadcast.Channel[State]

	mu    sync.Mutex
	room  *joinedRoom
	epoch uint64
	subs  []transport.SubscriptionID

	wg sync.WaitGroup
}

func NewSession(cfg Config) *Session {
	defaults := DefaultConfig()
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaults.HistoryLimit
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	if cfg.ChatLimit <= 0 {
		cfg.ChatLimit = defaults.ChatLimit
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaults.ConfirmTimeout
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = defaults.SyncTimeout
	}
	if cfg.VelocityWindow <= 0 {
		cfg.VelocityWindow = defaults.VelocityWindow
	}
	return &Session{
		cfg:     cfg,
		clock:   cfg.Clock,
		updates: broadcast.NewChannel[State](),
	}
}

var routedEvents = []transport.EventType{
	transport.EventTypeBidAccepted,
	transport.EventTypeRosterSnapshot,
	transport.EventTypeChatPosted,
	transport.EventTypePhaseChanged,
	transport.EventTypeActionRejected,
	transport.EventTypeConnectionChanged,
}

// Join makes auctionID the session's room. Joining the current room again is
// a no-op; joining another room leaves the current one first.
//
// The channel is opened before history is fetched so that no live event is
// missed; fetched history is merged by bid ID. A failure to open the channel
// is not returned since the channel keeps retrying on its own. A failed fetch
// is returned and the session stays joined.
func (s *Session) Join(ctx context.Context, auctionID string) error {
	s.mu.Lock()
	if s.room != nil && s.room.auctionID == auctionID {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.Leave()

	s.mu.Lock()
	s.epoch++
	r := s.newRoom(auctionID, s.epoch)
	s.room = r
	epoch := r.epoch
	s.subs = lo.Map(routedEvents, func(t transport.EventType, _ int) transport.SubscriptionID {
		return s.cfg.Transport.Subscribe(t, func(ev transport.Event) { s.route(epoch, ev) })
	})
	s.mu.Unlock()

	log.Info().Str("auction_id", auctionID).Msg("joining auction room")

	if err := s.cfg.Transport.Join(ctx, auctionID); err != nil {
		if roomerr.IsStale(err) {
			log.Debug().Str("auction_id", auctionID).Msg("join superseded")
			return nil
		}
		log.Warn().Err(err).Str("auction_id", auctionID).Msg("room channel not open yet, retrying in background")
	}
	s.publish()

	if err := s.sync(ctx, r, false); err != nil {
		if roomerr.IsStale(err) {
			log.Debug().Str("auction_id", auctionID).Msg("discarding stale room snapshot")
			return nil
		}
		return err
	}
	return nil
}

// Leave tears down the current room. Pending PlaceBid calls fail with
// roomerr.ErrStaleRoom and all component state is discarded.
func (s *Session) Leave() {
	s.mu.Lock()
	r := s.room
	if r == nil {
		s.mu.Unlock()
		return
	}
	subs := s.subs
	s.subs = nil
	s.room = nil
	s.epoch++
	waiters := r.waiters
	r.waiters = nil
	s.mu.Unlock()

	for _, id := range subs {
		s.cfg.Transport.Unsubscribe(id)
	}
	s.cfg.Transport.Leave(r.auctionID)

	for _, w := range waiters {
		w <- bidResult{err: roomerr.Wrap("place bid", roomerr.ErrStaleRoom)}
	}

	log.Info().Str("auction_id", r.auctionID).Msg("left auction room")
	s.publish()
}

// Close leaves the room, waits for background resyncs and closes all
// subscriptions.
func (s *Session) Close() {
	s.Leave()
	s.wg.Wait()
	s.updates.UnsubscribeAll()
}

// State returns a snapshot of the joined room.
func (s *Session) State() State {
	s.mu.Lock()
	r := s.room
	if r == nil {
		s.mu.Unlock()
		return State{Connection: s.cfg.Transport.State()}
	}
	st := State{
		AuctionID: r.auctionID,
		Chat:      append([]models.ChatMessage(nil), r.chat...),
		Synced:    r.synced,
	}
	increment := models.DefaultBidIncrement
	if r.auction != nil {
		st.Title = r.auction.Title
		increment = r.auction.Increment()
	}
	s.mu.Unlock()

	st.Phase = r.phase.Phase()
	st.CurrentPrice = r.ledger.CurrentPrice()
	st.NextMinimumBid = st.CurrentPrice + increment
	st.Bids = r.ledger.Bids()
	st.Pending = r.ledger.Pending()
	st.Participants = r.presence.Participants()
	st.ParticipantCount = r.presence.Count()
	st.PresenceStale = r.presence.Stale()
	st.ClosingStage = r.closing.Stage()
	st.BidsPerMinute = r.velocity.rate()
	st.Connection = s.cfg.Transport.State()
	return st
}

// Subscribe returns a channel of state snapshots. A slow reader only sees
// the latest snapshot. cancel closes the channel.
func (s *Session) Subscribe() (<-chan State, func()) {
	ch := s.updates.Subscribe()
	return ch, func() { s.updates.Unsubscribe(ch) }
}

func (s *Session) newRoom(auctionID string, epoch uint64) *joinedRoom {
	r := &joinedRoom{
		auctionID: auctionID,
		epoch:     epoch,
		ledger:    ledger.New(s.clock),
		phase:     phase.New(auctionID, s.cfg.Auctions, s.clock),
		presence:  presence.New(),
		velocity:  newVelocity(s.clock, s.cfg.VelocityWindow),
		waiters:   make(map[string]chan bidResult),
	}
	r.closing = closing.New(auctionID, s.cfg.Chat, r.phase, s.cfg.ClosingMessages)

	r.ledger.OnAccept(func(a ledger.Acceptance) {
		r.closing.Reset()
		r.velocity.observe()
		if s.cfg.Recorder != nil {
			s.cfg.Recorder.RecordBid(auctionID, a.Bid)
		}
		if a.Superseded == nil {
			return
		}
		if a.Confirms() {
			s.resolve(r, a.Superseded.ClientRef, bidResult{bid: a.Bid})
		} else {
			log.Info().
				Str("auction_id", auctionID).
				Int64("amount", a.Superseded.Amount).
				Int64("outbid_by", a.Bid.Amount).
				Msg("pending bid outbid")
			s.resolve(r, a.Superseded.ClientRef, bidResult{err: roomerr.Wrap("place bid", roomerr.ErrOutbid)})
		}
	})
	r.phase.OnTransition(func(t phase.Transition) {
		if s.cfg.Recorder != nil {
			s.cfg.Recorder.RecordPhase(auctionID, t)
		}
	})
	return r
}

// current returns the joined room or ErrNotJoined.
func (s *Session) current(op string) (*joinedRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil {
		return nil, roomerr.Wrap(op, roomerr.ErrNotJoined)
	}
	return s.room, nil
}

func (s *Session) isCurrent(r *joinedRoom) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room == r
}

func (s *Session) publish() {
	s.updates.Broadcast(s.State())
}

func (s *Session) resolve(r *joinedRoom, clientRef string, res bidResult) {
	s.mu.Lock()
	w, ok := r.waiters[clientRef]
	if ok {
		delete(r.waiters, clientRef)
	}
	s.mu.Unlock()
	if ok {
		w <- res
	}
}
