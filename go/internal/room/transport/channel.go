// Package transport maintains the push connection to an auction room.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveauction/go/internal/room/roomerr"
)

// ErrConnClosed is returned by Conn.ReadMessage once the connection is closed locally.
var ErrConnClosed = errors.New("transport: connection closed")

// Conn is one open room connection.
type Conn interface {
	// ReadMessage blocks until the next inbound frame or an error.
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens a connection to a room.
type Dialer interface {
	Dial(ctx context.Context, roomID string) (Conn, error)
}

// Handler receives events for the type it subscribed to.
type Handler func(Event)

type SubscriptionID uint64

// Config holds reconnection settings for a Channel.
type Config struct {
	ReconnectDelay time.Duration
	// MaxReconnects caps consecutive failed reconnect attempts. Zero means unlimited.
	MaxReconnects int
	DialTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReconnectDelay: 3 * time.Second,
		MaxReconnects:  0,
		DialTimeout:    10 * time.Second,
	}
}

type subscription struct {
	id SubscriptionID
	fn Handler
}

// Channel is a reconnecting connection to at most one room at a time.
//
// Events read from a connection are dispatched on that connection's reader
// goroutine in receipt order. ConnectionChanged events are dispatched on the
// goroutine that caused the transition, so handlers must be safe for
// concurrent use.
type Channel struct {
	dialer Dialer
	clock  clockwork.Clock
	config Config

	mu             sync.Mutex
	roomID         string
	conn           Conn
	connID         string
	gen            uint64
	reconnectTimer clockwork.Timer
	attempts       int
	opens          int
	state          ConnectionState

	handlersMu sync.RWMutex
	handlers   map[EventType][]subscription
	nextSubID  SubscriptionID

	wg sync.WaitGroup
}

func NewChannel(dialer Dialer, clock clockwork.Clock, config Config) *Channel {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = DefaultConfig().ReconnectDelay
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = DefaultConfig().DialTimeout
	}
	return &Channel{
		dialer:   dialer,
		clock:    clock,
		config:   config,
		handlers: make(map[EventType][]subscription),
	}
}

// Join connects to roomID. Joining the room that is already joined is a
// no-op unless the channel has failed. Joining a different room closes the
// current one first without replaying anything.
//
// If the dial fails the error is returned and a reconnect is scheduled; the
// channel stays joined.
func (c *Channel) Join(ctx context.Context, roomID string) error {
	c.mu.Lock()
	if c.roomID == roomID && c.state != StateIdle && c.state != StateFailed {
		c.mu.Unlock()
		return nil
	}
	var events []Event
	if c.roomID != "" && c.roomID != roomID {
		events = append(events, c.teardownLocked())
	}
	c.roomID = roomID
	c.gen++
	gen := c.gen
	c.attempts = 0
	c.opens = 0
	events = append(events, c.setStateLocked(StateConnecting))
	c.mu.Unlock()

	c.emit(events...)
	return c.connect(ctx, gen, roomID)
}

// Leave closes the connection to roomID and cancels any pending reconnect.
// It is a no-op if roomID is not the joined room.
func (c *Channel) Leave(roomID string) {
	c.mu.Lock()
	if c.roomID == "" || c.roomID != roomID {
		c.mu.Unlock()
		return
	}
	ev := c.teardownLocked()
	c.mu.Unlock()

	log.Info().Str("room_id", roomID).Msg("left room")
	c.emit(ev)
}

// Close leaves the current room and waits for background goroutines to exit.
// It must not be called from a Handler.
func (c *Channel) Close() {
	c.mu.Lock()
	roomID := c.roomID
	c.mu.Unlock()
	if roomID != "" {
		c.Leave(roomID)
	}
	c.wg.Wait()
}

// Send writes action to the open connection. Without one the action is
// dropped with a warning; nothing is queued.
func (c *Channel) Send(action Action) {
	c.mu.Lock()
	conn := c.conn
	roomID := c.roomID
	connID := c.connID
	c.mu.Unlock()

	if conn == nil {
		log.Warn().
			Str("room_id", roomID).
			Str("event", string(action.Event)).
			Msg("no open connection, dropping action")
		return
	}
	if action.AuctionID == "" {
		action.AuctionID = roomID
	}

	data, err := json.Marshal(action)
	if err != nil {
		log.Error().Err(err).Str("event", string(action.Event)).Msg("failed to encode action")
		return
	}
	if err := conn.WriteMessage(data); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", connID).
			Str("event", string(action.Event)).
			Msg("failed to send action")
	}
}

// Subscribe registers fn for events of type t. Handlers for one type run in
// registration order.
func (c *Channel) Subscribe(t EventType, fn Handler) SubscriptionID {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.nextSubID++
	id := c.nextSubID
	c.handlers[t] = append(c.handlers[t], subscription{id: id, fn: fn})
	return id
}

func (c *Channel) Unsubscribe(id SubscriptionID) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	for t, subs := range c.handlers {
		c.handlers[t] = slices.DeleteFunc(subs, func(s subscription) bool { return s.id == id })
		if len(c.handlers[t]) == 0 {
			delete(c.handlers, t)
		}
	}
}

func (c *Channel) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RoomID returns the joined room, or "" when idle.
func (c *Channel) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *Channel) connect(ctx context.Context, gen uint64, roomID string) error {
	conn, err := c.dialer.Dial(ctx, roomID)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return roomerr.Wrap("join", roomerr.ErrStaleRoom)
	}
	if err != nil {
		ev := c.scheduleReconnectLocked(gen)
		c.mu.Unlock()
		log.Warn().Err(err).Str("room_id", roomID).Msg("failed to connect to room")
		c.emit(ev)
		return roomerr.Connection("join", err)
	}

	c.conn = conn
	c.connID = uuid.New().String()
	c.attempts = 0
	reconnected := c.opens > 0
	c.opens++
	connID := c.connID
	ev := c.setStateLocked(StateOpen)
	if cc, ok := ev.(ConnectionChanged); ok {
		cc.Reconnected = reconnected
		ev = cc
	}
	c.wg.Add(1)
	c.mu.Unlock()

	log.Info().
		Str("connection_id", connID).
		Str("room_id", roomID).
		Bool("reconnected", reconnected).
		Msg("room connection established")

	c.emit(ev)
	go c.readPump(conn, gen, connID)
	return nil
}

func (c *Channel) readPump(conn Conn, gen uint64, connID string) {
	defer c.wg.Done()

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, gen, connID, err)
			return
		}

		ev, err := Decode(raw)
		if err != nil {
			log.Warn().Err(err).Str("connection_id", connID).Msg("dropping malformed event")
			continue
		}
		if ev == nil {
			log.Debug().Str("connection_id", connID).RawJSON("message", raw).Msg("ignoring unknown event")
			continue
		}

		if !c.isCurrent(conn, gen) {
			return
		}
		c.dispatch(ev)
	}
}

func (c *Channel) handleDisconnect(conn Conn, gen uint64, connID string, err error) {
	c.mu.Lock()
	if c.gen != gen || c.conn != conn {
		// Closed by Leave or a newer Join.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connID = ""
	roomID := c.roomID
	ev := c.scheduleReconnectLocked(gen)
	c.mu.Unlock()

	conn.Close()
	log.Warn().
		Err(err).
		Str("connection_id", connID).
		Str("room_id", roomID).
		Msg("room connection lost")
	c.emit(ev)
}

// scheduleReconnectLocked arms exactly one reconnect timer for gen, or moves
// the channel to StateFailed once the attempt cap is reached.
func (c *Channel) scheduleReconnectLocked(gen uint64) Event {
	if c.config.MaxReconnects > 0 && c.attempts >= c.config.MaxReconnects {
		log.Error().
			Str("room_id", c.roomID).
			Int("attempts", c.attempts).
			Msg("giving up reconnecting")
		return c.setStateLocked(StateFailed)
	}
	if c.reconnectTimer != nil && c.reconnectTimer.Stop() {
		c.wg.Done()
	}
	c.attempts++
	c.wg.Add(1)
	c.reconnectTimer = c.clock.AfterFunc(c.config.ReconnectDelay, func() {
		defer c.wg.Done()
		c.reconnect(gen)
	})
	return c.setStateLocked(StateReconnecting)
}

func (c *Channel) reconnect(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.roomID == "" {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	roomID := c.roomID
	attempt := c.attempts
	ev := c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	log.Info().Str("room_id", roomID).Int("attempt", attempt).Msg("reconnecting to room")
	c.emit(ev)

	ctx, cancel := context.WithTimeout(context.Background(), c.config.DialTimeout)
	defer cancel()
	_ = c.connect(ctx, gen, roomID)
}

// teardownLocked closes the connection, cancels the reconnect timer and
// invalidates everything started for the current join.
func (c *Channel) teardownLocked() Event {
	roomID := c.roomID
	c.gen++
	if c.reconnectTimer != nil {
		if c.reconnectTimer.Stop() {
			c.wg.Done()
		}
		c.reconnectTimer = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			log.Debug().Err(err).Str("connection_id", c.connID).Msg("error closing connection")
		}
		c.conn = nil
		c.connID = ""
	}
	c.roomID = ""
	c.attempts = 0
	c.opens = 0
	ev := c.setStateLocked(StateIdle)
	if cc, ok := ev.(ConnectionChanged); ok {
		cc.RoomID = roomID
		return cc
	}
	return ev
}

func (c *Channel) setStateLocked(s ConnectionState) Event {
	if c.state == s {
		return nil
	}
	c.state = s
	return ConnectionChanged{State: s, RoomID: c.roomID}
}

func (c *Channel) isCurrent(conn Conn, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen && c.conn == conn
}

func (c *Channel) emit(events ...Event) {
	for _, ev := range events {
		if ev != nil {
			c.dispatch(ev)
		}
	}
}

func (c *Channel) dispatch(ev Event) {
	c.handlersMu.RLock()
	subs := slices.Clone(c.handlers[ev.Type()])
	c.handlersMu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}
