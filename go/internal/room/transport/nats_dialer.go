package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the NATS room transport
type NATSConfig struct {
	URL           string
	SubjectPrefix string // events on {prefix}.{room}.events, actions on {prefix}.{room}.actions
	MaxReconnects int
	ReconnectWait time.Duration
	BufferSize    int
}

// DefaultNATSConfig returns default NATS transport configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "auction",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		BufferSize:    256,
	}
}

// ErrNATSDisconnected is returned by a room connection's ReadMessage when the
// shared NATS connection drops.
var ErrNATSDisconnected = errors.New("transport: NATS connection lost")

// natsClient is the part of *nats.Conn the dialer uses.
type natsClient interface {
	ChanSubscribe(subj string, ch chan *nats.Msg) (*nats.Subscription, error)
	Publish(subj string, data []byte) error
	IsClosed() bool
	IsConnected() bool
	Drain() error
}

// NATSDialer serves rooms from a shared NATS connection. When that connection
// drops, every open room connection fails so the Channel reconnects and the
// room resynchronizes; dials fail until the NATS client is connected again.
type NATSDialer struct {
	nc     natsClient
	config NATSConfig
	closed chan struct{}
	once   sync.Once

	mu    sync.Mutex
	conns map[*natsConn]struct{}
}

func NewNATSDialer(config NATSConfig) (*NATSDialer, error) {
	d := newNATSDialer(config, nil)

	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
			d.failOpen(err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			d.markClosed()
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	d.nc = nc
	return d, nil
}

func newNATSDialer(config NATSConfig, nc natsClient) *NATSDialer {
	return &NATSDialer{
		nc:     nc,
		config: config,
		closed: make(chan struct{}),
		conns:  make(map[*natsConn]struct{}),
	}
}

func (d *NATSDialer) EventsSubject(roomID string) string {
	return d.config.SubjectPrefix + "." + roomID + ".events"
}

func (d *NATSDialer) ActionsSubject(roomID string) string {
	return d.config.SubjectPrefix + "." + roomID + ".actions"
}

func (d *NATSDialer) Dial(ctx context.Context, roomID string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.nc.IsClosed() {
		return nil, fmt.Errorf("dial room %s: %w", roomID, nats.ErrConnectionClosed)
	}
	if !d.nc.IsConnected() {
		return nil, fmt.Errorf("dial room %s: %w", roomID, ErrNATSDisconnected)
	}

	size := d.config.BufferSize
	if size <= 0 {
		size = DefaultNATSConfig().BufferSize
	}
	msgs := make(chan *nats.Msg, size)
	sub, err := d.nc.ChanSubscribe(d.EventsSubject(roomID), msgs)
	if err != nil {
		return nil, fmt.Errorf("subscribe room %s: %w", roomID, err)
	}

	c := &natsConn{
		dialer:   d,
		sub:      sub,
		msgs:     msgs,
		actions:  d.ActionsSubject(roomID),
		done:     make(chan struct{}),
		lost:     make(chan struct{}),
		ncClosed: d.closed,
	}
	d.mu.Lock()
	d.conns[c] = struct{}{}
	d.mu.Unlock()
	return c, nil
}

// failOpen fails every open room connection with err.
func (d *NATSDialer) failOpen(err error) {
	d.mu.Lock()
	conns := d.conns
	d.conns = make(map[*natsConn]struct{})
	d.mu.Unlock()

	if len(conns) > 0 {
		log.Warn().Err(err).Int("rooms", len(conns)).Msg("failing room connections after NATS disconnect")
	}
	for c := range conns {
		c.fail(err)
	}
}

func (d *NATSDialer) forget(c *natsConn) {
	d.mu.Lock()
	delete(d.conns, c)
	d.mu.Unlock()
}

// Close drains the shared NATS connection.
func (d *NATSDialer) Close() error {
	if d.nc == nil {
		return nil
	}
	err := d.nc.Drain()
	d.markClosed()
	return err
}

func (d *NATSDialer) markClosed() {
	d.once.Do(func() { close(d.closed) })
}

type natsConn struct {
	dialer    *NATSDialer
	sub       *nats.Subscription
	msgs      chan *nats.Msg
	actions   string
	done      chan struct{}
	ncClosed  <-chan struct{}
	closeOnce sync.Once

	lost     chan struct{}
	lostErr  error
	lostOnce sync.Once
}

func (c *natsConn) ReadMessage() ([]byte, error) {
	select {
	case <-c.done:
		return nil, ErrConnClosed
	case <-c.lost:
		return nil, c.lostErr
	case <-c.ncClosed:
		return nil, nats.ErrConnectionClosed
	case msg := <-c.msgs:
		return msg.Data, nil
	}
}

func (c *natsConn) WriteMessage(data []byte) error {
	return c.dialer.nc.Publish(c.actions, data)
}

func (c *natsConn) fail(err error) {
	c.lostOnce.Do(func() {
		if err == nil {
			c.lostErr = ErrNATSDisconnected
		} else {
			c.lostErr = fmt.Errorf("%w: %v", ErrNATSDisconnected, err)
		}
		close(c.lost)
	})
}

func (c *natsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.dialer.forget(c)
		if c.sub != nil {
			err = c.sub.Unsubscribe()
		}
	})
	return err
}
