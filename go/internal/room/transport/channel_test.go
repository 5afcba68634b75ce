package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/liveauction/go/internal/room/roomerr"
)

const bidFrame = `{"type":"bid_update","data":{"id":%d,"auctionId":"a1","newPrice":%d,"bidderName":"Ann","type":"online","timestamp":"2025-03-01T10:00:00Z"}}`

func frame(format string, args ...any) []byte {
	return []byte(fmt.Sprintf(format, args...))
}

func newTestChannel(t *testing.T, d Dialer, cfg Config) (*Channel, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	ch := NewChannel(d, clock, cfg)
	t.Cleanup(ch.Close)
	return ch, clock
}

func TestChannelDispatchesInRegistrationOrder(t *testing.T) {
	d := &memDialer{}
	ch, _ := newTestChannel(t, d, DefaultConfig())

	var order []string
	done := make(chan struct{})
	ch.Subscribe(EventTypeBidAccepted, func(Event) { order = append(order, "first") })
	ch.Subscribe(EventTypeBidAccepted, func(Event) {
		order = append(order, "second")
		close(done)
	})

	require.NoError(t, ch.Join(context.Background(), "a1"))
	d.last().in <- frame(bidFrame, 1, 1500)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event not dispatched")
	}
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestChannelUnsubscribe(t *testing.T) {
	d := &memDialer{}
	ch, _ := newTestChannel(t, d, DefaultConfig())

	removed := &recorder{}
	kept := &recorder{}
	id := ch.Subscribe(EventTypeBidAccepted, removed.handle)
	ch.Subscribe(EventTypeBidAccepted, kept.handle)
	ch.Unsubscribe(id)

	require.NoError(t, ch.Join(context.Background(), "a1"))
	d.last().in <- frame(bidFrame, 1, 1500)

	require.Eventually(t, func() bool { return kept.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, removed.len())
}

func TestChannelJoinSameRoomIsIdempotent(t *testing.T) {
	d := &memDialer{}
	ch, _ := newTestChannel(t, d, DefaultConfig())

	require.NoError(t, ch.Join(context.Background(), "a1"))
	require.NoError(t, ch.Join(context.Background(), "a1"))

	assert.Equal(t, 1, d.dials())
	assert.Equal(t, StateOpen, ch.State())
}

func TestChannelJoinDifferentRoomClosesPrevious(t *testing.T) {
	d := &memDialer{}
	ch, _ := newTestChannel(t, d, DefaultConfig())

	require.NoError(t, ch.Join(context.Background(), "a1"))
	first := d.last()
	require.NoError(t, ch.Join(context.Background(), "a2"))

	assert.True(t, first.isClosed())
	assert.Equal(t, "a2", ch.RoomID())
	assert.Equal(t, 2, d.dials())
}

func TestChannelSendWithoutConnection(t *testing.T) {
	d := &memDialer{}
	ch, _ := newTestChannel(t, d, DefaultConfig())

	assert.NotPanics(t, func() {
		ch.Send(Action{Event: ActionPlaceBid, Amount: 100})
	})
	assert.Zero(t, d.dials())
}

func TestChannelSendEncodesAction(t *testing.T) {
	d := &memDialer{}
	ch, _ := newTestChannel(t, d, DefaultConfig())
	require.NoError(t, ch.Join(context.Background(), "a1"))

	ch.Send(Action{Event: ActionPlaceBid, Amount: 2000, ClientRef: "ref-1"})

	sent := d.last().sent()
	require.Len(t, sent, 1)
	var got map[string]any
	require.NoError(t, json.Unmarshal(sent[0], &got))
	assert.Equal(t, "place_bid", got["event"])
	assert.Equal(t, "a1", got["auctionId"])
	assert.EqualValues(t, 2000, got["amount"])
	assert.Equal(t, "ref-1", got["clientRef"])
	assert.Len(t, got, 4, "only place_bid fields are on the wire")
}

func TestChannelReconnectsAfterDelay(t *testing.T) {
	d := &memDialer{}
	ch, clock := newTestChannel(t, d, DefaultConfig())

	states := &recorder{}
	ch.Subscribe(EventTypeConnectionChanged, states.handle)

	require.NoError(t, ch.Join(context.Background(), "a1"))
	d.last().drop()

	require.Eventually(t, func() bool { return ch.State() == StateReconnecting }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, d.dials(), "reconnect must wait for the full delay")

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return ch.State() == StateOpen }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, d.dials())

	var reconnected bool
	for _, ev := range states.all() {
		if cc := ev.(ConnectionChanged); cc.State == StateOpen && cc.Reconnected {
			reconnected = true
		}
	}
	assert.True(t, reconnected)
}

func TestChannelLeaveCancelsReconnect(t *testing.T) {
	d := &memDialer{}
	ch, clock := newTestChannel(t, d, DefaultConfig())

	require.NoError(t, ch.Join(context.Background(), "a1"))
	d.last().drop()
	require.Eventually(t, func() bool { return ch.State() == StateReconnecting }, time.Second, 5*time.Millisecond)

	ch.Leave("a1")
	clock.Advance(10 * time.Second)

	assert.Equal(t, StateIdle, ch.State())
	assert.Equal(t, 1, d.dials())
}

func TestChannelLeaveOtherRoomIsNoop(t *testing.T) {
	d := &memDialer{}
	ch, _ := newTestChannel(t, d, DefaultConfig())

	require.NoError(t, ch.Join(context.Background(), "a1"))
	ch.Leave("a2")

	assert.Equal(t, StateOpen, ch.State())
	assert.False(t, d.last().isClosed())
}

func TestChannelGivesUpAfterMaxReconnects(t *testing.T) {
	d := &memDialer{}
	cfg := DefaultConfig()
	cfg.MaxReconnects = 2
	ch, clock := newTestChannel(t, d, cfg)

	require.NoError(t, ch.Join(context.Background(), "a1"))
	d.setFail(true)
	d.last().drop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 2; i++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(cfg.ReconnectDelay)
		want := i + 2
		require.Eventually(t, func() bool { return d.dials() == want }, time.Second, 5*time.Millisecond)
	}

	require.Eventually(t, func() bool { return ch.State() == StateFailed }, time.Second, 5*time.Millisecond)

	// A fresh join of the same room is allowed after failure.
	d.setFail(false)
	require.NoError(t, ch.Join(context.Background(), "a1"))
	assert.Equal(t, StateOpen, ch.State())
}

func TestChannelJoinDialFailureSchedulesReconnect(t *testing.T) {
	d := &memDialer{fail: true}
	ch, _ := newTestChannel(t, d, DefaultConfig())

	err := ch.Join(context.Background(), "a1")
	require.Error(t, err)
	assert.Equal(t, roomerr.KindConnection, roomerr.KindOf(err))
	assert.Equal(t, StateReconnecting, ch.State())
	assert.Equal(t, "a1", ch.RoomID())
}

func TestChannelIgnoresMalformedAndUnknownFrames(t *testing.T) {
	d := &memDialer{}
	ch, _ := newTestChannel(t, d, DefaultConfig())

	bids := &recorder{}
	ch.Subscribe(EventTypeBidAccepted, bids.handle)
	require.NoError(t, ch.Join(context.Background(), "a1"))

	conn := d.last()
	conn.in <- []byte(`not json`)
	conn.in <- []byte(`{"type":"something_new","data":{}}`)
	conn.in <- frame(bidFrame, 7, 900)

	require.Eventually(t, func() bool { return bids.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(7), bids.all()[0].(BidAccepted).Bid.ID)
	assert.Equal(t, StateOpen, ch.State())
}
