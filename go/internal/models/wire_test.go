package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireInt(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{`1500`, 1500, true},
		{`1500.0`, 1500, true},
		{`"1500"`, 1500, true},
		{`null`, 0, true},
		{`12.5`, 0, false},
		{`"abc"`, 0, false},
		{`9.3e18`, 0, false},
		{`-9.3e18`, 0, false},
		{`"9223372036854775808"`, 0, false},
		{`9223372036854775807`, 9223372036854775807, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var n WireInt
			err := json.Unmarshal([]byte(tt.in), &n)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, int64(n))
		})
	}
}

func TestWireTime(t *testing.T) {
	want := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, in := range []string{`"2025-03-01T10:00:00Z"`, `"2025-03-01T10:00:00"`, `"2025-03-01 10:00:00"`, `"2025-03-01T12:00:00+02:00"`} {
		var ts WireTime
		require.NoError(t, json.Unmarshal([]byte(in), &ts), in)
		assert.True(t, want.Equal(ts.Time()), in)
	}

	var ts WireTime
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

func TestBidUnmarshalKeepsOtherFields(t *testing.T) {
	var b Bid
	require.NoError(t, json.Unmarshal([]byte(`{"id":"4","auction_id":"a1","bidder_name":"Bo","bidder_number":"17","type":"floor","amount":2500.0,"timestamp":"2025-03-01T10:00:00"}`), &b))
	assert.Equal(t, Bid{
		ID:           4,
		AuctionID:    "a1",
		BidderName:   "Bo",
		BidderNumber: "17",
		Class:        BidderClassFloor,
		Amount:       2500,
		Timestamp:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}, b)
}
