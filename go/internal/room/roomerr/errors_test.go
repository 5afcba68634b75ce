package roomerr

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type apiErr struct{ detail string }

func (e apiErr) Error() string           { return "status 400: " + e.detail }
func (e apiErr) RejectionReason() string { return e.detail }

type malformed struct{}

func (malformed) Error() string           { return "unexpected end of JSON input" }
func (malformed) MalformedResponse() bool { return true }

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(ErrBidTooLow))
	assert.Equal(t, KindValidation, KindOf(Wrap("place bid", ErrBidTooLow)))
	assert.Equal(t, KindStaleRoom, KindOf(ErrStaleRoom))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.True(t, errors.Is(Wrap("place bid", ErrBidTooLow), ErrBidTooLow))
}

func TestClassify(t *testing.T) {
	t.Run("api rejection", func(t *testing.T) {
		err := Classify("start auction", fmt.Errorf("request: %w", apiErr{detail: "Auction is already live"}))
		assert.True(t, IsServerRejection(err))
		assert.Contains(t, err.Error(), "Auction is already live")
		assert.Contains(t, err.Error(), "start auction")
	})

	t.Run("network failure", func(t *testing.T) {
		err := Classify("get auction", errors.New("dial tcp: connection refused"))
		assert.Equal(t, KindConnection, KindOf(err))
	})

	t.Run("undecodable response", func(t *testing.T) {
		err := Classify("get auction", fmt.Errorf("request: %w", malformed{}))
		assert.Equal(t, KindProtocol, KindOf(err))
		assert.Equal(t, "protocol", KindProtocol.String())
	})

	t.Run("json decode error", func(t *testing.T) {
		var v struct{ N int }
		decodeErr := json.Unmarshal([]byte(`{"N":"x"}`), &v)
		assert.Equal(t, KindProtocol, KindOf(Classify("get auction", decodeErr)))
	})

	t.Run("already classified", func(t *testing.T) {
		assert.Same(t, ErrOutbid, Classify("place bid", ErrOutbid))
	})

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, Classify("noop", nil))
	})
}
