// Package closing drives the auctioneer's going-once, going-twice,
// fair-warning sequence.
package closing

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveauction/go/internal/room/roomerr"
)

// MaxStage is the fair-warning stage. Advancing past it does nothing.
const MaxStage = 3

// DefaultMessages are announced on entering stages 1 to 3.
var DefaultMessages = []string{
	"Going Once…",
	"Going Twice…",
	"Fair Warning - Final Call!",
}

// Announcer broadcasts an admin message to the room.
type Announcer interface {
	Announce(ctx context.Context, auctionID, message string) error
}

// PhaseReader reports whether the auction is live.
type PhaseReader interface {
	IsLive() bool
}

type Controller struct {
	auctionID string
	announcer Announcer
	phase     PhaseReader
	messages  []string

	mu    sync.Mutex
	stage int
}

// New returns a Controller at stage 0. messages falls back to DefaultMessages
// unless it has exactly MaxStage entries.
func New(auctionID string, announcer Announcer, phase PhaseReader, messages []string) *Controller {
	if len(messages) != MaxStage {
		messages = DefaultMessages
	}
	return &Controller{
		auctionID: auctionID,
		announcer: announcer,
		phase:     phase,
		messages:  messages,
	}
}

// Advance moves to the next stage and announces it. At MaxStage it returns
// MaxStage without announcing. If the announcement fails the stage stays
// advanced and the error is returned.
func (c *Controller) Advance(ctx context.Context) (int, error) {
	c.mu.Lock()
	if !c.phase.IsLive() {
		stage := c.stage
		c.mu.Unlock()
		return stage, roomerr.Wrap("advance closing", roomerr.ErrNotLive)
	}
	if c.stage >= MaxStage {
		c.mu.Unlock()
		return MaxStage, nil
	}
	c.stage++
	stage := c.stage
	c.mu.Unlock()

	msg := c.messages[stage-1]
	log.Info().Str("auction_id", c.auctionID).Int("stage", stage).Msg(msg)

	if err := c.announcer.Announce(ctx, c.auctionID, msg); err != nil {
		log.Warn().Err(err).Str("auction_id", c.auctionID).Int("stage", stage).Msg("failed to announce closing stage")
		return stage, roomerr.Classify("announce closing stage", err)
	}
	return stage, nil
}

// Reset returns to stage 0. It is called for every newly accepted bid.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stage != 0 {
		log.Debug().Str("auction_id", c.auctionID).Int("from_stage", c.stage).Msg("closing sequence reset")
	}
	c.stage = 0
}

func (c *Controller) Stage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}
