// Package presence tracks who is connected to an auction room.
package presence

import (
	"slices"
	"sync"

	"github.com/mcdev12/liveauction/go/internal/models"
)

// Tracker holds the latest roster snapshot. Snapshots replace the set
// wholesale; nothing is merged.
type Tracker struct {
	mu           sync.RWMutex
	participants []models.Participant
	count        int
	stale        bool
}

func New() *Tracker {
	return &Tracker{}
}

// ApplyRosterSnapshot replaces the roster. count is the server's head count,
// which may exceed len(participants) when the server only reports a number.
func (t *Tracker) ApplyRosterSnapshot(participants []models.Participant, count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.participants = slices.Clone(participants)
	t.count = max(count, len(participants))
	t.stale = false
}

// MarkStale flags the roster as possibly outdated until the next snapshot.
func (t *Tracker) MarkStale() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stale = true
}

func (t *Tracker) Stale() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stale
}

func (t *Tracker) Participants() []models.Participant {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.participants)
}

func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}
