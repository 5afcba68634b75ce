// Package ledger keeps the confirmed bid history of one auction room and the
// single optimistic bid the local participant has in flight.
package ledger

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/liveauction/go/internal/models"
	"github.com/mcdev12/liveauction/go/internal/room/roomerr"
)

// PendingBid is a locally proposed bid awaiting server confirmation.
type PendingBid struct {
	ClientRef  string    `json:"client_ref"`
	Amount     int64     `json:"amount"`
	BidderName string    `json:"bidder_name"`
	ProposedAt time.Time `json:"proposed_at"`
}

// Acceptance describes a newly accepted bid.
type Acceptance struct {
	Bid models.Bid
	// ClientRef is the reference echoed by the server, if any.
	ClientRef string
	// Superseded is the optimistic bid this acceptance cleared, if any.
	Superseded *PendingBid
}

// Confirms reports whether the accepted bid is the superseded optimistic bid
// itself rather than someone else's bid that outbid it. Without an echoed
// reference, a bid with the same amount and bidder counts as confirmation.
func (a Acceptance) Confirms() bool {
	if a.Superseded == nil {
		return false
	}
	if a.ClientRef != "" {
		return a.ClientRef == a.Superseded.ClientRef
	}
	return a.Bid.Amount == a.Superseded.Amount && a.Bid.BidderName == a.Superseded.BidderName
}

// AcceptHook runs after a new bid is accepted.
type AcceptHook func(Acceptance)

// Ledger is safe for concurrent use. Hooks are invoked without the lock held.
type Ledger struct {
	clock clockwork.Clock

	mu           sync.RWMutex
	bids         []models.Bid // ID descending
	ids          map[int64]struct{}
	currentPrice int64
	pending      *PendingBid
	hooks        []AcceptHook
}

func New(clock clockwork.Clock) *Ledger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Ledger{
		clock: clock,
		ids:   make(map[int64]struct{}),
	}
}

// OnAccept registers a hook for newly accepted bids.
func (l *Ledger) OnAccept(hook AcceptHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hook)
}

// AcceptServerBid applies a server-confirmed bid. It returns false, and does
// nothing else, when the bid ID was already applied.
//
// The current price becomes the bid's amount regardless of how it compares to
// earlier bids: delivery order decides.
func (l *Ledger) AcceptServerBid(bid models.Bid) bool {
	return l.accept(bid, "")
}

// AcceptConfirmation is AcceptServerBid for an event that echoes the client
// reference of an optimistic bid.
func (l *Ledger) AcceptConfirmation(bid models.Bid, clientRef string) bool {
	return l.accept(bid, clientRef)
}

func (l *Ledger) accept(bid models.Bid, clientRef string) bool {
	l.mu.Lock()
	if _, seen := l.ids[bid.ID]; seen {
		l.mu.Unlock()
		return false
	}
	l.insertLocked(bid)
	l.currentPrice = bid.Amount

	var superseded *PendingBid
	if p := l.pending; p != nil && ((clientRef != "" && clientRef == p.ClientRef) || bid.Amount >= p.Amount) {
		superseded = p
		l.pending = nil
	}
	hooks := slices.Clone(l.hooks)
	l.mu.Unlock()

	a := Acceptance{Bid: bid, ClientRef: clientRef, Superseded: superseded}
	for _, hook := range hooks {
		hook(a)
	}
	return true
}

// ProposeLocalBid validates amount against the current price, records it as
// the outstanding optimistic bid and hands it to send. send is not called when
// validation fails. A new proposal replaces any previous outstanding one.
func (l *Ledger) ProposeLocalBid(amount int64, bidderName string, send func(PendingBid)) (PendingBid, error) {
	return l.ProposeLocalBidWithRef(uuid.New().String(), amount, bidderName, send)
}

// ProposeLocalBidWithRef is ProposeLocalBid with a caller-chosen client
// reference, so the caller can be ready for the outcome before the bid is
// visible to incoming events.
func (l *Ledger) ProposeLocalBidWithRef(clientRef string, amount int64, bidderName string, send func(PendingBid)) (PendingBid, error) {
	if amount <= 0 {
		return PendingBid{}, roomerr.Wrap("propose bid", roomerr.ErrInvalidAmount)
	}

	l.mu.Lock()
	if amount <= l.currentPrice {
		l.mu.Unlock()
		return PendingBid{}, roomerr.Wrap("propose bid", roomerr.ErrBidTooLow)
	}
	p := PendingBid{
		ClientRef:  clientRef,
		Amount:     amount,
		BidderName: bidderName,
		ProposedAt: l.clock.Now(),
	}
	l.pending = &p
	l.mu.Unlock()

	if send != nil {
		send(p)
	}
	return p, nil
}

// DropPending clears the optimistic bid if it still has clientRef.
func (l *Ledger) DropPending(clientRef string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == nil || l.pending.ClientRef != clientRef {
		return false
	}
	l.pending = nil
	return true
}

// Load merges fetched history by ID. Afterwards the current price is the
// amount of the highest-ID bid, or basePrice if there are no bids at all.
// Hooks are not invoked for loaded bids.
func (l *Ledger) Load(bids []models.Bid, basePrice int64) {
	l.merge(bids, basePrice)
}

// Merge is Load for history fetched after a gap in live delivery: every bid
// not seen before is treated as newly accepted and hooks run for each, oldest
// first. It returns the acceptances in that order.
func (l *Ledger) Merge(bids []models.Bid, basePrice int64) []Acceptance {
	accepted, hooks := l.merge(bids, basePrice)
	for _, a := range accepted {
		for _, hook := range hooks {
			hook(a)
		}
	}
	return accepted
}

func (l *Ledger) merge(bids []models.Bid, basePrice int64) ([]Acceptance, []AcceptHook) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var added []models.Bid
	for _, b := range bids {
		if _, seen := l.ids[b.ID]; seen {
			continue
		}
		l.insertLocked(b)
		added = append(added, b)
	}
	if len(l.bids) == 0 {
		l.currentPrice = basePrice
		return nil, nil
	}
	l.currentPrice = l.bids[0].Amount

	slices.SortFunc(added, func(a, b models.Bid) int {
		return cmp.Compare(a.ID, b.ID)
	})
	accepted := make([]Acceptance, len(added))
	for i, b := range added {
		accepted[i] = Acceptance{Bid: b}
	}

	// The pending bid is settled by its own confirmation when the history
	// holds one, otherwise by the newest bid once the price has reached it.
	if p := l.pending; p != nil && len(added) > 0 {
		settled := -1
		for i, a := range accepted {
			if a.Bid.Amount == p.Amount && a.Bid.BidderName == p.BidderName {
				settled = i
				break
			}
		}
		if settled < 0 && l.currentPrice >= p.Amount {
			settled = len(accepted) - 1
		}
		if settled >= 0 {
			accepted[settled].Superseded = p
			l.pending = nil
		}
	}
	return accepted, slices.Clone(l.hooks)
}

func (l *Ledger) insertLocked(bid models.Bid) {
	l.ids[bid.ID] = struct{}{}
	i, _ := slices.BinarySearchFunc(l.bids, bid.ID, func(b models.Bid, id int64) int {
		switch {
		case b.ID > id:
			return -1
		case b.ID < id:
			return 1
		default:
			return 0
		}
	})
	l.bids = slices.Insert(l.bids, i, bid)
}

// Bids returns a copy of the history, newest first.
func (l *Ledger) Bids() []models.Bid {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.bids)
}

func (l *Ledger) CurrentPrice() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.currentPrice
}

func (l *Ledger) Pending() *PendingBid {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.pending == nil {
		return nil
	}
	p := *l.pending
	return &p
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.bids)
}

func (l *Ledger) Contains(id int64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[id]
	return ok
}
