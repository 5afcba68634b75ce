package journal

import "context"

// Store persists batches of entries. Appending an entry that is already
// stored must not fail.
type Store interface {
	Append(ctx context.Context, entries []Entry) error
}

// Reader lists the most recent entries of an auction, newest first.
type Reader interface {
	Recent(ctx context.Context, auctionID string, limit int) ([]Entry, error)
}
