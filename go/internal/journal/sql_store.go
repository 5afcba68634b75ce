package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/liveauction/go/internal/dbconfig"
	"github.com/mcdev12/liveauction/go/internal/sqlutil"
)

const schema = `
CREATE TABLE IF NOT EXISTS room_journal (
	id          UUID PRIMARY KEY,
	auction_id  TEXT        NOT NULL,
	kind        TEXT        NOT NULL,
	bid_id      BIGINT,
	amount      BIGINT,
	phase       TEXT,
	payload     JSONB,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS room_journal_bid_uidx
	ON room_journal (auction_id, bid_id) WHERE bid_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS room_journal_auction_idx
	ON room_journal (auction_id, recorded_at DESC);
`

const insertEntry = `
INSERT INTO room_journal (id, auction_id, kind, bid_id, amount, phase, payload, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT DO NOTHING`

const selectRecent = `
SELECT id, auction_id, kind, bid_id, amount, phase, payload, recorded_at
FROM room_journal
WHERE auction_id = $1
ORDER BY recorded_at DESC
LIMIT $2`

// queries binds the journal statements to one transaction.
type queries struct {
	tx *sql.Tx
}

func newQueries(tx *sql.Tx) *queries {
	return &queries{tx: tx}
}

func (q *queries) insert(ctx context.Context, e Entry) error {
	_, err := q.tx.ExecContext(ctx, insertEntry,
		e.ID,
		e.AuctionID,
		string(e.Kind),
		sqlutil.ToSqlInt64(e.BidID),
		sqlutil.ToSqlInt64(e.Amount),
		sqlutil.ToSqlString(e.Phase),
		sqlutil.ToRawMessage(e.Payload),
		e.RecordedAt,
	)
	return err
}

// SQLStore keeps the journal in Postgres through either lib/pq or pgx.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore connects with cfg and creates the journal table if needed.
func OpenSQLStore(ctx context.Context, cfg dbconfig.Config) (*SQLStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewSQLStore(db)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info().
		Str("driver", cfg.Driver).
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Msg("journal database connected")
	return s, nil
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create journal schema: %w", err)
	}
	return nil
}

// Append writes entries in one transaction.
func (s *SQLStore) Append(ctx context.Context, entries []Entry) error {
	err := sqlutil.Run(ctx, s.db, newQueries, func(q *queries) error {
		for _, e := range entries {
			if err := q.insert(ctx, e); err != nil {
				return fmt.Errorf("failed to insert journal entry %s: %w", e.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append journal batch: %w", err)
	}
	return nil
}

func (s *SQLStore) Recent(ctx context.Context, auctionID string, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectRecent, auctionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			kind    string
			bidID   sql.NullInt64
			amount  sql.NullInt64
			phase   sql.NullString
			payload pqtype.NullRawMessage
		)
		if err := rows.Scan(&e.ID, &e.AuctionID, &kind, &bidID, &amount, &phase, &payload, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.Kind = Kind(kind)
		e.BidID = sqlutil.FromSqlInt64(bidID)
		e.Amount = sqlutil.FromSqlInt64(amount)
		e.Phase = sqlutil.FromSqlString(phase, "")
		e.Payload = sqlutil.FromRawMessage(payload)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
