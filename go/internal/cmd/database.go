package main

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/liveauction/go/internal/config"
	"github.com/mcdev12/liveauction/go/internal/dbconfig"
	"github.com/mcdev12/liveauction/go/internal/journal"
)

// setupJournal opens the journal store and starts its writer.
func setupJournal(ctx context.Context, cfg config.JournalConfig, clock clockwork.Clock) (*journal.Writer, *journal.SQLStore, error) {
	store, err := journal.OpenSQLStore(ctx, dbconfig.NewConfigFromEnv())
	if err != nil {
		return nil, nil, err
	}

	writer := journal.NewWriter(store, clock, journal.Config{
		QueueSize:     cfg.QueueSize,
		FlushInterval: cfg.FlushInterval,
	})
	if err := writer.Start(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return writer, store, nil
}
