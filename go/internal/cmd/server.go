package main

import (
	"github.com/mcdev12/liveauction/go/internal/config"
	"github.com/mcdev12/liveauction/go/internal/journal"
	"github.com/mcdev12/liveauction/go/internal/statusapi"
)

func setupServer(cfg config.StatusConfig, services *Services, store *journal.SQLStore) *statusapi.Server {
	serverCfg := statusapi.DefaultConfig()
	if cfg.Addr != "" {
		serverCfg.Addr = cfg.Addr
	}

	// keep a nil store out of the interface
	var reader journal.Reader
	if store != nil {
		reader = store
	}
	return statusapi.NewServer(serverCfg, services.Session, reader)
}
