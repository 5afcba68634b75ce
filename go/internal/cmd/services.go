package main

import (
	"fmt"
	"io"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/liveauction/go/clients/auctionapi"
	"github.com/mcdev12/liveauction/go/internal/config"
	"github.com/mcdev12/liveauction/go/internal/room"
	"github.com/mcdev12/liveauction/go/internal/room/transport"
)

type Services struct {
	API     *auctionapi.Client
	Channel *transport.Channel
	Session *room.Session

	dialerCloser io.Closer
}

func setupServices(cfg *config.Config, clock clockwork.Clock, recorder room.Recorder) (*Services, error) {
	// Wire up dependency injection chain
	// Dialer → Channel → Session, with the REST client alongside

	api := auctionapi.NewClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout)

	dialer, closer, err := setupDialer(cfg)
	if err != nil {
		return nil, err
	}

	channel := transport.NewChannel(dialer, clock, transport.Config{
		ReconnectDelay: cfg.Transport.ReconnectDelay,
		MaxReconnects:  cfg.Transport.MaxReconnects,
	})

	sessionCfg := room.DefaultConfig()
	sessionCfg.Transport = channel
	sessionCfg.Auctions = api
	sessionCfg.Bids = api
	sessionCfg.Chat = api
	sessionCfg.Recorder = recorder
	sessionCfg.Clock = clock
	sessionCfg.BidderLabel = cfg.Room.BidderLabel
	sessionCfg.BidsOverREST = cfg.Room.BidsOverREST
	sessionCfg.HistoryLimit = cfg.Room.HistoryLimit
	sessionCfg.ChatLimit = cfg.Room.ChatLimit
	sessionCfg.ConfirmTimeout = cfg.Room.ConfirmTimeout
	sessionCfg.ClosingMessages = cfg.Room.ClosingMessages

	return &Services{
		API:          api,
		Channel:      channel,
		Session:      room.NewSession(sessionCfg),
		dialerCloser: closer,
	}, nil
}

func setupDialer(cfg *config.Config) (transport.Dialer, io.Closer, error) {
	switch cfg.Transport.Kind {
	case config.TransportNATS:
		natsCfg := transport.DefaultNATSConfig()
		natsCfg.URL = cfg.Transport.NATSURL
		natsCfg.SubjectPrefix = cfg.Transport.SubjectPrefix
		d, err := transport.NewNATSDialer(natsCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to setup NATS transport: %w", err)
		}
		return d, d, nil
	default:
		wsCfg := transport.DefaultWebSocketConfig()
		wsCfg.BaseURL = cfg.Transport.WebSocketURL
		wsCfg.Token = cfg.API.Token
		return transport.NewWebSocketDialer(wsCfg), nil, nil
	}
}

// Close leaves the room and releases the transport.
func (s *Services) Close() error {
	s.Session.Close()
	s.Channel.Close()
	if s.dialerCloser != nil {
		return s.dialerCloser.Close()
	}
	return nil
}
