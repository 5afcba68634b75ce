package main

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mcdev12/liveauction/go/internal/config"
)

type Args struct {
	ConfigPath string
	v          *viper.Viper
}

func ParseArgs(argv []string) (Args, error) {
	flags := pflag.NewFlagSet("roomwatch", pflag.ContinueOnError)

	flags.String("config", "", "path to a YAML config file")

	// room
	flags.String("auction", "", "auction ID to join")
	flags.String("bidder-label", "", "display name attached to local bids")
	flags.Bool("bids-over-rest", false, "submit online bids through the REST API")

	// collaborators
	flags.String("api-url", "", "auction REST API base URL")
	flags.String("transport", "", "push transport: websocket or nats")
	flags.String("ws-url", "", "websocket base URL")
	flags.String("nats-url", "", "NATS server URL")

	// local
	flags.String("status-addr", "", "status console listen address")
	flags.Bool("journal", false, "journal confirmed events to Postgres")
	flags.String("log-level", "", "trace, debug, info, warn or error")

	if err := flags.Parse(argv); err != nil {
		return Args{}, err
	}

	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return Args{}, err
	}
	v.AutomaticEnv()
	v.SetEnvPrefix("AUCTION")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	return Args{ConfigPath: v.GetString("config"), v: v}, nil
}

// Apply overrides cfg with every flag given on the command line or through
// an AUCTION_* variable.
func (a Args) Apply(cfg *config.Config) {
	str := func(key string, dst *string) {
		if a.v.IsSet(key) && a.v.GetString(key) != "" {
			*dst = a.v.GetString(key)
		}
	}
	boolean := func(key string, dst *bool) {
		if a.v.IsSet(key) {
			*dst = a.v.GetBool(key)
		}
	}

	str("auction", &cfg.Room.AuctionID)
	str("bidder-label", &cfg.Room.BidderLabel)
	boolean("bids-over-rest", &cfg.Room.BidsOverREST)
	str("api-url", &cfg.API.BaseURL)
	str("transport", &cfg.Transport.Kind)
	str("ws-url", &cfg.Transport.WebSocketURL)
	str("nats-url", &cfg.Transport.NATSURL)
	str("status-addr", &cfg.Status.Addr)
	boolean("journal", &cfg.Journal.Enabled)
	str("log-level", &cfg.Log.Level)
}
