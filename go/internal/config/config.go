// Package config loads roomwatch settings from an optional YAML file and the
// environment. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
)

type Config struct {
	API       APIConfig       `yaml:"api"`
	Transport TransportConfig `yaml:"transport"`
	Room      RoomConfig      `yaml:"room"`
	Journal   JournalConfig   `yaml:"journal"`
	Status    StatusConfig    `yaml:"status"`
	Log       LogConfig       `yaml:"log"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type TransportConfig struct {
	Kind           string        `yaml:"kind"`
	WebSocketURL   string        `yaml:"websocket_url"`
	NATSURL        string        `yaml:"nats_url"`
	SubjectPrefix  string        `yaml:"subject_prefix"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	MaxReconnects  int           `yaml:"max_reconnects"`
}

type RoomConfig struct {
	AuctionID       string        `yaml:"auction_id"`
	BidderLabel     string        `yaml:"bidder_label"`
	BidsOverREST    bool          `yaml:"bids_over_rest"`
	HistoryLimit    int           `yaml:"history_limit"`
	ChatLimit       int           `yaml:"chat_limit"`
	ConfirmTimeout  time.Duration `yaml:"confirm_timeout"`
	ClosingMessages []string      `yaml:"closing_messages"`
}

type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	QueueSize     int           `yaml:"queue_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type StatusConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 30 * time.Second,
		},
		Transport: TransportConfig{
			Kind:           TransportWebSocket,
			WebSocketURL:   "ws://localhost:8000",
			NATSURL:        "nats://localhost:4222",
			SubjectPrefix:  "auction",
			ReconnectDelay: 3 * time.Second,
		},
		Room: RoomConfig{
			HistoryLimit:   50,
			ChatLimit:      200,
			ConfirmTimeout: 10 * time.Second,
		},
		Journal: JournalConfig{
			QueueSize:     1024,
			FlushInterval: time.Second,
		},
		Status: StatusConfig{Addr: ":8090"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error when path is empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.API.BaseURL = getEnv("AUCTION_API_URL", c.API.BaseURL)
	c.API.Token = getEnv("AUCTION_API_TOKEN", c.API.Token)
	c.API.Timeout = getEnvAsDuration("AUCTION_API_TIMEOUT", c.API.Timeout)

	c.Transport.Kind = getEnv("AUCTION_TRANSPORT", c.Transport.Kind)
	c.Transport.WebSocketURL = getEnv("AUCTION_WS_URL", c.Transport.WebSocketURL)
	c.Transport.NATSURL = getEnv("NATS_URL", c.Transport.NATSURL)
	c.Transport.SubjectPrefix = getEnv("AUCTION_NATS_SUBJECT_PREFIX", c.Transport.SubjectPrefix)
	c.Transport.ReconnectDelay = getEnvAsDuration("AUCTION_RECONNECT_DELAY", c.Transport.ReconnectDelay)
	c.Transport.MaxReconnects = getEnvAsInt("AUCTION_MAX_RECONNECTS", c.Transport.MaxReconnects)

	c.Room.AuctionID = getEnv("AUCTION_ID", c.Room.AuctionID)
	c.Room.BidderLabel = getEnv("AUCTION_BIDDER_LABEL", c.Room.BidderLabel)
	c.Room.BidsOverREST = getEnvAsBool("AUCTION_BIDS_OVER_REST", c.Room.BidsOverREST)
	c.Room.HistoryLimit = getEnvAsInt("AUCTION_HISTORY_LIMIT", c.Room.HistoryLimit)
	c.Room.ConfirmTimeout = getEnvAsDuration("AUCTION_CONFIRM_TIMEOUT", c.Room.ConfirmTimeout)

	c.Journal.Enabled = getEnvAsBool("JOURNAL_ENABLED", c.Journal.Enabled)

	c.Status.Addr = getEnv("STATUS_ADDR", c.Status.Addr)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

func (c *Config) Validate() error {
	switch c.Transport.Kind {
	case TransportWebSocket, TransportNATS:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport.Kind)
	}
	if c.API.BaseURL == "" {
		return errors.New("api base url is required")
	}
	if c.Room.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive, got %d", c.Room.HistoryLimit)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
