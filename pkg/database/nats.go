package database

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/lucky-wheel/internal/config"
)

// NewNatsConn connects to NATS with reconnect logging
func NewNatsConn(cfg config.NatsConfig) (*nats.Conn, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats configuration error: URL must be provided")
	}

	wait := 2 * time.Second
	if cfg.ReconnectWaitMs > 0 {
		wait = time.Duration(cfg.ReconnectWaitMs) * time.Millisecond
	}
	name := cfg.Name
	if name == "" {
		name = "lucky-wheel"
	}

	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(wait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}
