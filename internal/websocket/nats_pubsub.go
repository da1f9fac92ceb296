package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NatsPubSub implements PubSubProvider on core NATS subjects
type NatsPubSub struct {
	conn *nats.Conn

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewNatsPubSub creates a provider on an open connection. Close drains the
// connection.
func NewNatsPubSub(conn *nats.Conn) (*NatsPubSub, error) {
	if conn == nil {
		return nil, errors.New("nats connection cannot be nil for NatsPubSub")
	}
	return &NatsPubSub{conn: conn}, nil
}

// Publish sends message on subject channel
func (p *NatsPubSub) Publish(channel string, message []byte) error {
	if err := p.conn.Publish(channel, message); err != nil {
		return fmt.Errorf("failed to publish to NATS subject %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of payloads published on subject channel
func (p *NatsPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	msgCh := make(chan []byte, 100)
	var (
		chMu   sync.Mutex
		closed bool
	)

	sub, err := p.conn.Subscribe(channel, func(msg *nats.Msg) {
		chMu.Lock()
		defer chMu.Unlock()
		if closed {
			return
		}
		select {
		case msgCh <- msg.Data:
		default:
			log.Warn().Str("subject", channel).Msg("[NatsPubSub] subscriber buffer full, dropping message")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to NATS subject %s: %w", channel, err)
	}

	p.mu.Lock()
	p.subs = append(p.subs, sub)
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			log.Warn().Err(err).Str("subject", channel).Msg("[NatsPubSub] unsubscribe failed")
		}
		chMu.Lock()
		closed = true
		close(msgCh)
		chMu.Unlock()
	}()

	log.Info().Str("subject", channel).Msg("[NatsPubSub] subscribed")
	return msgCh, nil
}

// Close drains subscriptions and the connection
func (p *NatsPubSub) Close() error {
	p.mu.Lock()
	p.subs = nil
	p.mu.Unlock()

	if p.conn.IsClosed() {
		return nil
	}
	return p.conn.Drain()
}
