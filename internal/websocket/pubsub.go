package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/lucky-wheel/internal/config"
)

// PubSubProvider carries cluster messages between instances
type PubSubProvider interface {
	Publish(channel string, message []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// ClusterMessage wraps a payload relayed between instances
type ClusterMessage struct {
	MessageType string          `json:"type"`
	InstanceID  string          `json:"instance_id"`
	Payload     json.RawMessage `json:"payload"`
	Timestamp   time.Time       `json:"timestamp"`
}

const clusterBroadcast = "broadcast"

// NoOpPubSub is used when clustering is disabled
type NoOpPubSub struct{}

func (p *NoOpPubSub) Publish(channel string, message []byte) error {
	return nil
}

func (p *NoOpPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	msgCh := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(msgCh)
	}()
	return msgCh, nil
}

func (p *NoOpPubSub) Close() error {
	return nil
}

// ClusterHub relays broadcasts between hub instances. Only fan-out is
// replicated; spin state lives on the authoritative instance.
type ClusterHub struct {
	config   config.ClusterConfig
	parent   ClusterAwareHub
	Provider PubSubProvider
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewClusterHub creates a cluster relay for parent
func NewClusterHub(parent ClusterAwareHub, cfg config.ClusterConfig, provider PubSubProvider) *ClusterHub {
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.InstanceID == "" {
		cfg.InstanceID = generateInstanceID()
		log.Info().Str("instance_id", cfg.InstanceID).Msg("[ClusterHub] generated instance id")
	}
	if cfg.BroadcastChannel == "" {
		cfg.BroadcastChannel = "wheel:events"
	}
	if provider == nil {
		log.Warn().Msg("[ClusterHub] no pub/sub provider, using NoOpPubSub")
		provider = &NoOpPubSub{}
	}
	return &ClusterHub{
		config:   cfg,
		parent:   parent,
		Provider: provider,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the broadcast channel
func (ch *ClusterHub) Start() error {
	if !ch.config.Enabled {
		return nil
	}

	msgCh, err := ch.Provider.Subscribe(ch.ctx, ch.config.BroadcastChannel)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", ch.config.BroadcastChannel, err)
	}

	log.Info().
		Str("instance_id", ch.config.InstanceID).
		Str("channel", ch.config.BroadcastChannel).
		Msg("[ClusterHub] cluster fan-out started")

	ch.wg.Add(1)
	go func() {
		defer ch.wg.Done()
		ch.handleBroadcastMessages(msgCh)
	}()
	return nil
}

// Stop cancels the subscription and waits for the relay goroutine
func (ch *ClusterHub) Stop() {
	ch.cancel()
	ch.wg.Wait()
}

// BroadcastToCluster publishes payload to the other instances
func (ch *ClusterHub) BroadcastToCluster(payload []byte) error {
	if !ch.config.Enabled {
		return nil
	}
	data, err := json.Marshal(ClusterMessage{
		MessageType: clusterBroadcast,
		InstanceID:  ch.config.InstanceID,
		Payload:     payload,
		Timestamp:   time.Now(),
	})
	if err != nil {
		return err
	}
	return ch.Provider.Publish(ch.config.BroadcastChannel, data)
}

func (ch *ClusterHub) handleBroadcastMessages(msgCh <-chan []byte) {
	for {
		select {
		case <-ch.ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				log.Warn().Msg("[ClusterHub] broadcast channel closed")
				return
			}

			var msg ClusterMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Warn().Err(err).Msg("[ClusterHub] invalid cluster message")
				continue
			}
			// own messages were already delivered locally
			if msg.InstanceID == ch.parent.GetInstanceID() {
				continue
			}
			if msg.MessageType != clusterBroadcast {
				log.Debug().Str("type", msg.MessageType).Msg("[ClusterHub] ignoring cluster message")
				continue
			}
			if hub, ok := ch.parent.(*Hub); ok {
				hub.metrics.AddClusterReceived()
			}
			ch.parent.BroadcastBytesLocal(msg.Payload)
		}
	}
}

// RedisPubSub implements PubSubProvider on Redis pub/sub
type RedisPubSub struct {
	client redis.UniversalClient
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	subs map[string]*redis.PubSub
}

// NewRedisPubSub creates a provider on an existing client. The client is
// shared and not closed by Close.
func NewRedisPubSub(client redis.UniversalClient) (*RedisPubSub, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil for RedisPubSub")
	}

	ctx, cancelCheck := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCheck()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("provided redis client failed ping check: %w", err)
	}

	ctxPubSub, cancel := context.WithCancel(context.Background())
	return &RedisPubSub{
		client: client,
		ctx:    ctxPubSub,
		cancel: cancel,
		subs:   make(map[string]*redis.PubSub),
	}, nil
}

// Publish sends message on channel
func (p *RedisPubSub) Publish(channel string, message []byte) error {
	if err := p.client.Publish(p.ctx, channel, message).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of payloads published on channel
func (p *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := p.client.Subscribe(p.ctx, channel)
	if _, err := pubsub.Receive(p.ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to Redis channel %s: %w", channel, err)
	}

	p.mu.Lock()
	p.subs[channel] = pubsub
	p.mu.Unlock()

	msgCh := make(chan []byte, 100)
	go func() {
		defer func() {
			p.mu.Lock()
			if p.subs[channel] == pubsub {
				delete(p.subs, channel)
			}
			p.mu.Unlock()
			pubsub.Close()
			close(msgCh)
		}()

		redisCh := pubsub.Channel()
		for {
			select {
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case msgCh <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				case <-p.ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			case <-p.ctx.Done():
				return
			}
		}
	}()

	log.Info().Str("channel", channel).Msg("[RedisPubSub] subscribed")
	return msgCh, nil
}

// Close stops all subscriptions
func (p *RedisPubSub) Close() error {
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for channel, pubsub := range p.subs {
		if err := pubsub.Close(); err != nil {
			log.Warn().Err(err).Str("channel", channel).Msg("[RedisPubSub] failed to close subscription")
			lastErr = err
		}
		delete(p.subs, channel)
	}
	return lastErr
}

// generateInstanceID creates a unique hub instance id
func generateInstanceID() string {
	return "instance_" + time.Now().Format("20060102150405") + "_" + uuid.NewString()[:8]
}
