// Package spectator is a headless WebSocket client that replays spins the
// way a display page does.
package spectator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/lucky-wheel/internal/domain/entity"
	"github.com/yourusername/lucky-wheel/internal/service"
	"github.com/yourusername/lucky-wheel/internal/service/spinmanager"
	ws "github.com/yourusername/lucky-wheel/internal/websocket"
)

// Config holds spectator settings
type Config struct {
	// URL of the server WebSocket endpoint, e.g. ws://localhost:8080/ws
	URL           string
	Role          string
	ReconnectWait time.Duration
	FrameLogEvery time.Duration
	Wheel         *spinmanager.Config
}

// Client keeps one connection open and feeds an Observer
type Client struct {
	// OnWinner, when set before Run, is called with each accepted winner
	OnWinner func(p entity.Participant)

	cfg      Config
	clock    clockwork.Clock
	dialer   *websocket.Dialer
	observer *spinmanager.Observer

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu      sync.Mutex
	winners []string
}

// NewClient creates a spectator. clock may be nil.
func NewClient(cfg Config, clock clockwork.Clock) *Client {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.Role == "" {
		cfg.Role = ws.RoleSpectator
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.FrameLogEvery <= 0 {
		cfg.FrameLogEvery = 250 * time.Millisecond
	}

	c := &Client{
		cfg:    cfg,
		clock:  clock,
		dialer: websocket.DefaultDialer,
	}
	renderer := NewLogRenderer(clock, cfg.FrameLogEvery, c.labelAt)
	c.observer = spinmanager.NewObserver(cfg.Wheel, clock, c, renderer)
	return c
}

// Observer exposes the local wheel state
func (c *Client) Observer() *spinmanager.Observer {
	return c.observer
}

// Winners returns the accepted winner ids in order
func (c *Client) Winners() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.winners...)
}

// AcceptWinner records the broadcast winner once the local animation lands
func (c *Client) AcceptWinner(winnerID string) {
	var winner entity.Participant
	found := false
	for _, p := range c.observer.Segments() {
		if p.ID == winnerID {
			winner, found = p, true
			break
		}
	}

	c.mu.Lock()
	c.winners = append(c.winners, winnerID)
	onWinner := c.OnWinner
	c.mu.Unlock()

	ev := log.Info().Str("winner_id", winnerID)
	if found {
		ev = ev.Str("label", winner.DisplayName()).Str("name", winner.Name)
	}
	ev.Msg("[Spectator] Winner")

	if onWinner != nil {
		if !found {
			winner = entity.Participant{ID: winnerID}
		}
		onWinner(winner)
	}
}

// Run connects and reconnects until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	defer c.observer.Close()

	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Dur("retry_in", c.cfg.ReconnectWait).Msg("[Spectator] Connection lost")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.cfg.ReconnectWait):
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}

	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer conn.Close()

	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()
	log.Info().Str("url", endpoint).Msg("[Spectator] Connected")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if err := c.handle(message); err != nil {
			log.Warn().Err(err).Msg("[Spectator] Bad message")
		}
	}
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", c.cfg.URL, err)
	}
	q := u.Query()
	q.Set("role", c.cfg.Role)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// handle applies one server message. Server events are advisory except for
// the snapshot and the participant feed.
func (c *Client) handle(message []byte) error {
	var ev envelope
	if err := json.Unmarshal(message, &ev); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	switch ev.Type {
	case ws.SYNC_SNAPSHOT:
		var snap service.Snapshot
		if err := json.Unmarshal(ev.Data, &snap); err != nil {
			return fmt.Errorf("decode snapshot: %w", err)
		}
		c.observer.ApplySnapshot(snap.Participants)
		log.Info().
			Int("participants", len(snap.Participants)).
			Int("round", snap.Game.Status.Round).
			Bool("checkin_locked", snap.Game.CheckinLocked).
			Msg("[Spectator] Snapshot applied")

	case ws.PARTICIPANT_INSERT, ws.PARTICIPANT_UPDATE, ws.PARTICIPANT_DELETE:
		var p entity.Participant
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		c.observer.ApplyChange(changeKind(ev.Type), p)

	case ws.COUNTDOWN_START, ws.WHEEL_SPINNING:
		var p spinmanager.SpinPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		if ev.Type == ws.COUNTDOWN_START {
			c.observer.OnCountdownStart(p)
		} else {
			c.observer.OnWheelSpinning(p)
		}

	case ws.SPIN_ABORTED:
		var n spinmanager.SpinNotice
		if err := json.Unmarshal(ev.Data, &n); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		c.observer.OnSpinAborted(n.SpinID)
		log.Warn().Str("spin_id", n.SpinID).Str("reason", n.Reason).Msg("[Spectator] Spin aborted")

	case ws.GAME_RESET:
		c.observer.OnGameReset()
		log.Info().Msg("[Spectator] Game reset")

	case ws.WINNER_ANNOUNCED:
		var w spinmanager.WinnerAnnouncement
		if err := json.Unmarshal(ev.Data, &w); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		log.Info().Str("winner_id", w.Participant.ID).Int("prize_rank", w.PrizeRank).Msg("[Spectator] Winner announced")

	case ws.SERVER_BUFFER_WARNING:
		// events were dropped for this connection; the feed may have gaps
		log.Warn().Msg("[Spectator] Server dropped messages, requesting snapshot")
		return c.send(ws.SYNC_REQUEST, nil)

	case ws.SPIN_FAILED, ws.CHECKIN_LOCKED, ws.CHECKIN_UNLOCKED, ws.SERVER_ERROR, ws.SERVER_HEARTBEAT:
		log.Debug().Str("type", ev.Type).RawJSON("data", rawOrNull(ev.Data)).Msg("[Spectator] Event")

	default:
		log.Debug().Str("type", ev.Type).Msg("[Spectator] Ignored event")
	}
	return nil
}

func (c *Client) send(eventType string, data interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return errors.New("not connected")
	}
	return c.conn.WriteJSON(ws.Event{Type: eventType, Data: data})
}

func (c *Client) labelAt(segment int) string {
	segments := c.observer.Segments()
	if segment < 0 || segment >= len(segments) {
		return ""
	}
	return segments[segment].DisplayName()
}

func changeKind(eventType string) spinmanager.ChangeKind {
	switch eventType {
	case ws.PARTICIPANT_INSERT:
		return spinmanager.ChangeInsert
	case ws.PARTICIPANT_DELETE:
		return spinmanager.ChangeDelete
	default:
		return spinmanager.ChangeUpdate
	}
}

func rawOrNull(data json.RawMessage) []byte {
	if len(data) == 0 {
		return []byte("null")
	}
	return data
}
