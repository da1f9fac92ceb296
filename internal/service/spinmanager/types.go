package spinmanager

import (
	"context"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yourusername/lucky-wheel/internal/config"
	"github.com/yourusername/lucky-wheel/internal/domain/entity"
)

// State is a spin lifecycle state
type State string

const (
	StateIdle             State = "idle"
	StateCountdownPending State = "countdown_pending"
	StateSpinning         State = "spinning"
	StateResolved         State = "resolved"
	StateComplete         State = "complete"
)

// Config holds timing and randomness settings for spins
type Config struct {
	CountdownSeconds int           // countdown shown before the wheel moves
	CountdownGrace   time.Duration // pause on "0" before wheel_spinning
	SpinDuration     time.Duration // animation length
	FrameInterval    time.Duration // animation sampling period
	MinFullTurns     int           // inclusive
	MaxFullTurns     int           // exclusive
	MinActive        int           // participants required to spin
	CommitTimeout    time.Duration // timeout for the winner write
	RecordTimeout    time.Duration // timeout for the statistics write
}

// DefaultConfig returns the default spin configuration
func DefaultConfig() *Config {
	return &Config{
		CountdownSeconds: 5,
		CountdownGrace:   500 * time.Millisecond,
		SpinDuration:     5000 * time.Millisecond,
		FrameInterval:    16 * time.Millisecond,
		MinFullTurns:     5,
		MaxFullTurns:     10,
		MinActive:        2,
		CommitTimeout:    10 * time.Second,
		RecordTimeout:    5 * time.Second,
	}
}

// ConfigFromWheel applies the wheel section over the defaults. Zero values
// keep the default.
func ConfigFromWheel(w config.WheelConfig) *Config {
	c := DefaultConfig()
	if w.CountdownSeconds > 0 {
		c.CountdownSeconds = w.CountdownSeconds
	}
	if w.CountdownGraceMs > 0 {
		c.CountdownGrace = w.CountdownGrace()
	}
	if w.SpinDurationMs > 0 {
		c.SpinDuration = w.SpinDuration()
	}
	if w.FrameIntervalMs > 0 {
		c.FrameInterval = w.FrameInterval()
	}
	if w.MinFullTurns > 0 {
		c.MinFullTurns = w.MinFullTurns
	}
	if w.MaxFullTurns > c.MinFullTurns {
		c.MaxFullTurns = w.MaxFullTurns
	} else if c.MaxFullTurns <= c.MinFullTurns {
		c.MaxFullTurns = c.MinFullTurns + 1
	}
	// a spin needs at least two candidates
	if w.MinActive >= 2 {
		c.MinActive = w.MinActive
	}
	return c
}

// CountdownDuration is the time between countdown_start and wheel_spinning.
func (c *Config) CountdownDuration() time.Duration {
	return time.Duration(c.CountdownSeconds)*time.Second + c.CountdownGrace
}

// ParticipantStore is the part of the participant directory the
// orchestrator writes through. Implementations publish the state feed.
type ParticipantStore interface {
	List(ctx context.Context) ([]entity.Participant, error)
	SetWinner(ctx context.Context, id string, prizeRank int) (*entity.Participant, error)
	ResetAll(ctx context.Context) ([]entity.Participant, error)
}

// Broadcaster publishes transient game events.
// *websocket.Manager satisfies it.
type Broadcaster interface {
	BroadcastEvent(eventType string, data interface{}) error
}

// CheckinGate reports whether new check-ins are currently refused.
type CheckinGate interface {
	IsCheckinLocked(ctx context.Context) (bool, error)
}

// SpinRecorder receives statistics for each selection. Errors are logged
// and never affect the spin.
type SpinRecorder interface {
	RecordSpin(ctx context.Context, record SpinRecord) error
	StartNewCycle(ctx context.Context) error
}

// Dependencies holds the orchestrator's collaborators
type Dependencies struct {
	Store       ParticipantStore
	Broadcaster Broadcaster
	Gate        CheckinGate
	Recorder    SpinRecorder    // optional
	Clock       clockwork.Clock // optional, real clock by default
	Rand        *rand.Rand      // optional
}

// SpinPayload is carried by countdown_start and wheel_spinning. Rotation is
// absolute from 0; WinnerID is authoritative.
type SpinPayload struct {
	SpinID           string  `json:"spin_id"`
	WinnerID         string  `json:"winner_id"`
	WinnerIndex      int     `json:"winner_index"`
	SegmentCount     int     `json:"segment_count"`
	Rotation         float64 `json:"rotation"`
	FullTurns        float64 `json:"full_turns"`
	CountdownSeconds int     `json:"countdown_seconds"`
	DurationMs       int64   `json:"duration_ms"`
	PrizeRank        int     `json:"prize_rank"`
	Round            int     `json:"round"`
}

// SpinRecord is what the statistics sink receives per selection
type SpinRecord struct {
	Timestamp   time.Time
	PrizeRank   int
	Winner      entity.Participant
	WinnerIndex int
	ActiveNames []string
	ActiveCount int
	TotalCount  int
}

// WinnerAnnouncement is broadcast after a successful commit
type WinnerAnnouncement struct {
	Participant entity.Participant `json:"participant"`
	PrizeRank   int                `json:"prize_rank"`
	Round       int                `json:"round"`
	SpinID      string             `json:"spin_id,omitempty"`
}

// PendingCommit is a resolved winner whose write failed and can be retried
type PendingCommit struct {
	SpinID    string `json:"spin_id,omitempty"`
	WinnerID  string `json:"winner_id"`
	PrizeRank int    `json:"prize_rank"`
}

// SpinNotice is broadcast when a spin ends without a committed winner
type SpinNotice struct {
	SpinID   string `json:"spin_id,omitempty"`
	WinnerID string `json:"winner_id"`
	Reason   string `json:"reason"`
}

// Status is a point-in-time view of the orchestrator
type Status struct {
	State         State               `json:"state"`
	Round         int                 `json:"round"`
	PrizeRank     int                 `json:"prize_rank"`
	GameComplete  bool                `json:"game_complete"`
	CurrentSpin   *SpinPayload        `json:"current_spin,omitempty"`
	PendingCommit *PendingCommit      `json:"pending_commit,omitempty"`
	LastError     string              `json:"last_error,omitempty"`
	LastWinner    *WinnerAnnouncement `json:"last_winner,omitempty"`
}
