package spinmanager

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/lucky-wheel/internal/domain/entity"
	"github.com/yourusername/lucky-wheel/internal/service/wheel"
)

// ChangeKind is the type of a participant feed change
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// WinnerAcceptor receives the authoritative winner id once a replayed
// spin lands. It is called exactly once per completed spin.
type WinnerAcceptor interface {
	AcceptWinner(winnerID string)
}

// FrameRenderer draws observer output. Both methods are called from the
// observer's animation goroutine.
type FrameRenderer interface {
	RenderCountdown(secondsLeft int)
	RenderFrame(rotation float64, segment int)
}

// Observer replays spins announced by the orchestrator against its own
// view of the participant list. The winner id from the broadcast is
// always the one accepted; local geometry only affects what is drawn.
type Observer struct {
	config   *Config
	clock    clockwork.Clock
	animator *Animator
	acceptor WinnerAcceptor
	renderer FrameRenderer

	mu           sync.Mutex
	participants map[string]entity.Participant
	state        State
	spinID       string
	rotation     float64
	task         *task
}

// NewObserver creates an observer. renderer may be nil.
func NewObserver(config *Config, clock clockwork.Clock, acceptor WinnerAcceptor, renderer FrameRenderer) *Observer {
	if config == nil {
		config = DefaultConfig()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Observer{
		config:       config,
		clock:        clock,
		animator:     NewAnimator(clock, config.SpinDuration, config.FrameInterval),
		acceptor:     acceptor,
		renderer:     renderer,
		participants: make(map[string]entity.Participant),
		state:        StateIdle,
	}
}

// ApplySnapshot replaces the local participant list
func (o *Observer) ApplySnapshot(list []entity.Participant) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.participants = make(map[string]entity.Participant, len(list))
	for _, p := range list {
		o.participants[p.ID] = p
	}
}

// ApplyChange applies one state feed change
func (o *Observer) ApplyChange(kind ChangeKind, p entity.Participant) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch kind {
	case ChangeInsert, ChangeUpdate:
		o.participants[p.ID] = p
	case ChangeDelete:
		delete(o.participants, p.ID)
	}
}

// Segments returns the wheel as this observer currently sees it
func (o *Observer) Segments() []entity.Participant {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.segmentsLocked()
}

// State returns the observer's animation state
func (o *Observer) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Rotation returns the last rendered rotation
func (o *Observer) Rotation() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rotation
}

// OnCountdownStart runs the local countdown display
func (o *Observer) OnCountdownStart(p SpinPayload) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cancelLocked()
	o.spinID = p.SpinID
	o.rotation = 0
	o.state = StateCountdownPending

	seconds := p.CountdownSeconds
	if seconds <= 0 {
		seconds = o.config.CountdownSeconds
	}
	o.task = startTask(context.Background(), func(ctx context.Context) {
		o.runCountdown(ctx, seconds)
	})
}

// OnWheelSpinning recomputes the target for the local segment list and
// animates to it, then hands the broadcast winner to the acceptor.
func (o *Observer) OnWheelSpinning(p SpinPayload) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cancelLocked()
	target := o.targetLocked(p)
	o.spinID = p.SpinID
	o.rotation = 0
	o.state = StateSpinning

	o.task = startTask(context.Background(), func(ctx context.Context) {
		o.runAnimation(ctx, p, target)
	})
}

// OnGameReset cancels any local spin
func (o *Observer) OnGameReset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cancelLocked()
	o.spinID = ""
	o.rotation = 0
	o.state = StateIdle
}

// OnSpinAborted cancels the local spin when it matches spinID
func (o *Observer) OnSpinAborted(spinID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if spinID != "" && spinID != o.spinID {
		return
	}
	o.cancelLocked()
	o.state = StateIdle
}

// Close stops any running animation
func (o *Observer) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelLocked()
}

// done returns a channel closed when the current task exits; used in tests
func (o *Observer) done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.task == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return o.task.Done()
}

// TargetFor computes the rotation this observer would animate to
func (o *Observer) TargetFor(p SpinPayload) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.targetLocked(p)
}

func (o *Observer) targetLocked(p SpinPayload) float64 {
	segments := o.segmentsLocked()
	index := wheel.IndexOf(segments, p.WinnerID)
	if index < 0 {
		log.Warn().Str("winner_id", p.WinnerID).Int("segments", len(segments)).
			Msg("[Observer] Winner not on local wheel, using broadcast rotation")
		return p.Rotation
	}
	if len(segments) == p.SegmentCount && index == p.WinnerIndex {
		return p.Rotation
	}

	turns := p.FullTurns
	if turns <= 0 {
		turns = math.Max(float64(o.config.MinFullTurns), wheel.FullTurnsOf(p.Rotation))
	}
	target := wheel.RotationForSegment(index, len(segments), turns)
	log.Debug().
		Int("local_segments", len(segments)).
		Int("broadcast_segments", p.SegmentCount).
		Int("local_index", index).
		Float64("target", target).
		Msg("[Observer] Recomputed spin target for local wheel")
	return target
}

func (o *Observer) segmentsLocked() []entity.Participant {
	list := make([]entity.Participant, 0, len(o.participants))
	for _, p := range o.participants {
		list = append(list, p)
	}
	return wheel.Segments(list)
}

func (o *Observer) cancelLocked() {
	if o.task != nil {
		o.task.Cancel()
		o.task = nil
	}
}

func (o *Observer) runCountdown(ctx context.Context, seconds int) {
	o.renderCountdown(seconds)

	ticker := o.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for left := seconds - 1; left >= 0; left-- {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			o.renderCountdown(left)
		}
	}
}

func (o *Observer) runAnimation(ctx context.Context, p SpinPayload, target float64) {
	n := len(o.Segments())
	err := o.animator.Run(ctx, target, func(rotation, _ float64) {
		o.mu.Lock()
		o.rotation = rotation
		o.mu.Unlock()
		if o.renderer != nil && n > 0 {
			o.renderer.RenderFrame(rotation, wheel.SegmentUnderPointer(rotation, n))
		}
	})
	if err != nil {
		return
	}

	o.mu.Lock()
	if ctx.Err() != nil || o.spinID != p.SpinID {
		o.mu.Unlock()
		return
	}
	o.state = StateIdle
	winner, known := o.participants[p.WinnerID]
	o.mu.Unlock()

	if !known || !winner.IsActive() {
		status := "removed"
		if known {
			status = winner.Status
		}
		log.Warn().Str("winner_id", p.WinnerID).Str("local_status", status).
			Msg("[Observer] Broadcast winner is no longer active locally, accepting anyway")
	}
	if n > 0 {
		if landed := o.segmentAt(target, n); landed != p.WinnerID {
			log.Warn().Str("winner_id", p.WinnerID).Str("landed_on", landed).
				Msg("[Observer] Local wheel landed on a different participant")
		}
	}
	if o.acceptor != nil {
		o.acceptor.AcceptWinner(p.WinnerID)
	}
}

func (o *Observer) segmentAt(rotation float64, n int) string {
	segments := o.Segments()
	if len(segments) != n {
		return ""
	}
	return segments[wheel.SegmentUnderPointer(rotation, n)].ID
}

func (o *Observer) renderCountdown(left int) {
	if o.renderer != nil {
		o.renderer.RenderCountdown(left)
	}
}
