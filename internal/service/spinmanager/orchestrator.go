// Package spinmanager runs the authoritative spin lifecycle and the
// observer side that replays it on receiving clients.
package spinmanager

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/lucky-wheel/internal/domain/entity"
	apperrors "github.com/yourusername/lucky-wheel/internal/pkg/errors"
	"github.com/yourusername/lucky-wheel/internal/service/wheel"
	"github.com/yourusername/lucky-wheel/internal/websocket"
)

// spin is the orchestrator's record of one selection
type spin struct {
	payload SpinPayload
	winner  entity.Participant
}

// Orchestrator selects winners, drives the countdown and animation, and
// commits results. Only one instance per deployment should accept admin
// commands.
type Orchestrator struct {
	config   *Config
	deps     *Dependencies
	clock    clockwork.Clock
	animator *Animator

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	rng        *rand.Rand
	state      State
	round      int
	current    *spin
	task       *task
	pending    *PendingCommit
	lastErr    error
	lastWinner *WinnerAnnouncement
}

// NewOrchestrator creates an orchestrator in the idle state at round 1
func NewOrchestrator(config *Config, deps *Dependencies) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		config:   config,
		deps:     deps,
		clock:    clock,
		animator: NewAnimator(clock, config.SpinDuration, config.FrameInterval),
		ctx:      ctx,
		cancel:   cancel,
		rng:      rng,
		state:    StateIdle,
		round:    1,
	}
}

// Restore derives round and completion from persisted participants.
// Call once on startup before accepting commands.
func (o *Orchestrator) Restore(ctx context.Context) error {
	list, err := o.deps.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("restore game state: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	winners := entity.CountWinners(list)
	o.round = entity.RoundForWinners(winners)
	if gameComplete(list) {
		o.state = StateComplete
	} else {
		o.state = StateIdle
	}
	log.Info().Int("round", o.round).Str("state", string(o.state)).Msg("[SpinManager] Game state restored")
	return nil
}

// RequestSpin validates preconditions, selects a winner uniformly among
// active participants and starts the countdown. A rejected request
// leaves state unchanged.
func (o *Orchestrator) RequestSpin(ctx context.Context) (*SpinPayload, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case StateCountdownPending, StateSpinning, StateResolved:
		return nil, ErrSpinInProgress
	case StateComplete:
		return nil, ErrGameComplete
	}

	locked, err := o.deps.Gate.IsCheckinLocked(ctx)
	if err != nil {
		return nil, fmt.Errorf("read check-in lock: %w", err)
	}
	if !locked {
		return nil, ErrCheckinUnlocked
	}

	list, err := o.deps.Store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	if gameComplete(list) {
		o.state = StateComplete
		return nil, ErrGameComplete
	}

	segments := wheel.Segments(list)
	active := entity.ActiveOnly(segments)
	if len(active) < o.config.MinActive {
		return nil, ErrNotEnoughParticipants
	}

	winner := active[o.rng.Intn(len(active))]
	index := wheel.IndexOf(segments, winner.ID)
	turns := o.pickFullTurns()
	round := entity.RoundForWinners(entity.CountWinners(list))

	s := &spin{
		winner: winner,
		payload: SpinPayload{
			SpinID:           uuid.NewString(),
			WinnerID:         winner.ID,
			WinnerIndex:      index,
			SegmentCount:     len(segments),
			Rotation:         wheel.RotationForSegment(index, len(segments), turns),
			FullTurns:        turns,
			CountdownSeconds: o.config.CountdownSeconds,
			DurationMs:       o.config.SpinDuration.Milliseconds(),
			PrizeRank:        entity.PrizeForRound(round),
			Round:            round,
		},
	}

	o.round = round
	o.current = s
	o.pending = nil
	o.lastErr = nil
	o.setState(StateCountdownPending)

	o.broadcast(websocket.COUNTDOWN_START, s.payload)
	o.record(s, active, segments)

	o.task = startTask(o.ctx, func(taskCtx context.Context) {
		o.runSpin(taskCtx, s)
	})

	log.Info().
		Str("spin_id", s.payload.SpinID).
		Str("winner_id", winner.ID).
		Int("winner_index", index).
		Int("segments", len(segments)).
		Int("prize_rank", s.payload.PrizeRank).
		Float64("rotation", s.payload.Rotation).
		Msg("[SpinManager] Spin requested")

	payload := s.payload
	return &payload, nil
}

// CommitWinner retries the commit of a resolved spin whose write failed.
// Only the pending winner and prize rank are accepted.
func (o *Orchestrator) CommitWinner(ctx context.Context, winnerID string, prizeRank int) (*entity.Participant, error) {
	if prizeRank < entity.PrizeFirst || prizeRank > entity.PrizeThird {
		return nil, ErrInvalidPrizeRank
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case StateCountdownPending, StateSpinning, StateResolved:
		return nil, ErrSpinInProgress
	case StateComplete:
		return nil, ErrGameComplete
	}

	if o.pending == nil {
		return nil, ErrNoPendingCommit
	}
	if o.pending.WinnerID != winnerID || o.pending.PrizeRank != prizeRank {
		return nil, ErrPendingMismatch
	}
	return o.commitLocked(ctx, winnerID, prizeRank, o.pending.SpinID, false)
}

// ResetGame clears all winners, cancels any spin in flight and starts a
// new statistics cycle. The persistent reset happens first; on failure
// nothing else changes.
func (o *Orchestrator) ResetGame(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.deps.Store.ResetAll(ctx); err != nil {
		return fmt.Errorf("reset participants: %w", err)
	}

	if o.task != nil {
		o.task.Cancel()
		o.task = nil
	}
	o.current = nil
	o.pending = nil
	o.lastErr = nil
	o.lastWinner = nil
	o.round = 1
	o.setState(StateIdle)

	if o.deps.Recorder != nil {
		if err := o.deps.Recorder.StartNewCycle(ctx); err != nil {
			log.Warn().Err(err).Msg("[SpinManager] Failed to start a new statistics cycle")
		}
	}

	o.broadcast(websocket.GAME_RESET, map[string]interface{}{"round": 1})
	log.Info().Msg("[SpinManager] Game reset")
	return nil
}

// Status returns a snapshot of the orchestrator state
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Status{
		State:        o.state,
		Round:        o.round,
		PrizeRank:    entity.PrizeForRound(o.round),
		GameComplete: o.state == StateComplete,
		LastWinner:   o.lastWinner,
	}
	if st.GameComplete {
		st.PrizeRank = 0
	}
	if o.current != nil {
		payload := o.current.payload
		st.CurrentSpin = &payload
	}
	if o.pending != nil {
		pending := *o.pending
		st.PendingCommit = &pending
	}
	if o.lastErr != nil {
		st.LastError = o.lastErr.Error()
	}
	return st
}

// Close cancels any spin in flight. The orchestrator is unusable afterwards.
func (o *Orchestrator) Close() {
	o.cancel()
}

// runSpin is the countdown -> animation -> resolution pipeline for one spin
func (o *Orchestrator) runSpin(ctx context.Context, s *spin) {
	select {
	case <-o.clock.After(o.config.CountdownDuration()):
	case <-ctx.Done():
		log.Debug().Str("spin_id", s.payload.SpinID).Msg("[SpinManager] Countdown cancelled")
		return
	}

	o.mu.Lock()
	if o.current != s {
		o.mu.Unlock()
		return
	}
	o.setState(StateSpinning)
	o.broadcast(websocket.WHEEL_SPINNING, s.payload)
	o.mu.Unlock()

	if err := o.animator.Run(ctx, s.payload.Rotation, nil); err != nil {
		log.Debug().Str("spin_id", s.payload.SpinID).Msg("[SpinManager] Animation cancelled")
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != s || ctx.Err() != nil {
		return
	}
	o.setState(StateResolved)

	commitCtx, cancel := context.WithTimeout(context.Background(), o.config.CommitTimeout)
	defer cancel()
	if _, err := o.commitLocked(commitCtx, s.payload.WinnerID, s.payload.PrizeRank, s.payload.SpinID, true); err != nil {
		log.Error().Err(err).Str("spin_id", s.payload.SpinID).Msg("[SpinManager] Winner commit failed")
	}
}

// commitLocked persists the winner and moves to idle or complete. When the
// winner has been deleted and abortOnMissing is set, the spin is aborted
// instead of recorded as a failure. Caller holds o.mu.
func (o *Orchestrator) commitLocked(ctx context.Context, winnerID string, prizeRank int, spinID string, abortOnMissing bool) (*entity.Participant, error) {
	p, err := o.deps.Store.SetWinner(ctx, winnerID, prizeRank)
	if err != nil {
		o.current = nil
		o.task = nil
		o.setState(StateIdle)

		if abortOnMissing && errors.Is(err, apperrors.ErrNotFound) {
			o.pending = nil
			o.broadcast(websocket.SPIN_ABORTED, SpinNotice{SpinID: spinID, WinnerID: winnerID, Reason: "winner_removed"})
			log.Warn().Str("winner_id", winnerID).Msg("[SpinManager] Winner removed during spin, spin aborted")
			return nil, ErrWinnerRemoved
		}

		o.pending = &PendingCommit{SpinID: spinID, WinnerID: winnerID, PrizeRank: prizeRank}
		o.lastErr = err
		o.broadcast(websocket.SPIN_FAILED, SpinNotice{SpinID: spinID, WinnerID: winnerID, Reason: err.Error()})
		return nil, fmt.Errorf("commit winner: %w", err)
	}

	announcement := &WinnerAnnouncement{
		Participant: *p,
		PrizeRank:   prizeRank,
		Round:       entity.MaxWinners + 1 - prizeRank,
		SpinID:      spinID,
	}

	o.current = nil
	o.task = nil
	o.pending = nil
	o.lastErr = nil
	o.lastWinner = announcement
	o.broadcast(websocket.WINNER_ANNOUNCED, announcement)

	round, complete := o.progressAfterCommit(ctx, prizeRank)
	o.round = round
	if complete {
		o.setState(StateComplete)
	} else {
		o.setState(StateIdle)
	}

	log.Info().
		Str("winner_id", p.ID).
		Str("winner", p.DisplayName()).
		Int("prize_rank", prizeRank).
		Msg("[SpinManager] Winner committed")
	return p, nil
}

// progressAfterCommit derives the next round from the stored winners. If
// the list cannot be read, the committed prize rank decides.
func (o *Orchestrator) progressAfterCommit(ctx context.Context, prizeRank int) (int, bool) {
	list, err := o.deps.Store.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("[SpinManager] Failed to reload participants after commit")
		round := entity.RoundForWinners(entity.MaxWinners + 1 - prizeRank)
		if prizeRank == entity.PrizeFirst || round > entity.MaxWinners {
			return entity.MaxWinners, true
		}
		return round, false
	}

	if gameComplete(list) {
		return entity.MaxWinners, true
	}
	return entity.RoundForWinners(entity.CountWinners(list)), false
}

// pickFullTurns returns a whole number of turns in [MinFullTurns, MaxFullTurns).
// Whole turns keep the landing segment equal to the selected index.
func (o *Orchestrator) pickFullTurns() float64 {
	lo, hi := o.config.MinFullTurns, o.config.MaxFullTurns
	if hi <= lo {
		return float64(lo)
	}
	return float64(lo + o.rng.Intn(hi-lo))
}

func (o *Orchestrator) setState(next State) {
	if o.state != next {
		log.Debug().Str("from", string(o.state)).Str("to", string(next)).Msg("[SpinManager] State change")
	}
	o.state = next
}

func (o *Orchestrator) broadcast(eventType string, data interface{}) {
	if o.deps.Broadcaster == nil {
		return
	}
	if err := o.deps.Broadcaster.BroadcastEvent(eventType, data); err != nil {
		log.Warn().Err(err).Str("event", eventType).Msg("[SpinManager] Broadcast failed")
	}
}

// record hands selection statistics to the recorder without blocking the spin
func (o *Orchestrator) record(s *spin, active, segments []entity.Participant) {
	if o.deps.Recorder == nil {
		return
	}
	names := make([]string, len(active))
	for i := range active {
		names[i] = active[i].DisplayName()
	}
	rec := SpinRecord{
		Timestamp:   o.clock.Now(),
		PrizeRank:   s.payload.PrizeRank,
		Winner:      s.winner,
		WinnerIndex: s.payload.WinnerIndex,
		ActiveNames: names,
		ActiveCount: len(active),
		TotalCount:  len(segments),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.config.RecordTimeout)
		defer cancel()
		if err := o.deps.Recorder.RecordSpin(ctx, rec); err != nil {
			log.Warn().Err(err).Str("spin_id", s.payload.SpinID).Msg("[SpinManager] Failed to record spin")
		}
	}()
}

// gameComplete is true once three prizes are awarded or prize 1 is given
func gameComplete(list []entity.Participant) bool {
	if entity.CountWinners(list) >= entity.MaxWinners {
		return true
	}
	for i := range list {
		if list[i].PrizeRank != nil && *list[i].PrizeRank == entity.PrizeFirst {
			return true
		}
	}
	return false
}
