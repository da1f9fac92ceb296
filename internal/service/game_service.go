package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/yourusername/lucky-wheel/internal/domain/entity"
	"github.com/yourusername/lucky-wheel/internal/domain/repository"
	apperrors "github.com/yourusername/lucky-wheel/internal/pkg/errors"
	"github.com/yourusername/lucky-wheel/internal/service/spinmanager"
	"github.com/yourusername/lucky-wheel/internal/websocket"
)

// Redis keys holding game-wide flags
const (
	checkinLockedKey = "wheel:checkin_locked"
	cycleKey         = "wheel:cycle"
)

// StatusProvider exposes the orchestrator state. *spinmanager.Orchestrator
// satisfies it.
type StatusProvider interface {
	Status() spinmanager.Status
}

// GameState is the game part of a snapshot
type GameState struct {
	Status        spinmanager.Status `json:"status"`
	CheckinLocked bool               `json:"checkin_locked"`
	Cycle         int                `json:"cycle"`
}

// Snapshot is the payload of sync:snapshot
type Snapshot struct {
	Participants []entity.Participant `json:"participants"`
	Game         GameState            `json:"game"`
}

// GameService owns the check-in lock and the statistics cycle counter.
type GameService struct {
	cache        repository.CacheRepository
	participants repository.ParticipantRepository
	events       spinmanager.Broadcaster
	status       StatusProvider
}

// NewGameService creates the game service
func NewGameService(
	cache repository.CacheRepository,
	participants repository.ParticipantRepository,
	events spinmanager.Broadcaster,
) *GameService {
	return &GameService{
		cache:        cache,
		participants: participants,
		events:       events,
	}
}

// SetStatusProvider attaches the orchestrator once it exists. Without one,
// snapshots derive the round from the participant list.
func (s *GameService) SetStatusProvider(p StatusProvider) {
	s.status = p
}

// IsCheckinLocked reports whether check-in is closed
func (s *GameService) IsCheckinLocked(_ context.Context) (bool, error) {
	val, err := s.cache.Get(checkinLockedKey)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", checkinLockedKey, err)
	}
	return val == "1", nil
}

// LockCheckin closes check-in and tells every client
func (s *GameService) LockCheckin(_ context.Context) error {
	if err := s.cache.Set(checkinLockedKey, "1", 0); err != nil {
		return fmt.Errorf("lock check-in: %w", err)
	}
	log.Info().Msg("[GameService] Check-in locked")
	s.broadcast(websocket.CHECKIN_LOCKED, true)
	return nil
}

// UnlockCheckin reopens check-in
func (s *GameService) UnlockCheckin(_ context.Context) error {
	if err := s.cache.Delete(checkinLockedKey); err != nil {
		return fmt.Errorf("unlock check-in: %w", err)
	}
	log.Info().Msg("[GameService] Check-in unlocked")
	s.broadcast(websocket.CHECKIN_UNLOCKED, false)
	return nil
}

// CurrentCycle returns the statistics cycle, starting at 1.
func (s *GameService) CurrentCycle(_ context.Context) (int, error) {
	if _, err := s.cache.SetNX(cycleKey, "1", 0); err != nil {
		return 0, fmt.Errorf("init %s: %w", cycleKey, err)
	}
	val, err := s.cache.Get(cycleKey)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", cycleKey, err)
	}
	cycle, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", cycleKey, val, err)
	}
	return cycle, nil
}

// NextCycle advances the statistics cycle and returns the new value.
func (s *GameService) NextCycle(_ context.Context) (int, error) {
	if _, err := s.cache.SetNX(cycleKey, "1", 0); err != nil {
		return 0, fmt.Errorf("init %s: %w", cycleKey, err)
	}
	next, err := s.cache.Increment(cycleKey)
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", cycleKey, err)
	}
	return int(next), nil
}

// Snapshot assembles the full state sent on connect and on sync:request.
func (s *GameService) Snapshot(ctx context.Context) (*Snapshot, error) {
	list, err := s.participants.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	entity.SortByCreatedDesc(list)

	locked, err := s.IsCheckinLocked(ctx)
	if err != nil {
		return nil, err
	}
	cycle, err := s.CurrentCycle(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("[GameService] Snapshot without cycle")
		cycle = 0
	}

	var status spinmanager.Status
	if s.status != nil {
		status = s.status.Status()
	} else {
		status = derivedStatus(list)
	}

	return &Snapshot{
		Participants: list,
		Game: GameState{
			Status:        status,
			CheckinLocked: locked,
			Cycle:         cycle,
		},
	}, nil
}

// derivedStatus is used on instances that do not run the orchestrator.
func derivedStatus(list []entity.Participant) spinmanager.Status {
	winners := entity.CountWinners(list)
	complete := winners >= entity.MaxWinners
	for i := range list {
		if list[i].PrizeRank != nil && *list[i].PrizeRank == entity.PrizeFirst {
			complete = true
		}
	}

	st := spinmanager.Status{
		State: spinmanager.StateIdle,
		Round: entity.RoundForWinners(winners),
	}
	if complete {
		st.State = spinmanager.StateComplete
		st.GameComplete = true
		return st
	}
	st.PrizeRank = entity.PrizeForRound(st.Round)
	return st
}

func (s *GameService) broadcast(eventType string, locked bool) {
	if s.events == nil {
		return
	}
	if err := s.events.BroadcastEvent(eventType, map[string]bool{"checkin_locked": locked}); err != nil {
		log.Warn().Err(err).Str("type", eventType).Msg("[GameService] Broadcast failed")
	}
}
