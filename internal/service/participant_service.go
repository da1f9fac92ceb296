package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/lucky-wheel/internal/domain/entity"
	"github.com/yourusername/lucky-wheel/internal/domain/repository"
	"github.com/yourusername/lucky-wheel/internal/service/alias"
	"github.com/yourusername/lucky-wheel/internal/service/spinmanager"
	"github.com/yourusername/lucky-wheel/internal/service/wheel"
	"github.com/yourusername/lucky-wheel/internal/websocket"
)

// ParticipantService is the participant directory. Every successful write
// is followed by a participant:* event on the state feed.
type ParticipantService struct {
	repo   repository.ParticipantRepository
	gate   spinmanager.CheckinGate
	events spinmanager.Broadcaster
	clock  clockwork.Clock
}

// NewParticipantService creates the directory. gate may be nil, in which
// case check-in is never locked.
func NewParticipantService(
	repo repository.ParticipantRepository,
	gate spinmanager.CheckinGate,
	events spinmanager.Broadcaster,
	clock clockwork.Clock,
) *ParticipantService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ParticipantService{
		repo:   repo,
		gate:   gate,
		events: events,
		clock:  clock,
	}
}

// List returns participants in display order, newest first.
func (s *ParticipantService) List(ctx context.Context) ([]entity.Participant, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	entity.SortByCreatedDesc(list)
	return list, nil
}

// Segments returns the participants currently drawn on the wheel.
func (s *ParticipantService) Segments(ctx context.Context) ([]entity.Participant, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return wheel.Segments(list), nil
}

// CheckIn registers a new active participant and derives its alias.
func (s *ParticipantService) CheckIn(ctx context.Context, name string) (*entity.Participant, error) {
	name = alias.NormalizeName(name)
	if err := validateName(name); err != nil {
		return nil, err
	}

	if s.gate != nil {
		locked, err := s.gate.IsCheckinLocked(ctx)
		if err != nil {
			return nil, fmt.Errorf("read check-in lock: %w", err)
		}
		if locked {
			return nil, ErrCheckinLocked
		}
	}

	base, _ := alias.Parts(name)
	existing, err := s.repo.ListAliasesWithPrefix(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("look up aliases for %q: %w", base, err)
	}

	p := &entity.Participant{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    entity.ParticipantStatusActive,
		CreatedAt: s.clock.Now().UTC(),
	}
	if a := alias.Resolve(name, existing); a != "" {
		p.Alias = &a
	}

	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, err
	}

	log.Info().Str("participant_id", p.ID).Str("alias", p.DisplayName()).Msg("[ParticipantService] Checked in")
	s.emit(websocket.PARTICIPANT_INSERT, p)
	return p, nil
}

// UpdateName renames a participant. The alias stays as it was.
func (s *ParticipantService) UpdateName(ctx context.Context, id, name string) (*entity.Participant, error) {
	name = alias.NormalizeName(name)
	if err := validateName(name); err != nil {
		return nil, err
	}

	p, err := s.repo.UpdateName(ctx, id, name)
	if err != nil {
		return nil, err
	}
	s.emit(websocket.PARTICIPANT_UPDATE, p)
	return p, nil
}

// Delete removes a participant that does not hold a prize.
func (s *ParticipantService) Delete(ctx context.Context, id string) (*entity.Participant, error) {
	p, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.emit(websocket.PARTICIPANT_DELETE, p)
	return p, nil
}

// DeleteAll clears the directory.
func (s *ParticipantService) DeleteAll(ctx context.Context) (int, error) {
	removed, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete all participants: %w", err)
	}
	for i := range removed {
		s.emit(websocket.PARTICIPANT_DELETE, &removed[i])
	}
	log.Info().Int("count", len(removed)).Msg("[ParticipantService] Directory cleared")
	return len(removed), nil
}

// SetWinner is the write behind a spin commit.
func (s *ParticipantService) SetWinner(ctx context.Context, id string, prizeRank int) (*entity.Participant, error) {
	p, err := s.repo.SetWinner(ctx, id, prizeRank)
	if err != nil {
		return nil, err
	}
	s.emit(websocket.PARTICIPANT_UPDATE, p)
	return p, nil
}

// ResetAll returns every winner to active.
func (s *ParticipantService) ResetAll(ctx context.Context) ([]entity.Participant, error) {
	changed, err := s.repo.ResetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("reset winners: %w", err)
	}
	for i := range changed {
		s.emit(websocket.PARTICIPANT_UPDATE, &changed[i])
	}
	return changed, nil
}

func (s *ParticipantService) emit(eventType string, p *entity.Participant) {
	if s.events == nil || p == nil {
		return
	}
	if err := s.events.BroadcastEvent(eventType, p); err != nil {
		log.Warn().Err(err).Str("type", eventType).Str("participant_id", p.ID).Msg("[ParticipantService] Failed to emit change")
	}
}

func validateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < entity.MinNameLength || n > entity.MaxNameLength {
		return ErrInvalidName
	}
	return nil
}
