package repository

import (
	"context"

	"github.com/yourusername/lucky-wheel/internal/domain/entity"
)

// ParticipantRepository is the participant store behind the directory
type ParticipantRepository interface {
	// List returns every participant, newest first.
	List(ctx context.Context) ([]entity.Participant, error)
	GetByID(ctx context.Context, id string) (*entity.Participant, error)
	// Insert stores a new participant. Returns ErrDuplicateName when the
	// name is already used (case-insensitive).
	Insert(ctx context.Context, p *entity.Participant) error
	// SetWinner marks an active participant as winner with the given rank.
	SetWinner(ctx context.Context, id string, prizeRank int) (*entity.Participant, error)
	// UpdateName renames a participant. Returns ErrNameTaken when another
	// participant already holds the name.
	UpdateName(ctx context.Context, id string, name string) (*entity.Participant, error)
	// Delete removes a non-winner participant.
	Delete(ctx context.Context, id string) (*entity.Participant, error)
	// ResetAll returns every winner to active and clears prize ranks.
	ResetAll(ctx context.Context) ([]entity.Participant, error)
	// DeleteAll removes every participant and returns the removed rows.
	DeleteAll(ctx context.Context) ([]entity.Participant, error)
	// ListAliasesWithPrefix returns aliases starting with prefix, case-insensitive.
	ListAliasesWithPrefix(ctx context.Context, prefix string) ([]string, error)
}
