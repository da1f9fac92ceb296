package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/lucky-wheel/internal/domain/entity"
	"github.com/yourusername/lucky-wheel/internal/domain/repository"
	apperrors "github.com/yourusername/lucky-wheel/internal/pkg/errors"
)

const prizeRankConstraint = "idx_participants_prize_rank"

// ParticipantRepo implements repository.ParticipantRepository
type ParticipantRepo struct {
	db *gorm.DB
}

// NewParticipantRepo creates a participant repository
func NewParticipantRepo(db *gorm.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

// List returns all participants, newest first
func (r *ParticipantRepo) List(ctx context.Context) ([]entity.Participant, error) {
	var participants []entity.Participant
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id").Find(&participants).Error
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return participants, nil
}

// GetByID returns a participant by ID
func (r *ParticipantRepo) GetByID(ctx context.Context, id string) (*entity.Participant, error) {
	var p entity.Participant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: participant %s", apperrors.ErrNotFound, id)
		}
		return nil, err
	}
	return &p, nil
}

// Insert creates a participant row
func (r *ParticipantRepo) Insert(ctx context.Context, p *entity.Participant) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", repository.ErrDuplicateName, p.Name)
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// SetWinner marks an active participant as winner
func (r *ParticipantRepo) SetWinner(ctx context.Context, id string, prizeRank int) (*entity.Participant, error) {
	var updated []entity.Participant
	result := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("id = ? AND status = ?", id, entity.ParticipantStatusActive).
		Updates(map[string]interface{}{
			"status":     entity.ParticipantStatusWinner,
			"prize_rank": prizeRank,
		})
	if result.Error != nil {
		if isUniqueViolation(result.Error) && violatedConstraint(result.Error) == prizeRankConstraint {
			return nil, fmt.Errorf("%w: prize %d already awarded", apperrors.ErrConflict, prizeRank)
		}
		return nil, fmt.Errorf("set winner %s: %w", id, result.Error)
	}

	if result.RowsAffected == 0 || len(updated) == 0 {
		// Distinguish a missing row from a row that is no longer active.
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: participant %s", repository.ErrNotActive, id)
	}

	return &updated[0], nil
}

// UpdateName renames a participant, keeping names unique case-insensitively
func (r *ParticipantRepo) UpdateName(ctx context.Context, id string, name string) (*entity.Participant, error) {
	var updated entity.Participant
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&entity.Participant{}).
			Where("LOWER(name) = LOWER(?) AND id <> ?", name, id).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return fmt.Errorf("%w: %q", repository.ErrNameTaken, name)
		}

		var rows []entity.Participant
		result := tx.Model(&rows).
			Clauses(clause.Returning{}).
			Where("id = ?", id).
			Update("name", name)
		if result.Error != nil {
			if isUniqueViolation(result.Error) {
				return fmt.Errorf("%w: %q", repository.ErrNameTaken, name)
			}
			return result.Error
		}
		if result.RowsAffected == 0 || len(rows) == 0 {
			return fmt.Errorf("%w: participant %s", apperrors.ErrNotFound, id)
		}
		updated = rows[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a participant unless it already won
func (r *ParticipantRepo) Delete(ctx context.Context, id string) (*entity.Participant, error) {
	var deleted entity.Participant
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&deleted).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: participant %s", apperrors.ErrNotFound, id)
			}
			return err
		}
		if deleted.IsWinner() {
			return fmt.Errorf("%w: participant %s", repository.ErrWinnerNotDeletable, id)
		}
		return tx.Where("id = ?", id).Delete(&entity.Participant{}).Error
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

// ResetAll returns all winners to active and clears their prize ranks
func (r *ParticipantRepo) ResetAll(ctx context.Context) ([]entity.Participant, error) {
	var updated []entity.Participant
	err := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("status = ? OR prize_rank IS NOT NULL", entity.ParticipantStatusWinner).
		Updates(map[string]interface{}{
			"status":     entity.ParticipantStatusActive,
			"prize_rank": gorm.Expr("NULL"),
		}).Error
	if err != nil {
		return nil, fmt.Errorf("reset participants: %w", err)
	}
	return updated, nil
}

// DeleteAll removes every participant
func (r *ParticipantRepo) DeleteAll(ctx context.Context) ([]entity.Participant, error) {
	var deleted []entity.Participant
	err := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("id IS NOT NULL").
		Delete(&deleted).Error
	if err != nil {
		return nil, fmt.Errorf("delete all participants: %w", err)
	}
	return deleted, nil
}

// ListAliasesWithPrefix returns aliases starting with prefix (ILIKE)
func (r *ParticipantRepo) ListAliasesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var aliases []string
	err := r.db.WithContext(ctx).
		Model(&entity.Participant{}).
		Where("alias ILIKE ?", escapeLike(prefix)+"%").
		Pluck("alias", &aliases).Error
	if err != nil {
		return nil, fmt.Errorf("list aliases with prefix %q: %w", prefix, err)
	}
	return aliases, nil
}
