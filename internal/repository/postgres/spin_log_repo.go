package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/lucky-wheel/internal/domain/entity"
)

// SpinLogRepo implements repository.SpinLogRepository
type SpinLogRepo struct {
	db *gorm.DB
}

// NewSpinLogRepo creates a spin log repository
func NewSpinLogRepo(db *gorm.DB) *SpinLogRepo {
	return &SpinLogRepo{db: db}
}

// Upsert inserts the entry or overwrites the one recorded for the same cycle and prize
func (r *SpinLogRepo) Upsert(ctx context.Context, entry *entity.SpinLogEntry) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cycle"}, {Name: "prize_rank"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"winner_id", "winner_name", "winner_alias", "winner_index",
			"active_count", "total_count", "all_active_names", "timestamp",
		}),
	}).Create(entry).Error
	if err != nil {
		return fmt.Errorf("upsert spin log cycle %d prize %d: %w", entry.Cycle, entry.PrizeRank, err)
	}
	return nil
}

// List returns every entry
func (r *SpinLogRepo) List(ctx context.Context) ([]entity.SpinLogEntry, error) {
	var entries []entity.SpinLogEntry
	err := r.db.WithContext(ctx).Order("cycle").Order("prize_rank DESC").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list spin logs: %w", err)
	}
	return entries, nil
}

// Clear removes all entries
func (r *SpinLogRepo) Clear(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&entity.SpinLogEntry{}).Error; err != nil {
		return fmt.Errorf("clear spin logs: %w", err)
	}
	return nil
}
