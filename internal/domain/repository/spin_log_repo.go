package repository

import (
	"context"

	"github.com/yourusername/lucky-wheel/internal/domain/entity"
)

// SpinLogRepository stores spin statistics
type SpinLogRepository interface {
	// Upsert stores the entry, replacing any entry for the same cycle and prize.
	Upsert(ctx context.Context, entry *entity.SpinLogEntry) error
	// List returns all entries ordered by cycle then prize rank descending.
	List(ctx context.Context) ([]entity.SpinLogEntry, error)
	Clear(ctx context.Context) error
}
