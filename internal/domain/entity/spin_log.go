package entity

import (
	"time"

	"github.com/lib/pq"
)

// SpinLogEntry records one resolved selection for later fairness review.
// A cycle is one full game between resets; each cycle holds up to one entry
// per prize rank.
type SpinLogEntry struct {
	ID             uint           `gorm:"primaryKey" json:"-"`
	Cycle          int            `gorm:"not null;uniqueIndex:idx_spin_logs_cycle_prize" json:"cycle"`
	PrizeRank      int            `gorm:"not null;uniqueIndex:idx_spin_logs_cycle_prize" json:"prize_rank"`
	WinnerID       string         `gorm:"size:36;not null" json:"winner_id"`
	WinnerName     string         `gorm:"size:50;not null" json:"winner_name"`
	WinnerAlias    *string        `gorm:"size:64" json:"winner_alias"`
	WinnerIndex    int            `gorm:"not null" json:"winner_index"`
	ActiveCount    int            `gorm:"not null" json:"active_count"`
	TotalCount     int            `gorm:"not null" json:"total_count"`
	AllActiveNames pq.StringArray `gorm:"type:text[]" json:"all_active_names"`
	Timestamp      time.Time      `gorm:"not null" json:"timestamp"`
}

// TableName sets the GORM table name
func (SpinLogEntry) TableName() string {
	return "spin_logs"
}

// DisplayName is the name used to group wins in statistics.
func (e *SpinLogEntry) DisplayName() string {
	if e.WinnerAlias != nil && *e.WinnerAlias != "" {
		return *e.WinnerAlias
	}
	return e.WinnerName
}
