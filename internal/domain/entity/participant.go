package entity

import (
	"sort"
	"time"
)

// Participant statuses
const (
	ParticipantStatusActive     = "active"
	ParticipantStatusWinner     = "winner"
	ParticipantStatusEliminated = "eliminated"
)

// Prize ranks, awarded worst first: round 1 gets PrizeThird.
const (
	PrizeFirst  = 1
	PrizeSecond = 2
	PrizeThird  = 3

	// MaxWinners is the number of prize rounds in one game.
	MaxWinners = 3
)

// Name length limits, counted in runes after trimming.
const (
	MinNameLength = 2
	MaxNameLength = 50
)

// Participant is a checked-in raffle entrant
type Participant struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:50;not null" json:"name"`
	Alias     *string   `gorm:"size:64" json:"alias"`
	Status    string    `gorm:"size:16;not null;default:'active';index" json:"status"`
	PrizeRank *int      `gorm:"uniqueIndex:idx_participants_prize_rank,where:prize_rank IS NOT NULL" json:"prize_rank"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

// TableName sets the GORM table name
func (Participant) TableName() string {
	return "participants"
}

// IsActive reports whether the participant can still win.
func (p *Participant) IsActive() bool {
	return p.Status == ParticipantStatusActive
}

// IsWinner reports whether the participant already holds a prize.
func (p *Participant) IsWinner() bool {
	return p.Status == ParticipantStatusWinner
}

// OnWheel reports whether the participant occupies a wheel segment.
// Winners stay on the wheel (dimmed); eliminated participants do not.
func (p *Participant) OnWheel() bool {
	return p.Status == ParticipantStatusActive || p.Status == ParticipantStatusWinner
}

// DisplayName is the label drawn on the wheel: the alias when set.
func (p *Participant) DisplayName() string {
	if p.Alias != nil && *p.Alias != "" {
		return *p.Alias
	}
	return p.Name
}

// SortByCreatedDesc orders participants for spectator lists, newest first.
func SortByCreatedDesc(list []Participant) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

// CountWinners returns the number of participants holding a prize.
func CountWinners(list []Participant) int {
	n := 0
	for i := range list {
		if list[i].IsWinner() {
			n++
		}
	}
	return n
}

// ActiveOnly returns the spin-eligible participants, preserving order.
func ActiveOnly(list []Participant) []Participant {
	active := make([]Participant, 0, len(list))
	for _, p := range list {
		if p.IsActive() {
			active = append(active, p)
		}
	}
	return active
}

// RoundForWinners derives the current round from the winner count.
func RoundForWinners(winners int) int {
	return winners + 1
}

// PrizeForRound maps round 1..3 to prize 3..1.
func PrizeForRound(round int) int {
	return MaxWinners + 1 - round
}
