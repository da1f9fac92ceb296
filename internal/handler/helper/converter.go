package helper

import (
	"github.com/yourusername/lucky-wheel/internal/domain/entity"
	"github.com/yourusername/lucky-wheel/internal/service/wheel"
)

// SegmentView is one wheel segment as drawn by clients
type SegmentView struct {
	Index      int     `json:"index"`
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	IsWinner   bool    `json:"is_winner"`
	PrizeRank  *int    `json:"prize_rank,omitempty"`
	StartAngle float64 `json:"start_angle"`
	EndAngle   float64 `json:"end_angle"`
}

// ConvertSegments maps wheel segments to views. Angles are in radians at
// rotation 0, measured clockwise from 3 o'clock.
func ConvertSegments(segments []entity.Participant) []SegmentView {
	views := make([]SegmentView, len(segments))
	if len(segments) == 0 {
		return views
	}
	arc := wheel.SegmentAngle(len(segments))
	for i := range segments {
		p := &segments[i]
		views[i] = SegmentView{
			Index:      i,
			ID:         p.ID,
			Label:      p.DisplayName(),
			IsWinner:   p.IsWinner(),
			PrizeRank:  p.PrizeRank,
			StartAngle: float64(i) * arc,
			EndAngle:   float64(i+1) * arc,
		}
	}
	return views
}
