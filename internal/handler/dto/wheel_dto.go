package dto

import (
	"github.com/yourusername/lucky-wheel/internal/domain/entity"
	"github.com/yourusername/lucky-wheel/internal/handler/helper"
)

// CheckInRequest is the body of POST /api/participants
type CheckInRequest struct {
	Name string `json:"name" binding:"required"`
}

// UpdateNameRequest is the body of PATCH /api/participants/:id
type UpdateNameRequest struct {
	Name string `json:"name" binding:"required"`
}

// CommitWinnerRequest is the body of POST /api/game/commit
type CommitWinnerRequest struct {
	WinnerID  string `json:"winner_id" binding:"required"`
	PrizeRank int    `json:"prize_rank" binding:"required,min=1,max=3"`
}

// ParticipantListResponse lists participants in display order
type ParticipantListResponse struct {
	Participants []entity.Participant `json:"participants"`
	Total        int                  `json:"total"`
	ActiveCount  int                  `json:"active_count"`
	WinnerCount  int                  `json:"winner_count"`
}

// SegmentListResponse lists the current wheel segments
type SegmentListResponse struct {
	Segments []helper.SegmentView `json:"segments"`
	Count    int                  `json:"count"`
}

// DeleteAllResponse reports how many participants were removed
type DeleteAllResponse struct {
	Deleted int `json:"deleted"`
}

// NewParticipantListResponse builds the list response
func NewParticipantListResponse(list []entity.Participant) *ParticipantListResponse {
	if list == nil {
		list = []entity.Participant{}
	}
	return &ParticipantListResponse{
		Participants: list,
		Total:        len(list),
		ActiveCount:  len(entity.ActiveOnly(list)),
		WinnerCount:  entity.CountWinners(list),
	}
}

// NewSegmentListResponse builds the segment response
func NewSegmentListResponse(segments []entity.Participant) *SegmentListResponse {
	return &SegmentListResponse{
		Segments: helper.ConvertSegments(segments),
		Count:    len(segments),
	}
}
