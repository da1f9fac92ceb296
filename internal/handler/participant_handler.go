package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/lucky-wheel/internal/domain/entity"
	"github.com/yourusername/lucky-wheel/internal/handler/dto"
	apperrors "github.com/yourusername/lucky-wheel/internal/pkg/errors"
)

// ParticipantDirectory is the participant service as seen by HTTP
type ParticipantDirectory interface {
	List(ctx context.Context) ([]entity.Participant, error)
	Segments(ctx context.Context) ([]entity.Participant, error)
	CheckIn(ctx context.Context, name string) (*entity.Participant, error)
	UpdateName(ctx context.Context, id, name string) (*entity.Participant, error)
	Delete(ctx context.Context, id string) (*entity.Participant, error)
	DeleteAll(ctx context.Context) (int, error)
}

// ParticipantHandler serves /api/participants
type ParticipantHandler struct {
	participants ParticipantDirectory
}

// NewParticipantHandler creates the handler
func NewParticipantHandler(participants ParticipantDirectory) *ParticipantHandler {
	return &ParticipantHandler{participants: participants}
}

// List returns participants, newest first
func (h *ParticipantHandler) List(c *gin.Context) {
	list, err := h.participants.List(c.Request.Context())
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewParticipantListResponse(list))
}

// Segments returns the wheel segments in wheel order
func (h *ParticipantHandler) Segments(c *gin.Context) {
	segments, err := h.participants.Segments(c.Request.Context())
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSegmentListResponse(segments))
}

// CheckIn registers a participant
func (h *ParticipantHandler) CheckIn(c *gin.Context) {
	var req dto.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.participants.CheckIn(c.Request.Context(), req.Name)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// UpdateName renames a participant
func (h *ParticipantHandler) UpdateName(c *gin.Context) {
	id := c.MustGet("participantID").(string)

	var req dto.UpdateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.participants.UpdateName(c.Request.Context(), id, req.Name)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Delete removes one participant
func (h *ParticipantHandler) Delete(c *gin.Context) {
	id := c.MustGet("participantID").(string)

	p, err := h.participants.Delete(c.Request.Context(), id)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteAll clears the directory
func (h *ParticipantHandler) DeleteAll(c *gin.Context) {
	n, err := h.participants.DeleteAll(c.Request.Context())
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DeleteAllResponse{Deleted: n})
}

func (h *ParticipantHandler) handleParticipantError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("[ParticipantHandler] Internal server error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
