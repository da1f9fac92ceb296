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
	"github.com/yourusername/lucky-wheel/internal/service"
	"github.com/yourusername/lucky-wheel/internal/service/spinmanager"
)

// GameFlags is the game service as seen by HTTP
type GameFlags interface {
	Snapshot(ctx context.Context) (*service.Snapshot, error)
	LockCheckin(ctx context.Context) error
	UnlockCheckin(ctx context.Context) error
}

// SpinController is the orchestrator as seen by HTTP.
// *spinmanager.Orchestrator satisfies it.
type SpinController interface {
	RequestSpin(ctx context.Context) (*spinmanager.SpinPayload, error)
	CommitWinner(ctx context.Context, winnerID string, prizeRank int) (*entity.Participant, error)
	ResetGame(ctx context.Context) error
	Status() spinmanager.Status
}

// GameHandler serves /api/game
type GameHandler struct {
	game  GameFlags
	spins SpinController
}

// NewGameHandler creates the handler. spins is nil on instances that do
// not run the orchestrator; spin commands then answer 503.
func NewGameHandler(game GameFlags, spins SpinController) *GameHandler {
	return &GameHandler{game: game, spins: spins}
}

// GetGame returns the game state
func (h *GameHandler) GetGame(c *gin.Context) {
	snap, err := h.game.Snapshot(c.Request.Context())
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap.Game)
}

// Lock closes check-in
func (h *GameHandler) Lock(c *gin.Context) {
	if err := h.game.LockCheckin(c.Request.Context()); err != nil {
		h.handleGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkin_locked": true})
}

// Unlock reopens check-in
func (h *GameHandler) Unlock(c *gin.Context) {
	if err := h.game.UnlockCheckin(c.Request.Context()); err != nil {
		h.handleGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkin_locked": false})
}

// Spin starts the next round
func (h *GameHandler) Spin(c *gin.Context) {
	if !h.requireSpins(c) {
		return
	}
	payload, err := h.spins.RequestSpin(c.Request.Context())
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, payload)
}

// Commit retries the winner write after a failed commit
func (h *GameHandler) Commit(c *gin.Context) {
	if !h.requireSpins(c) {
		return
	}

	var req dto.CommitWinnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.spins.CommitWinner(c.Request.Context(), req.WinnerID, req.PrizeRank)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participant": p, "status": h.spins.Status()})
}

// Reset clears all winners and starts a new game
func (h *GameHandler) Reset(c *gin.Context) {
	if !h.requireSpins(c) {
		return
	}
	if err := h.spins.ResetGame(c.Request.Context()); err != nil {
		h.handleGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.spins.Status())
}

func (h *GameHandler) requireSpins(c *gin.Context) bool {
	if h.spins == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "spins are run by another instance"})
		return false
	}
	return true
}

func (h *GameHandler) handleGameError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("[GameHandler] Internal server error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
