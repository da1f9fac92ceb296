package spinmanager

import (
	"fmt"

	apperrors "github.com/yourusername/lucky-wheel/internal/pkg/errors"
)

// Precondition errors. They never change orchestrator state.
var (
	ErrCheckinUnlocked       = fmt.Errorf("%w: check-in must be locked before spinning", apperrors.ErrConflict)
	ErrNotEnoughParticipants = fmt.Errorf("%w: at least two active participants are required", apperrors.ErrConflict)
	ErrGameComplete          = fmt.Errorf("%w: all prizes have been awarded", apperrors.ErrConflict)
	ErrSpinInProgress        = fmt.Errorf("%w: a spin is already in progress", apperrors.ErrConflict)
)

var (
	// ErrWinnerRemoved means the selected participant disappeared before the commit.
	ErrWinnerRemoved = fmt.Errorf("%w: selected winner no longer exists", apperrors.ErrConflict)
	// ErrNoPendingCommit means there is no failed commit to retry.
	ErrNoPendingCommit = fmt.Errorf("%w: no failed commit to retry", apperrors.ErrConflict)
	// ErrPendingMismatch means the retry names a different winner or prize than the failed commit.
	ErrPendingMismatch = fmt.Errorf("%w: winner and prize rank must match the failed commit", apperrors.ErrConflict)
	// ErrInvalidPrizeRank means a prize rank outside 1..3.
	ErrInvalidPrizeRank = fmt.Errorf("%w: prize rank must be between 1 and 3", apperrors.ErrValidation)
)
