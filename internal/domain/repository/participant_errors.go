package repository

import (
	"fmt"

	apperrors "github.com/yourusername/lucky-wheel/internal/pkg/errors"
)

var (
	// ErrDuplicateName means a participant with the same name already checked in.
	ErrDuplicateName = fmt.Errorf("%w: participant name already exists", apperrors.ErrConflict)
	// ErrNameTaken means the requested new name belongs to another participant.
	ErrNameTaken = fmt.Errorf("%w: name is already taken", apperrors.ErrConflict)
	// ErrWinnerNotDeletable means the participant already holds a prize.
	ErrWinnerNotDeletable = fmt.Errorf("%w: winners cannot be deleted", apperrors.ErrConflict)
	// ErrNotActive means the participant is no longer eligible to win.
	ErrNotActive = fmt.Errorf("%w: participant is not active", apperrors.ErrConflict)
)
