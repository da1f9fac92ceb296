package service

import (
	"fmt"

	"github.com/yourusername/lucky-wheel/internal/domain/entity"
	apperrors "github.com/yourusername/lucky-wheel/internal/pkg/errors"
)

var (
	// ErrInvalidName means the name is empty or outside the allowed length.
	ErrInvalidName = fmt.Errorf("%w: name must be %d-%d characters", apperrors.ErrValidation, entity.MinNameLength, entity.MaxNameLength)
	// ErrCheckinLocked means the admin closed check-in.
	ErrCheckinLocked = fmt.Errorf("%w: check-in is locked", apperrors.ErrConflict)
)
