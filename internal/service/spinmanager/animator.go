package spinmanager

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yourusername/lucky-wheel/internal/service/wheel"
)

// FrameFunc receives the displayed rotation and progress in [0,1].
type FrameFunc func(rotation, progress float64)

// Animator drives a spin from rotation 0 to an absolute target with
// ease-out-cubic over a fixed duration.
type Animator struct {
	clock    clockwork.Clock
	duration time.Duration
	frame    time.Duration
}

// NewAnimator creates an animator
func NewAnimator(clock clockwork.Clock, duration, frame time.Duration) *Animator {
	if frame <= 0 {
		frame = 16 * time.Millisecond
	}
	return &Animator{clock: clock, duration: duration, frame: frame}
}

// Run blocks until the animation completes or ctx is cancelled. The last
// frame always reports exactly target.
func (a *Animator) Run(ctx context.Context, target float64, onFrame FrameFunc) error {
	if onFrame == nil {
		onFrame = func(float64, float64) {}
	}

	start := a.clock.Now()
	onFrame(0, 0)
	if a.duration <= 0 {
		onFrame(target, 1)
		return nil
	}

	ticker := a.clock.NewTicker(a.frame)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			progress := float64(a.clock.Since(start)) / float64(a.duration)
			if progress >= 1 {
				onFrame(target, 1)
				return nil
			}
			onFrame(wheel.DisplayedRotation(target, progress), progress)
		}
	}
}
