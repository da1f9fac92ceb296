package spectator

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// LogRenderer writes observer output to the log. Frames are throttled to
// one line per interval; countdown ticks are always written.
type LogRenderer struct {
	clock    clockwork.Clock
	interval time.Duration
	labels   func(segment int) string

	mu       sync.Mutex
	lastLine time.Time
}

// NewLogRenderer creates a renderer. labels maps a segment index to its
// label and may be nil.
func NewLogRenderer(clock clockwork.Clock, interval time.Duration, labels func(segment int) string) *LogRenderer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LogRenderer{clock: clock, interval: interval, labels: labels}
}

// RenderCountdown logs one countdown tick
func (r *LogRenderer) RenderCountdown(secondsLeft int) {
	log.Info().Int("seconds_left", secondsLeft).Msg("[Spectator] Countdown")
}

// RenderFrame logs the segment under the pointer
func (r *LogRenderer) RenderFrame(rotation float64, segment int) {
	now := r.clock.Now()

	r.mu.Lock()
	if !r.lastLine.IsZero() && now.Sub(r.lastLine) < r.interval {
		r.mu.Unlock()
		return
	}
	r.lastLine = now
	r.mu.Unlock()

	ev := log.Debug().
		Float64("rotation_deg", math.Round(rotation*180/math.Pi)).
		Int("segment", segment)
	if r.labels != nil && segment >= 0 {
		ev = ev.Str("label", r.labels(segment))
	}
	ev.Msg("[Spectator] Frame")
}
