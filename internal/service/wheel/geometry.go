// Package wheel holds the segment geometry shared by every client.
//
// Angles follow the canvas convention: 0 is 3 o'clock and angles grow
// clockwise. The pointer is fixed at the top of the wheel. Segment i spans
// [i, i+1)·(2π/n) measured from the wheel's own zero, and a rotation r turns
// the whole wheel clockwise by r radians.
package wheel

import (
	"fmt"
	"math"
	"sort"

	"github.com/yourusername/lucky-wheel/internal/domain/entity"
)

const (
	// FullCircle is 2π.
	FullCircle = 2 * math.Pi
	// PointerAngle is the fixed pointer position (top of the wheel).
	PointerAngle = -math.Pi / 2
)

// Normalize maps an angle into [0, 2π).
func Normalize(angle float64) float64 {
	a := math.Mod(angle, FullCircle)
	if a < 0 {
		a += FullCircle
	}
	if a >= FullCircle {
		a = 0
	}
	return a
}

// SegmentAngle returns the angular width of one of n segments.
func SegmentAngle(n int) float64 {
	mustHaveSegments(n)
	return FullCircle / float64(n)
}

// SegmentUnderPointer returns the index of the segment under the pointer
// when the wheel is rotated by r.
func SegmentUnderPointer(r float64, n int) int {
	mustHaveSegments(n)
	idx := int(math.Floor(Normalize(PointerAngle-r) / SegmentAngle(n)))
	return ((idx % n) + n) % n
}

// RotationForSegment returns the rotation that puts the angular center of
// segment index under the pointer after fullTurns extra revolutions.
func RotationForSegment(index, n int, fullTurns float64) float64 {
	mustHaveSegments(n)
	if index < 0 || index >= n {
		panic(fmt.Sprintf("wheel: segment index %d out of range [0,%d)", index, n))
	}
	center := (float64(index) + 0.5) * SegmentAngle(n)
	return fullTurns*FullCircle + Normalize(PointerAngle-center)
}

// FullTurnsOf returns the whole revolutions contained in a target rotation.
func FullTurnsOf(rotation float64) float64 {
	return math.Floor(rotation / FullCircle)
}

func mustHaveSegments(n int) {
	if n <= 0 {
		panic(fmt.Sprintf("wheel: segment count must be positive, got %d", n))
	}
}

// Segments returns the participants occupying wheel segments (active and
// winners) sorted by id. Every client derives the same order from the same
// set regardless of delivery order.
func Segments(participants []entity.Participant) []entity.Participant {
	segments := make([]entity.Participant, 0, len(participants))
	for _, p := range participants {
		if p.OnWheel() {
			segments = append(segments, p)
		}
	}
	sort.Slice(segments, func(i, j int) bool {
		return segments[i].ID < segments[j].ID
	})
	return segments
}

// IndexOf returns the segment index of the participant with id, or -1.
func IndexOf(segments []entity.Participant, id string) int {
	for i := range segments {
		if segments[i].ID == id {
			return i
		}
	}
	return -1
}
