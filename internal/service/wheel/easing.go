package wheel

// EaseOutCubic is 1 - (1-t)^3 for t clamped to [0,1].
func EaseOutCubic(t float64) float64 {
	t = clamp01(t)
	inv := 1 - t
	return 1 - inv*inv*inv
}

// DisplayedRotation is the rotation shown at progress t of a spin that
// starts at 0 and ends exactly on target.
func DisplayedRotation(target, t float64) float64 {
	if t >= 1 {
		return target
	}
	return target * EaseOutCubic(t)
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
