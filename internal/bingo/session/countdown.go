package session

import "time"

// Remaining returns the whole seconds left until deadline according to
// serverNow, clamped at zero. Callers recompute it every tick from the stored
// deadline instead of decrementing a counter, so timer drift self-corrects
// each tick rather than accumulating.
func Remaining(deadline, serverNow time.Time) int {
	if deadline.IsZero() {
		return 0
	}
	remaining := int(deadline.Sub(serverNow).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}
