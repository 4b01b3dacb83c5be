package narration

import "time"

// DefaultDoubleTapWindow is the debounce window between two taps that make a
// double tap.
const DefaultDoubleTapWindow = 300 * time.Millisecond

// IsDoubleTap reports whether a tap at now follows the tap at last closely
// enough to count as a double tap. A zero last never does.
func IsDoubleTap(last, now time.Time, window time.Duration) bool {
	if last.IsZero() || now.Before(last) {
		return false
	}
	return now.Sub(last) <= window
}

// TapDetector classifies taps as single or double.
type TapDetector struct {
	Window time.Duration
	last   time.Time
}

// NewTapDetector returns a detector using window, or the default window when
// window is not positive.
func NewTapDetector(window time.Duration) *TapDetector {
	if window <= 0 {
		window = DefaultDoubleTapWindow
	}
	return &TapDetector{Window: window}
}

// Tap records a tap and reports whether it completes a double tap. The tap
// that completes a double tap is consumed, so a third quick tap starts over.
func (d *TapDetector) Tap(now time.Time) bool {
	if IsDoubleTap(d.last, now, d.Window) {
		d.last = time.Time{}
		return true
	}
	d.last = now
	return false
}

// Reset forgets the previous tap.
func (d *TapDetector) Reset() {
	d.last = time.Time{}
}
