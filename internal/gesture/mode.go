package gesture

import "fmt"

// Mode selects how right-hand gestures are interpreted. It is chosen by the
// number of raised fingers on the left hand and stays latched until changed.
type Mode int

const (
	ModePlayPause Mode = 1
	ModeVolume    Mode = 2
	ModeSeek      Mode = 3
	ModeLoadTrack Mode = 4
)

// String returns a short human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case ModePlayPause:
		return "play/pause"
	case ModeVolume:
		return "volume"
	case ModeSeek:
		return "seek"
	case ModeLoadTrack:
		return "load track"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the four modes.
func (m Mode) Valid() bool {
	return m >= ModePlayPause && m <= ModeLoadTrack
}

// SelectMode returns the mode latched after observing the left hand.
// A left hand with n > 0 raised fingers selects mode n; a fist or a missing
// left hand (nil) keeps the current mode.
func SelectMode(current Mode, left *FingerState) Mode {
	if left == nil {
		return current
	}
	if n := left.Count(); n > 0 {
		return Mode(n)
	}
	return current
}
