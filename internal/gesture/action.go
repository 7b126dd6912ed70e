package gesture

import (
	"fmt"
	"time"
)

// ActionKind identifies the media command an action requests.
type ActionKind string

const (
	ActionPlayPause ActionKind = "play_pause"
	ActionSetVolume ActionKind = "set_volume"
	ActionSeek      ActionKind = "seek"
	ActionLoadTrack ActionKind = "load_track"
)

// Action is a media command produced by a recognized gesture.
type Action struct {
	Kind ActionKind
	// Volume is the target volume in percent (0..100) for ActionSetVolume.
	Volume int
	// SeekOffset is the signed seek distance for ActionSeek; positive seeks forward.
	SeekOffset time.Duration
	// Mode is the mode the gesture was interpreted under.
	Mode Mode
	// Timestamp is the time of the frame that produced the action.
	Timestamp time.Time
}

// String describes the action for logs and status displays.
func (a Action) String() string {
	switch a.Kind {
	case ActionSetVolume:
		return fmt.Sprintf("volume %d%%", a.Volume)
	case ActionSeek:
		if a.SeekOffset >= 0 {
			return fmt.Sprintf("seek +%s", a.SeekOffset)
		}
		return fmt.Sprintf("seek %s", a.SeekOffset)
	case ActionPlayPause:
		return "play/pause"
	case ActionLoadTrack:
		return "load track"
	default:
		return string(a.Kind)
	}
}

// Value returns the numeric argument of the action: volume percent for
// ActionSetVolume, offset in milliseconds for ActionSeek, otherwise 0.
func (a Action) Value() int64 {
	switch a.Kind {
	case ActionSetVolume:
		return int64(a.Volume)
	case ActionSeek:
		return a.SeekOffset.Milliseconds()
	default:
		return 0
	}
}
