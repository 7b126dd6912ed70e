package gesture

import "github.com/ayusman/mudra/internal/detector"

// Finger identifies one of the four tracked non-thumb fingers.
type Finger int

const (
	Index Finger = iota
	Middle
	Ring
	Pinky
)

// fingerJoints maps each finger to its tip and the joint directly below it.
var fingerJoints = [4]struct{ tip, joint int }{
	Index:  {detector.IndexTip, detector.IndexDIP},
	Middle: {detector.MiddleTip, detector.MiddleDIP},
	Ring:   {detector.RingTip, detector.RingDIP},
	Pinky:  {detector.PinkyTip, detector.PinkyDIP},
}

// FingerState records which of the four non-thumb fingers are raised.
type FingerState [4]bool

// Fingers derives the raised fingers of a hand. A finger is raised when its tip
// sits above (smaller Y than) the joint below it; Y grows downward in the image.
func Fingers(hand *detector.HandLandmarks) FingerState {
	var fs FingerState
	if hand == nil {
		return fs
	}
	for f, j := range fingerJoints {
		fs[f] = hand.Points[j.tip].Y < hand.Points[j.joint].Y
	}
	return fs
}

// Raised reports whether finger f is raised.
func (fs FingerState) Raised(f Finger) bool {
	return fs[f]
}

// Count returns the number of raised fingers.
func (fs FingerState) Count() int {
	n := 0
	for _, up := range fs {
		if up {
			n++
		}
	}
	return n
}

// Any reports whether at least one finger is raised.
func (fs FingerState) Any() bool {
	return fs.Count() > 0
}
