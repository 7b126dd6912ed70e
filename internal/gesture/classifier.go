package gesture

import (
	"math"
	"time"

	"github.com/ayusman/mudra/internal/detector"
)

// Classifier turns a right-hand pose into an action under a given mode.
type Classifier struct {
	cfg Config
}

// NewClassifier creates a Classifier with the given thresholds.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify returns the action the hand requests under mode, if any.
//
//   - ModePlayPause: the thumb segment (tip to IP) crosses the index segment (tip to DIP).
//   - ModeVolume: thumb-to-index tip distance, mapped onto 0..100 percent.
//   - ModeSeek: index tip near the left edge seeks forward, near the right edge rewinds.
//   - ModeLoadTrack: any non-thumb finger raised.
func (c *Classifier) Classify(hand *detector.HandLandmarks, mode Mode, ts time.Time) (Action, bool) {
	if hand == nil {
		return Action{}, false
	}

	a := Action{Mode: mode, Timestamp: ts}

	switch mode {
	case ModePlayPause:
		p := hand.Points
		if !SegmentsIntersect(
			project(p[detector.ThumbTip]), project(p[detector.ThumbIP]),
			project(p[detector.IndexTip]), project(p[detector.IndexDIP]),
			c.cfg.IntersectEpsilon,
		) {
			return Action{}, false
		}
		a.Kind = ActionPlayPause

	case ModeVolume:
		d := distance2D(hand.Points[detector.ThumbTip], hand.Points[detector.IndexTip])
		a.Kind = ActionSetVolume
		a.Volume = c.VolumeForDistance(d)

	case ModeSeek:
		x := hand.Points[detector.IndexTip].X
		switch {
		case x < c.cfg.SeekForwardBelow:
			a.SeekOffset = c.cfg.SeekOffset
		case x > c.cfg.SeekRewindAbove:
			a.SeekOffset = -c.cfg.SeekOffset
		default:
			return Action{}, false
		}
		a.Kind = ActionSeek

	case ModeLoadTrack:
		if !Fingers(hand).Any() {
			return Action{}, false
		}
		a.Kind = ActionLoadTrack

	default:
		return Action{}, false
	}

	return a, true
}

// VolumeForDistance linearly maps a thumb-to-index distance onto 0..100 percent,
// clamping distances outside the configured range to the nearest bound.
func (c *Classifier) VolumeForDistance(d float64) int {
	lo, hi := c.cfg.VolumeMinDistance, c.cfg.VolumeMaxDistance
	switch {
	case d <= lo:
		return 0
	case d >= hi:
		return 100
	}
	return int(math.Round((d - lo) / (hi - lo) * 100))
}
