// Package gesture interprets per-frame hand landmarks as media player commands.
//
// The left hand selects a mode by the number of raised fingers; the right hand
// performs the gesture for that mode. Accepted actions are rate-limited by a
// single debounce gate.
package gesture

import "github.com/ayusman/mudra/internal/detector"

// State is everything the interpreter carries from one frame to the next.
type State struct {
	Mode Mode
	Gate Gate
}

// Interpreter maps frames to actions. It holds only configuration; all
// per-frame state is passed in and returned explicitly.
type Interpreter struct {
	cfg        Config
	classifier *Classifier
}

// NewInterpreter creates an Interpreter with the given thresholds.
func NewInterpreter(cfg Config) *Interpreter {
	return &Interpreter{
		cfg:        cfg,
		classifier: NewClassifier(cfg),
	}
}

// Config returns the interpreter thresholds.
func (in *Interpreter) Config() Config {
	return in.cfg
}

// InitialState returns the state before any frame: play/pause mode and an open gate.
func (in *Interpreter) InitialState() State {
	return State{Mode: ModePlayPause, Gate: NewGate(in.cfg.Debounce)}
}

// Step processes one frame and returns the next state and the accepted action, if any.
//
// The right hand is classified under the mode latched at the start of the frame;
// a mode change signalled by the left hand in this frame applies from the next one.
// A candidate is only computed when the gate would accept it, and accepting it
// closes the gate for Config.Debounce.
func (in *Interpreter) Step(state State, frame detector.Frame) (State, *Action) {
	if !state.Mode.Valid() {
		state.Mode = ModePlayPause
	}
	if state.Gate.Interval == 0 {
		state.Gate.Interval = in.cfg.Debounce
	}

	current := state.Mode
	next := state

	if left := detector.FindHand(frame.Hands, detector.Left); left != nil {
		fs := Fingers(left)
		next.Mode = SelectMode(current, &fs)
	}

	right := detector.FindHand(frame.Hands, detector.Right)
	if right == nil || !state.Gate.Allow(frame.Timestamp) {
		return next, nil
	}

	action, ok := in.classifier.Classify(right, current, frame.Timestamp)
	if !ok {
		return next, nil
	}

	next.Gate = next.Gate.Accept(frame.Timestamp)
	return next, &action
}
