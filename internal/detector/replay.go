package detector

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Frame is the set of hands observed during one camera tick.
type Frame struct {
	Hands     []HandLandmarks
	Timestamp time.Time
}

// record is one line of a landmark recording.
type record struct {
	TimestampMs int64      `json:"timestamp_ms"`
	Hands       []jsonHand `json:"hands"`
}

// Replay plays back frames from a JSON-lines landmark recording.
// Each line has the form {"timestamp_ms":1700000000000,"hands":[{"handedness":"Left","points":[...]}]}.
type Replay struct {
	file    io.Closer
	scanner *bufio.Scanner
	line    int
	mu      sync.Mutex
}

// OpenReplay opens a recording file for playback.
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	return NewReplay(f), nil
}

// NewReplay reads a recording from r. If r is an io.Closer it is closed by Close.
func NewReplay(r io.Reader) *Replay {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	rp := &Replay{scanner: sc}
	if c, ok := r.(io.Closer); ok {
		rp.file = c
	}
	return rp
}

// Next returns the next recorded frame, skipping blank lines.
// It returns ErrEndOfStream when the recording is exhausted.
func (r *Replay) Next() (Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.scanner.Scan() {
		r.line++
		raw := r.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return Frame{}, fmt.Errorf("replay line %d: %w", r.line, err)
		}

		hands, err := convertHands(rec.Hands)
		if err != nil {
			return Frame{}, fmt.Errorf("replay line %d: %w", r.line, err)
		}

		return Frame{Hands: hands, Timestamp: time.UnixMilli(rec.TimestampMs)}, nil
	}

	if err := r.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("read replay: %w", err)
	}
	return Frame{}, ErrEndOfStream
}

// Close releases the underlying file.
func (r *Replay) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

// Recorder appends frames to a JSON-lines recording readable by Replay.
type Recorder struct {
	w   io.Writer
	enc *json.Encoder
	mu  sync.Mutex
}

// NewRecorder creates a Recorder writing to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: w, enc: json.NewEncoder(w)}
}

// Write appends one frame.
func (r *Recorder) Write(f Frame) error {
	rec := record{
		TimestampMs: f.Timestamp.UnixMilli(),
		Hands:       make([]jsonHand, len(f.Hands)),
	}
	for i, h := range f.Hands {
		rec.Hands[i] = jsonHand{
			Points:     h.Points[:],
			Handedness: string(h.Handedness),
			Score:      h.Score,
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(rec)
}

// Close closes the underlying writer when it is an io.Closer.
func (r *Recorder) Close() error {
	if c, ok := r.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
