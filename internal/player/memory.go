package player

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process player that only tracks state. It backs the dry-run
// "memory" backend and stands in for a real player in tests.
type Memory struct {
	mu       sync.Mutex
	uri      string
	playing  bool
	volume   int
	position time.Duration
	length   time.Duration
	opened   []string
}

// NewMemory creates an empty Memory player at full volume.
func NewMemory() *Memory {
	return &Memory{volume: 100}
}

// Load sets the current track without recording an Open call.
func (m *Memory) Load(uri string, length time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uri = uri
	m.length = length
	m.position = 0
}

// SetPosition moves the playback position.
func (m *Memory) SetPosition(position time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = position
}

// MemoryState is a copy of a Memory player's state.
type MemoryState struct {
	URI      string
	Playing  bool
	Volume   int
	Position time.Duration
	Length   time.Duration
	Opened   []string
}

// State returns a copy of the current state.
func (m *Memory) State() MemoryState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MemoryState{
		URI:      m.uri,
		Playing:  m.playing,
		Volume:   m.volume,
		Position: m.position,
		Length:   m.length,
		Opened:   append([]string(nil), m.opened...),
	}
}

func (m *Memory) IsPlaying(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing, nil
}

func (m *Memory) Play(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uri == "" {
		return ErrNoMedia
	}
	m.playing = true
	return nil
}

func (m *Memory) Pause(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
	return nil
}

func (m *Memory) SetVolume(ctx context.Context, percent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = ClampVolume(percent)
	return nil
}

func (m *Memory) SeekBy(ctx context.Context, offset time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uri == "" {
		return ErrNoMedia
	}
	target, ok, err := SeekTarget(m.position, m.length, offset)
	if err != nil {
		return err
	}
	if ok {
		m.position = target
	}
	return nil
}

// Open loads uri with an unknown length of one hour and stops playback.
// 1% of an hour is 36s, so a 10s SeekBy on an opened track is always
// suppressed; use Load to give a track a real length.
func (m *Memory) Open(ctx context.Context, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uri = uri
	m.length = time.Hour
	m.position = 0
	m.playing = false
	m.opened = append(m.opened, uri)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
