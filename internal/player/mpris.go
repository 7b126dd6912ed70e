package player

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

// MPRIS drives a desktop media player over the MPRIS D-Bus interface.
type MPRIS struct {
	bus    Bus
	logger *zap.Logger
}

// NewMPRIS creates an MPRIS player on bus.
func NewMPRIS(bus Bus, logger *zap.Logger) *MPRIS {
	return &MPRIS{bus: bus, logger: logger.Named("mpris")}
}

// track is the subset of MPRIS metadata the player needs.
type track struct {
	id     dbus.ObjectPath
	length time.Duration
}

func (p *MPRIS) IsPlaying(ctx context.Context) (bool, error) {
	v, err := p.bus.Property(playerMember + "PlaybackStatus")
	if err != nil {
		return false, fmt.Errorf("read playback status: %w", err)
	}
	status, ok := v.Value().(string)
	if !ok {
		return false, fmt.Errorf("unexpected playback status type %s", v.Signature())
	}
	return status == "Playing", nil
}

// Play resumes playback, or returns ErrNoMedia when the player has no track.
func (p *MPRIS) Play(ctx context.Context) error {
	if _, err := p.currentTrack(); err != nil {
		return err
	}
	return p.call(ctx, "Play")
}

func (p *MPRIS) Pause(ctx context.Context) error {
	return p.call(ctx, "Pause")
}

// SetVolume maps percent onto the MPRIS 0..1 volume range.
func (p *MPRIS) SetVolume(ctx context.Context, percent int) error {
	volume := float64(ClampVolume(percent)) / 100
	if err := p.bus.SetProperty(playerMember+"Volume", dbus.MakeVariant(volume)); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}
	return nil
}

// SeekBy sets an absolute position computed by SeekTarget. Suppressed seeks
// are skipped without error.
func (p *MPRIS) SeekBy(ctx context.Context, offset time.Duration) error {
	t, err := p.currentTrack()
	if err != nil {
		return err
	}

	v, err := p.bus.Property(playerMember + "Position")
	if err != nil {
		return fmt.Errorf("read position: %w", err)
	}
	us, ok := asInt64(v.Value())
	if !ok {
		return fmt.Errorf("unexpected position type %s", v.Signature())
	}
	position := time.Duration(us) * time.Microsecond

	target, ok, err := SeekTarget(position, t.length, offset)
	if err != nil {
		return err
	}
	if !ok {
		p.logger.Debug("seek suppressed",
			zap.Duration("position", position),
			zap.Duration("length", t.length),
			zap.Duration("offset", offset),
		)
		return nil
	}

	return p.call(ctx, "SetPosition", t.id, target.Microseconds())
}

// Open loads uri with OpenUri. Plain paths are turned into file URIs.
func (p *MPRIS) Open(ctx context.Context, uri string) error {
	return p.call(ctx, "OpenUri", FileURI(uri))
}

func (p *MPRIS) Close() error {
	return p.bus.Close()
}

func (p *MPRIS) call(ctx context.Context, method string, args ...any) error {
	if err := p.bus.Invoke(ctx, playerMember+method, args); err != nil {
		return fmt.Errorf("mpris %s: %w", method, err)
	}
	return nil
}

// currentTrack reads the track id and length from Metadata. A missing track
// id, the NoTrack path or a non-positive length mean nothing is loaded.
func (p *MPRIS) currentTrack() (track, error) {
	v, err := p.bus.Property(playerMember + "Metadata")
	if err != nil {
		return track{}, fmt.Errorf("read metadata: %w", err)
	}
	meta, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return track{}, ErrNoMedia
	}

	var t track
	if id, ok := meta["mpris:trackid"]; ok {
		switch val := id.Value().(type) {
		case dbus.ObjectPath:
			t.id = val
		case string:
			t.id = dbus.ObjectPath(val)
		}
	}
	if t.id == "" || t.id == noTrackPath {
		return track{}, ErrNoMedia
	}

	if l, ok := meta["mpris:length"]; ok {
		if us, ok := asInt64(l.Value()); ok {
			t.length = time.Duration(us) * time.Microsecond
		}
	}
	if t.length <= 0 {
		return track{}, ErrNoMedia
	}
	return t, nil
}

// asInt64 accepts the integer types players use for microsecond values.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
