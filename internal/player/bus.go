package player

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	mprisPath     = "/org/mpris/MediaPlayer2"
	mprisPrefix   = "org.mpris.MediaPlayer2."
	noTrackPath   = "/org/mpris/MediaPlayer2/TrackList/NoTrack"
	listNamesCall = "org.freedesktop.DBus.ListNames"
	playerMember  = "org.mpris.MediaPlayer2.Player."
)

// Bus is the D-Bus surface of one MPRIS player object.
//
//go:generate mockgen -destination=mocks/bus_mock.go -package=mocks github.com/ayusman/mudra/internal/player Bus
type Bus interface {
	// Invoke calls a method on the player object, e.g. "org.mpris.MediaPlayer2.Player.Play".
	Invoke(ctx context.Context, method string, args []any) error

	// Property reads a property, e.g. "org.mpris.MediaPlayer2.Player.Position".
	Property(name string) (dbus.Variant, error)

	// SetProperty writes a property.
	SetProperty(name string, value dbus.Variant) error

	// Close releases the bus connection.
	Close() error
}

// StdBus is the real Bus on the session bus.
type StdBus struct {
	conn *dbus.Conn
	obj  dbus.BusObject
	dest string
}

// NewStdBus connects to the session bus and binds to the MPRIS player dest,
// e.g. "vlc" or "org.mpris.MediaPlayer2.vlc". An empty dest picks the first
// MPRIS player on the bus.
func NewStdBus(dest string) (*StdBus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("session bus connection failed: %w", err)
	}

	dest, err = resolvePlayer(conn, dest)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &StdBus{
		conn: conn,
		obj:  conn.Object(dest, dbus.ObjectPath(mprisPath)),
		dest: dest,
	}, nil
}

func resolvePlayer(conn *dbus.Conn, dest string) (string, error) {
	if dest != "" {
		if !strings.HasPrefix(dest, mprisPrefix) {
			dest = mprisPrefix + dest
		}
		return dest, nil
	}

	var names []string
	if err := conn.BusObject().Call(listNamesCall, 0).Store(&names); err != nil {
		return "", fmt.Errorf("failed to list bus names: %w", err)
	}
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			return name, nil
		}
	}
	return "", fmt.Errorf("no MPRIS player on the session bus")
}

// Destination returns the bus name of the bound player.
func (b *StdBus) Destination() string {
	return b.dest
}

func (b *StdBus) Invoke(ctx context.Context, method string, args []any) error {
	return b.obj.CallWithContext(ctx, method, 0, args...).Err
}

func (b *StdBus) Property(name string) (dbus.Variant, error) {
	return b.obj.GetProperty(name)
}

func (b *StdBus) SetProperty(name string, value dbus.Variant) error {
	return b.obj.SetProperty(name, value)
}

func (b *StdBus) Close() error {
	return b.conn.Close()
}
