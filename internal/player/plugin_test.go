package player

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/plugin"
)

type fakeExecutor struct {
	status   PluginStatus
	fail     map[string]string
	err      error
	requests []plugin.Request
}

func (f *fakeExecutor) Execute(ctx context.Context, p *plugin.Plugin, req *plugin.Request) (*plugin.Response, error) {
	f.requests = append(f.requests, *req)
	if f.err != nil {
		return nil, f.err
	}
	if msg, ok := f.fail[req.Action]; ok {
		return &plugin.Response{Success: false, Error: msg}, nil
	}
	if req.Action == ActionStatus {
		data, _ := json.Marshal(f.status)
		return &plugin.Response{Success: true, Data: data}, nil
	}
	return &plugin.Response{Success: true}, nil
}

func (f *fakeExecutor) actions() []string {
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Action
	}
	return out
}

func newTestPluginPlayer(exec *fakeExecutor, actions ...string) *PluginPlayer {
	if len(actions) == 0 {
		actions = []string{ActionStatus, ActionPlay, ActionPause, ActionSetVolume, ActionSetPosition, ActionOpen}
	}
	return &PluginPlayer{
		plugin:   &plugin.Plugin{Manifest: plugin.Manifest{Name: "playerctl", Actions: actions}},
		executor: exec,
		config:   json.RawMessage(`{"player":"vlc"}`),
	}
}

func TestPluginPlayer_Play(t *testing.T) {
	ctx := context.Background()

	t.Run("loaded", func(t *testing.T) {
		exec := &fakeExecutor{status: PluginStatus{Loaded: true, LengthMs: 1000}}
		require.NoError(t, newTestPluginPlayer(exec).Play(ctx))
		assert.Equal(t, []string{ActionStatus, ActionPlay}, exec.actions())
		assert.JSONEq(t, `{"player":"vlc"}`, string(exec.requests[1].Config))
	})

	t.Run("nothing loaded", func(t *testing.T) {
		exec := &fakeExecutor{}
		assert.ErrorIs(t, newTestPluginPlayer(exec).Play(ctx), ErrNoMedia)
		assert.Equal(t, []string{ActionStatus}, exec.actions())
	})

	t.Run("plugin refuses", func(t *testing.T) {
		exec := &fakeExecutor{
			status: PluginStatus{Loaded: true, LengthMs: 1000},
			fail:   map[string]string{ActionPlay: "No players found"},
		}
		err := newTestPluginPlayer(exec).Play(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "No players found")
	})

	t.Run("executor error", func(t *testing.T) {
		exec := &fakeExecutor{err: plugin.ErrTimeout}
		assert.ErrorIs(t, newTestPluginPlayer(exec).Play(ctx), plugin.ErrTimeout)
	})
}

func TestPluginPlayer_IsPlaying(t *testing.T) {
	exec := &fakeExecutor{status: PluginStatus{Playing: true, Loaded: true}}
	playing, err := newTestPluginPlayer(exec).IsPlaying(context.Background())
	require.NoError(t, err)
	assert.True(t, playing)
}

func TestPluginPlayer_SetVolume(t *testing.T) {
	exec := &fakeExecutor{}
	require.NoError(t, newTestPluginPlayer(exec).SetVolume(context.Background(), 75))
	require.Len(t, exec.requests, 1)
	assert.JSONEq(t, `{"volume":0.75}`, string(exec.requests[0].Params))
}

func TestPluginPlayer_SeekBy(t *testing.T) {
	ctx := context.Background()

	t.Run("forward", func(t *testing.T) {
		exec := &fakeExecutor{status: PluginStatus{Loaded: true, PositionMs: 30000, LengthMs: 100000}}
		require.NoError(t, newTestPluginPlayer(exec).SeekBy(ctx, 10*time.Second))
		assert.Equal(t, []string{ActionStatus, ActionSetPosition}, exec.actions())
		assert.JSONEq(t, `{"position_ms":40000}`, string(exec.requests[1].Params))
	})

	t.Run("suppressed near end", func(t *testing.T) {
		exec := &fakeExecutor{status: PluginStatus{Loaded: true, PositionMs: 99500, LengthMs: 100000}}
		require.NoError(t, newTestPluginPlayer(exec).SeekBy(ctx, 10*time.Second))
		assert.Equal(t, []string{ActionStatus}, exec.actions())
	})

	t.Run("no media", func(t *testing.T) {
		exec := &fakeExecutor{}
		assert.ErrorIs(t, newTestPluginPlayer(exec).SeekBy(ctx, 10*time.Second), ErrNoMedia)
	})
}

func TestPluginPlayer_Open(t *testing.T) {
	exec := &fakeExecutor{}
	require.NoError(t, newTestPluginPlayer(exec).Open(context.Background(), "/music/song.flac"))
	assert.JSONEq(t, `{"uri":"file:///music/song.flac"}`, string(exec.requests[0].Params))
}

func TestPluginPlayer_Unsupported(t *testing.T) {
	exec := &fakeExecutor{}
	p := newTestPluginPlayer(exec, ActionStatus, ActionPlay, ActionPause)

	err := p.Open(context.Background(), "/music/song.flac")
	assert.True(t, errors.Is(err, ErrUnsupported))
	assert.Empty(t, exec.requests)
}

func TestNewPluginPlayer_SendsConfig(t *testing.T) {
	ctx := context.Background()
	pl := &plugin.Plugin{Manifest: plugin.Manifest{Name: "music", Actions: []string{ActionPause, ActionSetVolume}}}

	t.Run("configured", func(t *testing.T) {
		exec := &fakeExecutor{}
		p := NewPluginPlayer(pl, exec, json.RawMessage(`{"application":"VLC"}`))

		require.NoError(t, p.Pause(ctx))
		require.NoError(t, p.SetVolume(ctx, 30))

		require.Len(t, exec.requests, 2)
		for _, req := range exec.requests {
			assert.JSONEq(t, `{"application":"VLC"}`, string(req.Config), req.Action)
		}
	})

	t.Run("no config", func(t *testing.T) {
		exec := &fakeExecutor{}
		require.NoError(t, NewPluginPlayer(pl, exec, nil).Pause(ctx))
		assert.Empty(t, exec.requests[0].Config)
	})
}
