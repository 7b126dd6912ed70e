package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/player"
	"github.com/ayusman/mudra/internal/store"
)

func TestValidateApp(t *testing.T) {
	// fx.ValidateApp checks that there are no missing or cyclic dependencies
	err := fx.ValidateApp(AppOptions(Options{ConfigDir: t.TempDir()})...)
	require.NoError(t, err)
}

func TestNewConfig_Overrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := newConfig(Options{
		ConfigDir:  t.TempDir(),
		ReplayFile: "frames.jsonl",
		Backend:    config.BackendMemory,
	})
	require.NoError(t, err)

	assert.Equal(t, config.SourceReplay, cfg.Detector.Source)
	assert.Equal(t, "frames.jsonl", cfg.Detector.ReplayFile)
	assert.Equal(t, config.BackendMemory, cfg.Player.Backend)

	_, err = newConfig(Options{ConfigDir: t.TempDir(), Backend: "winamp"})
	assert.Error(t, err)
}

func TestNewPlayer_Memory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Player.Backend = config.BackendMemory

	lc := fxtest.NewLifecycle(t)
	p, err := newPlayer(lc, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &player.Memory{}, p)

	lc.RequireStart().RequireStop()
}

func TestNewPlayer_MissingPlugin(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Player.Backend = config.BackendPlugin
	cfg.Player.PluginDir = t.TempDir()
	cfg.Player.PluginName = "playerctl"

	_, err := newPlayer(fxtest.NewLifecycle(t), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewSource_Replay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"timestamp_ms":1700000000000,"hands":[]}`+"\n"), 0644))

	cfg := config.DefaultConfig()
	cfg.Detector.Source = config.SourceReplay
	cfg.Detector.ReplayFile = path

	src, err := newSource(cfg, zap.NewNop())
	require.NoError(t, err)
	defer src.Close()

	frame, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1700000000000), frame.Timestamp)

	_, err = src.Next()
	assert.ErrorIs(t, err, detector.ErrEndOfStream)
}

func TestRun_ReplayToCompletion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping full pipeline run in short mode")
	}

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("MUDRA_SERVER_ENABLED", "false")
	t.Setenv("MUDRA_LIBRARY_WATCH", "false")

	var buf bytes.Buffer
	rec := detector.NewRecorder(&buf)
	base := time.UnixMilli(1700000000000)
	require.NoError(t, rec.Write(detector.Frame{
		Hands:     []detector.HandLandmarks{detector.RaisedFingersLandmarks(detector.Left, 2)},
		Timestamp: base,
	}))
	require.NoError(t, rec.Write(detector.Frame{
		Hands: []detector.HandLandmarks{
			detector.RaisedFingersLandmarks(detector.Left, 2),
			detector.PinchLandmarks(0.1),
		},
		Timestamp: base.Add(100 * time.Millisecond),
	}))
	// Trailing empty frames keep the pipeline alive while the action is executed.
	for i := 1; i <= 15; i++ {
		require.NoError(t, rec.Write(detector.Frame{Timestamp: base.Add(100*time.Millisecond + time.Duration(i)*66*time.Millisecond)}))
	}
	replay := filepath.Join(home, "frames.jsonl")
	require.NoError(t, os.WriteFile(replay, buf.Bytes(), 0644))

	configDir := filepath.Join(home, ".mudra")
	require.NoError(t, run(Options{ConfigDir: configDir, ReplayFile: replay, Backend: config.BackendMemory}))

	st, err := store.New(filepath.Join(configDir, "mudra.db"))
	require.NoError(t, err)
	defer st.Close()

	dispatches, err := st.Dispatches().List(0)
	require.NoError(t, err)
	require.Len(t, dispatches, 1)
	assert.Equal(t, "set_volume", dispatches[0].Kind)
	assert.Equal(t, int64(100), dispatches[0].Value)
	assert.True(t, dispatches[0].Success)
}

func TestStatusURL(t *testing.T) {
	cfg := config.DefaultConfig()

	cfg.Server.Addr = ":8080"
	assert.Equal(t, "http://localhost:8080/", statusURL(cfg))

	cfg.Server.Addr = "127.0.0.1:9000"
	assert.Equal(t, "http://127.0.0.1:9000/", statusURL(cfg))

	cfg.Server.Enabled = false
	assert.Empty(t, statusURL(cfg))
}

func TestHistoryCommand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	configDir := filepath.Join(home, ".mudra")

	st, err := store.New(filepath.Join(configDir, "mudra.db"))
	require.NoError(t, err)
	require.NoError(t, st.Dispatches().Create(&store.Dispatch{Kind: "seek", Value: -10000, Mode: 3, Success: true, DispatchedAt: time.Now()}))
	require.NoError(t, st.Dispatches().Create(&store.Dispatch{Kind: "load_track", Mode: 4, Error: "library is empty", DispatchedAt: time.Now().Add(time.Second)}))
	require.NoError(t, st.Close())

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"history", "--config", configDir, "-n", "5"})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "load_track")
	assert.Contains(t, lines[0], "failed: library is empty")
	assert.Contains(t, lines[1], "seek")
	assert.Contains(t, lines[1], "-10000")
}

func TestScanCommand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	music := filepath.Join(home, "Music")
	require.NoError(t, os.MkdirAll(music, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(music, "song.mp3"), []byte("x"), 0644))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"scan", "--config", filepath.Join(home, ".mudra")})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "1 added, 0 removed, 1 tracks")
}
