// Package config loads mudra's settings from ~/.mudra/config.yaml with
// MUDRA_* environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/library"
)

const (
	dirName   = ".mudra"
	fileName  = "config.yaml"
	envPrefix = "MUDRA"
)

// Detector sources.
const (
	SourceMediaPipe = "mediapipe"
	SourceReplay    = "replay"
)

// Player backends.
const (
	BackendMPRIS  = "mpris"
	BackendPlugin = "plugin"
	BackendMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	Camera      CameraConfig      `mapstructure:"camera"`
	Detector    DetectorConfig    `mapstructure:"detector"`
	Interpreter InterpreterConfig `mapstructure:"interpreter"`
	Player      PlayerConfig      `mapstructure:"player"`
	Library     LibraryConfig     `mapstructure:"library"`
	Server      ServerConfig      `mapstructure:"server"`
	Store       StoreConfig       `mapstructure:"store"`
	Tray        TrayConfig        `mapstructure:"tray"`
	Log         LogConfig         `mapstructure:"log"`
}

// CameraConfig configures frame capture
type CameraConfig struct {
	Device int  `mapstructure:"device"`
	FPS    int  `mapstructure:"fps"`
	Width  int  `mapstructure:"width"`
	Height int  `mapstructure:"height"`
	Mirror bool `mapstructure:"mirror"`
	// MotionGate skips detection while the scene is still and ticks at IdleFPS.
	MotionGate      bool    `mapstructure:"motion_gate"`
	IdleFPS         int     `mapstructure:"idle_fps"`
	MotionThreshold float64 `mapstructure:"motion_threshold"` // percent of changed pixels
}

// DetectorConfig configures where hand landmarks come from
type DetectorConfig struct {
	Source          string  `mapstructure:"source"` // mediapipe or replay
	ReplayFile      string  `mapstructure:"replay_file"`
	Script          string  `mapstructure:"script"`
	MaxHands        int     `mapstructure:"max_hands"`
	MinConfidence   float64 `mapstructure:"min_confidence"`
	MinTrackingConf float64 `mapstructure:"min_tracking_conf"`
	// ResponseTimeout kills a MediaPipe service that stalls on a frame.
	ResponseTimeout time.Duration `mapstructure:"response_timeout"`
}

// InterpreterConfig holds the gesture thresholds
type InterpreterConfig struct {
	Debounce          time.Duration `mapstructure:"debounce"`
	VolumeMinDistance float64       `mapstructure:"volume_min_distance"`
	VolumeMaxDistance float64       `mapstructure:"volume_max_distance"`
	SeekForwardBelow  float64       `mapstructure:"seek_forward_below"`
	SeekRewindAbove   float64       `mapstructure:"seek_rewind_above"`
	SeekOffset        time.Duration `mapstructure:"seek_offset"`
	IntersectEpsilon  float64       `mapstructure:"intersect_epsilon"`
}

// PlayerConfig selects and configures the media player backend
type PlayerConfig struct {
	Backend    string        `mapstructure:"backend"` // mpris, plugin or memory
	MPRISName  string        `mapstructure:"mpris_name"`
	PluginDir  string        `mapstructure:"plugin_dir"`
	PluginName string        `mapstructure:"plugin_name"`
	Timeout    time.Duration `mapstructure:"timeout"`
	QueueSize  int           `mapstructure:"queue_size"`
	// PluginConfig is sent as the "config" object of every plugin request,
	// e.g. {player: vlc} for playerctl or {application: Music} for music.
	PluginConfig map[string]any `mapstructure:"plugin_config"`
}

// PluginConfigJSON encodes PluginConfig for the plugin protocol. An empty
// config encodes to nil so requests omit it.
func (c PlayerConfig) PluginConfigJSON() (json.RawMessage, error) {
	if len(c.PluginConfig) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(c.PluginConfig)
	if err != nil {
		return nil, fmt.Errorf("player.plugin_config: %w", err)
	}
	return data, nil
}

// LibraryConfig configures the media library
type LibraryConfig struct {
	Dir        string   `mapstructure:"dir"`
	Extensions []string `mapstructure:"extensions"`
	Watch      bool     `mapstructure:"watch"`
}

// ServerConfig configures the status server
type ServerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	StaticDir string `mapstructure:"static_dir"`
	Preview   bool   `mapstructure:"preview"`
}

// StoreConfig configures the database
type StoreConfig struct {
	Path        string `mapstructure:"path"`
	HistoryKeep int    `mapstructure:"history_keep"`
}

// TrayConfig configures the system tray
type TrayConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig configures logging
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	ic := gesture.DefaultConfig()
	return &Config{
		Camera: CameraConfig{
			Device:          0,
			FPS:             capture.DefaultFPS,
			Width:           capture.DefaultWidth,
			Height:          capture.DefaultHeight,
			Mirror:          true,
			MotionGate:      false,
			IdleFPS:         5,
			MotionThreshold: 1.0,
		},
		Detector: DetectorConfig{
			Source:          SourceMediaPipe,
			MaxHands:        2,
			MinConfidence:   0.5,
			MinTrackingConf: 0.5,
			ResponseTimeout: detector.DefaultResponseTimeout,
		},
		Interpreter: InterpreterConfig{
			Debounce:          ic.Debounce,
			VolumeMinDistance: ic.VolumeMinDistance,
			VolumeMaxDistance: ic.VolumeMaxDistance,
			SeekForwardBelow:  ic.SeekForwardBelow,
			SeekRewindAbove:   ic.SeekRewindAbove,
			SeekOffset:        ic.SeekOffset,
			IntersectEpsilon:  ic.IntersectEpsilon,
		},
		Player: PlayerConfig{
			Backend:   BackendMPRIS,
			PluginDir: filepath.Join("~", dirName, "plugins"),
			Timeout:   2 * time.Second,
			QueueSize: 8,
		},
		Library: LibraryConfig{
			Dir:        filepath.Join("~", "Music"),
			Extensions: slices.Clone(library.DefaultExtensions),
			Watch:      true,
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8080",
			Preview: false,
		},
		Store: StoreConfig{
			Path:        filepath.Join("~", dirName, "mudra.db"),
			HistoryKeep: 1000,
		},
		Tray: TrayConfig{
			Enabled: false,
		},
		Log: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// DefaultDir returns ~/.mudra.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, dirName), nil
}

// Load reads dir/config.yaml, writing one with the defaults when it does not
// exist, and applies MUDRA_* environment overrides such as MUDRA_CAMERA_FPS.
// An empty dir means DefaultDir. Paths starting with ~ are expanded.
func Load(dir string) (*Config, error) {
	cfg := DefaultConfig()

	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	v := newViper(cfg)
	v.SetConfigFile(filepath.Join(dir, fileName))

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) && !isNotFound(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and create one
		if err := Save(dir, cfg); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to dir/config.yaml.
func Save(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	for key, value := range cfg.settings() {
		v.Set(key, value)
	}

	if err := v.WriteConfigAs(filepath.Join(dir, fileName)); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func newViper(defaults *Config) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range defaults.settings() {
		v.SetDefault(key, value)
	}

	// Environment variable overrides
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func isNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf)
}

// settings flattens the configuration into viper keys. Durations are written
// as strings so the file stays readable.
func (c *Config) settings() map[string]any {
	m := map[string]any{
		"camera.device":           c.Camera.Device,
		"camera.fps":              c.Camera.FPS,
		"camera.width":            c.Camera.Width,
		"camera.height":           c.Camera.Height,
		"camera.mirror":           c.Camera.Mirror,
		"camera.motion_gate":      c.Camera.MotionGate,
		"camera.idle_fps":         c.Camera.IdleFPS,
		"camera.motion_threshold": c.Camera.MotionThreshold,

		"detector.source":            c.Detector.Source,
		"detector.replay_file":       c.Detector.ReplayFile,
		"detector.script":            c.Detector.Script,
		"detector.response_timeout":  c.Detector.ResponseTimeout.String(),
		"detector.max_hands":         c.Detector.MaxHands,
		"detector.min_confidence":    c.Detector.MinConfidence,
		"detector.min_tracking_conf": c.Detector.MinTrackingConf,

		"interpreter.debounce":            c.Interpreter.Debounce.String(),
		"interpreter.volume_min_distance": c.Interpreter.VolumeMinDistance,
		"interpreter.volume_max_distance": c.Interpreter.VolumeMaxDistance,
		"interpreter.seek_forward_below":  c.Interpreter.SeekForwardBelow,
		"interpreter.seek_rewind_above":   c.Interpreter.SeekRewindAbove,
		"interpreter.seek_offset":         c.Interpreter.SeekOffset.String(),
		"interpreter.intersect_epsilon":   c.Interpreter.IntersectEpsilon,

		"player.backend":     c.Player.Backend,
		"player.mpris_name":  c.Player.MPRISName,
		"player.plugin_dir":  c.Player.PluginDir,
		"player.plugin_name": c.Player.PluginName,
		"player.timeout":     c.Player.Timeout.String(),
		"player.queue_size":  c.Player.QueueSize,

		"library.dir":        c.Library.Dir,
		"library.extensions": c.Library.Extensions,
		"library.watch":      c.Library.Watch,

		"server.enabled":    c.Server.Enabled,
		"server.addr":       c.Server.Addr,
		"server.static_dir": c.Server.StaticDir,
		"server.preview":    c.Server.Preview,

		"store.path":         c.Store.Path,
		"store.history_keep": c.Store.HistoryKeep,

		"tray.enabled": c.Tray.Enabled,

		"log.level":       c.Log.Level,
		"log.development": c.Log.Development,
	}
	if len(c.Player.PluginConfig) > 0 {
		m["player.plugin_config"] = c.Player.PluginConfig
	}
	return m
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.Detector.ReplayFile,
		&c.Detector.Script,
		&c.Player.PluginDir,
		&c.Library.Dir,
		&c.Server.StaticDir,
		&c.Store.Path,
	} {
		expanded, err := expandHome(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~")), nil
}

// Validate checks option values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	var errs []error

	if c.Camera.FPS <= 0 {
		errs = append(errs, fmt.Errorf("camera.fps must be positive, got %d", c.Camera.FPS))
	}
	switch c.Detector.Source {
	case SourceMediaPipe:
	case SourceReplay:
		if c.Detector.ReplayFile == "" {
			errs = append(errs, errors.New("detector.replay_file is required for the replay source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown detector.source %q", c.Detector.Source))
	}
	switch c.Player.Backend {
	case BackendMPRIS, BackendMemory:
	case BackendPlugin:
		if c.Player.PluginName == "" {
			errs = append(errs, errors.New("player.plugin_name is required for the plugin backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown player.backend %q", c.Player.Backend))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if err := c.GestureConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("interpreter: %w", err))
	}

	if _, err := c.Player.PluginConfigJSON(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// GestureConfig converts the interpreter section into gesture thresholds.
func (c *Config) GestureConfig() gesture.Config {
	return gesture.Config{
		Debounce:          c.Interpreter.Debounce,
		VolumeMinDistance: c.Interpreter.VolumeMinDistance,
		VolumeMaxDistance: c.Interpreter.VolumeMaxDistance,
		SeekForwardBelow:  c.Interpreter.SeekForwardBelow,
		SeekRewindAbove:   c.Interpreter.SeekRewindAbove,
		SeekOffset:        c.Interpreter.SeekOffset,
		IntersectEpsilon:  c.Interpreter.IntersectEpsilon,
	}
}

// CaptureConfig converts the camera section.
func (c *Config) CaptureConfig() capture.Config {
	return capture.Config{
		Device: c.Camera.Device,
		FPS:    c.Camera.FPS,
		Width:  c.Camera.Width,
		Height: c.Camera.Height,
		Mirror: c.Camera.Mirror,
	}
}

// DetectorConfig converts the detector section.
func (c *Config) DetectorConfig() detector.Config {
	return detector.Config{
		MaxHands:        c.Detector.MaxHands,
		MinConfidence:   c.Detector.MinConfidence,
		MinTrackingConf: c.Detector.MinTrackingConf,
		Script:          c.Detector.Script,
		ResponseTimeout: c.Detector.ResponseTimeout,
	}
}

// LibraryConfig converts the library section.
func (c *Config) LibraryConfig() library.Config {
	return library.Config{
		Dir:        c.Library.Dir,
		Extensions: c.Library.Extensions,
	}
}

// Build creates the logger described by l.
func (l LogConfig) Build() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc.Level = level

	return zc.Build()
}
