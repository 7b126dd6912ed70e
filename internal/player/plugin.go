package player

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayusman/mudra/internal/plugin"
)

// Plugin actions a player plugin answers.
const (
	ActionStatus      = "status"
	ActionPlay        = "play"
	ActionPause       = "pause"
	ActionSetVolume   = "set-volume"
	ActionSetPosition = "set-position"
	ActionOpen        = "open"
)

// PluginStatus is the data of a status response.
type PluginStatus struct {
	Playing    bool    `json:"playing"`
	Loaded     bool    `json:"loaded"`
	PositionMs int64   `json:"position_ms"`
	LengthMs   int64   `json:"length_ms"`
	Volume     float64 `json:"volume"`
}

// PluginParams are the params of set-volume, set-position and open requests.
type PluginParams struct {
	Volume     float64 `json:"volume,omitempty"`
	PositionMs int64   `json:"position_ms,omitempty"`
	URI        string  `json:"uri,omitempty"`
}

// PluginExecutor runs plugin requests; *plugin.Executor implements it.
type PluginExecutor interface {
	Execute(ctx context.Context, p *plugin.Plugin, req *plugin.Request) (*plugin.Response, error)
}

// PluginPlayer delegates player control to an external plugin executable.
type PluginPlayer struct {
	plugin   *plugin.Plugin
	executor PluginExecutor
	config   json.RawMessage
}

// NewPluginPlayer creates a player backed by p. config is passed verbatim with
// every request.
func NewPluginPlayer(p *plugin.Plugin, exec PluginExecutor, config json.RawMessage) *PluginPlayer {
	return &PluginPlayer{plugin: p, executor: exec, config: config}
}

func (p *PluginPlayer) IsPlaying(ctx context.Context) (bool, error) {
	st, err := p.status(ctx)
	if err != nil {
		return false, err
	}
	return st.Playing, nil
}

// Play returns ErrNoMedia when the plugin reports nothing loaded.
func (p *PluginPlayer) Play(ctx context.Context) error {
	st, err := p.status(ctx)
	if err != nil {
		return err
	}
	if !st.Loaded {
		return ErrNoMedia
	}
	_, err = p.execute(ctx, ActionPlay, nil)
	return err
}

func (p *PluginPlayer) Pause(ctx context.Context) error {
	_, err := p.execute(ctx, ActionPause, nil)
	return err
}

func (p *PluginPlayer) SetVolume(ctx context.Context, percent int) error {
	_, err := p.execute(ctx, ActionSetVolume, &PluginParams{Volume: float64(ClampVolume(percent)) / 100})
	return err
}

func (p *PluginPlayer) SeekBy(ctx context.Context, offset time.Duration) error {
	st, err := p.status(ctx)
	if err != nil {
		return err
	}
	if !st.Loaded {
		return ErrNoMedia
	}

	target, ok, err := SeekTarget(
		time.Duration(st.PositionMs)*time.Millisecond,
		time.Duration(st.LengthMs)*time.Millisecond,
		offset,
	)
	if err != nil || !ok {
		return err
	}

	_, err = p.execute(ctx, ActionSetPosition, &PluginParams{PositionMs: target.Milliseconds()})
	return err
}

func (p *PluginPlayer) Open(ctx context.Context, uri string) error {
	_, err := p.execute(ctx, ActionOpen, &PluginParams{URI: FileURI(uri)})
	return err
}

func (p *PluginPlayer) Close() error {
	return nil
}

func (p *PluginPlayer) status(ctx context.Context) (PluginStatus, error) {
	var st PluginStatus
	data, err := p.execute(ctx, ActionStatus, nil)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("decode %s status: %w", p.plugin.Manifest.Name, err)
	}
	return st, nil
}

func (p *PluginPlayer) execute(ctx context.Context, action string, params *PluginParams) (json.RawMessage, error) {
	if !p.plugin.Manifest.Supports(action) {
		return nil, fmt.Errorf("%s %s: %w", p.plugin.Manifest.Name, action, ErrUnsupported)
	}

	req := &plugin.Request{Action: action, Config: p.config}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		req.Params = raw
	}

	resp, err := p.executor.Execute(ctx, p.plugin, req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", p.plugin.Manifest.Name, action, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%s %s failed: %s", p.plugin.Manifest.Name, action, resp.Error)
	}
	return resp.Data, nil
}
