// Package main provides a player plugin for Linux.
// It drives any MPRIS-capable media player through the playerctl command.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config selects the player instance to control.
type Config struct {
	Player string `json:"player"`
}

// Status is returned by the status action.
type Status struct {
	Playing    bool    `json:"playing"`
	Loaded     bool    `json:"loaded"`
	PositionMs int64   `json:"position_ms"`
	LengthMs   int64   `json:"length_ms"`
	Volume     float64 `json:"volume"`
}

// Params carries the arguments of set-volume, set-position and open.
type Params struct {
	Volume     float64 `json:"volume"`
	PositionMs int64   `json:"position_ms"`
	URI        string  `json:"uri"`
}

// runner executes playerctl with args and returns its trimmed stdout.
type runner func(args ...string) (string, error)

func runPlayerctl(args ...string) (string, error) {
	out, err := exec.Command("playerctl", args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

func main() {
	resp := handle(os.Stdin, runPlayerctl)
	json.NewEncoder(os.Stdout).Encode(resp)
}

func handle(in io.Reader, run runner) Response {
	var req Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return errorResponse(fmt.Sprintf("failed to decode request: %v", err))
	}

	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return errorResponse(fmt.Sprintf("invalid config: %v", err))
		}
	}
	var params Params
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(fmt.Sprintf("invalid params: %v", err))
		}
	}

	ctl := func(args ...string) (string, error) {
		if cfg.Player != "" {
			args = append([]string{"--player=" + cfg.Player}, args...)
		}
		return run(args...)
	}

	var err error
	switch req.Action {
	case "status":
		status, err := readStatus(ctl)
		if err != nil {
			return errorResponse(fmt.Sprintf("action status failed: %v", err))
		}
		data, _ := json.Marshal(status)
		return Response{Success: true, Data: data}
	case "play":
		_, err = ctl("play")
	case "pause":
		_, err = ctl("pause")
	case "set-volume":
		if params.Volume < 0 || params.Volume > 1 {
			return errorResponse(fmt.Sprintf("volume %g out of range", params.Volume))
		}
		_, err = ctl("volume", strconv.FormatFloat(params.Volume, 'f', 2, 64))
	case "set-position":
		if params.PositionMs < 0 {
			return errorResponse(fmt.Sprintf("negative position %d", params.PositionMs))
		}
		seconds := float64(params.PositionMs) / 1000
		_, err = ctl("position", strconv.FormatFloat(seconds, 'f', 3, 64))
	case "open":
		if params.URI == "" {
			return errorResponse("open requires a uri")
		}
		_, err = ctl("open", params.URI)
	default:
		return errorResponse(fmt.Sprintf("unknown action: %s", req.Action))
	}

	if err != nil {
		return errorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
	}
	return Response{Success: true}
}

// readStatus collects playback status, position, length and volume.
// A player without loaded media reports Loaded false and zero length.
func readStatus(ctl runner) (Status, error) {
	var st Status

	state, err := ctl("status")
	if err != nil {
		return st, err
	}
	st.Playing = state == "Playing"

	length, err := ctl("metadata", "mpris:length")
	if err != nil || length == "" {
		return st, nil
	}
	us, err := strconv.ParseInt(length, 10, 64)
	if err != nil {
		return st, fmt.Errorf("parse length %q: %w", length, err)
	}
	st.Loaded = us > 0
	st.LengthMs = us / 1000

	if pos, err := ctl("position"); err == nil {
		seconds, err := strconv.ParseFloat(pos, 64)
		if err != nil {
			return st, fmt.Errorf("parse position %q: %w", pos, err)
		}
		st.PositionMs = int64(seconds * 1000)
	}
	if vol, err := ctl("volume"); err == nil {
		st.Volume, _ = strconv.ParseFloat(vol, 64)
	}

	return st, nil
}

func errorResponse(msg string) Response {
	return Response{Success: false, Error: msg}
}
