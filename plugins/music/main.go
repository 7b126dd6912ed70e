// Package main provides a player plugin for macOS.
// It drives Music.app (or another scriptable player) via AppleScript.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

const defaultApplication = "Music"

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

// Config names the application to script.
type Config struct {
	Application string `json:"application"`
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

// runner executes an AppleScript and returns its trimmed output.
type runner func(script string) (string, error)

func runAppleScript(script string) (string, error) {
	out, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

func main() {
	resp := handle(os.Stdin, runAppleScript)
	json.NewEncoder(os.Stdout).Encode(resp)
}

func handle(in io.Reader, run runner) Response {
	var req Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return errorResponse(fmt.Sprintf("failed to decode request: %v", err))
	}

	cfg := Config{Application: defaultApplication}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return errorResponse(fmt.Sprintf("invalid config: %v", err))
		}
		if cfg.Application == "" {
			cfg.Application = defaultApplication
		}
	}
	var params Params
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(fmt.Sprintf("invalid params: %v", err))
		}
	}

	tell := func(command string) (string, error) {
		return run(tellScript(cfg.Application, command))
	}

	var err error
	switch req.Action {
	case "status":
		status, err := readStatus(tell)
		if err != nil {
			return errorResponse(fmt.Sprintf("action status failed: %v", err))
		}
		data, _ := json.Marshal(status)
		return Response{Success: true, Data: data}
	case "play":
		_, err = tell("play")
	case "pause":
		_, err = tell("pause")
	case "set-volume":
		if params.Volume < 0 || params.Volume > 1 {
			return errorResponse(fmt.Sprintf("volume %g out of range", params.Volume))
		}
		_, err = tell(fmt.Sprintf("set sound volume to %d", int(math.Round(params.Volume*100))))
	case "set-position":
		if params.PositionMs < 0 {
			return errorResponse(fmt.Sprintf("negative position %d", params.PositionMs))
		}
		seconds := float64(params.PositionMs) / 1000
		_, err = tell("set player position to " + strconv.FormatFloat(seconds, 'f', 3, 64))
	case "open":
		path, perr := filePath(params.URI)
		if perr != nil {
			return errorResponse(perr.Error())
		}
		_, err = tell(fmt.Sprintf("play (add POSIX file %s)", quote(path)))
	default:
		return errorResponse(fmt.Sprintf("unknown action: %s", req.Action))
	}

	if err != nil {
		return errorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
	}
	return Response{Success: true}
}

// readStatus collects playback state, position, duration and volume.
// Without a current track the player reports Loaded false and zero length.
func readStatus(tell runner) (Status, error) {
	var st Status

	state, err := tell("player state as string")
	if err != nil {
		return st, err
	}
	st.Playing = state == "playing"

	duration, err := tell("duration of current track")
	if err != nil || duration == "" {
		return st, nil
	}
	seconds, err := parseNumber(duration)
	if err != nil {
		return st, fmt.Errorf("parse duration %q: %w", duration, err)
	}
	st.Loaded = seconds > 0
	st.LengthMs = int64(seconds * 1000)

	if pos, err := tell("player position"); err == nil {
		seconds, err := parseNumber(pos)
		if err != nil {
			return st, fmt.Errorf("parse position %q: %w", pos, err)
		}
		st.PositionMs = int64(seconds * 1000)
	}
	if vol, err := tell("sound volume"); err == nil {
		if v, err := parseNumber(vol); err == nil {
			st.Volume = v / 100
		}
	}

	return st, nil
}

// tellScript wraps command in a tell block for app.
func tellScript(app, command string) string {
	return fmt.Sprintf("tell application %s to %s", quote(app), command)
}

// quote returns s as an AppleScript string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// filePath converts a file:// URI into a local path.
func filePath(uri string) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("open requires a uri")
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid uri %q: %v", uri, err)
	}
	if u.Scheme != "file" || u.Path == "" {
		return "", fmt.Errorf("only file uris are supported, got %q", uri)
	}
	return u.Path, nil
}

// parseNumber parses AppleScript numbers, which may use a locale comma.
func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

func errorResponse(msg string) Response {
	return Response{Success: false, Error: msg}
}
