package main

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type fakeScript struct {
	out     map[string]string
	fail    map[string]bool
	scripts []string
}

func (f *fakeScript) run(script string) (string, error) {
	f.scripts = append(f.scripts, script)
	if f.fail[script] {
		return "", errors.New("Can't get current track")
	}
	return f.out[script], nil
}

func music(command string) string {
	return `tell application "Music" to ` + command
}

func TestHandle_Status(t *testing.T) {
	s := &fakeScript{out: map[string]string{
		music("player state as string"):    "playing",
		music("duration of current track"): "180,5",
		music("player position"):           "42.5",
		music("sound volume"):              "60",
	}}

	resp := handle(strings.NewReader(`{"action":"status"}`), s.run)
	if !resp.Success {
		t.Fatalf("expected success, got error %q", resp.Error)
	}

	var st Status
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		t.Fatalf("failed to unmarshal status: %v", err)
	}
	want := Status{Playing: true, Loaded: true, PositionMs: 42500, LengthMs: 180500, Volume: 0.6}
	if st != want {
		t.Errorf("status = %+v, want %+v", st, want)
	}
}

func TestHandle_StatusWithoutTrack(t *testing.T) {
	s := &fakeScript{
		out:  map[string]string{music("player state as string"): "stopped"},
		fail: map[string]bool{music("duration of current track"): true},
	}

	resp := handle(strings.NewReader(`{"action":"status"}`), s.run)
	if !resp.Success {
		t.Fatalf("expected success, got error %q", resp.Error)
	}

	var st Status
	json.Unmarshal(resp.Data, &st)
	if st.Loaded || st.Playing || st.LengthMs != 0 {
		t.Errorf("status = %+v, want nothing loaded", st)
	}
}

func TestHandle_Commands(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		script string
	}{
		{"play", `{"action":"play"}`, music("play")},
		{"pause", `{"action":"pause"}`, music("pause")},
		{"volume", `{"action":"set-volume","params":{"volume":0.35}}`, music("set sound volume to 35")},
		{"position", `{"action":"set-position","params":{"position_ms":90500}}`, music("set player position to 90.500")},
		{"open", `{"action":"open","params":{"uri":"file:///Users/me/Music/My%20Song.mp3"}}`, music(`play (add POSIX file "/Users/me/Music/My Song.mp3")`)},
		{"other app", `{"action":"play","config":{"application":"VLC"}}`, `tell application "VLC" to play`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeScript{}
			resp := handle(strings.NewReader(tt.input), s.run)
			if !resp.Success {
				t.Fatalf("expected success, got error %q", resp.Error)
			}
			if len(s.scripts) != 1 || s.scripts[0] != tt.script {
				t.Errorf("scripts = %q, want %q", s.scripts, tt.script)
			}
		})
	}
}

func TestHandle_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bad json", `{`},
		{"unknown action", `{"action":"rewind"}`},
		{"volume out of range", `{"action":"set-volume","params":{"volume":1.5}}`},
		{"negative position", `{"action":"set-position","params":{"position_ms":-1}}`},
		{"missing uri", `{"action":"open"}`},
		{"http uri", `{"action":"open","params":{"uri":"http://example.com/a.mp3"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeScript{}
			resp := handle(strings.NewReader(tt.input), s.run)
			if resp.Success {
				t.Error("expected failure")
			}
			if resp.Error == "" {
				t.Error("expected an error message")
			}
			if len(s.scripts) != 0 {
				t.Errorf("no script should run, ran %q", s.scripts)
			}
		})
	}
}

func TestHandle_ScriptFailure(t *testing.T) {
	s := &fakeScript{fail: map[string]bool{music("play"): true}}
	resp := handle(strings.NewReader(`{"action":"play"}`), s.run)
	if resp.Success || !strings.Contains(resp.Error, "action play failed") {
		t.Errorf("resp = %+v, want play failure", resp)
	}
}

func TestQuote(t *testing.T) {
	got := quote(`say "hi" \ bye`)
	want := `"say \"hi\" \\ bye"`
	if got != want {
		t.Errorf("quote() = %s, want %s", got, want)
	}
}
