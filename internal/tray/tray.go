// Package tray provides the system tray menu for mudra.
package tray

import (
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/app"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle func(enabled bool)
	onQuit   func()
	quit     func()
	openURL  string
	enabled  bool
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle     *systray.MenuItem
	menuMode       *systray.MenuItem
	menuLastAction *systray.MenuItem
	ready          bool
	pending        app.Snapshot
}

// New creates a new Tray. statusURL is opened by the "Open Status Page" item
// and may be empty to hide it.
func New(enabled bool, statusURL string) *Tray {
	return &Tray{
		enabled: enabled,
		openURL: statusURL,
		pending: app.Snapshot{Enabled: enabled},
		quit:    systray.Quit,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnQuit sets a callback run when the Quit menu item is clicked, before the
// tray closes. Quit called from code does not run it.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application. It must be called from the main
// goroutine and blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	t.quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra gesture media remote")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle gesture detection")
	systray.AddSeparator()

	t.menuMode = systray.AddMenuItem(modeTitle(t.pending.Mode), "Mode selected with the left hand")
	t.menuMode.Disable()
	t.menuLastAction = systray.AddMenuItem(lastActionTitle(t.pending.LastAction), "Last accepted gesture")
	t.menuLastAction.Disable()
	systray.AddSeparator()

	menuStatus := systray.AddMenuItem("Open Status Page...", "Open the status page in a browser")
	if t.openURL == "" {
		menuStatus.Hide()
	}
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")
	t.ready = true
	t.mu.Unlock()

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuStatus.ClickedCh:
				t.handleOpenStatus()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	t.menuToggle.SetTitle(toggleTitle(enabled))
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleOpenStatus() {
	if err := openBrowser(t.openURL); err != nil {
		systray.SetTooltip(err.Error())
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	t.quit()
}

// Update reflects a pipeline snapshot in the menu.
func (t *Tray) Update(s app.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.enabled = s.Enabled
	t.pending = s
	if !t.ready {
		return
	}

	t.menuToggle.SetTitle(toggleTitle(s.Enabled))
	t.menuMode.SetTitle(modeTitle(s.Mode))
	t.menuLastAction.SetTitle(lastActionTitle(s.LastAction))
}

// Follow applies every snapshot from snaps until the channel is closed.
func (t *Tray) Follow(snaps <-chan app.Snapshot) {
	for s := range snaps {
		t.Update(s)
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func modeTitle(mode string) string {
	if mode == "" {
		return "Mode: play/pause"
	}
	return "Mode: " + mode
}

func lastActionTitle(action string) string {
	if action == "" {
		return "Last: none"
	}
	return "Last: " + action
}

func browserCommand(goos, url string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{url}, nil
	case "linux", "freebsd", "openbsd":
		return "xdg-open", []string{url}, nil
	case "windows":
		return "cmd", []string{"/c", "start", url}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

func openBrowser(url string) error {
	cmd, args, err := browserCommand(runtime.GOOS, url)
	if err != nil {
		return err
	}
	return exec.Command(cmd, args...).Start()
}
