package app

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/detector"
)

// run is the frame loop. Each tick reads one frame from the source unless
// detection is disabled. When the source reports itself idle the tick rate
// drops to IdleFPS until it becomes active again.
func (a *App) run(stopCh <-chan struct{}) {
	defer close(a.done)
	defer a.setRunning(false)

	idle := false
	ticker := time.NewTicker(frameInterval(a.cfg.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.source.Next()
			if errors.Is(err, detector.ErrEndOfStream) {
				a.logger.Info("landmark stream finished")
				return
			}
			if err != nil {
				a.logger.Warn("reading frame", zap.Error(err))
				continue
			}

			a.Process(frame)

			i, ok := a.source.(idler)
			if !ok || i.Idle() == idle {
				continue
			}
			idle = i.Idle()
			fps := a.cfg.FPS
			if idle {
				fps = a.cfg.IdleFPS
			}
			if p, ok := a.source.(pacer); ok {
				p.SetFPS(fps)
			}
			ticker.Reset(frameInterval(fps))
			a.setIdle(idle)
			a.logger.Info("frame rate changed", zap.Bool("idle", idle), zap.Int("fps", fps))
		}
	}
}

func (a *App) setRunning(running bool) {
	a.mu.Lock()
	a.snapshot.Running = running
	snap := a.snapshotLocked()
	a.mu.Unlock()
	a.publish(snap)
}

func (a *App) setIdle(idle bool) {
	a.mu.Lock()
	a.snapshot.Idle = idle
	a.mu.Unlock()
}

func frameInterval(fps int) time.Duration {
	return time.Second / time.Duration(fps)
}
