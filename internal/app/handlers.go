package app

import (
	"context"
	"fmt"

	"github.com/Asmageddon/modrun/internal/event"
	"github.com/Asmageddon/modrun/internal/loop"
)

// registerDefaultHandlers wires the built-in callbacks: a status line on the
// draw channel and lifecycle logging. They run at monitor priority so user
// callbacks see events first, and they never report handled.
func (app *Application) registerDefaultHandlers() {
	_ = app.registry.Add(loop.EventDraw, app.drawStatusLine,
		event.WithPriority(event.PriorityMonitor),
		event.WithKey("app.status-line"),
	)

	_ = app.registry.Add(loop.EventQuit, app.logQuit,
		event.WithPriority(event.PriorityMonitor),
		event.WithKey("app.quit-log"),
	)
}

// drawStatusLine renders the frame counter and target rate on the bottom
// row of the terminal.
func (app *Application) drawStatusLine(_ context.Context, _ any, _ ...any) (bool, error) {
	if app.terminal == nil {
		return false, nil
	}

	_, h := app.terminal.Size()
	if h == 0 {
		return false, nil
	}

	status := fmt.Sprintf("frame %d | %.0f fps target | dt %.4fs",
		app.loop.Frames(), app.limiter.Target(), app.loop.DeltaTime())
	app.terminal.SetText(0, h-1, status)
	return false, nil
}

// logQuit observes quit without handling it, so the loop still halts when
// nothing else claims the event.
func (app *Application) logQuit(_ context.Context, _ any, _ ...any) (bool, error) {
	app.logger.Info("quit after %d frames", app.loop.Frames())
	return false, nil
}
