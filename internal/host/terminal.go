package host

import (
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/Asmageddon/modrun/internal/event"
	"github.com/Asmageddon/modrun/internal/loop"
)

// Input channels produced by the terminal, in addition to loop.EventQuit.
const (
	EventKeyPressed    = "keypressed"
	EventTextInput     = "textinput"
	EventMousePressed  = "mousepressed"
	EventMouseReleased = "mousereleased"
	EventWheelMoved    = "wheelmoved"
	EventResize        = "resize"
	EventFocus         = "focus"
)

// InputChannels lists every channel the terminal can produce, for
// registration by the host application.
func InputChannels() []string {
	return []string{
		EventKeyPressed,
		EventTextInput,
		EventMousePressed,
		EventMouseReleased,
		EventWheelMoved,
		EventResize,
		EventFocus,
	}
}

// Terminal implements loop.Source and loop.RenderGate over a tcell screen.
type Terminal struct {
	mu      sync.Mutex
	screen  tcell.Screen
	started bool

	// buttons is the previously observed mouse button mask, used to derive
	// press/release edges from tcell's level-triggered mouse events.
	buttons tcell.ButtonMask
}

// NewTerminal creates a terminal over a new tcell screen.
func NewTerminal() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return newTerminalWithScreen(screen), nil
}

// newTerminalWithScreen wraps an existing screen. Tests pass a tcell
// simulation screen here.
func newTerminalWithScreen(screen tcell.Screen) *Terminal {
	return &Terminal{screen: screen}
}

// Init initializes the screen and enables mouse and paste reporting.
func (t *Terminal) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.screen.Init(); err != nil {
		return err
	}
	t.screen.EnableMouse()
	t.screen.EnablePaste()
	t.screen.EnableFocus()
	t.started = true
	return nil
}

// Shutdown restores the terminal. Safe to call when never started.
func (t *Terminal) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return
	}
	t.started = false
	t.screen.Fini()
}

// Size returns the screen dimensions.
func (t *Terminal) Size() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.screen.Size()
}

// Poll drains all pending terminal events and converts them to occurrences.
// It never blocks: an empty frame yields an empty slice.
func (t *Terminal) Poll() []event.Occurrence {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return nil
	}

	var out []event.Occurrence
	for t.screen.HasPendingEvent() {
		ev := t.screen.PollEvent()
		if ev == nil {
			break
		}
		out = append(out, t.convert(ev)...)
	}
	return out
}

// convert maps one tcell event to zero or more occurrences.
// Callers must hold t.mu.
func (t *Terminal) convert(ev tcell.Event) []event.Occurrence {
	switch tev := ev.(type) {
	case *tcell.EventKey:
		if tev.Key() == tcell.KeyCtrlC {
			return []event.Occurrence{{Name: loop.EventQuit}}
		}
		occs := []event.Occurrence{{
			Name: EventKeyPressed,
			Args: []any{keyName(tev)},
		}}
		if tev.Key() == tcell.KeyRune {
			occs = append(occs, event.Occurrence{
				Name: EventTextInput,
				Args: []any{string(tev.Rune())},
			})
		}
		return occs

	case *tcell.EventResize:
		w, h := tev.Size()
		return []event.Occurrence{{Name: EventResize, Args: []any{w, h}}}

	case *tcell.EventMouse:
		return t.convertMouse(tev)

	case *tcell.EventFocus:
		return []event.Occurrence{{Name: EventFocus, Args: []any{tev.Focused}}}

	case *tcell.EventInterrupt:
		return []event.Occurrence{{Name: loop.EventQuit}}

	default:
		return nil
	}
}

// convertMouse derives press/release/wheel occurrences by diffing the
// button mask against the previous event. Callers must hold t.mu.
func (t *Terminal) convertMouse(ev *tcell.EventMouse) []event.Occurrence {
	x, y := ev.Position()
	current := ev.Buttons()

	var out []event.Occurrence

	wheel := current & (tcell.WheelUp | tcell.WheelDown | tcell.WheelLeft | tcell.WheelRight)
	if wheel != 0 {
		dx, dy := 0, 0
		if wheel&tcell.WheelUp != 0 {
			dy = 1
		}
		if wheel&tcell.WheelDown != 0 {
			dy = -1
		}
		if wheel&tcell.WheelLeft != 0 {
			dx = -1
		}
		if wheel&tcell.WheelRight != 0 {
			dx = 1
		}
		out = append(out, event.Occurrence{Name: EventWheelMoved, Args: []any{dx, dy}})
	}

	held := current &^ wheel
	prev := t.buttons
	t.buttons = held

	for i, mask := range []tcell.ButtonMask{tcell.Button1, tcell.Button2, tcell.Button3} {
		button := i + 1
		switch {
		case held&mask != 0 && prev&mask == 0:
			out = append(out, event.Occurrence{Name: EventMousePressed, Args: []any{x, y, button}})
		case held&mask == 0 && prev&mask != 0:
			out = append(out, event.Occurrence{Name: EventMouseReleased, Args: []any{x, y, button}})
		}
	}

	return out
}

// FrameReady implements loop.RenderGate. The terminal is ready to draw
// whenever it has been initialized.
func (t *Terminal) FrameReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.started
}

// Clear implements loop.RenderGate.
func (t *Terminal) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		t.screen.Clear()
	}
}

// Present implements loop.RenderGate, flushing the frame to the terminal.
func (t *Terminal) Present() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		t.screen.Show()
	}
}

// SetText writes a string at the given cell position with the default
// style. Host draw callbacks use it between Clear and Present.
func (t *Terminal) SetText(x, y int, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return
	}
	for i, r := range []rune(text) {
		t.screen.SetContent(x+i, y, r, nil, tcell.StyleDefault)
	}
}

// Interrupt posts an interrupt event, unblocking pending input machinery
// and surfacing a quit occurrence on the next Poll.
func (t *Terminal) Interrupt() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		_ = t.screen.PostEvent(tcell.NewEventInterrupt(nil)) // best-effort; queue may be full
	}
}

// keyName renders a key event as a stable channel argument: the rune for
// printable keys, tcell's key name otherwise.
func keyName(ev *tcell.EventKey) string {
	if ev.Key() == tcell.KeyRune {
		return string(ev.Rune())
	}
	if name, ok := tcell.KeyNames[ev.Key()]; ok {
		return name
	}
	return ev.Name()
}
