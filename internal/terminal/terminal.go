// Package terminal runs sessions on a tcell screen.
package terminal

import (
	"context"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"
	"go.uber.org/zap"

	"kbtrial/internal/display"
	"kbtrial/internal/services"
)

const respondedMark = "*"

// Terminal draws display states on a screen and feeds its key events to a
// session.
type Terminal struct {
	screen tcell.Screen
	log    *zap.Logger

	mu    sync.Mutex
	state display.State
}

// New wraps an initialized screen.
func New(screen tcell.Screen, log *zap.Logger) *Terminal {
	return &Terminal{screen: screen, log: log, state: display.State{Blank: true}}
}

// Draw renders st. It is meant to be registered with display.Surface.OnChange.
func (t *Terminal) Draw(st display.State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = st
	t.redraw()
}

func (t *Terminal) redraw() {
	t.screen.Clear()
	if t.state.Blank {
		t.screen.Show()
		return
	}

	width, height := t.screen.Size()
	style := tcell.StyleDefault

	stimulus := Text(t.state.Stimulus)
	prompt := Text(t.state.Prompt)

	top := (height - len(stimulus) - len(prompt) - 1) / 2
	if top < 0 {
		top = 0
	}
	// A hidden stimulus keeps its rows so the prompt does not move.
	y := top
	for _, line := range stimulus {
		if t.state.Visible {
			t.putCentered(y, width, line, style.Bold(true))
		}
		y++
	}
	y++
	for _, line := range prompt {
		t.putCentered(y, width, line, style.Dim(true))
		y++
	}

	if t.state.Responded {
		t.put(0, 0, respondedMark, style.Reverse(true))
	}
	t.screen.Show()
}

func (t *Terminal) putCentered(y, width int, s string, style tcell.Style) {
	x := (width - uniseg.StringWidth(s)) / 2
	if x < 0 {
		x = 0
	}
	t.put(x, y, s, style)
}

func (t *Terminal) put(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		t.screen.SetContent(x, y, r, nil, style)
		x += uniseg.StringWidth(string(r))
	}
}

// Run feeds key events to session until it finishes or ctx is cancelled.
// Ctrl-C aborts the session. The caller owns the screen and finalizes it
// afterwards.
func (t *Terminal) Run(ctx context.Context, session *services.Session) error {
	events := make(chan tcell.Event)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		for {
			ev := t.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-stop:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			session.Abort()
			return ctx.Err()
		case <-session.Done():
			return nil
		case ev := <-events:
			switch e := ev.(type) {
			case *tcell.EventKey:
				if isInterrupt(e) {
					t.log.Info("Session interrupted", zap.String("session_id", session.ID))
					session.Abort()
					continue
				}
				if name := KeyName(e); name != "" {
					session.Press(name)
				}
			case *tcell.EventResize:
				t.mu.Lock()
				t.screen.Sync()
				t.redraw()
				t.mu.Unlock()
			}
		}
	}
}

func isInterrupt(e *tcell.EventKey) bool {
	if e.Key() == tcell.KeyCtrlC {
		return true
	}
	return e.Key() == tcell.KeyRune && e.Modifiers()&tcell.ModCtrl != 0 && (e.Rune() == 'c' || e.Rune() == 'C')
}
