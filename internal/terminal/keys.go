package terminal

import (
	"github.com/gdamore/tcell/v2"

	"kbtrial/internal/keys"
)

// keyNames maps tcell special keys to normalized key names.
var keyNames = map[tcell.Key]string{
	tcell.KeyEscape:     "escape",
	tcell.KeyEnter:      "enter",
	tcell.KeyTab:        "tab",
	tcell.KeyBackspace:  "backspace",
	tcell.KeyBackspace2: "backspace",
	tcell.KeyDelete:     "delete",
	tcell.KeyInsert:     "insert",
	tcell.KeyHome:       "home",
	tcell.KeyEnd:        "end",
	tcell.KeyPgUp:       "pageup",
	tcell.KeyPgDn:       "pagedown",
	tcell.KeyUp:         "arrowup",
	tcell.KeyDown:       "arrowdown",
	tcell.KeyLeft:       "arrowleft",
	tcell.KeyRight:      "arrowright",
	tcell.KeyF1:         "f1",
	tcell.KeyF2:         "f2",
	tcell.KeyF3:         "f3",
	tcell.KeyF4:         "f4",
	tcell.KeyF5:         "f5",
	tcell.KeyF6:         "f6",
	tcell.KeyF7:         "f7",
	tcell.KeyF8:         "f8",
	tcell.KeyF9:         "f9",
	tcell.KeyF10:        "f10",
	tcell.KeyF11:        "f11",
	tcell.KeyF12:        "f12",
}

// KeyName returns the normalized name of a tcell key event, or "" when the
// event has no name trials could listen for.
func KeyName(ev *tcell.EventKey) string {
	if ev.Key() == tcell.KeyRune {
		if ev.Modifiers()&(tcell.ModCtrl|tcell.ModAlt|tcell.ModMeta) != 0 {
			return ""
		}
		return keys.Normalize(string(ev.Rune()))
	}
	return keyNames[ev.Key()]
}
