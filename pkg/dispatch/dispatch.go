// Package dispatch turns received lines into input actions, holding modifier
// keys until the key they apply to arrives.
package dispatch

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/josh23french/remotekeys/pkg/protocol"
)

// Scroll scaling applied before the injector sees the amount
const (
	ScrollFactor  = 50
	HScrollFactor = 5
)

// Injector performs input on the machine being driven
type Injector interface {
	Press(key string) error
	// Hotkey presses keys together, modifiers first
	Hotkey(keys ...string) error
	MoveRel(dx, dy int) error
	Click(button string) error
	// Scroll scrolls vertically; positive is up
	Scroll(amount int) error
	// HScroll scrolls horizontally; positive is right
	HScroll(amount int) error
}

var modifiers = map[string]bool{
	"shift": true, "ctrl": true, "alt": true, "command": true, "cmd": true,
	"shiftleft": true, "shiftright": true,
	"ctrlleft": true, "ctrlright": true,
	"altleft": true, "altright": true,
}

var aliases = map[string]string{
	"escape": "esc",
	"return": "enter",
	"del":    "delete",
	"pgup":   "pageup",
	"pgdn":   "pagedown",
	"cmd":    "command",
	"menu":   "apps",
	"prtsc":  "printscreen",
	"scrlk":  "scrolllock",
	"bksp":   "backspace",
}

// NormalizeKey lowercases key and resolves aliases
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if a, ok := aliases[key]; ok {
		return a
	}
	return key
}

// IsModifier reports whether a normalized key is held for the next key
func IsModifier(key string) bool {
	return modifiers[key]
}

// Dispatcher implements server.Handler and server.ConnHandler. Pending
// modifiers are tracked per client.
type Dispatcher struct {
	injector Injector
	log      zerolog.Logger

	sync.Mutex
	pending map[string][]string
}

// New creates a Dispatcher driving inj
func New(inj Injector) *Dispatcher {
	return &Dispatcher{
		injector: inj,
		log:      log.Logger,
		pending:  make(map[string][]string),
	}
}

// WithLogger returns d with its logger replaced
func (d *Dispatcher) WithLogger(l zerolog.Logger) *Dispatcher {
	d.log = l
	return d
}

// Connected starts a client with no pending modifiers
func (d *Dispatcher) Connected(remote string) {
	d.Lock()
	defer d.Unlock()
	delete(d.pending, remote)
}

// Disconnected forgets the client's pending modifiers
func (d *Dispatcher) Disconnected(remote string) {
	d.Lock()
	defer d.Unlock()
	delete(d.pending, remote)
}

// Pending returns a copy of the modifiers waiting for remote's next key
func (d *Dispatcher) Pending(remote string) []string {
	d.Lock()
	defer d.Unlock()
	return append([]string(nil), d.pending[remote]...)
}

// HandleLine parses and performs one line. Bad lines and injector failures
// are logged and otherwise ignored.
func (d *Dispatcher) HandleLine(remote string, line string) {
	cmd, err := protocol.Parse(line)
	if err != nil {
		d.log.Warn().Err(err).Str("remote", remote).Str("line", line).Msg("bad command")
		return
	}

	switch cmd.Kind {
	case protocol.KindMouseMove:
		err = d.injector.MoveRel(cmd.DX, cmd.DY)
	case protocol.KindMouseClick:
		err = d.injector.Click(cmd.Button)
	case protocol.KindMouseScroll:
		// client sends positive for down, injectors scroll up on positive
		err = d.injector.Scroll(-cmd.Steps * ScrollFactor)
	case protocol.KindMouseHScroll:
		err = d.injector.HScroll(cmd.Steps * HScrollFactor)
	case protocol.KindClear:
		d.Lock()
		delete(d.pending, remote)
		d.Unlock()
	case protocol.KindKey:
		err = d.key(remote, NormalizeKey(cmd.Key))
	}

	if err != nil {
		d.log.Warn().Err(err).Str("remote", remote).Str("line", line).Msg("could not perform command")
	}
}

func (d *Dispatcher) key(remote, key string) error {
	d.Lock()
	mods := d.pending[remote]
	if IsModifier(key) {
		for _, m := range mods {
			if m == key {
				d.Unlock()
				return nil
			}
		}
		d.pending[remote] = append(mods, key)
		d.Unlock()
		return nil
	}
	delete(d.pending, remote)
	d.Unlock()

	if len(mods) == 0 {
		return d.injector.Press(key)
	}
	keys := append(append([]string(nil), mods...), key)
	return d.injector.Hotkey(keys...)
}
