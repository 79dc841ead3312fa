// Package protocol is the remotekeys line protocol: one input event per
// newline-terminated UTF-8 line, no acknowledgements.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSyntax is wrapped by every Parse and Validate failure
var ErrSyntax = errors.New("syntax error")

// Mouse command verbs
const (
	VerbMouseMove    = "mouse_move"
	VerbMouseClick   = "mouse_click"
	VerbMouseScroll  = "mouse_scroll"
	VerbMouseHScroll = "mouse_hscroll"
	VerbClear        = "clear"
)

// Mouse buttons accepted by mouse_click
const (
	ButtonLeft   = "left"
	ButtonRight  = "right"
	ButtonMiddle = "middle"
)

// Kind is the type of a parsed Command
type Kind int

const (
	KindKey Kind = iota
	KindMouseMove
	KindMouseClick
	KindMouseScroll
	KindMouseHScroll
	KindClear
)

func (k Kind) String() string {
	switch k {
	case KindKey:
		return "key"
	case KindMouseMove:
		return VerbMouseMove
	case KindMouseClick:
		return VerbMouseClick
	case KindMouseScroll:
		return VerbMouseScroll
	case KindMouseHScroll:
		return VerbMouseHScroll
	case KindClear:
		return VerbClear
	}
	return "unknown"
}

// Command represents one parsed line. Only the fields relevant to Kind are set.
type Command struct {
	Kind   Kind
	Key    string // KindKey
	DX, DY int    // KindMouseMove
	Button string // KindMouseClick
	Steps  int    // KindMouseScroll, KindMouseHScroll
}

// namedKeys are the multi-character key tokens. Single letters and digits are
// handled by IsKey directly.
var namedKeys = map[string]bool{
	"esc": true, "tab": true, "enter": true, "backspace": true, "capslock": true,
	"shift": true, "ctrl": true, "alt": true, "space": true,
	"winleft": true, "winright": true, "apps": true,
	"insert": true, "home": true, "pageup": true, "delete": true, "end": true, "pagedown": true,
	"up": true, "down": true, "left": true, "right": true,
	"`": true, "-": true, "=": true, "[": true, "]": true, "\\": true,
	";": true, "'": true, ",": true, ".": true, "/": true,
}

func init() {
	for i := 1; i <= 12; i++ {
		namedKeys["f"+strconv.Itoa(i)] = true
	}
}

// IsKey reports whether token is a key the keyboard surface emits
func IsKey(token string) bool {
	if len(token) == 1 {
		c := token[0]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			return true
		}
	}
	return namedKeys[token]
}

// ValidateLine checks that line can be put on the wire as a single event.
// It does not check the grammar; the receiver is lenient about unknown keys.
func ValidateLine(line string) error {
	if strings.TrimSpace(line) == "" {
		return fmt.Errorf("%w: empty line", ErrSyntax)
	}
	if strings.ContainsAny(line, "\r\n") {
		return fmt.Errorf("%w: line contains a line break", ErrSyntax)
	}
	return nil
}

// Key formats a single key press
func Key(token string) (string, error) {
	if !IsKey(token) {
		return "", fmt.Errorf("%w: unknown key %q", ErrSyntax, token)
	}
	return token, nil
}

// MouseMove formats a relative pointer move
func MouseMove(dx, dy int) string {
	return fmt.Sprintf("%s %d %d", VerbMouseMove, dx, dy)
}

// MouseClick formats a button click
func MouseClick(button string) (string, error) {
	switch button {
	case ButtonLeft, ButtonRight, ButtonMiddle:
		return VerbMouseClick + " " + button, nil
	}
	return "", fmt.Errorf("%w: unknown mouse button %q", ErrSyntax, button)
}

// MouseScroll formats a vertical scroll; positive steps scroll down
func MouseScroll(steps int) string {
	return VerbMouseScroll + " " + strconv.Itoa(steps)
}

// MouseHScroll formats a horizontal scroll; positive steps scroll right
func MouseHScroll(steps int) string {
	return VerbMouseHScroll + " " + strconv.Itoa(steps)
}

// Clear drops any modifiers pending on the receiver
func Clear() string {
	return VerbClear
}

// Parse turns a trimmed line into a Command. Anything that is not a mouse
// verb or clear is treated as a key name and returned lowercased, without
// checking it against IsKey.
func Parse(line string) (Command, error) {
	raw := strings.TrimSpace(line)
	if raw == "" {
		return Command{}, fmt.Errorf("%w: empty line", ErrSyntax)
	}
	parts := strings.Fields(raw)

	switch parts[0] {
	case VerbMouseMove:
		if len(parts) != 3 {
			return Command{}, fmt.Errorf("%w: %s wants 2 arguments, got %d", ErrSyntax, VerbMouseMove, len(parts)-1)
		}
		dx, err := strconv.Atoi(parts[1])
		if err != nil {
			return Command{}, fmt.Errorf("%w: bad dx %q", ErrSyntax, parts[1])
		}
		dy, err := strconv.Atoi(parts[2])
		if err != nil {
			return Command{}, fmt.Errorf("%w: bad dy %q", ErrSyntax, parts[2])
		}
		return Command{Kind: KindMouseMove, DX: dx, DY: dy}, nil
	case VerbMouseClick:
		if len(parts) != 2 {
			return Command{}, fmt.Errorf("%w: %s wants 1 argument", ErrSyntax, VerbMouseClick)
		}
		if _, err := MouseClick(parts[1]); err != nil {
			return Command{}, err
		}
		return Command{Kind: KindMouseClick, Button: parts[1]}, nil
	case VerbMouseScroll, VerbMouseHScroll:
		if len(parts) != 2 {
			return Command{}, fmt.Errorf("%w: %s wants 1 argument", ErrSyntax, parts[0])
		}
		steps, err := strconv.Atoi(parts[1])
		if err != nil {
			return Command{}, fmt.Errorf("%w: bad steps %q", ErrSyntax, parts[1])
		}
		kind := KindMouseScroll
		if parts[0] == VerbMouseHScroll {
			kind = KindMouseHScroll
		}
		return Command{Kind: kind, Steps: steps}, nil
	}

	if len(parts) != 1 {
		return Command{}, fmt.Errorf("%w: unexpected arguments %q", ErrSyntax, raw)
	}
	key := strings.ToLower(parts[0])
	if key == VerbClear {
		return Command{Kind: KindClear}, nil
	}
	return Command{Kind: KindKey, Key: key}, nil
}

// Marshall turns the Command back into its wire line, without the newline
func (c Command) Marshall() string {
	switch c.Kind {
	case KindMouseMove:
		return MouseMove(c.DX, c.DY)
	case KindMouseClick:
		return VerbMouseClick + " " + c.Button
	case KindMouseScroll:
		return MouseScroll(c.Steps)
	case KindMouseHScroll:
		return MouseHScroll(c.Steps)
	case KindClear:
		return Clear()
	}
	return c.Key
}
