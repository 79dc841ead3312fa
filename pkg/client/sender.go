package client

import (
	"github.com/rs/zerolog/log"

	"github.com/josh23french/remotekeys/pkg/protocol"
)

// EventSender is what the keyboard and touchpad talk to. Every method returns
// immediately and never reports failure; a line that cannot be delivered is
// lost.
type EventSender struct {
	sender Sender
}

// NewEventSender wraps a Manager, a Rebinder or any other Sender
func NewEventSender(s Sender) *EventSender {
	return &EventSender{sender: s}
}

// Send hands an already formatted line to the connection
func (e *EventSender) Send(line string) {
	e.sender.Send(line)
}

// Key sends a key token such as "a", "f5" or "shift"
func (e *EventSender) Key(token string) {
	line, err := protocol.Key(token)
	if err != nil {
		log.Debug().Err(err).Msg("not sending key")
		return
	}
	e.sender.Send(line)
}

// MouseMove sends a relative pointer move
func (e *EventSender) MouseMove(dx, dy int) {
	e.sender.Send(protocol.MouseMove(dx, dy))
}

// MouseClick sends a click of "left", "right" or "middle"
func (e *EventSender) MouseClick(button string) {
	line, err := protocol.MouseClick(button)
	if err != nil {
		log.Debug().Err(err).Msg("not sending click")
		return
	}
	e.sender.Send(line)
}

// MouseScroll sends a vertical scroll; positive is down
func (e *EventSender) MouseScroll(steps int) {
	e.sender.Send(protocol.MouseScroll(steps))
}

// MouseHScroll sends a horizontal scroll; positive is right
func (e *EventSender) MouseHScroll(steps int) {
	e.sender.Send(protocol.MouseHScroll(steps))
}

// Clear tells the receiver to forget pending modifiers
func (e *EventSender) Clear() {
	e.sender.Send(protocol.Clear())
}
