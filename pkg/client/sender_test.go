package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type lineRecorder []string

func (r *lineRecorder) Send(line string) {
	*r = append(*r, line)
}

func TestEventSender(t *testing.T) {
	rec := &lineRecorder{}
	e := NewEventSender(rec)

	e.Key("shift")
	e.Key("a")
	e.Key("hyper")
	e.MouseMove(5, -3)
	e.MouseClick("left")
	e.MouseClick("back")
	e.MouseScroll(-2)
	e.MouseHScroll(1)
	e.Clear()
	e.Send("f5")

	assert.Equal(t, lineRecorder{
		"shift",
		"a",
		"mouse_move 5 -3",
		"mouse_click left",
		"mouse_scroll -2",
		"mouse_hscroll 1",
		"clear",
		"f5",
	}, *rec, "unknown keys and buttons should be dropped")
}

func TestEndpoint(t *testing.T) {
	ep, err := ParseEndpoint("10.0.0.118:7642")
	assert.NoError(t, err)
	assert.Equal(t, Endpoint{Host: "10.0.0.118", Port: 7642}, ep)
	assert.Equal(t, "10.0.0.118:7642", ep.String())

	assert.Equal(t, "[::1]:9", Endpoint{Host: "::1", Port: 9}.String())

	for _, bad := range []string{"", "host", "host:", ":7642", "host:abc", "host:0", "host:65536"} {
		_, err := ParseEndpoint(bad)
		assert.Error(t, err, "%q should not parse", bad)
	}
	assert.NoError(t, Endpoint{Host: "h", Port: 65535}.Validate())
}
