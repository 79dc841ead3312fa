package client

import "sync"

// State is the manager-wide connectivity
type State int

const (
	// Disconnected means no live connection exists. It is the initial state.
	Disconnected State = iota
	// Connected means the manager holds a live connection
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Observer publishes the State of one Manager to any number of subscribers,
// e.g. a status indicator. A remote that went away is only noticed on the
// next failed write or connect attempt.
type Observer struct {
	sync.Mutex
	state  State
	subs   map[int]chan State
	nextID int
	closed bool
}

func newObserver() *Observer {
	return &Observer{
		state: Disconnected,
		subs:  make(map[int]chan State),
	}
}

// Current returns the latest published state
func (o *Observer) Current() State {
	o.Lock()
	defer o.Unlock()
	return o.state
}

// Subscribe returns a channel that always holds the most recent state. It is
// seeded with the current value; intermediate values may be skipped if the
// reader is slow. The channel is closed when the manager shuts down or when
// cancel is called.
func (o *Observer) Subscribe() (<-chan State, func()) {
	o.Lock()
	defer o.Unlock()

	ch := make(chan State, 1)
	ch <- o.state
	if o.closed {
		close(ch)
		return ch, func() {}
	}

	id := o.nextID
	o.nextID++
	o.subs[id] = ch

	return ch, func() {
		o.Lock()
		defer o.Unlock()
		if c, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(c)
		}
	}
}

func (o *Observer) set(s State) {
	o.Lock()
	defer o.Unlock()
	if o.closed || o.state == s {
		return
	}
	o.state = s
	for _, ch := range o.subs {
		// replace any unread value with the newest one
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (o *Observer) close() {
	o.Lock()
	defer o.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	for id, ch := range o.subs {
		delete(o.subs, id)
		close(ch)
	}
}
