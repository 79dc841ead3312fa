package client

import "sync"

// Rebinder holds the Manager for the currently configured endpoint and swaps
// it out when the endpoint changes, closing the old one first.
type Rebinder struct {
	sync.RWMutex
	opts    []Option
	current *Manager
}

// NewRebinder builds the first Manager. opts are reused for every rebind
// until Reconfigure replaces them.
func NewRebinder(ep Endpoint, opts ...Option) (*Rebinder, error) {
	m, err := NewManager(ep, opts...)
	if err != nil {
		return nil, err
	}
	return &Rebinder{opts: opts, current: m}, nil
}

// Rebind points the Rebinder at ep. It reports whether a new Manager was
// built; an unchanged endpoint is a no-op. An invalid ep leaves the current
// Manager in place.
func (r *Rebinder) Rebind(ep Endpoint) (bool, error) {
	if err := ep.Validate(); err != nil {
		return false, err
	}

	r.Lock()
	defer r.Unlock()
	if r.current != nil && r.current.Endpoint() == ep {
		return false, nil
	}
	if r.current != nil {
		r.current.Close()
	}
	m, err := NewManager(ep, r.opts...)
	if err != nil {
		r.current = nil
		return false, err
	}
	r.current = m
	return true, nil
}

// Reconfigure replaces the Manager options and always builds a new Manager
// for ep with them, even when ep is unchanged. An invalid ep leaves the
// current Manager and options in place.
func (r *Rebinder) Reconfigure(ep Endpoint, opts ...Option) error {
	if err := ep.Validate(); err != nil {
		return err
	}

	r.Lock()
	defer r.Unlock()
	if r.current != nil {
		r.current.Close()
	}
	r.opts = opts
	m, err := NewManager(ep, opts...)
	if err != nil {
		r.current = nil
		return err
	}
	r.current = m
	return nil
}

// Manager returns the current Manager, nil after Close
func (r *Rebinder) Manager() *Manager {
	r.RLock()
	defer r.RUnlock()
	return r.current
}

// Send forwards to the current Manager
func (r *Rebinder) Send(line string) {
	r.RLock()
	defer r.RUnlock()
	if r.current != nil {
		r.current.Send(line)
	}
}

// Endpoint returns the current endpoint, the zero Endpoint after Close
func (r *Rebinder) Endpoint() Endpoint {
	if m := r.Manager(); m != nil {
		return m.Endpoint()
	}
	return Endpoint{}
}

// State returns the current Manager's state
func (r *Rebinder) State() State {
	if m := r.Manager(); m != nil {
		return m.State()
	}
	return Disconnected
}

// Stats returns the current Manager's counters. They start over on rebind.
func (r *Rebinder) Stats() Stats {
	if m := r.Manager(); m != nil {
		return m.Stats()
	}
	return Stats{}
}

// Close closes the current Manager. Further sends are dropped.
func (r *Rebinder) Close() error {
	r.Lock()
	defer r.Unlock()
	if r.current == nil {
		return nil
	}
	err := r.current.Close()
	r.current = nil
	return err
}
