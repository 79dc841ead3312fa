package client

import (
	"sync"
	"time"
)

// Stats is a snapshot of what a Manager has done so far. Failures never reach
// callers of Send, so this is where they show up.
type Stats struct {
	ConnectAttempts uint64
	Connects        uint64
	ConnectFailures uint64
	LinesWritten    uint64
	WriteFailures   uint64
	// Dropped counts lines that never reached the wire for any reason:
	// invalid, queue full, manager closed, connect failed or write failed.
	Dropped uint64

	// LastError is a *ConnectError or *WriteError, nil if nothing failed yet
	LastError   error
	LastErrorAt time.Time

	// EverConnected separates "never connected" from "dropped after connecting"
	EverConnected bool
}

type stats struct {
	sync.Mutex
	s Stats
}

func (st *stats) snapshot() Stats {
	st.Lock()
	defer st.Unlock()
	return st.s
}

func (st *stats) attempt() {
	st.Lock()
	st.s.ConnectAttempts++
	st.Unlock()
}

func (st *stats) connected() {
	st.Lock()
	st.s.Connects++
	st.s.EverConnected = true
	st.Unlock()
}

func (st *stats) connectFailed(err error) {
	st.Lock()
	st.s.ConnectFailures++
	st.s.LastError = err
	st.s.LastErrorAt = time.Now()
	st.Unlock()
}

func (st *stats) written() {
	st.Lock()
	st.s.LinesWritten++
	st.Unlock()
}

func (st *stats) writeFailed(err error) {
	st.Lock()
	st.s.WriteFailures++
	st.s.Dropped++
	st.s.LastError = err
	st.s.LastErrorAt = time.Now()
	st.Unlock()
}

func (st *stats) drop() {
	st.Lock()
	st.s.Dropped++
	st.Unlock()
}
