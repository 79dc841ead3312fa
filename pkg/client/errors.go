package client

import "fmt"

// ConfigError is an invalid endpoint, rejected before a Manager exists
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// ConnectError records a failed dial: refused, unreachable or timed out.
// It is never returned from Send; see Stats.LastError.
type ConnectError struct {
	Endpoint Endpoint
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %v: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// WriteError records a failed write or flush on a live connection. The line
// being written was dropped and the connection torn down.
type WriteError struct {
	Endpoint Endpoint
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %v: %v", e.Endpoint, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
