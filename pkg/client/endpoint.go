package client

import (
	"net"
	"strconv"
	"strings"
)

// Endpoint identifies the remote listener. It is fixed for the lifetime of a
// Manager; pointing somewhere else means building a new Manager.
type Endpoint struct {
	Host string
	Port int
}

// ParseEndpoint parses "host:port" and validates the result
func ParseEndpoint(hostport string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(hostport))
	if err != nil {
		return Endpoint{}, &ConfigError{Field: "endpoint", Value: hostport, Reason: err.Error()}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, &ConfigError{Field: "port", Value: portStr, Reason: "not a number"}
	}
	ep := Endpoint{Host: host, Port: port}
	return ep, ep.Validate()
}

// Validate rejects an empty host or a port outside 1..65535
func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.Host) == "" {
		return &ConfigError{Field: "host", Value: e.Host, Reason: "must not be empty"}
	}
	if e.Port < 1 || e.Port > 65535 {
		return &ConfigError{Field: "port", Value: strconv.Itoa(e.Port), Reason: "must be between 1 and 65535"}
	}
	return nil
}

// String returns the dialable host:port form
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}
