package search

import "fmt"

// ErrorKind classifies a failed backend call.
type ErrorKind int

const (
	// TransportFailure covers unreachable hosts, timeouts and non-2xx statuses.
	TransportFailure ErrorKind = iota + 1
	// MalformedResponse means the body could not be parsed as JSON at all.
	MalformedResponse
)

func (k ErrorKind) String() string {
	switch k {
	case TransportFailure:
		return "transport failure"
	case MalformedResponse:
		return "malformed response"
	default:
		return "unknown"
	}
}

// Error is returned by every failed search call.
type Error struct {
	Kind       ErrorKind
	Endpoint   string
	StatusCode int // zero unless the backend answered
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: backend returned status %d", e.Endpoint, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Endpoint, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
