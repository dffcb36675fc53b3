package tezosNode

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TransportError reports a failed node call. StatusCode is zero when no
// response was received.
type TransportError struct {
	Endpoint   string
	Method     string
	StatusCode int
	StatusText string
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "node call %s %s failed", e.Method, e.Endpoint)
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, ": %s", e.StatusText)
	}
	if e.Body != "" {
		fmt.Fprintf(&sb, ": %s", e.Body)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Responded reports whether the node answered (with a non-2xx status).
func (e *TransportError) Responded() bool { return e.StatusCode != 0 }

// NodeErrors parses the node's JSON error list from the body, if any.
func (e *TransportError) NodeErrors() []NodeError {
	var errs []NodeError
	if err := json.Unmarshal([]byte(e.Body), &errs); err != nil {
		return nil
	}
	return errs
}
