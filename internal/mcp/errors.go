package mcp

import "fmt"

// ProtocolError is returned when a remote MCP server answers a request with
// a well-formed JSON-RPC error object. Code and Message are carried verbatim
// from the wire so callers can distinguish server-side rejections (bad
// params, unknown tool, ...) from a broken transport.
type ProtocolError struct {
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("mcp protocol error %d: %s", e.Code, e.Message)
}

// TransportError wraps anything that goes wrong getting bytes to or from the
// remote server: the process won't start, the pipe closes early, the HTTP
// round trip fails, the payload isn't valid JSON-RPC. It never carries a
// server-issued error code, because by definition no server response was
// parsed.
type TransportError struct {
	Message string
	Cause   error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("mcp transport error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("mcp transport error: %s", e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

func newTransportError(msg string, cause error) error {
	return &TransportError{Message: msg, Cause: cause}
}
