package live

import "fmt"

var closeCodeMessages = map[int]string{
	1000: "normal closure: connection completed successfully",
	1001: "going away: endpoint is going away (e.g. server shutdown)",
	1002: "protocol error: WebSocket protocol violation",
	1003: "unsupported data: received data type cannot be accepted",
	1005: "no status received: connection closed without a close frame",
	1006: "abnormal closure: connection dropped without a proper close",
	1007: "invalid frame payload: message contained invalid data",
	1008: "policy violation: message violates endpoint policy",
	1009: "message too big: message exceeds size limit",
	1010: "missing extension: client expected an extension the server didn't provide",
	1011: "internal error: server encountered an unexpected condition",
	1012: "service restart: server is restarting",
	1013: "try again later: server is temporarily unavailable",
	1014: "bad gateway: gateway received an invalid response",
	1015: "TLS handshake failed: connection failed due to a TLS error",
}

// CloseCodeMessage describes a WebSocket close code for operators.
// It is diagnostic only and never changes session behavior.
func CloseCodeMessage(code int) string {
	if msg, ok := closeCodeMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("unknown close code: %d", code)
}

// CloseError is returned when the socket closes before the turn completed
type CloseError struct {
	Code   int
	Reason string
	State  State // state the session was in when the socket closed
}

func (e *CloseError) Error() string {
	msg := fmt.Sprintf("live socket closed in state %s with code %d (%s)", e.State, e.Code, CloseCodeMessage(e.Code))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
