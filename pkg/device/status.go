package device

// Status is the configuration state of one device session. Within a single
// connection lifetime the machine only moves forward; the only way back to
// Configuring is a fresh Disconnected -> Connecting cycle on a new session.
type Status int

const (
	// StatusDisconnected is the initial state before a connection attempt
	StatusDisconnected Status = iota
	// StatusConnecting covers the transport-level handshake
	StatusConnecting
	// StatusConfiguring runs from a successful handshake until the radio
	// confirms configuration (or the timeout guard declares failure)
	StatusConfiguring
	// StatusConfigured means the radio confirmed configuration; the
	// pipeline still has to notify and advance to Connected
	StatusConfigured
	// StatusConnected is the steady state
	StatusConnected
	// StatusFailed is terminal, reachable only from Configuring via the
	// timeout guard
	StatusFailed
)

// String returns the string representation of a status
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConfiguring:
		return "configuring"
	case StatusConfigured:
		return "configured"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CanTransition reports whether moving from s to the target status is a
// valid step of the session state machine.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusDisconnected:
		return to == StatusConnecting
	case StatusConnecting:
		return to == StatusConfiguring
	case StatusConfiguring:
		return to == StatusConfigured || to == StatusFailed
	case StatusConfigured:
		return to == StatusConnected
	default:
		// Connected and Failed are terminal within one session
		return false
	}
}
