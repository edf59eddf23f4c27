package types

// TransportStatus is the observable state of the persistent connection.
type TransportStatus int

const (
	StatusDisconnected TransportStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	// StatusFailed is terminal: reconnect attempts are exhausted.
	StatusFailed
)

// String returns a short name for logs and the CLI.
func (s TransportStatus) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusFailed:
		return "failed"
	default:
		return "disconnected"
	}
}
