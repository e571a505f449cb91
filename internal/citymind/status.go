package citymind

import (
	"go.uber.org/zap/zapcore"
)

// ConnectivityStatus is the connection state of a portal session client.
// Exactly one value is current per client; the only way it changes is a
// transition inside the client, and every transition is observable through
// the status-changed callback.
type ConnectivityStatus int

const (
	StatusNotConnected ConnectivityStatus = iota
	StatusConnecting
	StatusConnected
	StatusFailed
	StatusInvalidCredentials
	StatusMissingAPIKey
	StatusNotFound
	StatusDisconnected
)

var statusNames = map[ConnectivityStatus]string{
	StatusNotConnected:       "NotConnected",
	StatusConnecting:         "Connecting",
	StatusConnected:          "Connected",
	StatusFailed:             "Failed",
	StatusInvalidCredentials: "InvalidCredentials",
	StatusMissingAPIKey:      "MissingAPIKey",
	StatusNotFound:           "NotFound",
	StatusDisconnected:       "Disconnected",
}

func (s ConnectivityStatus) String() string {
	name, ok := statusNames[s]
	if !ok {
		return "Unknown"
	}
	return name
}

// LogLevel is the log severity associated with a status. All callers log
// status updates through this single mapping.
func (s ConnectivityStatus) LogLevel() zapcore.Level {
	switch s {
	case StatusFailed:
		return zapcore.ErrorLevel
	case StatusInvalidCredentials, StatusMissingAPIKey, StatusNotFound:
		return zapcore.WarnLevel
	case StatusConnecting:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsOnline reports whether authenticated requests can be attempted.
func (s ConnectivityStatus) IsOnline() bool {
	return s == StatusConnected
}
