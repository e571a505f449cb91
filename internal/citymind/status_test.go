package citymind_test

import (
	"testing"

	"github.com/nadavgil/water-metering-collector/internal/citymind"
	"go.uber.org/zap/zapcore"
)

func TestConnectivityStatus_String(t *testing.T) {
	cases := map[citymind.ConnectivityStatus]string{
		citymind.StatusNotConnected:       "NotConnected",
		citymind.StatusConnecting:         "Connecting",
		citymind.StatusConnected:          "Connected",
		citymind.StatusFailed:             "Failed",
		citymind.StatusInvalidCredentials: "InvalidCredentials",
		citymind.StatusMissingAPIKey:      "MissingAPIKey",
		citymind.StatusNotFound:           "NotFound",
		citymind.StatusDisconnected:       "Disconnected",
	}

	for status, expected := range cases {
		if got := status.String(); got != expected {
			t.Errorf("Expected '%s', got '%s'", expected, got)
		}
	}

	if got := citymind.ConnectivityStatus(99).String(); got != "Unknown" {
		t.Errorf("Expected 'Unknown' for out-of-range status, got '%s'", got)
	}
}

func TestConnectivityStatus_LogLevel(t *testing.T) {
	if got := citymind.StatusFailed.LogLevel(); got != zapcore.ErrorLevel {
		t.Errorf("Expected error level for Failed, got %v", got)
	}

	for _, status := range []citymind.ConnectivityStatus{
		citymind.StatusInvalidCredentials,
		citymind.StatusMissingAPIKey,
		citymind.StatusNotFound,
	} {
		if got := status.LogLevel(); got != zapcore.WarnLevel {
			t.Errorf("Expected warn level for %s, got %v", status, got)
		}
	}

	if got := citymind.StatusConnecting.LogLevel(); got != zapcore.DebugLevel {
		t.Errorf("Expected debug level for Connecting, got %v", got)
	}

	if got := citymind.StatusConnected.LogLevel(); got != zapcore.InfoLevel {
		t.Errorf("Expected info level for Connected, got %v", got)
	}
}

func TestConnectivityStatus_IsOnline(t *testing.T) {
	if !citymind.StatusConnected.IsOnline() {
		t.Error("Expected Connected to be online")
	}

	for _, status := range []citymind.ConnectivityStatus{
		citymind.StatusNotConnected,
		citymind.StatusConnecting,
		citymind.StatusFailed,
		citymind.StatusInvalidCredentials,
		citymind.StatusMissingAPIKey,
		citymind.StatusDisconnected,
	} {
		if status.IsOnline() {
			t.Errorf("Expected %s to be offline", status)
		}
	}
}
