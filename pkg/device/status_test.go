package device

import (
	"testing"
)

func TestStatusHappyPath(t *testing.T) {
	path := []Status{
		StatusDisconnected,
		StatusConnecting,
		StatusConfiguring,
		StatusConfigured,
		StatusConnected,
	}
	for i := 0; i < len(path)-1; i++ {
		if !path[i].CanTransition(path[i+1]) {
			t.Errorf("Expected %s -> %s to be valid", path[i], path[i+1])
		}
	}
}

func TestStatusFailureOnlyFromConfiguring(t *testing.T) {
	for _, s := range []Status{StatusDisconnected, StatusConnecting, StatusConfigured, StatusConnected, StatusFailed} {
		if s.CanTransition(StatusFailed) {
			t.Errorf("%s -> failed should be invalid", s)
		}
	}
	if !StatusConfiguring.CanTransition(StatusFailed) {
		t.Error("configuring -> failed should be valid")
	}
}

func TestStatusIsMonotonic(t *testing.T) {
	// No transition back into configuring except via a fresh session
	for _, s := range []Status{StatusConfigured, StatusConnected, StatusFailed} {
		if s.CanTransition(StatusConfiguring) {
			t.Errorf("%s -> configuring should be invalid", s)
		}
		if s.CanTransition(StatusConnecting) {
			t.Errorf("%s -> connecting should be invalid", s)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	all := []Status{
		StatusDisconnected, StatusConnecting, StatusConfiguring,
		StatusConfigured, StatusConnected, StatusFailed,
	}
	for _, target := range all {
		if StatusConnected.CanTransition(target) {
			t.Errorf("connected -> %s should be invalid", target)
		}
		if StatusFailed.CanTransition(target) {
			t.Errorf("failed -> %s should be invalid", target)
		}
	}
}
