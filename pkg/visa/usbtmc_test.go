package visa

import (
	"context"
	"testing"
	"time"
)

func TestUSBTMCConstants(t *testing.T) {
	if USBTMCHeaderSize != 12 {
		t.Errorf("Expected header size 12, got %d", USBTMCHeaderSize)
	}
	if DefaultUSBTimeout != 5*time.Second {
		t.Errorf("Expected default timeout 5s, got %v", DefaultUSBTimeout)
	}
}

func TestEnumerateUSBTMC(t *testing.T) {
	// This will work even if no hardware is connected
	devices, err := EnumerateUSBTMC(context.Background())
	if err != nil {
		t.Skipf("USB enumeration unavailable: %v", err)
	}

	t.Logf("Found %d USBTMC device(s)", len(devices))
	for i, dev := range devices {
		t.Logf("  Device %d: %s (%s)", i, dev.Address(), dev.Description)
	}
}

// Integration test - only runs with real hardware
func TestUSBTMCIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	devices, err := EnumerateUSBTMC(context.Background())
	if err != nil || len(devices) == 0 {
		t.Skip("No USBTMC hardware found")
	}

	dev := devices[0]
	transport, err := NewUSBTMCTransport(dev.VID, dev.PID, dev.SerialNumber)
	if err != nil {
		t.Skipf("Cannot open %s: %v", dev.Address(), err)
	}
	defer transport.Close()

	reply, err := transport.Query("*IDN?")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if reply == "" {
		t.Error("Empty identification reply")
	}
	t.Logf("Instrument: %s", reply)
}
