package goble

import (
	"fmt"
	"strings"

	"github.com/srg/blethermo/internal/device"
)

// NormalizeError maps known go-ble error strings to the device sentinel errors.
// Platform-specific messages are handled here; generic ones are delegated to
// device.NormalizeError.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case msg == "central manager has invalid state: have=4 want=5: is Bluetooth turned on?":
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "can't init hci"):
		return fmt.Errorf("%w: %v", device.ErrNoAdapter, err)
	default:
		return device.NormalizeError(err)
	}
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
