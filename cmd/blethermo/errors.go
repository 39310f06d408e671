package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/srg/blethermo/internal/device"
	"github.com/srg/blethermo/pkg/config"
)

// FormatUserError turns the errors a user can act on into a hint; anything
// else is printed as is.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off. Turn it on and try again."
	case errors.Is(err, device.ErrNoAdapter):
		return "no Bluetooth adapter available. Check that the controller is present and not held by another process."
	case errors.Is(err, device.ErrUnsupported):
		return "BLE scanning is not supported on this platform."
	case errors.Is(err, config.ErrInvalidConfig):
		return err.Error()
	case errors.Is(err, fs.ErrPermission):
		return fmt.Sprintf("permission denied: %v", err)
	default:
		return err.Error()
	}
}
