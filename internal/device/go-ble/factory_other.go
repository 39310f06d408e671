//go:build !linux && !darwin

package goble

import (
	"fmt"
	"runtime"

	"github.com/go-ble/ble"
	"github.com/srg/blethermo/internal/device"
)

// DefaultAdapterID is unused on platforms without a go-ble backend.
const DefaultAdapterID = "none"

func defaultDevice() (ble.Device, error) {
	return nil, fmt.Errorf("%w: go-ble has no backend for %s", device.ErrUnsupported, runtime.GOOS)
}
