package devicefactory

import (
	"github.com/srg/blethermo/internal/device"
	goble "github.com/srg/blethermo/internal/device/go-ble"
)

// ManagerFactory opens a device.Manager for one scan cycle.
// This is a variable so that it can be overridden in tests.
var ManagerFactory = func() (device.Manager, error) {
	return goble.NewManager()
}
