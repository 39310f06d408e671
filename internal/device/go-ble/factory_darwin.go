//go:build darwin

package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

// DefaultAdapterID names the CoreBluetooth central manager.
const DefaultAdapterID = "corebluetooth"

func defaultDevice() (ble.Device, error) {
	return darwin.NewDevice()
}
