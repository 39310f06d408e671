//go:build linux

package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// DefaultAdapterID names the controller go-ble opens when no device id is given.
const DefaultAdapterID = "hci0"

func defaultDevice() (ble.Device, error) {
	return linux.NewDevice()
}
