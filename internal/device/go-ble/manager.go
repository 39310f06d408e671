package goble

import (
	"context"
	"sync"

	"github.com/go-ble/ble"
	"github.com/srg/blethermo/internal/device"
)

// DeviceFactory opens the host's default BLE controller (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = defaultDevice

// bleAdapter wraps ble.Device to implement a device.Adapter interface
type bleAdapter struct {
	id  string
	dev ble.Device

	closeOnce sync.Once
	closeErr  error
}

func (a *bleAdapter) ID() string { return a.id }

// Scan wraps the raw ble.Device.Scan to convert ble.Advertisement to the device.Advertisement
func (a *bleAdapter) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	// Adapter: convert a handler expecting a device.Advertisement to the one expecting ble.Advertisement
	bleHandler := func(adv ble.Advertisement) {
		handler(NewBLEAdvertisement(adv))
	}
	err := a.dev.Scan(ctx, allowDup, bleHandler)
	if err != nil {
		return NormalizeError(err)
	}
	return nil
}

// Close stops the controller. Safe to call more than once.
func (a *bleAdapter) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = NormalizeError(a.dev.Stop())
	})
	return a.closeErr
}

// bleManager is a go-ble central manager holding at most one opened controller.
// go-ble exposes only the default controller, so enumeration yields zero or one adapter.
type bleManager struct {
	adapter *bleAdapter
}

// NewManager opens the default BLE controller. A failure here is the
// "manager unavailable" adapter fault.
func NewManager() (device.Manager, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, NormalizeError(err)
	}
	if dev == nil {
		return &bleManager{}, nil
	}
	return &bleManager{adapter: &bleAdapter{id: DefaultAdapterID, dev: dev}}, nil
}

func (m *bleManager) Adapters(ctx context.Context) ([]device.Adapter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.adapter == nil {
		return nil, nil
	}
	return []device.Adapter{m.adapter}, nil
}

func (m *bleManager) Close() error {
	if m.adapter == nil {
		return nil
	}
	return m.adapter.Close()
}
