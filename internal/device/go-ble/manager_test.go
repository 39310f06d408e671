package goble_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-ble/ble"
	"github.com/srg/blethermo/internal/device"
	goble "github.com/srg/blethermo/internal/device/go-ble"
	"github.com/stretchr/testify/suite"
)

// fakeAdvertisement overrides the ble.Advertisement methods the wrapper reads.
type fakeAdvertisement struct {
	ble.Advertisement
	addr  ble.Addr
	name  string
	rssi  int
	manuf []byte
}

func (a *fakeAdvertisement) Addr() ble.Addr           { return a.addr }
func (a *fakeAdvertisement) LocalName() string        { return a.name }
func (a *fakeAdvertisement) RSSI() int                { return a.rssi }
func (a *fakeAdvertisement) ManufacturerData() []byte { return a.manuf }
func (a *fakeAdvertisement) Connectable() bool        { return false }

// fakeDevice overrides Scan and Stop; any other ble.Device call panics.
type fakeDevice struct {
	ble.Device
	advs    []ble.Advertisement
	scanErr error
	stops   int
}

func (d *fakeDevice) Scan(ctx context.Context, _ bool, h ble.AdvHandler) error {
	for _, a := range d.advs {
		h(a)
	}
	if d.scanErr != nil {
		return d.scanErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (d *fakeDevice) Stop() error {
	d.stops++
	return nil
}

type ManagerTestSuite struct {
	suite.Suite
	originalFactory func() (ble.Device, error)
}

func (suite *ManagerTestSuite) SetupTest() {
	suite.originalFactory = goble.DeviceFactory
}

func (suite *ManagerTestSuite) TearDownTest() {
	goble.DeviceFactory = suite.originalFactory
}

func (suite *ManagerTestSuite) TestNewManager_NormalizesOpenErrors() {
	tests := []struct {
		name          string
		factoryErr    error
		expectIsError error
	}{
		{
			name:          "darwin bluetooth off",
			factoryErr:    fmt.Errorf("central manager has invalid state: have=4 want=5: is Bluetooth turned on?"),
			expectIsError: device.ErrBluetoothOff,
		},
		{
			name:          "linux missing hci",
			factoryErr:    fmt.Errorf("can't init hci: no devices available"),
			expectIsError: device.ErrNoAdapter,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			goble.DeviceFactory = func() (ble.Device, error) { return nil, tt.factoryErr }

			mgr, err := goble.NewManager()

			suite.Nil(mgr)
			suite.ErrorIs(err, tt.expectIsError, "error chain MUST contain expected sentinel error")
		})
	}

	suite.Run("passes through unknown errors", func() {
		goble.DeviceFactory = func() (ble.Device, error) { return nil, errors.New("permission denied") }

		_, err := goble.NewManager()

		suite.EqualError(err, "permission denied")
		suite.NotErrorIs(err, device.ErrNoAdapter)
	})
}

func (suite *ManagerTestSuite) TestManager_EnumeratesSingleAdapter() {
	dev := &fakeDevice{}
	goble.DeviceFactory = func() (ble.Device, error) { return dev, nil }

	mgr, err := goble.NewManager()
	suite.Require().NoError(err)

	adapters, err := mgr.Adapters(context.Background())
	suite.Require().NoError(err)
	suite.Require().Len(adapters, 1)
	suite.Equal(goble.DefaultAdapterID, adapters[0].ID())

	suite.NoError(mgr.Close())
	suite.NoError(adapters[0].Close())
	suite.Equal(1, dev.stops, "controller MUST be stopped exactly once")
}

func (suite *ManagerTestSuite) TestManager_NoController() {
	goble.DeviceFactory = func() (ble.Device, error) { return nil, nil }

	mgr, err := goble.NewManager()
	suite.Require().NoError(err)

	adapters, err := mgr.Adapters(context.Background())
	suite.NoError(err)
	suite.Empty(adapters)
	suite.NoError(mgr.Close())
}

func (suite *ManagerTestSuite) TestAdapter_ScanWrapsAdvertisements() {
	dev := &fakeDevice{
		advs: []ble.Advertisement{
			&fakeAdvertisement{addr: ble.NewAddr("b8:59:ce:33:0f:93"), name: "thermo", rssi: -61, manuf: []byte{0x01, 0xd7, 0x00, 0x30}},
			&fakeAdvertisement{name: "anonymous"},
		},
	}
	goble.DeviceFactory = func() (ble.Device, error) { return dev, nil }

	mgr, err := goble.NewManager()
	suite.Require().NoError(err)
	adapters, err := mgr.Adapters(context.Background())
	suite.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	var got []device.Advertisement
	err = adapters[0].Scan(ctx, true, func(adv device.Advertisement) {
		got = append(got, adv)
		if len(got) == 2 {
			cancel()
		}
	})

	suite.ErrorIs(err, context.Canceled)
	suite.Require().Len(got, 2)
	suite.Equal("b8:59:ce:33:0f:93", got[0].Addr())
	suite.Equal(-61, got[0].RSSI())
	suite.Equal([]byte{0x01, 0xd7, 0x00, 0x30}, got[0].ManufacturerData())
	suite.Equal("", got[1].Addr(), "missing address MUST map to empty string")
}

func (suite *ManagerTestSuite) TestAdapter_ScanNormalizesFailure() {
	dev := &fakeDevice{scanErr: errors.New("Bluetooth is turned off")}
	goble.DeviceFactory = func() (ble.Device, error) { return dev, nil }

	mgr, err := goble.NewManager()
	suite.Require().NoError(err)
	adapters, err := mgr.Adapters(context.Background())
	suite.Require().NoError(err)

	err = adapters[0].Scan(context.Background(), true, func(device.Advertisement) {})
	suite.ErrorIs(err, device.ErrBluetoothOff)
}

func TestManagerTestSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}
