package main

import (
	"bytes"
	"testing"

	"github.com/srg/blethermo/internal/device"
	"github.com/srg/blethermo/internal/payload"
	"github.com/srg/blethermo/internal/testutils"
	"github.com/srg/blethermo/scanner"
	"github.com/stretchr/testify/suite"
)

type DiscoverCommandTestSuite struct {
	CommandTestSuite
}

func (s *DiscoverCommandTestSuite) TestListsDevicesAndMarksTarget() {
	s.Adapter.Advertisements = []device.Advertisement{
		testutils.CreateThermometerAdvertisement(testTarget, 21.5, 48).WithName("thermo").Build(),
		testutils.CreateMockAdvertisement("beacon", "11:22:33:44:55:66", -40).WithManufacturerData([]byte{0x4c, 0x00, 0x02}).Build(),
	}

	out, err := s.ExecuteCommand(rootCmd, "discover", "--duration", "20ms", "--config", s.ConfigPath)
	s.Require().NoError(err)

	s.Contains(out, "ADDRESS")
	s.Contains(out, "11:22:33:44:55:66")
	s.Contains(out, "4C 00 02")
	s.Regexp(`\*\s+B8:59:CE:33:0F:93\s+thermo\s+-60 dBm\s+1\s+01 D7 00 30\s+21,5°C 48%`, out)
}

func (s *DiscoverCommandTestSuite) TestNoAdapter() {
	s.BLE.NoAdapter = true
	_, err := s.ExecuteCommand(rootCmd, "discover", "--duration", "20ms", "--config", s.ConfigPath)
	s.ErrorIs(err, device.ErrNoAdapter)
}

func (s *DiscoverCommandTestSuite) TestRejectsNonPositiveDuration() {
	_, err := s.ExecuteCommand(rootCmd, "discover", "--duration", "0s", "--config", s.ConfigPath)
	s.ErrorContains(err, "must be positive")
}

func (s *DiscoverCommandTestSuite) TestDisplayDevices_Empty() {
	var buf bytes.Buffer
	s.Require().NoError(displayDevices(&buf, nil, testTarget))
	s.Equal("No devices discovered\n", buf.String())
}

func (s *DiscoverCommandTestSuite) TestDisplayDevices_TruncatesLongFields() {
	var buf bytes.Buffer
	entries := []scanner.DeviceEntry{{
		Address:          "11:22:33:44:55:66",
		Name:             "a-rather-long-device-name",
		RSSI:             -80,
		ManufacturerData: bytes.Repeat([]byte{0xab}, 20),
		Measurement:      &payload.Measurement{Temperature: -4.2, Humidity: 77},
		Seen:             3,
	}}
	s.Require().NoError(displayDevices(&buf, entries, testTarget))

	s.Contains(buf.String(), "a-rather-long-dev...")
	s.Contains(buf.String(), "-4,2°C 77%")
	s.NotContains(buf.String(), "*")
}

func TestDiscoverCommandTestSuite(t *testing.T) {
	suite.Run(t, new(DiscoverCommandTestSuite))
}
