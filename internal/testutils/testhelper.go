package testutils

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper with a suppressed logger.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel) // debug paths still execute
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

func CreateMockAdvertisement(name, address string, rssi int) *AdvertisementBuilder {
	return NewAdvertisementBuilder().WithName(name).WithAddress(address).WithRSSI(rssi)
}

// CreateThermometerAdvertisement builds an advertisement from address carrying an encoded reading.
func CreateThermometerAdvertisement(address string, temperature float64, humidity uint8) *AdvertisementBuilder {
	return NewAdvertisementBuilder().WithAddress(address).WithRSSI(-60).WithReading(temperature, humidity)
}
