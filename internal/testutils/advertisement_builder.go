package testutils

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/srg/blethermo/internal/device"
)

// Advertisement is a static device.Advertisement for tests.
type Advertisement struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	Rssi        int    `json:"rssi"`
	ManufData   []byte `json:"manufacturerData"`
	IsConnected bool   `json:"connectable"`
}

func (a *Advertisement) LocalName() string        { return a.Name }
func (a *Advertisement) ManufacturerData() []byte { return a.ManufData }
func (a *Advertisement) Connectable() bool        { return a.IsConnected }
func (a *Advertisement) RSSI() int                { return a.Rssi }
func (a *Advertisement) Addr() string             { return a.Address }

// AdvertisementBuilder builds BLE advertisements for testing.
type AdvertisementBuilder struct {
	adv Advertisement
}

// NewAdvertisementBuilder creates a new AdvertisementBuilder with default values.
// The builder starts with rssi=-50 and connectable=false, as thermometers broadcast only.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{adv: Advertisement{Rssi: -50}}
}

// WithName sets the local name for the advertisement.
func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.Name = name
	return b
}

// WithAddress sets the device address for the advertisement.
func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.Address = addr
	return b
}

// WithRSSI sets the signal strength for the advertisement.
func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.Rssi = rssi
	return b
}

// WithManufacturerData sets the raw manufacturer-specific field (company id LE + payload).
func (b *AdvertisementBuilder) WithManufacturerData(data []byte) *AdvertisementBuilder {
	b.adv.ManufData = data
	return b
}

// WithReading encodes temperature and humidity the way the thermometer does:
// the tenths-of-a-degree value is split across the company id high byte and
// the first payload byte.
func (b *AdvertisementBuilder) WithReading(temperature float64, humidity uint8) *AdvertisementBuilder {
	raw := uint16(int16(math.Round(temperature * 10)))
	b.adv.ManufData = []byte{0x01, byte(raw), byte(raw >> 8), humidity}
	return b
}

// WithConnectable sets whether the device accepts connections.
func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.adv.IsConnected = c
	return b
}

// FromJSON fills builder fields from a JSON string with format support.
// Panics on invalid JSON as this is intended for test data setup.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)
	if err := json.Unmarshal([]byte(jsonStr), &b.adv); err != nil {
		panic(fmt.Sprintf("FromJSON: %v", err))
	}
	return b
}

// Build returns a copy of the configured advertisement.
func (b *AdvertisementBuilder) Build() device.Advertisement {
	adv := b.adv
	if adv.ManufData != nil {
		adv.ManufData = append([]byte(nil), adv.ManufData...)
	}
	return &adv
}
