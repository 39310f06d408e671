// Package payload decodes temperature/humidity readings from BLE
// manufacturer-specific advertisement data.
package payload

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// Decode failure reasons
var (
	ErrNoManufacturerData = errors.New("no manufacturer data")
	ErrPayloadTooShort    = errors.New("manufacturer payload too short")
)

// MinPayloadLen is the number of vendor bytes a thermometer advertisement carries at least.
const MinPayloadLen = 2

// DecodeError reports why an advertisement could not be decoded.
type DecodeError struct {
	CompanyID uint16
	Len       int
	Err       error
}

func (e *DecodeError) Error() string {
	if errors.Is(e.Err, ErrNoManufacturerData) {
		return "decode: " + e.Err.Error()
	}
	return fmt.Sprintf("decode company 0x%04X: %v: %d bytes, need %d", e.CompanyID, e.Err, e.Len, MinPayloadLen)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Measurement is the decoded content of one advertisement.
type Measurement struct {
	CompanyID   uint16
	Temperature float64 // degrees, tenths resolution
	Humidity    uint8   // percent, not bounds checked
	Payload     []byte
}

// Entries splits a raw manufacturer-specific field (little-endian company
// identifier followed by the vendor payload) into a company id → payload map.
// Fields shorter than the company identifier yield an empty map.
func Entries(raw []byte) map[uint16][]byte {
	entries := make(map[uint16][]byte, 1)
	if len(raw) < 2 {
		return entries
	}
	companyID := binary.LittleEndian.Uint16(raw[0:2])
	entries[companyID] = raw[2:]
	return entries
}

// Decode selects the first manufacturer entry (lowest company id) and decodes it.
//
// The sensor encodes temperature as a signed little-endian tenths-of-a-degree
// value whose low byte is the high byte of the company identifier and whose high
// byte is the first payload byte. The second payload byte is the humidity.
func Decode(entries map[uint16][]byte) (Measurement, error) {
	if len(entries) == 0 {
		return Measurement{}, &DecodeError{Err: ErrNoManufacturerData}
	}

	ids := make([]uint16, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	companyID := ids[0]
	data := entries[companyID]
	if len(data) < MinPayloadLen {
		return Measurement{}, &DecodeError{CompanyID: companyID, Len: len(data), Err: ErrPayloadTooShort}
	}

	raw := int16(binary.LittleEndian.Uint16([]byte{byte(companyID >> 8), data[0]}))
	return Measurement{
		CompanyID:   companyID,
		Temperature: float64(raw) / 10.0,
		Humidity:    data[1],
		Payload:     data,
	}, nil
}

// DecodeRaw is Decode over a raw manufacturer-specific field.
func DecodeRaw(raw []byte) (Measurement, error) {
	return Decode(Entries(raw))
}
