package pipeline

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Reading is one decoded temperature/humidity sample. It is never mutated after
// construction; ownership moves along the queues to the consumer.
type Reading struct {
	Timestamp   time.Time // local time, second resolution
	Temperature float64   // degrees, one decimal
	Humidity    uint8     // percent
	DeviceID    string
	RSSI        *int
	Raw         []byte // vendor payload, for diagnostics
}

// NewReading builds a Reading captured at ts, truncating it to the second.
func NewReading(ts time.Time, temperature float64, humidity uint8, deviceID string, rssi *int, raw []byte) Reading {
	var rawCopy []byte
	if raw != nil {
		rawCopy = append([]byte(nil), raw...)
	}
	return Reading{
		Timestamp:   ts.Local().Truncate(time.Second),
		Temperature: temperature,
		Humidity:    humidity,
		DeviceID:    deviceID,
		RSSI:        rssi,
		Raw:         rawCopy,
	}
}

// RawHex renders the raw payload as space separated upper-case hex pairs.
func (r Reading) RawHex() string {
	if len(r.Raw) == 0 {
		return ""
	}
	s := strings.ToUpper(hex.EncodeToString(r.Raw))
	var b strings.Builder
	for i := 0; i < len(s); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s[i : i+2])
	}
	return b.String()
}

func (r Reading) String() string {
	return fmt.Sprintf("%s %.1f°C %d%%", r.Timestamp.Format(time.DateTime), r.Temperature, r.Humidity)
}

// Message is the sum type carried by the pipeline queues. The unexported
// method seals it to NewData, StatusUpdate and PersistenceResult.
type Message interface {
	isMessage()
}

// NewData carries a decoded reading.
type NewData struct {
	Reading Reading
}

// StatusKind classifies a StatusUpdate.
type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusAdapterError
	StatusError
)

func (k StatusKind) String() string {
	switch k {
	case StatusInfo:
		return "info"
	case StatusAdapterError:
		return "adapter_error"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("StatusKind(%d)", int(k))
	}
}

// StatusUpdate is a human-readable scan-phase indicator.
type StatusUpdate struct {
	Kind StatusKind
	Text string
}

// PersistenceResult reports the outcome of writing an accepted reading.
type PersistenceResult struct {
	OK  bool
	Err error
}

func (NewData) isMessage()           {}
func (StatusUpdate) isMessage()      {}
func (PersistenceResult) isMessage() {}
