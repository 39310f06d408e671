package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Adapter-level errors
var (
	// ErrBluetoothOff indicates the host controller exists but is powered down.
	ErrBluetoothOff = errors.New("bluetooth is turned off")

	// ErrNoAdapter indicates the BLE central manager could not be opened,
	// typically because no controller is present or it is held by another process.
	ErrNoAdapter = errors.New("no bluetooth adapter")

	ErrUnsupported = errors.New("unsupported")
)

// NormalizeError maps known adapter error strings to the sentinel errors above.
// Returns wrapped errors to preserve original context.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "no such device"):
		return fmt.Errorf("%w: %v", ErrNoAdapter, err)
	default:
		return err
	}
}

// containsIgnoreCase checks substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// SameAddress compares two BLE addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Advertisement is the library-neutral view of a single discovery or update event.
type Advertisement interface {
	LocalName() string
	// ManufacturerData returns the raw manufacturer-specific field: a little-endian
	// company identifier followed by the vendor payload. Nil when absent.
	ManufacturerData() []byte
	Connectable() bool
	RSSI() int
	Addr() string
}

// Adapter is one BLE controller able to scan passively for advertisements.
// Scan blocks until ctx is done or the controller fails; a scan stopped by ctx
// reports ctx.Err().
type Adapter interface {
	ID() string
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
	Close() error
}

// Manager is an opened BLE central manager. It is opened and closed once per
// scan cycle; adapters are never cached across cycles.
type Manager interface {
	Adapters(ctx context.Context) ([]Adapter, error)
	Close() error
}
