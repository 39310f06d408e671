// Package device defines the library-neutral boundary to the host Bluetooth
// Low Energy stack used for passive advertisement scanning.
//
// The package provides:
//   - Manager and Adapter interfaces, opened and released once per scan cycle
//   - the Advertisement view of a discovery/update event
//   - sentinel errors for adapter faults and NormalizeError to map library messages onto them
//
// Concrete implementations live in the go-ble subpackage.
package device
