package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/blethermo/internal/device"
	"github.com/srg/blethermo/internal/devicefactory"
	"github.com/srg/blethermo/internal/payload"
)

// DeviceEntry is one device heard during Discover.
type DeviceEntry struct {
	Address          string
	Name             string
	RSSI             int
	ManufacturerData []byte
	// Measurement is set when the manufacturer data decodes as a thermometer reading.
	Measurement *payload.Measurement
	Seen        int
	LastSeen    time.Time
}

// Discover scans for d and returns every advertising device that carries
// manufacturer data, strongest signal first. It is a one-shot helper for
// finding the thermometer address; the acquisition loop does not use it.
func Discover(ctx context.Context, d time.Duration, logger *logrus.Logger) ([]DeviceEntry, error) {
	if logger == nil {
		logger = logrus.New()
	}

	mgr, err := devicefactory.ManagerFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to open BLE central manager: %w", err)
	}
	defer mgr.Close()

	adapters, err := mgr.Adapters(ctx)
	if err != nil {
		return nil, err
	}
	if len(adapters) == 0 {
		return nil, device.ErrNoAdapter
	}
	adapter := adapters[0]
	defer adapter.Close()

	devices := hashmap.New[string, DeviceEntry]()
	handler := func(adv device.Advertisement) {
		addr := adv.Addr()
		data := adv.ManufacturerData()
		if addr == "" || len(data) == 0 {
			return
		}

		entry, _ := devices.Get(addr)
		entry.Address = addr
		if name := adv.LocalName(); name != "" {
			entry.Name = name
		}
		entry.RSSI = adv.RSSI()
		entry.ManufacturerData = append([]byte(nil), data...)
		entry.Measurement = nil
		if m, err := payload.DecodeRaw(data); err == nil {
			entry.Measurement = &m
		}
		entry.Seen++
		entry.LastSeen = time.Now()
		devices.Set(addr, entry)
	}

	logger.WithFields(logrus.Fields{"adapter": adapter.ID(), "duration": d}).Info("Discovering BLE devices...")

	scanCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	err = adapter.Scan(scanCtx, true, handler)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return nil, err
	}

	entries := make([]DeviceEntry, 0, devices.Len())
	devices.Range(func(_ string, e DeviceEntry) bool {
		entries = append(entries, e)
		return true
	})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RSSI != entries[j].RSSI {
			return entries[i].RSSI > entries[j].RSSI
		}
		return entries[i].Address < entries[j].Address
	})

	logger.WithField("device_count", len(entries)).Info("BLE discovery completed")
	return entries, nil
}
