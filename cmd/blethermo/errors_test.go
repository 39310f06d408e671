package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/srg/blethermo/internal/device"
	"github.com/srg/blethermo/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"bluetooth off", fmt.Errorf("open: %w", device.ErrBluetoothOff), "Turn it on"},
		{"no adapter", fmt.Errorf("failed to open BLE central manager: %w", device.ErrNoAdapter), "no Bluetooth adapter"},
		{"unsupported", device.ErrUnsupported, "not supported"},
		{"invalid config", fmt.Errorf("%w: scan_pause must not be negative", config.ErrInvalidConfig), "scan_pause must not be negative"},
		{"other", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, FormatUserError(tt.err), tt.contains)
		})
	}
}
