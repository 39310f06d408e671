package config

import "sync/atomic"

// Cell is the shared configuration snapshot. Readers get a copy of the whole
// value; writers replace it atomically. Last writer wins.
type Cell struct {
	v atomic.Pointer[Config]
}

// NewCell creates a cell holding a copy of cfg, or the defaults when cfg is nil.
func NewCell(cfg *Config) *Cell {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := &Cell{}
	snapshot := *cfg
	c.v.Store(&snapshot)
	return c
}

// Read returns a snapshot copy of the current configuration.
func (c *Cell) Read() Config {
	return *c.v.Load()
}

// Write replaces the snapshot and reports whether the value changed.
func (c *Cell) Write(cfg Config) bool {
	old := c.v.Swap(&cfg)
	return old == nil || *old != cfg
}
