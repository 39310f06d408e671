package main

import (
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// CountdownPrinter shows the seconds left of a fixed-length operation on a
// single terminal line.
//
// Usage:
//
//	p := NewCountdownPrinter(os.Stdout, "Discovering BLE devices", 10*time.Second)
//	p.Start()
//	defer p.Stop()
//
// Stop must be called to terminate the internal goroutine. A printer is
// single-use.
type CountdownPrinter struct {
	w        io.Writer
	prefix   string
	duration time.Duration

	once     sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewCountdownPrinter creates a printer counting down from duration.
func NewCountdownPrinter(w io.Writer, prefix string, duration time.Duration) *CountdownPrinter {
	return &CountdownPrinter{
		w:        w,
		prefix:   prefix,
		duration: duration,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *CountdownPrinter) Start() {
	start := time.Now()
	p.print(p.duration)

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(progressUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
				p.print(p.duration - time.Since(start))
			}
		}
	}()
}

// print rounds remaining to the nearest second, e.g. 3.7s -> 4s.
func (p *CountdownPrinter) print(remaining time.Duration) {
	seconds := 0
	if remaining > 0 {
		seconds = int(remaining.Seconds() + 0.5)
	}
	fmt.Fprintf(p.w, "\r%s (%ds)   ", p.prefix, seconds)
}

// Stop stops the display and clears the line. Safe to call multiple times,
// but only after Start.
func (p *CountdownPrinter) Stop() {
	p.once.Do(func() {
		close(p.stopChan)
		<-p.done
		fmt.Fprint(p.w, clearLineSequence)
	})
}
