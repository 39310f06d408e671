package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/srg/blethermo/internal/device"
)

// ScanCall records one FakeAdapter.Scan invocation.
type ScanCall struct {
	Window    time.Duration // time left until the scan deadline when the scan started
	Delivered int           // advertisements handed to the handler
}

// FakeAdapter replays the same advertisements on every scan, then blocks until
// the scan context ends, like a controller that hears nothing else.
type FakeAdapter struct {
	AdapterID      string
	Advertisements []device.Advertisement
	ScanErr        error                                // returned after delivery instead of waiting
	OnScan         func(ctx context.Context, call int) // invoked before delivery
	Async          bool                                 // deliver from a separate goroutine, as the HCI event loop does

	mu     sync.Mutex
	calls  []ScanCall
	closes int
}

func (a *FakeAdapter) ID() string {
	if a.AdapterID == "" {
		return "fake0"
	}
	return a.AdapterID
}

func (a *FakeAdapter) Scan(ctx context.Context, _ bool, handler func(device.Advertisement)) error {
	call := ScanCall{}
	if deadline, ok := ctx.Deadline(); ok {
		call.Window = time.Until(deadline).Round(time.Millisecond)
	}

	a.mu.Lock()
	idx := len(a.calls)
	a.calls = append(a.calls, call)
	a.mu.Unlock()

	if a.OnScan != nil {
		a.OnScan(ctx, idx)
	}

	deliver := func() {
		for _, adv := range a.Advertisements {
			if ctx.Err() != nil {
				return
			}
			handler(adv)
			a.mu.Lock()
			a.calls[idx].Delivered++
			a.mu.Unlock()
		}
	}
	if a.Async {
		done := make(chan struct{})
		go func() {
			defer close(done)
			deliver()
		}()
		<-done
	} else {
		deliver()
	}

	if a.ScanErr != nil {
		return a.ScanErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (a *FakeAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closes++
	return nil
}

// Calls returns a snapshot of recorded scans.
func (a *FakeAdapter) Calls() []ScanCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ScanCall(nil), a.calls...)
}

// Closes counts Close calls.
func (a *FakeAdapter) Closes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closes
}

// FakeBLE hands out managers to the scan loop. OpenErrs are consumed one per
// open attempt; a nil entry or an exhausted list opens successfully.
type FakeBLE struct {
	OpenErrs  []error
	NoAdapter bool
	Adapter   *FakeAdapter

	mu     sync.Mutex
	opens  int
	closes int
}

// Factory matches devicefactory.ManagerFactory.
func (f *FakeBLE) Factory() (device.Manager, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.opens
	f.opens++
	if n < len(f.OpenErrs) && f.OpenErrs[n] != nil {
		return nil, f.OpenErrs[n]
	}
	return &fakeManager{ble: f}, nil
}

// Opens counts open attempts, failed ones included.
func (f *FakeBLE) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// ManagerCloses counts closed managers.
func (f *FakeBLE) ManagerCloses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type fakeManager struct {
	ble *FakeBLE
}

func (m *fakeManager) Adapters(context.Context) ([]device.Adapter, error) {
	if m.ble.NoAdapter || m.ble.Adapter == nil {
		return nil, nil
	}
	return []device.Adapter{m.ble.Adapter}, nil
}

func (m *fakeManager) Close() error {
	m.ble.mu.Lock()
	defer m.ble.mu.Unlock()
	m.ble.closes++
	return nil
}
