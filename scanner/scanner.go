package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blethermo/internal/device"
	"github.com/srg/blethermo/internal/devicefactory"
	"github.com/srg/blethermo/internal/metrics"
	"github.com/srg/blethermo/internal/payload"
	"github.com/srg/blethermo/pipeline"
	"github.com/srg/blethermo/pkg/config"
)

// ErrOutputClosed is returned by Run when the downstream queue stops accepting messages.
var ErrOutputClosed = errors.New("scanner output closed")

// Status texts emitted by the loop
const (
	StatusAdapterNotFound    = "adapter not found"
	StatusScanning           = "scanning"
	StatusScanningContinuous = "scanning (continuous mode)"
	StatusWaiting            = "waiting"
	StatusScanFailed         = "scan failed"
	StatusInternalError      = "internal error"
)

// Phase is a state of the scan cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAcquireAdapter
	PhaseScanning
	PhasePausing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAcquireAdapter:
		return "acquire_adapter"
	case PhaseScanning:
		return "scanning"
	case PhasePausing:
		return "pausing"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// ProgressCallback is called when the scan phase changes
type ProgressCallback func(phase Phase)

// Loop is the perpetual acquisition loop: acquire adapter, scan, pause.
// It owns the BLE adapter for the duration of one cycle only.
type Loop struct {
	cfg      *config.Cell
	out      *pipeline.Queue[pipeline.Message]
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	progress ProgressCallback
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option customises a Loop.
type Option func(*Loop)

// WithMetrics records cycle outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// WithProgress registers a phase change callback.
func WithProgress(cb ProgressCallback) Option {
	return func(l *Loop) { l.progress = cb }
}

// WithClock replaces the clock used to timestamp readings.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// WithSleep replaces the context-aware sleep used between cycles.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Loop) { l.sleep = sleep }
}

// NewLoop creates a scan loop publishing readings and status to out.
func NewLoop(cfg *config.Cell, out *pipeline.Queue[pipeline.Message], logger *logrus.Logger, opts ...Option) *Loop {
	if logger == nil {
		logger = logrus.New()
	}
	l := &Loop{
		cfg:      cfg,
		out:      out,
		logger:   logger,
		progress: func(Phase) {},
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.metrics == nil {
		l.metrics = metrics.New(nil)
	}
	return l
}

// Run cycles until ctx is done (returns ctx.Err()) or the output queue is
// closed (returns ErrOutputClosed). Every other failure is reported as a status
// message and retried on the next cycle.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Starting BLE scan loop")
	defer l.progress(PhaseIdle)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := l.cycle(ctx)
		switch {
		case errors.Is(err, ErrOutputClosed):
			l.logger.Error("Output queue closed, stopping scan loop")
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		}
	}
}

// cycle runs one AcquireAdapter → Scanning → Pausing iteration. The
// configuration snapshot is taken once, here, and used for the whole cycle.
func (l *Loop) cycle(ctx context.Context) (err error) {
	cfg := l.cfg.Read()
	l.metrics.ScanCycles.Inc()
	l.logger.WithField("target", cfg.TargetAddress).Debug("New scan cycle")

	defer func() {
		if r := recover(); r != nil {
			l.metrics.ScanErrors.Inc()
			l.logger.WithField("panic", r).Error("Recovered from scan cycle panic")
			if sendErr := l.status(pipeline.StatusError, StatusInternalError); sendErr != nil {
				err = sendErr
				return
			}
			err = l.pause(ctx, &cfg)
		}
	}()

	l.progress(PhaseAcquireAdapter)
	mgr, err := devicefactory.ManagerFactory()
	if err != nil {
		l.metrics.AdapterErrors.Inc()
		l.logger.WithError(err).Error("Failed to open BLE central manager")
		if err := l.status(pipeline.StatusAdapterError, StatusAdapterNotFound); err != nil {
			return err
		}
		return l.sleep(ctx, cfg.RetryDelay())
	}
	defer func() {
		if cerr := mgr.Close(); cerr != nil {
			l.logger.WithError(cerr).Debug("Failed to close BLE central manager")
		}
	}()

	adapters, err := mgr.Adapters(ctx)
	if err != nil {
		l.logger.WithError(err).Warn("Failed to enumerate BLE adapters")
	}
	if len(adapters) > 0 {
		if err := l.scan(ctx, adapters[0], &cfg); err != nil {
			return err
		}
	} else {
		l.logger.Debug("No BLE adapter available")
	}

	return l.pause(ctx, &cfg)
}

// scan runs the Scanning state on adapter. It returns only ErrOutputClosed or
// a ctx error; adapter failures are reported as status.
func (l *Loop) scan(ctx context.Context, adapter device.Adapter, cfg *config.Config) error {
	l.progress(PhaseScanning)

	text := StatusScanning
	if cfg.ContinuousMode {
		text = StatusScanningContinuous
	}
	if err := l.status(pipeline.StatusInfo, text); err != nil {
		return err
	}

	window := cfg.ScanWindow()
	l.logger.WithFields(logrus.Fields{
		"adapter":    adapter.ID(),
		"window":     window,
		"continuous": cfg.ContinuousMode,
	}).Info("Starting BLE scan...")

	scanCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	h := &advertisementHandler{
		cfg:    cfg,
		out:    l.out,
		logger: l.logger,
		now:    l.now,
		cancel: cancel,
	}
	scanErr := adapter.Scan(scanCtx, true, h.handle)
	cancel()

	if cerr := adapter.Close(); cerr != nil {
		l.logger.WithError(cerr).Debug("Failed to stop BLE scan")
	}

	emitted, panicked, sendErr := h.result()
	l.metrics.ReadingsEmitted.Add(float64(emitted))
	if sendErr != nil {
		return ErrOutputClosed
	}
	if panicked != nil {
		l.metrics.ScanErrors.Inc()
		l.logger.WithField("panic", panicked).Error("Recovered from advertisement handler panic")
		if err := l.status(pipeline.StatusError, StatusInternalError); err != nil {
			return err
		}
		return ctx.Err()
	}

	if scanErr != nil && !errors.Is(scanErr, context.Canceled) && !errors.Is(scanErr, context.DeadlineExceeded) {
		l.metrics.ScanErrors.Inc()
		l.logger.WithError(scanErr).Error("BLE scan failed")
		if err := l.status(pipeline.StatusError, StatusScanFailed); err != nil {
			return err
		}
	}

	l.logger.WithField("readings", emitted).Info("BLE scan completed")
	return ctx.Err()
}

// pause runs the Pausing state.
func (l *Loop) pause(ctx context.Context, cfg *config.Config) error {
	l.progress(PhasePausing)
	if err := l.status(pipeline.StatusInfo, StatusWaiting); err != nil {
		return err
	}
	d := cfg.PauseDuration()
	l.logger.WithField("duration", d).Debug("Pausing before next scan")
	return l.sleep(ctx, d)
}

func (l *Loop) status(kind pipeline.StatusKind, text string) error {
	if err := l.out.Send(pipeline.StatusUpdate{Kind: kind, Text: text}); err != nil {
		return ErrOutputClosed
	}
	return nil
}

// advertisementHandler filters and decodes advertisements for one scan.
// The BLE stack may call handle from its own goroutine.
type advertisementHandler struct {
	cfg    *config.Config
	out    *pipeline.Queue[pipeline.Message]
	logger *logrus.Logger
	now    func() time.Time
	cancel context.CancelFunc

	mu       sync.Mutex
	emitted  int
	done     bool
	sendErr  error
	panicked any
}

func (h *advertisementHandler) handle(adv device.Advertisement) {
	defer h.recoverPanic()
	if !device.SameAddress(adv.Addr(), h.cfg.TargetAddress) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return
	}

	m, err := payload.DecodeRaw(adv.ManufacturerData())
	if err != nil {
		h.logger.WithError(err).WithField("address", adv.Addr()).Debug("Ignoring undecodable advertisement")
		return
	}

	rssi := adv.RSSI()
	r := pipeline.NewReading(h.now(), m.Temperature, m.Humidity, adv.Addr(), &rssi, m.Payload)
	h.logger.WithFields(logrus.Fields{
		"address":     adv.Addr(),
		"temperature": r.Temperature,
		"humidity":    r.Humidity,
		"rssi":        rssi,
	}).Info("Decoded reading from target device")

	if err := h.out.Send(pipeline.NewData{Reading: r}); err != nil {
		h.sendErr = err
		h.done = true
		h.cancel()
		return
	}
	h.emitted++

	if !h.cfg.ContinuousMode {
		h.done = true
		h.cancel()
	}
}

// recoverPanic stops the scan after a panic raised on the BLE stack's
// goroutine, where the recover in cycle cannot see it.
func (h *advertisementHandler) recoverPanic() {
	r := recover()
	if r == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.panicked == nil {
		h.panicked = r
	}
	h.done = true
	h.cancel()
}

func (h *advertisementHandler) result() (int, any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.emitted, h.panicked, h.sendErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
