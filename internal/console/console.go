// Package console renders pipeline messages for a terminal and keeps the
// in-memory history up to date.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/srg/blethermo/internal/history"
	"github.com/srg/blethermo/pipeline"
	"github.com/srg/blethermo/pkg/config"
)

// Publisher forwards accepted readings to an external system.
type Publisher interface {
	Publish(r pipeline.Reading) error
}

// Presenter is the consumer end of the pipeline.
type Presenter struct {
	w       io.Writer
	cfg     *config.Cell
	hist    *history.History
	logger  *logrus.Logger
	publish Publisher

	hot    *color.Color
	cold   *color.Color
	warn   *color.Color
	failed *color.Color
	dim    *color.Color

	mu           sync.Mutex
	status       pipeline.StatusUpdate
	lastWriteOK  bool
	lastWriteErr error
}

// Option customises a Presenter.
type Option func(*Presenter)

// WithPublisher forwards every accepted reading to p.
func WithPublisher(p Publisher) Option {
	return func(pr *Presenter) { pr.publish = p }
}

// WithColor forces colour output on or off regardless of the terminal.
func WithColor(enabled bool) Option {
	return func(pr *Presenter) {
		for _, c := range []*color.Color{pr.hot, pr.cold, pr.warn, pr.failed, pr.dim} {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// New creates a presenter writing to w.
func New(w io.Writer, cfg *config.Cell, hist *history.History, logger *logrus.Logger, opts ...Option) *Presenter {
	if logger == nil {
		logger = logrus.New()
	}
	if hist == nil {
		hist = history.New(history.LimitFor(cfg.Read()))
	}
	p := &Presenter{
		w:           w,
		cfg:         cfg,
		hist:        hist,
		logger:      logger,
		hot:         color.New(color.FgRed, color.Bold),
		cold:        color.New(color.FgCyan, color.Bold),
		warn:        color.New(color.FgYellow),
		failed:      color.New(color.FgRed),
		dim:         color.New(color.Faint),
		lastWriteOK: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run consumes in until it is closed and drained (returns nil) or ctx is done.
func (p *Presenter) Run(ctx context.Context, in *pipeline.Queue[pipeline.Message]) error {
	for {
		msg, err := in.Receive(ctx)
		if errors.Is(err, pipeline.ErrQueueClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		p.Handle(msg)
	}
}

// Handle renders one message.
func (p *Presenter) Handle(msg pipeline.Message) {
	switch m := msg.(type) {
	case pipeline.NewData:
		p.handleReading(m.Reading)
	case pipeline.StatusUpdate:
		p.handleStatus(m)
	case pipeline.PersistenceResult:
		p.handlePersistence(m)
	default:
		p.logger.WithField("type", fmt.Sprintf("%T", msg)).Warn("Unknown pipeline message")
	}
}

func (p *Presenter) handleReading(r pipeline.Reading) {
	p.hist.Add(r)
	cfg := p.cfg.Read()

	temp := fmt.Sprintf("%5.1f°C", r.Temperature)
	switch {
	case r.Temperature > cfg.TempWarnHigh:
		temp = p.hot.Sprint(temp)
	case r.Temperature < cfg.TempWarnLow:
		temp = p.cold.Sprint(temp)
	}

	line := fmt.Sprintf("%s  %s  %3d%%", r.Timestamp.Format("15:04:05"), temp, r.Humidity)
	if s, ok := p.hist.Stats(); ok {
		line += p.dim.Sprintf("  [%.1f..%.1f°C %d..%d%%]", s.MinTemp, s.MaxTemp, s.MinHum, s.MaxHum)
	}
	if r.RSSI != nil {
		line += p.dim.Sprintf("  %d dBm", *r.RSSI)
	}
	if r.DeviceID != "" {
		line += p.dim.Sprintf("  %s", r.DeviceID)
	}
	if raw := r.RawHex(); raw != "" {
		line += p.dim.Sprintf("  [%s]", raw)
	}
	fmt.Fprintln(p.w, line)

	if p.publish != nil {
		if err := p.publish.Publish(r); err != nil {
			p.logger.WithError(err).Warn("Failed to publish reading")
		}
	}
}

func (p *Presenter) handleStatus(s pipeline.StatusUpdate) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()

	switch s.Kind {
	case pipeline.StatusAdapterError:
		fmt.Fprintln(p.w, p.warn.Sprintf("status: %s", s.Text))
	case pipeline.StatusError:
		fmt.Fprintln(p.w, p.failed.Sprintf("status: %s", s.Text))
	default:
		p.logger.WithField("status", s.Text).Debug("Scan status")
	}
}

func (p *Presenter) handlePersistence(r pipeline.PersistenceResult) {
	p.mu.Lock()
	p.lastWriteOK, p.lastWriteErr = r.OK, r.Err
	p.mu.Unlock()

	if !r.OK {
		fmt.Fprintln(p.w, p.failed.Sprintf("log write failed: %v", r.Err))
	}
}

// Status returns the last status update received.
func (p *Presenter) Status() pipeline.StatusUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// LastWrite reports the outcome of the most recent daily log write.
func (p *Presenter) LastWrite() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastWriteOK, p.lastWriteErr
}

// History exposes the presenter's history.
func (p *Presenter) History() *history.History {
	return p.hist
}
