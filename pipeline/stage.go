package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blethermo/internal/metrics"
	"github.com/srg/blethermo/pkg/config"
)

// LogWriter persists an accepted reading.
type LogWriter interface {
	Append(r Reading) error
}

// Stage is the debounce/persistence worker between the scanner and the consumer.
// It handles messages strictly one at a time in arrival order.
type Stage struct {
	in      *Queue[Message]
	out     *Queue[Message]
	cfg     *config.Cell
	log     LogWriter
	logger  *logrus.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	// debounce state, owned by the Run goroutine
	lastAccepted time.Time
	hasAccepted  bool
}

// StageOption customises a Stage.
type StageOption func(*Stage)

// WithClock replaces the wall clock sampled for debounce decisions.
func WithClock(now func() time.Time) StageOption {
	return func(s *Stage) { s.now = now }
}

// WithStageMetrics records acceptance decisions on m.
func WithStageMetrics(m *metrics.Metrics) StageOption {
	return func(s *Stage) { s.metrics = m }
}

// NewStage creates a stage reading from in and publishing to out.
func NewStage(in, out *Queue[Message], cfg *config.Cell, lw LogWriter, logger *logrus.Logger, opts ...StageOption) *Stage {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Stage{
		in:     in,
		out:    out,
		cfg:    cfg,
		log:    lw,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	return s
}

// Run consumes the inbound queue until it is closed and drained, ctx is done,
// or the outbound queue is closed. A closed outbound queue is a clean exit.
func (s *Stage) Run(ctx context.Context) error {
	s.logger.Info("Debounce stage started")
	defer s.logger.Info("Debounce stage stopped")

	for {
		msg, err := s.in.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) {
				return nil
			}
			return err
		}

		if err := s.Handle(msg); err != nil {
			if errors.Is(err, ErrQueueClosed) {
				s.logger.Warn("Consumer queue closed, stopping debounce stage")
				return nil
			}
			return err
		}
	}
}

// Handle applies the debounce rule to one message. It returns ErrQueueClosed
// when the outbound queue no longer accepts messages.
func (s *Stage) Handle(msg Message) error {
	switch m := msg.(type) {
	case NewData:
		return s.handleReading(m.Reading)
	case StatusUpdate:
		return s.out.Send(m)
	case PersistenceResult:
		// produced here, never consumed
		s.logger.WithField("ok", m.OK).Debug("Ignoring inbound persistence result")
		return nil
	default:
		s.logger.Warnf("Ignoring unknown message %T", msg)
		return nil
	}
}

func (s *Stage) handleReading(r Reading) error {
	threshold := s.cfg.Read().DuplicateThreshold
	now := s.now()

	if s.hasAccepted && now.Sub(s.lastAccepted) < threshold {
		s.metrics.ReadingsSuppressed.Inc()
		s.logger.WithFields(logrus.Fields{
			"elapsed":   now.Sub(s.lastAccepted),
			"threshold": threshold,
		}).Debug("Skipping duplicate reading")
		return nil
	}

	err := s.log.Append(r)
	ok := err == nil
	if !ok {
		s.logger.WithError(err).Error("Failed to write reading to daily log")
	} else {
		s.logger.WithFields(logrus.Fields{
			"temperature": r.Temperature,
			"humidity":    r.Humidity,
		}).Info("Reading accepted")
	}

	// the clock advances even when the write failed
	s.lastAccepted = now
	s.hasAccepted = true

	s.metrics.ReadingsAccepted.Inc()
	s.metrics.ObserveLogWrite(ok)
	s.metrics.Temperature.Set(r.Temperature)
	s.metrics.Humidity.Set(float64(r.Humidity))
	s.metrics.LastAccepted.Set(float64(now.Unix()))

	if err := s.out.Send(PersistenceResult{OK: ok, Err: err}); err != nil {
		return err
	}
	return s.out.Send(NewData{Reading: r})
}

// LastAccepted returns the processing time of the last accepted reading.
// Only meaningful from the goroutine that drives Handle, or after Run returned.
func (s *Stage) LastAccepted() (time.Time, bool) {
	return s.lastAccepted, s.hasAccepted
}
