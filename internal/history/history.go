// Package history keeps the recent accepted readings shown by the console
// presenter and the history command.
package history

import (
	"errors"
	"io/fs"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blethermo/internal/datalog"
	"github.com/srg/blethermo/pipeline"
	"github.com/srg/blethermo/pkg/config"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Point is one plotted reading.
type Point struct {
	Timestamp   time.Time
	Temperature float64
	Humidity    uint8
}

// Stats summarises the points currently held.
type Stats struct {
	Count   int
	MinTemp float64
	MaxTemp float64
	MinHum  uint8
	MaxHum  uint8
	Last    Point
}

// HourSummary aggregates the points of one local clock hour.
type HourSummary struct {
	Hour    time.Time
	Count   int
	MinTemp float64
	MaxTemp float64
	AvgTemp float64
	MinHum  uint8
	MaxHum  uint8
}

// History is a bounded, oldest-first list of points. When full, adding a
// point evicts the oldest one. A limit <= 0 keeps everything.
type History struct {
	mu     sync.RWMutex
	limit  int
	points []Point
}

// New creates an empty history holding at most limit points.
func New(limit int) *History {
	return &History{limit: limit}
}

// LimitFor returns the history bound implied by cfg.
func LimitFor(cfg config.Config) int {
	if cfg.LoadAllHistory {
		return 0
	}
	return cfg.HistoryLimit
}

// Load builds a history from the daily log in dir for the local date of day.
// A missing file yields an empty history.
func Load(dir string, day time.Time, limit int, logger *logrus.Logger) (*History, error) {
	if logger == nil {
		logger = logrus.New()
	}
	h := New(limit)

	readings, skipped, err := datalog.ReadDay(dir, day)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return h, err
	}
	for _, r := range readings {
		h.Add(r)
	}

	logger.WithFields(logrus.Fields{
		"file":    datalog.FileName(day),
		"loaded":  h.Len(),
		"skipped": skipped,
		"limit":   limit,
	}).Info("History loaded from daily log")
	return h, nil
}

// Add appends the reading as the newest point.
func (h *History) Add(r pipeline.Reading) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.points = append(h.points, Point{Timestamp: r.Timestamp, Temperature: r.Temperature, Humidity: r.Humidity})
	if h.limit > 0 && len(h.points) > h.limit {
		drop := len(h.points) - h.limit
		h.points = append(h.points[:0], h.points[drop:]...)
	}
}

// Len returns the number of points held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.points)
}

// Points returns a copy of the held points, oldest first.
func (h *History) Points() []Point {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Point(nil), h.points...)
}

// Stats reports min/max over the held points; false when empty.
func (h *History) Stats() (Stats, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.points) == 0 {
		return Stats{}, false
	}
	first := h.points[0]
	s := Stats{
		Count:   len(h.points),
		MinTemp: first.Temperature,
		MaxTemp: first.Temperature,
		MinHum:  first.Humidity,
		MaxHum:  first.Humidity,
		Last:    h.points[len(h.points)-1],
	}
	for _, p := range h.points[1:] {
		s.MinTemp = min(s.MinTemp, p.Temperature)
		s.MaxTemp = max(s.MaxTemp, p.Temperature)
		s.MinHum = min(s.MinHum, p.Humidity)
		s.MaxHum = max(s.MaxHum, p.Humidity)
	}
	return s, true
}

// Hourly groups the held points by local clock hour, in order of first
// appearance.
func (h *History) Hourly() []HourSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	type acc struct {
		summary HourSummary
		sum     float64
	}
	buckets := orderedmap.New[time.Time, *acc]()
	for _, p := range h.points {
		local := p.Timestamp.Local()
		hour := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, time.Local)

		a, ok := buckets.Get(hour)
		if !ok {
			a = &acc{summary: HourSummary{
				Hour:    hour,
				MinTemp: p.Temperature,
				MaxTemp: p.Temperature,
				MinHum:  p.Humidity,
				MaxHum:  p.Humidity,
			}}
			buckets.Set(hour, a)
		}
		a.summary.Count++
		a.sum += p.Temperature
		a.summary.MinTemp = min(a.summary.MinTemp, p.Temperature)
		a.summary.MaxTemp = max(a.summary.MaxTemp, p.Temperature)
		a.summary.MinHum = min(a.summary.MinHum, p.Humidity)
		a.summary.MaxHum = max(a.summary.MaxHum, p.Humidity)
	}

	out := make([]HourSummary, 0, buckets.Len())
	for pair := buckets.Oldest(); pair != nil; pair = pair.Next() {
		s := pair.Value.summary
		s.AvgTemp = pair.Value.sum / float64(s.Count)
		out = append(out, s)
	}
	return out
}
