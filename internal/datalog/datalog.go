// Package datalog persists accepted readings to one semicolon-separated file
// per calendar day and reads them back.
package datalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blethermo/pipeline"
)

const (
	dateLayout     = "2006.01.02"
	timeLayout     = "15:04:05"
	fileNameLayout = "log_2006-01-02.csv"
	separator      = ';'
)

// Header is the first row of every daily file.
var Header = []string{"Date", "Time", "Temperature", "Humidity"}

// FileName returns the daily file name for the local date of t.
func FileName(t time.Time) string {
	return t.Local().Format(fileNameLayout)
}

// FormatTemperature renders t with one decimal and a comma decimal separator.
func FormatTemperature(t float64) string {
	return strings.Replace(strconv.FormatFloat(t, 'f', 1, 64), ".", ",", 1)
}

// ParseTemperature is the inverse of FormatTemperature.
func ParseTemperature(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(strings.TrimSpace(s), ",", ".", 1), 64)
}

// Writer appends readings to the daily file in dir. It is the only writer of
// those files; rows are never rewritten.
type Writer struct {
	dir    string
	logger *logrus.Logger
	mu     sync.Mutex
}

// NewWriter creates a Writer for dir. The directory is created on first append.
func NewWriter(dir string, logger *logrus.Logger) *Writer {
	if logger == nil {
		logger = logrus.New()
	}
	if dir == "" {
		dir = "."
	}
	return &Writer{dir: dir, logger: logger}
}

// Dir returns the directory daily files are written to.
func (w *Writer) Dir() string { return w.dir }

// PathFor returns the daily file path for the local date of t.
func (w *Writer) PathFor(t time.Time) string {
	return filepath.Join(w.dir, FileName(t))
}

// Append writes r as one row of the file for r's local date, writing the
// header first when the file is missing or empty.
func (w *Writer) Append(r pipeline.Reading) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	path := w.PathFor(r.Timestamp)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open daily log: %w", err)
	}
	if err := writeRow(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("write daily log %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close daily log %s: %w", path, err)
	}

	w.logger.WithFields(logrus.Fields{
		"file":        path,
		"temperature": r.Temperature,
		"humidity":    r.Humidity,
	}).Debug("Reading appended to daily log")
	return nil
}

// writeRow appends r to f, preceded by the header when f is empty.
func writeRow(f *os.File, r pipeline.Reading) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(f)
	cw.Comma = separator
	if info.Size() == 0 {
		if err := cw.Write(Header); err != nil {
			return err
		}
	}
	ts := r.Timestamp.Local()
	if err := cw.Write([]string{
		ts.Format(dateLayout),
		ts.Format(timeLayout),
		FormatTemperature(r.Temperature),
		strconv.Itoa(int(r.Humidity)),
	}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// Read parses rows from r. The header and malformed rows are skipped;
// the second return counts skipped data rows.
func Read(r io.Reader) ([]pipeline.Reading, int, error) {
	cr := csv.NewReader(r)
	cr.Comma = separator
	cr.FieldsPerRecord = -1

	var (
		readings []pipeline.Reading
		skipped  int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				continue
			}
			return readings, skipped, err
		}
		if len(rec) > 0 && rec[0] == Header[0] {
			continue
		}

		reading, ok := parseRow(rec)
		if !ok {
			skipped++
			continue
		}
		readings = append(readings, reading)
	}
	return readings, skipped, nil
}

func parseRow(rec []string) (pipeline.Reading, bool) {
	if len(rec) < 4 {
		return pipeline.Reading{}, false
	}
	ts, err := time.ParseInLocation(dateLayout+" "+timeLayout, rec[0]+" "+rec[1], time.Local)
	if err != nil {
		return pipeline.Reading{}, false
	}
	temp, err := ParseTemperature(rec[2])
	if err != nil {
		return pipeline.Reading{}, false
	}
	hum, err := strconv.ParseUint(strings.TrimSpace(rec[3]), 10, 8)
	if err != nil {
		return pipeline.Reading{}, false
	}
	return pipeline.Reading{Timestamp: ts, Temperature: temp, Humidity: uint8(hum)}, true
}

// ReadFile parses the daily file at path.
func ReadFile(path string) ([]pipeline.Reading, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return Read(f)
}

// ReadDay parses the daily file in dir for the local date of day.
func ReadDay(dir string, day time.Time) ([]pipeline.Reading, int, error) {
	return ReadFile(filepath.Join(dir, FileName(day)))
}
