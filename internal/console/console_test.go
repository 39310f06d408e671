package console_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/srg/blethermo/internal/console"
	"github.com/srg/blethermo/internal/history"
	"github.com/srg/blethermo/internal/testutils"
	"github.com/srg/blethermo/pipeline"
	"github.com/srg/blethermo/pkg/config"
	"github.com/stretchr/testify/suite"
)

type recordingPublisher struct {
	readings []pipeline.Reading
	err      error
}

func (p *recordingPublisher) Publish(r pipeline.Reading) error {
	p.readings = append(p.readings, r)
	return p.err
}

type PresenterTestSuite struct {
	suite.Suite
	helper *testutils.TestHelper
	out    *bytes.Buffer
	cell   *config.Cell
	hist   *history.History
	pub    *recordingPublisher
	p      *console.Presenter
}

func (suite *PresenterTestSuite) SetupTest() {
	suite.helper = testutils.NewTestHelper(suite.T())
	suite.out = &bytes.Buffer{}
	suite.cell = config.NewCell(nil)
	suite.hist = history.New(10)
	suite.pub = &recordingPublisher{}
	suite.p = console.New(suite.out, suite.cell, suite.hist, suite.helper.Logger,
		console.WithPublisher(suite.pub), console.WithColor(false))
}

func (suite *PresenterTestSuite) reading(temp float64, hum uint8) pipeline.Reading {
	rssi := -61
	ts := time.Date(2026, 10, 15, 9, 30, 15, 0, time.Local)
	return pipeline.NewReading(ts, temp, hum, "B8:59:CE:33:0F:93", &rssi, []byte{0x00, 0x30})
}

func (suite *PresenterTestSuite) TestReadingLine() {
	suite.p.Handle(pipeline.NewData{Reading: suite.reading(21.5, 48)})

	suite.Equal("09:30:15   21.5°C   48%  [21.5..21.5°C 48..48%]  -61 dBm  B8:59:CE:33:0F:93  [00 30]\n", suite.out.String())
	suite.Equal(1, suite.hist.Len())
	suite.Require().Len(suite.pub.readings, 1)
	suite.Equal(21.5, suite.pub.readings[0].Temperature)
}

func (suite *PresenterTestSuite) TestMinMaxTracksHistory() {
	suite.p.Handle(pipeline.NewData{Reading: suite.reading(21.5, 48)})
	suite.p.Handle(pipeline.NewData{Reading: suite.reading(19.0, 52)})

	suite.Contains(suite.out.String(), "[19.0..21.5°C 48..52%]")
}

func (suite *PresenterTestSuite) TestTemperatureThresholdsColour() {
	cell := config.NewCell(nil)
	p := console.New(suite.out, cell, nil, suite.helper.Logger, console.WithColor(true))
	hot := color.New(color.FgRed, color.Bold)
	hot.EnableColor()
	cold := color.New(color.FgCyan, color.Bold)
	cold.EnableColor()

	p.Handle(pipeline.NewData{Reading: suite.reading(31.0, 40)})
	suite.Contains(suite.out.String(), hot.Sprint(" 31.0°C"))

	suite.out.Reset()
	p.Handle(pipeline.NewData{Reading: suite.reading(9.5, 40)})
	suite.Contains(suite.out.String(), cold.Sprint("  9.5°C"))

	suite.out.Reset()
	p.Handle(pipeline.NewData{Reading: suite.reading(20.0, 40)})
	suite.Contains(suite.out.String(), "  20.0°C")
	suite.NotContains(suite.out.String(), hot.Sprint(" 20.0°C"))
}

func (suite *PresenterTestSuite) TestStatusAndPersistence() {
	suite.p.Handle(pipeline.StatusUpdate{Kind: pipeline.StatusInfo, Text: "scanning"})
	suite.Empty(suite.out.String(), "info status MUST only be logged")
	suite.Equal("scanning", suite.p.Status().Text)

	suite.p.Handle(pipeline.StatusUpdate{Kind: pipeline.StatusAdapterError, Text: "adapter not found"})
	suite.Equal("status: adapter not found\n", suite.out.String())

	writeErr := errors.New("disk full")
	suite.p.Handle(pipeline.PersistenceResult{OK: false, Err: writeErr})
	suite.Contains(suite.out.String(), "log write failed: disk full")
	ok, err := suite.p.LastWrite()
	suite.False(ok)
	suite.ErrorIs(err, writeErr)

	suite.p.Handle(pipeline.PersistenceResult{OK: true})
	ok, err = suite.p.LastWrite()
	suite.True(ok)
	suite.NoError(err)
}

func (suite *PresenterTestSuite) TestPublishFailureDoesNotStopPresenter() {
	suite.pub.err = errors.New("mqtt client not connected")
	suite.p.Handle(pipeline.NewData{Reading: suite.reading(21.5, 48)})
	suite.p.Handle(pipeline.NewData{Reading: suite.reading(21.6, 48)})

	suite.Len(suite.pub.readings, 2)
	suite.Equal(2, suite.hist.Len())
}

func (suite *PresenterTestSuite) TestRunDrainsUntilClosed() {
	q := pipeline.NewQueue[pipeline.Message]()
	suite.Require().NoError(q.Send(pipeline.NewData{Reading: suite.reading(21.5, 48)}))
	suite.Require().NoError(q.Send(pipeline.StatusUpdate{Kind: pipeline.StatusInfo, Text: "waiting"}))
	q.Close()

	suite.NoError(suite.p.Run(context.Background(), q))
	suite.Equal(1, suite.hist.Len())
	suite.Equal("waiting", suite.p.Status().Text)
}

func (suite *PresenterTestSuite) TestRunStopsOnContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	suite.ErrorIs(suite.p.Run(ctx, pipeline.NewQueue[pipeline.Message]()), context.Canceled)
}

func TestPresenterTestSuite(t *testing.T) {
	suite.Run(t, new(PresenterTestSuite))
}
