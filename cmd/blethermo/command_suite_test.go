package main

import (
	"bytes"
	"io"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"github.com/srg/blethermo/internal/device"
	"github.com/srg/blethermo/internal/devicefactory"
	"github.com/srg/blethermo/internal/testutils"
	"github.com/stretchr/testify/suite"
)

const testTarget = "B8:59:CE:33:0F:93"

// syncBuffer is a bytes.Buffer safe for a writer goroutine and a polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// CommandTestSuite runs commands against a fake BLE stack and a temporary
// working directory.
type CommandTestSuite struct {
	suite.Suite
	Helper          *testutils.TestHelper
	BLE             *testutils.FakeBLE
	Adapter         *testutils.FakeAdapter
	Dir             string
	ConfigPath      string
	originalFactory func() (device.Manager, error)
}

func (s *CommandTestSuite) SetupTest() {
	s.Helper = testutils.NewTestHelper(s.T())
	s.Dir = s.T().TempDir()
	s.ConfigPath = filepath.Join(s.Dir, "config.yaml")

	s.Adapter = &testutils.FakeAdapter{}
	s.BLE = &testutils.FakeBLE{Adapter: s.Adapter}
	s.originalFactory = devicefactory.ManagerFactory
	devicefactory.ManagerFactory = s.BLE.Factory

	historyDate, historyHourly, historyAll = "", false, false
}

func (s *CommandTestSuite) TearDownTest() {
	devicefactory.ManagerFactory = s.originalFactory
}

// ExecuteCommand runs a cobra command with args, returns output and error.
func (s *CommandTestSuite) ExecuteCommand(cmd *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
