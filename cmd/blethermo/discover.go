package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/blethermo/internal/datalog"
	"github.com/srg/blethermo/pkg/config"
	"github.com/srg/blethermo/scanner"
)

// discoverCmd represents the discover command
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List nearby devices advertising manufacturer data",
	Long: `Scan once and list every device advertising manufacturer data,
strongest signal first, with a decode attempt of its payload.

Use it to find the thermometer address for target_address.`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

var discoverDuration time.Duration

func init() {
	discoverCmd.Flags().DurationVarP(&discoverDuration, "duration", "d", 10*time.Second, "Scan duration")
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	if discoverDuration <= 0 {
		return fmt.Errorf("invalid duration %s: must be positive", discoverDuration)
	}

	logger, err := configureLogger(cmd, "warn")
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, loadErr := config.Load(cfgPath)
	if loadErr != nil {
		logger.WithError(loadErr).Debug("Using default configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := NewCountdownPrinter(cmd.OutOrStdout(), "Discovering BLE devices", discoverDuration)
	progress.Start()
	entries, err := scanner.Discover(ctx, discoverDuration, logger)
	progress.Stop()
	if err != nil {
		return err
	}

	return displayDevices(cmd.OutOrStdout(), entries, cfg.TargetAddress)
}

func displayDevices(out io.Writer, entries []scanner.DeviceEntry, target string) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No devices discovered")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tADDRESS\tNAME\tRSSI\tSEEN\tDATA\tDECODED")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	for _, e := range entries {
		marker := ""
		if strings.EqualFold(e.Address, target) {
			marker = "*"
		}

		name := e.Name
		if len(name) > 20 {
			name = name[:17] + "..."
		}

		data := strings.ToUpper(fmt.Sprintf("% x", e.ManufacturerData))
		if len(data) > 30 {
			data = data[:27] + "..."
		}

		decoded := "-"
		if m := e.Measurement; m != nil {
			decoded = fmt.Sprintf("%s°C %d%%", datalog.FormatTemperature(m.Temperature), m.Humidity)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d dBm\t%d\t%s\t%s\n",
			marker, e.Address, name, e.RSSI, e.Seen, data, decoded)
	}

	return w.Flush()
}
