package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/blethermo/internal/datalog"
	"github.com/srg/blethermo/internal/history"
	"github.com/srg/blethermo/pkg/config"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Summarise a day of logged readings",
	Long: `Load the daily log and print min/max temperature and humidity.

With --hourly, readings are grouped by clock hour.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var (
	historyDate   string
	historyHourly bool
	historyAll    bool
)

func init() {
	historyCmd.Flags().StringVar(&historyDate, "date", "", "Day to load as YYYY-MM-DD (default today)")
	historyCmd.Flags().BoolVar(&historyHourly, "hourly", false, "Group readings by hour")
	historyCmd.Flags().BoolVar(&historyAll, "all", false, "Ignore history_limit and load the whole day")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	day := time.Now()
	if historyDate != "" {
		var err error
		day, err = time.ParseInLocation(time.DateOnly, historyDate, time.Local)
		if err != nil {
			return fmt.Errorf("invalid date %q: must be YYYY-MM-DD", historyDate)
		}
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

	limit := history.LimitFor(*cfg)
	if historyAll {
		limit = 0
	}
	h, err := history.Load(cfg.LogDir, day, limit, logger)
	if err != nil {
		return err
	}

	return displayHistory(cmd.OutOrStdout(), h, day, historyHourly)
}

func displayHistory(out io.Writer, h *history.History, day time.Time, hourly bool) error {
	stats, ok := h.Stats()
	if !ok {
		fmt.Fprintf(out, "No readings logged on %s\n", day.Format(time.DateOnly))
		return nil
	}

	fmt.Fprintf(out, "%s: %d readings, last at %s\n", datalog.FileName(day), stats.Count, stats.Last.Timestamp.Format(time.TimeOnly))
	fmt.Fprintf(out, "Temperature: %s .. %s °C\n", datalog.FormatTemperature(stats.MinTemp), datalog.FormatTemperature(stats.MaxTemp))
	fmt.Fprintf(out, "Humidity:    %d .. %d %%\n", stats.MinHum, stats.MaxHum)

	if !hourly {
		return nil
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HOUR\tCOUNT\tTEMP MIN\tTEMP AVG\tTEMP MAX\tHUM MIN\tHUM MAX")
	for _, s := range h.Hourly() {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%d\t%d\n",
			s.Hour.Format("15:04"), s.Count,
			datalog.FormatTemperature(s.MinTemp),
			datalog.FormatTemperature(s.AvgTemp),
			datalog.FormatTemperature(s.MaxTemp),
			s.MinHum, s.MaxHum)
	}
	return w.Flush()
}
