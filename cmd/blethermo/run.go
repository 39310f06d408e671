package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blethermo/internal/console"
	"github.com/srg/blethermo/internal/datalog"
	"github.com/srg/blethermo/internal/groutine"
	"github.com/srg/blethermo/internal/history"
	"github.com/srg/blethermo/internal/metrics"
	"github.com/srg/blethermo/internal/mqttsink"
	"github.com/srg/blethermo/pipeline"
	"github.com/srg/blethermo/pkg/config"
	"github.com/srg/blethermo/scanner"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Listen for the thermometer and log its readings",
	Long: `Run the acquisition pipeline until interrupted:

  scan loop -> debounce stage -> console

Accepted readings are appended to log_YYYY-MM-DD.csv in log_dir.
Send SIGHUP to reload the configuration file; the scan loop applies it
from its next cycle.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runMetricsAddr string
	runMQTTBroker  string
	runMQTTTopic   string
	runMQTTRetain  bool
	runNoColor     bool
)

func init() {
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9101")
	runCmd.Flags().StringVar(&runMQTTBroker, "mqtt-broker", "", "Publish accepted readings to this MQTT broker, e.g. tcp://localhost:1883")
	runCmd.Flags().StringVar(&runMQTTTopic, "mqtt-topic", mqttsink.DefaultTopic, "MQTT topic for readings")
	runCmd.Flags().BoolVar(&runMQTTRetain, "mqtt-retain", false, "Publish readings as retained messages")
	runCmd.Flags().BoolVar(&runNoColor, "no-color", false, "Disable coloured output")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, loadErr := config.Load(cfgPath)

	logger, err := configureLogger(cmd, cfg.LogLevel)
	if err != nil {
		return err
	}
	if loadErr != nil {
		logger.WithError(loadErr).Warn("Using default configuration")
	}
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := &runner{
		cfgPath:     cfgPath,
		cell:        config.NewCell(cfg),
		logger:      logger,
		out:         cmd.OutOrStdout(),
		color:       !runNoColor && !color.NoColor,
		metricsAddr: runMetricsAddr,
		mqtt: mqttsink.Options{
			Broker: runMQTTBroker,
			Topic:  runMQTTTopic,
			Retain: runMQTTRetain,
		},
	}
	return r.run(ctx)
}

// runner wires the pipeline for one run command.
type runner struct {
	cfgPath     string
	cell        *config.Cell
	logger      *logrus.Logger
	out         io.Writer
	color       bool
	metricsAddr string
	mqtt        mqttsink.Options // empty Broker disables publishing
}

func (r *runner) run(ctx context.Context) error {
	cfg := r.cell.Read()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	hist, err := history.Load(cfg.LogDir, time.Now(), history.LimitFor(cfg), r.logger)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to load today's history")
	}

	opts := []console.Option{console.WithColor(r.color)}
	var sink *mqttsink.Sink
	if r.mqtt.Broker != "" {
		sink = mqttsink.New(r.mqtt, r.logger)
		defer sink.Close()
		opts = append(opts, console.WithPublisher(sink))
	}

	raw := pipeline.NewQueue[pipeline.Message]()
	accepted := pipeline.NewQueue[pipeline.Message]()
	m.WatchQueue("raw", raw.Len, func() int64 { return raw.GetMetrics().Written })
	m.WatchQueue("accepted", accepted.Len, func() int64 { return accepted.GetMetrics().Written })

	loop := scanner.NewLoop(r.cell, raw, r.logger, scanner.WithMetrics(m))
	// log_dir is bound here; changing it takes a restart
	stage := pipeline.NewStage(raw, accepted, r.cell, datalog.NewWriter(cfg.LogDir, r.logger), r.logger,
		pipeline.WithStageMetrics(m))
	presenter := console.New(r.out, r.cell, hist, r.logger, opts...)

	g, gctx := groutine.WithContext(ctx, r.logger)
	g.Go(gctx, "scanner", func(ctx context.Context) error {
		defer raw.Close()
		return loop.Run(ctx)
	})
	g.Go(gctx, "debounce", func(ctx context.Context) error {
		defer accepted.Close()
		return stage.Run(ctx)
	})
	g.Go(gctx, "presenter", func(ctx context.Context) error {
		return presenter.Run(ctx, accepted)
	})
	g.Go(gctx, "reload", r.watchReload)
	if sink != nil {
		// publishing fails with ErrNotConnected until the broker answers
		g.Go(gctx, "mqtt", func(ctx context.Context) error {
			if err := sink.Connect(ctx); err != nil && ctx.Err() == nil {
				r.logger.WithError(err).Warn("MQTT unavailable, readings will not be published")
			}
			<-ctx.Done()
			return ctx.Err()
		})
	}
	if r.metricsAddr != "" {
		g.Go(gctx, "metrics", func(ctx context.Context) error {
			return serveMetrics(ctx, r.metricsAddr, registry, r.logger)
		})
	}

	r.logger.WithFields(logrus.Fields{
		"target":     cfg.TargetAddress,
		"continuous": cfg.ContinuousMode,
		"log_dir":    cfg.LogDir,
	}).Info("Thermometer logger started")

	return g.Wait()
}

// watchReload re-reads the configuration file on SIGHUP.
func (r *runner) watchReload(ctx context.Context) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-hup:
			r.reload()
		}
	}
}

// reload replaces the shared configuration; a file that fails to load
// leaves the current one in place.
func (r *runner) reload() {
	cfg, err := config.Load(r.cfgPath)
	if err != nil {
		r.logger.WithError(err).Warn("Reload failed, keeping current configuration")
		return
	}
	if !r.cell.Write(*cfg) {
		r.logger.Debug("Configuration unchanged")
		return
	}
	r.logger.WithFields(logrus.Fields{
		"target":     cfg.TargetAddress,
		"continuous": cfg.ContinuousMode,
		"threshold":  cfg.DuplicateThreshold,
	}).Info("Configuration reloaded")
}

func serveMetrics(ctx context.Context, addr string, g prometheus.Gatherer, logger *logrus.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.WithField("addr", addr).Info("Serving metrics")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Debug("Metrics server shutdown")
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
