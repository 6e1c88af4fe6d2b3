package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/perfwatch/internal/analyzer"
	"codeberg.org/mutker/perfwatch/internal/config"
	"codeberg.org/mutker/perfwatch/internal/logger"
	"codeberg.org/mutker/perfwatch/internal/metricsource"
	"codeberg.org/mutker/perfwatch/internal/pid"
	"codeberg.org/mutker/perfwatch/internal/recorder"
	"codeberg.org/mutker/perfwatch/internal/report"
	"codeberg.org/mutker/perfwatch/internal/sample"
	"codeberg.org/mutker/perfwatch/internal/sampler"
	"codeberg.org/mutker/perfwatch/internal/telemetry"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	if cfg.Analyze != "" {
		analyzeExisting(cfg.Analyze)
		return
	}

	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to acquire run lock")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("failed to remove pid file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	series, err := collect(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("collection failed")
		os.Exit(1)
	}

	diagnosis, err := analyzer.Analyze(series, cfg.Thresholds())
	if err != nil {
		// Zero usable samples is a misconfiguration, never an empty report.
		logger.Error().Err(err).Msg("nothing to analyze")
		os.Exit(1)
	}

	report.Render(os.Stdout, diagnosis)
}

func collect(ctx context.Context) (sample.Series, error) {
	source := metricsource.New()
	defer func() {
		if err := source.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close metric source")
		}
	}()

	rec, err := recorder.New(cfg.LogPath, cfg.TopProcesses)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rec.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close log")
		}
	}()

	collector, err := telemetry.NewService(telemetryConfig())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close telemetry archive")
		}
	}()

	smplr, err := sampler.New(source, sampler.Config{
		Interval: cfg.Interval(),
		Duration: cfg.Duration(),
		TopK:     cfg.TopProcesses,
	}, rec, archiveSink{ctx: ctx, collector: collector})
	if err != nil {
		return nil, err
	}

	return smplr.Run(ctx)
}

func analyzeExisting(path string) {
	series, err := recorder.Load(path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", path).Msg("failed to load log")
	}

	diagnosis, err := analyzer.Analyze(series, cfg.Thresholds())
	if err != nil {
		logger.Fatal().Err(err).Msg("nothing to analyze")
	}

	report.Render(os.Stdout, diagnosis)
}

func telemetryConfig() telemetry.Config {
	tcfg := telemetry.DefaultConfig()
	tcfg.Enabled = cfg.Telemetry
	if cfg.Database != "" {
		tcfg.DBPath = cfg.Database
	}

	return tcfg
}

// archiveSink adapts the telemetry collector to the sampler sink.
type archiveSink struct {
	ctx       context.Context
	collector telemetry.Collector
}

func (a archiveSink) Append(s sample.Sample) error {
	return a.collector.Record(a.ctx, s)
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
