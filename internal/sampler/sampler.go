package sampler

import (
	"context"
	"time"

	"codeberg.org/mutker/perfwatch/internal/errors"
	"codeberg.org/mutker/perfwatch/internal/logger"
	"codeberg.org/mutker/perfwatch/internal/metricsource"
	"codeberg.org/mutker/perfwatch/internal/ranker"
	"codeberg.org/mutker/perfwatch/internal/sample"
)

// State tracks the sampler lifecycle: Idle -> Running -> Completed or
// Cancelled. Both terminal states leave the accumulated series usable.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Sink receives each sample as it is collected.
type Sink interface {
	Append(s sample.Sample) error
}

// Config carries the collection parameters.
type Config struct {
	Interval time.Duration
	Duration time.Duration
	TopK     int
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.New(ErrInvalidInterval)
	}
	if c.TopK < 1 {
		return errFactory.New(ErrInvalidTopCount)
	}
	if c.Iterations() < 1 {
		return errFactory.New(ErrInvalidDuration)
	}

	return nil
}

// Iterations is the planned sample count: floor(duration / interval).
func (c Config) Iterations() int {
	if c.Interval <= 0 {
		return 0
	}

	return int(c.Duration / c.Interval)
}

// Sampler drives the fixed-interval collection loop. It is the only
// component that advances time; one sample is in flight at most.
type Sampler struct {
	source metricsource.Source
	cfg    Config
	sinks  []Sink
	state  State

	// OnProgress, if set, is invoked after every sample with the
	// completed and planned counts. Observational only.
	OnProgress func(completed, total int)
}

// New validates the configuration before any source read happens.
func New(source metricsource.Source, cfg Config, sinks ...Sink) (*Sampler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Sampler{
		source: source,
		cfg:    cfg,
		sinks:  sinks,
		state:  StateIdle,
	}, nil
}

func (s *Sampler) State() State {
	return s.state
}

// Run collects floor(duration/interval) samples and returns the series.
// Cancellation is cooperative: it is honored at iteration boundaries,
// never mid-read, and the partial series is returned rather than
// discarded. Sink write failures are warned about and skipped; the
// in-memory series stays authoritative.
func (s *Sampler) Run(ctx context.Context) (sample.Series, error) {
	errFactory := errors.New()

	if s.state != StateIdle {
		return nil, errFactory.WithMessage(ErrNotIdle, "sampler already ran")
	}

	iterations := s.cfg.Iterations()
	series := make(sample.Series, 0, iterations)
	s.state = StateRunning

	logger.Info().
		Int("iterations", iterations).
		Dur("interval", s.cfg.Interval).
		Int("top_k", s.cfg.TopK).
		Msg("Collection started")

	for i := 0; i < iterations; i++ {
		if ctx.Err() != nil {
			s.state = StateCancelled
			logger.Info().Int("collected", len(series)).Msg("Collection cancelled")
			return series, nil
		}

		stepStart := time.Now()
		smp := s.collect(ctx, stepStart)
		series = append(series, smp)

		for _, sink := range s.sinks {
			if err := sink.Append(smp); err != nil {
				logger.Warn().Err(err).Msg("Sample write failed, continuing from memory")
			}
		}

		logger.Info().
			Int("sample", i+1).
			Int("of", iterations).
			Msg("Sample collected")
		if s.OnProgress != nil {
			s.OnProgress(i+1, iterations)
		}

		if i == iterations-1 {
			break
		}

		// Sleep only the remainder of the interval so collection
		// overhead does not stretch the cadence. An overlong step
		// proceeds immediately.
		if remaining := s.cfg.Interval - time.Since(stepStart); remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				s.state = StateCancelled
				logger.Info().Int("collected", len(series)).Msg("Collection cancelled")
				return series, nil
			case <-timer.C:
			}
		}
	}

	s.state = StateCompleted
	logger.Info().Int("collected", len(series)).Msg("Collection completed")

	return series, nil
}

func (s *Sampler) collect(ctx context.Context, ts time.Time) sample.Sample {
	system := s.source.ReadSystemMetrics(ctx)

	procs, err := s.source.ListProcesses(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Process snapshot failed, ranking skipped for this sample")
	}
	ioRates := s.source.ReadProcessIO(ctx)

	ranking := ranker.Rank(procs, ioRates, s.cfg.TopK)

	return sample.Sample{
		Timestamp:   ts,
		System:      system,
		TopByCPU:    ranking.TopByCPU,
		TopByMemory: ranking.TopByMemory,
		TopByIO:     ranking.TopByIO,
	}
}
