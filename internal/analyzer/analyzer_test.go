package analyzer_test

import (
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/perfwatch/internal/analyzer"
	"codeberg.org/mutker/perfwatch/internal/errors"
	"codeberg.org/mutker/perfwatch/internal/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runStart = time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

func sampleAt(step int, set func(*sample.SystemMetrics)) sample.Sample {
	s := sample.Sample{Timestamp: runStart.Add(time.Duration(step) * 5 * time.Second)}
	if set != nil {
		set(&s.System)
	}
	return s
}

func findSummary(t *testing.T, d analyzer.Diagnosis, name string) analyzer.MetricSummary {
	t.Helper()
	for _, m := range d.Summary {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf("summary for %s not found", name)
	return analyzer.MetricSummary{}
}

func TestAnalyzeEmptySeries(t *testing.T) {
	_, err := analyzer.Analyze(nil, analyzer.DefaultThresholds())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrEmptySeries))
}

func TestAnalyzeBreachIsStrictlyGreater(t *testing.T) {
	thresholds := analyzer.DefaultThresholds()
	require.Equal(t, 90.0, thresholds.Breach["cpuPercent"])

	over := sample.Series{sampleAt(0, func(m *sample.SystemMetrics) {
		m.CPUPercent = sample.Avail(91)
	})}
	d, err := analyzer.Analyze(over, thresholds)
	require.NoError(t, err)
	require.Len(t, d.Verdicts, 1)
	require.Len(t, d.Verdicts[0].Breaches, 1)
	assert.Equal(t, "cpuPercent", d.Verdicts[0].Breaches[0].Metric)
	assert.Equal(t, 91.0, d.Verdicts[0].Breaches[0].Value)

	exact := sample.Series{sampleAt(0, func(m *sample.SystemMetrics) {
		m.CPUPercent = sample.Avail(90)
	})}
	d, err = analyzer.Analyze(exact, thresholds)
	require.NoError(t, err)
	assert.Empty(t, d.Verdicts)
	require.Len(t, d.Recommendations, 1)
	assert.Contains(t, d.Recommendations[0], "No issues detected")
}

func TestAnalyzeDiskQueueScenario(t *testing.T) {
	queues := []float64{0, 3, 1}
	series := make(sample.Series, 0, len(queues))
	for i, q := range queues {
		q := q
		series = append(series, sampleAt(i, func(m *sample.SystemMetrics) {
			m.DiskQueueLength = sample.Avail(q)
		}))
	}

	d, err := analyzer.Analyze(series, analyzer.DefaultThresholds())
	require.NoError(t, err)

	summary := findSummary(t, d, "diskQueueLength")
	assert.Equal(t, 3.0, summary.Max)
	assert.Equal(t, 3, summary.Observations)

	require.Len(t, d.Verdicts, 1)
	assert.Equal(t, series[1].Timestamp, d.Verdicts[0].Timestamp)

	found := false
	for _, r := range d.Recommendations {
		if containsFold(r, "storage bottleneck") {
			found = true
		}
	}
	assert.True(t, found, "expected a storage bottleneck recommendation, got %v", d.Recommendations)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func TestAnalyzeUnavailableExcludedFromSummary(t *testing.T) {
	series := sample.Series{
		sampleAt(0, func(m *sample.SystemMetrics) {
			m.TemperatureCelsius = sample.Avail(60)
		}),
		sampleAt(1, nil), // temperature unavailable this interval
		sampleAt(2, func(m *sample.SystemMetrics) {
			m.TemperatureCelsius = sample.Avail(70)
		}),
	}

	d, err := analyzer.Analyze(series, analyzer.DefaultThresholds())
	require.NoError(t, err)

	summary := findSummary(t, d, "temperatureCelsius")
	assert.Equal(t, 2, summary.Observations)
	assert.Equal(t, 65.0, summary.Average, "unavailable reading must not drag the average toward zero")
	assert.Equal(t, 70.0, summary.Max)

	gpu := findSummary(t, d, "gpuUsagePercent")
	assert.Equal(t, 0, gpu.Observations)
}

func TestAnalyzeMultipleSimultaneousBreaches(t *testing.T) {
	series := sample.Series{sampleAt(0, func(m *sample.SystemMetrics) {
		m.CPUPercent = sample.Avail(95)
		m.DPCTimePercent = sample.Avail(20)
	})}

	d, err := analyzer.Analyze(series, analyzer.DefaultThresholds())
	require.NoError(t, err)

	require.Len(t, d.Verdicts, 1)
	assert.Len(t, d.Verdicts[0].Breaches, 2)
}

func TestAnalyzeDriverOverheadUsesSecondaryThreshold(t *testing.T) {
	// Average DPC time of 8% sits below the 15% breach threshold but
	// above the coarser 5% run-average check; pair it with a CPU breach
	// so the rule table actually runs.
	series := sample.Series{
		sampleAt(0, func(m *sample.SystemMetrics) {
			m.DPCTimePercent = sample.Avail(8)
			m.CPUPercent = sample.Avail(99)
		}),
		sampleAt(1, func(m *sample.SystemMetrics) {
			m.DPCTimePercent = sample.Avail(8)
			m.CPUPercent = sample.Avail(99)
		}),
	}

	d, err := analyzer.Analyze(series, analyzer.DefaultThresholds())
	require.NoError(t, err)

	found := false
	for _, r := range d.Recommendations {
		if containsFold(r, "driver overhead") {
			found = true
		}
	}
	assert.True(t, found, "expected a driver overhead recommendation, got %v", d.Recommendations)
}

func TestAnalyzeAggregatesRepeatOffenders(t *testing.T) {
	mk := func(step int, cpuLeader string) sample.Sample {
		s := sampleAt(step, nil)
		s.TopByCPU = []sample.ProcessRank{{Name: cpuLeader, CPUPercent: 50}, {Name: "background", CPUPercent: 5}}
		s.TopByMemory = []sample.ProcessRank{{Name: "cache-daemon", MemoryMB: 800}}
		return s
	}
	series := sample.Series{mk(0, "encoder"), mk(1, "encoder"), mk(2, "indexer")}

	d, err := analyzer.Analyze(series, analyzer.DefaultThresholds())
	require.NoError(t, err)

	require.NotEmpty(t, d.TopByCPU)
	assert.Equal(t, "background", d.TopByCPU[0].Name)
	assert.Equal(t, 3, d.TopByCPU[0].CPUCount)
	assert.Equal(t, "encoder", d.TopByCPU[1].Name)
	assert.Equal(t, 2, d.TopByCPU[1].CPUCount)

	require.Len(t, d.TopByMemory, 1)
	assert.Equal(t, "cache-daemon", d.TopByMemory[0].Name)
	assert.Equal(t, 3, d.TopByMemory[0].MemoryCount)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	series := sample.Series{
		sampleAt(0, func(m *sample.SystemMetrics) {
			m.CPUPercent = sample.Avail(95)
			m.MemoryPercent = sample.Avail(50)
		}),
		sampleAt(1, func(m *sample.SystemMetrics) {
			m.CPUPercent = sample.Avail(85)
			m.DiskQueueLength = sample.Avail(4)
		}),
	}
	series[0].TopByCPU = []sample.ProcessRank{{Name: "encoder", CPUPercent: 80}}

	thresholds := analyzer.DefaultThresholds()
	first, err := analyzer.Analyze(series, thresholds)
	require.NoError(t, err)
	second, err := analyzer.Analyze(series, thresholds)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
