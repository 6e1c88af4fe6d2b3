package analyzer

// ThresholdSet maps metric names to breach values. A metric breaches
// when its value is strictly greater than the threshold. DPCAveragePercent
// is a separate, coarser check applied to the run-wide average; it is
// deliberately independent of the per-interval dpcTimePercent threshold.
type ThresholdSet struct {
	Breach            map[string]float64
	DPCAveragePercent float64
}

// DefaultThresholds returns the stock threshold set. Values can be
// overridden from the [thresholds] config table.
func DefaultThresholds() ThresholdSet {
	return ThresholdSet{
		Breach: map[string]float64{
			"cpuPercent":           90,
			"memoryPercent":        90,
			"pageFileUsagePercent": 80,
			"diskQueueLength":      2,
			"diskReadLatencyMs":    50,
			"diskWriteLatencyMs":   50,
			"gpuUsagePercent":      90,
			"temperatureCelsius":   85,
			"dpcTimePercent":       15,
		},
		DPCAveragePercent: 5,
	}
}
