package analyzer

import "time"

// MetricSummary aggregates one system metric over a whole run. Only
// available readings contribute; Observations counts them.
type MetricSummary struct {
	Name         string
	Average      float64
	Max          float64
	Observations int
}

// Breach records one threshold violation within a sample.
type Breach struct {
	Metric    string
	Value     float64
	Threshold float64
}

// IntervalVerdict marks one sample as bottlenecked. Multiple
// simultaneous breaches share a single verdict. Derived, never stored.
type IntervalVerdict struct {
	Timestamp        time.Time
	Breaches         []Breach
	TopCPUProcess    string
	TopMemoryProcess string
	TopIOProcess     string
}

// ProcessAggregate counts how often a process appeared in the top-K
// lists across the run.
type ProcessAggregate struct {
	Name        string
	CPUCount    int
	MemoryCount int
	IOCount     int
}

// Diagnosis is the full analysis result.
type Diagnosis struct {
	Summary         []MetricSummary
	Verdicts        []IntervalVerdict
	TopByCPU        []ProcessAggregate
	TopByMemory     []ProcessAggregate
	TopByIO         []ProcessAggregate
	Recommendations []string
}
