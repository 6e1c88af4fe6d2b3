package sample

import "time"

// Reading is a single metric observation. Hosts that lack a subsystem
// (no GPU, no thermal zone, insufficient privilege) yield readings with
// Available=false; downstream code must never treat those as zero.
type Reading struct {
	Value     float64
	Available bool
}

// Avail wraps a measured value.
func Avail(v float64) Reading {
	return Reading{Value: v, Available: true}
}

// Unavailable marks a metric the host did not expose.
func Unavailable() Reading {
	return Reading{}
}

// SystemMetrics is the fixed system-wide metric set captured each interval.
type SystemMetrics struct {
	CPUPercent           Reading
	MemoryPercent        Reading
	MemoryUsedGB         Reading
	MemoryTotalGB        Reading
	PageFileUsagePercent Reading
	DiskReadMBps         Reading
	DiskWriteMBps        Reading
	DiskQueueLength      Reading
	DiskReadLatencyMs    Reading
	DiskWriteLatencyMs   Reading
	NetworkSentMBps      Reading
	NetworkReceivedMBps  Reading
	GPUUsagePercent      Reading
	TemperatureCelsius   Reading
	DPCTimePercent       Reading
	InterruptsPerSec     Reading
	UptimeSeconds        Reading
}

// MetricDescriptor names one system metric and knows how to extract and
// assign it. The descriptor table fixes column order for the recorder
// and iteration order for the analyzer, so both stay in sync with the
// struct.
type MetricDescriptor struct {
	Name string
	Get  func(SystemMetrics) Reading
	Set  func(*SystemMetrics, Reading)
}

// Metrics returns the descriptor table in canonical order.
func Metrics() []MetricDescriptor {
	return []MetricDescriptor{
		{"cpuPercent",
			func(m SystemMetrics) Reading { return m.CPUPercent },
			func(m *SystemMetrics, r Reading) { m.CPUPercent = r }},
		{"memoryPercent",
			func(m SystemMetrics) Reading { return m.MemoryPercent },
			func(m *SystemMetrics, r Reading) { m.MemoryPercent = r }},
		{"memoryUsedGB",
			func(m SystemMetrics) Reading { return m.MemoryUsedGB },
			func(m *SystemMetrics, r Reading) { m.MemoryUsedGB = r }},
		{"memoryTotalGB",
			func(m SystemMetrics) Reading { return m.MemoryTotalGB },
			func(m *SystemMetrics, r Reading) { m.MemoryTotalGB = r }},
		{"pageFileUsagePercent",
			func(m SystemMetrics) Reading { return m.PageFileUsagePercent },
			func(m *SystemMetrics, r Reading) { m.PageFileUsagePercent = r }},
		{"diskReadMBps",
			func(m SystemMetrics) Reading { return m.DiskReadMBps },
			func(m *SystemMetrics, r Reading) { m.DiskReadMBps = r }},
		{"diskWriteMBps",
			func(m SystemMetrics) Reading { return m.DiskWriteMBps },
			func(m *SystemMetrics, r Reading) { m.DiskWriteMBps = r }},
		{"diskQueueLength",
			func(m SystemMetrics) Reading { return m.DiskQueueLength },
			func(m *SystemMetrics, r Reading) { m.DiskQueueLength = r }},
		{"diskReadLatencyMs",
			func(m SystemMetrics) Reading { return m.DiskReadLatencyMs },
			func(m *SystemMetrics, r Reading) { m.DiskReadLatencyMs = r }},
		{"diskWriteLatencyMs",
			func(m SystemMetrics) Reading { return m.DiskWriteLatencyMs },
			func(m *SystemMetrics, r Reading) { m.DiskWriteLatencyMs = r }},
		{"networkSentMBps",
			func(m SystemMetrics) Reading { return m.NetworkSentMBps },
			func(m *SystemMetrics, r Reading) { m.NetworkSentMBps = r }},
		{"networkReceivedMBps",
			func(m SystemMetrics) Reading { return m.NetworkReceivedMBps },
			func(m *SystemMetrics, r Reading) { m.NetworkReceivedMBps = r }},
		{"gpuUsagePercent",
			func(m SystemMetrics) Reading { return m.GPUUsagePercent },
			func(m *SystemMetrics, r Reading) { m.GPUUsagePercent = r }},
		{"temperatureCelsius",
			func(m SystemMetrics) Reading { return m.TemperatureCelsius },
			func(m *SystemMetrics, r Reading) { m.TemperatureCelsius = r }},
		{"dpcTimePercent",
			func(m SystemMetrics) Reading { return m.DPCTimePercent },
			func(m *SystemMetrics, r Reading) { m.DPCTimePercent = r }},
		{"interruptsPerSec",
			func(m SystemMetrics) Reading { return m.InterruptsPerSec },
			func(m *SystemMetrics, r Reading) { m.InterruptsPerSec = r }},
		{"uptimeSeconds",
			func(m SystemMetrics) Reading { return m.UptimeSeconds },
			func(m *SystemMetrics, r Reading) { m.UptimeSeconds = r }},
	}
}

// ProcessRank is one entry in a top-K process list.
type ProcessRank struct {
	Name       string
	User       string
	CPUPercent float64
	MemoryMB   float64
	IoMBps     float64
}

// Sample is one timestamped observation. Immutable once built; the
// recorded log is append-only.
type Sample struct {
	Timestamp   time.Time
	System      SystemMetrics
	TopByCPU    []ProcessRank
	TopByMemory []ProcessRank
	TopByIO     []ProcessRank
}

// Series is the ordered sequence of samples for one run. Insertion
// order equals chronological order.
type Series []Sample
