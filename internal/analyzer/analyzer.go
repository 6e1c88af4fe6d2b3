package analyzer

import (
	"fmt"
	"sort"

	"codeberg.org/mutker/perfwatch/internal/errors"
	"codeberg.org/mutker/perfwatch/internal/sample"
)

const offenderReportSize = 5

// Analyze runs the rule-based diagnosis over a recorded series. Pure
// function: the same series and thresholds always yield an identical
// diagnosis. Unavailable readings never contribute to averages, maxima
// or breach checks.
func Analyze(series sample.Series, thresholds ThresholdSet) (Diagnosis, error) {
	errFactory := errors.New()

	if len(series) == 0 {
		return Diagnosis{}, errFactory.New(ErrEmptySeries)
	}

	summary := summarize(series)
	verdicts := judge(series, thresholds)
	topCPU, topMem, topIO := aggregate(series)

	return Diagnosis{
		Summary:         summary,
		Verdicts:        verdicts,
		TopByCPU:        topCPU,
		TopByMemory:     topMem,
		TopByIO:         topIO,
		Recommendations: recommend(summary, verdicts, thresholds, topCPU, topMem),
	}, nil
}

// summarize computes per-metric average and maximum over available
// readings only. A metric that was never available keeps zero
// observations and is skipped by the recommendation rules.
func summarize(series sample.Series) []MetricSummary {
	descriptors := sample.Metrics()
	summary := make([]MetricSummary, len(descriptors))

	for i, d := range descriptors {
		var (
			sum   float64
			max   float64
			count int
		)
		for _, s := range series {
			r := d.Get(s.System)
			if !r.Available {
				continue
			}
			sum += r.Value
			if count == 0 || r.Value > max {
				max = r.Value
			}
			count++
		}

		summary[i] = MetricSummary{Name: d.Name, Max: max, Observations: count}
		if count > 0 {
			summary[i].Average = sum / float64(count)
		}
	}

	return summary
}

// judge produces one verdict per sample that breaches at least one
// threshold. Breach means strictly greater than the configured value.
func judge(series sample.Series, thresholds ThresholdSet) []IntervalVerdict {
	var verdicts []IntervalVerdict

	for _, s := range series {
		var breaches []Breach
		for _, d := range sample.Metrics() {
			threshold, ok := thresholds.Breach[d.Name]
			if !ok {
				continue
			}
			r := d.Get(s.System)
			if !r.Available || r.Value <= threshold {
				continue
			}
			breaches = append(breaches, Breach{
				Metric:    d.Name,
				Value:     r.Value,
				Threshold: threshold,
			})
		}
		if len(breaches) == 0 {
			continue
		}

		verdict := IntervalVerdict{Timestamp: s.Timestamp, Breaches: breaches}
		if len(s.TopByCPU) > 0 {
			verdict.TopCPUProcess = s.TopByCPU[0].Name
		}
		if len(s.TopByMemory) > 0 {
			verdict.TopMemoryProcess = s.TopByMemory[0].Name
		}
		if len(s.TopByIO) > 0 {
			verdict.TopIOProcess = s.TopByIO[0].Name
		}
		verdicts = append(verdicts, verdict)
	}

	return verdicts
}

// aggregate folds the top-K lists of every sample into per-process
// appearance counts, one pass over the series.
func aggregate(series sample.Series) (topCPU, topMem, topIO []ProcessAggregate) {
	counts := make(map[string]*ProcessAggregate)
	record := func(name string, bump func(*ProcessAggregate)) {
		agg, ok := counts[name]
		if !ok {
			agg = &ProcessAggregate{Name: name}
			counts[name] = agg
		}
		bump(agg)
	}

	for _, s := range series {
		for _, p := range s.TopByCPU {
			record(p.Name, func(a *ProcessAggregate) { a.CPUCount++ })
		}
		for _, p := range s.TopByMemory {
			record(p.Name, func(a *ProcessAggregate) { a.MemoryCount++ })
		}
		for _, p := range s.TopByIO {
			record(p.Name, func(a *ProcessAggregate) { a.IOCount++ })
		}
	}

	all := make([]ProcessAggregate, 0, len(counts))
	for _, agg := range counts {
		all = append(all, *agg)
	}

	topCPU = rankAggregates(all, func(a ProcessAggregate) int { return a.CPUCount })
	topMem = rankAggregates(all, func(a ProcessAggregate) int { return a.MemoryCount })
	topIO = rankAggregates(all, func(a ProcessAggregate) int { return a.IOCount })

	return topCPU, topMem, topIO
}

func rankAggregates(all []ProcessAggregate, count func(ProcessAggregate) int) []ProcessAggregate {
	ranked := make([]ProcessAggregate, 0, len(all))
	for _, a := range all {
		if count(a) > 0 {
			ranked = append(ranked, a)
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		ci, cj := count(ranked[i]), count(ranked[j])
		if ci != cj {
			return ci > cj
		}
		return ranked[i].Name < ranked[j].Name
	})

	if len(ranked) > offenderReportSize {
		ranked = ranked[:offenderReportSize]
	}

	return ranked
}

// recommend evaluates the fixed rule table against the run summary.
// With zero verdicts the rule table is skipped entirely in favor of a
// single all-clear message.
func recommend(summary []MetricSummary, verdicts []IntervalVerdict, thresholds ThresholdSet, topCPU, topMem []ProcessAggregate) []string {
	if len(verdicts) == 0 {
		return []string{"No issues detected: all metrics stayed within thresholds for the whole run."}
	}

	byName := make(map[string]MetricSummary, len(summary))
	for _, m := range summary {
		byName[m.Name] = m
	}
	avg := func(name string) (float64, bool) {
		m, ok := byName[name]
		return m.Average, ok && m.Observations > 0
	}
	max := func(name string) (float64, bool) {
		m, ok := byName[name]
		return m.Max, ok && m.Observations > 0
	}
	over := func(v float64, name string) bool {
		threshold, ok := thresholds.Breach[name]
		return ok && v > threshold
	}

	var recs []string

	if v, ok := avg("cpuPercent"); ok && over(v, "cpuPercent") {
		rec := fmt.Sprintf("CPU saturation: average CPU usage %.1f%% exceeded the %.0f%% threshold.", v, thresholds.Breach["cpuPercent"])
		if len(topCPU) > 0 {
			rec += fmt.Sprintf(" Most frequent CPU consumer: %s.", topCPU[0].Name)
		}
		recs = append(recs, rec)
	}

	memAvg, memOK := avg("memoryPercent")
	pageMax, pageOK := max("pageFileUsagePercent")
	if (memOK && over(memAvg, "memoryPercent")) || (pageOK && over(pageMax, "pageFileUsagePercent")) {
		rec := "Memory pressure: RAM or page file usage stayed above threshold; consider closing memory-heavy applications."
		if len(topMem) > 0 {
			rec += fmt.Sprintf(" Most frequent memory consumer: %s.", topMem[0].Name)
		}
		recs = append(recs, rec)
	}

	queueMax, queueOK := max("diskQueueLength")
	readLatMax, readLatOK := max("diskReadLatencyMs")
	writeLatMax, writeLatOK := max("diskWriteLatencyMs")
	if (queueOK && over(queueMax, "diskQueueLength")) ||
		(readLatOK && over(readLatMax, "diskReadLatencyMs")) ||
		(writeLatOK && over(writeLatMax, "diskWriteLatencyMs")) {
		recs = append(recs, "Storage bottleneck: disk queue depth or I/O latency exceeded thresholds; the disk subsystem is likely the limiting factor.")
	}

	if v, ok := max("gpuUsagePercent"); ok && over(v, "gpuUsagePercent") {
		recs = append(recs, fmt.Sprintf("GPU saturation: peak GPU usage reached %.1f%%.", v))
	}

	if v, ok := max("temperatureCelsius"); ok && over(v, "temperatureCelsius") {
		recs = append(recs, fmt.Sprintf("Thermal throttling: peak temperature reached %.1f°C; check cooling and airflow.", v))
	}

	if v, ok := avg("dpcTimePercent"); ok && v > thresholds.DPCAveragePercent {
		recs = append(recs, fmt.Sprintf("Driver overhead: average interrupt/DPC time %.1f%% suggests a misbehaving driver or device.", v))
	}

	if len(recs) == 0 {
		recs = append(recs, "Transient spikes detected but run-wide averages and peaks stayed near thresholds; re-run with a longer duration to confirm.")
	}

	return recs
}
