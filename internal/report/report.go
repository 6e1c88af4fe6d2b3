package report

import (
	"fmt"
	"io"
	"time"

	"codeberg.org/mutker/perfwatch/internal/analyzer"
)

// Render writes a human-readable rendition of the diagnosis.
func Render(w io.Writer, d analyzer.Diagnosis) {
	fmt.Fprintln(w, "=== Performance Diagnosis ===")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Metric summary (average / peak over available samples):")
	for _, m := range d.Summary {
		if m.Observations == 0 {
			fmt.Fprintf(w, "  %-22s unavailable on this host\n", m.Name)
			continue
		}
		fmt.Fprintf(w, "  %-22s avg %10.2f   max %10.2f   (%d samples)\n", m.Name, m.Average, m.Max, m.Observations)
	}
	fmt.Fprintln(w)

	if len(d.Verdicts) > 0 {
		fmt.Fprintf(w, "Bottlenecked intervals: %d\n", len(d.Verdicts))
		for _, v := range d.Verdicts {
			fmt.Fprintf(w, "  %s:", v.Timestamp.Format(time.RFC3339))
			for _, b := range v.Breaches {
				fmt.Fprintf(w, " %s=%.2f (>%.0f)", b.Metric, b.Value, b.Threshold)
			}
			if v.TopCPUProcess != "" {
				fmt.Fprintf(w, " [top cpu: %s]", v.TopCPUProcess)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	printOffenders(w, "Repeat offenders by CPU", d.TopByCPU, func(a analyzer.ProcessAggregate) int { return a.CPUCount })
	printOffenders(w, "Repeat offenders by memory", d.TopByMemory, func(a analyzer.ProcessAggregate) int { return a.MemoryCount })
	printOffenders(w, "Repeat offenders by I/O", d.TopByIO, func(a analyzer.ProcessAggregate) int { return a.IOCount })

	fmt.Fprintln(w, "Recommendations:")
	for _, r := range d.Recommendations {
		fmt.Fprintf(w, "  - %s\n", r)
	}
}

func printOffenders(w io.Writer, title string, offenders []analyzer.ProcessAggregate, count func(analyzer.ProcessAggregate) int) {
	if len(offenders) == 0 {
		return
	}

	fmt.Fprintf(w, "%s:\n", title)
	for _, o := range offenders {
		fmt.Fprintf(w, "  %-30s %d appearances\n", o.Name, count(o))
	}
	fmt.Fprintln(w)
}
