package ranker

import (
	"sort"

	"codeberg.org/mutker/perfwatch/internal/metricsource"
	"codeberg.org/mutker/perfwatch/internal/sample"
)

const bytesPerMiB = 1024 * 1024

// Ranking holds the top-K process lists for one sampling instant.
type Ranking struct {
	TopByCPU    []sample.ProcessRank
	TopByMemory []sample.ProcessRank
	TopByIO     []sample.ProcessRank
}

// Pseudo-processes that account idle CPU time as work.
var idleProcessNames = map[string]struct{}{
	"Idle":                {},
	"System Idle Process": {},
}

// Rank computes the top-K processes by CPU, memory and I/O throughput.
// Pure function of its inputs. Ordering is descending by the respective
// metric with ties broken by name ascending, so equal inputs always
// produce equal output. I/O rates appear only on the I/O list; the CPU
// and memory entries carry just their own metrics. Processes absent
// from ioRates do not appear in the I/O list; zero-filling them would
// manufacture I/O leaders.
func Rank(procs []metricsource.ProcessInfo, ioRates map[string]float64, topK int) Ranking {
	entries := make([]sample.ProcessRank, 0, len(procs))
	userByName := make(map[string]string, len(procs))
	for _, p := range procs {
		if _, idle := idleProcessNames[p.Name]; idle {
			continue
		}
		if _, seen := userByName[p.Name]; !seen {
			userByName[p.Name] = p.User
		}
		entries = append(entries, sample.ProcessRank{
			Name:       p.Name,
			User:       p.User,
			CPUPercent: p.CPUPercent,
			MemoryMB:   float64(p.MemoryBytes) / bytesPerMiB,
		})
	}

	ioEntries := make([]sample.ProcessRank, 0, len(ioRates))
	for name, rate := range ioRates {
		if _, idle := idleProcessNames[name]; idle {
			continue
		}
		ioEntries = append(ioEntries, sample.ProcessRank{
			Name:   name,
			User:   userByName[name],
			IoMBps: rate,
		})
	}

	return Ranking{
		TopByCPU:    top(entries, topK, func(r sample.ProcessRank) float64 { return r.CPUPercent }),
		TopByMemory: top(entries, topK, func(r sample.ProcessRank) float64 { return r.MemoryMB }),
		TopByIO:     top(ioEntries, topK, func(r sample.ProcessRank) float64 { return r.IoMBps }),
	}
}

func top(entries []sample.ProcessRank, topK int, metric func(sample.ProcessRank) float64) []sample.ProcessRank {
	if topK < 1 {
		return nil
	}

	ranked := make([]sample.ProcessRank, len(entries))
	copy(ranked, entries)

	sort.Slice(ranked, func(i, j int) bool {
		mi, mj := metric(ranked[i]), metric(ranked[j])
		if mi != mj {
			return mi > mj
		}
		return ranked[i].Name < ranked[j].Name
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	return ranked
}
