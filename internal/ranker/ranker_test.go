package ranker_test

import (
	"testing"

	"codeberg.org/mutker/perfwatch/internal/metricsource"
	"codeberg.org/mutker/perfwatch/internal/ranker"
	"codeberg.org/mutker/perfwatch/internal/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proc(name string, cpu float64, memMB float64) metricsource.ProcessInfo {
	return metricsource.ProcessInfo{
		Name:        name,
		User:        "svc",
		CPUPercent:  cpu,
		MemoryBytes: uint64(memMB * 1024 * 1024),
	}
}

func TestRankOrdersDescending(t *testing.T) {
	procs := []metricsource.ProcessInfo{
		proc("chrome", 40, 900),
		proc("postgres", 75, 300),
		proc("compiler", 60, 2048),
	}

	r := ranker.Rank(procs, nil, 3)

	require.Len(t, r.TopByCPU, 3)
	assert.Equal(t, "postgres", r.TopByCPU[0].Name)
	assert.Equal(t, "compiler", r.TopByCPU[1].Name)
	assert.Equal(t, "chrome", r.TopByCPU[2].Name)

	require.Len(t, r.TopByMemory, 3)
	assert.Equal(t, "compiler", r.TopByMemory[0].Name)
	assert.Equal(t, "chrome", r.TopByMemory[1].Name)
	assert.Equal(t, "postgres", r.TopByMemory[2].Name)
}

func TestRankTruncatesToTopK(t *testing.T) {
	procs := []metricsource.ProcessInfo{
		proc("a", 10, 10),
		proc("b", 20, 20),
		proc("c", 30, 30),
		proc("d", 40, 40),
	}

	for _, topK := range []int{1, 2, 3} {
		r := ranker.Rank(procs, nil, topK)
		assert.Len(t, r.TopByCPU, topK)
		assert.Len(t, r.TopByMemory, topK)
	}
}

func TestRankBreaksTiesByName(t *testing.T) {
	procs := []metricsource.ProcessInfo{
		proc("zsh", 50, 10),
		proc("bash", 50, 10),
		proc("fish", 50, 10),
	}

	r := ranker.Rank(procs, nil, 3)

	require.Len(t, r.TopByCPU, 3)
	assert.Equal(t, "bash", r.TopByCPU[0].Name)
	assert.Equal(t, "fish", r.TopByCPU[1].Name)
	assert.Equal(t, "zsh", r.TopByCPU[2].Name)
}

func TestRankExcludesIdleProcess(t *testing.T) {
	procs := []metricsource.ProcessInfo{
		proc("System Idle Process", 99, 1),
		proc("Idle", 98, 1),
		proc("worker", 10, 100),
	}

	r := ranker.Rank(procs, nil, 5)

	require.Len(t, r.TopByCPU, 1)
	assert.Equal(t, "worker", r.TopByCPU[0].Name)
}

func TestRankIoOnlyCoversMeasuredProcesses(t *testing.T) {
	procs := []metricsource.ProcessInfo{
		proc("reader", 5, 50),
		proc("writer", 5, 50),
		proc("sleeper", 5, 50),
	}
	ioRates := map[string]float64{
		"writer": 12.5,
		"reader": 3.25,
	}

	r := ranker.Rank(procs, ioRates, 5)

	// sleeper has no measured rate and must not show up as a zero-I/O tie.
	require.Len(t, r.TopByIO, 2)
	assert.Equal(t, "writer", r.TopByIO[0].Name)
	assert.Equal(t, 12.5, r.TopByIO[0].IoMBps)
	assert.Equal(t, "reader", r.TopByIO[1].Name)

	names := func(ranks []sample.ProcessRank) []string {
		out := make([]string, len(ranks))
		for i, p := range ranks {
			out[i] = p.Name
		}
		return out
	}
	assert.NotContains(t, names(r.TopByIO), "sleeper")
}

func TestRankKeepsIoOffCPUAndMemoryEntries(t *testing.T) {
	procs := []metricsource.ProcessInfo{
		proc("worker", 40, 128),
		proc("indexer", 20, 256),
	}
	ioRates := map[string]float64{"worker": 7.5}

	r := ranker.Rank(procs, ioRates, 2)

	for _, p := range r.TopByCPU {
		assert.Zero(t, p.IoMBps, "%s: CPU entries carry no I/O rate", p.Name)
	}
	for _, p := range r.TopByMemory {
		assert.Zero(t, p.IoMBps, "%s: memory entries carry no I/O rate", p.Name)
	}
	require.Len(t, r.TopByIO, 1)
	assert.Equal(t, 7.5, r.TopByIO[0].IoMBps)
}

func TestRankIsPure(t *testing.T) {
	procs := []metricsource.ProcessInfo{
		proc("a", 30, 100),
		proc("b", 20, 200),
	}
	ioRates := map[string]float64{"a": 1, "b": 2}

	first := ranker.Rank(procs, ioRates, 2)
	second := ranker.Rank(procs, ioRates, 2)

	assert.Equal(t, first, second)
}
