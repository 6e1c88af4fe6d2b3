package metricsource

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/perfwatch/internal/errors"
	"codeberg.org/mutker/perfwatch/internal/sample"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	defaultReadTimeout = 2 * time.Second

	bytesPerMiB = 1024 * 1024
	bytesPerGiB = 1024 * 1024 * 1024
)

type procIOCounters struct {
	read  uint64
	write uint64
}

// hostSource reads OS counters via gopsutil, procfs and NVML. Rate
// metrics are counter deltas against the previous read, so they stay
// unavailable until a baseline exists. Not safe for concurrent use;
// the sampler is the only caller and issues one read at a time.
type hostSource struct {
	gpu         *gpuReader
	readTimeout time.Duration

	prevCPU    *cpu.TimesStat
	prevIntr   uint64
	hasIntr    bool
	prevDisk   map[string]disk.IOCountersStat
	prevNet    []net.IOCountersStat
	prevRead   time.Time
	prevProcIO map[int32]procIOCounters
	prevIORead time.Time
}

// New constructs a host-backed Source. The GPU capability is probed
// once here; a host without an NVIDIA driver permanently reports the
// GPU metric as unavailable.
func New() Source {
	return &hostSource{
		gpu:         newGPUReader(),
		readTimeout: defaultReadTimeout,
		prevDisk:    make(map[string]disk.IOCountersStat),
		prevProcIO:  make(map[int32]procIOCounters),
	}
}

func (s *hostSource) Close() error {
	return s.gpu.shutdown()
}

// ReadSystemMetrics fans the subsystem reads out in parallel and joins
// them before assembling the result. Each read has its own timeout;
// a slow or failing subsystem costs its metrics, not the snapshot.
func (s *hostSource) ReadSystemMetrics(ctx context.Context) sample.SystemMetrics {
	var (
		wg sync.WaitGroup

		cpuTimes []cpu.TimesStat
		cpuErr   error

		intrTotal uint64
		intrErr   error

		vm     *mem.VirtualMemoryStat
		vmErr  error
		swap   *mem.SwapMemoryStat
		swpErr error

		diskCounters map[string]disk.IOCountersStat
		diskErr      error

		netCounters []net.IOCountersStat
		netErr      error

		uptime    uint64
		uptimeErr error

		temps   []host.TemperatureStat
		tempErr error

		gpuReading sample.Reading
	)

	run := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			readCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
			defer cancel()
			fn(readCtx)
		}()
	}

	run(func(ctx context.Context) { cpuTimes, cpuErr = cpu.TimesWithContext(ctx, false) })
	run(func(_ context.Context) { intrTotal, intrErr = readInterruptTotal() })
	run(func(ctx context.Context) { vm, vmErr = mem.VirtualMemoryWithContext(ctx) })
	run(func(ctx context.Context) { swap, swpErr = mem.SwapMemoryWithContext(ctx) })
	run(func(ctx context.Context) { diskCounters, diskErr = disk.IOCountersWithContext(ctx) })
	run(func(ctx context.Context) { netCounters, netErr = net.IOCountersWithContext(ctx, false) })
	run(func(ctx context.Context) { uptime, uptimeErr = host.UptimeWithContext(ctx) })
	run(func(ctx context.Context) { temps, tempErr = host.SensorsTemperaturesWithContext(ctx) })
	run(func(_ context.Context) { gpuReading = s.gpu.utilization() })

	wg.Wait()

	now := time.Now()
	elapsed := 0.0
	if !s.prevRead.IsZero() {
		elapsed = now.Sub(s.prevRead).Seconds()
	}

	var metrics sample.SystemMetrics

	metrics.CPUPercent, metrics.DPCTimePercent = s.cpuReadings(cpuTimes, cpuErr)
	metrics.InterruptsPerSec = s.interruptReading(intrTotal, intrErr, elapsed)

	if vmErr == nil && vm != nil {
		metrics.MemoryPercent = sample.Avail(vm.UsedPercent)
		metrics.MemoryUsedGB = sample.Avail(float64(vm.Used) / bytesPerGiB)
		metrics.MemoryTotalGB = sample.Avail(float64(vm.Total) / bytesPerGiB)
	}
	if swpErr == nil && swap != nil {
		metrics.PageFileUsagePercent = sample.Avail(swap.UsedPercent)
	}

	s.diskReadings(&metrics, diskCounters, diskErr, elapsed)
	s.netReadings(&metrics, netCounters, netErr, elapsed)

	metrics.GPUUsagePercent = gpuReading

	if tempErr == nil {
		metrics.TemperatureCelsius = hottestSensor(temps)
	}
	if uptimeErr == nil {
		metrics.UptimeSeconds = sample.Avail(float64(uptime))
	}

	s.prevRead = now

	return metrics
}

func (s *hostSource) cpuReadings(times []cpu.TimesStat, err error) (cpuPct, dpcPct sample.Reading) {
	cpuPct = sample.Unavailable()
	dpcPct = sample.Unavailable()

	if err != nil || len(times) == 0 {
		return cpuPct, dpcPct
	}

	cur := times[0]
	if s.prevCPU != nil {
		dt := cur.Total() - s.prevCPU.Total()
		if dt > 0 {
			di := (cur.Idle + cur.Iowait) - (s.prevCPU.Idle + s.prevCPU.Iowait)
			cpuPct = sample.Avail(clampPercent(100 * (1 - di/dt)))

			dirq := (cur.Irq + cur.Softirq) - (s.prevCPU.Irq + s.prevCPU.Softirq)
			dpcPct = sample.Avail(clampPercent(100 * dirq / dt))
		}
	}
	s.prevCPU = &cur

	return cpuPct, dpcPct
}

func (s *hostSource) interruptReading(total uint64, err error, elapsed float64) sample.Reading {
	reading := sample.Unavailable()

	if err != nil {
		return reading
	}

	if s.hasIntr && elapsed > 0 && total >= s.prevIntr {
		reading = sample.Avail(float64(total-s.prevIntr) / elapsed)
	}
	s.prevIntr = total
	s.hasIntr = true

	return reading
}

func (s *hostSource) diskReadings(m *sample.SystemMetrics, counters map[string]disk.IOCountersStat, err error, elapsed float64) {
	if err != nil || len(counters) == 0 {
		return
	}

	var (
		readBytes, writeBytes uint64
		readTime, writeTime   uint64
		readCount, writeCount uint64
		weightedIO            uint64
		baseline              bool
	)

	next := make(map[string]disk.IOCountersStat, len(counters))
	for name, cur := range counters {
		// Loopback and ramdisk devices double-count real I/O.
		if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") {
			continue
		}
		next[name] = cur

		prev, ok := s.prevDisk[name]
		if !ok {
			continue
		}
		baseline = true
		readBytes += counterDelta(cur.ReadBytes, prev.ReadBytes)
		writeBytes += counterDelta(cur.WriteBytes, prev.WriteBytes)
		readTime += counterDelta(cur.ReadTime, prev.ReadTime)
		writeTime += counterDelta(cur.WriteTime, prev.WriteTime)
		readCount += counterDelta(cur.ReadCount, prev.ReadCount)
		writeCount += counterDelta(cur.WriteCount, prev.WriteCount)
		weightedIO += counterDelta(cur.WeightedIO, prev.WeightedIO)
	}
	s.prevDisk = next

	if !baseline || elapsed <= 0 {
		return
	}

	m.DiskReadMBps = sample.Avail(float64(readBytes) / bytesPerMiB / elapsed)
	m.DiskWriteMBps = sample.Avail(float64(writeBytes) / bytesPerMiB / elapsed)

	// WeightedIO accumulates milliseconds of queued request time, so
	// dividing by the elapsed wall-clock gives the mean queue depth.
	m.DiskQueueLength = sample.Avail(float64(weightedIO) / (elapsed * 1000))

	if readCount > 0 {
		m.DiskReadLatencyMs = sample.Avail(float64(readTime) / float64(readCount))
	}
	if writeCount > 0 {
		m.DiskWriteLatencyMs = sample.Avail(float64(writeTime) / float64(writeCount))
	}
}

func (s *hostSource) netReadings(m *sample.SystemMetrics, counters []net.IOCountersStat, err error, elapsed float64) {
	if err != nil || len(counters) == 0 {
		return
	}

	if len(s.prevNet) > 0 && elapsed > 0 {
		sent := counterDelta(counters[0].BytesSent, s.prevNet[0].BytesSent)
		recv := counterDelta(counters[0].BytesRecv, s.prevNet[0].BytesRecv)
		m.NetworkSentMBps = sample.Avail(float64(sent) / bytesPerMiB / elapsed)
		m.NetworkReceivedMBps = sample.Avail(float64(recv) / bytesPerMiB / elapsed)
	}
	s.prevNet = counters
}

func (s *hostSource) ListProcesses(ctx context.Context) ([]ProcessInfo, error) {
	errFactory := errors.New()

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, errFactory.Wrap(ErrProcessSnapshot, err)
	}

	infos := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}

		// Username lookups fail without privilege; the owner is optional.
		user, _ := p.UsernameWithContext(ctx)
		cpuPct, _ := p.CPUPercentWithContext(ctx)

		var rss uint64
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			rss = mi.RSS
		}

		infos = append(infos, ProcessInfo{
			Name:        name,
			User:        user,
			CPUPercent:  cpuPct,
			MemoryBytes: rss,
		})
	}

	return infos, nil
}

// ReadProcessIO aggregates per-process read+write throughput by name.
// Only processes with a counter baseline from the previous call appear
// in the result; zero-filling newcomers would fabricate I/O leaders.
func (s *hostSource) ReadProcessIO(ctx context.Context) map[string]float64 {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil
	}

	now := time.Now()
	elapsed := 0.0
	if !s.prevIORead.IsZero() {
		elapsed = now.Sub(s.prevIORead).Seconds()
	}

	next := make(map[int32]procIOCounters, len(procs))
	rates := make(map[string]float64)
	for _, p := range procs {
		counters, err := p.IOCountersWithContext(ctx)
		if err != nil || counters == nil {
			continue
		}

		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}

		next[p.Pid] = procIOCounters{read: counters.ReadBytes, write: counters.WriteBytes}

		prev, ok := s.prevProcIO[p.Pid]
		if !ok || elapsed <= 0 {
			continue
		}

		delta := counterDelta(counters.ReadBytes, prev.read) + counterDelta(counters.WriteBytes, prev.write)
		rates[name] += float64(delta) / bytesPerMiB / elapsed
	}

	s.prevProcIO = next
	s.prevIORead = now

	return rates
}

// readInterruptTotal parses the aggregate interrupt counter from
// /proc/stat; gopsutil does not expose it.
func readInterruptTotal() (uint64, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[0] == "intr" {
			return strconv.ParseUint(fields[1], 10, 64)
		}
	}

	return 0, errors.New().New(errors.ErrMetricUnavailable)
}

// hottestSensor picks the maximum reading across thermal sensors.
func hottestSensor(temps []host.TemperatureStat) sample.Reading {
	reading := sample.Unavailable()
	for _, t := range temps {
		if t.Temperature <= 0 {
			continue
		}
		if !reading.Available || t.Temperature > reading.Value {
			reading = sample.Avail(t.Temperature)
		}
	}

	return reading
}

func counterDelta(cur, prev uint64) uint64 {
	if cur < prev {
		return 0
	}

	return cur - prev
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}

	return v
}
