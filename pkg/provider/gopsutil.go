package provider

import (
	"context"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/sensors"
)

const (
	bytesPerGB = 1024 * 1024 * 1024
	bytesPerKB = 1024
)

// SystemProvider reads the local host through gopsutil, with an optional
// nvidia-smi probe for GPU readings.
type SystemProvider struct {
	mu      sync.Mutex
	prevNet *netCounters
	hasGPU  bool
}

type netCounters struct {
	rxBytes uint64
	txBytes uint64
	at      time.Time
}

// NewSystemProvider probes for a GPU controller once; absence is remembered
// so every tick does not shell out pointlessly.
func NewSystemProvider() *SystemProvider {
	_, err := exec.LookPath("nvidia-smi")

	return &SystemProvider{hasGPU: err == nil}
}

func (p *SystemProvider) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		CPU:     p.readCPU(ctx),
		Memory:  p.readMemory(ctx),
		Network: p.readNetwork(ctx),
		Host:    p.readHost(ctx),
	}

	if p.hasGPU {
		snap.GPU = p.readGPU(ctx)
	}

	if snap.CPU == nil && snap.Memory == nil && snap.Host == nil {
		return nil, ErrSnapshotUnavailable
	}

	return snap, nil
}

func (p *SystemProvider) readCPU(ctx context.Context) *CPUReading {
	usage, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(usage) == 0 {
		log.Printf("Failed to read cpu usage: %v", err)
		return nil
	}

	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		cores = 0
	}

	return &CPUReading{
		UsagePercent: usage[0],
		Temperature:  p.readCPUTemperature(ctx),
		Cores:        cores,
	}
}

// readCPUTemperature picks the hottest sensor that looks like a package or
// core probe. Zero means no usable sensor, not a reading of 0C.
func (*SystemProvider) readCPUTemperature(ctx context.Context) float64 {
	stats, err := sensors.TemperaturesWithContext(ctx)
	if err != nil {
		return 0
	}

	var hottest float64

	for _, s := range stats {
		key := strings.ToLower(s.SensorKey)
		if !strings.Contains(key, "coretemp") && !strings.Contains(key, "k10temp") &&
			!strings.Contains(key, "cpu") && !strings.Contains(key, "package") {
			continue
		}

		if s.Temperature > hottest {
			hottest = s.Temperature
		}
	}

	return hottest
}

func (*SystemProvider) readMemory(ctx context.Context) *MemoryReading {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		log.Printf("Failed to read virtual memory: %v", err)
		return nil
	}

	return &MemoryReading{
		UsedGB:  float64(v.Used) / bytesPerGB,
		TotalGB: float64(v.Total) / bytesPerGB,
	}
}

func (p *SystemProvider) readNetwork(ctx context.Context) *NetworkReading {
	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil || len(counters) == 0 {
		log.Printf("Failed to read net io counters: %v", err)
		return nil
	}

	now := time.Now()
	current := &netCounters{
		rxBytes: counters[0].BytesRecv,
		txBytes: counters[0].BytesSent,
		at:      now,
	}

	p.mu.Lock()
	prev := p.prevNet
	p.prevNet = current
	p.mu.Unlock()

	// First snapshot has no baseline to compute a rate from.
	if prev == nil || !now.After(prev.at) {
		return &NetworkReading{}
	}

	elapsed := now.Sub(prev.at).Seconds()

	return &NetworkReading{
		RxKBps: float64(current.rxBytes-prev.rxBytes) / bytesPerKB / elapsed,
		TxKBps: float64(current.txBytes-prev.txBytes) / bytesPerKB / elapsed,
	}
}

func (*SystemProvider) readHost(ctx context.Context) *HostReading {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		log.Printf("Failed to read host info: %v", err)
		return nil
	}

	osName := info.Platform
	if info.PlatformVersion != "" {
		osName += " " + info.PlatformVersion
	}

	return &HostReading{
		Hostname:      info.Hostname,
		OS:            osName,
		UptimeSeconds: info.Uptime,
	}
}

// readGPU shells out to nvidia-smi. Any failure reads as "no GPU this tick";
// a host without a controller never reaches here.
func (*SystemProvider) readGPU(ctx context.Context) *GPUReading {
	out, err := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=utilization.gpu,temperature.gpu,memory.used",
		"--format=csv,noheader,nounits").Output()
	if err != nil {
		return nil
	}

	line := strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)[0]

	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return nil
	}

	usage, err1 := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	temp, err2 := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	memMB, err3 := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)

	if err1 != nil || err2 != nil || err3 != nil {
		return nil
	}

	return &GPUReading{
		UsagePercent: usage,
		Temperature:  temp,
		MemoryGB:     memMB / 1024,
	}
}
