package workers

import (
	"context"
	"ephemeral/contract"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HeartbeatWorker periodically logs a process health line: CPU, RSS,
// goroutine count, live sessions and bus activity. It is the only component
// reading system-level stats, so losing it never degrades the chat itself.
type HeartbeatWorker struct {
	log      *slog.Logger
	interval time.Duration
	registry contract.Registry
	busStats func() contract.BusStats
}

func NewHeartbeatWorker(log *slog.Logger, interval time.Duration,
	registry contract.Registry, busStats func() contract.BusStats) *HeartbeatWorker {
	return &HeartbeatWorker{
		log:      log,
		interval: interval,
		registry: registry,
		busStats: busStats,
	}
}

// Run executes the main loop of the worker, logging health metrics (CPU, RAM, Status) at each tick.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rss, cpu, status, err := getSelfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			stats := w.busStats()
			w.log.Info("heartbeat",
				"pid", os.Getpid(),
				"pid_status", status,
				"cpu_percent", cpu,
				"ram_bytes", rss,
				"goroutines", runtime.NumGoroutine(),
				"sessions", w.registry.Len(),
				"named", len(w.registry.SnapshotNamed()),
				"bus_subscribers", stats.Subscribers,
				"bus_published", stats.Published,
				"bus_dropped", stats.Dropped,
			)
		}
	}
}

// getSelfStats retrieves technical metrics (Memory, CPU, and OS Status) for the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
