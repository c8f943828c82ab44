package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"stream-lab/domain/event"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HealthMonitoringWorker samples RSS, CPU and goroutines of the bot process itself.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	telemetryChan  chan event.Telemetry
	metricInterval time.Duration
}

func NewHealthMonitoringWorker(
	log *slog.Logger,
	telemetryChan chan event.Telemetry,
	metricInterval time.Duration,
) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		telemetryChan:  telemetryChan,
		metricInterval: metricInterval,
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	pid := int32(os.Getpid())
	p, err := process.NewProcess(pid)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping process sampling")
			return nil
		case <-ticker.C:
			stats, err := selfStats(p, pid)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			select {
			case <-ctx.Done():
				return nil
			case w.telemetryChan <- event.Telemetry{Type: event.ProcessStatsType, CreatedAt: time.Now().UTC(), Payload: stats}:
			default:
				w.log.Debug("Observability telemetry event lost")
			}
		}
	}
}

func selfStats(p *process.Process, pid int32) (event.ProcessStats, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return event.ProcessStats{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return event.ProcessStats{}, err
	}
	return event.ProcessStats{
		PID:        pid,
		Cpu:        cpuPercent,
		Ram:        memInfo.RSS,
		Goroutines: runtime.NumGoroutine(),
	}, nil
}
