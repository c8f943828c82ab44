package event

import (
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func sample(name string, length, capacity int) Telemetry {
	return Telemetry{Type: ChannelCapacityType, CreatedAt: time.Now(),
		Payload: ChannelCapacity{ChannelName: name, Length: length, Capacity: capacity}}
}

func TestQueuePressureHandler(t *testing.T) {
	req := require.New(t)
	h := NewQueuePressureHandler(logs.GetLoggerFromLevel(slog.LevelError), 2)

	// Given a queue filling up then draining
	h.Handle(sample("lane_0", 1, 10))
	req.False(h.Pressing("lane_0"))

	h.Handle(sample("lane_0", 9, 10))
	req.True(h.Pressing("lane_0"))

	h.Handle(sample("lane_0", 3, 10))

	// Then only the last sample is kept
	req.False(h.Pressing("lane_0"))
	req.Equal(map[string]string{"lane_0": "3/10"}, h.Usage())

	// And unbuffered channels never press
	h.Handle(sample("sync", 0, 0))
	req.False(h.Pressing("sync"))

	// And foreign telemetry is ignored
	h.Handle(Telemetry{Type: ProcessStatsType, Payload: ProcessStats{}})
	req.Len(h.Usage(), 2)
}

func TestWorkerRestartsHandler(t *testing.T) {
	req := require.New(t)
	counter := NewCounter()
	h := NewWorkerRestartsHandler(logs.GetLoggerFromLevel(slog.LevelError), counter)

	for _, name := range []string{"Dispatcher", "Dispatcher", "Heartbeat"} {
		h.Handle(Telemetry{Type: RestartedAfterPanicType, Payload: WorkerRestartedAfterPanic{WorkerName: name}})
	}
	// Wrong payload is logged, not counted
	h.Handle(Telemetry{Type: RestartedAfterPanicType, Payload: "oops"})

	req.Equal(uint64(3), counter.Get(RestartedAfterPanicType))
	req.Equal(map[string]uint64{"Dispatcher": 2, "Heartbeat": 1}, h.PerWorker())
}

func TestProcessTrackerHandler(t *testing.T) {
	req := require.New(t)
	h := NewProcessTrackerHandler(logs.GetLoggerFromLevel(slog.LevelError))
	req.Empty(h.Summary())

	h.Handle(Telemetry{Type: ProcessStatsType, Payload: ProcessStats{PID: 1, Cpu: 12.34, Ram: 2_000_000, Goroutines: 42}})

	req.Equal("cpu 12.3% | ram 2.0 MB | 42 goroutines", h.Summary())
}
