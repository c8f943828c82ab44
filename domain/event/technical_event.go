package event

import (
	"sync"
	"time"
)

// TelemetryType tags technical events. They never travel on the bus,
// the telemetry worker drains them from their own channel.
type TelemetryType string

const (
	RestartedAfterPanicType TelemetryType = "WORKER_RESTARTED_AFTER_PANIC"
	ChannelCapacityType     TelemetryType = "CHANNEL_CAPACITY"
	ProcessStatsType        TelemetryType = "PROCESS_STATS"
	DispatchLatencyType     TelemetryType = "DISPATCH_LATENCY"
	CensorshipHitType       TelemetryType = "CENSORSHIP_HIT"
)

type Telemetry struct {
	Type      TelemetryType
	CreatedAt time.Time
	Payload   any
}

type WorkerRestartedAfterPanic struct {
	WorkerName string
}

type ChannelCapacity struct {
	ChannelName string
	Capacity    int
	Length      int
	Dropped     uint64
}

type ProcessStats struct {
	PID        int32
	Cpu        float64
	Ram        uint64
	Goroutines int
}

type DispatchLatency struct {
	ViewerID string
	Command  string
	Seq      uint64
	At       time.Time
}

type CensorshipHit struct {
	ViewerID string
	Words    []string
}

// Counter is shared between handlers to expose totals per telemetry type.
type Counter struct {
	mu     sync.Mutex
	counts map[TelemetryType]uint64
}

func NewCounter() *Counter {
	return &Counter{counts: make(map[TelemetryType]uint64)}
}

func (c *Counter) Increment(t TelemetryType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[t]++
}

func (c *Counter) Get(t TelemetryType) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[t]
}
