package workers

import (
	"context"
	"log/slog"
	"reflect"
	"stream-lab/bus"
	"stream-lab/domain/event"
	"time"
)

type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelCapacityWorker periodically reports the fill level of internal channels
// and bus subscriptions. Reading len and cap is non-blocking, so this won't interfere
// with other goroutines. Losing a sample is fine, the next tick sends another one.
type ChannelCapacityWorker struct {
	log            *slog.Logger
	channels       []NamedChannel
	bus            *bus.Bus
	telemetryChan  chan event.Telemetry
	metricInterval time.Duration
}

func NewChannelCapacityWorker(log *slog.Logger,
	channels []NamedChannel, b *bus.Bus, telemetryChan chan event.Telemetry,
	metricInterval time.Duration) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{
		log: log, channels: channels, bus: b,
		telemetryChan:  telemetryChan,
		metricInterval: metricInterval,
	}
}

func (w ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping capacity sampling")
			return nil
		case <-ticker.C:
			for _, sample := range w.Sample() {
				select {
				case <-ctx.Done():
					return nil
				case w.telemetryChan <- toCapacityEvent(sample):
				default:
					w.log.Debug("Observability telemetry event lost")
				}
			}
		}
	}
}

// Sample reads every watched channel and subscription once.
func (w ChannelCapacityWorker) Sample() []event.ChannelCapacity {
	var samples []event.ChannelCapacity
	for _, nc := range w.channels {
		v := reflect.ValueOf(nc.Channel)
		if v.Kind() != reflect.Chan {
			w.log.Error("Provided object is not a channel", "name", nc.Name)
			continue
		}
		samples = append(samples, event.ChannelCapacity{ChannelName: nc.Name, Capacity: v.Cap(), Length: v.Len()})
	}
	if w.bus != nil {
		for _, s := range w.bus.Stats() {
			samples = append(samples, event.ChannelCapacity{
				ChannelName: "bus:" + s.Name,
				Capacity:    s.Cap,
				Length:      s.Len,
				Dropped:     s.Dropped,
			})
		}
	}
	return samples
}

func toCapacityEvent(c event.ChannelCapacity) event.Telemetry {
	return event.Telemetry{
		Type:      event.ChannelCapacityType,
		CreatedAt: time.Now().UTC(),
		Payload:   c,
	}
}
