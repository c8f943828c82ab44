package features

import (
	"context"
	"log/slog"
	"sort"
	"stream-lab/contract"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"sync"
	"time"
)

// Alerts plays sound alerts on raw events, each alert with its own cooldown.
type Alerts struct {
	mu     sync.Mutex
	alerts map[string]domain.SoundAlert
	keys   []string
	last   map[string]time.Time
	pub    contract.Publisher
	log    *slog.Logger
}

func NewAlerts(alerts map[string]domain.SoundAlert, pub contract.Publisher, log *slog.Logger) *Alerts {
	a := &Alerts{pub: pub, log: log}
	a.Set(alerts)
	return a
}

// Set replaces the alert catalog and forgets cooldowns.
func (a *Alerts) Set(alerts map[string]domain.SoundAlert) {
	keys := make([]string, 0, len(alerts))
	for k := range alerts {
		keys = append(keys, k)
	}
	// Most demanding alert first, so a big gift wins over a plain one.
	sort.Slice(keys, func(i, j int) bool {
		if alerts[keys[i]].MinCount == alerts[keys[j]].MinCount {
			return keys[i] < keys[j]
		}
		return alerts[keys[i]].MinCount > alerts[keys[j]].MinCount
	})
	a.mu.Lock()
	a.alerts, a.keys, a.last = alerts, keys, make(map[string]time.Time)
	a.mu.Unlock()
}

func (a *Alerts) Consume(_ context.Context, evt event.Event) error {
	trigger, count := triggerOf(evt)
	if trigger == "" {
		return nil
	}
	fired, ok := a.pick(trigger, count, evt.At)
	if !ok {
		return nil
	}
	viewer := evt.DisplayName
	if viewer == "" {
		viewer = string(evt.ViewerID)
	}
	fired.Viewer = viewer
	fired.Count = count
	a.pub.Publish(event.NewDelta(event.TopicAlertTriggered, fired))
	return nil
}

func (a *Alerts) pick(trigger domain.AlertTrigger, count int, at time.Time) (event.AlertFired, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, k := range a.keys {
		alert := a.alerts[k]
		if alert.Trigger != trigger || count < alert.MinCount {
			continue
		}
		if last, seen := a.last[k]; seen && at.Sub(last) < alert.Cooldown {
			a.log.Debug("Alert in cooldown", "alert", k)
			return event.AlertFired{}, false
		}
		a.last[k] = at
		return event.AlertFired{Key: k, Alert: alert}, true
	}
	return event.AlertFired{}, false
}

func triggerOf(evt event.Event) (domain.AlertTrigger, int) {
	switch p := evt.Payload.(type) {
	case event.Follow:
		return domain.TriggerFollow, 1
	case event.Gift:
		return domain.TriggerGift, max(p.Count, 1)
	case event.Like:
		return domain.TriggerLike, max(p.Count, 1)
	case event.Join:
		return domain.TriggerJoin, 1
	}
	return "", 0
}
