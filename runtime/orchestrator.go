// Package runtime wires the bus, the dispatch lanes, the feature sinks and the overlay hub
// under one supervisor. It orchestrates the system without containing business logic.
package runtime

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"stream-lab/backends"
	"stream-lab/bus"
	"stream-lab/contract"
	"stream-lab/directory"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/features"
	"stream-lab/guard"
	"stream-lab/hub"
	"stream-lab/ingestion"
	"stream-lab/ledger"
	"stream-lab/moderation"
	"stream-lab/projection"
	"stream-lab/repositories"
	"stream-lab/router"
	"stream-lab/runtime/workers"
	"stream-lab/sink"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

//go:embed censored/*
var censoredFolder embed.FS

// Storage groups the optional persistence of the orchestrator, a nil field disables its concern.
type Storage struct {
	Viewers  repositories.IViewerRepository
	Ledger   repositories.ILedgerRepository
	Messages repositories.IMessageRepository
	Buckets  repositories.IBucketRepository
	Search   repositories.IChatIndex
}

type Orchestrator struct {
	mu         sync.Mutex
	log        *slog.Logger
	cfg        Config
	storage    Storage
	supervisor contract.ISupervisor
	started    time.Time

	bus         *bus.Bus
	directory   *directory.Directory
	ledger      *ledger.Ledger
	moderator   *moderation.Moderator
	guard       *guard.Guard
	router      *router.Router
	hub         *hub.Hub
	timeline    *projection.Timeline
	analytics   *projection.Analytics
	economy     *features.Economy
	music       *features.Music
	tts         *features.TTS
	goals       *features.Goals
	alerts      *features.Alerts
	completions *features.Completions
	counter     *event.Counter
	censored    *event.CensoredHandler
	restarts    *event.WorkerRestartsHandler
	pressure    *event.QueuePressureHandler
	process     *event.ProcessTrackerHandler

	lanes           []chan event.Event
	telemetryEvents chan event.Telemetry
	backends        map[domain.QueueKind]contract.Backend
	replier         contract.Replier
	featureSinks    []contract.EventSink
	permanentSinks  []contract.EventSink
	ready           chan struct{}
}

// NewOrchestrator builds every component so read models are usable before Start.
// Only the censored word lists can make it fail.
func NewOrchestrator(log *slog.Logger, supervisor *workers.Supervisor, cfg Config, storage Storage) (*Orchestrator, error) {
	cfg = cfg.withDefaults()
	o := &Orchestrator{
		log:             log,
		cfg:             cfg,
		storage:         storage,
		started:         time.Now().UTC(),
		bus:             bus.New(log),
		directory:       directory.New(log, cfg.Admins, cfg.WatchGap),
		ledger:          ledger.New(cfg.LedgerRetain),
		counter:         event.NewCounter(),
		censored:        event.NewCensoredHandler(log),
		process:         event.NewProcessTrackerHandler(log),
		telemetryEvents: make(chan event.Telemetry, cfg.BufferSize),
		backends:        make(map[domain.QueueKind]contract.Backend),
		ready:           make(chan struct{}),
	}
	o.restarts = event.NewWorkerRestartsHandler(log, o.counter)
	o.pressure = event.NewQueuePressureHandler(log, cfg.LowCapacityThreshold)
	o.supervisor = supervisor.WithTelemetry(o.telemetryEvents).WithRestartDelay(cfg.RestartInterval)

	moderator, err := o.prepareModeration("censored", cfg.CharReplacement, cfg.Catalog.SpamKeywords)
	if err != nil {
		return nil, err
	}
	o.moderator = moderator
	o.guard = guard.New(cfg.Guard, moderator, log)
	o.router = router.New(o.bus, log).WithTelemetry(o.telemetryEvents)
	o.timeline = projection.NewTimeline(cfg.RecentEvents)
	o.hub = hub.New(cfg.Hub, o.timeline, log)

	var buckets projection.BucketStore
	if storage.Buckets != nil {
		buckets = storage.Buckets
	}
	o.analytics = projection.NewAnalytics(cfg.Analytics, buckets, o.bus, o.directory, o.bus, log, o.started)

	if err := o.prepareFeatures(); err != nil {
		return nil, err
	}
	return o, nil
}

// prepareModeration loads the banned-word dictionaries and builds the Aho-Corasick automaton.
// Spam keywords from the catalog join the embedded lists.
func (o *Orchestrator) prepareModeration(dir string, charReplacement rune, extra []string) (*moderation.Moderator, error) {
	lists, err := LoadWordLists(censoredFolder, dir)
	if err != nil {
		return nil, err
	}

	words := lo.Uniq(append(lists.Words, lo.Map(extra, func(w string, _ int) string {
		return strings.ToLower(strings.TrimSpace(w))
	})...))
	words = lo.Compact(words)
	o.log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(lists.PerLanguage), strings.Join(lists.Languages(), ",")))
	o.log.Info(fmt.Sprintf("%d unique censored words loaded", len(words)))

	return moderation.NewModerator(words, charReplacement, o.log)
}

func (o *Orchestrator) prepareFeatures() error {
	cfg, log := o.cfg, o.log

	economyCfg := cfg.Economy
	economyCfg.ShopCatalog = cfg.Catalog.Shop
	o.economy = features.NewEconomy(economyCfg, o.directory, o.ledger, o.bus, log)

	musicCfg := cfg.Music
	musicCfg.Blocked = append(musicCfg.Blocked, cfg.Catalog.MusicBlocked...)
	o.music = features.NewMusic(musicCfg, o.directory, o.bus, log)
	o.tts = features.NewTTS(cfg.TTS, o.guard, o.bus, log)
	o.completions = features.NewCompletions(cfg.BufferSize, log, o.music, o.tts)
	o.goals = features.NewGoals(cfg.Catalog.Goals, o.bus, log)
	o.alerts = features.NewAlerts(cfg.Catalog.Alerts, o.bus, log)

	modFeature := features.NewModeration(cfg.Moderation, o.directory, o.bus, log)
	games := features.NewGames(o.economy, nil)
	info := features.NewInfo(cfg.Catalog.Commands, o.router, o.analytics, o.started)

	var routes []features.Route
	routes = append(routes, info.Routes()...)
	routes = append(routes, o.economy.Routes()...)
	routes = append(routes, games.Routes()...)
	routes = append(routes, modFeature.Routes()...)
	routes = append(routes, o.music.Routes()...)
	routes = append(routes, o.tts.Routes()...)
	if err := features.RegisterAll(o.router, routes...); err != nil {
		return err
	}

	auto := features.NewAutoResponder(cfg.Catalog.AutoResponses, o.bus, log, nil)
	o.featureSinks = []contract.EventSink{o.economy, modFeature, o.goals, o.alerts, auto}
	return nil
}

// WithBackend sets the backend serving one queue kind. Kinds left unset get a simulated backend.
func (o *Orchestrator) WithBackend(kind domain.QueueKind, backend contract.Backend) *Orchestrator {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.backends[kind] = backend
	return o
}

// WithReplier sends command answers and bot replies back to the platform.
func (o *Orchestrator) WithReplier(replier contract.Replier) *Orchestrator {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.replier = replier
	return o
}

// RegisterSinks adds sinks fed by their own subscription, they never slow the core down.
// Must be called before Start.
func (o *Orchestrator) RegisterSinks(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// Ingest validates a raw event and publishes it, the bus assigns its sequence number.
func (o *Orchestrator) Ingest(ctx context.Context, raw domain.RawEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	evt, err := ingestion.ToEvent(raw)
	if err != nil {
		o.log.Debug("Raw event refused", "viewer_id", raw.ViewerID, "kind", raw.Kind, "error", err)
		return err
	}
	o.bus.Publish(evt)
	return nil
}

// ApplyCatalog swaps the parts of the catalog that can change at runtime.
func (o *Orchestrator) ApplyCatalog(c domain.Catalog) {
	o.economy.SetShop(c.Shop)
	o.alerts.Set(c.Alerts)
	o.log.Info("Catalog applied", "shop_items", len(c.Shop), "alerts", len(c.Alerts))
}

// Start restores the persisted viewers, prepares every worker and blocks until Stop
// or ctx cancellation. It uses a preparation pattern to minimize mutex locking time.
func (o *Orchestrator) Start(ctx context.Context) error {
	// 1. Preparation phase (No Lock)
	if err := o.restore(); err != nil {
		return err
	}
	lanes := o.prepareLanes()
	pipeline := o.preparePipeline()
	maintenance := o.prepareMaintenance()
	monitoring := o.prepareMonitoring()

	// 2. Critical Section (Short Lock)
	o.mu.Lock()
	o.supervisor.Add(lanes...)
	o.supervisor.Add(pipeline...)
	o.supervisor.Add(o.prepareBackends(ctx)...)
	o.supervisor.Add(o.prepareExternalSinks()...)
	o.supervisor.Add(maintenance...)
	o.supervisor.Add(monitoring...)
	o.mu.Unlock()
	close(o.ready)

	// 3. Execution phase (No Lock)
	o.log.Info("Starting orchestrator and all supervised workers", "lanes", len(o.lanes), "channel", o.cfg.Channel)
	o.supervisor.Run(ctx)
	return nil
}

func (o *Orchestrator) restore() error {
	if o.storage.Viewers == nil {
		return nil
	}
	viewers, err := o.storage.Viewers.LoadViewers()
	if err != nil {
		return fmt.Errorf("restore viewers: %w", err)
	}
	o.directory.Restore(viewers)
	o.ledger.Seed(viewers)
	o.log.Info("Viewers restored", "count", len(viewers))
	return nil
}

// prepareLanes splits raw events by viewer so each viewer keeps its order.
func (o *Orchestrator) prepareLanes() []contract.Worker {
	o.lanes = make([]chan event.Event, o.cfg.Lanes)
	deps := workers.LaneDeps{
		Channel:   o.cfg.Channel,
		Directory: o.directory,
		Guard:     o.guard,
		Router:    o.router,
		Censor:    o.moderator,
		Publisher: o.bus,
		Telemetry: o.telemetryEvents,
	}
	res := []contract.Worker{
		workers.NewDispatchWorker(o.log, o.bus.Subscribe("dispatch", o.cfg.BufferSize, event.RawKinds...), o.lanes),
	}
	for i := range o.lanes {
		o.lanes[i] = make(chan event.Event, o.cfg.LaneBufferSize)
		res = append(res, workers.NewLaneWorker(i, o.lanes[i], deps, o.log))
	}
	return res
}

// preparePipeline gives every derived-state consumer its own subscription,
// a slow consumer only loses its own oldest events.
func (o *Orchestrator) preparePipeline() []contract.Worker {
	size := o.cfg.BufferSize
	res := []contract.Worker{
		workers.NewEventFanout(o.log, o.bus.Subscribe("features", size), o.cfg.SinkTimeout, o.featureSinks...),
		workers.NewEventFanout(o.log, o.bus.Subscribe("overlay", size, event.KindStateDelta), o.cfg.SinkTimeout, o.hub),
		workers.NewEventFanout(o.log, o.bus.Subscribe("analytics", size), o.cfg.SinkTimeout, o.analytics),
		workers.NewCompletionWorker(o.log, o.completions),
	}

	var persistence []contract.EventSink
	if o.storage.Ledger != nil {
		persistence = append(persistence, sink.NewLedgerSink(o.storage.Ledger, o.log, o.cfg.LedgerBatchSize, o.cfg.BufferTimeout))
	}
	if o.storage.Messages != nil {
		persistence = append(persistence, sink.NewChatLogSink(o.storage.Messages, o.log))
	}
	if o.storage.Search != nil {
		persistence = append(persistence, sink.NewSearchSink(o.storage.Search, o.log))
	}
	if len(persistence) > 0 {
		sub := o.bus.Subscribe("persistence", size, event.KindStateDelta)
		res = append(res, workers.NewEventFanout(o.log, sub, o.cfg.SinkTimeout, persistence...))
		for _, s := range persistence {
			if ls, ok := s.(*sink.LedgerSink); ok {
				res = append(res, workers.NewTickerWorker(o.log, "LedgerFlush", o.cfg.BufferTimeout,
					func(ctx context.Context, _ time.Time) error { return ls.Flush(ctx) }).OnStop(ls.Flush))
			}
		}
	}

	if o.replier != nil {
		sub := o.bus.Subscribe("replies", size, event.KindCommandResult, event.KindStateDelta)
		res = append(res, workers.NewEventFanout(o.log, sub, o.cfg.SinkTimeout, sink.NewReplierSink(o.replier, o.log)))
	}
	return res
}

// prepareExternalSinks serves the sinks given to RegisterSinks.
func (o *Orchestrator) prepareExternalSinks() []contract.Worker {
	if len(o.permanentSinks) == 0 {
		return nil
	}
	sub := o.bus.Subscribe("external", o.cfg.BufferSize)
	return []contract.Worker{workers.NewEventFanout(o.log, sub, o.cfg.SinkTimeout, o.permanentSinks...)}
}

func (o *Orchestrator) prepareBackends(ctx context.Context) []contract.Worker {
	var res []contract.Worker
	for _, q := range []struct {
		kind     domain.QueueKind
		requests <-chan domain.BackendRequest
	}{
		{domain.QueueMusic, o.music.Requests()},
		{domain.QueueTTS, o.tts.Requests()},
	} {
		backend, ok := o.backends[q.kind]
		if !ok {
			o.log.Info("No backend configured, using the simulated one", "kind", q.kind)
			backend = backends.NewSimulatedBackend(ctx, o.completions, o.cfg.SimulatedPerRune, o.cfg.SimulatedMaxDelay, o.log)
		}
		res = append(res, workers.NewBackendWorker(o.log, q.kind, q.requests, backend, o.completions, o.cfg.BackendTimeout))
	}
	return res
}

func (o *Orchestrator) prepareMaintenance() []contract.Worker {
	res := []contract.Worker{
		workers.NewTickerWorker(o.log, "AnalyticsFlush", o.cfg.Analytics.Window, o.analytics.Flush).
			OnStop(func(ctx context.Context) error { return o.analytics.Flush(ctx, time.Now().UTC()) }),
		workers.NewTickerWorker(o.log, "GuardSweep", o.cfg.SweepInterval, func(_ context.Context, now time.Time) error {
			if n := o.guard.Sweep(now); n > 0 {
				o.log.Debug("Idle guard state released", "count", n)
			}
			return nil
		}),
		workers.NewHeartbeatWorker(o.log, o.hub, o.cfg.Hub.PingInterval),
		workers.NewTickerWorker(o.log, "PlaybackPoll", o.cfg.PlaybackPoll, func(context.Context, time.Time) error {
			if n := o.completions.StartIdle(); n > 0 {
				o.log.Debug("Idle queues started", "count", n)
			}
			return nil
		}),
	}
	if o.storage.Viewers != nil {
		snapshot := func(context.Context) error { return o.storage.Viewers.SaveViewers(o.directory.All()) }
		res = append(res, workers.NewTickerWorker(o.log, "ViewerSnapshot", o.cfg.SnapshotInterval,
			func(ctx context.Context, _ time.Time) error { return snapshot(ctx) }).OnStop(snapshot))
	}
	return res
}

// prepareMonitoring wires telemetry producers to the handler chain.
func (o *Orchestrator) prepareMonitoring() []contract.Worker {
	handlers := []event.Handler{
		o.restarts,
		o.pressure,
		o.process,
		event.NewLatencyHandler(o.log, o.cfg.LatencyThreshold),
		o.censored,
	}
	channels := []workers.NamedChannel{
		{Name: "telemetry", Channel: o.telemetryEvents},
		{Name: "completions", Channel: o.completions.Pending()},
		{Name: "music_requests", Channel: o.music.Requests()},
		{Name: "tts_requests", Channel: o.tts.Requests()},
	}
	for i, lane := range o.lanes {
		channels = append(channels, workers.NamedChannel{Name: fmt.Sprintf("lane_%d", i), Channel: lane})
	}
	return []contract.Worker{
		workers.NewTelemetryWorker(o.log, o.telemetryEvents, handlers),
		workers.NewChannelCapacityWorker(o.log, channels, o.bus, o.telemetryEvents, o.cfg.MetricInterval),
		workers.NewHealthMonitoringWorker(o.log, o.telemetryEvents, o.cfg.MetricInterval),
	}
}

// Ready is closed once every subscription exists, events ingested before may be missed by some consumers.
func (o *Orchestrator) Ready() <-chan struct{} { return o.ready }

// Stop initiates a graceful shutdown of the orchestrator.
// Workers with a final task (snapshots, flushes) run it on their way out.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

func (o *Orchestrator) Bus() *bus.Bus { return o.bus }
func (o *Orchestrator) Directory() *directory.Directory { return o.directory }
func (o *Orchestrator) Ledger() *ledger.Ledger { return o.ledger }
func (o *Orchestrator) Hub() *hub.Hub { return o.hub }
func (o *Orchestrator) Analytics() *projection.Analytics { return o.analytics }
func (o *Orchestrator) Music() *features.Music { return o.music }
func (o *Orchestrator) TTS() *features.TTS { return o.tts }
func (o *Orchestrator) Goals() *features.Goals { return o.goals }
func (o *Orchestrator) Completions() *features.Completions { return o.completions }
func (o *Orchestrator) Economy() *features.Economy { return o.economy }
func (o *Orchestrator) Storage() Storage { return o.storage }

// Diagnostics is a flat view of the runtime counters, shown by the inspector.
func (o *Orchestrator) Diagnostics() map[string]any {
	return map[string]any{
		"viewers":        o.directory.Len(),
		"ledger_entries": o.ledger.Len(),
		"ledger_evicted": o.ledger.Dropped(),
		"last_seq":       o.bus.LastSeq(),
		"bus_drops":      o.bus.TotalDropped(),
		"sessions":       o.hub.Sessions(),
		"restarts":       o.counter.Get(event.RestartedAfterPanicType),
		"restarts_by":    o.restarts.PerWorker(),
		"queues":         o.pressure.Usage(),
		"process":        o.process.Summary(),
		"censored_hits":  o.censored.Total(),
		"guard_tracked":  o.guard.Tracked(),
		"uptime":         time.Since(o.started).Round(time.Second).String(),
	}
}
