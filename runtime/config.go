package runtime

import (
	"stream-lab/domain"
	"stream-lab/features"
	"stream-lab/guard"
	"stream-lab/hub"
	"stream-lab/projection"
	"time"
)

// Config is the runtime view of the process configuration.
// Zero durations and sizes fall back to DefaultConfig.
type Config struct {
	Channel         string
	Admins          []string
	Lanes           int
	BufferSize      int
	LaneBufferSize  int
	CharReplacement rune
	WatchGap        time.Duration

	SinkTimeout     time.Duration
	RestartInterval time.Duration
	MetricInterval  time.Duration

	LatencyThreshold     time.Duration
	LowCapacityThreshold int

	SnapshotInterval time.Duration
	SweepInterval    time.Duration
	LedgerBatchSize  int
	LedgerRetain     int
	BufferTimeout    time.Duration

	BackendTimeout    time.Duration
	PlaybackPoll      time.Duration
	SimulatedPerRune  time.Duration
	SimulatedMaxDelay time.Duration

	RecentEvents int
	Hub          hub.Config
	Analytics    projection.AnalyticsConfig
	Guard        guard.Config
	Music        features.MusicConfig
	TTS          features.TTSConfig
	Economy      features.EconomyConfig
	Moderation   features.ModerationConfig
	Catalog      domain.Catalog
}

func DefaultConfig() Config {
	return Config{
		Channel:              "stream",
		Lanes:                8,
		BufferSize:           1024,
		LaneBufferSize:       256,
		CharReplacement:      '*',
		WatchGap:             10 * time.Minute,
		SinkTimeout:          2 * time.Second,
		RestartInterval:      500 * time.Millisecond,
		MetricInterval:       30 * time.Second,
		LatencyThreshold:     250 * time.Millisecond,
		LowCapacityThreshold: 20,
		SnapshotInterval:     time.Minute,
		SweepInterval:        5 * time.Minute,
		LedgerBatchSize:      100,
		LedgerRetain:         500,
		BufferTimeout:        2 * time.Second,
		BackendTimeout:       5 * time.Second,
		PlaybackPoll:         time.Second,
		SimulatedPerRune:     50 * time.Millisecond,
		SimulatedMaxDelay:    5 * time.Second,
		RecentEvents:         100,
		Hub:                  hub.DefaultConfig(),
		Analytics:            projection.DefaultAnalyticsConfig(),
		Guard:                guard.DefaultConfig(),
		Music:                features.DefaultMusicConfig(),
		TTS:                  features.DefaultTTSConfig(),
		Economy:              features.DefaultEconomyConfig(),
		Moderation:           features.DefaultModerationConfig(),
		Catalog:              domain.DefaultCatalog(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	positive := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	duration := func(v *time.Duration, d time.Duration) {
		if *v <= 0 {
			*v = d
		}
	}
	positive(&c.Lanes, def.Lanes)
	positive(&c.BufferSize, def.BufferSize)
	positive(&c.LaneBufferSize, def.LaneBufferSize)
	positive(&c.LowCapacityThreshold, def.LowCapacityThreshold)
	positive(&c.LedgerBatchSize, def.LedgerBatchSize)
	positive(&c.LedgerRetain, def.LedgerRetain)
	positive(&c.RecentEvents, def.RecentEvents)
	positive(&c.Hub.OutboxSize, def.Hub.OutboxSize)
	positive(&c.Hub.MaxMissedPongs, def.Hub.MaxMissedPongs)
	duration(&c.WatchGap, def.WatchGap)
	duration(&c.SinkTimeout, def.SinkTimeout)
	duration(&c.RestartInterval, def.RestartInterval)
	duration(&c.MetricInterval, def.MetricInterval)
	duration(&c.LatencyThreshold, def.LatencyThreshold)
	duration(&c.SnapshotInterval, def.SnapshotInterval)
	duration(&c.SweepInterval, def.SweepInterval)
	duration(&c.BufferTimeout, def.BufferTimeout)
	duration(&c.BackendTimeout, def.BackendTimeout)
	duration(&c.PlaybackPoll, def.PlaybackPoll)
	duration(&c.SimulatedPerRune, def.SimulatedPerRune)
	duration(&c.SimulatedMaxDelay, def.SimulatedMaxDelay)
	duration(&c.Hub.PingInterval, def.Hub.PingInterval)
	duration(&c.Analytics.Window, def.Analytics.Window)
	if c.CharReplacement == 0 {
		c.CharReplacement = def.CharReplacement
	}
	if c.Channel == "" {
		c.Channel = def.Channel
	}
	return c
}
