package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	Channel         string        `env:"STREAM_CHANNEL,required=true"`
	Admins          string        `env:"STREAM_ADMINS"`
	NumberOfLanes   int           `env:"NUMBER_OF_LANES,default=8"`
	BufferSize      int           `env:"BUFFER_SIZE,default=1024"`
	LaneBufferSize  int           `env:"LANE_BUFFER_SIZE,default=256"`
	CharReplacement string        `env:"CHARACTER_REPLACEMENT,default=*"`
	LimitMessages   *int          `env:"LIMIT_MESSAGES"`
	SinkTimeout     time.Duration `env:"SINK_TIMEOUT,default=2s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=500ms"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=30s"`
	WatchGap        time.Duration `env:"WATCH_GAP,default=10m"`

	LatencyThreshold     time.Duration `env:"LATENCY_THRESHOLD,default=250ms"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,default=20"`

	BadgerFilepath string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string        `env:"BLUGE_FILEPATH,required=true"`
	CatalogPath    string        `env:"CATALOG_PATH"`
	BucketTTL      time.Duration `env:"BUCKET_TTL,default=168h"`

	LedgerBatchSize  int           `env:"LEDGER_BATCH_SIZE,default=100"`
	LedgerRetain     int           `env:"LEDGER_RETAIN,default=500"`
	BufferTimeout    time.Duration `env:"BUFFER_TIMEOUT,default=2s"`
	SnapshotInterval time.Duration `env:"VIEWER_SNAPSHOT_INTERVAL,default=1m"`
	SweepInterval    time.Duration `env:"GUARD_SWEEP_INTERVAL,default=5m"`
	AnalyticsWindow  time.Duration `env:"ANALYTICS_WINDOW,default=1m"`

	Host              string        `env:"HOST,default=0.0.0.0"`
	Port              int           `env:"PORT,default=8080"`
	GrpcPort          int           `env:"GRPC_PORT,default=9090"`
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=12h"`
	AdminEmail        string        `env:"ADMIN_EMAIL"`
	AdminPassword     string        `env:"ADMIN_PASSWORD"`

	OutboxSize     int           `env:"OVERLAY_OUTBOX_SIZE,default=256"`
	PingInterval   time.Duration `env:"OVERLAY_PING_INTERVAL,default=30s"`
	MaxMissedPongs int           `env:"OVERLAY_MAX_MISSED_PONGS,default=3"`
	RecentEvents   int           `env:"OVERLAY_RECENT_EVENTS,default=100"`

	MusicBackendURL string        `env:"MUSIC_BACKEND_URL"`
	TTSBackendURL   string        `env:"TTS_BACKEND_URL"`
	BackendToken    string        `env:"BACKEND_TOKEN"`
	BackendTimeout  time.Duration `env:"BACKEND_TIMEOUT,default=5s"`
	PlaybackPoll    time.Duration `env:"PLAYBACK_POLL,default=1s"`

	RedisAddress  string `env:"REDIS_ADDRESS"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`
	RedisChannel  string `env:"REDIS_CHANNEL,default=stream-lab:raw"`

	TwitchUsername string `env:"TWITCH_USERNAME"`
	TwitchToken    string `env:"TWITCH_OAUTH_TOKEN"`

	PostgresDSN string `env:"POSTGRES_DSN"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

// AdminList splits STREAM_ADMINS, a comma separated list of viewer ids.
func (c Config) AdminList() []string {
	var res []string
	for _, a := range strings.Split(c.Admins, ",") {
		if a = strings.TrimSpace(a); a != "" {
			res = append(res, strings.ToLower(a))
		}
	}
	return res
}
