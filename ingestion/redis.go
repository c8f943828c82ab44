package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"stream-lab/contract"
	"stream-lab/domain"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Channel      string
}

// RedisSource reads raw events published as JSON on a Redis channel.
// Producers can be anything able to PUBLISH, a TikTok or YouTube bridge for instance.
type RedisSource struct {
	client  *redis.Client
	channel string
	log     *slog.Logger
}

func NewRedisSource(cfg RedisConfig, log *slog.Logger) (*RedisSource, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisSource{client: client, channel: cfg.Channel, log: log}, nil
}

func (r *RedisSource) Name() string { return "RedisSource:" + r.channel }

// Run forwards every decodable message to in until ctx is done.
func (r *RedisSource) Run(ctx context.Context, in contract.Ingester) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	r.log.Info("Listening for raw events", "channel", r.channel)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			raw, err := DecodeRaw([]byte(msg.Payload))
			if err != nil {
				r.log.Debug("Skipping undecodable raw event", "channel", msg.Channel, "error", err)
				continue
			}
			if err = in.Ingest(ctx, raw); err != nil {
				r.log.Debug("Raw event refused", "kind", raw.Kind, "viewer", raw.ViewerID, "error", err)
			}
		}
	}
}

// Publish is used by tools and tests to inject raw events.
func (r *RedisSource) Publish(ctx context.Context, raw domain.RawEvent) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal raw event: %w", err)
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

func (r *RedisSource) Close() error { return r.client.Close() }

func DecodeRaw(data []byte) (domain.RawEvent, error) {
	var raw domain.RawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.RawEvent{}, err
	}
	return raw, nil
}
