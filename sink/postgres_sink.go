package sink

import (
	"context"
	"log/slog"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const insertChatLine = `
insert into chat_lines (
  id, channel, viewer_id, display_name, content, role, seq, sent_at
) values ($1,$2,$3,$4,$5,$6,$7,$8)
on conflict (id) do nothing;`

// CreateChatLines is run once at start-up.
const CreateChatLines = `
create table if not exists chat_lines (
  id uuid primary key,
  channel text not null,
  viewer_id text not null,
  display_name text not null,
  content text not null,
  role text not null,
  seq bigint not null,
  sent_at timestamptz not null
);`

type PostgresConfig struct {
	MaxBatch     int
	FlushEvery   time.Duration
	ChanBuffer   int
	FlushTimeout time.Duration
}

func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{MaxBatch: 200, FlushEvery: 2 * time.Second, ChanBuffer: 4096, FlushTimeout: 5 * time.Second}
}

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresSink archives chat lines in an external database through pgx batches.
// Consume never blocks, lines are dropped and counted when the buffer is full.
type PostgresSink struct {
	input    chan domain.ChatLine
	config   PostgresConfig
	sender   batchSender
	log      *slog.Logger
	dropped  atomic.Uint64
	inserted atomic.Uint64
}

func NewPostgresSink(pool *pgxpool.Pool, cfg PostgresConfig, log *slog.Logger) *PostgresSink {
	return newPostgresSink(pool, cfg, log)
}

func newPostgresSink(sender batchSender, cfg PostgresConfig, log *slog.Logger) *PostgresSink {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 1
	}
	return &PostgresSink{
		input:  make(chan domain.ChatLine, cfg.ChanBuffer),
		config: cfg,
		sender: sender,
		log:    log,
	}
}

func (p *PostgresSink) Name() string { return "PostgresSink" }

func (p *PostgresSink) Consume(_ context.Context, evt event.Event) error {
	line, ok := chatLine(evt)
	if !ok {
		return nil
	}
	select {
	case p.input <- line:
	default:
		if dropped := p.dropped.Add(1); dropped%100 == 1 {
			p.log.Warn("Postgres archive buffer full, dropping chat lines", "dropped", dropped)
		}
	}
	return nil
}

func (p *PostgresSink) Dropped() uint64 { return p.dropped.Load() }

func (p *PostgresSink) Inserted() uint64 { return p.inserted.Load() }

// Run drains the buffer until ctx is done, flushing on size and on the ticker.
func (p *PostgresSink) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.config.FlushEvery)
	defer ticker.Stop()

	batch := &pgx.Batch{}
	pending := 0

	flush := func() {
		if pending == 0 {
			return
		}
		dbCtx, cancel := context.WithTimeout(context.Background(), p.config.FlushTimeout)
		defer cancel()

		br := p.sender.SendBatch(dbCtx, batch)
		if err := br.Close(); err != nil {
			p.log.Error("Postgres batch flush failed", "lines", pending, "error", err)
		} else {
			p.inserted.Add(uint64(pending))
		}
		batch = &pgx.Batch{}
		pending = 0
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			p.log.Info("Postgres archive stopped", "inserted", p.inserted.Load(), "dropped", p.dropped.Load())
			return nil
		case <-ticker.C:
			flush()
		case line := <-p.input:
			batch.Queue(insertChatLine,
				line.ID, line.Channel, string(line.ViewerID), line.DisplayName,
				line.Content, line.Role, int64(line.Seq), line.At.UTC(),
			)
			pending++
			if pending >= p.config.MaxBatch {
				flush()
			}
		}
	}
}
