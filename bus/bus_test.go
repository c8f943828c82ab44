package bus

import (
	"context"
	"fmt"
	"log/slog"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/errors"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newBus() *Bus {
	return New(logs.GetLoggerFromLevel(slog.LevelDebug))
}

func comment(viewer string, text string) event.Event {
	return event.Event{Kind: event.KindComment, ViewerID: domain.ViewerID(viewer), Payload: event.Comment{Text: text}}
}

func TestBus_Publish_Assigns_Increasing_Sequence(t *testing.T) {
	req := require.New(t)
	b := newBus()
	sub := b.Subscribe("all", 10)

	// When three events are published
	first := b.Publish(comment("u1", "a"))
	second := b.Publish(comment("u1", "b"))
	third := b.Publish(comment("u2", "c"))

	// Then sequence numbers are strictly increasing and times are stamped
	req.Equal(uint64(1), first.Seq)
	req.Equal(uint64(2), second.Seq)
	req.Equal(uint64(3), third.Seq)
	req.False(first.At.IsZero())
	req.Equal(uint64(3), b.LastSeq())

	// And the subscriber receives them in order
	for _, want := range []uint64{1, 2, 3} {
		e, ok := sub.TryNext()
		req.True(ok)
		req.Equal(want, e.Seq)
	}
	_, ok := sub.TryNext()
	req.False(ok)
}

func TestBus_Publish_Keeps_Given_Time(t *testing.T) {
	req := require.New(t)
	b := newBus()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	e := comment("u1", "a")
	e.At = at

	req.Equal(at, b.Publish(e).At)
}

func TestBus_Subscribe_Filters_By_Kind(t *testing.T) {
	req := require.New(t)
	b := newBus()
	deltas := b.Subscribe("deltas", 10, event.KindStateDelta)
	all := b.Subscribe("all", 10)

	// When a comment and a delta are published
	b.Publish(comment("u1", "hello"))
	b.Publish(event.NewDelta(event.TopicStatsUpdated, nil))

	// Then the filtered subscription only sees the delta
	req.Equal(1, deltas.Len())
	e, ok := deltas.TryNext()
	req.True(ok)
	req.Equal(event.KindStateDelta, e.Kind)
	req.Equal(uint64(2), e.Seq)

	req.Equal(2, all.Len())
}

func TestBus_Full_Subscription_Drops_Oldest(t *testing.T) {
	req := require.New(t)
	b := newBus()
	slow := b.Subscribe("slow", 3)
	fast := b.Subscribe("fast", 100)

	// Given a slow consumer that never reads
	for i := 0; i < 10; i++ {
		b.Publish(comment("u1", fmt.Sprintf("m%d", i)))
	}

	// Then the slow one kept the three most recent events
	req.Equal(3, slow.Len())
	req.Equal(uint64(7), slow.Dropped())
	for _, want := range []uint64{8, 9, 10} {
		e, ok := slow.TryNext()
		req.True(ok)
		req.Equal(want, e.Seq)
	}

	// And the fast one lost nothing
	req.Equal(10, fast.Len())
	req.Zero(fast.Dropped())
	req.Equal(uint64(7), b.TotalDropped())
}

func TestBus_Concurrent_Producers_Keep_Order_Per_Subscription(t *testing.T) {
	req := require.New(t)
	b := newBus()
	sub := b.Subscribe("all", 10_000)

	producers, perProducer := 8, 500
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				b.Publish(comment(fmt.Sprintf("u%d", p), "x"))
			}
		}(p)
	}
	wg.Wait()

	req.Equal(producers*perProducer, sub.Len())
	var last uint64
	for {
		e, ok := sub.TryNext()
		if !ok {
			break
		}
		req.Greater(e.Seq, last)
		last = e.Seq
	}
	req.Equal(uint64(producers*perProducer), last)
	req.Equal(uint64(producers*perProducer), sub.Delivered())
}

func TestSubscription_Next_Waits_For_Event(t *testing.T) {
	req := require.New(t)
	b := newBus()
	sub := b.Subscribe("all", 10)

	go func() {
		time.Sleep(20 * time.Millisecond)
		b.Publish(comment("u1", "late"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	e, err := sub.Next(ctx)
	req.NoError(err)
	req.Equal(uint64(1), e.Seq)
}

func TestSubscription_Next_Stops_On_Context_And_Close(t *testing.T) {
	req := require.New(t)
	b := newBus()
	sub := b.Subscribe("all", 10)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := sub.Next(ctx)
	req.ErrorIs(err, context.DeadlineExceeded)

	// When the subscription is removed
	b.Unsubscribe(sub)
	_, err = sub.Next(context.Background())
	req.ErrorIs(err, errors.ErrSubscriptionClosed)

	// Then it no longer receives events
	b.Publish(comment("u1", "x"))
	req.Zero(sub.Len())
	req.Empty(b.Stats())
}
