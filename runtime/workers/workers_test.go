package workers

import (
	"context"
	"fmt"
	"log/slog"
	"stream-lab/bus"
	"stream-lab/contract"
	"stream-lab/directory"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/errors"
	"stream-lab/guard"
	"stream-lab/mocks"
	"stream-lab/moderation"
	"stream-lab/router"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var t0 = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

func comment(seq uint64, viewer, text string) event.Event {
	return event.Event{Seq: seq, At: t0, Kind: event.KindComment, ViewerID: domain.ViewerID(viewer), DisplayName: viewer,
		Payload: event.Comment{Text: text}}
}

func TestEventFanout_Delivers_To_Every_Sink_In_Order(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Given two sinks behind one subscription
	b := bus.New(log)
	sub := b.Subscribe("sinks", 10)
	first := mocks.NewMockEventSink(ctrl)
	second := mocks.NewMockEventSink(ctrl)
	done := make(chan struct{})
	gomock.InOrder(
		first.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil),
		second.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(fmt.Errorf("sink down")),
		first.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil),
		second.EXPECT().Consume(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, evt event.Event) error {
				close(done)
				return nil
			}),
	)
	worker := NewEventFanout(log, sub, time.Second, first, second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	// When two events are published
	b.Publish(comment(0, "u1", "hello"))
	b.Publish(comment(0, "u1", "again"))

	// Then both sinks saw both, a failing sink does not stop the fanout
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Fanout did not deliver at time")
	}
	req.Equal("EventFanout:sinks", worker.Name())
}

func TestEventFanout_SinkTimeout(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	slow := mocks.NewMockEventSink(ctrl)
	b := bus.New(log)
	worker := NewEventFanout(log, b.Subscribe("slow", 1), 20*time.Millisecond, slow)

	// Given a sink waiting for its context
	slow.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, evt event.Event) error {
			<-ctx.Done()
			return ctx.Err()
		}).
		Times(1)

	// When an event is handed over
	start := time.Now()
	worker.Fanout(context.Background(), comment(1, "u1", "hi"))

	// Then the fanout gave up after the timeout
	req.Less(time.Since(start), time.Second)
}

func TestEventFanout_Stops_When_Unsubscribed(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	b := bus.New(log)
	sub := b.Subscribe("gone", 1)
	worker := NewEventFanout(log, sub, time.Second)

	errCh := make(chan error, 1)
	go func() { errCh <- worker.Run(context.Background()) }()
	b.Unsubscribe(sub)

	select {
	case err := <-errCh:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("Fanout did not stop")
	}
}

func TestLaneOf_Is_Stable(t *testing.T) {
	req := require.New(t)
	for _, id := range []string{"u1", "u2", "viewer-with-a-long-id", ""} {
		lane := LaneOf(id, 8)
		req.GreaterOrEqual(lane, 0)
		req.Less(lane, 8)
		req.Equal(lane, LaneOf(id, 8))
	}
}

func TestDispatchWorker_Keeps_Order_Per_Viewer(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given four lanes fed by one raw subscription
	b := bus.New(log)
	sub := b.Subscribe("dispatch", 10_000, event.RawKinds...)
	lanes := make([]chan event.Event, 4)
	for i := range lanes {
		lanes[i] = make(chan event.Event, 10_000)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = NewDispatchWorker(log, sub, lanes).Run(ctx) }()

	// When several producers interleave their viewers
	viewers := []string{"a", "b", "c", "d", "e", "f"}
	const perViewer = 200
	var wg sync.WaitGroup
	for _, v := range viewers {
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			for i := 0; i < perViewer; i++ {
				b.Publish(comment(0, v, fmt.Sprintf("%d", i)))
			}
		}(v)
	}
	wg.Wait()

	// Then each viewer sits on one lane with its events in publish order
	seen := make(map[domain.ViewerID][]string)
	laneOf := make(map[domain.ViewerID]int)
	deadline := time.After(2 * time.Second)
	for total := 0; total < len(viewers)*perViewer; {
		progressed := false
		for i, lane := range lanes {
			select {
			case evt := <-lane:
				if prev, ok := laneOf[evt.ViewerID]; ok {
					req.Equal(prev, i)
				}
				laneOf[evt.ViewerID] = i
				seen[evt.ViewerID] = append(seen[evt.ViewerID], evt.Payload.(event.Comment).Text)
				total++
				progressed = true
			default:
			}
		}
		if !progressed {
			select {
			case <-deadline:
				req.FailNow("Dispatch did not forward every event")
			case <-time.After(time.Millisecond):
			}
		}
	}
	for _, v := range viewers {
		texts := seen[domain.ViewerID(v)]
		req.Len(texts, perViewer)
		for i, text := range texts {
			req.Equal(fmt.Sprintf("%d", i), text)
		}
	}
}

type laneFixture struct {
	bus     *bus.Bus
	dir     *directory.Directory
	lane    *LaneWorker
	results *bus.Subscription
	deltas  *bus.Subscription
}

type noop struct{}

func (noop) CanHandle(name string) bool { return name == "ping" }

func (noop) Handle(context.Context, domain.Invocation, contract.Publisher) (contract.Result, error) {
	return contract.Result{Message: "pong"}, nil
}

func newLaneFixture(t *testing.T) laneFixture {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	b := bus.New(log)
	dir := directory.New(log, nil, 5*time.Minute)
	mod, err := moderation.NewModerator([]string{"badword"}, '*', log)
	require.NoError(t, err)
	r := router.New(b, log)
	require.NoError(t, r.Register(noop{}, domain.RoleAnyone, "ping"))
	lane := NewLaneWorker(0, make(chan event.Event), LaneDeps{
		Channel:   "stream",
		Directory: dir,
		Guard:     guard.New(guard.DefaultConfig(), mod, log),
		Router:    r,
		Censor:    mod,
		Publisher: b,
		Telemetry: make(chan event.Telemetry, 10),
	}, log)
	return laneFixture{
		bus:     b,
		dir:     dir,
		lane:    lane,
		results: b.Subscribe("results", 100, event.KindCommandResult),
		deltas:  b.Subscribe("deltas", 100, event.KindStateDelta),
	}
}

func TestLaneWorker_Chat_Becomes_Chat_Message(t *testing.T) {
	req := require.New(t)

	// Given
	f := newLaneFixture(t)

	// When
	f.lane.Handle(context.Background(), comment(7, "u1", "hello everyone"))

	// Then
	evt, ok := f.deltas.TryNext()
	req.True(ok)
	d, _ := evt.Delta()
	req.Equal(event.TopicChatMessage, d.Topic)
	line := d.Data.(domain.ChatLine)
	req.Equal("hello everyone", line.Content)
	req.Equal(uint64(7), line.Seq)
	req.Equal("stream", line.Channel)
	req.Equal(domain.ViewerID("u1"), evt.ViewerID)
	v, _ := f.dir.Get("u1")
	req.Equal(uint64(1), v.Messages)
	_, result := f.results.TryNext()
	req.False(result)
}

func TestLaneWorker_Command_Produces_One_Result(t *testing.T) {
	req := require.New(t)

	// Given
	f := newLaneFixture(t)

	// When
	f.lane.Handle(context.Background(), comment(1, "u1", "!ping"))
	f.lane.Handle(context.Background(), comment(2, "u1", "!nope"))

	// Then
	first, ok := f.results.TryNext()
	req.True(ok)
	res, _ := first.Result()
	req.Equal(event.StatusAccepted, res.Status)
	req.Equal("pong", res.Message)
	second, ok := f.results.TryNext()
	req.True(ok)
	res, _ = second.Result()
	req.Equal(event.StatusUnknown, res.Status)
	_, chat := f.deltas.TryNext()
	req.False(chat)
}

func TestLaneWorker_Banned_Viewer_Is_Rejected(t *testing.T) {
	req := require.New(t)

	// Given a banned viewer
	f := newLaneFixture(t)
	f.dir.Observe("u2", "u2", t0, directory.Hints{})
	_, err := f.dir.Update("u2", func(v *domain.Viewer) error {
		v.Banned = true
		return nil
	})
	req.NoError(err)

	// When
	f.lane.Handle(context.Background(), comment(3, "u2", "!music something"))

	// Then
	evt, ok := f.results.TryNext()
	req.True(ok)
	res, _ := evt.Result()
	req.Equal(event.StatusRejected, res.Status)
	req.Equal(event.ReasonBanned, res.Reason)
	req.Equal("music", res.Command)
	_, more := f.results.TryNext()
	req.False(more)
	_, chat := f.deltas.TryNext()
	req.False(chat)
}

func TestLaneWorker_Banned_Word_Reports_Censorship(t *testing.T) {
	req := require.New(t)

	// Given
	f := newLaneFixture(t)

	// When
	f.lane.Handle(context.Background(), comment(4, "u3", "you are a BADWORD"))

	// Then
	evt, ok := f.results.TryNext()
	req.True(ok)
	res, _ := evt.Result()
	req.Equal(event.ReasonBannedWord, res.Reason)
	hit := <-f.lane.telemetry
	req.Equal(event.CensorshipHitType, hit.Type)
	req.Equal([]string{"badword"}, hit.Payload.(event.CensorshipHit).Words)
}

func TestLaneWorker_Platform_Badges_Grant_Roles(t *testing.T) {
	req := require.New(t)

	// Given
	f := newLaneFixture(t)
	evt := comment(5, "m1", "hi")
	evt.Payload = event.Comment{Text: "hi", Moderator: true}

	// When
	f.lane.Handle(context.Background(), evt)
	f.lane.Handle(context.Background(), event.Event{Seq: 6, Kind: event.KindFollow, ViewerID: "f1", DisplayName: "Fan", At: t0, Payload: event.Follow{}})

	// Then
	m, _ := f.dir.Get("m1")
	req.Equal(domain.RoleModerator, m.Role())
	fan, ok := f.dir.Get("f1")
	req.True(ok)
	req.Equal("Fan", fan.DisplayName)
}

func TestBackendWorker_Refusal_Becomes_Failed_Completion(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Given a backend refusing the request
	backend := mocks.NewMockBackend(ctrl)
	requests := make(chan domain.BackendRequest, 1)
	deliveries := &recordingDeliverer{ch: make(chan domain.Completion, 1)}
	id := uuid.New()
	backend.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(errors.ErrExternalFailure).Times(1)
	worker := NewBackendWorker(log, domain.QueueMusic, requests, backend, deliveries, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	// When
	requests <- domain.BackendRequest{ID: id, Kind: domain.QueueMusic, Payload: "song", Attempt: 1}

	// Then
	select {
	case c := <-deliveries.ch:
		req.Equal(id, c.RequestID)
		req.ErrorIs(c.Err, errors.ErrExternalFailure)
	case <-time.After(time.Second):
		req.Fail("No completion delivered")
	}
	req.Equal("BackendWorker:music", worker.Name())
}

type recordingDeliverer struct {
	ch chan domain.Completion
}

func (r *recordingDeliverer) Deliver(_ context.Context, c domain.Completion) error {
	r.ch <- c
	return nil
}

func TestChannelCapacityWorker_Samples_Channels_And_Subscriptions(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given
	b := bus.New(log)
	b.Subscribe("tiny", 1)
	b.Publish(comment(0, "u1", "one"))
	b.Publish(comment(0, "u1", "two"))
	lane := make(chan event.Event, 4)
	lane <- event.Event{}
	worker := NewChannelCapacityWorker(log, []NamedChannel{{Name: "lane-0", Channel: lane}, {Name: "bogus", Channel: 3}}, b, nil, time.Second)

	// When
	samples := worker.Sample()

	// Then
	req.Equal([]event.ChannelCapacity{
		{ChannelName: "lane-0", Capacity: 4, Length: 1},
		{ChannelName: "bus:tiny", Capacity: 1, Length: 1, Dropped: 1},
	}, samples)
}

func TestTickerWorker_Runs_Task_And_Final_Run(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given
	ticks := make(chan time.Time, 10)
	stopped := make(chan struct{})
	worker := NewTickerWorker(log, "snapshot", 10*time.Millisecond, func(ctx context.Context, now time.Time) error {
		ticks <- now
		return fmt.Errorf("ignored")
	}).OnStop(func(ctx context.Context) error {
		close(stopped)
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())

	// When
	go func() { _ = worker.Run(ctx) }()
	<-ticks
	<-ticks
	cancel()

	// Then
	select {
	case <-stopped:
	case <-time.After(time.Second):
		req.Fail("Final run did not happen")
	}
	req.Equal("snapshot", worker.Name())
}
