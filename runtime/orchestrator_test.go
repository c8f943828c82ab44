package runtime_test

import (
	"context"
	"fmt"
	"log/slog"
	"stream-lab/directory"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/errors"
	"stream-lab/hub"
	"stream-lab/mocks"
	"stream-lab/runtime"
	"stream-lab/runtime/workers"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type RecordingSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *RecordingSink) Consume(_ context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *RecordingSink) results(viewer domain.ViewerID) []event.CommandResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []event.CommandResult
	for _, e := range s.events {
		if r, ok := e.Result(); ok && e.ViewerID == viewer {
			res = append(res, r)
		}
	}
	return res
}

func (s *RecordingSink) chatLines() []domain.ChatLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.ChatLine
	for _, e := range s.events {
		if d, ok := e.Delta(); ok && d.Topic == event.TopicChatMessage {
			res = append(res, d.Data.(domain.ChatLine))
		}
	}
	return res
}

// stubBackend records submissions, completions are driven by the test.
type stubBackend struct {
	requests chan domain.BackendRequest
}

func (b *stubBackend) Submit(_ context.Context, req domain.BackendRequest) error {
	b.requests <- req
	return nil
}

type harness struct {
	o       *runtime.Orchestrator
	sink    *RecordingSink
	backend *stubBackend
}

func start(t *testing.T, cfg runtime.Config, storage runtime.Storage) harness {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	o, err := runtime.NewOrchestrator(log, workers.NewSupervisor(log), cfg, storage)
	require.NoError(t, err)

	h := harness{o: o, sink: &RecordingSink{}, backend: &stubBackend{requests: make(chan domain.BackendRequest, 16)}}
	o.RegisterSinks(h.sink)
	o.WithBackend(domain.QueueMusic, h.backend)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("orchestrator did not stop")
		}
	})
	select {
	case <-o.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator not ready")
	}
	return h
}

func comment(viewer, text string) domain.RawEvent {
	return domain.RawEvent{Kind: "comment", ViewerID: viewer, DisplayName: viewer, Text: text}
}

func (h harness) waitResult(t *testing.T, viewer domain.ViewerID) event.CommandResult {
	t.Helper()
	var res []event.CommandResult
	require.Eventually(t, func() bool {
		res = h.sink.results(viewer)
		return len(res) > 0
	}, 2*time.Second, 5*time.Millisecond)
	return res[0]
}

type queueFrame struct {
	Type  string               `json:"type"`
	Topic string               `json:"topic"`
	Data  domain.QueueSnapshot `json:"data"`
}

// nextQueueFrame pops frames until a queue snapshot shows up.
func nextQueueFrame(t *testing.T, s *hub.Session) queueFrame {
	t.Helper()
	var frame queueFrame
	require.Eventually(t, func() bool {
		for {
			raw, ok := s.Outbox().Pop()
			if !ok {
				return false
			}
			var env queueFrame
			if json.Unmarshal(raw, &env) == nil && env.Topic == string(event.TopicMusicQueueUpdated) {
				frame = env
				return true
			}
		}
	}, 2*time.Second, 5*time.Millisecond)
	return frame
}

func TestOrchestrator_Music_Request_Goes_Through_Backend_And_Completes(t *testing.T) {
	req := require.New(t)

	// Given an overlay watching the music channel
	cfg := runtime.DefaultConfig()
	cfg.PlaybackPoll = 20 * time.Millisecond
	h := start(t, cfg, runtime.Storage{})
	overlay := h.o.Hub().Connect([]domain.Channel{domain.ChannelMusic})
	t.Cleanup(func() { h.o.Hub().Disconnect(overlay) })
	raw, ok := overlay.Outbox().Pop()
	req.True(ok)
	var welcome queueFrame
	req.NoError(json.Unmarshal(raw, &welcome))
	req.Equal(hub.TypeWelcome, welcome.Type)

	// When
	req.NoError(h.o.Ingest(context.Background(), comment("u1", "!music lofi beats")))

	// Then
	res := h.waitResult(t, "u1")
	req.Equal("music", res.Command)
	req.Equal(event.StatusQueued, res.Status)
	req.NotNil(res.Item)
	req.Equal("lofi beats", res.Item.Payload)

	// Then the overlay first sees the request waiting
	frame := nextQueueFrame(t, overlay)
	req.Equal(string(domain.ChannelMusic), frame.Type)
	req.Nil(frame.Data.Active)
	req.Len(frame.Data.Pending, 1)
	req.Equal("lofi beats", frame.Data.Pending[0].Payload)
	req.Equal(domain.StatusPending, frame.Data.Pending[0].Status)
	req.Equal(domain.ViewerID("u1"), frame.Data.Pending[0].Requester)

	var submitted domain.BackendRequest
	select {
	case submitted = <-h.backend.requests:
	case <-time.After(2 * time.Second):
		req.Fail("request never reached the backend")
	}
	req.Equal(res.Item.ID, submitted.ID)
	req.Equal(domain.QueueMusic, submitted.Kind)

	// Then the overlay sees it playing once the player picked it up
	frame = nextQueueFrame(t, overlay)
	req.NotNil(frame.Data.Active)
	req.Equal(domain.StatusActive, frame.Data.Active.Status)

	// When the backend reports completion
	req.NoError(h.o.Completions().Deliver(context.Background(), domain.Completion{RequestID: submitted.ID, Result: "played"}))

	// Then the queue moves on
	req.Eventually(func() bool {
		snap := h.o.Music().Snapshot()
		return snap.Active == nil && len(snap.History) == 1
	}, 2*time.Second, 5*time.Millisecond)
	req.Equal(domain.StatusDone, h.o.Music().Snapshot().History[0].Status)
}

func TestOrchestrator_Banned_Viewer_Is_Rejected_Without_Side_Effects(t *testing.T) {
	req := require.New(t)

	// Given
	h := start(t, runtime.DefaultConfig(), runtime.Storage{})
	h.o.Directory().Observe("u2", "u2", time.Now().UTC(), directory.Hints{})
	_, err := h.o.Directory().Update("u2", func(v *domain.Viewer) error {
		v.Banned = true
		return nil
	})
	req.NoError(err)

	// When
	req.NoError(h.o.Ingest(context.Background(), comment("u2", "!music something loud")))

	// Then
	res := h.waitResult(t, "u2")
	req.Equal(event.StatusRejected, res.Status)
	req.Equal(event.ReasonBanned, res.Reason)
	snap := h.o.Music().Snapshot()
	req.Nil(snap.Active)
	req.Empty(snap.Pending)
	req.Empty(h.sink.chatLines())
	req.Eventually(func() bool {
		return h.o.Analytics().Snapshot().TotalRejections[string(event.ReasonBanned)] == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestOrchestrator_Purchase_Without_Points_Changes_Nothing(t *testing.T) {
	req := require.New(t)

	// Given
	h := start(t, runtime.DefaultConfig(), runtime.Storage{})

	// When
	req.NoError(h.o.Ingest(context.Background(), comment("u3", "!구매 item")))

	// Then
	res := h.waitResult(t, "u3")
	req.Equal(event.StatusInsufficientPoints, res.Status)
	v, ok := h.o.Directory().Get("u3")
	req.True(ok)
	req.Zero(v.Points)
	req.Empty(h.o.Ledger().Entries("u3"))
}

func TestOrchestrator_Admitted_Chat_Is_Published_And_Credited(t *testing.T) {
	req := require.New(t)

	// Given
	cfg := runtime.DefaultConfig()
	h := start(t, cfg, runtime.Storage{})

	// When
	req.NoError(h.o.Ingest(context.Background(), comment("u4", "good evening everyone")))

	// Then
	req.Eventually(func() bool { return len(h.sink.chatLines()) == 1 }, 2*time.Second, 5*time.Millisecond)
	line := h.sink.chatLines()[0]
	req.Equal(domain.ViewerID("u4"), line.ViewerID)
	req.Equal("good evening everyone", line.Content)
	req.Eventually(func() bool { return h.o.Ledger().Sum("u4") == cfg.Economy.ChatPoints }, 2*time.Second, 5*time.Millisecond)
}

func TestOrchestrator_Banned_Word_Is_Rejected_And_Warned(t *testing.T) {
	req := require.New(t)

	// Given
	h := start(t, runtime.DefaultConfig(), runtime.Storage{})

	// When
	req.NoError(h.o.Ingest(context.Background(), comment("u6", "what an idiot")))

	// Then
	res := h.waitResult(t, "u6")
	req.Equal(event.StatusRejected, res.Status)
	req.Equal(event.ReasonBannedWord, res.Reason)
	req.Eventually(func() bool {
		v, _ := h.o.Directory().Get("u6")
		return v.Warnings == 1
	}, 2*time.Second, 5*time.Millisecond)
	req.Empty(h.sink.chatLines())
}

func TestOrchestrator_Ingest_Refuses_Invalid_Raw_Events(t *testing.T) {
	req := require.New(t)

	// Given
	h := start(t, runtime.DefaultConfig(), runtime.Storage{})

	// When
	err := h.o.Ingest(context.Background(), domain.RawEvent{Kind: "comment", ViewerID: "u5"})

	// Then
	req.ErrorIs(err, errors.ErrInvalidArgument)
	req.Zero(h.o.Bus().LastSeq())
}

func TestOrchestrator_Restores_Viewers_And_Seeds_Ledger(t *testing.T) {
	req := require.New(t)

	// Given
	ctrl := gomock.NewController(t)
	viewers := mocks.NewMockIViewerRepository(ctrl)
	viewers.EXPECT().LoadViewers().Return([]domain.Viewer{{ID: "u9", DisplayName: "Nine", Points: 40}}, nil)
	viewers.EXPECT().SaveViewers(gomock.Any()).Return(nil).AnyTimes()

	// When
	h := start(t, runtime.DefaultConfig(), runtime.Storage{Viewers: viewers})

	// Then
	v, ok := h.o.Directory().Get("u9")
	req.True(ok)
	req.Equal(int64(40), v.Points)
	req.Equal(int64(40), h.o.Ledger().Sum("u9"))
	req.Equal(1, h.o.Diagnostics()["viewers"])
}

func TestOrchestrator_Keeps_Per_Viewer_Order_Under_Load(t *testing.T) {
	req := require.New(t)

	// Given
	cfg := runtime.DefaultConfig()
	cfg.Lanes = 4
	cfg.BufferSize = 32768
	cfg.Guard.Threshold = 1_000_000
	cfg.Guard.MinDuplicateRunes = 1_000
	h := start(t, cfg, runtime.Storage{})

	const viewers, perViewer = 40, 50

	// When
	var wg sync.WaitGroup
	for i := 0; i < viewers; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < perViewer; j++ {
				if err := h.o.Ingest(context.Background(), comment(id, fmt.Sprintf("line %d", j))); err != nil {
					t.Error(err)
				}
			}
		}(fmt.Sprintf("viewer-%d", i))
	}
	wg.Wait()

	// Then
	req.Eventually(func() bool { return len(h.sink.chatLines()) == viewers*perViewer }, 10*time.Second, 20*time.Millisecond)
	last := make(map[domain.ViewerID]int)
	lastSeq := make(map[domain.ViewerID]uint64)
	for _, line := range h.sink.chatLines() {
		n, err := strconv.Atoi(strings.TrimPrefix(line.Content, "line "))
		req.NoError(err)
		prev, seen := last[line.ViewerID]
		if seen {
			req.Equal(prev+1, n, "viewer %s out of order", line.ViewerID)
		} else {
			req.Zero(n)
		}
		last[line.ViewerID] = n
		req.Greater(line.Seq, lastSeq[line.ViewerID])
		lastSeq[line.ViewerID] = line.Seq
	}
	req.Len(last, viewers)
}
