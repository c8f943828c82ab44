package projection

import (
	"stream-lab/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimeline_Keeps_Latest_In_Order(t *testing.T) {
	timeline := NewTimeline(3)

	for seq := uint64(1); seq <= 5; seq++ {
		timeline.Append(domain.Envelope{Type: "chat", Topic: "chat_message", Seq: seq})
	}

	recent := timeline.Recent()
	require.Len(t, recent, 3)
	require.Equal(t, uint64(3), recent[0].Seq)
	require.Equal(t, uint64(5), recent[2].Seq)
	require.Equal(t, 3, timeline.Len())
}

func TestTimeline_Default_Capacity(t *testing.T) {
	timeline := NewTimeline(0)
	require.Empty(t, timeline.Recent())

	for seq := uint64(1); seq <= 150; seq++ {
		timeline.Append(domain.Envelope{Seq: seq})
	}

	recent := timeline.Recent()
	require.Len(t, recent, DefaultTimelineSize)
	require.Equal(t, uint64(51), recent[0].Seq)
}
