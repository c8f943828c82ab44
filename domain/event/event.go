package event

import (
	"stream-lab/domain"
	"time"
)

type Kind string

const (
	KindComment       Kind = "comment"
	KindGift          Kind = "gift"
	KindFollow        Kind = "follow"
	KindLike          Kind = "like"
	KindJoin          Kind = "join"
	KindCommandResult Kind = "command_result"
	KindStateDelta    Kind = "state_delta"
)

// RawKinds are produced by ingestion, everything else is derived.
var RawKinds = []Kind{KindComment, KindGift, KindFollow, KindLike, KindJoin}

func (k Kind) Raw() bool {
	switch k {
	case KindComment, KindGift, KindFollow, KindLike, KindJoin:
		return true
	}
	return false
}

// Event is the single envelope flowing through the bus.
// Seq is assigned by the bus and is the only ordering key, At is advisory.
type Event struct {
	Seq         uint64
	At          time.Time
	Kind        Kind
	ViewerID    domain.ViewerID
	DisplayName string
	Payload     any
}

type Comment struct {
	Text        string
	Moderator   bool
	Broadcaster bool
	VIP         bool
}

type Gift struct {
	Name  string
	Count int
	Value int64
}

type Follow struct{}

type Like struct {
	Count int
}

type Join struct{}

type Status string

const (
	StatusAccepted           Status = "accepted"
	StatusQueued             Status = "queued"
	StatusRejected           Status = "rejected"
	StatusUnknown            Status = "unknown"
	StatusForbidden          Status = "forbidden"
	StatusNotFound           Status = "not_found"
	StatusInvalid            Status = "invalid"
	StatusQueueFull          Status = "queue_full"
	StatusInsufficientPoints Status = "insufficient_points"
	StatusExternalFailure    Status = "external_failure"
	StatusInternal           Status = "internal"
)

type Reason string

const (
	ReasonBanned     Reason = "banned"
	ReasonTimedOut   Reason = "timed_out"
	ReasonRate       Reason = "rate"
	ReasonBannedWord Reason = "banned_word"
	ReasonDuplicate  Reason = "duplicate"
	ReasonFiltered   Reason = "filtered"
	ReasonLimit      Reason = "limit"
)

// CommandResult closes every dispatch attempt, including guard rejections.
type CommandResult struct {
	Command string
	Status  Status
	Reason  Reason
	Message string
	Item    *domain.QueueItem
}

type Topic string

const (
	TopicChatMessage       Topic = "chat_message"
	TopicBotReply          Topic = "bot_reply"
	TopicMusicQueueUpdated Topic = "music_queue_updated"
	TopicTTSQueueUpdated   Topic = "tts_queue_updated"
	TopicQueueItemFailed   Topic = "queue_item_failed"
	TopicPointsChanged     Topic = "points_changed"
	TopicItemPurchased     Topic = "item_purchased"
	TopicViewerFlagged     Topic = "viewer_flagged"
	TopicAutoTimeout       Topic = "auto_timeout"
	TopicStatsUpdated      Topic = "stats_updated"
	TopicGoalUpdated       Topic = "goal_updated"
	TopicAlertTriggered    Topic = "alert_triggered"
)

// StateDelta carries derived state. Data is a full snapshot whenever the topic allows it,
// so replaying a delta is harmless.
type StateDelta struct {
	Topic Topic
	Data  any
}

// ModerationAction is the data of viewer_flagged and auto_timeout deltas.
type ModerationAction struct {
	Action    string          `json:"action"`
	Target    domain.ViewerID `json:"target"`
	Name      string          `json:"name"`
	By        domain.ViewerID `json:"by,omitempty"`
	Until     time.Time       `json:"until,omitempty"`
	Warnings  int             `json:"warnings,omitempty"`
	Automatic bool            `json:"automatic,omitempty"`
}

// PointsChanged is the data of a points_changed delta.
type PointsChanged struct {
	Entry   domain.LedgerEntry `json:"entry"`
	Balance int64              `json:"balance"`
}

// Purchase is the data of an item_purchased delta.
type Purchase struct {
	ViewerID domain.ViewerID `json:"viewer_id"`
	Name     string          `json:"name"`
	Item     domain.ShopItem `json:"item"`
}

// AlertFired is the data of an alert_triggered delta.
type AlertFired struct {
	Key    string            `json:"key"`
	Alert  domain.SoundAlert `json:"alert"`
	Viewer string            `json:"viewer"`
	Count  int               `json:"count,omitempty"`
}

// BotReply is a message the bot wants to say in chat.
type BotReply struct {
	To   domain.ViewerID `json:"to,omitempty"`
	Text string          `json:"text"`
}

func NewDelta(topic Topic, data any) Event {
	return Event{Kind: KindStateDelta, Payload: StateDelta{Topic: topic, Data: data}}
}

func NewResult(issuer domain.ViewerID, name string, res CommandResult) Event {
	return Event{Kind: KindCommandResult, ViewerID: issuer, DisplayName: name, Payload: res}
}

// Delta returns the state delta carried by e, if any.
func (e Event) Delta() (StateDelta, bool) {
	d, ok := e.Payload.(StateDelta)
	return d, ok && e.Kind == KindStateDelta
}

// Result returns the command result carried by e, if any.
func (e Event) Result() (CommandResult, bool) {
	r, ok := e.Payload.(CommandResult)
	return r, ok && e.Kind == KindCommandResult
}
