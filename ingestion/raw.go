// Package ingestion turns platform traffic into raw events for the orchestrator.
package ingestion

import (
	"fmt"
	"stream-lab/domain"
	"stream-lab/domain/event"
	"stream-lab/errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate rejects raw events the core can't represent.
func Validate(raw domain.RawEvent) error {
	if err := validate.Struct(raw); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrInvalidArgument, err.Error())
	}
	return nil
}

// ToEvent validates raw and builds the bus event. Seq is left to the bus.
func ToEvent(raw domain.RawEvent) (event.Event, error) {
	if err := Validate(raw); err != nil {
		return event.Event{}, err
	}
	evt := event.Event{
		At:          raw.At,
		Kind:        event.Kind(raw.Kind),
		ViewerID:    domain.ViewerID(strings.TrimSpace(raw.ViewerID)),
		DisplayName: strings.TrimSpace(raw.DisplayName),
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	switch evt.Kind {
	case event.KindComment:
		evt.Payload = event.Comment{Text: raw.Text, Moderator: raw.Moderator, Broadcaster: raw.Broadcaster, VIP: raw.VIP}
	case event.KindGift:
		count := raw.Count
		if count <= 0 {
			count = 1
		}
		evt.Payload = event.Gift{Name: raw.GiftName, Count: count, Value: raw.Value}
	case event.KindFollow:
		evt.Payload = event.Follow{}
	case event.KindLike:
		count := raw.Count
		if count <= 0 {
			count = 1
		}
		evt.Payload = event.Like{Count: count}
	case event.KindJoin:
		evt.Payload = event.Join{}
	}
	return evt, nil
}
