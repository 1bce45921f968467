// Package notify carries server events to connected clients. Producers depend
// on the Notifier interface; the websocket hub and the Redis bus implement it.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Event names broadcast by the service.
const (
	EventWeeklyRewards  = "weekly_rewards"
	EventLevelUps       = "level_ups"
	EventBadgesAwarded  = "badges_awarded"
	EventInventoryAlert = "inventory_alert"
	EventSaleRecorded   = "sale_recorded"
)

type Notifier interface {
	Notify(ctx context.Context, event string, data any) error
}

// Envelope is the JSON frame delivered to clients.
type Envelope struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	SentAt time.Time       `json:"sent_at"`
}

func NewEnvelope(event string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: raw, SentAt: time.Now().UTC()}, nil
}

type nop struct{}

func (nop) Notify(context.Context, string, any) error { return nil }

// Nop discards every event.
var Nop Notifier = nop{}

type multi []Notifier

func (m multi) Notify(ctx context.Context, event string, data any) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Multi delivers each event to every notifier and joins their errors.
func Multi(notifiers ...Notifier) Notifier {
	return multi(notifiers)
}
