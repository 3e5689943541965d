package caliper

import (
	"context"

	"github.com/rs/zerolog"

	sensor "github.com/bjornpagen/nice-sub010/pkg/caliper"
)

type EventSender interface {
	Send(ctx context.Context, events ...sensor.Event) error
}

// Emitter publishes TimeSpent events. Send failures are logged only.
type Emitter struct {
	Sender EventSender
	Now    Clock

	log zerolog.Logger
}

func NewEmitter(s EventSender, log zerolog.Logger) *Emitter {
	return &Emitter{Sender: s, log: log.With().Str("component", "caliper_emitter").Logger()}
}

func (e *Emitter) EmitTimeSpent(ctx context.Context, ts sensor.TimeSpent) {
	if e == nil || e.Sender == nil {
		return
	}
	if ts.At.IsZero() && e.Now != nil {
		ts.At = e.Now()
	}
	ev := sensor.NewTimeSpentEvent(ts)
	if err := e.Sender.Send(ctx, ev); err != nil {
		e.log.Warn().Err(err).Str("event", ev.ID).Str("activity", ts.ActivityID).Msg("caliper time-spent event not delivered")
	}
}
