package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/store"
)

// ErrSinkNotFound is returned when a sink name is not registered.
var ErrSinkNotFound = errors.New("notify: sink not found") //nolint:gochecknoglobals // sentinel error

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Toast is the user-facing notification of a finished operation.
type Toast struct {
	Feature  store.Feature `json:"feature"`
	Op       remote.Op     `json:"op"`
	Level    Level         `json:"level"`
	Message  string        `json:"message"`
	EntityID string        `json:"entityId,omitempty"`
	At       time.Time     `json:"at"`
}

// Sink delivers toasts somewhere: a websocket hub, the log.
type Sink interface {
	Send(ctx context.Context, t Toast) error
}

// SinkRegistry maps sink names to Sinks.
type SinkRegistry interface {
	Get(name string) (Sink, bool)
	Names() []string
}

// Resetter acknowledges a finished mutation by returning it to idle. The
// acknowledgement is a no-op when gen is no longer the op's latest dispatch.
type Resetter interface {
	Acknowledge(ctx context.Context, feature store.Feature, op remote.Op, gen uint64) error
}

// Notifier turns terminal store transitions into toasts. Successful and
// failed mutations are acknowledged with a reset once the toast is out, so
// the next submit of the same form starts from idle.
type Notifier struct {
	sinks    SinkRegistry
	resetter Resetter
}

func New(sinks SinkRegistry, resetter Resetter) *Notifier {
	return &Notifier{sinks: sinks, resetter: resetter}
}

// ToastFor reports whether n deserves a toast and builds it. Reads only
// toast on failure; mutations toast either way.
func ToastFor(n store.Notice) (Toast, bool) {
	if !n.Terminal() {
		return Toast{}, false
	}
	t := Toast{Feature: n.Feature, Op: n.Op, EntityID: n.EntityID, At: n.At}
	switch {
	case n.Status == remote.StatusFailed:
		t.Level, t.Message = LevelError, n.Error
	case n.Op.Mutation():
		t.Level, t.Message = LevelSuccess, n.Message
	default:
		return Toast{}, false
	}
	if t.Message == "" {
		return Toast{}, false
	}
	return t, true
}

// Notify sends a toast to every registered sink. A failing sink does not
// stop the others.
func (n *Notifier) Notify(ctx context.Context, t Toast) error {
	var errs []error
	for _, name := range n.sinks.Names() {
		if err := n.NotifyVia(ctx, name, t); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify.Notifier.Notify: %w", errors.Join(errs...))
	}
	return nil
}

// NotifyVia sends a toast through one named sink.
func (n *Notifier) NotifyVia(ctx context.Context, name string, t Toast) error {
	sink, ok := n.sinks.Get(name)
	if !ok {
		return fmt.Errorf("notify.Notifier.NotifyVia: sink %q: %w", name, ErrSinkNotFound)
	}
	if err := sink.Send(ctx, t); err != nil {
		return fmt.Errorf("notify.Notifier.NotifyVia: %s: %w", name, err)
	}
	return nil
}

// Handle processes one store notice.
func (n *Notifier) Handle(ctx context.Context, notice store.Notice) {
	t, ok := ToastFor(notice)
	if !ok {
		return
	}
	if err := n.Notify(ctx, t); err != nil {
		log.Warn().Err(err).Str("feature", string(t.Feature)).Msg("toast delivery failed")
	}
	if notice.Op.Mutation() && n.resetter != nil {
		if err := n.resetter.Acknowledge(ctx, notice.Feature, notice.Op, notice.Generation); err != nil {
			log.Debug().Err(err).Str("feature", string(notice.Feature)).Str("op", string(notice.Op)).Msg("acknowledge reset skipped")
		}
	}
}

// Run consumes notices until ctx is done or the channel closes.
func (n *Notifier) Run(ctx context.Context, notices <-chan store.Notice) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case notice, ok := <-notices:
			if !ok {
				return nil
			}
			n.Handle(ctx, notice)
		}
	}
}

// LogSink writes toasts to the process log.
type LogSink struct{}

func (LogSink) Send(_ context.Context, t Toast) error {
	ev := log.Info()
	if t.Level == LevelError {
		ev = log.Warn()
	}
	ev.Str("feature", string(t.Feature)).Str("op", string(t.Op)).Str("entity_id", t.EntityID).Msg(t.Message)
	return nil
}
