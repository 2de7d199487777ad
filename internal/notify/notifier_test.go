package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/backoffice/internal/notify"
	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/store"
)

// --- mocks ---

type mockSink struct {
	mu     sync.Mutex
	toasts []notify.Toast
	err    error
}

func (m *mockSink) Send(_ context.Context, t notify.Toast) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toasts = append(m.toasts, t)
	return nil
}

func (m *mockSink) sent() []notify.Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Toast(nil), m.toasts...)
}

type resetCall struct {
	feature store.Feature
	op      remote.Op
	gen     uint64
}

type mockResetter struct {
	mu    sync.Mutex
	calls []resetCall
}

func (m *mockResetter) Acknowledge(_ context.Context, feature store.Feature, op remote.Op, gen uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, resetCall{feature: feature, op: op, gen: gen})
	return nil
}

func (m *mockResetter) made() []resetCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]resetCall(nil), m.calls...)
}

func notice(feature store.Feature, tr remote.Transition) store.Notice {
	return store.Notice{Feature: feature, Transition: tr, At: time.Unix(1700000000, 0)}
}

// --- ToastFor tests ---

func TestToastFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		tr    remote.Transition
		want  bool
		level notify.Level
	}{
		{"create_succeeded", remote.Transition{Op: remote.OpCreate, Status: remote.StatusSucceeded, Message: "Creado"}, true, notify.LevelSuccess},
		{"delete_failed", remote.Transition{Op: remote.OpDelete, Status: remote.StatusFailed, Error: "No"}, true, notify.LevelError},
		{"list_failed", remote.Transition{Op: remote.OpList, Status: remote.StatusFailed, Error: "No"}, true, notify.LevelError},
		{"list_succeeded_is_silent", remote.Transition{Op: remote.OpList, Status: remote.StatusSucceeded}, false, ""},
		{"loading_is_silent", remote.Transition{Op: remote.OpCreate, Status: remote.StatusLoading}, false, ""},
		{"stale_is_silent", remote.Transition{Op: remote.OpCreate, Status: remote.StatusSucceeded, Message: "x", Stale: true}, false, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok := notify.ToastFor(notice(store.FeatureCustomers, tc.tr))
			assert.Equal(t, tc.want, ok)
			if tc.want {
				assert.Equal(t, tc.level, got.Level)
				assert.Equal(t, store.FeatureCustomers, got.Feature)
			}
		})
	}
}

// --- Notify tests ---

func TestNotify(t *testing.T) {
	t.Parallel()

	toast := notify.Toast{Feature: store.FeatureUsers, Op: remote.OpUpdate, Level: notify.LevelSuccess, Message: "ok"}

	t.Run("fans out to every sink", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		a, b := &mockSink{}, &mockSink{}
		reg := notify.NewRegistry()
		reg.Register("a", a)
		reg.Register("b", b)

		require.NoError(t, notify.New(reg, nil).Notify(ctx, toast))
		assert.Len(t, a.sent(), 1)
		assert.Len(t, b.sent(), 1)
	})

	t.Run("failing sink does not stop the others", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		bad, good := &mockSink{err: errors.New("closed")}, &mockSink{}
		reg := notify.NewRegistry()
		reg.Register("bad", bad)
		reg.Register("good", good)

		err := notify.New(reg, nil).Notify(ctx, toast)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "closed")
		assert.Len(t, good.sent(), 1)
	})

	t.Run("unknown sink returns ErrSinkNotFound", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		err := notify.New(notify.NewRegistry(), nil).NotifyVia(ctx, "ws", toast)
		require.ErrorIs(t, err, notify.ErrSinkNotFound)
	})
}

// --- Handle tests ---

func TestHandle(t *testing.T) {
	t.Parallel()

	t.Run("mutation is toasted then acknowledged", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		sink, rs := &mockSink{}, &mockResetter{}
		reg := notify.NewRegistry()
		reg.Register("ws", sink)
		n := notify.New(reg, rs)

		n.Handle(ctx, notice(store.FeatureProviders, remote.Transition{Op: remote.OpCreate, Generation: 3, Status: remote.StatusSucceeded, Message: "Proveedor creado", EntityID: "p1"}))

		sent := sink.sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "Proveedor creado", sent[0].Message)
		assert.Equal(t, "p1", sent[0].EntityID)
		assert.Equal(t, []resetCall{{feature: store.FeatureProviders, op: remote.OpCreate, gen: 3}}, rs.made())
	})

	t.Run("failed read is toasted but not reset", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		sink, rs := &mockSink{}, &mockResetter{}
		reg := notify.NewRegistry()
		reg.Register("ws", sink)
		n := notify.New(reg, rs)

		n.Handle(ctx, notice(store.FeatureUsers, remote.Transition{Op: remote.OpList, Status: remote.StatusFailed, Error: "boom"}))

		assert.Len(t, sink.sent(), 1)
		assert.Empty(t, rs.made())
	})

	t.Run("run stops when channel closes", func(t *testing.T) {
		t.Parallel()

		sink := &mockSink{}
		reg := notify.NewRegistry()
		reg.Register("log", sink)
		n := notify.New(reg, nil)

		ch := make(chan store.Notice, 2)
		ch <- notice(store.FeatureSurveys, remote.Transition{Op: remote.OpDelete, Status: remote.StatusSucceeded, Message: "bye"})
		close(ch)

		require.NoError(t, n.Run(t.Context(), ch))
		assert.Len(t, sink.sent(), 1)
	})
}
