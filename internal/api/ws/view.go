package ws

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/table"
)

// Collection is what a live list view needs from a feature slice.
// *feature.Slice satisfies this interface.
type Collection[T domain.Entity] interface {
	table.Source
	State(ctx context.Context) (remote.State[T], error)
	ResetAll(ctx context.Context) error
}

// View erases the entity type of a Collection.
type View interface {
	Source() table.Source
	List(ctx context.Context) (any, error)
	Reset(ctx context.Context) error
}

type collectionView[T domain.Entity] struct {
	c Collection[T]
}

func NewView[T domain.Entity](c Collection[T]) View {
	return collectionView[T]{c: c}
}

func (v collectionView[T]) Source() table.Source { return v.c }

func (v collectionView[T]) List(ctx context.Context) (any, error) {
	st, err := v.c.State(ctx)
	if err != nil {
		return nil, err
	}
	return st.List, nil
}

func (v collectionView[T]) Reset(ctx context.Context) error { return v.c.ResetAll(ctx) }

// Views serves /ws/views/{feature}: one table controller per connection,
// driven by client intents and pushing location and list snapshots back.
type Views struct {
	accept   *websocket.AcceptOptions
	defaults table.Defaults
	debounce time.Duration

	mu    sync.RWMutex
	views map[string]View
}

func NewViews(originPatterns []string, defaults table.Defaults, debounce time.Duration) *Views {
	return &Views{
		accept:   &websocket.AcceptOptions{OriginPatterns: originPatterns},
		defaults: defaults,
		debounce: debounce,
		views:    make(map[string]View),
	}
}

func (vs *Views) Register(name string, v View) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.views[name] = v
}

// Names lists registered views in a stable order.
func (vs *Views) Names() []string {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	out := make([]string, 0, len(vs.views))
	for name := range vs.views {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (vs *Views) get(name string) (View, bool) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	v, ok := vs.views[name]
	return v, ok
}

func (vs *Views) ServeView(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "feature")
	view, ok := vs.get(name)
	if !ok {
		http.Error(w, "unknown feature", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, vs.accept)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	logger := log.With().Str("feature", name).Logger()

	push := func(ev ViewEvent) {
		ev.Timestamp = time.Now().UTC()
		if werr := wsjson.Write(ctx, conn, ev); werr != nil {
			logger.Debug().Err(werr).Str("type", ev.Type).Msg("websocket write")
			cancel()
		}
	}

	ctrl := table.NewController(view.Source(), vs.defaults,
		table.WithDebounce(vs.debounce),
		table.WithReplacer(table.ReplacerFunc(func(q string) {
			push(ViewEvent{Type: TypeLocation, Location: q})
		})),
		table.OnFetched(func(v table.ViewState, tr remote.Transition) {
			list, lerr := view.List(ctx)
			if lerr != nil {
				push(ViewEvent{Type: TypeError, Error: lerr.Error()})
				return
			}
			push(ViewEvent{Type: TypeSnapshot, View: &v, List: list, Transition: &tr})
		}),
	)

	defer func() {
		ctrl.Unmount()
		if rerr := view.Reset(context.WithoutCancel(ctx)); rerr != nil {
			logger.Debug().Err(rerr).Msg("view reset on close")
		}
	}()

	if _, err := ctrl.Mount(ctx, r.URL.Query()); err != nil {
		push(ViewEvent{Type: TypeError, Error: err.Error()})
	}

	for {
		var in Intent
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				_ = conn.Close(websocket.StatusNormalClosure, "")
			}
			return
		}
		if err := vs.apply(ctx, ctrl, in, push); err != nil {
			push(ViewEvent{Type: TypeError, Error: err.Error()})
		}
	}
}

var errUnknownIntent = errors.New("ws: unknown intent")

func (vs *Views) apply(ctx context.Context, ctrl *table.Controller, in Intent, push func(ViewEvent)) error {
	var err error
	switch in.Type {
	case IntentSearch:
		ctrl.TypeSearch(in.Value)
	case IntentFlush:
		ctrl.FlushSearch()
	case IntentPage:
		_, err = ctrl.SetPage(ctx, in.Page)
	case IntentLimit:
		_, err = ctrl.SetLimit(ctx, in.Limit)
	case IntentSort:
		_, err = ctrl.SetSort(ctx, in.Sort)
	case IntentDelete:
		ctrl.RequestDelete(in.ID)
		push(ViewEvent{Type: TypePending, ID: ctrl.PendingDelete()})
	case IntentCancelDelete:
		ctrl.CancelDelete()
		push(ViewEvent{Type: TypePending})
	case IntentConfirmDelete:
		var tr remote.Transition
		tr, err = ctrl.ConfirmDelete(ctx)
		if err == nil {
			push(ViewEvent{Type: TypeDeleted, Transition: &tr, ID: tr.EntityID})
		}
	default:
		err = errUnknownIntent
	}
	return err
}
