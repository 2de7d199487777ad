// Package feature binds each region of the application state to its REST
// namespace. Every operation dispatches Started, calls the backend and
// dispatches the completion carrying the generation it started with.
package feature

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/store"
	"github.com/gosuda/backoffice/internal/upstream"
)

// Collection is the REST surface a Slice drives. *upstream.Resource
// implements it.
type Collection[T domain.Entity] interface {
	List(ctx context.Context, p upstream.ListParams) (upstream.Page[T], error)
	Get(ctx context.Context, id string) (upstream.Result[T], error)
	Create(ctx context.Context, payload T) (upstream.Result[T], error)
	Update(ctx context.Context, id string, payload T) (upstream.Result[T], error)
	Delete(ctx context.Context, id string) (string, error)
}

// Uploader sends files to the upload endpoint.
type Uploader interface {
	Upload(ctx context.Context, files []upstream.FilePart) ([]domain.UploadedFile, string, error)
}

// validatable entities are checked before Create and Update reach the network.
type validatable interface {
	Validate() error
}

type inflight struct {
	seq    uint64
	cancel context.CancelFunc
}

// Slice is one feature's set of operations over its state region.
type Slice[T domain.Entity] struct {
	feature  store.Feature
	store    *store.Store
	lens     store.Lens[T]
	api      Collection[T]
	uploader Uploader
	msgs     *Messages

	mu      sync.Mutex
	seq     uint64
	pending map[remote.Op]inflight
}

type SliceOption[T domain.Entity] func(*Slice[T])

func WithUploader[T domain.Entity](u Uploader) SliceOption[T] {
	return func(s *Slice[T]) { s.uploader = u }
}

func NewSlice[T domain.Entity](feature store.Feature, st *store.Store, lens store.Lens[T], api Collection[T], msgs *Messages, opts ...SliceOption[T]) *Slice[T] {
	s := &Slice[T]{
		feature: feature,
		store:   st,
		lens:    lens,
		api:     api,
		msgs:    msgs,
		pending: make(map[remote.Op]inflight),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Slice[T]) Feature() store.Feature {
	return s.feature
}

// State returns a copy of the slice's region.
func (s *Slice[T]) State(ctx context.Context) (remote.State[T], error) {
	var out remote.State[T]
	err := s.store.View(ctx, func(st store.AppState) { out = *s.lens(&st) })
	if err != nil {
		return out, fmt.Errorf("feature.Slice.State: %w", err)
	}
	return out, nil
}

// Pagination returns the pagination of the last successful list fetch.
func (s *Slice[T]) Pagination(ctx context.Context) (*domain.Pagination, error) {
	st, err := s.State(ctx)
	if err != nil {
		return nil, err
	}
	return st.List.Pagination, nil
}

// begin dispatches Started and returns the context the backend call must use.
// For list and detail a new dispatch cancels the one still in flight; the
// lock makes cancel-then-start atomic so generations and cancellation agree.
func (s *Slice[T]) begin(ctx context.Context, op remote.Op, id string) (context.Context, uint64, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelReads(op)

	tr, err := store.Apply(ctx, s.store, s.feature, s.lens, remote.Started[T]{Op: op, ID: id})
	if err != nil {
		return nil, 0, nil, err
	}

	callCtx, cancel := context.WithCancel(ctx)
	s.seq++
	seq := s.seq
	s.pending[op] = inflight{seq: seq, cancel: cancel}

	release := func() {
		cancel()
		s.mu.Lock()
		if cur, ok := s.pending[op]; ok && cur.seq == seq {
			delete(s.pending, op)
		}
		s.mu.Unlock()
	}
	return callCtx, tr.Generation, release, nil
}

// finish dispatches a completion. It must land even when the caller's context
// was cancelled after the backend answered.
func (s *Slice[T]) finish(ctx context.Context, ev remote.Event[T]) (remote.Transition, error) {
	return store.Apply(context.WithoutCancel(ctx), s.store, s.feature, s.lens, ev)
}

func (s *Slice[T]) fail(ctx context.Context, op remote.Op, gen uint64, key MessageKey, err error) (remote.Transition, error) {
	msg := s.msgs.Describe(err, key)
	if errors.Is(err, context.Canceled) {
		log.Debug().Str("feature", string(s.feature)).Str("op", string(op)).Uint64("generation", gen).Msg("request cancelled")
	} else {
		log.Warn().Err(err).Str("feature", string(s.feature)).Str("op", string(op)).Uint64("generation", gen).Msg("operation failed")
	}
	return s.finish(ctx, remote.Failed[T]{Op: op, Gen: gen, Message: msg})
}

// FetchCollection loads one page. The returned transition reports the
// outcome; err is only set when the store itself is unavailable.
func (s *Slice[T]) FetchCollection(ctx context.Context, p upstream.ListParams) (remote.Transition, error) {
	callCtx, gen, release, err := s.begin(ctx, remote.OpList, "")
	if err != nil {
		return remote.Transition{}, fmt.Errorf("feature.Slice.FetchCollection: %w", err)
	}
	defer release()

	page, err := s.api.List(callCtx, p)
	if err != nil {
		return s.fail(ctx, remote.OpList, gen, MsgList, err)
	}
	return s.finish(ctx, remote.ListLoaded[T]{Gen: gen, Items: page.Items, Pagination: page.Pagination})
}

func (s *Slice[T]) FetchDetail(ctx context.Context, id string) (remote.Transition, error) {
	callCtx, gen, release, err := s.begin(ctx, remote.OpDetail, id)
	if err != nil {
		return remote.Transition{}, fmt.Errorf("feature.Slice.FetchDetail: %w", err)
	}
	defer release()

	res, err := s.api.Get(callCtx, id)
	if err != nil {
		return s.fail(ctx, remote.OpDetail, gen, MsgDetail, err)
	}
	return s.finish(ctx, remote.DetailLoaded[T]{Gen: gen, Entry: res.Entry})
}

// Create validates payload locally; a validation failure never reaches the
// network nor the state.
func (s *Slice[T]) Create(ctx context.Context, payload T) (remote.Transition, error) {
	if err := s.check(payload); err != nil {
		return remote.Transition{}, fmt.Errorf("feature.Slice.Create: %w", err)
	}
	callCtx, gen, release, err := s.begin(ctx, remote.OpCreate, "")
	if err != nil {
		return remote.Transition{}, fmt.Errorf("feature.Slice.Create: %w", err)
	}
	defer release()

	res, err := s.api.Create(callCtx, payload)
	if err != nil {
		return s.fail(ctx, remote.OpCreate, gen, MsgCreate, err)
	}
	return s.finish(ctx, remote.Created[T]{Gen: gen, Entry: res.Entry, Message: s.msgs.Success(res.Message, MsgCreated)})
}

func (s *Slice[T]) Update(ctx context.Context, id string, payload T) (remote.Transition, error) {
	if err := s.check(payload); err != nil {
		return remote.Transition{}, fmt.Errorf("feature.Slice.Update: %w", err)
	}
	callCtx, gen, release, err := s.begin(ctx, remote.OpUpdate, id)
	if err != nil {
		return remote.Transition{}, fmt.Errorf("feature.Slice.Update: %w", err)
	}
	defer release()

	res, err := s.api.Update(callCtx, id, payload)
	if err != nil {
		return s.fail(ctx, remote.OpUpdate, gen, MsgUpdate, err)
	}
	return s.finish(ctx, remote.Updated[T]{Gen: gen, Entry: res.Entry, Message: s.msgs.Success(res.Message, MsgUpdated)})
}

func (s *Slice[T]) Delete(ctx context.Context, id string) (remote.Transition, error) {
	callCtx, gen, release, err := s.begin(ctx, remote.OpDelete, id)
	if err != nil {
		return remote.Transition{}, fmt.Errorf("feature.Slice.Delete: %w", err)
	}
	defer release()

	msg, err := s.api.Delete(callCtx, id)
	if err != nil {
		return s.fail(ctx, remote.OpDelete, gen, MsgDelete, err)
	}
	return s.finish(ctx, remote.Deleted[T]{Gen: gen, ID: id, Message: s.msgs.Success(msg, MsgDeleted)})
}

// ErrNoUploader is returned by UploadFiles on slices built without one.
var ErrNoUploader = errors.New("feature: uploads not supported")

func (s *Slice[T]) UploadFiles(ctx context.Context, files []upstream.FilePart) (remote.Transition, error) {
	if s.uploader == nil {
		return remote.Transition{}, fmt.Errorf("feature.Slice.UploadFiles: %w", ErrNoUploader)
	}
	callCtx, gen, release, err := s.begin(ctx, remote.OpUpload, "")
	if err != nil {
		return remote.Transition{}, fmt.Errorf("feature.Slice.UploadFiles: %w", err)
	}
	defer release()

	uploaded, msg, err := s.uploader.Upload(callCtx, files)
	if err != nil {
		return s.fail(ctx, remote.OpUpload, gen, MsgUpload, err)
	}
	return s.finish(ctx, remote.Uploaded[T]{Gen: gen, Files: uploaded, Message: s.msgs.Success(msg, MsgUploaded)})
}

// Reset returns op to idle. An in-flight list or detail request is cancelled;
// mutations are left to finish since the server may already have committed
// them, and their late completion still patches the list.
func (s *Slice[T]) Reset(ctx context.Context, op remote.Op) (remote.Transition, error) {
	if !op.Valid() {
		return remote.Transition{}, fmt.Errorf("feature.Slice.Reset: unknown op %q", op)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelReads(op)
	tr, err := store.Apply(ctx, s.store, s.feature, s.lens, remote.Reset[T]{Op: op})
	if err != nil {
		return tr, fmt.Errorf("feature.Slice.Reset: %w", err)
	}
	return tr, nil
}

// Acknowledge returns a finished mutation to idle unless a newer dispatch of
// the same op has started since gen.
func (s *Slice[T]) Acknowledge(ctx context.Context, op remote.Op, gen uint64) (remote.Transition, error) {
	tr, err := store.Apply(ctx, s.store, s.feature, s.lens, remote.Acknowledge[T]{Op: op, Gen: gen})
	if err != nil {
		return tr, fmt.Errorf("feature.Slice.Acknowledge: %w", err)
	}
	return tr, nil
}

// ResetAll returns the whole region to its initial state.
func (s *Slice[T]) ResetAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelReads(remote.OpList)
	s.cancelReads(remote.OpDetail)
	if _, err := store.Apply(ctx, s.store, s.feature, s.lens, remote.ResetAll[T]{}); err != nil {
		return fmt.Errorf("feature.Slice.ResetAll: %w", err)
	}
	return nil
}

func (s *Slice[T]) check(payload T) error {
	if v, ok := any(payload).(validatable); ok {
		return v.Validate()
	}
	return nil
}

// cancelReads drops the in-flight request of op when it is a read. Callers
// hold s.mu.
func (s *Slice[T]) cancelReads(op remote.Op) {
	if op != remote.OpList && op != remote.OpDetail {
		return
	}
	if prev, ok := s.pending[op]; ok {
		prev.cancel()
		delete(s.pending, op)
	}
}
