package feature_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/feature"
	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/session"
	"github.com/gosuda/backoffice/internal/store"
	"github.com/gosuda/backoffice/internal/upstream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- fakes ---

// fakeCustomers is an in-memory customers namespace. listGate, when set,
// blocks List until a value is received or the context ends.
type fakeCustomers struct {
	mu       sync.Mutex
	items    map[string]domain.Customer
	order    []string
	nextID   int
	calls    atomic.Int32
	listGate chan struct{}
	failWith error
}

func newFakeCustomers() *fakeCustomers {
	return &fakeCustomers{items: map[string]domain.Customer{}}
}

func (f *fakeCustomers) List(ctx context.Context, p upstream.ListParams) (upstream.Page[domain.Customer], error) {
	f.calls.Add(1)
	if f.listGate != nil {
		select {
		case <-f.listGate:
		case <-ctx.Done():
			return upstream.Page[domain.Customer]{}, ctx.Err()
		}
	}
	if f.failWith != nil {
		return upstream.Page[domain.Customer]{}, f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]domain.Customer, 0, len(f.order))
	for _, id := range f.order {
		items = append(items, f.items[id])
	}
	return upstream.Page[domain.Customer]{
		Items:      items,
		Pagination: &domain.Pagination{Page: max(1, p.Page), PerPage: p.Limit, Total: len(items), TotalPages: 1},
	}, nil
}

func (f *fakeCustomers) Get(_ context.Context, id string) (upstream.Result[domain.Customer], error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return upstream.Result[domain.Customer]{}, &upstream.APIError{Status: 404}
	}
	return upstream.Result[domain.Customer]{Entry: c}, nil
}

func (f *fakeCustomers) Create(_ context.Context, c domain.Customer) (upstream.Result[domain.Customer], error) {
	f.calls.Add(1)
	if f.failWith != nil {
		return upstream.Result[domain.Customer]{}, f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = "c" + strconv.Itoa(f.nextID)
	f.items[c.ID] = c
	f.order = append([]string{c.ID}, f.order...)
	return upstream.Result[domain.Customer]{Entry: c, Message: "Cliente creado"}, nil
}

func (f *fakeCustomers) Update(_ context.Context, id string, c domain.Customer) (upstream.Result[domain.Customer], error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = id
	f.items[id] = c
	return upstream.Result[domain.Customer]{Entry: c}, nil
}

func (f *fakeCustomers) Delete(_ context.Context, id string) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	for i, cur := range f.order {
		if cur == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return "", nil
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New()
	t.Cleanup(st.Close)
	return st
}

func customers(t *testing.T, api feature.Collection[domain.Customer]) (*feature.Slice[domain.Customer], *store.Store) {
	t.Helper()
	st := newStore(t)
	return feature.NewSlice(store.FeatureCustomers, st, store.CustomersLens, api, feature.NewMessages(feature.LocaleES)), st
}

// --- slice tests ---

func TestSlice_CreateThenFetchDetail(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	api := newFakeCustomers()
	s, _ := customers(t, api)

	tr, err := s.Create(ctx, domain.Customer{Name: "Acme"})
	require.NoError(t, err)
	require.Equal(t, remote.StatusSucceeded, tr.Status)
	assert.Equal(t, "Cliente creado", tr.Message)
	id := tr.EntityID
	require.NotEmpty(t, id)

	tr, err = s.FetchDetail(ctx, id)
	require.NoError(t, err)
	require.Equal(t, remote.StatusSucceeded, tr.Status)

	state, err := s.State(ctx)
	require.NoError(t, err)
	require.NotNil(t, state.Detail.Entry)
	assert.Equal(t, "Acme", state.Detail.Entry.Name)
	assert.Equal(t, id, state.Detail.ID)
	assert.Equal(t, id, state.Create.LastID)
}

func TestSlice_ListPatchedByMutations(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	api := newFakeCustomers()
	s, _ := customers(t, api)

	_, err := s.FetchCollection(ctx, upstream.ListParams{Page: 1, Limit: 12})
	require.NoError(t, err)

	created, err := s.Create(ctx, domain.Customer{Name: "First"})
	require.NoError(t, err)
	_, err = s.Update(ctx, created.EntityID, domain.Customer{Name: "Renamed"})
	require.NoError(t, err)

	state, err := s.State(ctx)
	require.NoError(t, err)
	require.Len(t, state.List.Items, 1)
	assert.Equal(t, "Renamed", state.List.Items[0].Name)
	assert.Equal(t, "Registro actualizado", state.Update.Message)

	_, err = s.Delete(ctx, created.EntityID)
	require.NoError(t, err)
	state, err = s.State(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.List.Items)
	assert.Equal(t, remote.StatusSucceeded, state.Delete.Status)
}

func TestSlice_ValidationNeverReachesNetwork(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	api := newFakeCustomers()
	s, _ := customers(t, api)

	_, err := s.Create(ctx, domain.Customer{Email: "not-an-email"})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, api.calls.Load())

	state, err := s.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, remote.StatusIdle, state.Create.Status)
}

func TestSlice_ErrorMessages(t *testing.T) {
	t.Parallel()

	t.Run("server message wins", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		api := newFakeCustomers()
		api.failWith = &upstream.APIError{Status: 422, Message: "RFC duplicado"}
		s, _ := customers(t, api)

		tr, err := s.Create(ctx, domain.Customer{Name: "Acme"})
		require.NoError(t, err)
		assert.Equal(t, remote.StatusFailed, tr.Status)
		assert.Equal(t, "RFC duplicado", tr.Error)
	})

	t.Run("localized fallback", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		api := newFakeCustomers()
		api.failWith = errors.New("connection refused")
		s, _ := customers(t, api)

		_, err := s.FetchCollection(ctx, upstream.ListParams{})
		require.NoError(t, err)
		state, err := s.State(ctx)
		require.NoError(t, err)
		assert.Equal(t, remote.StatusFailed, state.List.Status)
		assert.Equal(t, "No se pudo cargar la lista", state.List.Error)
		assert.Empty(t, state.List.Items)
	})

	t.Run("missing auth", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		api := newFakeCustomers()
		api.failWith = domain.ErrMissingAuth
		st := newStore(t)
		s := feature.NewSlice(store.FeatureCustomers, st, store.CustomersLens, feature.Collection[domain.Customer](api), feature.NewMessages(feature.LocaleEN))

		tr, err := s.FetchCollection(ctx, upstream.ListParams{})
		require.NoError(t, err)
		assert.Equal(t, "Your session expired, please sign in again", tr.Error)
	})
}

func TestSlice_SupersededFetchIsCancelledAndDiscarded(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	api := newFakeCustomers()
	api.listGate = make(chan struct{})
	s, _ := customers(t, api)

	first := make(chan remote.Transition, 1)
	go func() {
		tr, _ := s.FetchCollection(ctx, upstream.ListParams{Page: 1})
		first <- tr
	}()
	require.Eventually(t, func() bool { return api.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan remote.Transition, 1)
	go func() {
		tr, _ := s.FetchCollection(ctx, upstream.ListParams{Page: 2})
		second <- tr
	}()

	// The first request is cancelled by the second dispatch; its failure is stale.
	tr1 := <-first
	assert.True(t, tr1.Stale)

	close(api.listGate)
	tr2 := <-second
	assert.False(t, tr2.Stale)
	assert.Equal(t, remote.StatusSucceeded, tr2.Status)

	state, err := s.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, remote.StatusSucceeded, state.List.Status)
	assert.Empty(t, state.List.Error)
}

func TestSlice_ResetDropsLateResponse(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	api := newFakeCustomers()
	api.listGate = make(chan struct{})
	s, _ := customers(t, api)

	done := make(chan remote.Transition, 1)
	go func() {
		tr, _ := s.FetchCollection(ctx, upstream.ListParams{})
		done <- tr
	}()
	require.Eventually(t, func() bool { return api.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := s.Reset(ctx, remote.OpList)
	require.NoError(t, err)

	tr := <-done
	assert.True(t, tr.Stale)
	state, err := s.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, remote.StatusIdle, state.List.Status)
}

func TestSlice_AcknowledgeOnlyLatestCreate(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	s, _ := customers(t, newFakeCustomers())
	first, err := s.Create(ctx, domain.Customer{Name: "Acme"})
	require.NoError(t, err)
	second, err := s.Create(ctx, domain.Customer{Name: "Globex"})
	require.NoError(t, err)
	require.Greater(t, second.Generation, first.Generation)

	tr, err := s.Acknowledge(ctx, remote.OpCreate, first.Generation)
	require.NoError(t, err)
	assert.True(t, tr.Stale)
	state, err := s.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, remote.StatusSucceeded, state.Create.Status)
	assert.Equal(t, second.EntityID, state.Create.LastID)

	tr, err = s.Acknowledge(ctx, remote.OpCreate, second.Generation)
	require.NoError(t, err)
	assert.False(t, tr.Stale)
	state, err = s.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, remote.StatusIdle, state.Create.Status)
	assert.Empty(t, state.Create.LastID)
}

func TestSlice_UploadWithoutUploader(t *testing.T) {
	t.Parallel()

	s, _ := customers(t, newFakeCustomers())
	_, err := s.UploadFiles(t.Context(), nil)
	require.ErrorIs(t, err, feature.ErrNoUploader)
}

// --- roles ---

type fakeRoles struct {
	calls   atomic.Int32
	options []domain.RoleOption
	err     error
	gate    chan struct{}
}

func (f *fakeRoles) Roles(context.Context) ([]domain.RoleOption, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.options, f.err
}

func TestRoles(t *testing.T) {
	t.Parallel()

	t.Run("zero entries fall back to local roles", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		r := feature.NewRoles(newStore(t), &fakeRoles{}, feature.NewMessages(feature.LocaleES))
		got, err := r.Fetch(ctx)
		require.NoError(t, err)
		assert.True(t, got.Fallback)
		assert.Equal(t, domain.DefaultRoles(), got.Options)
		assert.Equal(t, remote.StatusSucceeded, got.Status)
	})

	t.Run("backend roles are kept", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		opts := []domain.RoleOption{{Value: "auditor", Label: "Auditor"}}
		r := feature.NewRoles(newStore(t), &fakeRoles{options: opts}, feature.NewMessages(feature.LocaleES))
		got, err := r.Options(ctx)
		require.NoError(t, err)
		assert.Equal(t, opts, got)
	})

	t.Run("failure falls back and records the error", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		r := feature.NewRoles(newStore(t), &fakeRoles{err: errors.New("down")}, feature.NewMessages(feature.LocaleEN))
		got, err := r.Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, remote.StatusFailed, got.Status)
		assert.Equal(t, "Could not load roles", got.Error)
		assert.NotEmpty(t, got.Options)
	})

	t.Run("concurrent fetches share one request", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		api := &fakeRoles{gate: make(chan struct{})}
		r := feature.NewRoles(newStore(t), api, feature.NewMessages(feature.LocaleES))

		var wg sync.WaitGroup
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = r.Fetch(ctx)
			}()
		}
		require.Eventually(t, func() bool { return api.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		close(api.gate)
		wg.Wait()
		assert.Equal(t, int32(1), api.calls.Load())
	})
}

// --- auth ---

type memTokens struct {
	mu    sync.Mutex
	token string
}

func (m *memTokens) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *memTokens) Save(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *memTokens) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

func TestAuth(t *testing.T) {
	t.Parallel()

	login := func(_ context.Context, email, password string) (string, error) {
		if password != "secret" {
			return "", &upstream.APIError{Status: 401}
		}
		return "opaque-" + email, nil
	}

	t.Run("login then logout", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		tokens := &memTokens{}
		src := session.NewSource(tokens)
		st := newStore(t)
		a := feature.NewAuth(st, src, login, feature.NewMessages(feature.LocaleES))

		got, err := a.Login(ctx, " ops@example.com ", "secret")
		require.NoError(t, err)
		assert.True(t, got.Authenticated)
		assert.Equal(t, "opaque-ops@example.com", tokens.token)

		tok, err := src.Token()
		require.NoError(t, err)
		assert.Equal(t, "opaque-ops@example.com", tok.AccessToken)

		require.NoError(t, a.Logout(ctx))
		assert.Empty(t, tokens.token)
		state, err := a.State(ctx)
		require.NoError(t, err)
		assert.False(t, state.Authenticated)
	})

	t.Run("rejected login is recorded", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		a := feature.NewAuth(newStore(t), session.NewSource(&memTokens{}), login, feature.NewMessages(feature.LocaleES))
		got, err := a.Login(ctx, "ops@example.com", "nope")
		require.NoError(t, err)
		assert.False(t, got.Authenticated)
		assert.Equal(t, remote.StatusFailed, got.Status)
		assert.Equal(t, "Correo o contraseña incorrectos", got.Error)
	})

	t.Run("empty credentials fail validation", func(t *testing.T) {
		t.Parallel()

		a := feature.NewAuth(newStore(t), session.NewSource(&memTokens{}), login, feature.NewMessages(feature.LocaleES))
		_, err := a.Login(t.Context(), "", "")
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("rehydrate restores stored token", func(t *testing.T) {
		t.Parallel()
		ctx := t.Context()

		a := feature.NewAuth(newStore(t), session.NewSource(&memTokens{token: "opaque"}), login, feature.NewMessages(feature.LocaleES))
		got, err := a.Rehydrate(ctx)
		require.NoError(t, err)
		assert.True(t, got.Authenticated)
	})
}

func TestParseLocale(t *testing.T) {
	t.Parallel()

	assert.Equal(t, feature.LocaleEN, feature.ParseLocale("en-US"))
	assert.Equal(t, feature.LocaleES, feature.ParseLocale("es_MX"))
	assert.Equal(t, feature.LocaleES, feature.ParseLocale(""))
}
