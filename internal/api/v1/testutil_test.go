package v1_test

import (
	"context"
	"io"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/feature"
	"github.com/gosuda/backoffice/internal/store"
	"github.com/gosuda/backoffice/internal/upstream"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New()
	t.Cleanup(st.Close)
	return st
}

func msgs() *feature.Messages { return feature.NewMessages(feature.LocaleES) }

func customerSlice(t *testing.T, api feature.Collection[domain.Customer], opts ...feature.SliceOption[domain.Customer]) *feature.Slice[domain.Customer] {
	t.Helper()
	return feature.NewSlice(store.FeatureCustomers, newStore(t), store.CustomersLens, api, msgs(), opts...)
}

// ---------------------------------------------------------------------------
// In-memory customers backend with real pagination
// ---------------------------------------------------------------------------

type memCustomers struct {
	mu      sync.Mutex
	items   []domain.Customer
	nextID  int
	queries []upstream.ListParams
	failAll error
}

func seededCustomers(n int) *memCustomers {
	m := &memCustomers{}
	for i := 1; i <= n; i++ {
		m.items = append(m.items, domain.Customer{ID: strconv.Itoa(i), Name: "Customer " + strconv.Itoa(i)})
	}
	m.nextID = n
	return m
}

func (m *memCustomers) List(_ context.Context, p upstream.ListParams) (upstream.Page[domain.Customer], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, p)
	if m.failAll != nil {
		return upstream.Page[domain.Customer]{}, m.failAll
	}
	limit := max(1, p.Limit)
	total := len(m.items)
	pages := (total + limit - 1) / limit
	start := min(total, (max(1, p.Page)-1)*limit)
	end := min(total, start+limit)
	return upstream.Page[domain.Customer]{
		Items:      slices.Clone(m.items[start:end]),
		Pagination: &domain.Pagination{Page: max(1, p.Page), PerPage: limit, Total: total, TotalPages: pages},
	}, nil
}

func (m *memCustomers) Get(_ context.Context, id string) (upstream.Result[domain.Customer], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.items {
		if c.ID == id {
			return upstream.Result[domain.Customer]{Entry: c}, nil
		}
	}
	return upstream.Result[domain.Customer]{}, &upstream.APIError{Status: 404, Message: "Cliente no encontrado"}
}

func (m *memCustomers) Create(_ context.Context, c domain.Customer) (upstream.Result[domain.Customer], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return upstream.Result[domain.Customer]{}, m.failAll
	}
	m.nextID++
	c.ID = strconv.Itoa(m.nextID)
	m.items = append([]domain.Customer{c}, m.items...)
	return upstream.Result[domain.Customer]{Entry: c, Message: "Cliente creado"}, nil
}

func (m *memCustomers) Update(_ context.Context, id string, c domain.Customer) (upstream.Result[domain.Customer], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = id
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i] = c
		}
	}
	return upstream.Result[domain.Customer]{Entry: c}, nil
}

func (m *memCustomers) Delete(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = slices.DeleteFunc(m.items, func(c domain.Customer) bool { return c.ID == id })
	return "", nil
}

func (m *memCustomers) lastQuery() upstream.ListParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries[len(m.queries)-1]
}

func (m *memCustomers) fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// ---------------------------------------------------------------------------
// Mock uploader
// ---------------------------------------------------------------------------

type mockUploader struct {
	mu    sync.Mutex
	names []string
	sizes []int
}

func (m *mockUploader) Upload(_ context.Context, files []upstream.FilePart) ([]domain.UploadedFile, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.UploadedFile, 0, len(files))
	for i, f := range files {
		body, err := io.ReadAll(f.Content)
		if err != nil {
			return nil, "", err
		}
		m.names = append(m.names, f.Name)
		m.sizes = append(m.sizes, len(body))
		out = append(out, domain.UploadedFile{ID: "f" + strconv.Itoa(i+1), OriginalName: f.Name, Size: int64(len(body))})
	}
	return out, "", nil
}

// ---------------------------------------------------------------------------
// Mock SessionService
// ---------------------------------------------------------------------------

type mockSession struct {
	loginFunc  func(ctx context.Context, email, password string) (store.AuthState, error)
	logoutFunc func(ctx context.Context) error
	stateFunc  func(ctx context.Context) (store.AuthState, error)
}

func (m *mockSession) Login(ctx context.Context, email, password string) (store.AuthState, error) {
	return m.loginFunc(ctx, email, password)
}

func (m *mockSession) Logout(ctx context.Context) error {
	return m.logoutFunc(ctx)
}

func (m *mockSession) State(ctx context.Context) (store.AuthState, error) {
	return m.stateFunc(ctx)
}

// ---------------------------------------------------------------------------
// Mock RolesService / ProfileService
// ---------------------------------------------------------------------------

type mockRoles struct {
	fetchFunc func(ctx context.Context) (store.RolesState, error)
}

func (m *mockRoles) Fetch(ctx context.Context) (store.RolesState, error) {
	return m.fetchFunc(ctx)
}

type mockProfileAPI struct {
	profile   domain.Profile
	getErr    error
	updateErr error
}

func (m *mockProfileAPI) Profile(context.Context) (domain.Profile, error) {
	return m.profile, m.getErr
}

func (m *mockProfileAPI) UpdateProfile(_ context.Context, p domain.Profile) (domain.Profile, string, error) {
	if m.updateErr != nil {
		return domain.Profile{}, "", m.updateErr
	}
	p.ID = m.profile.ID
	return p, "Perfil actualizado", nil
}

// ---------------------------------------------------------------------------
// Mock public backend
// ---------------------------------------------------------------------------

type mockPublic struct {
	mu         sync.Mutex
	profile    upstream.PublicProfile
	profileErr error
	submitted  []upstream.PublicProfile
	uploads    []string
	survey     upstream.PublicSurvey
	surveyErr  error
	answers    []upstream.SurveySubmission
	submitErr  error
}

func (m *mockPublic) Profile(context.Context, upstream.ProfileKind, string) (upstream.PublicProfile, error) {
	return m.profile, m.profileErr
}

func (m *mockPublic) SubmitProfile(_ context.Context, _ upstream.ProfileKind, _ string, in upstream.PublicProfile) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, in)
	return "Datos guardados", nil
}

func (m *mockPublic) Upload(_ context.Context, _ string, files []upstream.FilePart) ([]domain.UploadedFile, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.UploadedFile, 0, len(files))
	for _, f := range files {
		_, _ = io.Copy(io.Discard, f.Content)
		m.uploads = append(m.uploads, f.Name)
		out = append(out, domain.UploadedFile{ID: "u" + strconv.Itoa(len(m.uploads)), OriginalName: f.Name})
	}
	return out, "", nil
}

func (m *mockPublic) Survey(context.Context, string) (upstream.PublicSurvey, error) {
	return m.survey, m.surveyErr
}

func (m *mockPublic) SubmitSurvey(_ context.Context, _ string, in upstream.SurveySubmission) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, in)
	if m.submitErr != nil {
		return "", m.submitErr
	}
	return "¡Gracias!", nil
}

// allAnswers rates every survey question with r.
func allAnswers(r domain.Rating) map[string]string {
	out := map[string]string{}
	for _, q := range domain.SurveyQuestions {
		out[string(q)] = string(r)
	}
	return out
}
