package upstream_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/upstream"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newBackend(t *testing.T, r chi.Router, token string) *upstream.Backend {
	t.Helper()

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := upstream.New(upstream.Options{
		BaseURL: srv.URL + "/api",
		Tokens:  oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
	})
	require.NoError(t, err)
	return upstream.NewBackend(c)
}

func newPublic(t *testing.T, r chi.Router) *upstream.Public {
	t.Helper()

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := upstream.New(upstream.Options{BaseURL: srv.URL + "/api"})
	require.NoError(t, err)
	p, err := upstream.NewPublic(c)
	require.NoError(t, err)
	return p
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	t.Parallel()

	_, err := upstream.New(upstream.Options{BaseURL: "ftp://example.com"})
	require.Error(t, err)
}

func TestResource_List(t *testing.T) {
	t.Parallel()

	t.Run("decodes_envelope_and_sends_params", func(t *testing.T) {
		t.Parallel()

		r := chi.NewRouter()
		r.Get("/api/customers", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			assert.Equal(t, "Bearer tok-1", req.Header.Get("Authorization"))
			assert.Equal(t, "2", q.Get("page"))
			assert.Equal(t, "12", q.Get("limit"))
			assert.Equal(t, "acme", q.Get("search"))
			assert.Equal(t, "name", q.Get("sort[0][field]"))
			assert.Equal(t, "desc", q.Get("sort[0][direction]"))
			writeJSON(w, http.StatusOK, map[string]any{
				"data": []map[string]any{
					{"id": 7, "name": "Acme", "tax_id": "X1", "created_at": "2024-03-01 10:00:00"},
				},
				"meta": map[string]any{"page": 2, "per_page": 12, "total": 13, "total_pages": 2},
			})
		})

		b := newBackend(t, r, "tok-1")
		page, err := b.Customers.List(context.Background(), upstream.ListParams{
			Page: 2, Limit: 12, Search: " acme ",
			Sort: []upstream.SortField{{Field: "name", Direction: upstream.Desc}},
		})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "7", page.Items[0].ID)
		assert.Equal(t, "Acme", page.Items[0].Name)
		assert.Equal(t, 2024, page.Items[0].CreatedAt.Year())
		require.NotNil(t, page.Pagination)
		assert.Equal(t, domain.Pagination{Page: 2, PerPage: 12, Total: 13, TotalPages: 2}, *page.Pagination)
	})

	t.Run("infers_pagination_when_meta_missing", func(t *testing.T) {
		t.Parallel()

		r := chi.NewRouter()
		r.Get("/api/providers", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"data": []map[string]any{{"id": "p1"}, {"id": "p2"}},
			})
		})

		b := newBackend(t, r, "tok")
		page, err := b.Providers.List(context.Background(), upstream.ListParams{Page: 1, Limit: 10})
		require.NoError(t, err)
		require.NotNil(t, page.Pagination)
		assert.Equal(t, 2, page.Pagination.Total)
		assert.Equal(t, 10, page.Pagination.PerPage)
	})
}

func TestResource_Mutations(t *testing.T) {
	t.Parallel()

	var patched map[string]any
	r := chi.NewRouter()
	r.Post("/api/customers", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{
			"data":            map[string]any{"id": "c9", "name": "Nuevo"},
			"success_message": "Cliente creado",
		})
	})
	r.Patch("/api/customers/{id}", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewDecoder(req.Body).Decode(&patched)
		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]any{"id": chi.URLParam(req, "id"), "name": "Renamed"},
		})
	})
	r.Delete("/api/customers/{id}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": nil, "success_message": "Eliminado"})
	})

	b := newBackend(t, r, "tok")
	ctx := context.Background()

	created, err := b.Customers.Create(ctx, domain.Customer{Name: "Nuevo"})
	require.NoError(t, err)
	assert.Equal(t, "c9", created.Entry.ID)
	assert.Equal(t, "Cliente creado", created.Message)

	updated, err := b.Customers.Update(ctx, "c9", domain.Customer{Name: "Renamed", TaxID: "T"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Entry.Name)
	assert.Equal(t, "T", patched["tax_id"])
	assert.NotContains(t, patched, "id")

	msg, err := b.Customers.Delete(ctx, "c9")
	require.NoError(t, err)
	assert.Equal(t, "Eliminado", msg)
}

func TestResource_EmptyMutationAnswers(t *testing.T) {
	t.Parallel()

	t.Run("update_with_null_data_keeps_payload_under_path_id", func(t *testing.T) {
		t.Parallel()

		r := chi.NewRouter()
		r.Patch("/api/providers/{id}", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"data": nil, "success_message": "Proveedor actualizado"})
		})
		b := newBackend(t, r, "tok")

		updated, err := b.Providers.Update(t.Context(), "p4", domain.Provider{Name: "Renamed"})
		require.NoError(t, err)
		assert.Equal(t, "p4", updated.Entry.ID)
		assert.Equal(t, "Renamed", updated.Entry.Name)
		assert.Equal(t, "Proveedor actualizado", updated.Message)
	})

	t.Run("update_with_no_content_keeps_payload_under_path_id", func(t *testing.T) {
		t.Parallel()

		r := chi.NewRouter()
		r.Patch("/api/customers/{id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		b := newBackend(t, r, "tok")

		updated, err := b.Customers.Update(t.Context(), "c2", domain.Customer{Name: "Acme"})
		require.NoError(t, err)
		assert.Equal(t, "c2", updated.Entry.ID)
		assert.Equal(t, "Acme", updated.Entry.Name)
	})

	t.Run("create_without_id_is_an_error", func(t *testing.T) {
		t.Parallel()

		r := chi.NewRouter()
		r.Post("/api/customers", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusCreated, map[string]any{"data": nil, "success_message": "Cliente creado"})
		})
		b := newBackend(t, r, "tok")

		_, err := b.Customers.Create(t.Context(), domain.Customer{Name: "Nuevo"})
		require.ErrorIs(t, err, upstream.ErrNoEntityID)
	})
}

func TestClient_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		status  int
		body    string
		message string
		is      error
	}{
		{"message_field", http.StatusUnprocessableEntity, `{"message":"Tax ID already used"}`, "Tax ID already used", nil},
		{"error_string", http.StatusBadRequest, `{"error":"bad input"}`, "bad input", nil},
		{"error_object", http.StatusConflict, `{"error":{"message":"conflict","code":"dup"}}`, "conflict", nil},
		{"errors_array", http.StatusBadRequest, `{"errors":[{"message":"first"},{"message":"second"}]}`, "first", nil},
		{"not_found", http.StatusNotFound, `{}`, "", domain.ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, `not json`, "", domain.ErrUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := chi.NewRouter()
			r.Get("/api/customers/{id}", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})

			b := newBackend(t, r, "tok")
			_, err := b.Customers.Get(context.Background(), "1")
			require.Error(t, err)

			var apiErr *upstream.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.Status)

			msg, ok := upstream.ServerMessage(err)
			assert.Equal(t, tc.message != "", ok)
			assert.Equal(t, tc.message, msg)
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
		})
	}
}

func TestClient_MissingAuthFailsBeforeNetwork(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	r := chi.NewRouter()
	r.HandleFunc("/*", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	b := newBackend(t, r, "")
	_, err := b.Users.List(context.Background(), upstream.ListParams{})
	require.ErrorIs(t, err, domain.ErrMissingAuth)
	assert.Zero(t, hits.Load())
}

func TestBackend_Upload(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Post("/api/files/upload", func(w http.ResponseWriter, req *http.Request) {
		if !assert.NoError(t, req.ParseMultipartForm(1<<20)) {
			return
		}
		files := req.MultipartForm.File["files"]
		out := make([]map[string]any, 0, len(files))
		for i, fh := range files {
			out = append(out, map[string]any{
				"id":            i + 1,
				"original_name": fh.Filename,
				"filename":      "stored-" + fh.Filename,
				"mime_type":     fh.Header.Get("Content-Type"),
				"size":          fh.Size,
				"url":           "/files/" + fh.Filename,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": out, "success_message": "Archivos subidos"})
	})

	b := newBackend(t, r, "tok")

	t.Run("sends_repeatable_files_field", func(t *testing.T) {
		t.Parallel()

		files, msg, err := b.Upload(context.Background(), []upstream.FilePart{
			{Name: "a.pdf", ContentType: "application/pdf", Content: strings.NewReader("%PDF")},
			{Name: "b.txt", Content: strings.NewReader("hello")},
		})
		require.NoError(t, err)
		require.Len(t, files, 2)
		assert.Equal(t, "Archivos subidos", msg)
		assert.Equal(t, "1", files[0].ID)
		assert.Equal(t, "a.pdf", files[0].OriginalName)
		assert.Equal(t, "application/pdf", files[0].MimeType)
		assert.Equal(t, "application/octet-stream", files[1].MimeType)
		assert.Equal(t, int64(5), files[1].Size)
	})

	t.Run("rejects_empty_list", func(t *testing.T) {
		t.Parallel()

		_, _, err := b.Upload(context.Background(), nil)
		require.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestBackend_Roles(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Get("/api/roles", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]any{
				{"value": "admin", "label": "Admin"},
				{"name": "auditor"},
				{},
			},
		})
	})

	b := newBackend(t, r, "tok")
	roles, err := b.Roles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.RoleOption{
		{Value: "admin", Label: "Admin"},
		{Value: "auditor", Label: "auditor"},
	}, roles)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Post("/api/auth/login", func(w http.ResponseWriter, req *http.Request) {
		assert.Empty(t, req.Header.Get("Authorization"))
		var body map[string]string
		_ = json.NewDecoder(req.Body).Decode(&body)
		if body["password"] != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Credenciales inválidas"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"access_token": "jwt-abc"}})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	c, err := upstream.New(upstream.Options{BaseURL: srv.URL + "/api"})
	require.NoError(t, err)

	tok, err := upstream.Login(context.Background(), c, "ops@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt-abc", tok)

	_, err = upstream.Login(context.Background(), c, "ops@example.com", "wrong")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	msg, _ := upstream.ServerMessage(err)
	assert.Equal(t, "Credenciales inválidas", msg)
}

func TestPublic(t *testing.T) {
	t.Parallel()

	var submitted map[string]any
	r := chi.NewRouter()
	r.Get("/api/public/customers/{token}/profile", func(w http.ResponseWriter, req *http.Request) {
		assert.Empty(t, req.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"name":           "Acme",
			"fiscal_profile": map[string]any{"tax_regime": "601", "certificate": map[string]any{"id": 3, "name": "csf.pdf"}},
		}})
	})
	r.Get("/api/public/surveys/{token}", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "token") == "gone" {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Encuesta no encontrada"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"service_entry_id": 42, "title": "Mantenimiento", "service_date": "2024-05-02", "completed": false,
		}})
	})
	r.Post("/api/public/surveys/{token}", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewDecoder(req.Body).Decode(&submitted)
		writeJSON(w, http.StatusOK, map[string]any{"data": nil, "success_message": "Gracias"})
	})

	p := newPublic(t, r)
	ctx := context.Background()

	prof, err := p.Profile(ctx, upstream.ProfileCustomer, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", prof.Name)
	require.NotNil(t, prof.FiscalProfile)
	require.NotNil(t, prof.FiscalProfile.Certificate)
	assert.Equal(t, "3", prof.FiscalProfile.Certificate.ID)
	assert.Nil(t, prof.BankingInfo)

	survey, err := p.Survey(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "42", survey.ServiceEntryID)
	assert.Equal(t, "2024-05-02", survey.ServiceDate)

	_, err = p.Survey(ctx, "gone")
	require.ErrorIs(t, err, domain.ErrNotFound)

	msg, err := p.SubmitSurvey(ctx, "s-1", upstream.SurveySubmission{
		Answers: map[domain.QuestionID]domain.Rating{domain.QuestionPunctuality: domain.RatingGood},
	})
	require.NoError(t, err)
	assert.Equal(t, "Gracias", msg)
	answers, ok := submitted["answers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "good", answers["punctuality"])
}

func TestNewPublic_RejectsAuthenticatedClient(t *testing.T) {
	t.Parallel()

	c, err := upstream.New(upstream.Options{
		BaseURL: "http://localhost",
		Tokens:  oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "x"}),
	})
	require.NoError(t, err)
	_, err = upstream.NewPublic(c)
	require.Error(t, err)
}
