package v1_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/backoffice/internal/api/v1"
	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/publicflow"
	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/upstream"
)

func publicAPI(t *testing.T, backend *mockPublic) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t)
	v1.RegisterPublicRoutes(api, publicflow.NewService(backend, msgs(), 16))
	return api
}

func acmeProfile() upstream.PublicProfile {
	return upstream.PublicProfile{Name: "Acme", TaxID: "ACM010101AAA", Email: "ops@acme.mx"}
}

func TestPublicProfile(t *testing.T) {
	t.Parallel()

	t.Run("load pre-fills the form", func(t *testing.T) {
		t.Parallel()

		api := publicAPI(t, &mockPublic{profile: acmeProfile()})
		resp := api.Get("/public/customers/tok-1/profile")
		require.Equal(t, http.StatusOK, resp.Code)

		view := decode[publicflow.ProfileView](t, resp.Body.Bytes())
		assert.Equal(t, upstream.ProfileCustomer, view.Kind)
		assert.Equal(t, "Acme", view.Form.Name)
		assert.Equal(t, "ACM010101AAA", view.Form.TaxID)
	})

	t.Run("unknown token", func(t *testing.T) {
		t.Parallel()

		api := publicAPI(t, &mockPublic{profileErr: &upstream.APIError{Status: http.StatusNotFound}})
		resp := api.Get("/public/providers/nope/profile")
		assert.Equal(t, http.StatusNotFound, resp.Code)
		assert.Contains(t, resp.Body.String(), "El enlace no es válido o ya expiró")
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()

		api := publicAPI(t, &mockPublic{})
		resp := api.Get("/public/partners/tok/profile")
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("submit loads first when needed", func(t *testing.T) {
		t.Parallel()

		backend := &mockPublic{profile: acmeProfile()}
		api := publicAPI(t, backend)

		resp := api.Post("/public/customers/tok-2/profile", map[string]any{
			"name":  "Acme SA",
			"taxId": "ACM010101AAA",
			"email": "ops@acme.mx",
			"clabe": "012345678901234567",
		})
		require.Equal(t, http.StatusOK, resp.Code)

		view := decode[publicflow.ProfileView](t, resp.Body.Bytes())
		assert.True(t, view.Completed)
		assert.Equal(t, remote.StatusSucceeded, view.Status)
		require.Len(t, backend.submitted, 1)
		assert.Equal(t, "Acme SA", backend.submitted[0].Name)
	})

	t.Run("submit validation", func(t *testing.T) {
		t.Parallel()

		backend := &mockPublic{profile: acmeProfile()}
		api := publicAPI(t, backend)

		resp := api.Post("/public/customers/tok-3/profile", map[string]any{
			"name":  "Acme",
			"taxId": "ACM010101AAA",
			"email": "ops@acme.mx",
			"clabe": "123",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		assert.Contains(t, resp.Body.String(), "body.clabe")
		assert.Empty(t, backend.submitted)
	})

	t.Run("attached file survives the submit", func(t *testing.T) {
		t.Parallel()

		backend := &mockPublic{profile: acmeProfile()}
		api := publicAPI(t, backend)

		header, body := multipartBody(t, "file", map[string]string{"csf.pdf": "%PDF"})
		resp := api.Post("/public/providers/tok-4/profile/files/certificate", header, body)
		require.Equal(t, http.StatusOK, resp.Code)

		attached := decode[struct {
			File domain.UploadedFile    `json:"file"`
			View publicflow.ProfileView `json:"view"`
		}](t, resp.Body.Bytes())
		assert.Equal(t, "u1", attached.File.ID)
		assert.Equal(t, "u1", attached.View.Form.CertificateFileID)
		assert.Equal(t, "csf.pdf", attached.View.FileNames["u1"])

		resp = api.Post("/public/providers/tok-4/profile", map[string]any{
			"name":  "Acme",
			"taxId": "ACM010101AAA",
			"email": "ops@acme.mx",
		})
		require.Equal(t, http.StatusOK, resp.Code)
		view := decode[publicflow.ProfileView](t, resp.Body.Bytes())
		assert.Equal(t, "u1", view.Form.CertificateFileID)
	})

	t.Run("unknown file slot", func(t *testing.T) {
		t.Parallel()

		api := publicAPI(t, &mockPublic{profile: acmeProfile()})
		header, body := multipartBody(t, "file", map[string]string{"x.pdf": "x"})
		resp := api.Post("/public/customers/tok/profile/files/passport", header, body)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}

func TestPublicUpload(t *testing.T) {
	t.Parallel()

	backend := &mockPublic{}
	api := publicAPI(t, backend)

	header, body := multipartBody(t, "files", map[string]string{"acta.pdf": "%PDF"})
	resp := api.Post("/public/customers/tok/uploads", header, body)
	require.Equal(t, http.StatusOK, resp.Code)

	out := decode[struct {
		Files   []domain.UploadedFile `json:"files"`
		Message string                `json:"message"`
	}](t, resp.Body.Bytes())
	require.Len(t, out.Files, 1)
	assert.Equal(t, "acta.pdf", out.Files[0].OriginalName)
	assert.Equal(t, "Archivos subidos", out.Message)
	assert.Equal(t, []string{"acta.pdf"}, backend.uploads)
}

func TestPublicSurvey(t *testing.T) {
	t.Parallel()

	files := []domain.FileRef{{ID: "d1", Name: "reporte.pdf"}}

	t.Run("load lists the questionnaire", func(t *testing.T) {
		t.Parallel()

		api := publicAPI(t, &mockPublic{survey: upstream.PublicSurvey{Title: "Mantenimiento", Files: files}})
		resp := api.Get("/public/surveys/s-1")
		require.Equal(t, http.StatusOK, resp.Code)

		view := decode[publicflow.SurveyView](t, resp.Body.Bytes())
		assert.Equal(t, domain.SurveyQuestions, view.Questions)
		assert.Equal(t, "Mantenimiento", view.Title)
		assert.False(t, view.DownloadsEnabled)
		assert.Empty(t, view.Files)
	})

	t.Run("submit unlocks downloads", func(t *testing.T) {
		t.Parallel()

		backend := &mockPublic{survey: upstream.PublicSurvey{Files: files}}
		api := publicAPI(t, backend)

		require.Equal(t, http.StatusOK, api.Get("/public/surveys/s-2").Code)
		resp := api.Post("/public/surveys/s-2", map[string]any{
			"answers":      allAnswers(domain.RatingExcellent),
			"observations": "Muy puntuales",
		})
		require.Equal(t, http.StatusOK, resp.Code)

		view := decode[publicflow.SurveyView](t, resp.Body.Bytes())
		assert.True(t, view.DownloadsEnabled)
		assert.Equal(t, files, view.Files)
		require.Len(t, backend.answers, 1)
		assert.Equal(t, "Muy puntuales", backend.answers[0].Observations)
	})

	t.Run("incomplete answers", func(t *testing.T) {
		t.Parallel()

		backend := &mockPublic{}
		api := publicAPI(t, backend)

		resp := api.Post("/public/surveys/s-3", map[string]any{
			"answers": map[string]string{string(domain.QuestionPunctuality): string(domain.RatingGood)},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		assert.Empty(t, backend.answers)
	})

	t.Run("each submission stands on its own answers", func(t *testing.T) {
		t.Parallel()

		backend := &mockPublic{submitErr: errors.New("timeout")}
		api := publicAPI(t, backend)

		resp := api.Post("/public/surveys/s-5", map[string]any{
			"answers":      allAnswers(domain.RatingGood),
			"observations": "primera",
		})
		require.Equal(t, http.StatusOK, resp.Code)
		view := decode[publicflow.SurveyView](t, resp.Body.Bytes())
		assert.False(t, view.DownloadsEnabled)
		assert.NotEmpty(t, view.Error)

		resp = api.Post("/public/surveys/s-5", map[string]any{
			"answers": map[string]string{string(domain.QuestionPunctuality): string(domain.RatingExcellent)},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		assert.Len(t, backend.answers, 1)
	})

	t.Run("rating outside the closed set", func(t *testing.T) {
		t.Parallel()

		api := publicAPI(t, &mockPublic{})
		answers := allAnswers(domain.RatingGood)
		answers[string(domain.QuestionCommunication)] = "meh"

		resp := api.Post("/public/surveys/s-4", map[string]any{"answers": answers})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}
