package v1

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/publicflow"
	"github.com/gosuda/backoffice/internal/upstream"
)

type PublicProfileInput struct {
	Kind  string `path:"kind" enum:"customers,providers" doc:"Profile owner kind"`
	Token string `path:"token" minLength:"1" doc:"Opaque link token"`
}

type PublicProfileOutput struct {
	Body publicflow.ProfileView
}

// SubmitProfileInput takes the form as a raw body: every field is optional
// on the wire and checked by ProfileForm.Validate.
type SubmitProfileInput struct {
	Kind    string `path:"kind" enum:"customers,providers" doc:"Profile owner kind"`
	Token   string `path:"token" minLength:"1" doc:"Opaque link token"`
	RawBody []byte `contentType:"application/json"`
}

type AttachFileInput struct {
	Kind    string `path:"kind" enum:"customers,providers" doc:"Profile owner kind"`
	Token   string `path:"token" minLength:"1" doc:"Opaque link token"`
	Field   string `path:"field" enum:"certificate,statement" doc:"Document slot"`
	RawBody multipart.Form
}

type AttachFileOutput struct {
	Body struct {
		File domain.UploadedFile    `json:"file"`
		View publicflow.ProfileView `json:"view"`
	}
}

type PublicUploadInput struct {
	Kind    string `path:"kind" enum:"customers,providers" doc:"Profile owner kind"`
	Token   string `path:"token" minLength:"1" doc:"Opaque link token"`
	RawBody multipart.Form
}

type PublicUploadOutput struct {
	Body struct {
		Files   []domain.UploadedFile `json:"files"`
		Message string                `json:"message"`
	}
}

type SurveyInput struct {
	Token string `path:"token" minLength:"1" doc:"Opaque survey token"`
}

type SurveyOutput struct {
	Body publicflow.SurveyView
}

type SubmitSurveyInput struct {
	Token string `path:"token" minLength:"1" doc:"Opaque survey token"`
	Body  struct {
		Answers      map[domain.QuestionID]domain.Rating `json:"answers" doc:"Rating per question"`
		Observations string                              `json:"observations,omitempty" maxLength:"2000" doc:"Free-text comments"`
	}
}

// loadError turns a failed token lookup into 404 or 502 carrying the
// message the page shows.
func loadError(err error, msg string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return huma.Error404NotFound(msg)
	}
	return huma.Error502BadGateway(msg, err)
}

func RegisterPublicRoutes(api huma.API, flows PublicFlows) {
	huma.Register(api, huma.Operation{
		OperationID: "get-public-profile",
		Method:      http.MethodGet,
		Path:        "/public/{kind}/{token}/profile",
		Summary:     "Load a profile form by link token",
		Tags:        []string{"Public"},
	}, func(ctx context.Context, input *PublicProfileInput) (*PublicProfileOutput, error) {
		view, err := flows.Profile(upstream.ProfileKind(input.Kind), input.Token).Load(ctx, input.Token)
		if err != nil {
			return nil, loadError(err, view.Error)
		}
		return &PublicProfileOutput{Body: view}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-public-profile",
		Method:      http.MethodPost,
		Path:        "/public/{kind}/{token}/profile",
		Summary:     "Submit a profile form",
		Tags:        []string{"Public"},
	}, func(ctx context.Context, input *SubmitProfileInput) (*PublicProfileOutput, error) {
		var form publicflow.ProfileForm
		if err := json.Unmarshal(input.RawBody, &form); err != nil {
			return nil, huma.Error400BadRequest("malformed body", err)
		}

		flow := flows.Profile(upstream.ProfileKind(input.Kind), input.Token)
		view, err := flow.Submit(ctx, form)
		if errors.Is(err, publicflow.ErrNotLoaded) {
			if view, err = flow.Load(ctx, input.Token); err != nil {
				return nil, loadError(err, view.Error)
			}
			view, err = flow.Submit(ctx, form)
		}
		if err != nil {
			return nil, httpError(err, "failed to submit profile")
		}
		return &PublicProfileOutput{Body: view}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "attach-public-profile-file",
		Method:      http.MethodPost,
		Path:        "/public/{kind}/{token}/profile/files/{field}",
		Summary:     "Upload a profile document as soon as it is picked",
		Tags:        []string{"Public"},
	}, func(ctx context.Context, input *AttachFileInput) (*AttachFileOutput, error) {
		parts, closeAll, err := fileParts(&input.RawBody)
		if err != nil {
			return nil, err
		}
		defer closeAll()
		if len(parts) != 1 {
			return nil, huma.Error400BadRequest("exactly one file expected")
		}

		flow := flows.Profile(upstream.ProfileKind(input.Kind), input.Token)
		if !flow.Loaded() {
			if view, loadErr := flow.Load(ctx, input.Token); loadErr != nil {
				return nil, loadError(loadErr, view.Error)
			}
		}
		p := parts[0]
		f, err := flow.AttachFile(ctx, publicflow.FileField(input.Field), p.Name, p.ContentType, p.Content)
		if err != nil {
			if view := flow.View(); view.Error != "" && !errors.Is(err, domain.ErrValidation) {
				return nil, huma.Error502BadGateway(view.Error, err)
			}
			return nil, httpError(err, "upload failed")
		}
		out := &AttachFileOutput{}
		out.Body.File = f
		out.Body.View = flow.View()
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "public-upload",
		Method:      http.MethodPost,
		Path:        "/public/{kind}/{token}/uploads",
		Summary:     "Upload files with a link token",
		Tags:        []string{"Public"},
	}, func(ctx context.Context, input *PublicUploadInput) (*PublicUploadOutput, error) {
		parts, closeAll, err := fileParts(&input.RawBody)
		if err != nil {
			return nil, err
		}
		defer closeAll()

		files, msg, err := flows.Upload(ctx, input.Token, parts)
		if err != nil {
			return nil, huma.Error502BadGateway(msg, err)
		}
		out := &PublicUploadOutput{}
		out.Body.Files = files
		out.Body.Message = msg
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-public-survey",
		Method:      http.MethodGet,
		Path:        "/public/surveys/{token}",
		Summary:     "Load a satisfaction survey",
		Tags:        []string{"Public"},
	}, func(ctx context.Context, input *SurveyInput) (*SurveyOutput, error) {
		view, err := flows.Survey(input.Token).Load(ctx, input.Token)
		if err != nil {
			return nil, loadError(err, view.Error)
		}
		return &SurveyOutput{Body: view}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-public-survey",
		Method:      http.MethodPost,
		Path:        "/public/surveys/{token}",
		Summary:     "Submit a satisfaction survey",
		Tags:        []string{"Public"},
	}, func(ctx context.Context, input *SubmitSurveyInput) (*SurveyOutput, error) {
		flow := flows.Survey(input.Token)
		flow.ClearAnswers()
		for q, r := range input.Body.Answers {
			if err := flow.Answer(q, r); err != nil {
				return nil, httpError(err, "invalid answer")
			}
		}
		flow.SetObservations(input.Body.Observations)

		view, err := flow.Submit(ctx, input.Token)
		if err != nil {
			return nil, httpError(err, "failed to submit survey")
		}
		return &SurveyOutput{Body: view}, nil
	})
}
