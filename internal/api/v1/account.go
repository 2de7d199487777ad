package v1

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"sort"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/store"
	"github.com/gosuda/backoffice/internal/upstream"
)

type RolesOutput struct {
	Body store.RolesState
}

type ProfileOutput struct {
	Body remote.DetailState[domain.Profile]
}

type UpdateProfileInput struct {
	RawBody []byte `contentType:"application/json"`
}

type UploadInput struct {
	RawBody multipart.Form
}

type UploadOutput struct {
	Body remote.Transition
}

func RegisterAccountRoutes(api huma.API, roles RolesService, profile ProfileService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-roles",
		Method:      http.MethodGet,
		Path:        "/roles",
		Summary:     "Role options for the user form",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *struct{}) (*RolesOutput, error) {
		st, err := roles.Fetch(ctx)
		if err != nil {
			return nil, httpError(err, "failed to load roles")
		}
		return &RolesOutput{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-profile",
		Method:      http.MethodGet,
		Path:        "/profile",
		Summary:     "Signed-in operator profile",
		Tags:        []string{"Profile"},
	}, func(ctx context.Context, _ *struct{}) (*ProfileOutput, error) {
		if _, err := profile.Fetch(ctx); err != nil {
			return nil, httpError(err, "failed to load profile")
		}
		st, err := profile.State(ctx)
		if err != nil {
			return nil, httpError(err, "failed to load profile")
		}
		return &ProfileOutput{Body: st.Detail}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-profile",
		Method:      http.MethodPatch,
		Path:        "/profile",
		Summary:     "Update the signed-in operator profile",
		Tags:        []string{"Profile"},
	}, func(ctx context.Context, input *UpdateProfileInput) (*MutationOutput, error) {
		var p domain.Profile
		if err := json.Unmarshal(input.RawBody, &p); err != nil {
			return nil, huma.Error400BadRequest("malformed body", err)
		}
		tr, err := profile.Update(ctx, p)
		if err != nil {
			return nil, httpError(err, "failed to update profile")
		}
		return &MutationOutput{Body: tr}, nil
	})
}

// RegisterUploadRoutes forwards multipart uploads to the backend through the
// slice that tracks upload state.
func RegisterUploadRoutes(api huma.API, uploads Uploader) {
	huma.Register(api, huma.Operation{
		OperationID: "upload-files",
		Method:      http.MethodPost,
		Path:        "/uploads",
		Summary:     "Upload files",
		Tags:        []string{"Uploads"},
	}, func(ctx context.Context, input *UploadInput) (*UploadOutput, error) {
		parts, closeAll, err := fileParts(&input.RawBody)
		if err != nil {
			return nil, err
		}
		defer closeAll()

		tr, err := uploads.UploadFiles(ctx, parts)
		if err != nil {
			return nil, httpError(err, "upload failed")
		}
		return &UploadOutput{Body: tr}, nil
	})
}

// fileParts opens every file of form, ordered by field name. The returned
// func closes them.
func fileParts(form *multipart.Form) ([]upstream.FilePart, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	fields := make([]string, 0, len(form.File))
	for name := range form.File {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	var parts []upstream.FilePart
	for _, name := range fields {
		for _, fh := range form.File[name] {
			f, err := fh.Open()
			if err != nil {
				closeAll()
				return nil, func() {}, huma.Error400BadRequest("unreadable file "+fh.Filename, err)
			}
			opened = append(opened, f)
			parts = append(parts, upstream.FilePart{
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Content:     f,
			})
		}
	}
	if len(parts) == 0 {
		return nil, func() {}, huma.Error400BadRequest("no files in request")
	}
	return parts, closeAll, nil
}
