package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/store"
)

type LoginInput struct {
	Body struct {
		Email    string `json:"email" maxLength:"255" doc:"Operator email"`
		Password string `json:"password" maxLength:"128" doc:"Password"` //nolint:gosec // G117: login credential DTO
	}
}

type SessionOutput struct {
	Body store.AuthState
}

func RegisterSessionRoutes(api huma.API, auth SessionService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-session",
		Method:      http.MethodPost,
		Path:        "/session",
		Summary:     "Sign in with email and password",
		Tags:        []string{"Session"},
	}, func(ctx context.Context, input *LoginInput) (*SessionOutput, error) {
		st, err := auth.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, httpError(err, "login failed")
		}
		if st.Status == remote.StatusFailed {
			return nil, huma.Error401Unauthorized(st.Error)
		}
		return &SessionOutput{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/session",
		Summary:     "Current sign-in state",
		Tags:        []string{"Session"},
	}, func(ctx context.Context, _ *struct{}) (*SessionOutput, error) {
		st, err := auth.State(ctx)
		if err != nil {
			return nil, httpError(err, "failed to read session")
		}
		return &SessionOutput{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-session",
		Method:        http.MethodDelete,
		Path:          "/session",
		Summary:       "Sign out and clear every view",
		Tags:          []string{"Session"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		if err := auth.Logout(ctx); err != nil {
			return nil, httpError(err, "logout failed")
		}
		return nil, nil
	})
}
