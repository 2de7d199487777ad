package v1

import (
	"context"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/publicflow"
	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/store"
	"github.com/gosuda/backoffice/internal/table"
	"github.com/gosuda/backoffice/internal/upstream"
)

// Collection abstracts one feature slice for handler testing.
// *feature.Slice satisfies this interface.
type Collection[T domain.Entity] interface {
	table.Source
	FetchDetail(ctx context.Context, id string) (remote.Transition, error)
	Create(ctx context.Context, payload T) (remote.Transition, error)
	Update(ctx context.Context, id string, payload T) (remote.Transition, error)
	Reset(ctx context.Context, op remote.Op) (remote.Transition, error)
	ResetAll(ctx context.Context) error
	State(ctx context.Context) (remote.State[T], error)
}

// Uploader is the slice that tracks upload state.
// *feature.Slice[domain.ServiceEntry] satisfies this interface.
type Uploader interface {
	UploadFiles(ctx context.Context, files []upstream.FilePart) (remote.Transition, error)
}

// SessionService abstracts sign-in for handler testing.
// *feature.Auth satisfies this interface.
type SessionService interface {
	Login(ctx context.Context, email, password string) (store.AuthState, error)
	Logout(ctx context.Context) error
	State(ctx context.Context) (store.AuthState, error)
}

// RolesService is satisfied by *feature.Roles.
type RolesService interface {
	Fetch(ctx context.Context) (store.RolesState, error)
}

// ProfileService is satisfied by *feature.Profile.
type ProfileService interface {
	Fetch(ctx context.Context) (remote.Transition, error)
	Update(ctx context.Context, in domain.Profile) (remote.Transition, error)
	State(ctx context.Context) (remote.State[domain.Profile], error)
}

// PublicFlows hands out token-scoped flows. *publicflow.Service satisfies
// this interface.
type PublicFlows interface {
	Profile(kind upstream.ProfileKind, token string) *publicflow.ProfileFlow
	Survey(token string) *publicflow.SurveyFlow
	Upload(ctx context.Context, token string, files []upstream.FilePart) ([]domain.UploadedFile, string, error)
}
