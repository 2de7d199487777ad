package feature

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/store"
)

// RolesAPI lists the role options offered by the backend.
type RolesAPI interface {
	Roles(ctx context.Context) ([]domain.RoleOption, error)
}

// Roles keeps the role selector populated. When the backend has nothing to
// offer, or cannot be reached, the local enumeration is used instead.
type Roles struct {
	store *store.Store
	api   RolesAPI
	msgs  *Messages
	group singleflight.Group
}

func NewRoles(st *store.Store, api RolesAPI, msgs *Messages) *Roles {
	return &Roles{store: st, api: api, msgs: msgs}
}

// Fetch loads the roles. Concurrent calls share one request.
func (r *Roles) Fetch(ctx context.Context) (store.RolesState, error) {
	ch := r.group.DoChan("roles", func() (any, error) {
		return r.fetch(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return store.RolesState{}, fmt.Errorf("feature.Roles.Fetch: %w", res.Err)
		}
		return res.Val.(store.RolesState), nil //nolint:forcetypeassert // fetch returns RolesState
	case <-ctx.Done():
		return store.RolesState{}, fmt.Errorf("feature.Roles.Fetch: %w", ctx.Err())
	}
}

func (r *Roles) fetch(ctx context.Context) (store.RolesState, error) {
	err := r.store.Update(ctx, func(st *store.AppState) []store.Notice {
		st.Roles.Status = remote.StatusLoading
		st.Roles.Error = ""
		return nil
	})
	if err != nil {
		return store.RolesState{}, err
	}

	next := store.RolesState{Status: remote.StatusSucceeded}
	options, apiErr := r.api.Roles(ctx)
	switch {
	case apiErr != nil:
		log.Warn().Err(apiErr).Msg("roles fetch failed, using local roles")
		next.Status = remote.StatusFailed
		next.Error = r.msgs.Describe(apiErr, MsgRoles)
		next.Options = domain.DefaultRoles()
		next.Fallback = true
	case len(options) == 0:
		next.Options = domain.DefaultRoles()
		next.Fallback = true
	default:
		next.Options = options
	}

	err = r.store.Update(ctx, func(st *store.AppState) []store.Notice {
		st.Roles = next
		return []store.Notice{{
			Feature:    store.FeatureRoles,
			Transition: remote.Transition{Op: remote.OpList, Status: next.Status, Error: next.Error},
			At:         time.Now(),
		}}
	})
	if err != nil {
		return store.RolesState{}, err
	}
	return next, nil
}

// Options returns the loaded roles, fetching them on first use.
func (r *Roles) Options(ctx context.Context) ([]domain.RoleOption, error) {
	var cur store.RolesState
	if err := r.store.View(ctx, func(st store.AppState) { cur = st.Roles }); err != nil {
		return nil, fmt.Errorf("feature.Roles.Options: %w", err)
	}
	if cur.Status == remote.StatusSucceeded || cur.Status == remote.StatusFailed {
		return cur.Options, nil
	}
	next, err := r.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return next.Options, nil
}

// Reset forgets the loaded roles.
func (r *Roles) Reset(ctx context.Context) error {
	return r.store.Update(ctx, func(st *store.AppState) []store.Notice {
		st.Roles = store.NewAppState().Roles
		return nil
	})
}
