package feature

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/store"
)

// ProfileAPI reads and patches the signed-in operator.
type ProfileAPI interface {
	Profile(ctx context.Context) (domain.Profile, error)
	UpdateProfile(ctx context.Context, p domain.Profile) (domain.Profile, string, error)
}

// Profile tracks the signed-in operator in the detail and update sub-states
// of its region.
type Profile struct {
	store *store.Store
	api   ProfileAPI
	msgs  *Messages
}

func NewProfile(st *store.Store, api ProfileAPI, msgs *Messages) *Profile {
	return &Profile{store: st, api: api, msgs: msgs}
}

func (p *Profile) apply(ctx context.Context, ev remote.Event[domain.Profile]) (remote.Transition, error) {
	return store.Apply(ctx, p.store, store.FeatureProfile, store.ProfileLens, ev)
}

func (p *Profile) Fetch(ctx context.Context) (remote.Transition, error) {
	tr, err := p.apply(ctx, remote.Started[domain.Profile]{Op: remote.OpDetail})
	if err != nil {
		return tr, fmt.Errorf("feature.Profile.Fetch: %w", err)
	}
	gen := tr.Generation

	prof, err := p.api.Profile(ctx)
	done := context.WithoutCancel(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("profile fetch failed")
		return p.apply(done, remote.Failed[domain.Profile]{Op: remote.OpDetail, Gen: gen, Message: p.msgs.Describe(err, MsgProfile)})
	}
	return p.apply(done, remote.DetailLoaded[domain.Profile]{Gen: gen, Entry: prof})
}

func (p *Profile) Update(ctx context.Context, in domain.Profile) (remote.Transition, error) {
	if err := in.Validate(); err != nil {
		return remote.Transition{}, fmt.Errorf("feature.Profile.Update: %w", err)
	}
	tr, err := p.apply(ctx, remote.Started[domain.Profile]{Op: remote.OpUpdate, ID: in.ID})
	if err != nil {
		return tr, fmt.Errorf("feature.Profile.Update: %w", err)
	}
	gen := tr.Generation

	prof, msg, err := p.api.UpdateProfile(ctx, in)
	done := context.WithoutCancel(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("profile update failed")
		return p.apply(done, remote.Failed[domain.Profile]{Op: remote.OpUpdate, Gen: gen, Message: p.msgs.Describe(err, MsgUpdate)})
	}
	return p.apply(done, remote.Updated[domain.Profile]{Gen: gen, Entry: prof, Message: p.msgs.Success(msg, MsgUpdated)})
}

func (p *Profile) State(ctx context.Context) (remote.State[domain.Profile], error) {
	var out remote.State[domain.Profile]
	err := p.store.View(ctx, func(st store.AppState) { out = st.Profile })
	return out, err
}

func (p *Profile) Reset(ctx context.Context, op remote.Op) (remote.Transition, error) {
	return p.apply(ctx, remote.Reset[domain.Profile]{Op: op})
}

func (p *Profile) Acknowledge(ctx context.Context, op remote.Op, gen uint64) (remote.Transition, error) {
	return p.apply(ctx, remote.Acknowledge[domain.Profile]{Op: op, Gen: gen})
}

func (p *Profile) ResetAll(ctx context.Context) error {
	_, err := p.apply(ctx, remote.ResetAll[domain.Profile]{})
	return err
}
