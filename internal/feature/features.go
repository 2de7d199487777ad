package feature

import (
	"context"
	"errors"
	"fmt"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/session"
	"github.com/gosuda/backoffice/internal/store"
	"github.com/gosuda/backoffice/internal/upstream"
)

// ErrUnknownFeature is returned for feature names with no slice.
var ErrUnknownFeature = errors.New("feature: unknown feature")

// Features is every slice of the dashboard wired to one store.
type Features struct {
	Customers             *Slice[domain.Customer]
	Providers             *Slice[domain.Provider]
	Users                 *Slice[domain.User]
	ServiceEntries        *Slice[domain.ServiceEntry]
	ServicePackageRecords *Slice[domain.ServicePackageRecord]
	Surveys               *Slice[domain.SurveyResponse]
	Roles                 *Roles
	Profile               *Profile
	Auth                  *Auth
	Messages              *Messages
}

// New wires the slices to b. login is called with credentials only and must
// not carry the session token.
func New(st *store.Store, b *upstream.Backend, source *session.Source, login LoginFunc, msgs *Messages) *Features {
	f := &Features{
		Customers:             NewSlice(store.FeatureCustomers, st, store.CustomersLens, b.Customers, msgs),
		Providers:             NewSlice(store.FeatureProviders, st, store.ProvidersLens, b.Providers, msgs),
		Users:                 NewSlice(store.FeatureUsers, st, store.UsersLens, b.Users, msgs),
		ServiceEntries:        NewSlice(store.FeatureServiceEntries, st, store.ServiceEntriesLens, b.ServiceEntries, msgs, WithUploader[domain.ServiceEntry](b)),
		ServicePackageRecords: NewSlice(store.FeatureServicePackageRecords, st, store.ServicePackageRecordsLens, b.ServicePackageRecords, msgs),
		Surveys:               NewSlice(store.FeatureSurveys, st, store.SurveysLens, b.Surveys, msgs),
		Roles:                 NewRoles(st, b, msgs),
		Profile:               NewProfile(st, b, msgs),
		Auth:                  NewAuth(st, source, login, msgs),
		Messages:              msgs,
	}
	f.Auth.onReset = f.ResetAll
	return f
}

// resetter is the part of a slice the notifier and logout need.
type resetter interface {
	Reset(ctx context.Context, op remote.Op) (remote.Transition, error)
	Acknowledge(ctx context.Context, op remote.Op, gen uint64) (remote.Transition, error)
	ResetAll(ctx context.Context) error
}

func (f *Features) resetter(feature store.Feature) (resetter, bool) {
	switch feature {
	case store.FeatureCustomers:
		return f.Customers, true
	case store.FeatureProviders:
		return f.Providers, true
	case store.FeatureUsers:
		return f.Users, true
	case store.FeatureServiceEntries:
		return f.ServiceEntries, true
	case store.FeatureServicePackageRecords:
		return f.ServicePackageRecords, true
	case store.FeatureSurveys:
		return f.Surveys, true
	case store.FeatureProfile:
		return f.Profile, true
	default:
		return nil, false
	}
}

// Reset returns one sub-operation of feature to idle.
func (f *Features) Reset(ctx context.Context, feature store.Feature, op remote.Op) error {
	r, ok := f.resetter(feature)
	if !ok {
		return fmt.Errorf("feature.Features.Reset: %q: %w", feature, ErrUnknownFeature)
	}
	if _, err := r.Reset(ctx, op); err != nil {
		return fmt.Errorf("feature.Features.Reset: %w", err)
	}
	return nil
}

// Acknowledge returns a finished mutation of feature to idle when gen is still
// its latest dispatch.
func (f *Features) Acknowledge(ctx context.Context, feature store.Feature, op remote.Op, gen uint64) error {
	r, ok := f.resetter(feature)
	if !ok {
		return fmt.Errorf("feature.Features.Acknowledge: %q: %w", feature, ErrUnknownFeature)
	}
	if _, err := r.Acknowledge(ctx, op, gen); err != nil {
		return fmt.Errorf("feature.Features.Acknowledge: %w", err)
	}
	return nil
}

// ResetFeature returns every sub-operation of feature to idle, as a view does
// when it unmounts.
func (f *Features) ResetFeature(ctx context.Context, feature store.Feature) error {
	r, ok := f.resetter(feature)
	if !ok {
		return fmt.Errorf("feature.Features.ResetFeature: %q: %w", feature, ErrUnknownFeature)
	}
	return r.ResetAll(ctx)
}

// ResetAll clears every region, roles included.
func (f *Features) ResetAll(ctx context.Context) error {
	for _, name := range []store.Feature{
		store.FeatureCustomers,
		store.FeatureProviders,
		store.FeatureUsers,
		store.FeatureServiceEntries,
		store.FeatureServicePackageRecords,
		store.FeatureSurveys,
		store.FeatureProfile,
	} {
		if err := f.ResetFeature(ctx, name); err != nil {
			return err
		}
	}
	return f.Roles.Reset(ctx)
}
