package store

import (
	"time"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/remote"
)

// Feature names a region of the application state.
type Feature string

const (
	FeatureCustomers             Feature = "customers"
	FeatureProviders             Feature = "providers"
	FeatureUsers                 Feature = "users"
	FeatureServiceEntries        Feature = "service-entries"
	FeatureServicePackageRecords Feature = "service-package-records"
	FeatureSurveys               Feature = "surveys"
	FeatureRoles                 Feature = "roles"
	FeatureProfile               Feature = "profile"
	FeatureAuth                  Feature = "auth"
)

// AppState holds one sub-state per feature. It is owned by the Store loop;
// everything else sees copies.
type AppState struct {
	Customers             remote.State[domain.Customer]             `json:"customers"`
	Providers             remote.State[domain.Provider]             `json:"providers"`
	Users                 remote.State[domain.User]                 `json:"users"`
	ServiceEntries        remote.State[domain.ServiceEntry]         `json:"serviceEntries"`
	ServicePackageRecords remote.State[domain.ServicePackageRecord] `json:"servicePackageRecords"`
	Surveys               remote.State[domain.SurveyResponse]       `json:"surveys"`
	Profile               remote.State[domain.Profile]              `json:"profile"`
	Roles                 RolesState                                `json:"roles"`
	Auth                  AuthState                                 `json:"auth"`
}

// NewAppState returns the initial state with every feature idle.
func NewAppState() AppState {
	return AppState{
		Customers:             remote.New[domain.Customer](),
		Providers:             remote.New[domain.Provider](),
		Users:                 remote.New[domain.User](),
		ServiceEntries:        remote.New[domain.ServiceEntry](),
		ServicePackageRecords: remote.New[domain.ServicePackageRecord](),
		Surveys:               remote.New[domain.SurveyResponse](),
		Profile:               remote.New[domain.Profile](),
		Roles:                 RolesState{Options: []domain.RoleOption{}, Status: remote.StatusIdle},
		Auth:                  AuthState{Status: remote.StatusIdle},
	}
}

type RolesState struct {
	Options []domain.RoleOption `json:"options"`
	Status  remote.Status       `json:"status"`
	Error   string              `json:"error,omitempty"`
	// Fallback is set when Options came from the local enumeration.
	Fallback bool `json:"fallback"`
}

type AuthState struct {
	Authenticated bool          `json:"authenticated"`
	Subject       string        `json:"subject,omitempty"`
	ExpiresAt     *time.Time    `json:"expiresAt,omitempty"`
	Status        remote.Status `json:"status"`
	Error         string        `json:"error,omitempty"`
}

// Lens selects a feature's remote-collection region of AppState.
type Lens[T domain.Entity] func(*AppState) *remote.State[T]

func CustomersLens(s *AppState) *remote.State[domain.Customer] { return &s.Customers }
func ProvidersLens(s *AppState) *remote.State[domain.Provider] { return &s.Providers }
func UsersLens(s *AppState) *remote.State[domain.User]         { return &s.Users }
func ServiceEntriesLens(s *AppState) *remote.State[domain.ServiceEntry] {
	return &s.ServiceEntries
}
func ServicePackageRecordsLens(s *AppState) *remote.State[domain.ServicePackageRecord] {
	return &s.ServicePackageRecords
}
func SurveysLens(s *AppState) *remote.State[domain.SurveyResponse] { return &s.Surveys }
func ProfileLens(s *AppState) *remote.State[domain.Profile]        { return &s.Profile }

// Notice is published for every transition applied through the store.
type Notice struct {
	Feature Feature `json:"feature"`
	remote.Transition
	At time.Time `json:"at"`
}
