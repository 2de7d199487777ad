package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/backoffice/internal/api/v1"
	"github.com/gosuda/backoffice/internal/api/ws"
	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/feature"
	"github.com/gosuda/backoffice/internal/publicflow"
	"github.com/gosuda/backoffice/internal/store"
	"github.com/gosuda/backoffice/internal/table"
)

func registerOpenRoutes(api huma.API, features *feature.Features, public *publicflow.Service) {
	v1.RegisterSessionRoutes(api, features.Auth)
	v1.RegisterPublicRoutes(api, public)
}

func registerAPIRoutes(api huma.API, features *feature.Features, defaults table.Defaults) {
	v1.RegisterCollectionRoutes[domain.Customer](api, string(store.FeatureCustomers), "Customers", features.Customers, defaults)
	v1.RegisterCollectionRoutes[domain.Provider](api, string(store.FeatureProviders), "Providers", features.Providers, defaults)
	v1.RegisterCollectionRoutes[domain.User](api, string(store.FeatureUsers), "Users", features.Users, defaults)
	v1.RegisterCollectionRoutes[domain.ServiceEntry](api, string(store.FeatureServiceEntries), "Service entries", features.ServiceEntries, defaults)
	v1.RegisterCollectionRoutes[domain.ServicePackageRecord](api, string(store.FeatureServicePackageRecords), "Service package records", features.ServicePackageRecords, defaults)
	v1.RegisterCollectionRoutes[domain.SurveyResponse](api, string(store.FeatureSurveys), "Surveys", features.Surveys, defaults)
	v1.RegisterAccountRoutes(api, features.Roles, features.Profile)
	v1.RegisterUploadRoutes(api, features.ServiceEntries)
}

func registerViews(views *ws.Views, features *feature.Features) {
	views.Register(string(store.FeatureCustomers), ws.NewView[domain.Customer](features.Customers))
	views.Register(string(store.FeatureProviders), ws.NewView[domain.Provider](features.Providers))
	views.Register(string(store.FeatureUsers), ws.NewView[domain.User](features.Users))
	views.Register(string(store.FeatureServiceEntries), ws.NewView[domain.ServiceEntry](features.ServiceEntries))
	views.Register(string(store.FeatureServicePackageRecords), ws.NewView[domain.ServicePackageRecord](features.ServicePackageRecords))
	views.Register(string(store.FeatureSurveys), ws.NewView[domain.SurveyResponse](features.Surveys))
}

func registerWSRoutes(r chi.Router, hub *ws.Hub, views *ws.Views) {
	r.Get("/notifications", hub.ServeNotifications)
	r.Get("/views/{feature}", views.ServeView)
}
