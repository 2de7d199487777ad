package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gosuda/backoffice/internal/domain"
)

// REST namespaces of the backend.
const (
	CustomersPath             = "/customers"
	ProvidersPath             = "/providers"
	UsersPath                 = "/users"
	ServiceEntriesPath        = "/service-entries"
	ServicePackageRecordsPath = "/service-package-records"
	SurveysPath               = "/surveys"
	RolesPath                 = "/roles"
	LoginPath                 = "/auth/login"
	ProfilePath               = "/auth/me"
)

// Backend groups the authenticated resources of the REST API.
type Backend struct {
	Client                *Client
	Customers             *Resource[WireCustomer, domain.Customer]
	Providers             *Resource[WireProvider, domain.Provider]
	Users                 *Resource[WireUser, domain.User]
	ServiceEntries        *Resource[WireServiceEntry, domain.ServiceEntry]
	ServicePackageRecords *Resource[WireServicePackageRecord, domain.ServicePackageRecord]
	Surveys               *Resource[WireSurveyResponse, domain.SurveyResponse]
}

// NewBackend binds every namespace to c.
func NewBackend(c *Client) *Backend {
	return &Backend{
		Client:                c,
		Customers:             NewResource(c, CustomersPath, CustomerView, CustomerWire),
		Providers:             NewResource(c, ProvidersPath, ProviderView, ProviderWire),
		Users:                 NewResource(c, UsersPath, UserView, UserWire),
		ServiceEntries:        NewResource(c, ServiceEntriesPath, ServiceEntryView, ServiceEntryWire),
		ServicePackageRecords: NewResource(c, ServicePackageRecordsPath, ServicePackageRecordView, ServicePackageRecordWire),
		Surveys:               NewResource(c, SurveysPath, SurveyResponseView, SurveyResponseWire),
	}
}

// Roles lists the role options offered by the backend.
func (b *Backend) Roles(ctx context.Context) ([]domain.RoleOption, error) {
	var wire []wireRole
	if _, err := b.Client.Do(ctx, http.MethodGet, RolesPath, nil, nil, &wire); err != nil {
		return nil, fmt.Errorf("upstream.Backend.Roles: %w", err)
	}
	out := make([]domain.RoleOption, 0, len(wire))
	for _, w := range wire {
		if opt := w.view(); opt.Value != "" {
			out = append(out, opt)
		}
	}
	return out, nil
}

// Profile fetches the signed-in operator.
func (b *Backend) Profile(ctx context.Context) (domain.Profile, error) {
	var w WireProfile
	if _, err := b.Client.Do(ctx, http.MethodGet, ProfilePath, nil, nil, &w); err != nil {
		return domain.Profile{}, fmt.Errorf("upstream.Backend.Profile: %w", err)
	}
	return ProfileView(w), nil
}

// UpdateProfile patches the signed-in operator.
func (b *Backend) UpdateProfile(ctx context.Context, p domain.Profile) (domain.Profile, string, error) {
	var w WireProfile
	meta, err := b.Client.Do(ctx, http.MethodPatch, ProfilePath, nil, ProfileWire(p), &w)
	if err != nil {
		return domain.Profile{}, "", fmt.Errorf("upstream.Backend.UpdateProfile: %w", err)
	}
	return ProfileView(w), meta.Message, nil
}

// Upload sends files to the authenticated upload endpoint.
func (b *Backend) Upload(ctx context.Context, files []FilePart) ([]domain.UploadedFile, string, error) {
	return b.Client.Upload(ctx, UploadPath, nil, files)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // G117: login credential DTO
}

type loginResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"` //nolint:gosec // G117: auth response DTO
}

// Login exchanges credentials for a bearer token. It is sent without an
// Authorization header, so c must be a public client.
func Login(ctx context.Context, c *Client, email, password string) (string, error) {
	var out loginResponse
	if _, err := c.Do(ctx, http.MethodPost, LoginPath, nil, loginRequest{Email: email, Password: password}, &out); err != nil {
		return "", fmt.Errorf("upstream.Login: %w", err)
	}
	tok := out.Token
	if tok == "" {
		tok = out.AccessToken
	}
	if tok == "" {
		return "", fmt.Errorf("upstream.Login: %w", &APIError{Status: http.StatusBadGateway, Message: "login response carried no token"})
	}
	return tok, nil
}

// ProfileKind selects which public profile namespace a token belongs to.
type ProfileKind string

const (
	ProfileCustomer ProfileKind = "customers"
	ProfileProvider ProfileKind = "providers"
)

// Valid reports whether k is a known namespace.
func (k ProfileKind) Valid() bool {
	return k == ProfileCustomer || k == ProfileProvider
}

// PublicProfile is what the token-scoped profile endpoint returns and accepts.
type PublicProfile struct {
	Name          string
	LegalName     string
	TaxID         string
	Email         string
	Phone         string
	FiscalProfile *domain.FiscalProfile
	BankingInfo   *domain.BankingInfo
	Contact       *domain.Contact
	Completed     bool
}

type wirePublicProfile struct {
	Name          string             `json:"name"`
	LegalName     string             `json:"legal_name"`
	TaxID         string             `json:"tax_id"`
	Email         string             `json:"email"`
	Phone         string             `json:"phone"`
	FiscalProfile *wireFiscalProfile `json:"fiscal_profile,omitempty"`
	BankingInfo   *wireBankingInfo   `json:"banking_info,omitempty"`
	Contact       *wireContact       `json:"contact,omitempty"`
	Completed     bool               `json:"completed,omitempty"`
}

// PublicSurvey is the service entry a survey token refers to.
type PublicSurvey struct {
	ServiceEntryID string
	Title          string
	ServiceDate    string
	Completed      bool
	Files          []domain.FileRef
}

type wirePublicSurvey struct {
	ServiceEntryID stringID      `json:"service_entry_id"`
	Title          string        `json:"title"`
	ServiceDate    *wireTime     `json:"service_date,omitempty"`
	Completed      bool          `json:"completed"`
	Files          []wireFileRef `json:"files"`
}

// SurveySubmission is the body of a public survey submission.
type SurveySubmission struct {
	Answers      map[domain.QuestionID]domain.Rating
	Observations string
}

// Public calls the token-scoped endpoints. It never sends credentials; the
// opaque token in the path is the only authorization.
type Public struct {
	client *Client
}

// NewPublic wraps a client created without a token source.
func NewPublic(c *Client) (*Public, error) {
	if c.Authenticated() {
		return nil, fmt.Errorf("upstream.NewPublic: client must not carry credentials")
	}
	return &Public{client: c}, nil
}

func publicProfilePath(kind ProfileKind, token string) string {
	return "/public/" + string(kind) + "/" + url.PathEscape(token) + "/profile"
}

func (p *Public) Profile(ctx context.Context, kind ProfileKind, token string) (PublicProfile, error) {
	var w wirePublicProfile
	if _, err := p.client.Do(ctx, http.MethodGet, publicProfilePath(kind, token), nil, nil, &w); err != nil {
		return PublicProfile{}, fmt.Errorf("upstream.Public.Profile: %w", err)
	}
	return PublicProfile{
		Name:          w.Name,
		LegalName:     w.LegalName,
		TaxID:         w.TaxID,
		Email:         w.Email,
		Phone:         w.Phone,
		FiscalProfile: w.FiscalProfile.view(),
		BankingInfo:   w.BankingInfo.view(),
		Contact:       w.Contact.view(),
		Completed:     w.Completed,
	}, nil
}

// SubmitProfile posts the whole form back and returns the success message.
func (p *Public) SubmitProfile(ctx context.Context, kind ProfileKind, token string, in PublicProfile) (string, error) {
	body := wirePublicProfile{
		Name:          in.Name,
		LegalName:     in.LegalName,
		TaxID:         in.TaxID,
		Email:         in.Email,
		Phone:         in.Phone,
		FiscalProfile: fiscalWire(in.FiscalProfile),
		BankingInfo:   bankingWire(in.BankingInfo),
		Contact:       contactWire(in.Contact),
	}
	meta, err := p.client.Do(ctx, http.MethodPost, publicProfilePath(kind, token), nil, body, nil)
	if err != nil {
		return "", fmt.Errorf("upstream.Public.SubmitProfile: %w", err)
	}
	return meta.Message, nil
}

// Upload sends files to the public upload endpoint on behalf of token.
func (p *Public) Upload(ctx context.Context, token string, files []FilePart) ([]domain.UploadedFile, string, error) {
	return p.client.Upload(ctx, PublicUploadPath, map[string]string{"token": token}, files)
}

func publicSurveyPath(token string) string {
	return "/public/surveys/" + url.PathEscape(token)
}

func (p *Public) Survey(ctx context.Context, token string) (PublicSurvey, error) {
	var w wirePublicSurvey
	if _, err := p.client.Do(ctx, http.MethodGet, publicSurveyPath(token), nil, nil, &w); err != nil {
		return PublicSurvey{}, fmt.Errorf("upstream.Public.Survey: %w", err)
	}
	files := make([]domain.FileRef, 0, len(w.Files))
	for i := range w.Files {
		if ref := w.Files[i].view(); ref != nil {
			files = append(files, *ref)
		}
	}
	out := PublicSurvey{
		ServiceEntryID: string(w.ServiceEntryID),
		Title:          w.Title,
		Completed:      w.Completed,
		Files:          files,
	}
	if w.ServiceDate != nil && !w.ServiceDate.IsZero() {
		out.ServiceDate = w.ServiceDate.Format("2006-01-02")
	}
	return out, nil
}

func (p *Public) SubmitSurvey(ctx context.Context, token string, in SurveySubmission) (string, error) {
	answers := make(map[string]string, len(in.Answers))
	for q, r := range in.Answers {
		answers[string(q)] = string(r)
	}
	body := struct {
		Answers      map[string]string `json:"answers"`
		Observations string            `json:"observations"`
	}{Answers: answers, Observations: in.Observations}

	meta, err := p.client.Do(ctx, http.MethodPost, publicSurveyPath(token), nil, body, nil)
	if err != nil {
		return "", fmt.Errorf("upstream.Public.SubmitSurvey: %w", err)
	}
	return meta.Message, nil
}
