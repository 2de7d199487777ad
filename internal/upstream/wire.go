package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gosuda/backoffice/internal/domain"
)

// stringID accepts both numeric and string identifiers on the wire.
type stringID string

func (id *stringID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = stringID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = stringID(n.String())
	return nil
}

// wireTime accepts RFC 3339, naive timestamps and bare dates. Empty strings
// and null decode to the zero time.
type wireTime struct {
	time.Time
}

var timeLayouts = []string{ //nolint:gochecknoglobals // parse table
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

func (t *wireTime) UnmarshalJSON(b []byte) error {
	var s string
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("time: unrecognized format %q", s)
}

func (t wireTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.UTC().Format(time.RFC3339))), nil
}

func optionalTime(t *wireTime) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

func wireTimePtr(t *time.Time) *wireTime {
	if t == nil || t.IsZero() {
		return nil
	}
	return &wireTime{Time: *t}
}

// ---------------------------------------------------------------------------
// Shared value objects
// ---------------------------------------------------------------------------

type wireFileRef struct {
	ID   stringID `json:"id"`
	Name string   `json:"name"`
	URL  string   `json:"url,omitempty"`
}

func (w *wireFileRef) view() *domain.FileRef {
	if w == nil || w.ID == "" {
		return nil
	}
	return &domain.FileRef{ID: string(w.ID), Name: w.Name, URL: w.URL}
}

func fileRefWire(f *domain.FileRef) *wireFileRef {
	if f == nil {
		return nil
	}
	return &wireFileRef{ID: stringID(f.ID), Name: f.Name, URL: f.URL}
}

type wireFiscalProfile struct {
	TaxRegime   string       `json:"tax_regime"`
	TaxID       string       `json:"tax_id"`
	LegalName   string       `json:"legal_name"`
	Address     string       `json:"address"`
	PostalCode  string       `json:"postal_code"`
	Certificate *wireFileRef `json:"certificate,omitempty"`
}

func (w *wireFiscalProfile) view() *domain.FiscalProfile {
	if w == nil {
		return nil
	}
	return &domain.FiscalProfile{
		TaxRegime:   w.TaxRegime,
		TaxID:       w.TaxID,
		LegalName:   w.LegalName,
		Address:     w.Address,
		PostalCode:  w.PostalCode,
		Certificate: w.Certificate.view(),
	}
}

func fiscalWire(f *domain.FiscalProfile) *wireFiscalProfile {
	if f == nil {
		return nil
	}
	return &wireFiscalProfile{
		TaxRegime:   f.TaxRegime,
		TaxID:       f.TaxID,
		LegalName:   f.LegalName,
		Address:     f.Address,
		PostalCode:  f.PostalCode,
		Certificate: fileRefWire(f.Certificate),
	}
}

type wireBankingInfo struct {
	BankName      string       `json:"bank_name"`
	AccountHolder string       `json:"account_holder"`
	AccountNumber string       `json:"account_number"`
	Clabe         string       `json:"clabe"`
	StatementFile *wireFileRef `json:"statement_file,omitempty"`
}

func (w *wireBankingInfo) view() *domain.BankingInfo {
	if w == nil {
		return nil
	}
	return &domain.BankingInfo{
		BankName:      w.BankName,
		AccountHolder: w.AccountHolder,
		AccountNumber: w.AccountNumber,
		Clabe:         w.Clabe,
		StatementFile: w.StatementFile.view(),
	}
}

func bankingWire(b *domain.BankingInfo) *wireBankingInfo {
	if b == nil {
		return nil
	}
	return &wireBankingInfo{
		BankName:      b.BankName,
		AccountHolder: b.AccountHolder,
		AccountNumber: b.AccountNumber,
		Clabe:         b.Clabe,
		StatementFile: fileRefWire(b.StatementFile),
	}
}

type wireContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (w *wireContact) view() *domain.Contact {
	if w == nil || (w.Name == "" && w.Email == "" && w.Phone == "") {
		return nil
	}
	return &domain.Contact{Name: w.Name, Email: w.Email, Phone: w.Phone}
}

func contactWire(c *domain.Contact) *wireContact {
	if c == nil {
		return nil
	}
	return &wireContact{Name: c.Name, Email: c.Email, Phone: c.Phone}
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

type WireCustomer struct {
	ID            stringID           `json:"id,omitempty"`
	Name          string             `json:"name"`
	LegalName     string             `json:"legal_name"`
	TaxID         string             `json:"tax_id"`
	Email         string             `json:"email"`
	Phone         string             `json:"phone"`
	Status        string             `json:"status,omitempty"`
	FiscalProfile *wireFiscalProfile `json:"fiscal_profile,omitempty"`
	BankingInfo   *wireBankingInfo   `json:"banking_info,omitempty"`
	Contact       *wireContact       `json:"contact,omitempty"`
	ProfileToken  string             `json:"profile_token,omitempty"`
	CreatedAt     *wireTime          `json:"created_at,omitempty"`
	UpdatedAt     *wireTime          `json:"updated_at,omitempty"`
}

func CustomerView(w WireCustomer) domain.Customer {
	return domain.Customer{
		ID:            string(w.ID),
		Name:          w.Name,
		LegalName:     w.LegalName,
		TaxID:         w.TaxID,
		Email:         w.Email,
		Phone:         w.Phone,
		Status:        w.Status,
		FiscalProfile: w.FiscalProfile.view(),
		BankingInfo:   w.BankingInfo.view(),
		Contact:       w.Contact.view(),
		ProfileToken:  w.ProfileToken,
		CreatedAt:     derefTime(w.CreatedAt),
		UpdatedAt:     derefTime(w.UpdatedAt),
	}
}

func CustomerWire(c domain.Customer) WireCustomer {
	return WireCustomer{
		Name:          c.Name,
		LegalName:     c.LegalName,
		TaxID:         c.TaxID,
		Email:         c.Email,
		Phone:         c.Phone,
		Status:        c.Status,
		FiscalProfile: fiscalWire(c.FiscalProfile),
		BankingInfo:   bankingWire(c.BankingInfo),
		Contact:       contactWire(c.Contact),
	}
}

// ---------------------------------------------------------------------------
// Providers
// ---------------------------------------------------------------------------

type WireProvider struct {
	ID            stringID           `json:"id,omitempty"`
	Name          string             `json:"name"`
	LegalName     string             `json:"legal_name"`
	TaxID         string             `json:"tax_id"`
	Email         string             `json:"email"`
	Phone         string             `json:"phone"`
	Category      string             `json:"category"`
	Status        string             `json:"status,omitempty"`
	FiscalProfile *wireFiscalProfile `json:"fiscal_profile,omitempty"`
	BankingInfo   *wireBankingInfo   `json:"banking_info,omitempty"`
	Contact       *wireContact       `json:"contact,omitempty"`
	ProfileToken  string             `json:"profile_token,omitempty"`
	CreatedAt     *wireTime          `json:"created_at,omitempty"`
	UpdatedAt     *wireTime          `json:"updated_at,omitempty"`
}

func ProviderView(w WireProvider) domain.Provider {
	return domain.Provider{
		ID:            string(w.ID),
		Name:          w.Name,
		LegalName:     w.LegalName,
		TaxID:         w.TaxID,
		Email:         w.Email,
		Phone:         w.Phone,
		Category:      w.Category,
		Status:        w.Status,
		FiscalProfile: w.FiscalProfile.view(),
		BankingInfo:   w.BankingInfo.view(),
		Contact:       w.Contact.view(),
		ProfileToken:  w.ProfileToken,
		CreatedAt:     derefTime(w.CreatedAt),
		UpdatedAt:     derefTime(w.UpdatedAt),
	}
}

func ProviderWire(p domain.Provider) WireProvider {
	return WireProvider{
		Name:          p.Name,
		LegalName:     p.LegalName,
		TaxID:         p.TaxID,
		Email:         p.Email,
		Phone:         p.Phone,
		Category:      p.Category,
		Status:        p.Status,
		FiscalProfile: fiscalWire(p.FiscalProfile),
		BankingInfo:   bankingWire(p.BankingInfo),
		Contact:       contactWire(p.Contact),
	}
}

// ---------------------------------------------------------------------------
// Users and profile
// ---------------------------------------------------------------------------

type WireUser struct {
	ID          stringID  `json:"id,omitempty"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Status      string    `json:"status,omitempty"`
	LastLoginAt *wireTime `json:"last_login_at,omitempty"`
	CreatedAt   *wireTime `json:"created_at,omitempty"`
}

func UserView(w WireUser) domain.User {
	return domain.User{
		ID:          string(w.ID),
		Name:        w.Name,
		Email:       w.Email,
		Role:        domain.Role(w.Role),
		Status:      w.Status,
		LastLoginAt: optionalTime(w.LastLoginAt),
		CreatedAt:   derefTime(w.CreatedAt),
	}
}

func UserWire(u domain.User) WireUser {
	return WireUser{
		Name:   u.Name,
		Email:  u.Email,
		Role:   string(u.Role),
		Status: u.Status,
	}
}

type WireProfile struct {
	ID     stringID `json:"id,omitempty"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Role   string   `json:"role,omitempty"`
	Avatar string   `json:"avatar,omitempty"`
}

func ProfileView(w WireProfile) domain.Profile {
	return domain.Profile{ID: string(w.ID), Name: w.Name, Email: w.Email, Role: domain.Role(w.Role), Avatar: w.Avatar}
}

func ProfileWire(p domain.Profile) WireProfile {
	return WireProfile{Name: p.Name, Email: p.Email, Avatar: p.Avatar}
}

type wireRole struct {
	Value string `json:"value"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

func (w wireRole) view() domain.RoleOption {
	value := w.Value
	if value == "" {
		value = w.Name
	}
	label := w.Label
	if label == "" {
		label = value
	}
	return domain.RoleOption{Value: domain.Role(value), Label: label}
}

// ---------------------------------------------------------------------------
// Service entries
// ---------------------------------------------------------------------------

type WireServiceEntry struct {
	ID              stringID      `json:"id,omitempty"`
	CustomerID      stringID      `json:"customer_id"`
	ProviderID      stringID      `json:"provider_id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	ServiceDate     *wireTime     `json:"service_date,omitempty"`
	Amount          float64       `json:"amount"`
	Status          string        `json:"status,omitempty"`
	Files           []wireFileRef `json:"files"`
	SurveyToken     string        `json:"survey_token,omitempty"`
	SurveyCompleted bool          `json:"survey_completed"`
	CreatedAt       *wireTime     `json:"created_at,omitempty"`
}

func ServiceEntryView(w WireServiceEntry) domain.ServiceEntry {
	files := make([]domain.FileRef, 0, len(w.Files))
	for i := range w.Files {
		if ref := w.Files[i].view(); ref != nil {
			files = append(files, *ref)
		}
	}
	return domain.ServiceEntry{
		ID:              string(w.ID),
		CustomerID:      string(w.CustomerID),
		ProviderID:      string(w.ProviderID),
		Title:           w.Title,
		Description:     w.Description,
		ServiceDate:     derefTime(w.ServiceDate),
		Amount:          w.Amount,
		Status:          w.Status,
		Files:           files,
		SurveyToken:     w.SurveyToken,
		SurveyCompleted: w.SurveyCompleted,
		CreatedAt:       derefTime(w.CreatedAt),
	}
}

func ServiceEntryWire(s domain.ServiceEntry) WireServiceEntry {
	files := make([]wireFileRef, 0, len(s.Files))
	for i := range s.Files {
		files = append(files, *fileRefWire(&s.Files[i]))
	}
	return WireServiceEntry{
		CustomerID:  stringID(s.CustomerID),
		ProviderID:  stringID(s.ProviderID),
		Title:       s.Title,
		Description: s.Description,
		ServiceDate: wireTimePtr(&s.ServiceDate),
		Amount:      s.Amount,
		Status:      s.Status,
		Files:       files,
	}
}

// ---------------------------------------------------------------------------
// Service package records
// ---------------------------------------------------------------------------

type WireServicePackageRecord struct {
	ID            stringID  `json:"id,omitempty"`
	CustomerID    stringID  `json:"customer_id"`
	PackageName   string    `json:"package_name"`
	SessionsTotal int       `json:"sessions_total"`
	SessionsUsed  int       `json:"sessions_used"`
	StartsAt      *wireTime `json:"starts_at,omitempty"`
	ExpiresAt     *wireTime `json:"expires_at,omitempty"`
	Status        string    `json:"status,omitempty"`
	CreatedAt     *wireTime `json:"created_at,omitempty"`
}

func ServicePackageRecordView(w WireServicePackageRecord) domain.ServicePackageRecord {
	return domain.ServicePackageRecord{
		ID:            string(w.ID),
		CustomerID:    string(w.CustomerID),
		PackageName:   w.PackageName,
		SessionsTotal: w.SessionsTotal,
		SessionsUsed:  w.SessionsUsed,
		StartsAt:      derefTime(w.StartsAt),
		ExpiresAt:     optionalTime(w.ExpiresAt),
		Status:        w.Status,
		CreatedAt:     derefTime(w.CreatedAt),
	}
}

func ServicePackageRecordWire(r domain.ServicePackageRecord) WireServicePackageRecord {
	return WireServicePackageRecord{
		CustomerID:    stringID(r.CustomerID),
		PackageName:   r.PackageName,
		SessionsTotal: r.SessionsTotal,
		SessionsUsed:  r.SessionsUsed,
		StartsAt:      wireTimePtr(&r.StartsAt),
		ExpiresAt:     wireTimePtr(r.ExpiresAt),
		Status:        r.Status,
	}
}

// ---------------------------------------------------------------------------
// Surveys
// ---------------------------------------------------------------------------

type WireSurveyResponse struct {
	ID             stringID          `json:"id,omitempty"`
	ServiceEntryID stringID          `json:"service_entry_id"`
	Answers        map[string]string `json:"answers"`
	Observations   string            `json:"observations"`
	SubmittedAt    *wireTime         `json:"submitted_at,omitempty"`
}

func SurveyResponseView(w WireSurveyResponse) domain.SurveyResponse {
	answers := make(map[domain.QuestionID]domain.Rating, len(w.Answers))
	for q, r := range w.Answers {
		answers[domain.QuestionID(q)] = domain.Rating(r)
	}
	return domain.SurveyResponse{
		ID:             string(w.ID),
		ServiceEntryID: string(w.ServiceEntryID),
		Answers:        answers,
		Observations:   w.Observations,
		SubmittedAt:    derefTime(w.SubmittedAt),
	}
}

func SurveyResponseWire(s domain.SurveyResponse) WireSurveyResponse {
	answers := make(map[string]string, len(s.Answers))
	for q, r := range s.Answers {
		answers[string(q)] = string(r)
	}
	return WireSurveyResponse{
		ServiceEntryID: stringID(s.ServiceEntryID),
		Answers:        answers,
		Observations:   s.Observations,
	}
}

func derefTime(t *wireTime) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.Time
}
