package domain

import "time"

// Entity is anything the dashboard keeps in a remote collection.
type Entity interface {
	EntityID() string
}

// Pagination mirrors the server's pagination meta.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// FileRef points at an uploaded document attached to another object.
type FileRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// UploadedFile is a descriptor returned by the upload endpoints.
type UploadedFile struct {
	ID           string `json:"id"`
	OriginalName string `json:"originalName"`
	Filename     string `json:"filename"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
	URL          string `json:"url"`
}

// Ref converts the descriptor into the reference stored on forms.
func (f UploadedFile) Ref() FileRef {
	return FileRef{ID: f.ID, Name: f.OriginalName, URL: f.URL}
}

// FiscalProfile is the tax identity of a customer or provider.
type FiscalProfile struct {
	TaxRegime   string   `json:"taxRegime"`
	TaxID       string   `json:"taxId"`
	LegalName   string   `json:"legalName"`
	Address     string   `json:"address"`
	PostalCode  string   `json:"postalCode"`
	Certificate *FileRef `json:"certificate,omitempty"`
}

// BankingInfo holds payout details.
type BankingInfo struct {
	BankName      string   `json:"bankName"`
	AccountHolder string   `json:"accountHolder"`
	AccountNumber string   `json:"accountNumber"`
	Clabe         string   `json:"clabe"`
	StatementFile *FileRef `json:"statementFile,omitempty"`
}

// Contact is a person to reach for an account.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Customer struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	LegalName     string         `json:"legalName"`
	TaxID         string         `json:"taxId"`
	Email         string         `json:"email"`
	Phone         string         `json:"phone"`
	Status        string         `json:"status"`
	FiscalProfile *FiscalProfile `json:"fiscalProfile,omitempty"`
	BankingInfo   *BankingInfo   `json:"bankingInfo,omitempty"`
	Contact       *Contact       `json:"contact,omitempty"`
	ProfileToken  string         `json:"profileToken,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (c Customer) EntityID() string { return c.ID }

func (c Customer) WithEntityID(id string) Customer {
	c.ID = id
	return c
}

type Provider struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	LegalName     string         `json:"legalName"`
	TaxID         string         `json:"taxId"`
	Email         string         `json:"email"`
	Phone         string         `json:"phone"`
	Category      string         `json:"category"`
	Status        string         `json:"status"`
	FiscalProfile *FiscalProfile `json:"fiscalProfile,omitempty"`
	BankingInfo   *BankingInfo   `json:"bankingInfo,omitempty"`
	Contact       *Contact       `json:"contact,omitempty"`
	ProfileToken  string         `json:"profileToken,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (p Provider) EntityID() string { return p.ID }

func (p Provider) WithEntityID(id string) Provider {
	p.ID = id
	return p
}

type ServiceEntry struct {
	ID              string    `json:"id"`
	CustomerID      string    `json:"customerId"`
	ProviderID      string    `json:"providerId"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	ServiceDate     time.Time `json:"serviceDate"`
	Amount          float64   `json:"amount"`
	Status          string    `json:"status"`
	Files           []FileRef `json:"files"`
	SurveyToken     string    `json:"surveyToken,omitempty"`
	SurveyCompleted bool      `json:"surveyCompleted"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (s ServiceEntry) EntityID() string { return s.ID }

func (s ServiceEntry) WithEntityID(id string) ServiceEntry {
	s.ID = id
	return s
}

type ServicePackageRecord struct {
	ID            string     `json:"id"`
	CustomerID    string     `json:"customerId"`
	PackageName   string     `json:"packageName"`
	SessionsTotal int        `json:"sessionsTotal"`
	SessionsUsed  int        `json:"sessionsUsed"`
	StartsAt      time.Time  `json:"startsAt"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func (r ServicePackageRecord) EntityID() string { return r.ID }

func (r ServicePackageRecord) WithEntityID(id string) ServicePackageRecord {
	r.ID = id
	return r
}

// SessionsLeft never goes below zero.
func (r ServicePackageRecord) SessionsLeft() int {
	return max(0, r.SessionsTotal-r.SessionsUsed)
}

type SurveyResponse struct {
	ID             string                `json:"id"`
	ServiceEntryID string                `json:"serviceEntryId"`
	Answers        map[QuestionID]Rating `json:"answers"`
	Observations   string                `json:"observations"`
	SubmittedAt    time.Time             `json:"submittedAt"`
}

func (s SurveyResponse) EntityID() string { return s.ID }

func (s SurveyResponse) WithEntityID(id string) SurveyResponse {
	s.ID = id
	return s
}
