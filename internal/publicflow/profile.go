// Package publicflow implements the flows reached through an opaque token
// link instead of a session: the customer/provider self-service profile form
// and the post-service satisfaction survey.
package publicflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/feature"
	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/upstream"
)

// PublicAPI is the token-scoped backend surface. *upstream.Public implements it.
type PublicAPI interface {
	Profile(ctx context.Context, kind upstream.ProfileKind, token string) (upstream.PublicProfile, error)
	SubmitProfile(ctx context.Context, kind upstream.ProfileKind, token string, in upstream.PublicProfile) (string, error)
	Upload(ctx context.Context, token string, files []upstream.FilePart) ([]domain.UploadedFile, string, error)
	Survey(ctx context.Context, token string) (upstream.PublicSurvey, error)
	SubmitSurvey(ctx context.Context, token string, in upstream.SurveySubmission) (string, error)
}

// ErrNotLoaded is returned by operations that need Load first.
var ErrNotLoaded = errors.New("publicflow: not loaded")

// FileField names a document slot of the profile form.
type FileField string

const (
	FieldCertificate FileField = "certificate"
	FieldStatement   FileField = "statement"
)

func (f FileField) Valid() bool {
	return f == FieldCertificate || f == FieldStatement
}

// ProfileForm is the flat form a customer or provider fills in.
type ProfileForm struct {
	Name      string `json:"name"`
	LegalName string `json:"legalName"`
	TaxID     string `json:"taxId"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`

	TaxRegime  string `json:"taxRegime"`
	Address    string `json:"address"`
	PostalCode string `json:"postalCode"`

	BankName      string `json:"bankName"`
	AccountHolder string `json:"accountHolder"`
	AccountNumber string `json:"accountNumber"`
	Clabe         string `json:"clabe"`

	ContactName  string `json:"contactName"`
	ContactEmail string `json:"contactEmail"`
	ContactPhone string `json:"contactPhone"`

	CertificateFileID string `json:"certificateFileId,omitempty"`
	StatementFileID   string `json:"statementFileId,omitempty"`
}

func formFromProfile(p upstream.PublicProfile) ProfileForm {
	f := ProfileForm{
		Name:      p.Name,
		LegalName: p.LegalName,
		TaxID:     p.TaxID,
		Email:     p.Email,
		Phone:     p.Phone,
	}
	if fp := p.FiscalProfile; fp != nil {
		f.TaxRegime, f.Address, f.PostalCode = fp.TaxRegime, fp.Address, fp.PostalCode
		if f.TaxID == "" {
			f.TaxID = fp.TaxID
		}
		if f.LegalName == "" {
			f.LegalName = fp.LegalName
		}
		if fp.Certificate != nil {
			f.CertificateFileID = fp.Certificate.ID
		}
	}
	if b := p.BankingInfo; b != nil {
		f.BankName, f.AccountHolder, f.AccountNumber, f.Clabe = b.BankName, b.AccountHolder, b.AccountNumber, b.Clabe
		if b.StatementFile != nil {
			f.StatementFileID = b.StatementFile.ID
		}
	}
	if c := p.Contact; c != nil {
		f.ContactName, f.ContactEmail, f.ContactPhone = c.Name, c.Email, c.Phone
	}
	return f
}

// profile builds the submission. Sections left blank are omitted.
func (f ProfileForm) profile(names func(string) string) upstream.PublicProfile {
	out := upstream.PublicProfile{
		Name:      strings.TrimSpace(f.Name),
		LegalName: strings.TrimSpace(f.LegalName),
		TaxID:     strings.TrimSpace(f.TaxID),
		Email:     strings.TrimSpace(f.Email),
		Phone:     strings.TrimSpace(f.Phone),
	}
	if f.TaxRegime != "" || f.Address != "" || f.PostalCode != "" || f.CertificateFileID != "" {
		fp := &domain.FiscalProfile{
			TaxRegime:  f.TaxRegime,
			TaxID:      out.TaxID,
			LegalName:  out.LegalName,
			Address:    f.Address,
			PostalCode: f.PostalCode,
		}
		if f.CertificateFileID != "" {
			fp.Certificate = &domain.FileRef{ID: f.CertificateFileID, Name: names(f.CertificateFileID)}
		}
		out.FiscalProfile = fp
	}
	if f.BankName != "" || f.AccountNumber != "" || f.Clabe != "" || f.StatementFileID != "" {
		b := &domain.BankingInfo{
			BankName:      f.BankName,
			AccountHolder: f.AccountHolder,
			AccountNumber: f.AccountNumber,
			Clabe:         f.Clabe,
		}
		if f.StatementFileID != "" {
			b.StatementFile = &domain.FileRef{ID: f.StatementFileID, Name: names(f.StatementFileID)}
		}
		out.BankingInfo = b
	}
	if f.ContactName != "" || f.ContactEmail != "" || f.ContactPhone != "" {
		out.Contact = &domain.Contact{Name: f.ContactName, Email: f.ContactEmail, Phone: f.ContactPhone}
	}
	return out
}

// Validate checks the form before it is submitted.
func (f ProfileForm) Validate() error {
	v := &domain.ValidationError{}
	if strings.TrimSpace(f.Name) == "" {
		v.Add("name", "required")
	}
	if strings.TrimSpace(f.TaxID) == "" {
		v.Add("taxId", "required")
	}
	if e := strings.TrimSpace(f.Email); e == "" {
		v.Add("email", "required")
	} else if _, err := mail.ParseAddress(e); err != nil {
		v.Add("email", "invalid email")
	}
	if c := strings.TrimSpace(f.ContactEmail); c != "" {
		if _, err := mail.ParseAddress(c); err != nil {
			v.Add("contactEmail", "invalid email")
		}
	}
	if c := strings.TrimSpace(f.Clabe); c != "" && !digits(c, 18) {
		v.Add("clabe", "must be 18 digits")
	}
	return v.OrNil()
}

func digits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ProfileView is the state of a profile flow as the page renders it.
type ProfileView struct {
	Kind      upstream.ProfileKind `json:"kind"`
	Form      ProfileForm          `json:"form"`
	FileNames map[string]string    `json:"fileNames"`
	Status    remote.Status        `json:"status"`
	Uploading bool                 `json:"uploading"`
	Error     string               `json:"error,omitempty"`
	Message   string               `json:"message,omitempty"`
	Completed bool                 `json:"completed"`
}

// ProfileFlow is one token's profile form. File ids survive across submits.
type ProfileFlow struct {
	api   PublicAPI
	kind  upstream.ProfileKind
	names *expirable.LRU[string, string]
	msgs  *feature.Messages

	mu        sync.Mutex
	token     string
	loaded    bool
	form      ProfileForm
	status    remote.Status
	uploading bool
	err       string
	message   string
	completed bool
}

func NewProfileFlow(api PublicAPI, kind upstream.ProfileKind, names *expirable.LRU[string, string], msgs *feature.Messages) *ProfileFlow {
	return &ProfileFlow{api: api, kind: kind, names: names, msgs: msgs, status: remote.StatusIdle}
}

func (p *ProfileFlow) name(id string) string {
	if n, ok := p.names.Get(id); ok {
		return n
	}
	return ""
}

// Loaded reports whether Load succeeded at least once.
func (p *ProfileFlow) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

// View returns a copy of the flow state.
func (p *ProfileFlow) View() ProfileView {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := map[string]string{}
	for _, id := range []string{p.form.CertificateFileID, p.form.StatementFileID} {
		if id == "" {
			continue
		}
		if n := p.name(id); n != "" {
			names[id] = n
		}
	}
	return ProfileView{
		Kind:      p.kind,
		Form:      p.form,
		FileNames: names,
		Status:    p.status,
		Uploading: p.uploading,
		Error:     p.err,
		Message:   p.message,
		Completed: p.completed,
	}
}

// Load fetches the profile behind token and pre-fills the form.
func (p *ProfileFlow) Load(ctx context.Context, token string) (ProfileView, error) {
	prof, err := p.api.Profile(ctx, p.kind, token)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(p.kind)).Msg("public profile load failed")
		key := feature.MsgPublicProfile
		if errors.Is(err, domain.ErrNotFound) {
			key = feature.MsgNotFound
		}
		p.mu.Lock()
		p.status, p.err = remote.StatusFailed, p.msgs.Describe(err, key)
		p.mu.Unlock()
		return p.View(), fmt.Errorf("publicflow.ProfileFlow.Load: %w", err)
	}

	for _, ref := range []*domain.FileRef{certificate(prof), statement(prof)} {
		if ref != nil && ref.Name != "" {
			p.names.Add(ref.ID, ref.Name)
		}
	}

	p.mu.Lock()
	p.token = token
	p.loaded = true
	p.form = formFromProfile(prof)
	p.completed = prof.Completed
	p.status, p.err, p.message = remote.StatusIdle, "", ""
	p.mu.Unlock()
	return p.View(), nil
}

func certificate(p upstream.PublicProfile) *domain.FileRef {
	if p.FiscalProfile == nil {
		return nil
	}
	return p.FiscalProfile.Certificate
}

func statement(p upstream.PublicProfile) *domain.FileRef {
	if p.BankingInfo == nil {
		return nil
	}
	return p.BankingInfo.StatementFile
}

// AttachFile uploads a document as soon as it is picked and stores the
// returned id in the form slot.
func (p *ProfileFlow) AttachFile(ctx context.Context, field FileField, name, contentType string, r io.Reader) (domain.UploadedFile, error) {
	if !field.Valid() {
		return domain.UploadedFile{}, fmt.Errorf("publicflow.ProfileFlow.AttachFile: %w", &domain.ValidationError{Fields: map[string]string{"field": "unknown file field"}})
	}
	p.mu.Lock()
	if !p.loaded {
		p.mu.Unlock()
		return domain.UploadedFile{}, ErrNotLoaded
	}
	token := p.token
	p.uploading = true
	p.mu.Unlock()

	files, _, err := p.api.Upload(ctx, token, []upstream.FilePart{{Name: name, ContentType: contentType, Content: r}})

	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploading = false
	if err == nil && len(files) == 0 {
		err = errors.New("upload returned no files")
	}
	if err != nil {
		p.err = p.msgs.Describe(err, feature.MsgUpload)
		return domain.UploadedFile{}, fmt.Errorf("publicflow.ProfileFlow.AttachFile: %w", err)
	}

	f := files[0]
	display := f.OriginalName
	if display == "" {
		display = name
	}
	p.names.Add(f.ID, display)
	switch field {
	case FieldCertificate:
		p.form.CertificateFileID = f.ID
	case FieldStatement:
		p.form.StatementFileID = f.ID
	}
	p.err = ""
	return f, nil
}

// Submit validates form and posts it. Empty file slots in form keep the ids
// uploaded earlier.
func (p *ProfileFlow) Submit(ctx context.Context, form ProfileForm) (ProfileView, error) {
	p.mu.Lock()
	if !p.loaded {
		p.mu.Unlock()
		return ProfileView{}, ErrNotLoaded
	}
	if form.CertificateFileID == "" {
		form.CertificateFileID = p.form.CertificateFileID
	}
	if form.StatementFileID == "" {
		form.StatementFileID = p.form.StatementFileID
	}
	p.form = form
	token := p.token
	p.mu.Unlock()

	if err := form.Validate(); err != nil {
		return p.View(), fmt.Errorf("publicflow.ProfileFlow.Submit: %w", err)
	}

	p.mu.Lock()
	p.status, p.err, p.message = remote.StatusLoading, "", ""
	p.mu.Unlock()

	msg, err := p.api.SubmitProfile(ctx, p.kind, token, form.profile(p.name))

	p.mu.Lock()
	if err != nil {
		p.status, p.err = remote.StatusFailed, p.msgs.Describe(err, feature.MsgPublicProfile)
	} else {
		p.status, p.message, p.completed = remote.StatusSucceeded, p.msgs.Success(msg, feature.MsgUpdated), true
	}
	p.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Str("kind", string(p.kind)).Msg("public profile submit failed")
	}
	return p.View(), nil
}
