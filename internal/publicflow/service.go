package publicflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/feature"
	"github.com/gosuda/backoffice/internal/upstream"
)

// flowTTL is how long an untouched flow keeps its form state.
const flowTTL = time.Hour

// Service hands out one flow per token and shares the upload display-name
// cache between them.
type Service struct {
	api      PublicAPI
	msgs     *feature.Messages
	names    *expirable.LRU[string, string]
	profiles *expirable.LRU[string, *ProfileFlow]
	surveys  *expirable.LRU[string, *SurveyFlow]

	mu sync.Mutex
}

// NewService sizes both the name cache and the flow caches with size.
func NewService(api PublicAPI, msgs *feature.Messages, size int) *Service {
	if size <= 0 {
		size = 256
	}
	return &Service{
		api:      api,
		msgs:     msgs,
		names:    expirable.NewLRU[string, string](size, nil, 24*time.Hour),
		profiles: expirable.NewLRU[string, *ProfileFlow](size, nil, flowTTL),
		surveys:  expirable.NewLRU[string, *SurveyFlow](size, nil, flowTTL),
	}
}

// Profile returns the flow for kind and token, creating it on first use.
func (s *Service) Profile(kind upstream.ProfileKind, token string) *ProfileFlow {
	key := string(kind) + ":" + token
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.profiles.Get(key); ok {
		return f
	}
	f := NewProfileFlow(s.api, kind, s.names, s.msgs)
	s.profiles.Add(key, f)
	return f
}

// Survey returns the flow for token, creating it on first use.
func (s *Service) Survey(token string) *SurveyFlow {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.surveys.Get(token); ok {
		return f
	}
	f := NewSurveyFlow(s.api, s.msgs)
	s.surveys.Add(token, f)
	return f
}

// FileName returns the cached display name of an uploaded file.
func (s *Service) FileName(id string) (string, bool) {
	return s.names.Get(id)
}

// Upload sends files to the token-scoped upload endpoint and remembers their
// display names.
func (s *Service) Upload(ctx context.Context, token string, files []upstream.FilePart) ([]domain.UploadedFile, string, error) {
	uploaded, msg, err := s.api.Upload(ctx, token, files)
	if err != nil {
		return nil, s.msgs.Describe(err, feature.MsgUpload), fmt.Errorf("publicflow.Service.Upload: %w", err)
	}
	for i, f := range uploaded {
		name := f.OriginalName
		if name == "" && i < len(files) {
			name = files[i].Name
		}
		if name != "" {
			s.names.Add(f.ID, name)
		}
	}
	return uploaded, s.msgs.Success(msg, feature.MsgUploaded), nil
}
