package publicflow

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/feature"
	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/upstream"
)

// maxObservations bounds the free-text answer.
const maxObservations = 2000

// SurveyView is the state of a survey flow as the page renders it.
type SurveyView struct {
	Questions        []domain.QuestionID                 `json:"questions"`
	Ratings          []domain.Rating                     `json:"ratings"`
	Answers          map[domain.QuestionID]domain.Rating `json:"answers"`
	Observations     string                              `json:"observations"`
	Title            string                              `json:"title,omitempty"`
	ServiceDate      string                              `json:"serviceDate,omitempty"`
	Status           remote.Status                       `json:"status"`
	Error            string                              `json:"error,omitempty"`
	Message          string                              `json:"message,omitempty"`
	DownloadsEnabled bool                                `json:"downloadsEnabled"`
	// Files are only listed once downloads are enabled.
	Files []domain.FileRef `json:"files"`
}

// Ratings is the closed answer set, best first.
var Ratings = []domain.Rating{ //nolint:gochecknoglobals // closed enumeration
	domain.RatingExcellent,
	domain.RatingGood,
	domain.RatingRegular,
	domain.RatingPoor,
}

// SurveyFlow is one token's satisfaction survey. Submitting it unlocks the
// service documents for download.
type SurveyFlow struct {
	api  PublicAPI
	msgs *feature.Messages

	mu           sync.Mutex
	answers      map[domain.QuestionID]domain.Rating
	observations string
	title        string
	serviceDate  string
	files        []domain.FileRef
	status       remote.Status
	err          string
	message      string
	downloads    bool
}

func NewSurveyFlow(api PublicAPI, msgs *feature.Messages) *SurveyFlow {
	return &SurveyFlow{
		api:     api,
		msgs:    msgs,
		answers: map[domain.QuestionID]domain.Rating{},
		status:  remote.StatusIdle,
	}
}

func (s *SurveyFlow) View() SurveyView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := SurveyView{
		Questions:        append([]domain.QuestionID(nil), domain.SurveyQuestions...),
		Ratings:          append([]domain.Rating(nil), Ratings...),
		Answers:          maps.Clone(s.answers),
		Observations:     s.observations,
		Title:            s.title,
		ServiceDate:      s.serviceDate,
		Status:           s.status,
		Error:            s.err,
		Message:          s.message,
		DownloadsEnabled: s.downloads,
		Files:            []domain.FileRef{},
	}
	if s.downloads {
		v.Files = append(v.Files, s.files...)
	}
	return v
}

// Load fetches what the survey is about. An already answered survey starts
// with downloads enabled.
func (s *SurveyFlow) Load(ctx context.Context, token string) (SurveyView, error) {
	info, err := s.api.Survey(ctx, token)
	if err != nil {
		key := feature.MsgSurvey
		if errors.Is(err, domain.ErrNotFound) {
			key = feature.MsgNotFound
		}
		s.mu.Lock()
		s.status, s.err = remote.StatusFailed, s.msgs.Describe(err, key)
		s.mu.Unlock()
		return s.View(), fmt.Errorf("publicflow.SurveyFlow.Load: %w", err)
	}

	s.mu.Lock()
	s.title, s.serviceDate, s.files = info.Title, info.ServiceDate, info.Files
	s.status, s.err = remote.StatusIdle, ""
	if info.Completed {
		s.downloads = true
	}
	if s.downloads {
		s.status = remote.StatusSucceeded
	}
	s.mu.Unlock()
	return s.View(), nil
}

// Answer records one rating. Unknown questions and ratings are rejected.
func (s *SurveyFlow) Answer(q domain.QuestionID, r domain.Rating) error {
	v := &domain.ValidationError{}
	if !domain.ValidQuestion(q) {
		v.Add(string(q), "unknown question")
	} else if !r.Valid() {
		v.Add(string(q), "invalid rating")
	}
	if err := v.OrNil(); err != nil {
		return fmt.Errorf("publicflow.SurveyFlow.Answer: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[q] = r
	return nil
}

// ClearAnswers drops every recorded rating and the observations so the next
// submission is judged on its own answers.
func (s *SurveyFlow) ClearAnswers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.answers)
	s.observations = ""
}

func (s *SurveyFlow) SetObservations(text string) {
	text = strings.TrimSpace(text)
	if r := []rune(text); len(r) > maxObservations {
		text = string(r[:maxObservations])
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observations = text
}

// Validate requires every question answered with an enumerated rating.
func (s *SurveyFlow) Validate() error {
	s.mu.Lock()
	answers := maps.Clone(s.answers)
	s.mu.Unlock()
	return domain.ValidateAnswers(answers)
}

// Submit posts the answers. On success downloads are enabled; a second submit
// after that is a no-op.
func (s *SurveyFlow) Submit(ctx context.Context, token string) (SurveyView, error) {
	if err := s.Validate(); err != nil {
		return s.View(), fmt.Errorf("publicflow.SurveyFlow.Submit: %w", err)
	}

	s.mu.Lock()
	if s.downloads {
		s.mu.Unlock()
		return s.View(), nil
	}
	in := upstream.SurveySubmission{Answers: maps.Clone(s.answers), Observations: s.observations}
	s.status, s.err, s.message = remote.StatusLoading, "", ""
	s.mu.Unlock()

	msg, err := s.api.SubmitSurvey(ctx, token, in)

	s.mu.Lock()
	if err != nil {
		s.status, s.err = remote.StatusFailed, s.msgs.Describe(err, feature.MsgSurvey)
	} else {
		s.status, s.message, s.downloads = remote.StatusSucceeded, msg, true
	}
	s.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("survey submit failed")
	}
	return s.View(), nil
}
