package domain

import (
	"net/mail"
	"strings"
)

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func checkEmail(v *ValidationError, field, email string, required bool) {
	if blank(email) {
		if required {
			v.Add(field, "required")
		}
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		v.Add(field, "invalid email")
	}
}

func (c Customer) Validate() error {
	v := &ValidationError{}
	if blank(c.Name) {
		v.Add("name", "required")
	}
	checkEmail(v, "email", c.Email, false)
	return v.OrNil()
}

func (p Provider) Validate() error {
	v := &ValidationError{}
	if blank(p.Name) {
		v.Add("name", "required")
	}
	checkEmail(v, "email", p.Email, false)
	return v.OrNil()
}

// ValidRole reports whether r is one of the local roles. Roles served by the
// backend may extend the set, so this is only used for the fallback list.
func ValidRole(r Role) bool {
	for _, opt := range DefaultRoles() {
		if opt.Value == r {
			return true
		}
	}
	return false
}

func (u User) Validate() error {
	v := &ValidationError{}
	if blank(u.Name) {
		v.Add("name", "required")
	}
	checkEmail(v, "email", u.Email, true)
	if blank(string(u.Role)) {
		v.Add("role", "required")
	}
	return v.OrNil()
}

func (p Profile) Validate() error {
	v := &ValidationError{}
	if blank(p.Name) {
		v.Add("name", "required")
	}
	checkEmail(v, "email", p.Email, true)
	return v.OrNil()
}

func (s ServiceEntry) Validate() error {
	v := &ValidationError{}
	if blank(s.CustomerID) {
		v.Add("customerId", "required")
	}
	if blank(s.Title) {
		v.Add("title", "required")
	}
	if s.Amount < 0 {
		v.Add("amount", "must not be negative")
	}
	return v.OrNil()
}

func (r ServicePackageRecord) Validate() error {
	v := &ValidationError{}
	if blank(r.CustomerID) {
		v.Add("customerId", "required")
	}
	if blank(r.PackageName) {
		v.Add("packageName", "required")
	}
	if r.SessionsTotal <= 0 {
		v.Add("sessionsTotal", "must be positive")
	}
	if r.SessionsUsed < 0 || r.SessionsUsed > r.SessionsTotal {
		v.Add("sessionsUsed", "must be between 0 and sessionsTotal")
	}
	if r.ExpiresAt != nil && !r.StartsAt.IsZero() && r.ExpiresAt.Before(r.StartsAt) {
		v.Add("expiresAt", "must not precede startsAt")
	}
	return v.OrNil()
}

// ValidateAnswers requires every question answered with an enumerated rating
// and rejects unknown questions.
func ValidateAnswers(answers map[QuestionID]Rating) error {
	v := &ValidationError{}
	for _, q := range SurveyQuestions {
		r, ok := answers[q]
		switch {
		case !ok || r == "":
			v.Add(string(q), "required")
		case !r.Valid():
			v.Add(string(q), "invalid rating")
		}
	}
	for q := range answers {
		if !ValidQuestion(q) {
			v.Add(string(q), "unknown question")
		}
	}
	return v.OrNil()
}

func (s SurveyResponse) Validate() error {
	return ValidateAnswers(s.Answers)
}
