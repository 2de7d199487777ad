package v1

import (
	"context"
	"errors"
	"sort"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/feature"
	"github.com/gosuda/backoffice/internal/publicflow"
	"github.com/gosuda/backoffice/internal/table"
)

// httpError maps errors that escaped a slice or flow onto problem responses.
// Backend failures never get here: slices record them on the state instead.
func httpError(err error, msg string) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return huma.Error422UnprocessableEntity("validation failed", fieldErrors(verr)...)
	case errors.Is(err, domain.ErrValidation):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound(msg)
	case errors.Is(err, domain.ErrMissingAuth), errors.Is(err, domain.ErrUnauthorized):
		return huma.Error401Unauthorized("not signed in")
	case errors.Is(err, feature.ErrUnknownFeature), errors.Is(err, feature.ErrNoUploader):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, publicflow.ErrNotLoaded), errors.Is(err, table.ErrNoPendingDelete):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return huma.Error503ServiceUnavailable(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}

func fieldErrors(v *domain.ValidationError) []error {
	fields := make([]string, 0, len(v.Fields))
	for f := range v.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	out := make([]error, 0, len(fields))
	for _, f := range fields {
		out = append(out, &huma.ErrorDetail{Location: "body." + f, Message: v.Fields[f]})
	}
	return out
}
