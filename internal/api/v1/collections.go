package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/table"
)

// ListInput declares the documented query parameters. The raw query is kept
// so sort[n][field] and sort[n][direction] reach the table parser untouched.
type ListInput struct {
	Page   int    `query:"page" minimum:"0" doc:"1-based page number"`
	Limit  int    `query:"limit" minimum:"0" doc:"Page size"`
	Search string `query:"search" maxLength:"255" doc:"Free-text filter"`

	query url.Values
}

func (i *ListInput) Resolve(ctx huma.Context) []error {
	u := ctx.URL()
	i.query = u.Query()
	return nil
}

type ListBody[T domain.Entity] struct {
	Items      []T                `json:"items"`
	Pagination *domain.Pagination `json:"pagination,omitempty"`
	Status     remote.Status      `json:"status"`
	Error      string             `json:"error,omitempty"`
	View       table.ViewState    `json:"view"`
	// Location is the canonical query string to replace the address bar with.
	Location string `json:"location"`
}

type ListOutput[T domain.Entity] struct {
	Body ListBody[T]
}

type EntityInput struct {
	ID string `path:"id" minLength:"1" doc:"Entity ID"`
}

type DetailOutput[T domain.Entity] struct {
	Body remote.DetailState[T]
}

type CreateInput struct {
	RawBody []byte `contentType:"application/json"`
}

type UpdateInput struct {
	ID      string `path:"id" minLength:"1" doc:"Entity ID"`
	RawBody []byte `contentType:"application/json"`
}

type MutationOutput struct {
	Body remote.Transition
}

type ResetInput struct {
	Op string `query:"op" enum:"list,detail,create,update,delete,upload" doc:"Sub-operation to reset; empty resets the whole view"`
}

type ResetOutput struct {
	Body struct {
		Reset []remote.Op `json:"reset"`
	}
}

func decodeEntity[T domain.Entity](raw []byte) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, huma.Error400BadRequest("malformed body", err)
	}
	return v, nil
}

// RegisterCollectionRoutes mounts list, detail, create, update, delete and
// reset for one feature under /{name}.
func RegisterCollectionRoutes[T domain.Entity](api huma.API, name, tag string, c Collection[T], defaults table.Defaults) {
	base := "/" + name

	huma.Register(api, huma.Operation{
		OperationID: "list-" + name,
		Method:      http.MethodGet,
		Path:        base,
		Summary:     "List " + name + " for a table view",
		Tags:        []string{tag},
	}, func(ctx context.Context, input *ListInput) (*ListOutput[T], error) {
		ctl := table.NewController(c, defaults)
		if _, err := ctl.Mount(ctx, input.query); err != nil {
			return nil, httpError(err, "failed to list "+name)
		}
		defer ctl.Unmount()

		st, err := c.State(ctx)
		if err != nil {
			return nil, httpError(err, "failed to list "+name)
		}
		out := &ListOutput[T]{}
		out.Body.Items = st.List.Items
		out.Body.Pagination = st.List.Pagination
		out.Body.Status = st.List.Status
		out.Body.Error = st.List.Error
		out.Body.View = ctl.View()
		out.Body.Location = ctl.Location()
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-" + name,
		Method:      http.MethodGet,
		Path:        base + "/{id}",
		Summary:     "Load one of " + name,
		Tags:        []string{tag},
	}, func(ctx context.Context, input *EntityInput) (*DetailOutput[T], error) {
		if _, err := c.FetchDetail(ctx, input.ID); err != nil {
			return nil, httpError(err, "failed to load "+name)
		}
		st, err := c.State(ctx)
		if err != nil {
			return nil, httpError(err, "failed to load "+name)
		}
		return &DetailOutput[T]{Body: st.Detail}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-" + name,
		Method:      http.MethodPost,
		Path:        base,
		Summary:     "Create one of " + name,
		Tags:        []string{tag},
	}, func(ctx context.Context, input *CreateInput) (*MutationOutput, error) {
		payload, err := decodeEntity[T](input.RawBody)
		if err != nil {
			return nil, err
		}
		tr, err := c.Create(ctx, payload)
		if err != nil {
			return nil, httpError(err, "failed to create")
		}
		return &MutationOutput{Body: tr}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-" + name,
		Method:      http.MethodPatch,
		Path:        base + "/{id}",
		Summary:     "Update one of " + name,
		Tags:        []string{tag},
	}, func(ctx context.Context, input *UpdateInput) (*MutationOutput, error) {
		payload, err := decodeEntity[T](input.RawBody)
		if err != nil {
			return nil, err
		}
		tr, err := c.Update(ctx, input.ID, payload)
		if err != nil {
			return nil, httpError(err, "failed to update")
		}
		return &MutationOutput{Body: tr}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-" + name,
		Method:      http.MethodDelete,
		Path:        base + "/{id}",
		Summary:     "Delete one of " + name,
		Tags:        []string{tag},
	}, func(ctx context.Context, input *EntityInput) (*MutationOutput, error) {
		tr, err := c.Delete(ctx, input.ID)
		if err != nil {
			return nil, httpError(err, "failed to delete")
		}
		return &MutationOutput{Body: tr}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reset-" + name,
		Method:      http.MethodPost,
		Path:        base + "/reset",
		Summary:     "Return a view's state to idle",
		Tags:        []string{tag},
	}, func(ctx context.Context, input *ResetInput) (*ResetOutput, error) {
		out := &ResetOutput{}
		if input.Op == "" {
			if err := c.ResetAll(ctx); err != nil {
				return nil, httpError(err, "failed to reset")
			}
			out.Body.Reset = remote.Ops
			return out, nil
		}
		op := remote.Op(input.Op)
		if _, err := c.Reset(ctx, op); err != nil {
			return nil, httpError(err, "failed to reset")
		}
		out.Body.Reset = []remote.Op{op}
		return out, nil
	})
}
