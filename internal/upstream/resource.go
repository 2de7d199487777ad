package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gosuda/backoffice/internal/domain"
)

// Page is one fetched page of a collection.
type Page[T domain.Entity] struct {
	Items      []T
	Pagination *domain.Pagination
}

// Result is a single entity plus the backend's success message.
type Result[T domain.Entity] struct {
	Entry   T
	Message string
}

// Resource is the CRUD surface of one REST namespace. W is the snake_case
// wire DTO, T the view model it maps to.
type Resource[W any, T domain.Entity] struct {
	client *Client
	path   string
	toView func(W) T
	toWire func(T) W
}

// NewResource binds a namespace path such as "/customers".
func NewResource[W any, T domain.Entity](c *Client, path string, toView func(W) T, toWire func(T) W) *Resource[W, T] {
	return &Resource[W, T]{client: c, path: path, toView: toView, toWire: toWire}
}

// Path returns the namespace the resource is bound to.
func (r *Resource[W, T]) Path() string {
	return r.path
}

func (r *Resource[W, T]) itemPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

// List fetches one page. When the backend omits meta, the requested page and
// the item count stand in for it.
func (r *Resource[W, T]) List(ctx context.Context, p ListParams) (Page[T], error) {
	var wire []W
	meta, err := r.client.Do(ctx, http.MethodGet, r.path, p.Values(), nil, &wire)
	if err != nil {
		return Page[T]{}, fmt.Errorf("upstream.Resource.List: %w", err)
	}

	items := make([]T, 0, len(wire))
	for _, w := range wire {
		items = append(items, r.toView(w))
	}

	pg := meta.Pagination
	if pg == nil {
		pg = inferPagination(p, len(items))
	}
	return Page[T]{Items: items, Pagination: pg}, nil
}

func inferPagination(p ListParams, n int) *domain.Pagination {
	page := max(1, p.Page)
	perPage := p.Limit
	if perPage <= 0 {
		perPage = n
	}
	return &domain.Pagination{Page: page, PerPage: perPage, Total: n, TotalPages: max(1, page)}
}

func (r *Resource[W, T]) Get(ctx context.Context, id string) (Result[T], error) {
	var w W
	meta, err := r.client.Do(ctx, http.MethodGet, r.itemPath(id), nil, nil, &w)
	if err != nil {
		return Result[T]{}, fmt.Errorf("upstream.Resource.Get: %w", err)
	}
	return Result[T]{Entry: r.toView(w), Message: meta.Message}, nil
}

// Create POSTs the payload. A success without the new entity's id is an
// error since nothing downstream can address the record.
func (r *Resource[W, T]) Create(ctx context.Context, payload T) (Result[T], error) {
	var w W
	meta, err := r.client.Do(ctx, http.MethodPost, r.path, nil, r.toWire(payload), &w)
	if err != nil {
		return Result[T]{}, fmt.Errorf("upstream.Resource.Create: %w", err)
	}
	entry := r.toView(w)
	if entry.EntityID() == "" {
		return Result[T]{}, fmt.Errorf("upstream.Resource.Create: %s: %w", r.path, ErrNoEntityID)
	}
	return Result[T]{Entry: entry, Message: meta.Message}, nil
}

// identified entities can take the path id when the backend echoes nothing.
type identified[T any] interface {
	WithEntityID(id string) T
}

// Update PATCHes the entity. The backend answers with the stored entity; an
// empty answer (204 or "data": null) falls back to the payload under id.
func (r *Resource[W, T]) Update(ctx context.Context, id string, payload T) (Result[T], error) {
	var w W
	meta, err := r.client.Do(ctx, http.MethodPatch, r.itemPath(id), nil, r.toWire(payload), &w)
	if err != nil {
		return Result[T]{}, fmt.Errorf("upstream.Resource.Update: %w", err)
	}
	entry := r.toView(w)
	if entry.EntityID() == "" {
		entry = payload
		if v, ok := any(payload).(identified[T]); ok {
			entry = v.WithEntityID(id)
		}
	}
	return Result[T]{Entry: entry, Message: meta.Message}, nil
}

// Delete returns the backend's success message.
func (r *Resource[W, T]) Delete(ctx context.Context, id string) (string, error) {
	meta, err := r.client.Do(ctx, http.MethodDelete, r.itemPath(id), nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("upstream.Resource.Delete: %w", err)
	}
	return meta.Message, nil
}
