package ws

import (
	"time"

	"github.com/gosuda/backoffice/internal/notify"
	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/table"
	"github.com/gosuda/backoffice/internal/upstream"
)

// Message types pushed to clients.
const (
	TypeToast    = "toast"
	TypeLocation = "location"
	TypeSnapshot = "snapshot"
	TypePending  = "pendingDelete"
	TypeDeleted  = "deleted"
	TypeError    = "error"
)

// Intent types accepted on a view connection.
const (
	IntentSearch        = "search"
	IntentFlush         = "flush"
	IntentPage          = "page"
	IntentLimit         = "limit"
	IntentSort          = "sort"
	IntentDelete        = "delete"
	IntentCancelDelete  = "cancelDelete"
	IntentConfirmDelete = "confirmDelete"
)

// ToastEvent carries a notification to every connected dashboard.
type ToastEvent struct {
	Type  string       `json:"type"` // "toast"
	Toast notify.Toast `json:"toast"`
}

// ViewEvent is a server push on a view connection.
type ViewEvent struct {
	Type       string             `json:"type"`
	Location   string             `json:"location,omitempty"`
	View       *table.ViewState   `json:"view,omitempty"`
	List       any                `json:"list,omitempty"`
	Transition *remote.Transition `json:"transition,omitempty"`
	ID         string             `json:"id,omitempty"`
	Error      string             `json:"error,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Intent is a client request on a view connection.
type Intent struct {
	Type  string               `json:"type"`
	Value string               `json:"value,omitempty"`
	Page  int                  `json:"page,omitempty"`
	Limit int                  `json:"limit,omitempty"`
	Sort  []upstream.SortField `json:"sort,omitempty"`
	ID    string               `json:"id,omitempty"`
}
