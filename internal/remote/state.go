// Package remote models the lifecycle of a server-owned collection cached on
// the client: one paginated list plus independent detail and mutation
// sub-operations, each moving idle -> loading -> succeeded|failed.
//
// State is a value. Events are applied by a pure transition function so the
// machine can be tested without a store, a network or a UI.
package remote

import (
	"github.com/gosuda/backoffice/internal/domain"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is succeeded or failed.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Op names a sub-operation of a collection.
type Op string

const (
	OpList   Op = "list"
	OpDetail Op = "detail"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpUpload Op = "upload"
)

// Ops lists every sub-operation in a stable order.
var Ops = []Op{OpList, OpDetail, OpCreate, OpUpdate, OpDelete, OpUpload} //nolint:gochecknoglobals // closed enumeration

// Valid reports whether op is a known sub-operation.
func (op Op) Valid() bool {
	return op.index() >= 0
}

func (op Op) index() int {
	switch op {
	case OpList:
		return 0
	case OpDetail:
		return 1
	case OpCreate:
		return 2
	case OpUpdate:
		return 3
	case OpDelete:
		return 4
	case OpUpload:
		return 5
	default:
		return -1
	}
}

// Mutation reports whether op writes to the server.
func (op Op) Mutation() bool {
	return op == OpCreate || op == OpUpdate || op == OpDelete || op == OpUpload
}

type ListState[T domain.Entity] struct {
	Items      []T                `json:"items"`
	Status     Status             `json:"status"`
	Error      string             `json:"error,omitempty"`
	Pagination *domain.Pagination `json:"pagination,omitempty"`
}

type DetailState[T domain.Entity] struct {
	Entry  *T     `json:"entry,omitempty"`
	ID     string `json:"id,omitempty"` // last requested id, set at dispatch
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

type MutationState struct {
	Status  Status `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	LastID  string `json:"lastId,omitempty"`
}

type UploadState struct {
	MutationState
	Files []domain.UploadedFile `json:"files,omitempty"`
}

// State is the full remote-collection state of one feature.
type State[T domain.Entity] struct {
	List   ListState[T]   `json:"list"`
	Detail DetailState[T] `json:"detail"`
	Create MutationState  `json:"create"`
	Update MutationState  `json:"update"`
	Delete MutationState  `json:"delete"`
	Upload UploadState    `json:"upload"`

	gens [6]uint64
}

// New returns a state with every sub-operation idle.
func New[T domain.Entity]() State[T] {
	return State[T]{
		List:   ListState[T]{Items: []T{}, Status: StatusIdle},
		Detail: DetailState[T]{Status: StatusIdle},
		Create: MutationState{Status: StatusIdle},
		Update: MutationState{Status: StatusIdle},
		Delete: MutationState{Status: StatusIdle},
		Upload: UploadState{MutationState: MutationState{Status: StatusIdle}},
	}
}

// Generation returns the current generation of op. Completions carrying any
// other generation are stale.
func (s State[T]) Generation(op Op) uint64 {
	i := op.index()
	if i < 0 {
		return 0
	}
	return s.gens[i]
}

// StatusOf returns the status of a sub-operation.
func (s State[T]) StatusOf(op Op) Status {
	switch op {
	case OpList:
		return s.List.Status
	case OpDetail:
		return s.Detail.Status
	case OpCreate:
		return s.Create.Status
	case OpUpdate:
		return s.Update.Status
	case OpDelete:
		return s.Delete.Status
	case OpUpload:
		return s.Upload.Status
	default:
		return StatusIdle
	}
}

// Find returns the listed item with the given id.
func (s State[T]) Find(id string) (T, bool) {
	for _, it := range s.List.Items {
		if it.EntityID() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func (s *State[T]) bump(op Op) uint64 {
	i := op.index()
	s.gens[i]++
	return s.gens[i]
}

func (s *State[T]) current(op Op, gen uint64) bool {
	i := op.index()
	return i >= 0 && s.gens[i] == gen
}

func (s *State[T]) mutation(op Op) *MutationState {
	switch op {
	case OpCreate:
		return &s.Create
	case OpUpdate:
		return &s.Update
	case OpDelete:
		return &s.Delete
	case OpUpload:
		return &s.Upload.MutationState
	default:
		return nil
	}
}

// Items are copied before every write so snapshots handed out earlier never
// observe later transitions.

func (s *State[T]) prepend(item T) {
	items := make([]T, 0, len(s.List.Items)+1)
	items = append(items, item)
	items = append(items, s.List.Items...)
	s.List.Items = items
}

func (s *State[T]) replaceOrPrepend(item T) {
	id := item.EntityID()
	for i, it := range s.List.Items {
		if it.EntityID() == id {
			items := make([]T, len(s.List.Items))
			copy(items, s.List.Items)
			items[i] = item
			s.List.Items = items
			return
		}
	}
	s.prepend(item)
}

func (s *State[T]) remove(id string) {
	items := make([]T, 0, len(s.List.Items))
	for _, it := range s.List.Items {
		if it.EntityID() != id {
			items = append(items, it)
		}
	}
	s.List.Items = items
}
