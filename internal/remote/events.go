package remote

import (
	"slices"

	"github.com/gosuda/backoffice/internal/domain"
)

// Event is the closed set of inputs to the transition function.
type Event[T domain.Entity] interface {
	apply(s *State[T]) Transition
}

// Transition describes what applying an event did.
type Transition struct {
	Op         Op     `json:"op"`
	Generation uint64 `json:"generation"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	EntityID   string `json:"entityId,omitempty"`
	// Files are the descriptors of a completed upload.
	Files []domain.UploadedFile `json:"files,omitempty"`
	// Stale is set when a completion arrived for a superseded dispatch and its
	// status write was dropped.
	Stale bool `json:"stale,omitempty"`
}

// Terminal reports whether the event moved a sub-operation into succeeded or
// failed. Only those transitions are worth notifying.
func (t Transition) Terminal() bool {
	return !t.Stale && t.Status.Terminal()
}

// Apply runs the transition function on a copy of s.
func (s State[T]) Apply(ev Event[T]) (State[T], Transition) {
	tr := ev.apply(&s)
	return s, tr
}

// Started marks a dispatch. ID is the requested entity for detail, update and
// delete; it is recorded synchronously so a late response can be attributed.
type Started[T domain.Entity] struct {
	Op Op
	ID string
}

func (e Started[T]) apply(s *State[T]) Transition {
	if !e.Op.Valid() {
		return Transition{Op: e.Op, Stale: true}
	}
	gen := s.bump(e.Op)
	switch e.Op {
	case OpList:
		s.List.Status = StatusLoading
		s.List.Error = ""
	case OpDetail:
		s.Detail.Status = StatusLoading
		s.Detail.Error = ""
		s.Detail.ID = e.ID
	default:
		m := s.mutation(e.Op)
		m.Status = StatusLoading
		m.Error = ""
		m.Message = ""
	}
	return Transition{Op: e.Op, Generation: gen, Status: StatusLoading, EntityID: e.ID}
}

// ListLoaded replaces items and pagination wholesale.
type ListLoaded[T domain.Entity] struct {
	Gen        uint64
	Items      []T
	Pagination *domain.Pagination
}

func (e ListLoaded[T]) apply(s *State[T]) Transition {
	if !s.current(OpList, e.Gen) {
		return Transition{Op: OpList, Generation: e.Gen, Status: StatusSucceeded, Stale: true}
	}
	items := make([]T, len(e.Items))
	copy(items, e.Items)
	s.List.Items = items
	if e.Pagination != nil {
		p := *e.Pagination
		s.List.Pagination = &p
	} else {
		s.List.Pagination = nil
	}
	s.List.Status = StatusSucceeded
	s.List.Error = ""
	return Transition{Op: OpList, Generation: e.Gen, Status: StatusSucceeded}
}

type DetailLoaded[T domain.Entity] struct {
	Gen   uint64
	Entry T
}

func (e DetailLoaded[T]) apply(s *State[T]) Transition {
	if !s.current(OpDetail, e.Gen) {
		return Transition{Op: OpDetail, Generation: e.Gen, Status: StatusSucceeded, EntityID: e.Entry.EntityID(), Stale: true}
	}
	entry := e.Entry
	s.Detail.Entry = &entry
	s.Detail.Status = StatusSucceeded
	s.Detail.Error = ""
	return Transition{Op: OpDetail, Generation: e.Gen, Status: StatusSucceeded, EntityID: entry.EntityID()}
}

// Created prepends the new entity.
type Created[T domain.Entity] struct {
	Gen     uint64
	Entry   T
	Message string
}

func (e Created[T]) apply(s *State[T]) Transition {
	id := e.Entry.EntityID()
	if s.List.Status != StatusIdle {
		s.prepend(e.Entry)
	}
	return s.finishMutation(OpCreate, e.Gen, id, e.Message)
}

// Updated replaces the matching item, or prepends it when absent, and keeps
// the detail entry in sync.
type Updated[T domain.Entity] struct {
	Gen     uint64
	Entry   T
	Message string
}

func (e Updated[T]) apply(s *State[T]) Transition {
	id := e.Entry.EntityID()
	if s.List.Status != StatusIdle {
		s.replaceOrPrepend(e.Entry)
	}
	if s.Detail.Entry != nil && (*s.Detail.Entry).EntityID() == id {
		entry := e.Entry
		s.Detail.Entry = &entry
	}
	return s.finishMutation(OpUpdate, e.Gen, id, e.Message)
}

// Deleted removes the entity from the list and clears the detail entry when
// it was the deleted one.
type Deleted[T domain.Entity] struct {
	Gen     uint64
	ID      string
	Message string
}

func (e Deleted[T]) apply(s *State[T]) Transition {
	s.remove(e.ID)
	if s.Detail.Entry != nil && (*s.Detail.Entry).EntityID() == e.ID {
		s.Detail.Entry = nil
	}
	return s.finishMutation(OpDelete, e.Gen, e.ID, e.Message)
}

// Uploaded records the descriptors returned by the upload endpoint.
type Uploaded[T domain.Entity] struct {
	Gen     uint64
	Files   []domain.UploadedFile
	Message string
}

func (e Uploaded[T]) apply(s *State[T]) Transition {
	var lastID string
	if n := len(e.Files); n > 0 {
		lastID = e.Files[n-1].ID
	}
	tr := s.finishMutation(OpUpload, e.Gen, lastID, e.Message)
	files := make([]domain.UploadedFile, len(e.Files))
	copy(files, e.Files)
	tr.Files = files
	if !tr.Stale {
		s.Upload.Files = slices.Clone(files)
	}
	return tr
}

// finishMutation writes the succeeded status of a mutation. Item patches are
// applied by the caller before this regardless of staleness: they reflect
// what the server already committed.
func (s *State[T]) finishMutation(op Op, gen uint64, id, message string) Transition {
	if !s.current(op, gen) {
		return Transition{Op: op, Generation: gen, Status: StatusSucceeded, EntityID: id, Message: message, Stale: true}
	}
	m := s.mutation(op)
	m.Status = StatusSucceeded
	m.Error = ""
	m.Message = message
	m.LastID = id
	return Transition{Op: op, Generation: gen, Status: StatusSucceeded, EntityID: id, Message: message}
}

// Failed stores a user-facing error. Items, pagination and the detail entry
// are left untouched.
type Failed[T domain.Entity] struct {
	Op      Op
	Gen     uint64
	Message string
}

func (e Failed[T]) apply(s *State[T]) Transition {
	if !s.current(e.Op, e.Gen) {
		return Transition{Op: e.Op, Generation: e.Gen, Status: StatusFailed, Error: e.Message, Stale: true}
	}
	switch e.Op {
	case OpList:
		s.List.Status = StatusFailed
		s.List.Error = e.Message
	case OpDetail:
		s.Detail.Status = StatusFailed
		s.Detail.Error = e.Message
	default:
		m := s.mutation(e.Op)
		m.Status = StatusFailed
		m.Error = e.Message
		m.Message = ""
	}
	return Transition{Op: e.Op, Generation: e.Gen, Status: StatusFailed, Error: e.Message}
}

// Reset returns one sub-operation to idle. The generation is bumped so any
// response still in flight is discarded when it lands.
type Reset[T domain.Entity] struct {
	Op Op
}

func (e Reset[T]) apply(s *State[T]) Transition {
	if !e.Op.Valid() {
		return Transition{Op: e.Op, Stale: true}
	}
	gen := s.bump(e.Op)
	fresh := New[T]()
	switch e.Op {
	case OpList:
		s.List = fresh.List
	case OpDetail:
		s.Detail = fresh.Detail
	case OpUpload:
		s.Upload = fresh.Upload
	default:
		*s.mutation(e.Op) = MutationState{Status: StatusIdle}
	}
	return Transition{Op: e.Op, Generation: gen, Status: StatusIdle}
}

// Acknowledge returns a finished mutation to idle, but only while Gen is still
// the op's latest dispatch. A newer dispatch is left alone.
type Acknowledge[T domain.Entity] struct {
	Op  Op
	Gen uint64
}

func (e Acknowledge[T]) apply(s *State[T]) Transition {
	if !e.Op.Mutation() || !s.current(e.Op, e.Gen) {
		return Transition{Op: e.Op, Generation: e.Gen, Stale: true}
	}
	if s.mutation(e.Op).Status == StatusLoading {
		return Transition{Op: e.Op, Generation: e.Gen, Status: StatusLoading, Stale: true}
	}
	if e.Op == OpUpload {
		s.Upload = New[T]().Upload
	} else {
		*s.mutation(e.Op) = MutationState{Status: StatusIdle}
	}
	return Transition{Op: e.Op, Generation: e.Gen, Status: StatusIdle}
}

// ResetAll returns every sub-operation to idle.
type ResetAll[T domain.Entity] struct{}

func (ResetAll[T]) apply(s *State[T]) Transition {
	gens := s.gens
	*s = New[T]()
	s.gens = gens
	for _, op := range Ops {
		s.bump(op)
	}
	return Transition{Status: StatusIdle}
}
