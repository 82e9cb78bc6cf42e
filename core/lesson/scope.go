package lesson

import (
	"encoding/json"
	"fmt"
)

// ScopeKind tells which partition of the lesson table a row belongs to.
type ScopeKind int

const (
	ScopePublished ScopeKind = iota
	ScopeDraft
)

// Scope is either the published timetable or one draft batch.
// It is persisted as the nullable lesson.batch_id column: NULL for Published,
// the batch ID for Draft.
type Scope struct {
	kind    ScopeKind
	batchID int
}

func Published() Scope { return Scope{kind: ScopePublished} }

func Draft(batchID int) Scope { return Scope{kind: ScopeDraft, batchID: batchID} }

// ScopeFromBatchID maps a stored batch_id (nil = NULL) to its Scope.
func ScopeFromBatchID(batchID *int) Scope {
	if batchID == nil {
		return Published()
	}
	return Draft(*batchID)
}

func (s Scope) Kind() ScopeKind { return s.kind }

func (s Scope) IsDraft() bool { return s.kind == ScopeDraft }

// BatchID returns the draft batch ID; ok is false for the published scope.
func (s Scope) BatchID() (id int, ok bool) {
	return s.batchID, s.kind == ScopeDraft
}

// BatchIDPtr is the stored form of the scope.
func (s Scope) BatchIDPtr() *int {
	switch s.kind {
	case ScopeDraft:
		id := s.batchID
		return &id
	default:
		return nil
	}
}

func (s Scope) String() string {
	switch s.kind {
	case ScopeDraft:
		return fmt.Sprintf("draft(%d)", s.batchID)
	default:
		return "published"
	}
}

func (s Scope) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.BatchIDPtr())
}

func (s *Scope) UnmarshalJSON(data []byte) error {
	var id *int
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*s = ScopeFromBatchID(id)
	return nil
}
