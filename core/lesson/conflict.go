package lesson

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Interval is a half-open range of minutes since midnight: [Start, End).
type Interval struct {
	Start int
	End   int
}

// Overlaps reports whether [s1,e1) and [s2,e2) share at least one minute.
// Touching intervals (e1 == s2) do not overlap.
func Overlaps(s1, e1, s2, e2 int) bool {
	return s1 < e2 && e1 > s2
}

func (iv Interval) Overlaps(o Interval) bool {
	return Overlaps(iv.Start, iv.End, o.Start, o.End)
}

// Dimension is the shared resource two overlapping lessons collide on.
type Dimension string

const (
	DimensionGroup   Dimension = "group"
	DimensionRoom    Dimension = "room"
	DimensionTeacher Dimension = "teacher"
)

// ConflictPolicy selects which scopes a new draft lesson is checked against.
type ConflictPolicy string

const (
	// DraftOnly checks the lesson's own batch only.
	DraftOnly ConflictPolicy = "draft_only"
	// DraftAndPublished also checks the published timetable for that day.
	DraftAndPublished ConflictPolicy = "draft_and_published"
)

func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch p := ConflictPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", DraftOnly:
		return DraftOnly, nil
	case DraftAndPublished:
		return p, nil
	default:
		return "", errors.Errorf("unknown conflict policy %q", s)
	}
}

// scopes returns the scopes a lesson created in `draft` must not collide with.
func (p ConflictPolicy) scopes(draft Scope) []Scope {
	if p == DraftAndPublished {
		return []Scope{draft, Published()}
	}
	return []Scope{draft}
}

// ConflictQuery describes a candidate lesson for the repository's overlap lookup.
// A lesson matches when it is in Scope, on the slot date, overlaps the slot
// interval and shares its group, or its room (when set), or its teacher (when set).
type ConflictQuery struct {
	Scope Scope
	Slot  Slot
}

// Match is the reference predicate every Repository.FindConflict must implement.
func (q ConflictQuery) Match(l Lesson) bool {
	if l.Scope != q.Scope || !l.Date.Equal(q.Slot.Date) {
		return false
	}
	if !l.Interval().Overlaps(q.Slot.Interval()) {
		return false
	}
	_, shared := sharedDimension(q.Slot, l.Slot)
	return shared
}

// sharedDimension returns the first resource the two slots have in common,
// checked in the order group, room, teacher.
func sharedDimension(candidate, existing Slot) (Dimension, bool) {
	switch {
	case candidate.GroupID == existing.GroupID:
		return DimensionGroup, true
	case sameRef(candidate.RoomID, existing.RoomID):
		return DimensionRoom, true
	case sameRef(candidate.TeacherID, existing.TeacherID):
		return DimensionTeacher, true
	}
	return "", false
}

func sameRef(a, b *int) bool {
	return a != nil && b != nil && *a == *b
}

// ConflictError is returned when a candidate lesson collides with an existing one.
type ConflictError struct {
	Dimension Dimension
	Scope     Scope
	Lesson    Lesson // the existing lesson
}

func NewConflictError(candidate Slot, existing Lesson) *ConflictError {
	dim, _ := sharedDimension(candidate, existing.Slot)
	return &ConflictError{Dimension: dim, Scope: existing.Scope, Lesson: existing}
}

func (e *ConflictError) Error() string {
	where := "in the draft"
	if !e.Scope.IsDraft() {
		where = "in the published timetable"
	}
	return fmt.Sprintf(
		"time conflict: %s overlaps lesson %d (%s %s-%s) %s",
		e.Dimension, e.Lesson.ID, e.Lesson.Date, formatMinute(e.Lesson.StartMinute), formatMinute(e.Lesson.EndMinute), where,
	)
}

func formatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
