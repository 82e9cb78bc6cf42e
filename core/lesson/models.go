package lesson

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ratiba/core"
)

// Display fallbacks for rows stored without a start or end minute.
const (
	DefaultStartMinute = 10 * 60
	DefaultEndMinute   = 11 * 60

	MinutesPerDay = 24 * 60
)

// Ref is a resolved catalog relation (group, room, subject or teacher) shown with a lesson.
type Ref struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Slot holds the scheduling fields of a lesson: everything but its identity and scope.
type Slot struct {
	Date        core.Date `json:"date"`
	StartMinute int       `json:"starts_at_min"`
	EndMinute   int       `json:"ends_at_min"`
	GroupID     int       `json:"group_id"`
	RoomID      *int      `json:"room_id"`
	SubjectID   *int      `json:"subject_id"`
	TeacherID   *int      `json:"teacher_id"`
}

// Interval returns the half-open minute range [start, end) of the slot.
func (s Slot) Interval() Interval {
	return Interval{Start: s.StartMinute, End: s.EndMinute}
}

type Lesson struct {
	ID    int   `json:"id"`
	Scope Scope `json:"batch_id"`
	Slot

	// resolved for display only; never persisted
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
	Group   *Ref      `json:"group,omitempty"`
	Room    *Ref      `json:"room,omitempty"`
	Subject *Ref      `json:"subject,omitempty"`
	Teacher *Ref      `json:"teacher,omitempty"`
}

// Enrich sets the absolute start & end timestamps from the lesson date and minutes.
func (l *Lesson) Enrich() {
	l.StartAt = l.Date.At(l.StartMinute)
	l.EndAt = l.Date.At(l.EndMinute)
}

// Batch is one in-progress editing session (a draft).
type Batch struct {
	ID        int       `json:"id"`
	Key       string    `json:"key"`
	Title     string    `json:"title"`
	CreatedBy *int      `json:"created_by"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type BatchSummary struct {
	Batch
	LessonCount int       `json:"lesson_count"`
	FirstDate   core.Date `json:"first_date"`
	LastDate    core.Date `json:"last_date"`
}

// Window is an inclusive range of calendar days.
type Window struct {
	From core.Date
	To   core.Date
}

// WeekWindow returns [weekStart, weekStart+6].
func WeekWindow(weekStart core.Date) Window {
	return Window{From: weekStart, To: weekStart.AddDays(6)}
}

func (w Window) Contains(d core.Date) bool {
	return !d.Before(w.From) && !d.After(w.To)
}

// Filter narrows a lesson query inside a single Scope.
type Filter struct {
	GroupIDs []int
	Window   *Window
}

func (f Filter) Match(l Lesson) bool {
	if f.Window != nil && !f.Window.Contains(l.Date) {
		return false
	}
	if len(f.GroupIDs) == 0 {
		return true
	}
	for _, id := range f.GroupIDs {
		if l.GroupID == id {
			return true
		}
	}
	return false
}

// WeekQuery selects the lessons to present for a week.
type WeekQuery struct {
	WeekStart    core.Date `query:"week_start" validate:"required"`
	GroupIDs     []int     `query:"group" validate:"required,min=1,dive,gt=0"`
	IncludeDraft bool      `query:"include_draft"`
	// BatchID pins the draft to show instead of guessing the most recent one.
	BatchID int `query:"batch_id" validate:"omitempty,gt=0"`
}

func (q *WeekQuery) Validate(validate *validator.Validate) error {
	return validate.Struct(q)
}

type Week struct {
	WeekStart    core.Date `json:"week_start"`
	Lessons      []Lesson  `json:"lessons"`
	DraftBatchID *int      `json:"draft_batch_id"`
}

// NewDraft contains information needed to open a draft for a week.
type NewDraft struct {
	WeekStart core.Date `json:"week_start" validate:"required"`
	GroupIDs  []int     `json:"group_ids" validate:"required,min=1,dive,gt=0"`
	Title     string    `json:"title" validate:"max=200"`
	CreatedBy *int      `json:"-"`
}

func (nd *NewDraft) Validate(validate *validator.Validate) error {
	nd.Title = core.CleanString(nd.Title)
	return validate.Struct(nd)
}

// NewDraftLesson contains information needed to add a lesson to a draft.
type NewDraftLesson struct {
	BatchID     int       `json:"batch_id" validate:"required,gt=0"`
	Date        core.Date `json:"date" validate:"required"`
	GroupID     int       `json:"group_id" validate:"required,gt=0"`
	StartMinute int       `json:"starts_at_min" validate:"min=0,max=1439"`
	EndMinute   int       `json:"ends_at_min" validate:"min=1,max=1440,endafterstart"`
	RoomID      *int      `json:"room_id" validate:"omitempty,gt=0"`
	SubjectID   *int      `json:"subject_id" validate:"omitempty,gt=0"`
	TeacherID   *int      `json:"teacher_id" validate:"omitempty,gt=0"`
}

func (nl *NewDraftLesson) Validate(validate *validator.Validate) error {
	return validate.Struct(nl)
}

func (nl NewDraftLesson) Slot() Slot {
	return Slot{
		Date:        core.DateOf(nl.Date.Time),
		StartMinute: nl.StartMinute,
		EndMinute:   nl.EndMinute,
		GroupID:     nl.GroupID,
		RoomID:      nl.RoomID,
		SubjectID:   nl.SubjectID,
		TeacherID:   nl.TeacherID,
	}
}
