package lesson

import (
	"fmt"
	"reflect"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ratiba/core"
)

var (
	endAfterStartTag  = "endafterstart"
	endAfterStartText = "end time must be after the start time"

	groupsRequiredText = "at least one group is required"
)

// InitValidators registers the lesson validations & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(endAfterStartTag, endAfterStartValidation)
	core.RegisterCustomTranslation(validate, translator, endAfterStartTag, endAfterStartText)
}

// Custom Validators

// endAfterStartValidation checks that EndMinute is greater than its sibling StartMinute.
func endAfterStartValidation(fl validator.FieldLevel) bool {
	start := reflect.Indirect(fl.Parent()).FieldByName("StartMinute")
	if !start.IsValid() {
		return false
	}
	return fl.Field().Int() > start.Int()
}

// The service re-checks its invariants itself so that no write happens on bad
// input even when the caller skipped struct validation.

func checkWeekScope(weekStart core.Date, groupIDs []int) error {
	var flds []core.FieldError
	if weekStart.IsZero() {
		flds = append(flds, core.FieldError{Field: "week_start", Error: "this field is required"})
	}
	if len(groupIDs) == 0 {
		flds = append(flds, core.FieldError{Field: "group_ids", Error: groupsRequiredText})
	}
	for _, id := range groupIDs {
		if id <= 0 {
			flds = append(flds, core.FieldError{Field: "group_ids", Error: fmt.Sprintf("invalid group id %d", id)})
			break
		}
	}
	if flds != nil {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func checkDraftLesson(nl NewDraftLesson) error {
	var flds []core.FieldError
	positive := func(field string, id int) {
		if id <= 0 {
			flds = append(flds, core.FieldError{Field: field, Error: "must be a positive id"})
		}
	}
	optional := func(field string, id *int) {
		if id != nil {
			positive(field, *id)
		}
	}

	positive("batch_id", nl.BatchID)
	positive("group_id", nl.GroupID)
	optional("room_id", nl.RoomID)
	optional("subject_id", nl.SubjectID)
	optional("teacher_id", nl.TeacherID)
	if nl.Date.IsZero() {
		flds = append(flds, core.FieldError{Field: "date", Error: "this field is required"})
	}
	if nl.StartMinute < 0 || nl.StartMinute >= MinutesPerDay {
		flds = append(flds, core.FieldError{Field: "starts_at_min", Error: fmt.Sprintf("must be within [0, %d)", MinutesPerDay)})
	}
	if nl.EndMinute < 1 || nl.EndMinute > MinutesPerDay {
		flds = append(flds, core.FieldError{Field: "ends_at_min", Error: fmt.Sprintf("must be within [1, %d]", MinutesPerDay)})
	} else if nl.EndMinute <= nl.StartMinute {
		flds = append(flds, core.FieldError{Field: "ends_at_min", Error: endAfterStartText})
	}

	if flds != nil {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func invalidBatchID() error {
	return core.NewValidationError(nil, core.FieldError{Field: "batch_id", Error: "must be a positive id"})
}

// BatchOrderingFields are the fields drafts can be ordered by.
var BatchOrderingFields = []string{"id", "title", "created_at", "lesson_count"}

func checkBatchOrdering(ordering []core.DBOrdering) error {
	for _, ord := range ordering {
		known := false
		for _, f := range BatchOrderingFields {
			if ord.Field == f {
				known = true
				break
			}
		}
		if !known {
			return core.NewValidationError(nil, core.FieldError{
				Field: "ordering",
				Error: fmt.Sprintf("cannot order by %q", ord.Field),
			})
		}
	}
	return nil
}
