package catalog

import (
	"strconv"
	"strings"
)

type (
	Group struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	Room struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	Subject struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	Teacher struct {
		ID         int    `json:"id"`
		Name       string `json:"name"`
		SubjectIDs []int  `json:"subject_ids"`
	}

	// FormOptions lists the choices offered when adding a lesson to a draft.
	FormOptions struct {
		Rooms    []Room    `json:"rooms"`
		Subjects []Subject `json:"subjects"`
		Teachers []Teacher `json:"teachers"`
	}
)

// PersonName is how a staff member is named in the timetable.
type PersonName struct {
	LastName   string
	FirstName  string
	MiddleName string
}

// TeacherName joins the non-blank name parts as "Last First Middle", or
// falls back to "#<id>" for staff without a name.
func TeacherName(id int, p PersonName) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.LastName, p.FirstName, p.MiddleName} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "#" + strconv.Itoa(id)
	}
	return strings.Join(parts, " ")
}
