package catalog

import "testing"

func TestTeacherName(t *testing.T) {
	tests := []struct {
		name string
		id   int
		p    PersonName
		want string
	}{
		{name: "full name", id: 1, p: PersonName{"Ivanova", "Anna", "Petrovna"}, want: "Ivanova Anna Petrovna"},
		{name: "no middle name", id: 2, p: PersonName{LastName: "Doe", FirstName: "John"}, want: "Doe John"},
		{name: "blank parts skipped", id: 3, p: PersonName{LastName: "  ", FirstName: "Jane"}, want: "Jane"},
		{name: "no name", id: 42, want: "#42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TeacherName(tt.id, tt.p); got != tt.want {
				t.Errorf("TeacherName() = %q; want %q", got, tt.want)
			}
		})
	}
}
