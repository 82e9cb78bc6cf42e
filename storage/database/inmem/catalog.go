package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/ratiba/core/catalog"
)

type CatalogRepository struct {
	db *DB
}

var _ catalog.Repository = (*CatalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (repo *CatalogRepository) QueryGroups(context.Context) (groups []catalog.Group, err error) {
	err = repo.db.view(func(t *tables) error {
		for _, g := range t.group {
			groups = append(groups, g)
		}
		return nil
	})
	sort.Slice(groups, func(i, j int) bool { return lessByName(groups[i].Name, groups[j].Name, groups[i].ID, groups[j].ID) })
	return groups, err
}

func (repo *CatalogRepository) QueryRooms(context.Context) (rooms []catalog.Room, err error) {
	err = repo.db.view(func(t *tables) error {
		for _, r := range t.room {
			rooms = append(rooms, r)
		}
		return nil
	})
	sort.Slice(rooms, func(i, j int) bool { return lessByName(rooms[i].Name, rooms[j].Name, rooms[i].ID, rooms[j].ID) })
	return rooms, err
}

func (repo *CatalogRepository) QuerySubjects(context.Context) (subjects []catalog.Subject, err error) {
	err = repo.db.view(func(t *tables) error {
		for _, s := range t.subject {
			subjects = append(subjects, s)
		}
		return nil
	})
	sort.Slice(subjects, func(i, j int) bool {
		return lessByName(subjects[i].Name, subjects[j].Name, subjects[i].ID, subjects[j].ID)
	})
	return subjects, err
}

func (repo *CatalogRepository) QueryTeachers(context.Context) ([]catalog.Teacher, error) {
	type row struct {
		catalog.Teacher
		person catalog.PersonName
	}
	var rows []row
	_ = repo.db.view(func(t *tables) error {
		for id, tr := range t.teacher {
			subjectIDs := append([]int{}, tr.subjectIDs...)
			sort.Ints(subjectIDs)
			rows = append(rows, row{
				Teacher: catalog.Teacher{ID: id, Name: catalogTeacherName(id, tr), SubjectIDs: subjectIDs},
				person:  tr.person,
			})
		}
		return nil
	})
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].person, rows[j].person
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		return lessByName(a.FirstName, b.FirstName, rows[i].ID, rows[j].ID)
	})

	teachers := make([]catalog.Teacher, 0, len(rows))
	for _, r := range rows {
		teachers = append(teachers, r.Teacher)
	}
	return teachers, nil
}

// AddGroup, AddRoom, AddSubject & AddTeacher fill the catalog, which the
// application itself never writes.

func (repo *CatalogRepository) AddGroup(name string) (g catalog.Group) {
	_ = repo.db.view(func(t *tables) error {
		g = catalog.Group{ID: t.nextID("edu_group"), Name: name}
		t.group[g.ID] = g
		return nil
	})
	return g
}

func (repo *CatalogRepository) AddRoom(name string) (r catalog.Room) {
	_ = repo.db.view(func(t *tables) error {
		r = catalog.Room{ID: t.nextID("room"), Name: name}
		t.room[r.ID] = r
		return nil
	})
	return r
}

func (repo *CatalogRepository) AddSubject(name string) (s catalog.Subject) {
	_ = repo.db.view(func(t *tables) error {
		s = catalog.Subject{ID: t.nextID("subject"), Name: name}
		t.subject[s.ID] = s
		return nil
	})
	return s
}

func (repo *CatalogRepository) AddTeacher(person catalog.PersonName, subjectIDs ...int) (tch catalog.Teacher) {
	_ = repo.db.view(func(t *tables) error {
		id := t.nextID("staff")
		row := teacherRow{person: person, subjectIDs: subjectIDs}
		t.teacher[id] = row
		tch = catalog.Teacher{ID: id, Name: catalogTeacherName(id, row), SubjectIDs: subjectIDs}
		return nil
	})
	return tch
}

func catalogTeacherName(id int, row teacherRow) string {
	return catalog.TeacherName(id, row.person)
}

func lessByName(a, b string, idA, idB int) bool {
	if c := strings.Compare(a, b); c != 0 {
		return c < 0
	}
	return idA < idB
}
