package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ratiba/core/catalog"
)

type CatalogRepository struct {
	db sqlx.ExtContext
}

var _ catalog.Repository = (*CatalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

type (
	namedRow struct {
		ID   int    `db:"id"`
		Name string `db:"name"`
	}

	teacherRow struct {
		ID         int           `db:"id"`
		LastName   null.String   `db:"last_name"`
		FirstName  null.String   `db:"first_name"`
		MiddleName null.String   `db:"middle_name"`
		SubjectIDs pq.Int64Array `db:"subject_ids"`
	}
)

func (repo *CatalogRepository) queryNamed(ctx context.Context, table string) ([]namedRow, error) {
	var rows []namedRow
	b := psql.Select("id", "name").From(table).OrderBy("name", "id")
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrapf(err, "querying %s", table)
	}
	return rows, nil
}

func (repo *CatalogRepository) QueryGroups(ctx context.Context) ([]catalog.Group, error) {
	rows, err := repo.queryNamed(ctx, "edu_group")
	if err != nil {
		return nil, err
	}
	groups := make([]catalog.Group, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, catalog.Group(r))
	}
	return groups, nil
}

func (repo *CatalogRepository) QueryRooms(ctx context.Context) ([]catalog.Room, error) {
	rows, err := repo.queryNamed(ctx, "room")
	if err != nil {
		return nil, err
	}
	rooms := make([]catalog.Room, 0, len(rows))
	for _, r := range rows {
		rooms = append(rooms, catalog.Room(r))
	}
	return rooms, nil
}

func (repo *CatalogRepository) QuerySubjects(ctx context.Context) ([]catalog.Subject, error) {
	rows, err := repo.queryNamed(ctx, "subject")
	if err != nil {
		return nil, err
	}
	subjects := make([]catalog.Subject, 0, len(rows))
	for _, r := range rows {
		subjects = append(subjects, catalog.Subject(r))
	}
	return subjects, nil
}

func (repo *CatalogRepository) QueryTeachers(ctx context.Context) ([]catalog.Teacher, error) {
	b := psql.Select(
		"st.id", "p.last_name", "p.first_name", "p.middle_name",
		"COALESCE(array_agg(ss.subject_id ORDER BY ss.subject_id) FILTER (WHERE ss.subject_id IS NOT NULL), '{}') AS subject_ids",
	).
		From("staff st").
		LeftJoin("person p ON p.id = st.person_id").
		LeftJoin("staff_subject ss ON ss.staff_id = st.id").
		GroupBy("st.id", "p.last_name", "p.first_name", "p.middle_name").
		OrderBy("p.last_name NULLS FIRST", "p.first_name NULLS FIRST", "st.id")

	var rows []teacherRow
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}

	teachers := make([]catalog.Teacher, 0, len(rows))
	for _, r := range rows {
		subjectIDs := make([]int, 0, len(r.SubjectIDs))
		for _, id := range r.SubjectIDs {
			subjectIDs = append(subjectIDs, int(id))
		}
		teachers = append(teachers, catalog.Teacher{
			ID: r.ID,
			Name: catalog.TeacherName(r.ID, catalog.PersonName{
				LastName:   r.LastName.String,
				FirstName:  r.FirstName.String,
				MiddleName: r.MiddleName.String,
			}),
			SubjectIDs: subjectIDs,
		})
	}
	return teachers, nil
}
