package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/catalog"
	"github.com/trezcool/ratiba/core/lesson"
)

// LessonStore is the PostgreSQL lesson.Store.
type LessonStore struct {
	lessonRepository
	db *sqlx.DB
}

var _ lesson.Store = (*LessonStore)(nil) // interface compliance check

func NewLessonStore(db *sqlx.DB) *LessonStore {
	return &LessonStore{lessonRepository: lessonRepository{exec: db}, db: db}
}

// Atomic runs fn in a READ COMMITTED transaction. Operations on a batch are
// serialized by the row lock GetBatch takes on it.
func (s *LessonStore) Atomic(ctx context.Context, fn func(repo lesson.Repository) error) error {
	return transact(ctx, s.db, nil, func(tx *sqlx.Tx) error {
		return fn(lessonRepository{exec: tx, inTx: true})
	})
}

type (
	lessonRepository struct {
		exec sqlx.ExtContext
		inTx bool
	}

	batchRow struct {
		ID          int       `db:"id"`
		Key         string    `db:"key"`
		Title       string    `db:"title"`
		CreatedBy   null.Int  `db:"created_by"`
		CreatedAt   time.Time `db:"created_at"`
		LessonCount int       `db:"lesson_count"`
		FirstDate   null.Time `db:"first_date"`
		LastDate    null.Time `db:"last_date"`
	}

	lessonRow struct {
		ID          int         `db:"id"`
		Date        time.Time   `db:"date"`
		StartMinute int         `db:"starts_at_min"`
		EndMinute   int         `db:"ends_at_min"`
		GroupID     int         `db:"group_id"`
		RoomID      null.Int    `db:"room_id"`
		SubjectID   null.Int    `db:"subject_id"`
		TeacherID   null.Int    `db:"teacher_id"`
		BatchID     null.Int    `db:"batch_id"`
		GroupName   null.String `db:"group_name"`
		RoomName    null.String `db:"room_name"`
		SubjectName null.String `db:"subject_name"`
		LastName    null.String `db:"last_name"`
		FirstName   null.String `db:"first_name"`
		MiddleName  null.String `db:"middle_name"`
	}
)

var (
	// stored minutes may be NULL; they read as the display defaults
	startMinuteCol = fmt.Sprintf("COALESCE(l.starts_at_min, %d)", lesson.DefaultStartMinute)
	endMinuteCol   = fmt.Sprintf("COALESCE(l.ends_at_min, %d)", lesson.DefaultEndMinute)

	batchOrderingCols = map[string]string{
		"id":           "b.id",
		"title":        "b.title",
		"created_at":   "b.created_at",
		"lesson_count": "lesson_count",
	}
)

func (row batchRow) unbind() lesson.Batch {
	return lesson.Batch{
		ID:        row.ID,
		Key:       row.Key,
		Title:     row.Title,
		CreatedBy: row.CreatedBy.Ptr(),
		CreatedAt: row.CreatedAt.UTC(),
	}
}

func (row lessonRow) unbind() lesson.Lesson {
	l := lesson.Lesson{
		ID:    row.ID,
		Scope: lesson.ScopeFromBatchID(row.BatchID.Ptr()),
		Slot: lesson.Slot{
			Date:        core.DateOf(row.Date),
			StartMinute: row.StartMinute,
			EndMinute:   row.EndMinute,
			GroupID:     row.GroupID,
			RoomID:      row.RoomID.Ptr(),
			SubjectID:   row.SubjectID.Ptr(),
			TeacherID:   row.TeacherID.Ptr(),
		},
	}
	if row.GroupName.Valid {
		l.Group = &lesson.Ref{ID: row.GroupID, Name: row.GroupName.String}
	}
	if row.RoomName.Valid {
		l.Room = &lesson.Ref{ID: row.RoomID.Int, Name: row.RoomName.String}
	}
	if row.SubjectName.Valid {
		l.Subject = &lesson.Ref{ID: row.SubjectID.Int, Name: row.SubjectName.String}
	}
	if row.TeacherID.Valid {
		name := catalog.TeacherName(row.TeacherID.Int, catalog.PersonName{
			LastName:   row.LastName.String,
			FirstName:  row.FirstName.String,
			MiddleName: row.MiddleName.String,
		})
		l.Teacher = &lesson.Ref{ID: row.TeacherID.Int, Name: name}
	}
	return l
}

func unbindLessons(rows []lessonRow) []lesson.Lesson {
	lessons := make([]lesson.Lesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, row.unbind())
	}
	return lessons
}

// scopeCond is the only place a Scope turns into a batch_id predicate.
func scopeCond(col string, scope lesson.Scope) sq.Sqlizer {
	if id, ok := scope.BatchID(); ok {
		return sq.Eq{col: id}
	}
	return sq.Eq{col: nil}
}

func filterCond(filter lesson.Filter) sq.And {
	cond := sq.And{}
	if len(filter.GroupIDs) > 0 {
		cond = append(cond, sq.Eq{"l.group_id": filter.GroupIDs})
	}
	if filter.Window != nil {
		cond = append(cond,
			sq.GtOrEq{"l.date": filter.Window.From.String()},
			sq.LtOrEq{"l.date": filter.Window.To.String()},
		)
	}
	return cond
}

func selectLessons() sq.SelectBuilder {
	return psql.Select(
		"l.id", "l.date",
		startMinuteCol+" AS starts_at_min", endMinuteCol+" AS ends_at_min",
		"l.group_id", "l.room_id", "l.subject_id", "l.teacher_id", "l.batch_id",
		"g.name AS group_name", "r.name AS room_name", "s.name AS subject_name",
		"p.last_name", "p.first_name", "p.middle_name",
	).
		From("lesson l").
		LeftJoin("edu_group g ON g.id = l.group_id").
		LeftJoin("room r ON r.id = l.room_id").
		LeftJoin("subject s ON s.id = l.subject_id").
		LeftJoin("staff st ON st.id = l.teacher_id").
		LeftJoin("person p ON p.id = st.person_id")
}

func (repo lessonRepository) CreateBatch(ctx context.Context, batch lesson.Batch) (lesson.Batch, error) {
	q, args, err := psql.Insert("lesson_batch").
		Columns("key", "title", "created_by", "created_at").
		Values(batch.Key, batch.Title, null.IntFromPtr(batch.CreatedBy), batch.CreatedAt.UTC()).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return lesson.Batch{}, errors.Wrap(err, "building query")
	}
	if err = repo.exec.QueryRowxContext(ctx, q, args...).Scan(&batch.ID); err != nil {
		return lesson.Batch{}, errors.Wrap(err, "inserting batch")
	}
	return batch, nil
}

func (repo lessonRepository) GetBatch(ctx context.Context, id int) (lesson.Batch, error) {
	b := psql.Select("b.id", "b.key", "b.title", "b.created_by", "b.created_at").
		From("lesson_batch b").
		Where(sq.Eq{"b.id": id})
	if repo.inTx {
		b = b.Suffix("FOR UPDATE")
	}

	var row batchRow
	if err := get(ctx, repo.exec, &row, b); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return lesson.Batch{}, lesson.ErrBatchNotFound
		}
		return lesson.Batch{}, errors.Wrap(err, "finding batch")
	}
	return row.unbind(), nil
}

func (repo lessonRepository) QueryBatches(ctx context.Context, ordering []core.DBOrdering) ([]lesson.BatchSummary, error) {
	b := psql.Select(
		"b.id", "b.key", "b.title", "b.created_by", "b.created_at",
		"COUNT(l.id) AS lesson_count", "MIN(l.date) AS first_date", "MAX(l.date) AS last_date",
	).
		From("lesson_batch b").
		LeftJoin("lesson l ON l.batch_id = b.id").
		GroupBy("b.id")

	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if col, ok := batchOrderingCols[ord.Field]; ok {
			orderList = append(orderList, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	orderList = append(orderList, "b.id DESC")
	b = b.OrderBy(strings.Join(orderList, ", "))

	var rows []batchRow
	if err := selectAll(ctx, repo.exec, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying batches")
	}

	batches := make([]lesson.BatchSummary, 0, len(rows))
	for _, row := range rows {
		sum := lesson.BatchSummary{Batch: row.unbind(), LessonCount: row.LessonCount}
		if row.FirstDate.Valid {
			sum.FirstDate = core.DateOf(row.FirstDate.Time)
			sum.LastDate = core.DateOf(row.LastDate.Time)
		}
		batches = append(batches, sum)
	}
	return batches, nil
}

func (repo lessonRepository) DeleteBatch(ctx context.Context, id int) error {
	n, err := execute(ctx, repo.exec, psql.Delete("lesson_batch").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting batch")
	}
	if n == 0 {
		return lesson.ErrBatchNotFound
	}
	return nil
}

func (repo lessonRepository) LatestDraftBatchID(ctx context.Context, filter lesson.Filter) (int, bool, error) {
	b := psql.Select("l.batch_id").
		From("lesson l").
		Where(sq.NotEq{"l.batch_id": nil}).
		Where(filterCond(filter)).
		OrderBy("l.id DESC").
		Limit(1)

	var id int
	if err := get(ctx, repo.exec, &id, b); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, "finding latest draft")
	}
	return id, true, nil
}

func (repo lessonRepository) QueryLessons(ctx context.Context, scope lesson.Scope, filter lesson.Filter) ([]lesson.Lesson, error) {
	b := selectLessons().
		Where(scopeCond("l.batch_id", scope)).
		Where(filterCond(filter)).
		OrderBy("l.date", "starts_at_min", "l.id")

	var rows []lessonRow
	if err := selectAll(ctx, repo.exec, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	return unbindLessons(rows), nil
}

func (repo lessonRepository) FindConflict(ctx context.Context, query lesson.ConflictQuery) (lesson.Lesson, bool, error) {
	slot := query.Slot
	shared := sq.Or{sq.Eq{"l.group_id": slot.GroupID}}
	if slot.RoomID != nil {
		shared = append(shared, sq.Eq{"l.room_id": *slot.RoomID})
	}
	if slot.TeacherID != nil {
		shared = append(shared, sq.Eq{"l.teacher_id": *slot.TeacherID})
	}

	b := selectLessons().
		Where(scopeCond("l.batch_id", query.Scope)).
		Where(sq.Eq{"l.date": slot.Date.String()}).
		Where(sq.Expr(startMinuteCol+" < ? AND "+endMinuteCol+" > ?", slot.EndMinute, slot.StartMinute)).
		Where(shared).
		OrderBy("l.id").
		Limit(1)

	var row lessonRow
	if err := get(ctx, repo.exec, &row, b); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return lesson.Lesson{}, false, nil
		}
		return lesson.Lesson{}, false, errors.Wrap(err, "finding conflicts")
	}
	return row.unbind(), true, nil
}

func insertLessons() sq.InsertBuilder {
	return psql.Insert("lesson").Columns(
		"date", "starts_at_min", "ends_at_min", "group_id", "room_id", "subject_id", "teacher_id", "batch_id",
	)
}

func lessonValues(scope lesson.Scope, slot lesson.Slot) []interface{} {
	return []interface{}{
		slot.Date.String(), slot.StartMinute, slot.EndMinute, slot.GroupID,
		null.IntFromPtr(slot.RoomID), null.IntFromPtr(slot.SubjectID), null.IntFromPtr(slot.TeacherID),
		null.IntFromPtr(scope.BatchIDPtr()),
	}
}

func (repo lessonRepository) CreateLesson(ctx context.Context, scope lesson.Scope, slot lesson.Slot) (lesson.Lesson, error) {
	q, args, err := insertLessons().Values(lessonValues(scope, slot)...).Suffix("RETURNING id").ToSql()
	if err != nil {
		return lesson.Lesson{}, errors.Wrap(err, "building query")
	}
	var id int
	if err = repo.exec.QueryRowxContext(ctx, q, args...).Scan(&id); err != nil {
		return lesson.Lesson{}, errors.Wrap(err, "inserting lesson")
	}

	var row lessonRow
	if err = get(ctx, repo.exec, &row, selectLessons().Where(sq.Eq{"l.id": id})); err != nil {
		return lesson.Lesson{}, errors.Wrap(err, "reading inserted lesson")
	}
	return row.unbind(), nil
}

// insertChunkRows keeps a multi-row lesson insert under PostgreSQL's 65535 bind parameters.
const insertChunkRows = 1000

func chunkSlots(slots []lesson.Slot, size int) [][]lesson.Slot {
	var chunks [][]lesson.Slot
	for len(slots) > size {
		chunks = append(chunks, slots[:size:size])
		slots = slots[size:]
	}
	if len(slots) > 0 {
		chunks = append(chunks, slots)
	}
	return chunks
}

// CreateLessons inserts slots in chunks, all of them or none.
func (repo lessonRepository) CreateLessons(ctx context.Context, scope lesson.Scope, slots []lesson.Slot) (int, error) {
	chunks := chunkSlots(slots, insertChunkRows)
	if db, ok := repo.exec.(*sqlx.DB); ok && !repo.inTx && len(chunks) > 1 {
		var n int
		err := transact(ctx, db, nil, func(tx *sqlx.Tx) error {
			var err error
			n, err = lessonRepository{exec: tx, inTx: true}.CreateLessons(ctx, scope, slots)
			return err
		})
		return n, err
	}

	total := 0
	for _, chunk := range chunks {
		b := insertLessons()
		for _, slot := range chunk {
			b = b.Values(lessonValues(scope, slot)...)
		}
		n, err := execute(ctx, repo.exec, b)
		if err != nil {
			return total, errors.Wrap(err, "inserting lessons")
		}
		total += n
	}
	return total, nil
}

func (repo lessonRepository) DeleteLessons(ctx context.Context, scope lesson.Scope, filter lesson.Filter) (int, error) {
	b := psql.Delete("lesson l").
		Where(scopeCond("l.batch_id", scope)).
		Where(filterCond(filter))
	n, err := execute(ctx, repo.exec, b)
	return n, errors.Wrap(err, "deleting lessons")
}
