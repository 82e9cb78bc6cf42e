package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/lesson"
)

// LessonStore is the in-memory lesson.Store.
type LessonStore struct {
	db *DB
}

var _ lesson.Store = (*LessonStore)(nil) // interface compliance check

func NewLessonStore(db *DB) *LessonStore {
	return &LessonStore{db: db}
}

func (s *LessonStore) Atomic(ctx context.Context, fn func(repo lesson.Repository) error) error {
	return s.db.atomic(ctx, func(t *tables) error {
		return fn(lessonRepository{t: t})
	})
}

func (s *LessonStore) CreateBatch(ctx context.Context, batch lesson.Batch) (created lesson.Batch, err error) {
	err = s.db.view(func(t *tables) error {
		created, err = lessonRepository{t: t}.CreateBatch(ctx, batch)
		return err
	})
	return created, err
}

func (s *LessonStore) GetBatch(ctx context.Context, id int) (batch lesson.Batch, err error) {
	err = s.db.view(func(t *tables) error {
		batch, err = lessonRepository{t: t}.GetBatch(ctx, id)
		return err
	})
	return batch, err
}

func (s *LessonStore) QueryBatches(ctx context.Context, ordering []core.DBOrdering) (batches []lesson.BatchSummary, err error) {
	err = s.db.view(func(t *tables) error {
		batches, err = lessonRepository{t: t}.QueryBatches(ctx, ordering)
		return err
	})
	return batches, err
}

func (s *LessonStore) DeleteBatch(ctx context.Context, id int) error {
	return s.db.view(func(t *tables) error {
		return lessonRepository{t: t}.DeleteBatch(ctx, id)
	})
}

func (s *LessonStore) LatestDraftBatchID(ctx context.Context, filter lesson.Filter) (id int, found bool, err error) {
	err = s.db.view(func(t *tables) error {
		id, found, err = lessonRepository{t: t}.LatestDraftBatchID(ctx, filter)
		return err
	})
	return id, found, err
}

func (s *LessonStore) QueryLessons(ctx context.Context, scope lesson.Scope, filter lesson.Filter) (lessons []lesson.Lesson, err error) {
	err = s.db.view(func(t *tables) error {
		lessons, err = lessonRepository{t: t}.QueryLessons(ctx, scope, filter)
		return err
	})
	return lessons, err
}

func (s *LessonStore) FindConflict(ctx context.Context, query lesson.ConflictQuery) (l lesson.Lesson, found bool, err error) {
	err = s.db.view(func(t *tables) error {
		l, found, err = lessonRepository{t: t}.FindConflict(ctx, query)
		return err
	})
	return l, found, err
}

func (s *LessonStore) CreateLesson(ctx context.Context, scope lesson.Scope, slot lesson.Slot) (l lesson.Lesson, err error) {
	err = s.db.view(func(t *tables) error {
		l, err = lessonRepository{t: t}.CreateLesson(ctx, scope, slot)
		return err
	})
	return l, err
}

func (s *LessonStore) CreateLessons(ctx context.Context, scope lesson.Scope, slots []lesson.Slot) (n int, err error) {
	// all or nothing, like a multi-row INSERT
	err = s.db.atomic(ctx, func(t *tables) error {
		n, err = lessonRepository{t: t}.CreateLessons(ctx, scope, slots)
		return err
	})
	return n, err
}

func (s *LessonStore) DeleteLessons(ctx context.Context, scope lesson.Scope, filter lesson.Filter) (n int, err error) {
	err = s.db.view(func(t *tables) error {
		n, err = lessonRepository{t: t}.DeleteLessons(ctx, scope, filter)
		return err
	})
	return n, err
}

// lessonRepository works on a set of tables the caller has already locked.
type lessonRepository struct {
	t *tables
}

func (repo lessonRepository) CreateBatch(_ context.Context, batch lesson.Batch) (lesson.Batch, error) {
	for _, b := range repo.t.batch {
		if b.Key == batch.Key {
			return lesson.Batch{}, errors.Errorf("duplicate batch key %q", batch.Key)
		}
	}
	batch.ID = repo.t.nextID("lesson_batch")
	repo.t.batch[batch.ID] = batch
	return batch, nil
}

func (repo lessonRepository) GetBatch(_ context.Context, id int) (lesson.Batch, error) {
	if b, ok := repo.t.batch[id]; ok {
		return b, nil
	}
	return lesson.Batch{}, lesson.ErrBatchNotFound
}

func (repo lessonRepository) QueryBatches(_ context.Context, ordering []core.DBOrdering) ([]lesson.BatchSummary, error) {
	byBatch := make(map[int]*lesson.BatchSummary, len(repo.t.batch))
	for id, b := range repo.t.batch {
		byBatch[id] = &lesson.BatchSummary{Batch: b}
	}
	for _, l := range repo.t.lesson {
		id, ok := l.Scope.BatchID()
		if !ok {
			continue
		}
		sum, ok := byBatch[id]
		if !ok {
			continue
		}
		sum.LessonCount++
		if sum.FirstDate.IsZero() || l.Date.Before(sum.FirstDate) {
			sum.FirstDate = l.Date
		}
		if l.Date.After(sum.LastDate) {
			sum.LastDate = l.Date
		}
	}

	batches := make([]lesson.BatchSummary, 0, len(byBatch))
	for _, sum := range byBatch {
		batches = append(batches, *sum)
	}
	sort.Slice(batches, func(i, j int) bool {
		for _, ord := range ordering {
			if c := compareBatches(batches[i], batches[j], ord.Field); c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		return batches[i].ID < batches[j].ID
	})
	return batches, nil
}

func compareBatches(a, b lesson.BatchSummary, field string) int {
	switch field {
	case "id":
		return a.ID - b.ID
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "created_at":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
	case "lesson_count":
		return a.LessonCount - b.LessonCount
	}
	return 0
}

func (repo lessonRepository) DeleteBatch(_ context.Context, id int) error {
	if _, ok := repo.t.batch[id]; !ok {
		return lesson.ErrBatchNotFound
	}
	delete(repo.t.batch, id)
	return nil
}

func (repo lessonRepository) LatestDraftBatchID(_ context.Context, filter lesson.Filter) (int, bool, error) {
	var latest lesson.Lesson
	for _, l := range repo.t.lesson {
		if l.Scope.IsDraft() && filter.Match(l) && l.ID > latest.ID {
			latest = l
		}
	}
	id, ok := latest.Scope.BatchID()
	return id, ok, nil
}

func (repo lessonRepository) QueryLessons(_ context.Context, scope lesson.Scope, filter lesson.Filter) ([]lesson.Lesson, error) {
	lessons := make([]lesson.Lesson, 0)
	for _, l := range repo.t.lesson {
		if l.Scope == scope && filter.Match(l) {
			lessons = append(lessons, repo.resolve(l))
		}
	}
	sort.Slice(lessons, func(i, j int) bool {
		a, b := lessons[i], lessons[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.StartMinute != b.StartMinute {
			return a.StartMinute < b.StartMinute
		}
		return a.ID < b.ID
	})
	return lessons, nil
}

func (repo lessonRepository) FindConflict(_ context.Context, query lesson.ConflictQuery) (lesson.Lesson, bool, error) {
	var (
		match lesson.Lesson
		found bool
	)
	for _, l := range repo.t.lesson {
		// lowest ID first, for a deterministic answer
		if query.Match(l) && (!found || l.ID < match.ID) {
			match, found = l, true
		}
	}
	if !found {
		return lesson.Lesson{}, false, nil
	}
	return repo.resolve(match), true, nil
}

func (repo lessonRepository) CreateLesson(_ context.Context, scope lesson.Scope, slot lesson.Slot) (lesson.Lesson, error) {
	if id, ok := scope.BatchID(); ok {
		if _, exists := repo.t.batch[id]; !exists {
			return lesson.Lesson{}, lesson.ErrBatchNotFound
		}
	}
	l := lesson.Lesson{ID: repo.t.nextID("lesson"), Scope: scope, Slot: slot}
	l.Date = core.DateOf(slot.Date.Time)
	repo.t.lesson[l.ID] = l
	return repo.resolve(l), nil
}

func (repo lessonRepository) CreateLessons(ctx context.Context, scope lesson.Scope, slots []lesson.Slot) (int, error) {
	for _, slot := range slots {
		if _, err := repo.CreateLesson(ctx, scope, slot); err != nil {
			return 0, err
		}
	}
	return len(slots), nil
}

func (repo lessonRepository) DeleteLessons(_ context.Context, scope lesson.Scope, filter lesson.Filter) (int, error) {
	var n int
	for id, l := range repo.t.lesson {
		if l.Scope == scope && filter.Match(l) {
			delete(repo.t.lesson, id)
			n++
		}
	}
	return n, nil
}

// resolve attaches the catalog names of the lesson's relations.
func (repo lessonRepository) resolve(l lesson.Lesson) lesson.Lesson {
	if g, ok := repo.t.group[l.GroupID]; ok {
		l.Group = &lesson.Ref{ID: g.ID, Name: g.Name}
	}
	if l.RoomID != nil {
		if r, ok := repo.t.room[*l.RoomID]; ok {
			l.Room = &lesson.Ref{ID: r.ID, Name: r.Name}
		}
	}
	if l.SubjectID != nil {
		if s, ok := repo.t.subject[*l.SubjectID]; ok {
			l.Subject = &lesson.Ref{ID: s.ID, Name: s.Name}
		}
	}
	if l.TeacherID != nil {
		if t, ok := repo.t.teacher[*l.TeacherID]; ok {
			l.Teacher = &lesson.Ref{ID: *l.TeacherID, Name: catalogTeacherName(*l.TeacherID, t)}
		}
	}
	return l
}
