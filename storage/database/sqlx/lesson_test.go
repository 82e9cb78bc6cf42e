package sqlxrepos

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/lesson"
	"github.com/trezcool/ratiba/tests"
)

func TestChunkSlots(t *testing.T) {
	slots := make([]lesson.Slot, 7)
	for i := range slots {
		slots[i] = testutil.Slot("2025-09-01", i+1, 540, 585)
	}

	tests := []struct {
		name  string
		slots []lesson.Slot
		size  int
		want  []int
	}{
		{name: "empty", slots: nil, size: 3, want: nil},
		{name: "single chunk", slots: slots[:3], size: 3, want: []int{3}},
		{name: "remainder", slots: slots, size: 3, want: []int{3, 3, 1}},
		{name: "exact", slots: slots[:6], size: 2, want: []int{2, 2, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := chunkSlots(tt.slots, tt.size)
			var sizes []int
			var groups []int
			for _, c := range chunks {
				sizes = append(sizes, len(c))
				for _, s := range c {
					groups = append(groups, s.GroupID)
				}
			}
			assert.Equal(t, tt.want, sizes)
			for i, g := range groups {
				assert.Equal(t, i+1, g, "order kept")
			}
		})
	}
}

func TestLessonStore_CreateLessonsChunked(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	store := NewLessonStore(db)
	g7a := testutil.Insert(t, db, "INSERT INTO edu_group (name) VALUES ($1)", "7A")

	// more rows than one statement can bind
	n := 2*insertChunkRows + 500
	slots := make([]lesson.Slot, n)
	start := testutil.Date("2025-09-01")
	for i := range slots {
		slots[i] = lesson.Slot{Date: start.AddDays(i / 100), GroupID: g7a, StartMinute: i % 100, EndMinute: i%100 + 1}
	}

	created, err := store.CreateLessons(ctx, lesson.Published(), slots)
	require.NoError(t, err)
	assert.Equal(t, n, created)

	var count int
	require.NoError(t, db.Get(&count, "SELECT count(*) FROM lesson WHERE group_id = $1", g7a))
	assert.Equal(t, n, count)

	t.Run("failing chunk rolls back the others", func(t *testing.T) {
		bad := append([]lesson.Slot(nil), slots...)
		bad[len(bad)-1].GroupID = -1 // violates the group foreign key
		_, err := store.CreateLessons(ctx, lesson.Published(), bad)
		assert.Error(t, err)

		require.NoError(t, db.Get(&count, "SELECT count(*) FROM lesson WHERE group_id = $1", g7a))
		assert.Equal(t, n, count)
	})
}

func TestLessonStore(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	store := NewLessonStore(db)
	svc := lesson.NewService(store, testutil.NewLogger(), lesson.DraftOnly, nil)

	g7a := testutil.Insert(t, db, "INSERT INTO edu_group (name) VALUES ($1)", "7A")
	room := testutil.Insert(t, db, "INSERT INTO room (name) VALUES ($1)", "101")
	person := testutil.Insert(t, db, "INSERT INTO person (last_name, first_name) VALUES ($1, $2)", "Ivanova", "Anna")
	teacher := testutil.Insert(t, db, "INSERT INTO staff (person_id) VALUES ($1)", person)
	weekStart := testutil.Date("2025-09-01")

	slot := testutil.Slot("2025-09-01", g7a, 540, 585)
	slot.RoomID, slot.TeacherID = &room, &teacher
	published := testutil.CreateLesson(t, store, lesson.Published(), slot)
	assert.Equal(t, lesson.Published(), published.Scope)
	assert.Equal(t, "Ivanova Anna", published.Teacher.Name)
	assert.Equal(t, "101", published.Room.Name)
	assert.Equal(t, weekStart, published.Date)

	t.Run("null minutes read as defaults", func(t *testing.T) {
		id := testutil.Insert(t, db, "INSERT INTO lesson (date, group_id) VALUES ($1, $2)", "2025-09-05", g7a)
		lessons, err := store.QueryLessons(ctx, lesson.Published(), lesson.Filter{GroupIDs: []int{g7a}})
		require.NoError(t, err)
		require.Len(t, lessons, 2)
		assert.Equal(t, id, lessons[1].ID)
		assert.Equal(t, lesson.DefaultStartMinute, lessons[1].StartMinute)
		assert.Equal(t, lesson.DefaultEndMinute, lessons[1].EndMinute)
		_, err = db.Exec("DELETE FROM lesson WHERE id = $1", id)
		require.NoError(t, err)
	})

	batch, err := svc.StartDraft(ctx, lesson.NewDraft{WeekStart: weekStart, GroupIDs: []int{g7a}, Title: "draft"})
	require.NoError(t, err)

	draft, err := store.QueryLessons(ctx, lesson.Draft(batch.ID), lesson.Filter{})
	require.NoError(t, err)
	require.Len(t, draft, 1)
	assert.NotEqual(t, published.ID, draft[0].ID)
	assert.Equal(t, published.Slot, draft[0].Slot)

	t.Run("conflicts", func(t *testing.T) {
		_, err := svc.CreateDraftLesson(ctx, lesson.NewDraftLesson{
			BatchID: batch.ID, Date: weekStart, GroupID: g7a, StartMinute: 570, EndMinute: 630,
		})
		var cErr *lesson.ConflictError
		require.True(t, errors.As(err, &cErr), "got %v", err)
		assert.Equal(t, draft[0].ID, cErr.Lesson.ID)

		_, err = svc.CreateDraftLesson(ctx, lesson.NewDraftLesson{
			BatchID: batch.ID, Date: weekStart, GroupID: g7a, StartMinute: 585, EndMinute: 630,
		})
		assert.NoError(t, err, "touching")
	})

	t.Run("latest draft & listing", func(t *testing.T) {
		id, found, err := store.LatestDraftBatchID(ctx, lesson.Filter{GroupIDs: []int{g7a}})
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, batch.ID, id)

		drafts, err := svc.ListDrafts(ctx, nil)
		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Equal(t, 2, drafts[0].LessonCount)
		assert.Equal(t, weekStart, drafts[0].FirstDate)
	})

	require.NoError(t, svc.PublishDraft(ctx, batch.ID))
	_, err = store.GetBatch(ctx, batch.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	week, err := svc.ResolveWeek(ctx, lesson.WeekQuery{WeekStart: weekStart, GroupIDs: []int{g7a}, IncludeDraft: true})
	require.NoError(t, err)
	assert.Nil(t, week.DraftBatchID)
	require.Len(t, week.Lessons, 2)
	assert.Equal(t, 585, week.Lessons[1].StartMinute)

	assert.True(t, errors.Is(svc.DiscardDraft(ctx, batch.ID), core.ErrNotFound))
}
