package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core/catalog"
	"github.com/trezcool/ratiba/core/lesson"
	"github.com/trezcool/ratiba/tests"
)

type weekResponse struct {
	WeekStart    string `json:"week_start"`
	DraftBatchID *int   `json:"draft_batch_id"`
	Lessons      []struct {
		ID          int    `json:"id"`
		BatchID     *int   `json:"batch_id"`
		Date        string `json:"date"`
		StartMinute int    `json:"starts_at_min"`
		EndMinute   int    `json:"ends_at_min"`
		GroupID     int    `json:"group_id"`
	} `json:"lessons"`
}

func weekPath(weekStart string, group int, includeDraft bool) string {
	return fmt.Sprintf("/v1/schedule/week?week_start=%s&group=%d&include_draft=%t", weekStart, group, includeDraft)
}

func Test_scheduleApi_auth(t *testing.T) {
	f := setup(t)
	teacherToken := f.getToken(t, teacherID)
	strangerToken := f.getToken(t, strangerID)
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{
			name:     "no token",
			method:   http.MethodGet,
			path:     "/v1/schedule/groups",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "bad token",
			method:   http.MethodGet,
			path:     "/v1/schedule/groups",
			token:    "not.a.token",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "teacher reads",
			method:   http.MethodGet,
			path:     "/v1/schedule/groups",
			token:    teacherToken,
			wantCode: http.StatusOK,
			wantData: []byte("[]"),
		},
		{
			name:     "teacher cannot start a draft",
			method:   http.MethodPost,
			path:     "/v1/schedule/drafts",
			body:     []byte(`{"week_start": "2025-09-01", "group_ids": [1]}`),
			token:    teacherToken,
			wantCode: http.StatusForbidden,
			wantData: forbidden,
		},
		{
			name:     "user without group",
			method:   http.MethodGet,
			path:     "/v1/schedule/drafts",
			token:    strangerToken,
			wantCode: http.StatusForbidden,
			wantData: forbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("unauthenticated home", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/")
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Welcome to Ratiba API!", rec.Body.String())
	})
}

func Test_scheduleApi_endToEnd(t *testing.T) {
	f := setup(t)
	token := f.getToken(t, adminID)
	g := f.catalog.AddGroup("7A")

	published := testutil.CreateLesson(t, f.lessonStore, lesson.Published(), testutil.Slot("2025-09-01", g.ID, 540, 600))

	// start a draft from mid-week: the week is normalized to its Monday
	rec := f.do(http.MethodPost, "/v1/schedule/drafts", token,
		[]byte(fmt.Sprintf(`{"week_start": "2025-09-03", "group_ids": [%d], "title": " week 36 "}`, g.ID)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var draft struct {
		BatchID   int    `json:"batch_id"`
		Title     string `json:"title"`
		CreatedBy *int   `json:"created_by"`
	}
	unmarshalBody(t, rec, &draft)
	require.Greater(t, draft.BatchID, 0)
	assert.Equal(t, "week 36", draft.Title)
	if assert.NotNil(t, draft.CreatedBy) {
		assert.Equal(t, adminID, *draft.CreatedBy)
	}

	// the draft shows a copy of the published lesson
	rec = f.do(http.MethodGet, weekPath("2025-09-03", g.ID, true), token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var week weekResponse
	unmarshalBody(t, rec, &week)
	assert.Equal(t, "2025-09-01", week.WeekStart)
	require.NotNil(t, week.DraftBatchID)
	assert.Equal(t, draft.BatchID, *week.DraftBatchID)
	require.Len(t, week.Lessons, 1)
	copied := week.Lessons[0]
	assert.NotEqual(t, published.ID, copied.ID)
	if assert.NotNil(t, copied.BatchID) {
		assert.Equal(t, draft.BatchID, *copied.BatchID)
	}

	lessonsPath := fmt.Sprintf("/v1/schedule/drafts/%d/lessons", draft.BatchID)

	// overlapping the copied lesson
	rec = f.do(http.MethodPost, lessonsPath, token,
		[]byte(fmt.Sprintf(`{"date": "2025-09-01", "group_id": %d, "starts_at_min": 570, "ends_at_min": 630}`, g.ID)))
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	var conflict struct {
		Error    string `json:"error"`
		Conflict struct {
			Dimension string `json:"dimension"`
			LessonID  int    `json:"lesson_id"`
			BatchID   *int   `json:"batch_id"`
		} `json:"conflict"`
	}
	unmarshalBody(t, rec, &conflict)
	assert.Equal(t, string(lesson.DimensionGroup), conflict.Conflict.Dimension)
	assert.Equal(t, copied.ID, conflict.Conflict.LessonID)
	if assert.NotNil(t, conflict.Conflict.BatchID) {
		assert.Equal(t, draft.BatchID, *conflict.Conflict.BatchID)
	}
	assert.Contains(t, conflict.Error, "time conflict")

	// touching the copied lesson
	rec = f.do(http.MethodPost, lessonsPath, token,
		[]byte(fmt.Sprintf(`{"date": "2025-09-01", "group_id": %d, "starts_at_min": 600, "ends_at_min": 660}`, g.ID)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// the published week is untouched until publishing
	rec = f.do(http.MethodGet, weekPath("2025-09-01", g.ID, false), token)
	require.Equal(t, http.StatusOK, rec.Code)
	week = weekResponse{}
	unmarshalBody(t, rec, &week)
	assert.Nil(t, week.DraftBatchID)
	require.Len(t, week.Lessons, 1)
	assert.Equal(t, published.ID, week.Lessons[0].ID)

	rec = f.do(http.MethodPost, fmt.Sprintf("/v1/schedule/drafts/%d/publish", draft.BatchID), token)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, weekPath("2025-09-01", g.ID, true), token)
	require.Equal(t, http.StatusOK, rec.Code)
	week = weekResponse{}
	unmarshalBody(t, rec, &week)
	assert.Nil(t, week.DraftBatchID, "no draft left")
	require.Len(t, week.Lessons, 2)
	for i, want := range [][2]int{{540, 600}, {600, 660}} {
		assert.Nil(t, week.Lessons[i].BatchID)
		assert.Equal(t, want[0], week.Lessons[i].StartMinute)
		assert.Equal(t, want[1], week.Lessons[i].EndMinute)
	}

	// the batch is gone
	rec = f.do(http.MethodDelete, fmt.Sprintf("/v1/schedule/drafts/%d", draft.BatchID), token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_scheduleApi_discardDraft(t *testing.T) {
	f := setup(t)
	token := f.getToken(t, adminID)
	g := f.catalog.AddGroup("7A")
	testutil.CreateLesson(t, f.lessonStore, lesson.Published(), testutil.Slot("2025-09-02", g.ID, 480, 540))

	rec := f.do(http.MethodPost, "/v1/schedule/drafts", token,
		[]byte(fmt.Sprintf(`{"week_start": "2025-09-01", "group_ids": [%d]}`, g.ID)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var draft struct {
		BatchID int `json:"batch_id"`
	}
	unmarshalBody(t, rec, &draft)

	rec = f.do(http.MethodGet, "/v1/schedule/drafts", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var drafts []struct {
		ID          int `json:"id"`
		LessonCount int `json:"lesson_count"`
	}
	unmarshalBody(t, rec, &drafts)
	require.Len(t, drafts, 1)
	assert.Equal(t, draft.BatchID, drafts[0].ID)
	assert.Equal(t, 1, drafts[0].LessonCount)

	path := fmt.Sprintf("/v1/schedule/drafts/%d", draft.BatchID)
	rec = f.do(http.MethodDelete, path, token)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = f.do(http.MethodDelete, path, token)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "lesson batch not found"}),
	}, rec)

	rec = f.do(http.MethodGet, weekPath("2025-09-01", g.ID, true), token)
	require.Equal(t, http.StatusOK, rec.Code)
	var week weekResponse
	unmarshalBody(t, rec, &week)
	assert.Nil(t, week.DraftBatchID)
	assert.Len(t, week.Lessons, 1, "published lessons survive a discard")
}

func Test_scheduleApi_validation(t *testing.T) {
	f := setup(t)
	token := f.getToken(t, adminID)
	g := f.catalog.AddGroup("7A")

	rec := f.do(http.MethodPost, "/v1/schedule/drafts", token,
		[]byte(fmt.Sprintf(`{"week_start": "2025-09-01", "group_ids": [%d]}`, g.ID)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var draft struct {
		BatchID int `json:"batch_id"`
	}
	unmarshalBody(t, rec, &draft)
	lessonsPath := fmt.Sprintf("/v1/schedule/drafts/%d/lessons", draft.BatchID)

	tests := []httpTest{
		{
			name:     "week without groups",
			method:   http.MethodGet,
			path:     "/v1/schedule/week?week_start=2025-09-01",
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"group": "this field is required"}`),
		},
		{
			name:     "week without start",
			method:   http.MethodGet,
			path:     fmt.Sprintf("/v1/schedule/week?group=%d", g.ID),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"week_start": "this field is required"}`),
		},
		{
			name:     "draft without groups",
			method:   http.MethodPost,
			path:     "/v1/schedule/drafts",
			body:     []byte(`{"week_start": "2025-09-01", "group_ids": []}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "lesson ending before it starts",
			method:   http.MethodPost,
			path:     lessonsPath,
			body:     []byte(fmt.Sprintf(`{"date": "2025-09-01", "group_id": %d, "starts_at_min": 600, "ends_at_min": 540}`, g.ID)),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"ends_at_min": "end time must be after the start time"}`),
		},
		{
			name:     "lesson without group",
			method:   http.MethodPost,
			path:     lessonsPath,
			body:     []byte(`{"date": "2025-09-01", "starts_at_min": 600, "ends_at_min": 660}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"group_id": "this field is required"}`),
		},
		{
			name:     "lesson in unknown draft",
			method:   http.MethodPost,
			path:     "/v1/schedule/drafts/999/lessons",
			body:     []byte(fmt.Sprintf(`{"date": "2025-09-01", "group_id": %d, "starts_at_min": 600, "ends_at_min": 660}`, g.ID)),
			wantCode: http.StatusNotFound,
		},
		{
			name:     "publish unknown draft",
			method:   http.MethodPost,
			path:     "/v1/schedule/drafts/999/publish",
			wantCode: http.StatusNotFound,
		},
		{
			name:     "malformed draft id",
			method:   http.MethodDelete,
			path:     "/v1/schedule/drafts/abc",
			wantCode: http.StatusNotFound,
		},
		{
			name:     "unknown ordering",
			method:   http.MethodGet,
			path:     "/v1/schedule/drafts?ordering=-key",
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"ordering": "cannot order by \"key\""}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_scheduleApi_catalog(t *testing.T) {
	f := setup(t)
	token := f.getToken(t, teacherID)

	b := f.catalog.AddGroup("7B")
	a := f.catalog.AddGroup("7A")
	room := f.catalog.AddRoom("Lab 1")
	math := f.catalog.AddSubject("Math")
	tch := f.catalog.AddTeacher(catalog.PersonName{LastName: "Otieno", FirstName: "Amina"}, math.ID)

	rec := f.do(http.MethodGet, "/v1/schedule/groups", token)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, []catalog.Group{a, b}),
	}, rec)

	rec = f.do(http.MethodGet, "/v1/schedule/form-options", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var opts catalog.FormOptions
	unmarshalBody(t, rec, &opts)
	assert.Equal(t, []catalog.Room{room}, opts.Rooms)
	assert.Equal(t, []catalog.Subject{math}, opts.Subjects)
	require.Len(t, opts.Teachers, 1)
	assert.Equal(t, tch.ID, opts.Teachers[0].ID)
	assert.Equal(t, "Otieno Amina", opts.Teachers[0].Name)
	assert.Equal(t, []int{math.ID}, opts.Teachers[0].SubjectIDs)
}
