package lesson

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

var (
	NowFunc     = time.Now                                      // mockable
	newBatchKey = func() string { return uuid.New().String() } // mockable

	// errors
	ErrBatchNotFound = fmt.Errorf("lesson batch %w", core.ErrNotFound)
)

type (
	// Repository gives typed access to lessons and batches. A lesson's Scope is
	// set once, on creation; there is deliberately no way to move a row between scopes.
	Repository interface {
		CreateBatch(ctx context.Context, batch Batch) (Batch, error)
		// GetBatch returns ErrBatchNotFound for unknown IDs. Inside Store.Atomic it
		// also locks the batch until the transaction ends.
		GetBatch(ctx context.Context, id int) (Batch, error)
		QueryBatches(ctx context.Context, ordering []core.DBOrdering) ([]BatchSummary, error)
		DeleteBatch(ctx context.Context, id int) error

		// LatestDraftBatchID returns the batch of the draft lesson with the highest ID matching filter.
		LatestDraftBatchID(ctx context.Context, filter Filter) (id int, found bool, err error)
		// QueryLessons returns the lessons of a single scope ordered by date, start minute & ID,
		// with their relations resolved.
		QueryLessons(ctx context.Context, scope Scope, filter Filter) ([]Lesson, error)
		// FindConflict returns one lesson matching ConflictQuery.Match, if any.
		FindConflict(ctx context.Context, query ConflictQuery) (Lesson, bool, error)
		CreateLesson(ctx context.Context, scope Scope, slot Slot) (Lesson, error)
		CreateLessons(ctx context.Context, scope Scope, slots []Slot) (int, error)
		DeleteLessons(ctx context.Context, scope Scope, filter Filter) (int, error)
	}

	// Store is a Repository that can run a unit of work atomically.
	Store interface {
		Repository

		// Atomic runs fn in one transaction: the writes fn makes through repo are
		// all committed, or none are when fn or the commit fails.
		Atomic(ctx context.Context, fn func(repo Repository) error) error
	}

	// WeekCache caches published weeks. Draft scopes are never cached.
	// GetWeek reports the week's version even on a miss. SetWeek stores under
	// that version and InvalidateWeeks bumps it, orphaning late writes.
	WeekCache interface {
		GetWeek(ctx context.Context, weekStart core.Date, groupIDs []int) (lessons []Lesson, version int64, ok bool, err error)
		SetWeek(ctx context.Context, weekStart core.Date, groupIDs []int, version int64, lessons []Lesson) error
		InvalidateWeeks(ctx context.Context, weekStarts ...core.Date) error
	}

	Service struct {
		store  Store
		cache  WeekCache
		policy ConflictPolicy
		logger core.Logger
	}
)

// NewService returns the scheduling service. cache may be nil.
func NewService(store Store, logger core.Logger, policy ConflictPolicy, cache WeekCache) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(store, "store"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	if policy == "" {
		policy = DraftOnly
	}
	return &Service{store: store, cache: cache, policy: policy, logger: logger}
}

func (svc *Service) ConflictPolicy() ConflictPolicy { return svc.policy }

// ResolveWeek returns the lessons to present for the week starting at q.WeekStart:
// those of the active draft when one is requested and exists, else the published ones.
func (svc *Service) ResolveWeek(ctx context.Context, q WeekQuery) (Week, error) {
	if err := checkWeekScope(q.WeekStart, q.GroupIDs); err != nil {
		return Week{}, err
	}
	weekStart := core.DateOf(q.WeekStart.Time)
	win := WeekWindow(weekStart)
	filter := Filter{GroupIDs: q.GroupIDs, Window: &win}

	scope := Published()
	if q.IncludeDraft {
		if q.BatchID > 0 {
			if _, err := svc.store.GetBatch(ctx, q.BatchID); err != nil {
				return Week{}, errors.Wrap(err, "finding batch")
			}
			scope = Draft(q.BatchID)
		} else {
			id, found, err := svc.store.LatestDraftBatchID(ctx, filter)
			if err != nil {
				return Week{}, errors.Wrap(err, "finding active draft")
			}
			if found {
				scope = Draft(id)
			}
		}
	}

	lessons, err := svc.queryWeek(ctx, scope, weekStart, filter)
	if err != nil {
		return Week{}, err
	}
	return Week{WeekStart: weekStart, Lessons: lessons, DraftBatchID: scope.BatchIDPtr()}, nil
}

func (svc *Service) queryWeek(ctx context.Context, scope Scope, weekStart core.Date, filter Filter) ([]Lesson, error) {
	// only Monday-aligned weeks are cached so publishing can invalidate them by week start
	cacheable := svc.cache != nil && !scope.IsDraft() && weekStart.Equal(weekStart.Monday())
	var version int64
	if cacheable {
		lessons, ver, ok, err := svc.cache.GetWeek(ctx, weekStart, filter.GroupIDs)
		switch {
		case err != nil:
			svc.logger.Warn("reading week cache", err)
			cacheable = false
		case ok:
			return lessons, nil
		default:
			version = ver
		}
	}

	lessons, err := svc.store.QueryLessons(ctx, scope, filter)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s lessons", scope)
	}
	for i := range lessons {
		lessons[i].Enrich()
	}
	if lessons == nil {
		lessons = []Lesson{}
	}

	if cacheable {
		if err = svc.cache.SetWeek(ctx, weekStart, filter.GroupIDs, version, lessons); err != nil {
			svc.logger.Warn("writing week cache", err)
		}
	}
	return lessons, nil
}

// StartDraft opens a new batch and copies the week's published lessons of the
// given groups into it. The published lessons are left untouched.
func (svc *Service) StartDraft(ctx context.Context, nd NewDraft) (Batch, error) {
	if err := checkWeekScope(nd.WeekStart, nd.GroupIDs); err != nil {
		return Batch{}, err
	}
	win := WeekWindow(core.DateOf(nd.WeekStart.Time))

	var (
		batch  Batch
		copied int
	)
	err := svc.store.Atomic(ctx, func(repo Repository) error {
		var err error
		batch, err = repo.CreateBatch(ctx, Batch{
			Key:       newBatchKey(),
			Title:     core.CleanString(nd.Title),
			CreatedBy: nd.CreatedBy,
			CreatedAt: NowFunc().UTC(),
		})
		if err != nil {
			return errors.Wrap(err, "creating batch")
		}

		published, err := repo.QueryLessons(ctx, Published(), Filter{GroupIDs: nd.GroupIDs, Window: &win})
		if err != nil {
			return errors.Wrap(err, "querying published lessons")
		}
		if len(published) == 0 {
			return nil // a blank week
		}

		copied, err = repo.CreateLessons(ctx, Draft(batch.ID), slotsOf(published))
		return errors.Wrap(err, "copying published lessons")
	})
	if err != nil {
		return Batch{}, errors.Wrap(err, "starting draft")
	}

	svc.logger.Info(fmt.Sprintf("draft %d started for week %s: %d lessons copied", batch.ID, win.From, copied))
	return batch, nil
}

// DiscardDraft deletes a batch and all its lessons.
func (svc *Service) DiscardDraft(ctx context.Context, batchID int) error {
	if batchID <= 0 {
		return invalidBatchID()
	}

	var removed int
	err := svc.store.Atomic(ctx, func(repo Repository) error {
		if _, err := repo.GetBatch(ctx, batchID); err != nil {
			return err
		}
		var err error
		if removed, err = repo.DeleteLessons(ctx, Draft(batchID), Filter{}); err != nil {
			return errors.Wrap(err, "deleting draft lessons")
		}
		return errors.Wrap(repo.DeleteBatch(ctx, batchID), "deleting batch")
	})
	if err != nil {
		return errors.Wrap(err, "discarding draft")
	}

	svc.logger.Info(fmt.Sprintf("draft %d discarded: %d lessons deleted", batchID, removed))
	return nil
}

// PublishDraft replaces the published lessons of the draft's groups & weeks with
// the draft's lessons, then deletes the draft. Published lessons in that window
// without a draft counterpart are deleted, not merged.
//
// Publishing an empty draft only deletes the batch: the published timetable is
// left exactly as it was.
func (svc *Service) PublishDraft(ctx context.Context, batchID int) error {
	if batchID <= 0 {
		return invalidBatchID()
	}

	var (
		win                Window
		published, removed int
		empty              bool
	)
	err := svc.store.Atomic(ctx, func(repo Repository) error {
		if _, err := repo.GetBatch(ctx, batchID); err != nil {
			return err
		}

		draft, err := repo.QueryLessons(ctx, Draft(batchID), Filter{})
		if err != nil {
			return errors.Wrap(err, "querying draft lessons")
		}
		if len(draft) == 0 {
			empty = true
			return errors.Wrap(repo.DeleteBatch(ctx, batchID), "deleting batch")
		}

		var groupIDs []int
		groupIDs, win = publishScope(draft)

		if removed, err = repo.DeleteLessons(ctx, Published(), Filter{GroupIDs: groupIDs, Window: &win}); err != nil {
			return errors.Wrap(err, "clearing published lessons")
		}
		if published, err = repo.CreateLessons(ctx, Published(), slotsOf(draft)); err != nil {
			return errors.Wrap(err, "publishing draft lessons")
		}
		if _, err = repo.DeleteLessons(ctx, Draft(batchID), Filter{}); err != nil {
			return errors.Wrap(err, "deleting draft lessons")
		}
		return errors.Wrap(repo.DeleteBatch(ctx, batchID), "deleting batch")
	})
	if err != nil {
		return errors.Wrap(err, "publishing draft")
	}

	if empty {
		svc.logger.Info(fmt.Sprintf("draft %d was empty: deleted without publishing", batchID))
		return nil
	}

	svc.logger.Info(fmt.Sprintf(
		"draft %d published for %s..%s: %d lessons replaced by %d", batchID, win.From, win.To, removed, published,
	))
	if svc.cache != nil {
		if err = svc.cache.InvalidateWeeks(ctx, weeksOf(win)...); err != nil {
			svc.logger.Error("invalidating week cache", err)
		}
	}
	return nil
}

// CreateDraftLesson adds a lesson to a draft unless it overlaps a lesson of the
// same batch & day that shares its group, room or teacher.
func (svc *Service) CreateDraftLesson(ctx context.Context, nl NewDraftLesson) (Lesson, error) {
	if err := checkDraftLesson(nl); err != nil {
		return Lesson{}, err
	}
	scope := Draft(nl.BatchID)
	slot := nl.Slot()

	var created Lesson
	err := svc.store.Atomic(ctx, func(repo Repository) error {
		if _, err := repo.GetBatch(ctx, nl.BatchID); err != nil {
			return err
		}

		for _, s := range svc.policy.scopes(scope) {
			existing, found, err := repo.FindConflict(ctx, ConflictQuery{Scope: s, Slot: slot})
			if err != nil {
				return errors.Wrap(err, "checking conflicts")
			}
			if found {
				return NewConflictError(slot, existing)
			}
		}

		var err error
		created, err = repo.CreateLesson(ctx, scope, slot)
		return errors.Wrap(err, "inserting lesson")
	})
	if err != nil {
		return Lesson{}, errors.Wrap(err, "creating draft lesson")
	}

	created.Enrich()
	return created, nil
}

// ListDrafts returns the open batches with their lesson counts.
// Drafts are listed newest first unless ordering says otherwise.
func (svc *Service) ListDrafts(ctx context.Context, ordering []core.DBOrdering) ([]BatchSummary, error) {
	if err := checkBatchOrdering(ordering); err != nil {
		return nil, err
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}, {Field: "id"}}
	}

	batches, err := svc.store.QueryBatches(ctx, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying batches")
	}
	if batches == nil {
		batches = []BatchSummary{}
	}
	return batches, nil
}

func slotsOf(lessons []Lesson) []Slot {
	slots := make([]Slot, 0, len(lessons))
	for _, l := range lessons {
		slots = append(slots, l.Slot)
	}
	return slots
}

// publishScope returns the groups a draft covers and the window it replaces:
// from the Monday on or before its earliest lesson through the Sunday of the week
// holding its latest lesson.
func publishScope(draft []Lesson) ([]int, Window) {
	seen := make(map[int]bool)
	groupIDs := make([]int, 0)
	first, last := draft[0].Date, draft[0].Date
	for _, l := range draft {
		if !seen[l.GroupID] {
			seen[l.GroupID] = true
			groupIDs = append(groupIDs, l.GroupID)
		}
		if l.Date.Before(first) {
			first = l.Date
		}
		if l.Date.After(last) {
			last = l.Date
		}
	}
	sort.Ints(groupIDs)
	return groupIDs, Window{From: first.Monday(), To: last.Monday().AddDays(6)}
}

// weeksOf returns the week starts covered by win.
func weeksOf(win Window) []core.Date {
	var weeks []core.Date
	for d := win.From.Monday(); !d.After(win.To); d = d.AddDays(7) {
		weeks = append(weeks, d)
	}
	return weeks
}
