package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/ratiba/core/catalog"
	"github.com/trezcool/ratiba/core/lesson"
	"github.com/trezcool/ratiba/core/rbac"
)

type (
	// DB is a process-local database. A single mutex serializes every operation;
	// transactions run on a copy of the tables that replaces them on success.
	DB struct {
		mutex  sync.Mutex
		tables *tables
	}

	tables struct {
		batch   map[int]lesson.Batch
		lesson  map[int]lesson.Lesson
		group   map[int]catalog.Group
		room    map[int]catalog.Room
		subject map[int]catalog.Subject
		teacher map[int]teacherRow

		permission      map[rbac.Permission]int
		userGroup       map[string]int
		groupPermission map[int]map[rbac.Permission]bool
		userUserGroup   map[int]map[int]bool

		pkCount map[string]int
	}

	teacherRow struct {
		person     catalog.PersonName
		subjectIDs []int
	}
)

func Open() *DB {
	return &DB{tables: newTables()}
}

func newTables() *tables {
	return &tables{
		batch:           make(map[int]lesson.Batch),
		lesson:          make(map[int]lesson.Lesson),
		group:           make(map[int]catalog.Group),
		room:            make(map[int]catalog.Room),
		subject:         make(map[int]catalog.Subject),
		teacher:         make(map[int]teacherRow),
		permission:      make(map[rbac.Permission]int),
		userGroup:       make(map[string]int),
		groupPermission: make(map[int]map[rbac.Permission]bool),
		userUserGroup:   make(map[int]map[int]bool),
		pkCount:         make(map[string]int),
	}
}

func (t *tables) nextID(table string) int {
	t.pkCount[table]++
	return t.pkCount[table]
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.batch {
		c.batch[k] = v
	}
	for k, v := range t.lesson {
		c.lesson[k] = v
	}
	for k, v := range t.group {
		c.group[k] = v
	}
	for k, v := range t.room {
		c.room[k] = v
	}
	for k, v := range t.subject {
		c.subject[k] = v
	}
	for k, v := range t.teacher {
		c.teacher[k] = v
	}
	for k, v := range t.permission {
		c.permission[k] = v
	}
	for k, v := range t.userGroup {
		c.userGroup[k] = v
	}
	for k, perms := range t.groupPermission {
		c.groupPermission[k] = make(map[rbac.Permission]bool, len(perms))
		for p := range perms {
			c.groupPermission[k][p] = true
		}
	}
	for k, groups := range t.userUserGroup {
		c.userUserGroup[k] = make(map[int]bool, len(groups))
		for g := range groups {
			c.userUserGroup[k][g] = true
		}
	}
	for k, v := range t.pkCount {
		c.pkCount[k] = v
	}
	return c
}

// view runs fn against the live tables under the lock.
func (db *DB) view(fn func(t *tables) error) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return fn(db.tables)
}

// atomic runs fn on a copy of the tables, which replaces the live ones only if fn succeeds.
func (db *DB) atomic(ctx context.Context, fn func(t *tables) error) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := db.tables.clone()
	if err := fn(tx); err != nil {
		return err
	}
	db.tables = tx
	return nil
}

// Reset empties every table. For tests.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.tables = newTables()
}
