package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/lesson"
)

// Date parses a YYYY-MM-DD day, panicking on bad input.
func Date(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func IntPtr(i int) *int { return &i }

// CreateLesson stores a lesson straight through the repository, skipping conflict checks.
func CreateLesson(t *testing.T, repo lesson.Repository, scope lesson.Scope, slot lesson.Slot) lesson.Lesson {
	t.Helper()
	l, err := repo.CreateLesson(context.Background(), scope, slot)
	require.NoError(t, err, "CreateLesson()")
	return l
}

// Slot returns a lesson slot of group on date from start to end minutes.
func Slot(date string, group, start, end int) lesson.Slot {
	return lesson.Slot{Date: Date(date), GroupID: group, StartMinute: start, EndMinute: end}
}

// Logger is a core.Logger that keeps what it is given.
type Logger struct {
	mutex   sync.Mutex
	Entries []LogEntry
}

type LogEntry struct {
	Level   string
	Message string
	Args    []interface{}
}

var _ core.Logger = (*Logger)(nil)

func NewLogger() *Logger { return &Logger{} }

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Message: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("fatal", msg, args)
	panic(fmt.Sprintf("fatal: %s", msg))
}

// Count returns how many entries were logged at level.
func (l *Logger) Count(level string) int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	var n int
	for _, e := range l.Entries {
		if e.Level == level {
			n++
		}
	}
	return n
}
