package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/ratiba/apps/api/echo"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/lesson"
	"github.com/trezcool/ratiba/core/rbac"
	inmemdb "github.com/trezcool/ratiba/storage/database/inmem"
	"github.com/trezcool/ratiba/tests"
)

type fixture struct {
	cli         *commandLine
	out         *bytes.Buffer
	lessonStore *inmemdb.LessonStore
}

func setup(t *testing.T) *fixture {
	t.Helper()
	conf := &core.Config{
		AppName:   "Ratiba",
		SecretKey: "test-secret",
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
	}
	logger := testutil.NewLogger()

	// set up DB & repos
	db := inmemdb.Open()
	lessonStore := inmemdb.NewLessonStore(db)

	out := new(bytes.Buffer)
	cli := &commandLine{
		conf:      conf,
		lessonSvc: lesson.NewService(lessonStore, logger, lesson.DraftOnly, nil),
		rbacSvc:   rbac.NewService(inmemdb.NewRBACStore(db), logger),
		out:       out,
	}
	return &fixture{cli: cli, out: out, lessonStore: lessonStore}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err == nil || err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
		}
	case err != nil:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	f := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "token: no user", args: []string{"token"}, wantErr: errHelp},
		{name: "drafts: no subcommand", args: []string{"drafts"}, wantErr: errHelp},
		{name: "drafts: unknown subcommand", args: []string{"drafts", "lol"}, wantErr: errHelp},
		{name: "drafts discard: no id", args: []string{"drafts", "discard"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, f.cli.run(args))
		})
	}
	assert.Contains(t, f.out.String(), "Usage:")
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		if dir != "migrations" {
			return fmt.Errorf("unexpected migrations dir %q", dir)
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "attendance", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, f.cli.run(args))
		})
	}
}

func Test_commandLine_seedPermissions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	readFileFunc = func(name string) ([]byte, error) {
		if name != "custom.yaml" {
			return nil, fs.ErrNotExist
		}
		return []byte("permissions: [lesson:read:all]\ngroups:\n  - name: Readers\n    permissions: [lesson:read:all]\n    users: [7]\n"), nil
	}

	require.NoError(t, f.cli.run([]string{"admin", "seedperms"}))
	assert.NoError(t, f.cli.rbacSvc.Check(ctx, 1, rbac.Lesson(rbac.ActionWrite)))
	assert.True(t, errors.Is(f.cli.rbacSvc.Check(ctx, 7, rbac.Lesson(rbac.ActionRead)), core.ErrForbidden))

	require.NoError(t, f.cli.run([]string{"admin", "seedperms", "-file", "custom.yaml"}))
	assert.NoError(t, f.cli.rbacSvc.Check(ctx, 7, rbac.Lesson(rbac.ActionRead)))
	assert.Contains(t, f.out.String(), "seeded 1 permissions & 1 groups")

	err := f.cli.run([]string{"admin", "seedperms", "-file", "missing.yaml"})
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func Test_commandLine_token(t *testing.T) {
	f := setup(t)

	require.NoError(t, f.cli.run([]string{"admin", "token", "-user", "42", "-username", "amina"}))
	token := strings.TrimSpace(f.out.String())
	require.NotEmpty(t, token)
	assert.Len(t, strings.Split(token, "."), 3)

	claims := new(echoapi.Claims)
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(f.cli.conf.SecretKey), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "amina", claims.Username)
	assert.Equal(t, "Ratiba", claims.Issuer)
}

func Test_commandLine_drafts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	testutil.CreateLesson(t, f.lessonStore, lesson.Published(), testutil.Slot("2025-09-01", 1, 540, 600))
	batch, err := f.cli.lessonSvc.StartDraft(ctx, lesson.NewDraft{
		WeekStart: testutil.Date("2025-09-01"),
		GroupIDs:  []int{1},
		Title:     "week 36",
	})
	require.NoError(t, err)
	other, err := f.cli.lessonSvc.StartDraft(ctx, lesson.NewDraft{WeekStart: testutil.Date("2025-09-08"), GroupIDs: []int{1}})
	require.NoError(t, err)

	require.NoError(t, f.cli.run([]string{"admin", "drafts", "list", "-ordering", "id"}))
	lines := strings.Split(strings.TrimSpace(f.out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "week 36")
	assert.Contains(t, lines[1], "2025-09-01")

	tests := []cliTest{
		{name: "discard", args: []string{"drafts", "discard", "-id", strconv.Itoa(other.ID)}},
		{name: "discard again", args: []string{"drafts", "discard", "-id", strconv.Itoa(other.ID)}, wantErr: core.ErrNotFound},
		{name: "publish", args: []string{"drafts", "publish", "-id", strconv.Itoa(batch.ID)}},
		{name: "bad ordering", args: []string{"drafts", "list", "-ordering", "key"}, wantErrStr: "ordering: cannot order by \"key\""},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, f.cli.run(args))
		})
	}

	drafts, err := f.cli.lessonSvc.ListDrafts(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}
