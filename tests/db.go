package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/storage/database"
)

// DatabaseURLEnv names the PostgreSQL DSN the store tests run against.
const DatabaseURLEnv = "TEST_DATABASE_URL"

// PrepareDB migrates & empties the test database, skipping the test when none is configured.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv(DatabaseURLEnv)
	if dsn == "" {
		t.Skipf("%s not set", DatabaseURLEnv)
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err, "opening test database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db))
	ResetDB(t, db)
	return database.OpenX(db)
}

func ResetDB(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`TRUNCATE
		lesson, lesson_batch, staff_subject, staff, person, subject, room, edu_group,
		user_group_permission, user_user_group, user_group, permission
		RESTART IDENTITY CASCADE`)
	require.NoError(t, err, "resetting test database")
}

// Insert runs an INSERT ... RETURNING id and returns the id.
func Insert(t *testing.T, db *sqlx.DB, query string, args ...interface{}) int {
	t.Helper()
	var id int
	require.NoError(t, db.QueryRowx(query+" RETURNING id", args...).Scan(&id), query)
	return id
}
