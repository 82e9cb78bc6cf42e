package boiledrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/rbac"
)

// RBACStore is the PostgreSQL rbac.Store.
type RBACStore struct {
	rbacRepository
	db core.DB
}

var _ rbac.Store = (*RBACStore)(nil) // interface compliance check

func NewRBACStore(db core.DB) *RBACStore {
	return &RBACStore{rbacRepository: rbacRepository{exec: db}, db: db}
}

func (s *RBACStore) Atomic(ctx context.Context, fn func(repo rbac.Repository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(rbacRepository{exec: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back transaction: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

type rbacRepository struct {
	exec core.DBExecutor
}

type idRow struct {
	ID int `boil:"id"`
}

func (repo rbacRepository) HasPermission(ctx context.Context, userID int, perm rbac.Permission) (bool, error) {
	var res struct {
		Found bool `boil:"found"`
	}
	err := queries.Raw(`
		SELECT EXISTS (
			SELECT 1
			FROM user_group_permission ugp
			JOIN user_user_group uug ON uug.user_group_id = ugp.user_group_id
			JOIN permission p ON p.id = ugp.permission_id
			WHERE uug.user_id = $1 AND p.type = $2 AND p.action = $3 AND p.scope = $4
		) AS found`,
		userID, perm.Type, perm.Action, perm.Scope,
	).Bind(ctx, repo.exec, &res)
	if err != nil {
		return false, errors.Wrap(err, "checking permission")
	}
	return res.Found, nil
}

func (repo rbacRepository) EnsurePermissions(ctx context.Context, perms []rbac.Permission) error {
	for _, p := range perms {
		_, err := queries.Raw(
			"INSERT INTO permission (type, action, scope) VALUES ($1, $2, $3) ON CONFLICT (type, action, scope) DO NOTHING",
			p.Type, p.Action, p.Scope,
		).ExecContext(ctx, repo.exec)
		if err != nil {
			return errors.Wrapf(err, "inserting permission %s", p)
		}
	}
	return nil
}

func (repo rbacRepository) EnsureGroup(ctx context.Context, name string) (int, error) {
	var row idRow
	// the no-op update makes RETURNING yield the existing row too
	err := queries.Raw(
		"INSERT INTO user_group (name) VALUES ($1) ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id",
		name,
	).Bind(ctx, repo.exec, &row)
	if err != nil {
		return 0, errors.Wrap(err, "upserting user group")
	}
	return row.ID, nil
}

func (repo rbacRepository) GrantPermissions(ctx context.Context, groupID int, perms []rbac.Permission) error {
	for _, p := range perms {
		var perm idRow
		err := queries.Raw(
			"SELECT id FROM permission WHERE type = $1 AND action = $2 AND scope = $3",
			p.Type, p.Action, p.Scope,
		).Bind(ctx, repo.exec, &perm)
		if err != nil {
			if errors.Cause(err) == sql.ErrNoRows {
				return errors.Errorf("permission %s does not exist", p)
			}
			return errors.Wrapf(err, "finding permission %s", p)
		}

		_, err = queries.Raw(
			"INSERT INTO user_group_permission (user_group_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			groupID, perm.ID,
		).ExecContext(ctx, repo.exec)
		if err != nil {
			return errors.Wrapf(err, "granting permission %s", p)
		}
	}
	return nil
}

func (repo rbacRepository) AddUserToGroup(ctx context.Context, userID, groupID int) error {
	_, err := queries.Raw(
		"INSERT INTO user_user_group (user_id, user_group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		userID, groupID,
	).ExecContext(ctx, repo.exec)
	return errors.Wrap(err, "adding user to group")
}
