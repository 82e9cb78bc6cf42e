package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/rbac"
)

type RBACStore struct {
	db *DB
}

var _ rbac.Store = (*RBACStore)(nil) // interface compliance check

func NewRBACStore(db *DB) *RBACStore {
	return &RBACStore{db: db}
}

func (s *RBACStore) Atomic(ctx context.Context, fn func(repo rbac.Repository) error) error {
	return s.db.atomic(ctx, func(t *tables) error {
		return fn(rbacRepository{t: t})
	})
}

func (s *RBACStore) HasPermission(ctx context.Context, userID int, perm rbac.Permission) (ok bool, err error) {
	err = s.db.view(func(t *tables) error {
		ok, err = rbacRepository{t: t}.HasPermission(ctx, userID, perm)
		return err
	})
	return ok, err
}

func (s *RBACStore) EnsurePermissions(ctx context.Context, perms []rbac.Permission) error {
	return s.db.view(func(t *tables) error {
		return rbacRepository{t: t}.EnsurePermissions(ctx, perms)
	})
}

func (s *RBACStore) EnsureGroup(ctx context.Context, name string) (id int, err error) {
	err = s.db.view(func(t *tables) error {
		id, err = rbacRepository{t: t}.EnsureGroup(ctx, name)
		return err
	})
	return id, err
}

func (s *RBACStore) GrantPermissions(ctx context.Context, groupID int, perms []rbac.Permission) error {
	return s.db.view(func(t *tables) error {
		return rbacRepository{t: t}.GrantPermissions(ctx, groupID, perms)
	})
}

func (s *RBACStore) AddUserToGroup(ctx context.Context, userID, groupID int) error {
	return s.db.view(func(t *tables) error {
		return rbacRepository{t: t}.AddUserToGroup(ctx, userID, groupID)
	})
}

type rbacRepository struct {
	t *tables
}

func (repo rbacRepository) HasPermission(_ context.Context, userID int, perm rbac.Permission) (bool, error) {
	for groupID := range repo.t.userUserGroup[userID] {
		if repo.t.groupPermission[groupID][perm] {
			return true, nil
		}
	}
	return false, nil
}

func (repo rbacRepository) EnsurePermissions(_ context.Context, perms []rbac.Permission) error {
	for _, p := range perms {
		if _, ok := repo.t.permission[p]; !ok {
			repo.t.permission[p] = repo.t.nextID("permission")
		}
	}
	return nil
}

func (repo rbacRepository) EnsureGroup(_ context.Context, name string) (int, error) {
	if id, ok := repo.t.userGroup[name]; ok {
		return id, nil
	}
	id := repo.t.nextID("user_group")
	repo.t.userGroup[name] = id
	return id, nil
}

func (repo rbacRepository) GrantPermissions(_ context.Context, groupID int, perms []rbac.Permission) error {
	granted, ok := repo.t.groupPermission[groupID]
	if !ok {
		granted = make(map[rbac.Permission]bool, len(perms))
		repo.t.groupPermission[groupID] = granted
	}
	for _, p := range perms {
		if _, ok := repo.t.permission[p]; !ok {
			return errUnknownPermission(p)
		}
		granted[p] = true
	}
	return nil
}

func (repo rbacRepository) AddUserToGroup(_ context.Context, userID, groupID int) error {
	groups, ok := repo.t.userUserGroup[userID]
	if !ok {
		groups = make(map[int]bool)
		repo.t.userUserGroup[userID] = groups
	}
	groups[groupID] = true
	return nil
}

func errUnknownPermission(p rbac.Permission) error {
	return errors.Errorf("permission %s does not exist", p)
}
