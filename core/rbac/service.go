package rbac

import (
	"context"
	"fmt"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

type (
	Repository interface {
		// HasPermission reports whether any role group of the user grants perm.
		HasPermission(ctx context.Context, userID int, perm Permission) (bool, error)
		// EnsurePermissions creates the missing permissions; existing ones are left as they are.
		EnsurePermissions(ctx context.Context, perms []Permission) error
		// EnsureGroup returns the ID of the role group named name, creating it if needed.
		EnsureGroup(ctx context.Context, name string) (int, error)
		GrantPermissions(ctx context.Context, groupID int, perms []Permission) error
		AddUserToGroup(ctx context.Context, userID, groupID int) error
	}

	Store interface {
		Repository
		Atomic(ctx context.Context, fn func(repo Repository) error) error
	}

	Service struct {
		store  Store
		logger core.Logger
	}
)

func NewService(store Store, logger core.Logger) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(store, "store"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{store: store, logger: logger}
}

// Check returns core.ErrForbidden unless the user holds perm.
func (svc *Service) Check(ctx context.Context, userID int, perm Permission) error {
	if userID <= 0 {
		return core.ErrForbidden
	}
	ok, err := svc.store.HasPermission(ctx, userID, perm)
	if err != nil {
		return errors.Wrapf(err, "checking %s permission", perm)
	}
	if !ok {
		return core.ErrForbidden
	}
	return nil
}

// Seed provisions the seed's permissions and role groups in one transaction.
// It is idempotent.
func (svc *Service) Seed(ctx context.Context, seed Seed) error {
	err := svc.store.Atomic(ctx, func(repo Repository) error {
		if err := repo.EnsurePermissions(ctx, seed.Permissions); err != nil {
			return errors.Wrap(err, "creating permissions")
		}

		for _, g := range seed.Groups {
			perms, err := seed.groupPermissions(g)
			if err != nil {
				return core.NewValidationError(err)
			}
			groupID, err := repo.EnsureGroup(ctx, g.Name)
			if err != nil {
				return errors.Wrapf(err, "creating group %q", g.Name)
			}
			if err = repo.GrantPermissions(ctx, groupID, perms); err != nil {
				return errors.Wrapf(err, "granting permissions to %q", g.Name)
			}
			for _, userID := range g.Users {
				if err = repo.AddUserToGroup(ctx, userID, groupID); err != nil {
					return errors.Wrapf(err, "adding user %d to %q", userID, g.Name)
				}
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "seeding permissions")
	}

	svc.logger.Info(fmt.Sprintf("seeded %d permissions and %d groups", len(seed.Permissions), len(seed.Groups)))
	return nil
}
