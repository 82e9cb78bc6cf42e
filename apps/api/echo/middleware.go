package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/rbac"
)

// permissionMiddleware lets the request through when one of the user's groups grants perm.
func permissionMiddleware(svc *rbac.Service, perm rbac.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			userID, err := getContextUserID(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if err = svc.Check(ctx.Request().Context(), userID, perm); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}
