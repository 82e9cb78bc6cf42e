package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/catalog"
	"github.com/trezcool/ratiba/core/lesson"
	"github.com/trezcool/ratiba/core/rbac"
)

type scheduleApi struct {
	svc        *lesson.Service
	catalogSvc *catalog.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerScheduleAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := scheduleApi{
		svc:        deps.LessonSvc,
		catalogSvc: deps.CatalogSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}
	canRead := permissionMiddleware(deps.RBACSvc, rbac.Lesson(rbac.ActionRead))
	canWrite := permissionMiddleware(deps.RBACSvc, rbac.Lesson(rbac.ActionWrite))

	sg := g.Group("/schedule", jwt)
	sg.GET("/week", api.week, canRead)
	sg.GET("/groups", api.groups, canRead)
	sg.GET("/form-options", api.formOptions, canRead)

	dg := sg.Group("/drafts")
	dg.GET("", api.drafts, canRead)
	dg.POST("", api.startDraft, canWrite)
	dg.DELETE("/:id", api.discardDraft, canWrite)
	dg.POST("/:id/publish", api.publishDraft, canWrite)
	dg.POST("/:id/lessons", api.createLesson, canWrite)
}

// Handlers

func (api *scheduleApi) week(ctx echo.Context) error {
	var query lesson.WeekQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to WeekQuery")
	}
	if err := query.Validate(api.validate); err != nil {
		return err
	}
	query.WeekStart = query.WeekStart.Monday()

	week, err := api.svc.ResolveWeek(ctx.Request().Context(), query)
	if err != nil {
		return errors.Wrap(err, "resolving week")
	}
	return ctx.JSON(http.StatusOK, week)
}

func (api *scheduleApi) groups(ctx echo.Context) error {
	groups, err := api.catalogSvc.ListGroups(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing groups")
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *scheduleApi) formOptions(ctx echo.Context) error {
	opts, err := api.catalogSvc.FormOptions(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "loading form options")
	}
	return ctx.JSON(http.StatusOK, opts)
}

func (api *scheduleApi) drafts(ctx echo.Context) error {
	drafts, err := api.svc.ListDrafts(ctx.Request().Context(), bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "listing drafts")
	}
	return ctx.JSON(http.StatusOK, drafts)
}

func (api *scheduleApi) startDraft(ctx echo.Context) error {
	var data lesson.NewDraft
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDraft")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	userID, err := getContextUserID(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	data.CreatedBy = &userID
	data.WeekStart = data.WeekStart.Monday()

	batch, err := api.svc.StartDraft(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "starting draft")
	}
	return ctx.JSON(http.StatusCreated, DraftResponse{BatchID: batch.ID, Batch: batch})
}

func (api *scheduleApi) discardDraft(ctx echo.Context) error {
	id, err := batchIDParam(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DiscardDraft(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "discarding draft")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *scheduleApi) publishDraft(ctx echo.Context) error {
	id, err := batchIDParam(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.PublishDraft(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "publishing draft")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *scheduleApi) createLesson(ctx echo.Context) error {
	id, err := batchIDParam(ctx)
	if err != nil {
		return err
	}

	var data lesson.NewDraftLesson
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDraftLesson")
	}
	data.BatchID = id
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	created, err := api.svc.CreateDraftLesson(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating draft lesson")
	}
	return ctx.JSON(http.StatusCreated, created)
}

type DraftResponse struct {
	BatchID int `json:"batch_id"`
	lesson.Batch
}
