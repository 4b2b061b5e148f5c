package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/arkibo/backend/core/activity"
	"github.com/arkibo/backend/core/user"
)

type activityApi struct {
	svc     activity.Service
	userSvc user.Service
}

func registerActivityAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc activity.Service, userSvc user.Service) {
	api := activityApi{svc: svc, userSvc: userSvc}

	ag := g.Group("/activities", jwt)
	ag.GET("", api.query)
	ag.POST("", api.create, staffMiddleware())
	ag.GET("/:id", api.retrieve)
	ag.DELETE("/:id", api.destroy, staffMiddleware())

	ag.POST("/:id/submissions", api.submit)
	ag.GET("/:id/submissions", api.querySubmissions, staffMiddleware())
	ag.GET("/:id/submissions/me", api.mySubmission)
	ag.POST("/:id/submissions/:sid/grade", api.grade, staffMiddleware())
}

// Handlers

func (api *activityApi) query(ctx echo.Context) error {
	c := ctx.Request().Context()

	// teachers see only their own activities when asked
	if ctx.QueryParam("mine") != "" {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		acts, err := api.svc.TeacherActivitiesQuery(claims.Email).Load(c)
		if err != nil {
			return errors.Wrap(err, "querying own activities")
		}
		return ctx.JSON(http.StatusOK, acts)
	}

	acts, err := api.svc.ActivitiesQuery().Load(c)
	if err != nil {
		return errors.Wrap(err, "querying activities")
	}
	return ctx.JSON(http.StatusOK, acts)
}

func (api *activityApi) create(ctx echo.Context) error {
	var data activity.NewActivity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewActivity")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	act, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, act)
}

func (api *activityApi) retrieve(ctx echo.Context) error {
	act, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, act)
}

func (api *activityApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *activityApi) submit(ctx echo.Context) error {
	var data activity.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	sub, err := api.svc.Submit(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *activityApi) querySubmissions(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	subs, err := api.svc.ListSubmissions(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *activityApi) mySubmission(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	sub, err := api.svc.GetSubmission(ctx.Request().Context(), ctx.Param("id"), usr.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *activityApi) grade(ctx echo.Context) error {
	var data activity.NewGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	sub, err := api.svc.GradeSubmission(ctx.Request().Context(), usr, ctx.Param("id"), ctx.Param("sid"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}
