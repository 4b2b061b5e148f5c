package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/arkibo/backend/core/forum"
	"github.com/arkibo/backend/core/user"
)

type forumApi struct {
	svc     forum.Service
	userSvc user.Service
}

func registerForumAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc forum.Service, userSvc user.Service) {
	api := forumApi{svc: svc, userSvc: userSvc}

	fg := g.Group("/askibo", jwt)
	fg.GET("", api.query)
	fg.POST("", api.create)
	fg.GET("/:id", api.retrieve)
	fg.DELETE("/:id", api.destroy)
	fg.POST("/:id/like", api.like)
	fg.POST("/:id/dislike", api.dislike)
	fg.GET("/:id/comments", api.queryComments)
	fg.POST("/:id/comments", api.comment)
}

// Handlers

func (api *forumApi) query(ctx echo.Context) error {
	posts, err := api.svc.PostsQuery().Load(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying forum posts")
	}
	return ctx.JSON(http.StatusOK, posts)
}

func (api *forumApi) create(ctx echo.Context) error {
	var data forum.NewPost
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPost")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	p, err := api.svc.Publish(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *forumApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *forumApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *forumApi) like(ctx echo.Context) error {
	p, err := api.svc.Like(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *forumApi) dislike(ctx echo.Context) error {
	p, err := api.svc.Dislike(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *forumApi) queryComments(ctx echo.Context) error {
	comments, err := api.svc.CommentsQuery(ctx.Param("id")).Load(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying forum comments")
	}
	return ctx.JSON(http.StatusOK, comments)
}

func (api *forumApi) comment(ctx echo.Context) error {
	var data forum.NewComment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	c, err := api.svc.Comment(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, c)
}
