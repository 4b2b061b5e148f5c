package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/arkibo/backend/core/post"
	"github.com/arkibo/backend/core/user"
)

type postApi struct {
	svc     post.Service
	userSvc user.Service
}

func registerPostAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc post.Service, userSvc user.Service) {
	api := postApi{svc: svc, userSvc: userSvc}

	ag := g.Group("/announcements", jwt)
	ag.GET("", api.query)
	ag.POST("", api.create, staffMiddleware())
	ag.GET("/:id", api.retrieve)
	ag.DELETE("/:id", api.destroy)

	ag.GET("/:id/comments", api.queryComments)
	ag.POST("/:id/comments", api.comment)
	ag.DELETE("/:id/comments/:cid", api.destroyComment)

	ag.GET("/:id/comments/:cid/replies", api.queryReplies)
	ag.POST("/:id/comments/:cid/replies", api.reply)
	ag.DELETE("/:id/comments/:cid/replies/:rid", api.destroyReply)

	ag.GET("/:id/reactions", api.reactionCounts)
	ag.POST("/:id/reactions", api.toggleReaction)
}

// Handlers

func (api *postApi) query(ctx echo.Context) error {
	anns, err := api.svc.AnnouncementsQuery().Load(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	return ctx.JSON(http.StatusOK, anns)
}

func (api *postApi) create(ctx echo.Context) error {
	var data post.NewAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	ann, err := api.svc.Publish(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ann)
}

func (api *postApi) retrieve(ctx echo.Context) error {
	ann, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ann)
}

func (api *postApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *postApi) queryComments(ctx echo.Context) error {
	comments, err := api.svc.CommentsQuery(ctx.Param("id")).Load(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying comments")
	}
	return ctx.JSON(http.StatusOK, comments)
}

func (api *postApi) comment(ctx echo.Context) error {
	var data post.NewComment
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

func (api *postApi) destroyComment(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteComment(ctx.Request().Context(), usr, ctx.Param("id"), ctx.Param("cid")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *postApi) queryReplies(ctx echo.Context) error {
	replies, err := api.svc.RepliesQuery(ctx.Param("cid")).Load(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying replies")
	}
	return ctx.JSON(http.StatusOK, replies)
}

func (api *postApi) reply(ctx echo.Context) error {
	var data post.NewComment
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
	r, err := api.svc.Reply(ctx.Request().Context(), usr, ctx.Param("cid"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *postApi) destroyReply(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteReply(ctx.Request().Context(), usr, ctx.Param("cid"), ctx.Param("rid")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *postApi) reactionCounts(ctx echo.Context) error {
	counts, err := api.svc.ReactionCounts(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "counting reactions")
	}
	return ctx.JSON(http.StatusOK, counts)
}

// toggleReaction sets, replaces or removes the caller's reaction.
func (api *postApi) toggleReaction(ctx echo.Context) error {
	var data ReactionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReactionRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	if err = api.svc.ToggleReaction(ctx.Request().Context(), usr, ctx.Param("id"), data.Type); err != nil {
		return err
	}

	counts, err := api.svc.ReactionCounts(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "counting reactions")
	}
	return ctx.JSON(http.StatusOK, counts)
}
