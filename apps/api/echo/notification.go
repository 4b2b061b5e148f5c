package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/arkibo/backend/core/notification"
)

type notificationApi struct {
	svc notification.Service
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc notification.Service) {
	api := notificationApi{svc: svc}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query)
	ng.POST("/:id/read", api.markRead)
	ng.DELETE("/:id", api.dismiss)
}

// Handlers

func (api *notificationApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	notifs, err := api.svc.ListFor(ctx.Request().Context(), claims.Email)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	n, err := api.ownedNotification(ctx)
	if err != nil {
		return err
	}
	n, err = api.svc.MarkRead(ctx.Request().Context(), n.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *notificationApi) dismiss(ctx echo.Context) error {
	n, err := api.ownedNotification(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Dismiss(ctx.Request().Context(), n.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ownedNotification loads the notification and refuses other users' ones.
func (api *notificationApi) ownedNotification(ctx echo.Context) (notification.Notification, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return notification.Notification{}, err
	}
	n, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return notification.Notification{}, err
	}
	if n.Recipient != claims.Email {
		return notification.Notification{}, errHTTPForbidden
	}
	return n, nil
}
