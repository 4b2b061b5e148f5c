package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/arkibo/backend/core"
	"github.com/arkibo/backend/core/points"
	"github.com/arkibo/backend/core/user"
)

// achieversLimit is the default leaderboard size.
const achieversLimit = 10

type userApi struct {
	conf   *core.Config
	svc    user.Service
	ledger points.Ledger
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, conf *core.Config, svc user.Service, ledger points.Ledger) {
	api := userApi{conf: conf, svc: svc, ledger: ledger}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/register", api.register)
	ug.POST("/login", api.login)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.PUT("/me", api.updateMe)
	ag.POST("/me/agree-guidelines", api.agreeGuidelines)
	ag.GET("/me/points", api.pointsHistory)
	ag.GET("/achievers", api.achievers)

	// admin endpoints
	ag.GET("/pending", api.pending, adminMiddleware())
	ag.POST("/:id/approve", api.approve, adminMiddleware())
	ag.DELETE("/:id", api.deny, adminMiddleware())
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), api.conf, data.Email, data.Password, api.svc)
	if err != nil {
		return err
	}
	if !data.Remember {
		claims.ExpiresAt = time.Now().Add(api.conf.Server.JWTSessionExpirationDelta).Unix()
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) updateMe(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err = data.Validate(usr); err != nil {
		return err
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) agreeGuidelines(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	usr, err = api.svc.AgreeGuidelines(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "agreeing to guidelines")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) pointsHistory(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	entries, err := api.ledger.History(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying points history")
	}
	return ctx.JSON(http.StatusOK, entries)
}

// achievers is the star points leaderboard: approved students, top N by points.
func (api *userApi) achievers(ctx echo.Context) error {
	limit := achieversLimit
	if raw := ctx.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	approved := true
	users, err := api.svc.Filter(ctx.Request().Context(), user.QueryFilter{
		Role:          user.RoleStudent,
		Approved:      &approved,
		OrderByPoints: true,
		Limit:         limit,
	})
	if err != nil {
		return errors.Wrap(err, "querying achievers")
	}
	return ctx.JSON(http.StatusOK, users)
}

// pending lists every account awaiting verification, teachers included.
func (api *userApi) pending(ctx echo.Context) error {
	approved := false
	users, err := api.svc.Filter(ctx.Request().Context(), user.QueryFilter{Approved: &approved})
	if err != nil {
		return errors.Wrap(err, "querying pending users")
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) approve(ctx echo.Context) error {
	usr, err := api.svc.Approve(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) deny(ctx echo.Context) error {
	if err := api.svc.Deny(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
