package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/arkibo/backend/core"
	"github.com/arkibo/backend/core/activity"
	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/forum"
	"github.com/arkibo/backend/core/notification"
	"github.com/arkibo/backend/core/points"
	"github.com/arkibo/backend/core/post"
	"github.com/arkibo/backend/core/user"
)

type (
	Options struct {
		Addr           string
		DisableReqLogs bool

		Conf   *core.Config
		Logger core.Logger
		Broker *feed.Broker

		UserSvc     user.Service
		PostSvc     post.Service
		ForumSvc    forum.Service
		ActivitySvc activity.Service
		NotifSvc    notification.Service
		Ledger      points.Ledger
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:     opts,
		app:      echo.New(),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf
	appJWTConfig.SigningKey = []byte(conf.SecretKey)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerUserAPI(v1, jwt, conf, s.opts.UserSvc, s.opts.Ledger)
	registerPostAPI(v1, jwt, s.opts.PostSvc, s.opts.UserSvc)
	registerForumAPI(v1, jwt, s.opts.ForumSvc, s.opts.UserSvc)
	registerActivityAPI(v1, jwt, s.opts.ActivitySvc, s.opts.UserSvc)
	registerNotificationAPI(v1, jwt, s.opts.NotifSvc)
	registerFeedAPI(v1, jwt, s.opts)
}

func (s *server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Start(s.opts.Addr) }()

	select {
	case err := <-errCh:
		s.app.Logger.Fatal(err)
	case sig := <-s.shutdown:
		s.opts.Logger.Info("shutting down", map[string]interface{}{"signal": sig})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Stop(ctx); err != nil {
			s.app.Logger.Fatal(err)
		}
	}
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Arkibo API!")
}
