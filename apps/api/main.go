package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/robfig/cron/v3"

	"github.com/arkibo/backend/apps/api/echo"
	"github.com/arkibo/backend/core"
	"github.com/arkibo/backend/core/activity"
	"github.com/arkibo/backend/core/feed"
	"github.com/arkibo/backend/core/forum"
	"github.com/arkibo/backend/core/notification"
	"github.com/arkibo/backend/core/points"
	"github.com/arkibo/backend/core/post"
	"github.com/arkibo/backend/core/user"
	"github.com/arkibo/backend/services/cache"
	"github.com/arkibo/backend/services/email"
	"github.com/arkibo/backend/services/logger"
	"github.com/arkibo/backend/storage/database"
	"github.com/arkibo/backend/storage/database/sqlxrepos"
)

// pendingApprovalsSpec mails admins the verification queue digest every day.
const pendingApprovalsSpec = "0 7 * * *"

func main() {
	conf := core.NewConfig(core.Getwd())

	var appLogger core.Logger
	if conf.Debug {
		appLogger = logsvc.NewLogrusLogger(conf)
	} else {
		std := log.New(os.Stdout, fmt.Sprintf("%s API : ", conf.AppName), log.LstdFlags|log.Lshortfile)
		appLogger = logsvc.NewRollbarLogger(std, conf)
	}

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(database.Migrate(db.DB, conf))

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, appLogger)
	}

	var profileCache user.ProfileCache
	if conf.Redis.Addr != "" {
		profileCache, err = cachesvc.NewRedisCache(conf)
		errAndDie(err)
	} else {
		profileCache = cachesvc.NewInmemCache()
	}

	bus := feed.NewBroker(appLogger)

	usrRepo := sqlxrepos.NewUserRepository(db, bus)
	usrSvc := user.NewService(usrRepo, sqlxrepos.NewConfigRepository(db), profileCache, mailSvc, conf, appLogger)
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db, bus), usrSvc, mailSvc, conf, appLogger)
	ledger := points.NewLedger(sqlxrepos.NewPointsRepository(db, bus, usrRepo), usrSvc, appLogger)
	postSvc := post.NewService(sqlxrepos.NewPostRepository(db, bus))
	forumSvc := forum.NewService(sqlxrepos.NewForumRepository(db, bus))
	activitySvc := activity.NewService(sqlxrepos.NewActivityRepository(db, bus), ledger, notifSvc, appLogger)

	// scheduled jobs
	sched := cron.New()
	if _, err = sched.AddFunc(pendingApprovalsSpec, func() {
		if err := notifSvc.NotifyPendingApprovals(context.Background()); err != nil {
			appLogger.Error("pending approvals digest failed", err)
		}
	}); err != nil {
		errAndDie(err)
	}
	sched.Start()
	defer sched.Stop()

	// start API server
	app := echoapi.NewServer(&echoapi.Options{
		Addr:        conf.Server.Addr,
		Conf:        conf,
		Logger:      appLogger,
		Broker:      bus,
		UserSvc:     usrSvc,
		PostSvc:     postSvc,
		ForumSvc:    forumSvc,
		ActivitySvc: activitySvc,
		NotifSvc:    notifSvc,
		Ledger:      ledger,
	})
	app.Start()
}

func errAndDie(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
