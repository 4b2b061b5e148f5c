package logsvc

import (
	"github.com/sirupsen/logrus"

	"github.com/arkibo/backend/core"
	"github.com/arkibo/backend/core/user"
)

// LogrusLogger is the local/test logger; production deployments use the
// rollbar one instead.
type LogrusLogger struct {
	log *logrus.Logger
}

var _ core.Logger = (*LogrusLogger)(nil)

func NewLogrusLogger(conf *core.Config) *LogrusLogger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if conf != nil && conf.Debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return &LogrusLogger{log: log}
}

// entry folds args into logrus fields: maps merge in, errors land on the
// "error" key, a logged-in user on "uid".
func (l LogrusLogger) entry(args []interface{}) *logrus.Entry {
	fields := make(logrus.Fields)
	for _, arg := range args {
		switch v := arg.(type) {
		case map[string]interface{}:
			for k, val := range v {
				fields[k] = val
			}
		case error:
			fields["error"] = v
		case user.User:
			fields["uid"] = v.ID
		default:
			fields["arg"] = v
		}
	}
	return l.log.WithFields(fields)
}

func (l LogrusLogger) Debug(msg string, args ...interface{}) { l.entry(args).Debug(msg) }
func (l LogrusLogger) Info(msg string, args ...interface{})  { l.entry(args).Info(msg) }
func (l LogrusLogger) Warn(msg string, args ...interface{})  { l.entry(args).Warn(msg) }
func (l LogrusLogger) Error(msg string, args ...interface{}) { l.entry(args).Error(msg) }
func (l LogrusLogger) Fatal(msg string, args ...interface{}) { l.entry(args).Fatal(msg) }
