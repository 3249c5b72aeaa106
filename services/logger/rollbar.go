package logsvc

import (
	"strconv"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/user"
)

// RollbarLogger writes structured logs through zap and reports warnings & errors to Rollbar.
type RollbarLogger struct {
	zl *zap.SugaredLogger
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewZap builds the zap logger for the environment: development config in debug mode, production otherwise.
func NewZap(conf *core.Config, name string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if conf.Debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return zl.Named(name), nil
}

func NewRollbarLogger(zl *zap.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{zl: zl.Sugar()}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

func (l RollbarLogger) Sync() {
	_ = l.zl.Sync()
}

// With returns a logger that adds the key/value pairs to every entry.
func (l RollbarLogger) With(keysAndValues ...interface{}) *RollbarLogger {
	return &RollbarLogger{zl: l.zl.With(keysAndValues...)}
}

// expected args: key/value pairs, error, user.User
func (l RollbarLogger) prepare(args []interface{}) (kvs []interface{}, extras map[string]interface{}, err error, usr *user.User) {
	kvs = make([]interface{}, 0, len(args)+2)
	extras = make(map[string]interface{}, len(args)/2)
	for i := 0; i < len(args); i++ {
		switch arg := args[i].(type) {
		case user.User:
			if usr == nil { // only set one User
				u := arg
				usr = &u
				kvs = append(kvs, "user_id", arg.ID)
			}
		case error:
			if err == nil {
				err = arg
			}
			kvs = append(kvs, "error", arg)
		case string:
			if i+1 < len(args) {
				kvs = append(kvs, arg, args[i+1])
				extras[arg] = args[i+1]
				i++
			} else {
				kvs = append(kvs, "arg", arg)
			}
		default:
			kvs = append(kvs, "arg", arg)
		}
	}
	return kvs, extras, err, usr
}

func (l RollbarLogger) report(level string, msg string, args []interface{}) []interface{} {
	kvs, extras, err, usr := l.prepare(args)
	if level == "" {
		return kvs
	}

	if usr != nil {
		rollbar.SetPerson(strconv.FormatInt(usr.ID, 10), usr.Name, usr.Email)
	} else {
		rollbar.ClearPerson()
	}
	if err != nil {
		rollbar.ErrorWithExtras(level, err, extras)
	} else {
		rollbar.MessageWithExtras(level, msg, extras)
	}
	return kvs
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	l.zl.Debugw(msg, l.report("", msg, args)...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.zl.Infow(msg, l.report("", msg, args)...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.zl.Warnw(msg, l.report(rollbar.WARN, msg, args)...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.zl.Errorw(msg, l.report(rollbar.ERR, msg, args)...)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	kvs := l.report(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.zl.Fatalw(msg, kvs...)
}
