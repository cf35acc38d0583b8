package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/masomo-grading/core"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, core.Session
// The session is reported as extras; its auth token is never logged.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var (
		extras  map[string]interface{}
		sessSet bool
	)
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch val := arg.(type) {
		case core.Session:
			if !sessSet { // only set one Session
				sessSet = true
				if extras == nil {
					extras = make(map[string]interface{})
				}
				extras["request_id"] = val.RequestID
				extras["anonymous"] = val.IsAnonymous()
			}
		case map[string]interface{}:
			if extras == nil {
				extras = make(map[string]interface{}, len(val))
			}
			for k, v := range val {
				extras[k] = v
			}
		default:
			newArgs = append(newArgs, arg)
		}
	}
	if extras != nil {
		newArgs = append(newArgs, extras)
	}
	return newArgs
}

func (l RollbarLogger) print(args []interface{}) {
	l.std.Println(args[0])
	for _, arg := range args[1:] {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	args = l.prepare(msg, args)
	rollbar.Debug(args...)
	l.print(args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	args = l.prepare(msg, args)
	rollbar.Info(args...)
	l.print(args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	args = l.prepare(msg, args)
	rollbar.Warning(args...)
	l.print(args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	args = l.prepare(msg, args)
	rollbar.Error(args...)
	l.print(args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	args = l.prepare(msg, args)
	rollbar.Critical(args...)
	l.print(args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
