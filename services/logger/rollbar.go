package logsvc

import (
	"io"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/sirupsen/logrus"

	"github.com/trezcool/masomo-console/core"
)

// RollbarLogger reports to Rollbar and writes the same messages to a logrus logger.
type RollbarLogger struct {
	std *logrus.Entry
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewStdLogger returns a logrus logger writing to `out`, tagged with `component` (e.g. "api", "admin").
// Debug mode logs text at debug level; otherwise JSON at info level.
func NewStdLogger(out io.Writer, component string, debug bool) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(out)
	if debug {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger.WithField("component", component)
}

func NewRollbarLogger(std *logrus.Entry, conf *core.Config) *RollbarLogger {
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

// expected fmt: msg | error, map[string]interface{}, core.Operator
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var opSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		// set console operator
		if op, ok := arg.(core.Operator); ok {
			if !opSet { // only set one Operator
				rollbar.SetPerson(op.ID, op.Username, op.Email)
				opSet = true
			}
		} else {
			newArgs = append(newArgs, arg)
		}
	}
	if !opSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

// entry turns the args into logrus fields.
func (l RollbarLogger) entry(args []interface{}) *logrus.Entry {
	e := l.std
	for _, arg := range args {
		switch val := arg.(type) {
		case error:
			e = e.WithError(val)
		case map[string]interface{}:
			e = e.WithFields(val)
		case core.Operator:
			e = e.WithField("operator", val.Username)
		case nil:
		default:
			e = e.WithField("extra", val)
		}
	}
	return e
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.entry(args).Debug(msg)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.entry(args).Info(msg)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.entry(args).Warn(msg)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.entry(args).Error(msg)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	rollbar.Wait()
	l.entry(args).Fatal(msg)
}
