// Package logger wraps github.com/cenkalti/log to give every actor its own
// named logger instance, never a package-level global.
package logger

import (
	"github.com/cenkalti/log"
)

// Logger is the interface every actor holds a private instance of.
type Logger interface {
	Debug(args ...interface{})
	Debugln(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infoln(args ...interface{})
	Infof(format string, args ...interface{})
	Notice(args ...interface{})
	Noticeln(args ...interface{})
	Warning(args ...interface{})
	Warningln(args ...interface{})
	Warningf(format string, args ...interface{})
	Error(args ...interface{})
	Errorln(args ...interface{})
	Errorf(format string, args ...interface{})
}

// New returns a logger tagged with name, e.g. "peer <- 1.2.3.4:6881".
func New(name string) Logger {
	l := log.NewLogger(name)
	return l
}

// SetLevel sets the minimum level emitted by every logger created by New.
func SetLevel(level log.Level) {
	log.SetLevel(level)
}
