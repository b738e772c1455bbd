package logsvc

import (
	"io"
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/tathmini/core"
)

// RollbarLogger reports every entry to Rollbar and prints it to a standard logger.
// Args are an error, extra data or the core.Identity the entry is about.
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

// NewSilentLogger returns a logger writing to w only.
// Rollbar's client is a package global: this disables reporting for every RollbarLogger of the process.
func NewSilentLogger(w io.Writer, prefix string) *RollbarLogger {
	rollbar.SetEnabled(false)
	return &RollbarLogger{std: log.New(w, prefix, log.LstdFlags)}
}

// Enable turns Rollbar reporting on or off, process wide.
func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// identify takes the first core.Identity out of args. The others are dropped.
func identify(args []interface{}) (extras []interface{}, id *core.Identity) {
	extras = make([]interface{}, 0, len(args))
	for _, arg := range args {
		if ident, ok := arg.(core.Identity); ok {
			if id == nil {
				id = &ident
			}
			continue
		}
		extras = append(extras, arg)
	}
	return extras, id
}

func (l RollbarLogger) log(level, msg string, args []interface{}) {
	extras, id := identify(args)
	if id != nil {
		rollbar.SetPerson(id.ID, id.Name, id.Email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, append([]interface{}{msg}, extras...)...)

	l.std.Printf("[%s] %s", level, msg)
	for _, extra := range extras {
		l.std.Printf("%+v", extra)
	}
	if id != nil {
		l.std.Printf("user: %s", id.ID)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.log(rollbar.DEBUG, msg, args) }

func (l RollbarLogger) Info(msg string, args ...interface{}) { l.log(rollbar.INFO, msg, args) }

func (l RollbarLogger) Warn(msg string, args ...interface{}) { l.log(rollbar.WARN, msg, args) }

func (l RollbarLogger) Error(msg string, args ...interface{}) { l.log(rollbar.ERR, msg, args) }

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
