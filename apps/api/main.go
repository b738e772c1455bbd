package main

import (
	"context"
	"expvar"
	"fmt"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"go.uber.org/dig"

	"github.com/trezcool/tathmini/apps/api/di"
	echoapi "github.com/trezcool/tathmini/apps/api/echo"
	"github.com/trezcool/tathmini/core"
	"github.com/trezcool/tathmini/core/cache"
	"github.com/trezcool/tathmini/core/classroom"
	"github.com/trezcool/tathmini/core/dashboard"
)

// Params are the dependencies main runs with.
type Params struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Store      core.DocumentStore
	CacheStore cache.Store
	Validate   *validator.Validate
	Translator ut.Translator
	Dashboard  *dashboard.Dashboard
	Server     echoapi.Server
}

func main() {
	c := di.New()
	must(c.Invoke(run))
}

func run(p Params) {
	logger := p.Logger

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", p.Conf.Build))

	core.InitValidators(p.Validate, p.Translator)
	classroom.InitValidators(p.Validate, p.Translator)

	defer closeStore("document store", p.Store, logger)
	defer closeStore("cache store", p.CacheStore, logger)
	defer logger.Info("Application stopped")

	// first load; failures are retried on the next request
	if err := p.Dashboard.Refresh(context.Background(), false); err != nil {
		logger.Warn(fmt.Sprintf("initial load: %v", err), err)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(p.Conf.Build)
	expvar.NewString("env").Set(p.Conf.Env)
	expvar.Publish("dashboard", expvar.Func(func() interface{} {
		return map[string]interface{}{
			"refreshedAt": p.Dashboard.RefreshedAt(),
			"snapshot":    p.Dashboard.Snapshot().Sources,
		}
	}))

	go func() {
		if err := http.ListenAndServe(p.Conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	go func() {
		p.Server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-p.Server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-p.Server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), p.Conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := p.Server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = p.Server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func closeStore(name string, store interface{}, logger core.Logger) {
	if closer, ok := store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Error(fmt.Sprintf("failed to close %s: %v", name, err), err)
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
