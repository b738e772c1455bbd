// Package di wires the API dependencies in a dig.Container.
package di

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/tathmini/apps/api/echo"
	"github.com/trezcool/tathmini/core"
	"github.com/trezcool/tathmini/core/cache"
	"github.com/trezcool/tathmini/core/classroom"
	"github.com/trezcool/tathmini/core/dashboard"
	"github.com/trezcool/tathmini/core/loader"
	"github.com/trezcool/tathmini/core/session"
	logsvc "github.com/trezcool/tathmini/services/logger"
	"github.com/trezcool/tathmini/storage/database"
	inmemdb "github.com/trezcool/tathmini/storage/database/inmem"
	sqlxdb "github.com/trezcool/tathmini/storage/database/sqlx"
	"github.com/trezcool/tathmini/storage/kv"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

// NewDocumentStore returns the configured document store, creating and migrating the database if needed.
func NewDocumentStore(conf *core.Config, loggerParam DBLoggerParam) core.DocumentStore {
	if conf.DocStore.Driver == "memory" {
		return inmemdb.Open()
	}

	setUp := func() (core.DocumentStore, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return sqlxdb.NewDocumentStore(db), nil
	}

	store, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return store
}

// NewCacheStore returns the configured persistent store of the cache.
func NewCacheStore(conf *core.Config, logger core.Logger) cache.Store {
	var (
		store cache.Store
		err   error
	)
	switch conf.Cache.Driver {
	case "sqlite":
		store, err = kv.OpenSQLite(conf.Cache.Path, conf.Cache.MaxEntries)
	case "badger":
		store, err = kv.OpenBadger(conf.Cache.Path, conf.Cache.MaxEntries)
	default:
		store = cache.NewMemoryStore(conf.Cache.MaxEntries)
	}
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening %s cache: %v", conf.Cache.Driver, err), err)
	}
	return store
}

func newCache(conf *core.Config, store cache.Store, clock clockwork.Clock, logger core.Logger) *cache.Cache {
	return cache.New(store, clock, logger, cache.OptionsFromConfig(conf.Cache))
}

func newInvalidator(dash *dashboard.Dashboard) classroom.Invalidator {
	return dash
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(NewDocumentStore))
	must(c.Provide(NewCacheStore))
	must(c.Provide(clockwork.NewRealClock))
	must(c.Provide(newCache))
	must(c.Provide(loader.New))
	must(c.Provide(dashboard.New))
	must(c.Provide(newInvalidator))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(classroom.NewService))
	must(c.Provide(session.NewStoreResolver))
	must(c.Provide(session.NewManager))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
