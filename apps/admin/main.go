package main

import (
	"log"
	"os"

	"github.com/trezcool/tathmini/apps/api/di"
	"github.com/trezcool/tathmini/core"
	"github.com/trezcool/tathmini/core/cache"
	"github.com/trezcool/tathmini/core/dashboard"
	sqlxdb "github.com/trezcool/tathmini/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	var code int
	err := di.New().Invoke(func(conf *core.Config, store core.DocumentStore, c *cache.Cache, cacheStore cache.Store, dash *dashboard.Dashboard) {
		defer closeAll(store, cacheStore)

		cli := commandLine{
			conf:  conf,
			store: store,
			cache: c,
			dash:  dash,
			out:   os.Stdout,
			outFd: int(os.Stdout.Fd()),
		}
		if s, ok := store.(*sqlxdb.DocumentStore); ok {
			cli.db = s.DB()
		}

		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				logger.Printf("\nerror: %s\n", err)
			}
			code = 1
		}
	})
	errAndDie(err)
	os.Exit(code)
}

func closeAll(stores ...interface{}) {
	for _, s := range stores {
		if closer, ok := s.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Printf("close: %v", err)
			}
		}
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
