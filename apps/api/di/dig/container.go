package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/ratiba/apps/api/echo"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/catalog"
	"github.com/trezcool/ratiba/core/lesson"
	"github.com/trezcool/ratiba/core/rbac"
	cachesvc "github.com/trezcool/ratiba/services/cache"
	logsvc "github.com/trezcool/ratiba/services/logger"
	"github.com/trezcool/ratiba/storage/database"
	inmemdb "github.com/trezcool/ratiba/storage/database/inmem"
	boiledrepos "github.com/trezcool/ratiba/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/ratiba/storage/database/sqlx"
)

// EngineInMemory keeps all data in process memory; nothing survives a restart.
const EngineInMemory = "inmem"

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// DBCloser releases the database connection, if any.
	DBCloser func() error

	storesResult struct {
		dig.Out
		Lessons lesson.Store
		Catalog catalog.Repository
		RBAC    rbac.Store
		Closer  DBCloser
	}

	serverParams struct {
		dig.In
		Conf       *core.Config
		Logger     core.Logger
		LessonSvc  *lesson.Service
		CatalogSvc *catalog.Service
		RBACSvc    *rbac.Service
		Validate   *validator.Validate
		Translator ut.Translator
	}
)

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

func newStores(conf *core.Config, loggerParam DBLoggerParam) storesResult {
	if conf.Database.Engine == EngineInMemory {
		loggerParam.Logger.Warn("using the in-memory database")
		db := inmemdb.Open()
		return storesResult{
			Lessons: inmemdb.NewLessonStore(db),
			Catalog: inmemdb.NewCatalogRepository(db),
			RBAC:    inmemdb.NewRBACStore(db),
			Closer:  func() error { return nil },
		}
	}

	db, err := database.SetUp(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	dbx := database.OpenX(db)
	return storesResult{
		Lessons: sqlxrepos.NewLessonStore(dbx),
		Catalog: sqlxrepos.NewCatalogRepository(dbx),
		RBAC:    boiledrepos.NewRBACStore(db),
		Closer:  db.Close,
	}
}

// newWeekCache returns nil, meaning no cache, unless a Redis server is configured and reachable.
func newWeekCache(conf *core.Config, logger core.Logger) lesson.WeekCache {
	if conf.Cache.RedisAddr == "" {
		return nil
	}
	client, err := cachesvc.NewClient(context.Background(), conf)
	if err != nil {
		logger.Error(fmt.Sprintf("week cache disabled: %v", err), err)
		return nil
	}
	return cachesvc.NewWeekCache(client, conf)
}

func newLessonService(store lesson.Store, logger core.Logger, conf *core.Config, cache lesson.WeekCache) (*lesson.Service, error) {
	policy, err := lesson.ParseConflictPolicy(conf.Schedule.ConflictPolicy)
	if err != nil {
		return nil, errors.Wrap(err, "parsing schedule.conflictPolicy")
	}
	return lesson.NewService(store, logger, policy, cache), nil
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		LessonSvc:  p.LessonSvc,
		CatalogSvc: p.CatalogSvc,
		RBACSvc:    p.RBACSvc,
		Validate:   p.Validate,
		Translator: p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStores))
	must(c.Provide(newWeekCache))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newLessonService))
	must(c.Provide(catalog.NewService))
	must(c.Provide(rbac.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
