package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/lesson"
	"github.com/trezcool/ratiba/core/rbac"
	cachesvc "github.com/trezcool/ratiba/services/cache"
	logsvc "github.com/trezcool/ratiba/services/logger"
	"github.com/trezcool/ratiba/storage/database"
	boiledrepos "github.com/trezcool/ratiba/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/ratiba/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(stdLogger, err)
	defer db.Close()
	errAndDie(stdLogger, database.Ping(db))

	policy, err := lesson.ParseConflictPolicy(conf.Schedule.ConflictPolicy)
	errAndDie(stdLogger, err)

	var cache lesson.WeekCache
	if conf.Cache.RedisAddr != "" {
		client, err := cachesvc.NewClient(context.Background(), conf)
		errAndDie(stdLogger, err)
		defer client.Close()
		cache = cachesvc.NewWeekCache(client, conf)
	}

	// start CLI
	cli := commandLine{
		conf:      conf,
		db:        db,
		lessonSvc: lesson.NewService(sqlxrepos.NewLessonStore(database.OpenX(db)), logger, policy, cache),
		rbacSvc:   rbac.NewService(boiledrepos.NewRBACStore(db), logger),
		out:       os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		db.Close()
		os.Exit(1)
	}
}

func errAndDie(logger *log.Logger, err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
