package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omni/messenger-watcher/cache"
	"github.com/omni/messenger-watcher/config"
	"github.com/omni/messenger-watcher/db"
	"github.com/omni/messenger-watcher/logging"
	"github.com/omni/messenger-watcher/monitor"
	"github.com/omni/messenger-watcher/presenter"
	"github.com/omni/messenger-watcher/repository"
	"github.com/omni/messenger-watcher/repository/memory"
	"github.com/omni/messenger-watcher/watcher"
)

func main() {
	logger := logging.New()

	cfg, err := config.ReadConfigFromFile("config.yml")
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var dbConn *db.DB
	var repo *repository.Repo
	if cfg.DBConfig != nil {
		dbConn, err = db.ConnectToDBAndMigrate(ctx, cfg.DBConfig)
		if err != nil {
			logger.WithError(err).Fatal("can't connect to database and apply migrations")
		}
		defer dbConn.Close()
		repo = repository.NewRepo(dbConn)
	} else {
		logger.Warn("postgres is not configured, tracked messages are kept in memory")
		repo = memory.NewRepo()
	}

	relayCache := cache.NewNop()
	if cfg.Redis != nil {
		relayCache = cache.NewRedisCache(cfg.Redis)
	}

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		err := http.ListenAndServe(":2112", nil)
		if err != nil {
			logger.WithError(err).Fatal("can't start listener for prometheus metrics")
		}
	}()

	watchers := cfg.ActiveWatchers()
	monitors := make(map[string]*monitor.Monitor, len(watchers))
	for id, watcherCfg := range watchers {
		watcherLogger := logger.WithField("watcher_id", id)
		w, err2 := watcher.NewWatcherFromConfig(logger, watcherCfg)
		if err2 != nil {
			watcherLogger.WithError(err2).Fatal("can't dial watcher endpoints")
		}
		m, err2 := monitor.NewMonitor(watcherLogger, dbConn, repo, relayCache, watcherCfg, w)
		if err2 != nil {
			watcherLogger.WithError(err2).Fatal("can't initialize watcher monitor")
		}
		monitors[id] = m
	}

	for id, m := range monitors {
		if err = m.Start(ctx); err != nil {
			logger.WithError(err).WithField("watcher_id", id).Fatal("can't start watcher monitor")
		}
	}

	if cfg.Presenter != nil {
		pr := presenter.NewPresenter(logger.WithField("service", "presenter"), cfg.Presenter, repo, relayCache, monitors)
		go func() {
			err := pr.Serve()
			if err != nil {
				logger.WithError(err).Fatal("can't serve presenter")
			}
		}()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Warn("caught termination signal, gracefully terminating")
	cancel()
	for _, m := range monitors {
		m.Tracker().Wait()
	}
}
