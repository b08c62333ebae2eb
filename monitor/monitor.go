package monitor

import (
	"context"
	"fmt"

	"github.com/omni/messenger-watcher/cache"
	"github.com/omni/messenger-watcher/config"
	"github.com/omni/messenger-watcher/db"
	"github.com/omni/messenger-watcher/logging"
	"github.com/omni/messenger-watcher/monitor/alerts"
	"github.com/omni/messenger-watcher/repository"
	"github.com/omni/messenger-watcher/watcher"
)

// Monitor runs the long-lived parts of a single watcher: the relay tracker
// and, when a database is available, its alert jobs.
type Monitor struct {
	cfg          *config.WatcherConfig
	logger       logging.Logger
	watcher      *watcher.Watcher
	tracker      *Tracker
	alertManager *alerts.AlertManager
}

// NewMonitor builds a monitor for w. dbConn may be nil, alerts are disabled then.
func NewMonitor(logger logging.Logger, dbConn *db.DB, repo *repository.Repo, relayCache cache.RelayCache, cfg *config.WatcherConfig, w *watcher.Watcher) (*Monitor, error) {
	logger.Info("initializing watcher monitor")
	m := &Monitor{
		cfg:     cfg,
		logger:  logger,
		watcher: w,
		tracker: NewTracker(logger, cfg.Tracker, w, repo, relayCache),
	}
	if dbConn != nil {
		alertManager, err := alerts.NewAlertManager(logger, dbConn, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize alert manager: %w", err)
		}
		m.alertManager = alertManager
	} else if len(cfg.Alerts) > 0 {
		logger.Warn("alerts require a postgres database, skipping alert jobs")
	}
	return m, nil
}

func (m *Monitor) Start(ctx context.Context) error {
	m.logger.Info("starting watcher monitor")
	if err := m.tracker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start tracker: %w", err)
	}
	if m.alertManager != nil {
		m.alertManager.Start(ctx)
	}
	return nil
}

func (m *Monitor) Watcher() *watcher.Watcher {
	return m.watcher
}

func (m *Monitor) Tracker() *Tracker {
	return m.tracker
}
