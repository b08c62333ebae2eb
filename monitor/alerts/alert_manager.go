package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/omni/messenger-watcher/config"
	"github.com/omni/messenger-watcher/db"
	"github.com/omni/messenger-watcher/logging"
)

type AlertManager struct {
	logger logging.Logger
	jobs   map[string]*Job
}

func NewAlertManager(logger logging.Logger, db *db.DB, cfg *config.WatcherConfig) (*AlertManager, error) {
	provider := NewDBAlertsProvider(db)
	jobs := make(map[string]*Job, len(cfg.Alerts))

	for name, alertCfg := range cfg.Alerts {
		switch name {
		case "stuck_message":
			jobs[name] = &Job{
				Timeout: time.Second * 20,
				Func:    provider.FindStuckMessages,
				Metric:  NewAlertStuckMessage(cfg.ID),
			}
		case "failed_relay":
			jobs[name] = &Job{
				Timeout: time.Second * 10,
				Func:    provider.FindFailedRelays,
				Metric:  NewAlertFailedRelay(cfg.ID),
			}
		default:
			return nil, fmt.Errorf("unknown alert type %q", name)
		}
		jobs[name].Interval = alertCfg.Interval
		jobs[name].Params = &AlertJobParams{
			WatcherID: cfg.ID,
			Threshold: alertCfg.Threshold,
		}
	}

	return &AlertManager{
		logger: logger,
		jobs:   jobs,
	}, nil
}

func (m *AlertManager) Start(ctx context.Context) {
	m.logger.WithField("count", len(m.jobs)).Info("starting alert manager jobs")
	for name, job := range m.jobs {
		job.logger = m.logger.WithField("alert_job", name)
		go job.Start(ctx)
	}
}
