package capture

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Reporter periodically logs acquisition throughput from Stats.
type Reporter struct {
	scheduler gocron.Scheduler
	stats     *Stats
	interval  time.Duration
	logger    logrus.FieldLogger
	last      StatsSnapshot
}

func NewReporter(stats *Stats, interval time.Duration, logger logrus.FieldLogger) (*Reporter, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create report scheduler: %w", err)
	}

	r := &Reporter{
		scheduler: scheduler,
		stats:     stats,
		interval:  interval,
		logger:    logger,
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(r.report),
		gocron.WithName("acquisition-stats"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("failed to schedule stats report: %w", err)
	}

	return r, nil
}

func (r *Reporter) Start() {
	r.scheduler.Start()
}

func (r *Reporter) Shutdown() error {
	return r.scheduler.Shutdown()
}

// report runs on the gocron worker; singleton mode keeps runs from overlapping.
func (r *Reporter) report() {
	snap := r.stats.Snapshot()
	frames := snap.Processed - r.last.Processed

	r.logger.WithFields(logrus.Fields{
		"ticks":            snap.Ticks,
		"frames":           snap.Processed,
		"empty_reads":      snap.EmptyReads,
		"failures":         snap.Failures,
		"faces":            snap.Faces,
		"smiling":          snap.Smiling,
		"fps":              float64(frames) / r.interval.Seconds(),
		"last_tick_millis": snap.LastDuration.Milliseconds(),
	}).Info("STATS: Acquisition report")

	r.last = snap
}
