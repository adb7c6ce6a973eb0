// Package autodelete removes bot replies after a delay.
package autodelete

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"
	"github.com/tgdrive/filestore/internal/config"
	"github.com/tgdrive/filestore/internal/metrics"
	"go.uber.org/zap"
)

var ErrInvalidDelay = errors.New("delay must be positive")

type Deleter interface {
	DeleteMessage(ctx context.Context, peer tg.InputPeerClass, msgID int) error
}

// deletion carries everything a job needs, fixed when it is scheduled.
type deletion struct {
	peer  tg.InputPeerClass
	msgID int
	after time.Duration
}

type Scheduler struct {
	cron    gocron.Scheduler
	deleter Deleter
	timeout time.Duration
	logger  *zap.Logger
}

func New(deleter Deleter, cfg *config.AutoDeleteConfig, lg *zap.Logger) (*Scheduler, error) {
	var opts []gocron.SchedulerOption
	if cfg.MaxConcurrent > 0 {
		opts = append(opts, gocron.WithLimitConcurrentJobs(uint(cfg.MaxConcurrent), gocron.LimitModeWait))
	}
	cron, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create scheduler")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &Scheduler{
		cron:    cron,
		deleter: deleter,
		timeout: timeout,
		logger:  lg.Named("autodelete"),
	}
	cron.Start()
	return s, nil
}

// Schedule deletes msgID in peer once after has elapsed. There is no way
// to cancel a scheduled deletion.
func (s *Scheduler) Schedule(peer tg.InputPeerClass, msgID int, after time.Duration) error {
	if after <= 0 {
		return ErrInvalidDelay
	}
	d := deletion{peer: peer, msgID: msgID, after: after}
	_, err := s.cron.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(time.Now().Add(after))),
		gocron.NewTask(s.run, d),
		gocron.WithName(fmt.Sprintf("autodelete:%d", msgID)),
	)
	if err != nil {
		return errors.Wrap(err, "schedule deletion")
	}
	metrics.AutoDeletes.WithLabelValues("scheduled").Inc()
	s.logger.Debug("deletion scheduled", zap.Int("message", msgID), zap.Duration("after", after))
	return nil
}

func (s *Scheduler) run(d deletion) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.deleter.DeleteMessage(ctx, d.peer, d.msgID); err != nil {
		metrics.AutoDeletes.WithLabelValues("failed").Inc()
		s.logger.Warn("delete message failed", zap.Int("message", d.msgID), zap.Error(err))
		return
	}
	metrics.AutoDeletes.WithLabelValues("done").Inc()
	s.logger.Debug("message deleted", zap.Int("message", d.msgID), zap.Duration("after", d.after))
}

func (s *Scheduler) Shutdown() error {
	return s.cron.Shutdown()
}
