package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/JustinTDCT/CineGate/internal/jobs"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron specs until stopped.
type Scheduler struct {
	cron   *cron.Cron
	log    logrus.FieldLogger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(log logrus.FieldLogger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:    log.WithField("component", "scheduler"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers job under spec ("@every 1h", "0 */6 * * *").
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.log.WithFields(logrus.Fields{"job": name, "spec": spec}).Info("job scheduled")
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	start := time.Now()
	if err := job(s.ctx); err != nil {
		s.log.WithError(err).WithField("job", name).Error("scheduled job failed")
		return
	}
	s.log.WithFields(logrus.Fields{"job": name, "took": time.Since(start).String()}).Debug("scheduled job done")
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// Enqueuer hands work to the task queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) (string, error)
}

// SitemapJob refreshes the sitemap in process, or through the queue when
// one is given so only one replica does the scan per tick.
func SitemapJob(r jobs.Refresher, q Enqueuer) Job {
	if q == nil {
		return r.Refresh
	}
	return func(ctx context.Context) error {
		tick := time.Now().UTC().Truncate(time.Minute).Unix()
		_, err := q.Enqueue(ctx, jobs.TaskSitemapRefresh, nil,
			asynq.Queue("low"),
			asynq.TaskID(fmt.Sprintf("%s:%d", jobs.TaskSitemapRefresh, tick)),
			asynq.MaxRetry(2),
		)
		return err
	}
}
