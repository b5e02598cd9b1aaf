package scheduler

import (
	"context"
	"fmt"

	"pipeline_backend/internal/pipeline/reactivation"
	"pipeline_backend/platform/config"
	"pipeline_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	sweeper   *reactivation.Service
	log       *logger.Logger
}

// NewWorker builds the asynq server that executes scheduled sweeps, plus the
// in-process scheduler that enqueues the daily sweep task on the configured
// cron spec.
func NewWorker(cfg config.SchedulerConfig, sweeper *reactivation.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	periodic := asynq.NewScheduler(opt, nil)
	sweepTask, err := NewReactivationSweepTask(ReactivationSweepPayload{})
	if err != nil {
		return nil, err
	}
	if _, err := periodic.Register(cfg.GetSweepCronSpec(), sweepTask, asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register sweep schedule: %w", err)
	}

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		scheduler: periodic,
		mux:       mux,
		sweeper:   sweeper,
		log:       log,
	}

	mux.HandleFunc(TaskReactivationSweep, w.handleReactivationSweep)

	return w, nil
}

func (w *Worker) handleReactivationSweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseReactivationSweepPayload(task)
	if err != nil {
		return err
	}
	if !payload.RequestedAt.IsZero() {
		w.log.Info("running requested reactivation sweep", "requestedAt", payload.RequestedAt)
	}

	result, err := w.sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	// Per-lead failures are already logged in the sweep summary; the task
	// succeeds so asynq does not redo the leads that worked.
	_ = result
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.scheduler.Shutdown()
		w.server.Shutdown()
	}()

	go func() {
		if err := w.scheduler.Run(); err != nil {
			w.log.Error("sweep scheduler stopped", "error", err)
		}
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
