package worker

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rentflow/internal/logger"
	"github.com/rentflow/internal/service"

	"github.com/robfig/cron/v3"
)

const defaultReconcileSchedule = "@every 5m"

// PendingSweeper 扫描滞留的支付意图
type PendingSweeper interface {
	SweepStalePending(ctx context.Context) (service.ReconcileReport, error)
}

// Reconciler 按 cron 计划运行滞留意图对账
type Reconciler struct {
	name     string
	cron     *cron.Cron
	sweeper  PendingSweeper
	schedule string

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewReconciler 创建对账调度服务
func NewReconciler(schedule string, sweeper PendingSweeper) (*Reconciler, error) {
	if sweeper == nil {
		return nil, errors.New("reconcile sweeper is nil")
	}
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		schedule = defaultReconcileSchedule
	}
	cronLogger := cron.PrintfLogger(logger.StdLogger())
	r := &Reconciler{
		name:     "reconciler",
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		sweeper:  sweeper,
		schedule: schedule,
		ctx:      context.Background(),
	}
	if _, err := r.cron.AddFunc(schedule, r.RunOnce); err != nil {
		return nil, err
	}
	return r, nil
}

// Name 服务名称
func (r *Reconciler) Name() string {
	if r == nil || r.name == "" {
		return "reconciler"
	}
	return r.name
}

// RunOnce 执行一轮对账
func (r *Reconciler) RunOnce() {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()

	report, err := r.sweeper.SweepStalePending(ctx)
	if err != nil {
		logger.Warnw("reconcile_run_failed", "error", err)
		return
	}
	logger.Debugw("reconcile_run_done",
		"scanned", report.Scanned,
		"enqueued", report.Enqueued,
		"redriven", report.Redriven,
		"voided", report.Voided,
	)
}

// Start 启动调度并阻塞到 ctx 结束
func (r *Reconciler) Start(ctx context.Context) error {
	if r == nil || r.cron == nil {
		return errors.New("reconciler not initialized")
	}
	r.mu.Lock()
	r.ctx, r.cancel = context.WithCancel(ctx)
	runCtx := r.ctx
	r.mu.Unlock()

	logger.Infow("reconcile_scheduler_started", "schedule", r.schedule)
	r.cron.Start()
	<-runCtx.Done()
	return nil
}

// Stop 停止调度并等待执行中的任务结束
func (r *Reconciler) Stop(ctx context.Context) error {
	if r == nil || r.cron == nil {
		return nil
	}
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
