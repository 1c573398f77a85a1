package app

import (
	"errors"

	"github.com/rentflow/internal/config"
	"github.com/rentflow/internal/logger"
	"github.com/rentflow/internal/provider"
	"github.com/rentflow/internal/router"
	"github.com/rentflow/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	container := provider.NewContainer(cfg)

	var services []Service

	// 初始化 HTTP 服务
	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		services = append(services, NewHTTPService(addr, engine))
	}

	// 初始化 Worker 与对账调度
	if mode == ModeAll || mode == ModeWorker {
		if cfg.Queue.Enabled {
			workerService, err := worker.NewService(&cfg.Queue, worker.NewConsumer(container))
			if err != nil {
				return nil, err
			}
			services = append(services, workerService)
		} else {
			logger.Warnw("app_worker_skipped", "reason", "queue_disabled")
		}
		reconciler, err := worker.NewReconciler(cfg.Payment.ReconcileSchedule, container.ReconcileService)
		if err != nil {
			return nil, err
		}
		services = append(services, reconciler)
	}

	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}

	return NewRunner(services...), nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start",
		"addr", addr,
		"mode", opts.Mode,
		"payment_environment", opts.Config.Payment.Environment,
	)
	return RunWithOptions(runner, opts)
}
