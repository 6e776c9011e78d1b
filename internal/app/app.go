package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"copy-trader/internal/config"
	"copy-trader/internal/store"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 启动主循环，按调度间隔轮询信号源并执行跟单。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("跟单系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("exchange", a.cfg.Exchange.Name),
		zap.String("provider", a.cfg.Signal.ProviderAddress),
		zap.String("sizing_method", a.cfg.Sizing.Method),
		zap.Bool("simulation", a.cfg.Execution.Simulation),
	)

	orch, err := newOrchestrator(a.cfg, a.logger, a.store)
	if err != nil {
		return err
	}

	if a.cfg.Monitor.Enabled {
		if err := startMonitorServer(ctx, orch.Monitor(), orch.Limiter(), a.cfg.Monitor.Port, a.logger); err != nil {
			return err
		}
	}

	loopInterval := a.cfg.Scheduler.LoopInterval
	if loopInterval <= 0 {
		loopInterval = 15 * time.Second
	}

	if err = orch.Tick(ctx); err != nil {
		a.logger.Error("首次轮询失败", zap.Error(err))
	}

	ticker := time.NewTicker(loopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("系统异常退出: %w", err)
			}
			a.logger.Info("系统收到退出信号，正在停止")
			return nil
		case <-ticker.C:
			if err = orch.Tick(ctx); err != nil {
				a.logger.Error("轮询执行失败", zap.Error(err))
			}
		}
	}
}

// SyncPositions 一次性对齐模式：为信号源已有而本账户缺失的仓位
// 按最小订单价值建仓,保证后续平仓信号能够被跟上。
func (a *App) SyncPositions(ctx context.Context) error {
	orch, err := newOrchestrator(a.cfg, a.logger, a.store)
	if err != nil {
		return err
	}
	return orch.SyncPositions(ctx)
}
