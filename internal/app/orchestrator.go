package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"copy-trader/internal/config"
	"copy-trader/internal/exchange"
	"copy-trader/internal/execution"
	"copy-trader/internal/instrument"
	"copy-trader/internal/limiter"
	"copy-trader/internal/mirror"
	"copy-trader/internal/monitor"
	"copy-trader/internal/rebalance"
	"copy-trader/internal/signal"
	"copy-trader/internal/sizing"
	"copy-trader/internal/store"
	"copy-trader/internal/trade"
)

// snapshotter 抽象决策上下文的拉取，方便测试替换。
type snapshotter interface {
	GetSnapshot(ctx context.Context) (exchange.Snapshot, error)
}

// signalFeed 抽象信号源。
type signalFeed interface {
	Provider() string
	Poll(ctx context.Context) ([]signal.Event, error)
	Positions(ctx context.Context) ([]exchange.Position, error)
}

type orchestrator struct {
	snapshots  snapshotter
	source     signalFeed
	decider    *mirror.Decider
	limiter    *limiter.Limiter
	rebalancer *rebalance.Engine
	executor   execution.Submitter
	monitor    *monitor.Service
	logger     *zap.Logger

	pollInterval time.Duration
	lastPoll     time.Time
}

func (o *orchestrator) Monitor() *monitor.Service {
	return o.monitor
}

func (o *orchestrator) Limiter() *limiter.Limiter {
	return o.limiter
}

func newOrchestrator(cfg *config.Config, logger *zap.Logger, store *store.Store) (*orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := exchange.NewClient(cfg.Exchange, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化交易所客户端失败: %w", err)
	}

	source, err := signal.NewSource(client, cfg.Signal.ProviderAddress, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化信号源失败: %w", err)
	}

	sizingEngine, err := sizing.NewEngine(cfg.Sizing)
	if err != nil {
		return nil, fmt.Errorf("初始化仓位计算失败: %w", err)
	}

	monitorSvc, err := monitor.NewService(store, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化监控服务失败: %w", err)
	}

	logger.Info("仓位计算引擎就绪", zap.String("method", sizingEngine.Method()))

	var executor execution.Submitter
	if cfg.Execution.Simulation {
		logger.Info("执行器处于模拟模式")
		executor = execution.NewSimulatedExecutor(logger)
	} else {
		executor = execution.NewExecutor(client.Raw(), execution.Options{Slippage: cfg.Execution.Slippage}, logger)
	}

	pollInterval := cfg.Signal.PollInterval
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}

	return &orchestrator{
		snapshots:    exchange.NewSnapshotService(client, logger),
		source:       source,
		decider:      mirror.NewDecider(sizingEngine, logger),
		limiter:      limiter.New(cfg.Limiter, logger),
		rebalancer:   rebalance.NewEngine(logger),
		executor:     executor,
		monitor:      monitorSvc,
		logger:       logger,
		pollInterval: pollInterval,
	}, nil
}

// Tick 执行一轮信号轮询。未到轮询间隔时直接返回。
func (o *orchestrator) Tick(ctx context.Context) error {
	now := time.Now().UTC()
	if !o.lastPoll.IsZero() && now.Sub(o.lastPoll) < o.pollInterval {
		return nil
	}
	o.lastPoll = now

	events, err := o.source.Poll(ctx)
	if err != nil {
		o.monitor.RecordError(ctx, "轮询信号源失败", err, map[string]interface{}{"provider": o.source.Provider()})
		return err
	}
	if len(events) == 0 {
		return nil
	}

	for _, ev := range events {
		o.monitor.RecordSignal(ctx, o.source.Provider(), ev)
		o.handleEvent(ctx, ev)
	}

	return nil
}

// handleEvent 处理单个信号事件。账户与仓位快照每个决策单独拉取，
// 不跨决策复用，同一轮内前一笔成交立刻反映到下一笔的计算中。
func (o *orchestrator) handleEvent(ctx context.Context, ev signal.Event) {
	snapshot, err := o.snapshots.GetSnapshot(ctx)
	if err != nil {
		o.monitor.RecordError(ctx, "拉取账户快照失败", err, map[string]interface{}{"coin": ev.Coin})
		o.logger.Warn("拉取账户快照失败，跳过信号", zap.String("coin", ev.Coin), zap.Error(err))
		return
	}
	resolver := instrument.NewResolver(snapshot.Universe)

	price, ok := snapshot.MidPrices[ev.Coin]
	if !ok || price <= 0 {
		o.monitor.RecordError(ctx, "缺少行情价格", nil, map[string]interface{}{"coin": ev.Coin})
		o.logger.Warn("缺少行情价格，跳过信号", zap.String("coin", ev.Coin))
		return
	}

	result := o.decider.Decide(ev.Coin, ev.Size, ev.Action, snapshot.PositionFor(ev.Coin), price, snapshot.Account)
	if result.Err != nil {
		o.monitor.RecordError(ctx, "跟单决策失败", result.Err, map[string]interface{}{"coin": ev.Coin, "action": string(ev.Action)})
		o.logger.Warn("跟单决策失败", zap.String("coin", ev.Coin), zap.Error(result.Err))
		return
	}
	if result.Skipped {
		o.logger.Info("信号被跳过",
			zap.String("coin", ev.Coin),
			zap.String("action", string(ev.Action)),
			zap.String("reason", string(result.Reason)),
		)
		return
	}

	decision := *result.Decision
	decision.Quantity = resolver.RoundSize(decision.Coin, decision.Quantity)
	if decision.Quantity <= 0 {
		o.logger.Info("数量取整后为零，跳过", zap.String("coin", decision.Coin))
		return
	}

	o.execute(ctx, decision, price, snapshot.Account.AccountValue)
}

// execute 依次完成风控放行、下单与记账。
func (o *orchestrator) execute(ctx context.Context, decision trade.Decision, price, accountValue float64) {
	tradeValue := decision.Quantity * price

	verdict := o.limiter.ShouldAllow(decision.Coin, tradeValue, accountValue)
	if !verdict.Allowed {
		o.monitor.RecordLimiterBlock(ctx, decision.Coin, tradeValue, verdict)
		return
	}

	o.monitor.RecordDecision(ctx, decision, price)

	outcome := o.executor.SubmitMarketOrder(ctx, decision, price)
	o.monitor.RecordExecution(ctx, decision, outcome)

	if outcome.Status != trade.StatusFilled {
		o.logger.Warn("订单未成交",
			zap.String("coin", decision.Coin),
			zap.String("status", string(outcome.Status)),
			zap.String("reason", outcome.Reason),
			zap.Error(outcome.Err),
		)
		return
	}

	// 平仓同样计入冷却与频率，只清除敞口累计，防止平仓后立即重开绕过冷却。
	o.limiter.RecordTrade(decision.Coin, tradeValue)
	if decision.Action == trade.ActionClose {
		o.limiter.ResetPosition(decision.Coin)
	}
}

// SyncPositions 为信号源已有而本账户缺失的币种按最小订单价值建仓。
func (o *orchestrator) SyncPositions(ctx context.Context) error {
	providerPositions, err := o.source.Positions(ctx)
	if err != nil {
		return err
	}
	if len(providerPositions) == 0 {
		o.logger.Info("信号源当前无持仓，无需对齐")
		return nil
	}

	snapshot, err := o.snapshots.GetSnapshot(ctx)
	if err != nil {
		return err
	}
	resolver := instrument.NewResolver(snapshot.Universe)

	var planned []trade.Decision
	var requiredValue float64

	for _, pos := range providerPositions {
		if pos.SignedSize == 0 {
			continue
		}
		if existing := snapshot.PositionFor(pos.Coin); existing != nil && existing.SignedSize != 0 {
			o.logger.Info("已持有仓位，跳过",
				zap.String("coin", pos.Coin),
				zap.Float64("size", existing.SignedSize),
				zap.Float64("notional", existing.NotionalValue()),
			)
			continue
		}

		price, ok := snapshot.MidPrices[pos.Coin]
		if !ok || price <= 0 {
			o.logger.Warn("缺少行情价格，跳过对齐", zap.String("coin", pos.Coin))
			continue
		}

		plan := o.rebalancer.Plan(pos.Coin, trade.MinOrderValue, price, pos.IsLong(), nil)
		o.monitor.RecordRebalance(ctx, plan, pos)
		if plan.Skipped {
			continue
		}

		for _, decision := range plan.Decisions {
			decision.Quantity = resolver.RoundSize(decision.Coin, decision.Quantity)
			if decision.Quantity <= 0 {
				continue
			}
			planned = append(planned, decision)
			requiredValue += decision.Quantity * price
		}
	}

	if len(planned) == 0 {
		o.logger.Info("所有仓位已对齐")
		return nil
	}
	if requiredValue > snapshot.Account.AccountValue {
		return fmt.Errorf("对齐所需资金 %.2f 超过账户价值 %.2f", requiredValue, snapshot.Account.AccountValue)
	}

	o.logger.Info("开始对齐仓位",
		zap.Int("trades", len(planned)),
		zap.Float64("required_value", requiredValue),
	)

	for _, decision := range planned {
		price := snapshot.MidPrices[decision.Coin]
		o.execute(ctx, decision, price, snapshot.Account.AccountValue)
	}

	return nil
}
