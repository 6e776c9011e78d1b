package execution

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"copy-trader/internal/trade"
)

// SimulatedExecutor 只记录本应提交的订单，不触达交易所，用于空跑模式。
type SimulatedExecutor struct {
	logger *zap.Logger
	nextID int64
}

var _ Submitter = (*SimulatedExecutor)(nil)

// NewSimulatedExecutor 创建模拟执行器。
func NewSimulatedExecutor(logger *zap.Logger) *SimulatedExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulatedExecutor{logger: logger}
}

// SubmitMarketOrder 假定订单以参考价全额成交。
func (s *SimulatedExecutor) SubmitMarketOrder(ctx context.Context, decision trade.Decision, referencePrice float64) trade.Outcome {
	if err := ctx.Err(); err != nil {
		return trade.Failed(err)
	}

	s.nextID++
	s.logger.Info("模拟下单",
		zap.String("coin", decision.Coin),
		zap.Bool("is_buy", decision.IsBuy),
		zap.Float64("quantity", decision.Quantity),
		zap.String("action", string(decision.Action)),
		zap.String("order_id", strconv.FormatInt(s.nextID, 10)),
	)

	return trade.Filled(decision.Quantity, referencePrice, s.nextID)
}
