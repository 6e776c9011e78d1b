package rebalance

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"copy-trader/internal/exchange"
	"copy-trader/internal/trade"
)

// Plan 为一次再平衡的输出：零至两笔待提交订单，或一次跳过。
type Plan struct {
	Coin      string
	Decisions []trade.Decision
	Skipped   bool
	Reason    trade.SkipReason
	Detail    string
}

// FullyCloses 判断该计划是否把现有仓位完全平掉且不再重开。
func (p Plan) FullyCloses() bool {
	return len(p.Decisions) == 1 && p.Decisions[0].Action == trade.ActionClose
}

// Engine 将目标名义价值收敛为最小订单序列。
type Engine struct {
	logger *zap.Logger
}

// NewEngine 创建再平衡引擎。
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Plan 根据目标价值与当前持仓计算收敛订单。
// position 为 nil 表示空仓。
//
// 0.9 阈值是刻意的滞回带：中等幅度调仓只下一单，方向翻转或接近整仓的
// 变化一律先平后开，经过明确的空仓状态，不做原子翻转。
func (e *Engine) Plan(coin string, targetValue, currentPrice float64, isLong bool, position *exchange.Position) Plan {
	plan := Plan{Coin: coin}

	if currentPrice <= 0 {
		plan.Skipped = true
		plan.Reason = trade.SkipNoChange
		plan.Detail = "无效的市场价格"
		return plan
	}

	var currentSize float64
	if position != nil {
		currentSize = position.SignedSize
	}

	targetSize := 0.0
	if targetValue > 0 {
		targetSize = math.Abs(targetValue) / currentPrice
		if !isLong {
			targetSize = -targetSize
		}
	}
	sizeDiff := targetSize - currentSize

	switch {
	case math.Abs(targetValue) < trade.MinOrderValue && currentSize != 0:
		// 目标低于交易所下限时整仓平掉，不管 sizeDiff 多大。
		plan.Decisions = append(plan.Decisions, trade.Decision{
			Coin:     coin,
			IsBuy:    currentSize < 0,
			Quantity: math.Abs(currentSize),
			Action:   trade.ActionClose,
		})

	case math.Abs(sizeDiff*currentPrice) < trade.MinOrderValue:
		// 变化太小不值得下单，防止反复的次下限抖动。
		plan.Skipped = true
		plan.Reason = trade.SkipBelowMinimumOrder
		plan.Detail = fmt.Sprintf("变化 $%.2f 低于最小订单价值 $%.2f",
			math.Abs(sizeDiff*currentPrice), trade.MinOrderValue)

	case currentSize == 0:
		plan.Decisions = append(plan.Decisions, trade.Decision{
			Coin:     coin,
			IsBuy:    targetSize > 0,
			Quantity: math.Abs(targetSize),
			Action:   trade.ActionOpen,
		})

	case math.Abs(sizeDiff) >= math.Abs(currentSize)*0.9:
		plan.Decisions = append(plan.Decisions, trade.Decision{
			Coin:     coin,
			IsBuy:    currentSize < 0,
			Quantity: math.Abs(currentSize),
			Action:   trade.ActionClose,
		})
		if targetValue >= trade.MinOrderValue {
			plan.Decisions = append(plan.Decisions, trade.Decision{
				Coin:     coin,
				IsBuy:    isLong,
				Quantity: math.Abs(targetSize),
				Action:   trade.ActionOpen,
			})
		}

	default:
		plan.Decisions = append(plan.Decisions, trade.Decision{
			Coin:     coin,
			IsBuy:    sizeDiff > 0,
			Quantity: math.Abs(sizeDiff),
			Action:   trade.ActionAdjust,
		})
	}

	if plan.Skipped {
		e.logger.Debug("再平衡跳过",
			zap.String("coin", coin),
			zap.String("detail", plan.Detail),
		)
	} else {
		e.logger.Debug("再平衡计划生成",
			zap.String("coin", coin),
			zap.Float64("target_value", targetValue),
			zap.Float64("current_size", currentSize),
			zap.Int("orders", len(plan.Decisions)),
		)
	}

	return plan
}
