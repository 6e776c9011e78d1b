package sizing

import (
	"fmt"
	"math"

	"copy-trader/internal/config"
	"copy-trader/internal/exchange"
	"copy-trader/internal/trade"
)

// Engine 将信号与账户状态换算为候选下单数量。
// 无副作用，账户状态由调用方在每次决策前重新拉取。
type Engine struct {
	cfg config.SizingConfig
}

// NewEngine 创建仓位计算引擎，未识别的计算方式直接报错。
func NewEngine(cfg config.SizingConfig) (*Engine, error) {
	switch cfg.Method {
	case config.MethodFixedRatio, config.MethodFixedSize,
		config.MethodWalletPercentage, config.MethodWalletFixed:
	default:
		return nil, fmt.Errorf("sizing: 未识别的计算方式 %q", cfg.Method)
	}
	return &Engine{cfg: cfg}, nil
}

// Method 返回当前使用的计算方式。
func (e *Engine) Method() string {
	return e.cfg.Method
}

// ComputeSize 计算跟单数量。
// 后处理顺序：非钱包方式先按 max_position_size 截断，再按账户 90% 资金上限截断，
// 最后执行最小订单价值兜底。兜底始终抬到交易所下限而不是放弃，
// 极端小资金下会压过资金上限。
func (e *Engine) ComputeSize(signalSize, currentPrice float64, account exchange.AccountState) float64 {
	if currentPrice <= 0 {
		return 0
	}

	accountValue := account.AccountValue
	var quantity float64

	switch e.cfg.Method {
	case config.MethodFixedRatio:
		quantity = math.Abs(signalSize) * e.cfg.AccountRatio
	case config.MethodFixedSize:
		quantity = e.cfg.FixedSize
	case config.MethodWalletPercentage:
		orderValue := accountValue * e.cfg.WalletPercentage
		quantity = orderValue / currentPrice
	case config.MethodWalletFixed:
		orderValue := math.Min(e.cfg.WalletFixedAmount, accountValue*0.9)
		quantity = orderValue / currentPrice
	}

	if e.cfg.Method != config.MethodWalletPercentage && e.cfg.Method != config.MethodWalletFixed {
		maxQuantity := e.cfg.MaxPositionSize / currentPrice
		if quantity > maxQuantity {
			quantity = maxQuantity
		}
	}

	maxSafeValue := accountValue * 0.9
	if quantity*currentPrice > maxSafeValue {
		quantity = maxSafeValue / currentPrice
	}

	if quantity*currentPrice < trade.MinOrderValue {
		quantity = trade.MinOrderValue / currentPrice
	}

	return quantity
}
