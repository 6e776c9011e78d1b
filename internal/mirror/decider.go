package mirror

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"copy-trader/internal/exchange"
	"copy-trader/internal/trade"
)

var (
	// ErrNoPositionToDecrease 表示对空仓发出了减仓信号。
	ErrNoPositionToDecrease = errors.New("mirror: 无持仓可减")
	// ErrUnknownAction 表示信号动作无法识别。
	ErrUnknownAction = errors.New("mirror: 未识别的信号动作")
)

type sizer interface {
	ComputeSize(signalSize, currentPrice float64, account exchange.AccountState) float64
}

// Result 为一次跟单决策的结果：订单、跳过或错误，三者取一。
type Result struct {
	Decision *trade.Decision
	Skipped  bool
	Reason   trade.SkipReason
	Err      error
}

// Decider 把信号动作与跟单账户的持仓方向映射为具体的买卖指令，
// 数量计算委托给仓位计算引擎。
type Decider struct {
	sizer  sizer
	logger *zap.Logger
}

// NewDecider 创建跟单决策器。
func NewDecider(sizer sizer, logger *zap.Logger) *Decider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decider{
		sizer:  sizer,
		logger: logger,
	}
}

// Decide 根据信号动作与当前持仓产出买卖指令。
// position 为 nil 表示空仓；平仓使用信号原始数量，不经过仓位计算引擎，
// 绕开最小订单与比例逻辑。
func (d *Decider) Decide(coin string, signalSize float64, action trade.Action, position *exchange.Position, currentPrice float64, account exchange.AccountState) Result {
	hasPosition := position != nil && position.SignedSize != 0

	switch action {
	case trade.ActionOpen:
		return d.sized(coin, signalSize, signalSize > 0, trade.ActionOpen, currentPrice, account)

	case trade.ActionIncrease:
		isBuy := signalSize > 0
		if hasPosition {
			isBuy = position.SignedSize > 0
		}
		return d.sized(coin, signalSize, isBuy, trade.ActionIncrease, currentPrice, account)

	case trade.ActionDecrease:
		if !hasPosition {
			return Result{Err: ErrNoPositionToDecrease}
		}
		return d.sized(coin, signalSize, position.SignedSize < 0, trade.ActionDecrease, currentPrice, account)

	case trade.ActionClose:
		if !hasPosition {
			return Result{Skipped: true, Reason: trade.SkipNoPositionToClose}
		}
		return Result{Decision: &trade.Decision{
			Coin:     coin,
			IsBuy:    position.SignedSize < 0,
			Quantity: math.Abs(signalSize),
			Action:   trade.ActionClose,
		}}

	default:
		return Result{Err: fmt.Errorf("%w: %s", ErrUnknownAction, action)}
	}
}

func (d *Decider) sized(coin string, signalSize float64, isBuy bool, action trade.Action, currentPrice float64, account exchange.AccountState) Result {
	quantity := d.sizer.ComputeSize(signalSize, currentPrice, account)

	d.logger.Debug("跟单数量计算完成",
		zap.String("coin", coin),
		zap.String("action", string(action)),
		zap.Float64("signal_size", signalSize),
		zap.Float64("quantity", quantity),
	)

	return Result{Decision: &trade.Decision{
		Coin:     coin,
		IsBuy:    isBuy,
		Quantity: quantity,
		Action:   action,
	}}
}
