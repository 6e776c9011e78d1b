package execution

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"copy-trader/internal/exchange"
	"copy-trader/internal/trade"
)

type orderClient interface {
	CreateMarketOrder(symbol string, side string, amount float64, options ...ccxt.CreateMarketOrderOptions) (ccxt.Order, error)
}

// Options 控制下单参数。
type Options struct {
	Slippage float64
}

// Submitter 抽象市价单提交，方便切换真实或模拟下单。
type Submitter interface {
	SubmitMarketOrder(ctx context.Context, decision trade.Decision, referencePrice float64) trade.Outcome
}

// Executor 把交易决策转化为 Hyperliquid 市价单并归类结果。
// 不重试：拒单与传输失败原样上抛，由调用方决定后续处理。
type Executor struct {
	client orderClient
	logger *zap.Logger
	opts   Options
}

var _ Submitter = (*Executor)(nil)

// NewExecutor 创建执行器。
func NewExecutor(client orderClient, opts Options, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Slippage <= 0 {
		opts.Slippage = trade.Slippage
	}
	return &Executor{
		client: client,
		logger: logger,
		opts:   opts,
	}
}

// SubmitMarketOrder 提交单笔市价单。
func (e *Executor) SubmitMarketOrder(ctx context.Context, decision trade.Decision, referencePrice float64) trade.Outcome {
	if err := ctx.Err(); err != nil {
		return trade.Failed(err)
	}
	if decision.Quantity <= 0 {
		return trade.Failed(fmt.Errorf("execution: 下单数量无效 %.6f", decision.Quantity))
	}

	side := "sell"
	if decision.IsBuy {
		side = "buy"
	}

	params := map[string]interface{}{
		"slippage": formatSlippage(e.opts.Slippage),
	}
	if decision.Action == trade.ActionClose || decision.Action == trade.ActionDecrease {
		params["reduceOnly"] = true
	}

	e.logger.Info("提交市价单",
		zap.String("coin", decision.Coin),
		zap.String("side", side),
		zap.Float64("quantity", decision.Quantity),
		zap.String("action", string(decision.Action)),
		zap.Float64("reference_price", referencePrice),
	)

	order, err := e.client.CreateMarketOrder(
		exchange.MarketSymbol(decision.Coin),
		side,
		decision.Quantity,
		ccxt.WithCreateMarketOrderParams(params),
	)
	if err != nil {
		var ccxtErr *ccxt.Error
		if errors.As(err, &ccxtErr) {
			switch ccxtErr.Type {
			case ccxt.NetworkErrorErrType,
				ccxt.RequestTimeoutErrType,
				ccxt.ExchangeNotAvailableErrType:
				return trade.Failed(err)
			default:
				// 交易所明确拒单，原文上抛。
				return trade.Rejected(ccxtErr.Message)
			}
		}
		return trade.Failed(err)
	}

	outcome := parseOrderResult(order, decision, referencePrice)
	e.logger.Info("市价单提交完成",
		zap.String("coin", decision.Coin),
		zap.String("status", string(outcome.Status)),
		zap.Float64("filled_size", outcome.FilledSize),
		zap.Float64("avg_price", outcome.AvgPrice),
	)
	return outcome
}

func parseOrderResult(order ccxt.Order, decision trade.Decision, referencePrice float64) trade.Outcome {
	filled := derefFloat(order.Filled)
	if filled == 0 {
		filled = derefFloat(order.Amount)
	}
	if filled == 0 {
		filled = decision.Quantity
	}

	avgPrice := derefFloat(order.Average)
	if avgPrice == 0 {
		avgPrice = derefFloat(order.Price)
	}
	if avgPrice == 0 {
		avgPrice = referencePrice
	}

	var orderID int64
	if order.Id != nil {
		orderID = parseOrderID(*order.Id)
	}

	return trade.Filled(filled, avgPrice, orderID)
}

func parseOrderID(raw string) int64 {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func formatSlippage(value float64) string {
	return fmt.Sprintf("%.6f", value)
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
