package monitor

import (
	"time"

	"copy-trader/internal/exchange"
	"copy-trader/internal/limiter"
	"copy-trader/internal/rebalance"
	"copy-trader/internal/signal"
	"copy-trader/internal/trade"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventSignal       EventType = "signal"
	EventDecision     EventType = "decision"
	EventLimiterBlock EventType = "limiter_block"
	EventExecution    EventType = "execution"
	EventRebalance    EventType = "rebalance"
	EventError        EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SignalPayload 记录检测到的信号变化。
type SignalPayload struct {
	Provider string       `json:"provider"`
	Event    signal.Event `json:"event"`
}

// DecisionPayload 记录跟单决策。
type DecisionPayload struct {
	Decision trade.Decision `json:"decision"`
	Price    float64        `json:"price"`
}

// LimiterBlockPayload 记录被限频/限敞口拦截的交易。
type LimiterBlockPayload struct {
	Coin       string          `json:"coin"`
	TradeValue float64         `json:"trade_value"`
	Verdict    limiter.Verdict `json:"verdict"`
}

// ExecutionPayload 记录订单执行结果。
type ExecutionPayload struct {
	Decision   trade.Decision `json:"decision"`
	Status     trade.Status   `json:"status"`
	FilledSize float64        `json:"filled_size,omitempty"`
	AvgPrice   float64        `json:"avg_price,omitempty"`
	OrderID    int64          `json:"order_id,omitempty"`
	Detail     string         `json:"detail,omitempty"`
}

// RebalancePayload 记录仓位对齐计划。
type RebalancePayload struct {
	Plan     rebalance.Plan    `json:"plan"`
	Position exchange.Position `json:"position"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
