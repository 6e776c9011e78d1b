package trade

import "time"

// MinOrderValue 为交易所规定的最小订单价值（USD）。
// 低于该值的订单会被撮合端直接拒绝，核心逻辑在提交前主动向上取整规避。
const MinOrderValue = 10.0

// Slippage 为所有市价单统一使用的滑点容忍度（2%）。
const Slippage = 0.02

// Action 表示一次跟单动作的分类。
type Action string

const (
	ActionOpen     Action = "OPEN"
	ActionIncrease Action = "INCREASE"
	ActionDecrease Action = "DECREASE"
	ActionClose    Action = "CLOSE"
	ActionAdjust   Action = "ADJUST"
)

// Decision 描述一笔待提交的市价单。
type Decision struct {
	Coin     string
	IsBuy    bool
	Quantity float64
	Action   Action
}

// Status 表示订单提交后的归类结果。
type Status string

const (
	StatusFilled   Status = "filled"
	StatusRejected Status = "rejected"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// SkipReason 枚举核心主动放弃提交的原因。
type SkipReason string

const (
	SkipBelowMinimumOrder SkipReason = "below_minimum_order"
	SkipNoPositionToClose SkipReason = "no_position_to_close"
	SkipNoChange          SkipReason = "no_change"
	SkipRateLimited       SkipReason = "rate_limited"
	SkipExposureLimited   SkipReason = "exposure_limited"
	SkipCooldown          SkipReason = "cooldown"
)

// Outcome 为订单提交的统一结果类型。
// 核心从不重试：Rejected/Failed 原样上抛，Skipped 是预期内的非动作，不是错误。
type Outcome struct {
	Status     Status
	FilledSize float64
	AvgPrice   float64
	OrderID    int64
	Reason     string
	Err        error
	Timestamp  time.Time
}

// Filled 构造成交结果。
func Filled(size, avgPrice float64, orderID int64) Outcome {
	return Outcome{
		Status:     StatusFilled,
		FilledSize: size,
		AvgPrice:   avgPrice,
		OrderID:    orderID,
		Timestamp:  time.Now().UTC(),
	}
}

// Rejected 构造交易所拒单结果，reason 为交易所原文。
func Rejected(reason string) Outcome {
	return Outcome{
		Status:    StatusRejected,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

// Skipped 构造核心主动跳过的结果。
func Skipped(reason SkipReason) Outcome {
	return Outcome{
		Status:    StatusSkipped,
		Reason:    string(reason),
		Timestamp: time.Now().UTC(),
	}
}

// Failed 构造传输层异常结果。
func Failed(err error) Outcome {
	return Outcome{
		Status:    StatusFailed,
		Err:       err,
		Timestamp: time.Now().UTC(),
	}
}

// IsSkip 判断结果是否为跳过。
func (o Outcome) IsSkip() bool {
	return o.Status == StatusSkipped
}
