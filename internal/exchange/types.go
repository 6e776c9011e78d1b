package exchange

import "time"

// AccountState 描述一次决策时刻的账户资金状况。
// 每次决策前重新拉取，决策之间不缓存。
type AccountState struct {
	AccountValue float64
	MarginUsed   float64
	Timestamp    time.Time
}

// AvailableMargin 返回可用保证金，行情剧烈波动时可能短暂为负，不做截断。
func (s AccountState) AvailableMargin() float64 {
	return s.AccountValue - s.MarginUsed
}

// Position 为账户持仓快照，核心只读不改。
// SignedSize 符号表示方向，零表示空仓；MarkPrice 可能缺失（为 0）。
type Position struct {
	Coin          string
	SignedSize    float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnl float64
}

// IsLong 判断持仓方向。
func (p Position) IsLong() bool {
	return p.SignedSize > 0
}

// NotionalValue 返回以标记价计的持仓名义价值（USD）。
func (p Position) NotionalValue() float64 {
	price := p.MarkPrice
	if price <= 0 {
		price = p.EntryPrice
	}
	size := p.SignedSize
	if size < 0 {
		size = -size
	}
	return size * price
}
