package limiter

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"copy-trader/internal/config"
	"copy-trader/internal/trade"
)

// Verdict 为一次放行检查的结果。
type Verdict struct {
	Allowed bool
	Reason  trade.SkipReason
	Detail  string
}

// Stats 为只读的限流状态快照。
type Stats struct {
	Positions    map[string]float64
	RecentTrades map[string]int
	BlockedCoins []string
}

// Limiter 独立于仓位计算，对单币种的交易频率与累计敞口做闸门控制。
// 状态仅存于进程内存，重启即丢失。决策流水线串行驱动写入，
// 监控接口可能并发读取，故所有方法持锁。
//
// trackedPositionValue 只增不减，部分减仓不会回落，直到整仓平掉才重置，
// 因此是对真实敞口的保守高估而不是净头寸。
type Limiter struct {
	cfg    config.LimiterConfig
	logger *zap.Logger

	mu             sync.Mutex
	tradeHistory   map[string][]time.Time
	lastTradeTime  map[string]time.Time
	positionValues map[string]float64

	now func() time.Time
}

// New 创建空状态的限流器。
func New(cfg config.LimiterConfig, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		cfg:            cfg,
		logger:         logger,
		tradeHistory:   make(map[string][]time.Time),
		lastTradeTime:  make(map[string]time.Time),
		positionValues: make(map[string]float64),
		now:            time.Now,
	}
}

// ShouldAllow 按冷却、频率、敞口的顺序检查，任一不通过立即拒绝。
// 通过时不改动任何状态，状态变更推迟到交易实际执行后的 RecordTrade。
func (l *Limiter) ShouldAllow(coin string, tradeValue, accountBalance float64) Verdict {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.now()

	if last, ok := l.lastTradeTime[coin]; ok {
		elapsed := current.Sub(last)
		minGap := time.Duration(l.cfg.MinSecondsBetweenTrades) * time.Second
		if elapsed < minGap {
			l.logger.Info("限流拒绝：距上次交易间隔不足",
				zap.String("coin", coin),
				zap.Duration("elapsed", elapsed),
				zap.Duration("min_gap", minGap),
			)
			return Verdict{Reason: trade.SkipCooldown, Detail: "距上次交易间隔不足"}
		}
	}

	oneHourAgo := current.Add(-time.Hour)
	recent := pruneBefore(l.tradeHistory[coin], oneHourAgo)
	l.tradeHistory[coin] = recent
	if len(recent) >= l.cfg.MaxTradesPerCoinPerHour {
		l.logger.Info("限流拒绝：达到每小时交易次数上限",
			zap.String("coin", coin),
			zap.Int("recent_trades", len(recent)),
			zap.Int("limit", l.cfg.MaxTradesPerCoinPerHour),
		)
		return Verdict{Reason: trade.SkipRateLimited, Detail: "达到每小时交易次数上限"}
	}

	// 等于上限视为放行，严格大于才拒绝。
	newTotal := l.positionValues[coin] + tradeValue
	maxAllowed := accountBalance * l.cfg.MaxPositionPercent
	if newTotal > maxAllowed {
		l.logger.Info("限流拒绝：超出单币种敞口上限",
			zap.String("coin", coin),
			zap.Float64("current_value", l.positionValues[coin]),
			zap.Float64("trade_value", tradeValue),
			zap.Float64("max_allowed", maxAllowed),
		)
		return Verdict{Reason: trade.SkipExposureLimited, Detail: "超出单币种敞口上限"}
	}

	return Verdict{Allowed: true}
}

// RecordTrade 在交易实际执行后记录时间戳并累加敞口。
func (l *Limiter) RecordTrade(coin string, tradeValue float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.now()
	l.lastTradeTime[coin] = current
	l.tradeHistory[coin] = append(l.tradeHistory[coin], current)
	l.positionValues[coin] += tradeValue

	l.logger.Debug("已记录交易",
		zap.String("coin", coin),
		zap.Float64("trade_value", tradeValue),
		zap.Float64("tracked_total", l.positionValues[coin]),
	)
}

// ResetPosition 在整仓平掉后清除敞口累计，交易频率历史保留，
// 平仓后立即重开仍受频率限制。
func (l *Limiter) ResetPosition(coin string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.positionValues, coin)
	l.logger.Debug("已重置敞口跟踪", zap.String("coin", coin))
}

// GetStats 返回各币种近一小时交易数及已触顶的币种。
// 只读快照，不触碰历史记录本身。
func (l *Limiter) GetStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{
		Positions:    make(map[string]float64, len(l.positionValues)),
		RecentTrades: make(map[string]int, len(l.tradeHistory)),
		BlockedCoins: make([]string, 0),
	}

	for coin, value := range l.positionValues {
		stats.Positions[coin] = value
	}

	oneHourAgo := l.now().Add(-time.Hour)
	for coin, history := range l.tradeHistory {
		recent := countAfter(history, oneHourAgo)
		stats.RecentTrades[coin] = recent
		if recent >= l.cfg.MaxTradesPerCoinPerHour {
			stats.BlockedCoins = append(stats.BlockedCoins, coin)
		}
	}

	return stats
}

// countAfter 统计 cutoff 之后的条目数，不改动切片。
func countAfter(history []time.Time, cutoff time.Time) int {
	count := 0
	for _, ts := range history {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}

func pruneBefore(history []time.Time, cutoff time.Time) []time.Time {
	kept := history[:0]
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
