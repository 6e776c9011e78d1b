package signal

import (
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"copy-trader/internal/exchange"
	"copy-trader/internal/trade"
)

// Event 是信号源仓位变化的归类结果。
// Size 为带符号数量:新开/平仓时是完整仓位,加减仓时是变化量。
type Event struct {
	Coin   string
	Action trade.Action
	Size   float64
}

// Tracker 对比信号源相邻两次仓位快照,归类出跟单动作。
// 首次快照只建立基线,不产生事件,避免启动时把存量仓位当成新开仓。
type Tracker struct {
	mu          sync.Mutex
	prev        map[string]float64
	initialized bool
	logger      *zap.Logger
}

// NewTracker 创建跟踪器。
func NewTracker(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		prev:   make(map[string]float64),
		logger: logger,
	}
}

// Observe 接收信号源最新仓位,返回自上次快照以来的变化事件。
// 事件按币种字典序排列,同一币种反向时先平后开。
func (t *Tracker) Observe(positions []exchange.Position) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := make(map[string]float64, len(positions))
	for _, pos := range positions {
		if pos.SignedSize == 0 {
			continue
		}
		current[pos.Coin] = pos.SignedSize
	}

	if !t.initialized {
		t.initialized = true
		t.prev = current
		t.logger.Info("信号基线已建立", zap.Int("positions", len(current)))
		return nil
	}

	coins := make(map[string]struct{}, len(current)+len(t.prev))
	for coin := range current {
		coins[coin] = struct{}{}
	}
	for coin := range t.prev {
		coins[coin] = struct{}{}
	}

	ordered := make([]string, 0, len(coins))
	for coin := range coins {
		ordered = append(ordered, coin)
	}
	sort.Strings(ordered)

	var events []Event
	for _, coin := range ordered {
		events = append(events, t.classify(coin, t.prev[coin], current[coin])...)
	}

	t.prev = current
	for _, ev := range events {
		t.logger.Info("检测到信号变化",
			zap.String("coin", ev.Coin),
			zap.String("action", string(ev.Action)),
			zap.Float64("size", ev.Size),
		)
	}
	return events
}

func (t *Tracker) classify(coin string, old, now float64) []Event {
	switch {
	case old == 0 && now != 0:
		return []Event{{Coin: coin, Action: trade.ActionOpen, Size: now}}
	case old != 0 && now == 0:
		return []Event{{Coin: coin, Action: trade.ActionClose, Size: old}}
	case old == now:
		return nil
	case (old > 0) != (now > 0):
		// 方向翻转拆成先平后开两个事件。
		return []Event{
			{Coin: coin, Action: trade.ActionClose, Size: old},
			{Coin: coin, Action: trade.ActionOpen, Size: now},
		}
	case math.Abs(now) > math.Abs(old):
		return []Event{{Coin: coin, Action: trade.ActionIncrease, Size: now - old}}
	default:
		return []Event{{Coin: coin, Action: trade.ActionDecrease, Size: now - old}}
	}
}
