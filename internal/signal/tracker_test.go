package signal

import (
	"context"
	"errors"
	"testing"

	"copy-trader/internal/exchange"
	"copy-trader/internal/trade"
)

func positions(pairs ...interface{}) []exchange.Position {
	result := make([]exchange.Position, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		result = append(result, exchange.Position{
			Coin:       pairs[i].(string),
			SignedSize: pairs[i+1].(float64),
		})
	}
	return result
}

func TestTrackerFirstSnapshotIsBaseline(t *testing.T) {
	tracker := NewTracker(nil)

	events := tracker.Observe(positions("BTC", 1.5, "ETH", -10.0))
	if len(events) != 0 {
		t.Fatalf("基线快照不应产生事件, 得到 %d 个", len(events))
	}

	// 基线建立后消失的仓位要报平仓。
	events = tracker.Observe(positions("BTC", 1.5))
	if len(events) != 1 {
		t.Fatalf("事件数 = %d, 期望 1", len(events))
	}
	if events[0].Coin != "ETH" || events[0].Action != trade.ActionClose || events[0].Size != -10.0 {
		t.Errorf("事件 = %+v, 期望 ETH CLOSE -10", events[0])
	}
}

func TestTrackerOpenAndClose(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Observe(nil)

	events := tracker.Observe(positions("SOL", -40.0))
	if len(events) != 1 {
		t.Fatalf("事件数 = %d, 期望 1", len(events))
	}
	if events[0].Action != trade.ActionOpen || events[0].Size != -40.0 {
		t.Errorf("事件 = %+v, 期望 OPEN -40", events[0])
	}

	events = tracker.Observe(nil)
	if len(events) != 1 {
		t.Fatalf("事件数 = %d, 期望 1", len(events))
	}
	if events[0].Action != trade.ActionClose || events[0].Size != -40.0 {
		t.Errorf("事件 = %+v, 期望 CLOSE -40", events[0])
	}
}

func TestTrackerIncreaseAndDecrease(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Observe(positions("BTC", 1.0))

	events := tracker.Observe(positions("BTC", 1.6))
	if len(events) != 1 || events[0].Action != trade.ActionIncrease {
		t.Fatalf("事件 = %+v, 期望 INCREASE", events)
	}
	if delta := events[0].Size; delta < 0.6-1e-9 || delta > 0.6+1e-9 {
		t.Errorf("加仓量 = %v, 期望 0.6", delta)
	}

	events = tracker.Observe(positions("BTC", 0.4))
	if len(events) != 1 || events[0].Action != trade.ActionDecrease {
		t.Fatalf("事件 = %+v, 期望 DECREASE", events)
	}
	if delta := events[0].Size; delta < -1.2-1e-9 || delta > -1.2+1e-9 {
		t.Errorf("减仓量 = %v, 期望 -1.2", delta)
	}
}

func TestTrackerDirectionFlip(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Observe(positions("ETH", 5.0))

	events := tracker.Observe(positions("ETH", -3.0))
	if len(events) != 2 {
		t.Fatalf("事件数 = %d, 期望 2", len(events))
	}
	if events[0].Action != trade.ActionClose || events[0].Size != 5.0 {
		t.Errorf("第一个事件 = %+v, 期望 CLOSE 5", events[0])
	}
	if events[1].Action != trade.ActionOpen || events[1].Size != -3.0 {
		t.Errorf("第二个事件 = %+v, 期望 OPEN -3", events[1])
	}
}

func TestTrackerUnchangedProducesNothing(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Observe(positions("BTC", 1.0, "ETH", -2.0))

	events := tracker.Observe(positions("ETH", -2.0, "BTC", 1.0))
	if len(events) != 0 {
		t.Fatalf("仓位未变不应产生事件, 得到 %+v", events)
	}
}

func TestTrackerEventsSortedByCoin(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Observe(nil)

	events := tracker.Observe(positions("SOL", 1.0, "BTC", 1.0, "ETH", 1.0))
	if len(events) != 3 {
		t.Fatalf("事件数 = %d, 期望 3", len(events))
	}
	want := []string{"BTC", "ETH", "SOL"}
	for i, coin := range want {
		if events[i].Coin != coin {
			t.Errorf("事件[%d].Coin = %s, 期望 %s", i, events[i].Coin, coin)
		}
	}
}

func TestTrackerIgnoresZeroSizeEntries(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Observe(positions("BTC", 1.0))

	events := tracker.Observe(positions("BTC", 1.0, "ETH", 0.0))
	if len(events) != 0 {
		t.Fatalf("零仓位条目不应产生事件, 得到 %+v", events)
	}
}

type mockPositionFetcher struct {
	positions []exchange.Position
	err       error
	users     []string
}

func (m *mockPositionFetcher) FetchPositions(ctx context.Context, user string) ([]exchange.Position, error) {
	m.users = append(m.users, user)
	return m.positions, m.err
}

func TestSourcePollUsesProviderAddress(t *testing.T) {
	fetcher := &mockPositionFetcher{positions: positions("BTC", 2.0)}
	source, err := NewSource(fetcher, "0xabc", nil)
	if err != nil {
		t.Fatalf("NewSource 失败: %v", err)
	}

	if _, err := source.Poll(context.Background()); err != nil {
		t.Fatalf("Poll 失败: %v", err)
	}
	events, err := source.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll 失败: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("仓位未变不应产生事件, 得到 %+v", events)
	}
	if len(fetcher.users) != 2 || fetcher.users[0] != "0xabc" {
		t.Errorf("查询地址 = %v, 期望均为 0xabc", fetcher.users)
	}
}

func TestSourcePollPropagatesError(t *testing.T) {
	fetcher := &mockPositionFetcher{err: errors.New("boom")}
	source, err := NewSource(fetcher, "0xabc", nil)
	if err != nil {
		t.Fatalf("NewSource 失败: %v", err)
	}

	if _, err := source.Poll(context.Background()); err == nil {
		t.Fatal("拉取失败应上抛错误")
	}
}

func TestNewSourceValidation(t *testing.T) {
	if _, err := NewSource(nil, "0xabc", nil); err == nil {
		t.Error("缺少客户端应报错")
	}
	if _, err := NewSource(&mockPositionFetcher{}, "", nil); err == nil {
		t.Error("缺少信号源地址应报错")
	}
}
