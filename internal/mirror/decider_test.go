package mirror

import (
	"errors"
	"testing"

	"copy-trader/internal/exchange"
	"copy-trader/internal/trade"
)

type mockSizer struct {
	calls    int
	quantity float64
}

func (m *mockSizer) ComputeSize(signalSize, currentPrice float64, account exchange.AccountState) float64 {
	m.calls++
	return m.quantity
}

func testAccount() exchange.AccountState {
	return exchange.AccountState{AccountValue: 10000}
}

func TestDecide_OpenFollowsSignalDirection(t *testing.T) {
	sizer := &mockSizer{quantity: 2}
	decider := NewDecider(sizer, nil)

	result := decider.Decide("SOL", 50, trade.ActionOpen, nil, 100, testAccount())
	if result.Err != nil || result.Skipped {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !result.Decision.IsBuy {
		t.Errorf("positive signal should open long")
	}
	if result.Decision.Quantity != 2 {
		t.Errorf("quantity = %f, want sizer output 2", result.Decision.Quantity)
	}

	result = decider.Decide("SOL", -50, trade.ActionOpen, nil, 100, testAccount())
	if result.Decision.IsBuy {
		t.Errorf("negative signal should open short")
	}
	if sizer.calls != 2 {
		t.Errorf("sizer calls = %d, want 2", sizer.calls)
	}
}

func TestDecide_IncreaseFollowsExistingDirection(t *testing.T) {
	sizer := &mockSizer{quantity: 1}
	decider := NewDecider(sizer, nil)
	short := &exchange.Position{Coin: "SOL", SignedSize: -10}

	// 已有空头仓位时，信号为正也跟随现有方向卖出。
	result := decider.Decide("SOL", 50, trade.ActionIncrease, short, 100, testAccount())
	if result.Err != nil || result.Skipped {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Decision.IsBuy {
		t.Errorf("increase on a short position must sell")
	}
}

func TestDecide_IncreaseWithoutPositionTreatsAsNew(t *testing.T) {
	sizer := &mockSizer{quantity: 1}
	decider := NewDecider(sizer, nil)

	result := decider.Decide("SOL", 50, trade.ActionIncrease, nil, 100, testAccount())
	if result.Err != nil || result.Skipped {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !result.Decision.IsBuy {
		t.Errorf("flat account with positive signal should buy")
	}
}

func TestDecide_DecreaseOppositeDirection(t *testing.T) {
	sizer := &mockSizer{quantity: 1}
	decider := NewDecider(sizer, nil)
	long := &exchange.Position{Coin: "SOL", SignedSize: 10}

	result := decider.Decide("SOL", 5, trade.ActionDecrease, long, 100, testAccount())
	if result.Err != nil || result.Skipped {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Decision.IsBuy {
		t.Errorf("decrease on a long position must sell")
	}
}

func TestDecide_DecreaseWithoutPositionFails(t *testing.T) {
	sizer := &mockSizer{quantity: 1}
	decider := NewDecider(sizer, nil)

	result := decider.Decide("SOL", 5, trade.ActionDecrease, nil, 100, testAccount())
	if !errors.Is(result.Err, ErrNoPositionToDecrease) {
		t.Errorf("expected ErrNoPositionToDecrease, got %v", result.Err)
	}
	if sizer.calls != 0 {
		t.Errorf("sizer must not be called, got %d calls", sizer.calls)
	}
}

func TestDecide_CloseUsesSignalMagnitudeVerbatim(t *testing.T) {
	sizer := &mockSizer{quantity: 99}
	decider := NewDecider(sizer, nil)
	long := &exchange.Position{Coin: "SOL", SignedSize: 10}

	result := decider.Decide("SOL", -7.5, trade.ActionClose, long, 100, testAccount())
	if result.Err != nil || result.Skipped {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Decision.IsBuy {
		t.Errorf("closing a long must sell")
	}
	if result.Decision.Quantity != 7.5 {
		t.Errorf("close quantity = %f, want signal magnitude 7.5", result.Decision.Quantity)
	}
	if sizer.calls != 0 {
		t.Errorf("close must bypass the sizing engine, got %d calls", sizer.calls)
	}
}

func TestDecide_CloseWithoutPositionSkips(t *testing.T) {
	sizer := &mockSizer{quantity: 1}
	decider := NewDecider(sizer, nil)

	result := decider.Decide("SOL", 50, trade.ActionClose, nil, 100, testAccount())
	if !result.Skipped || result.Reason != trade.SkipNoPositionToClose {
		t.Fatalf("expected NoPositionToClose skip, got %+v", result)
	}
	if sizer.calls != 0 {
		t.Errorf("sizer must not be called, got %d calls", sizer.calls)
	}
}

func TestDecide_UnknownAction(t *testing.T) {
	decider := NewDecider(&mockSizer{}, nil)

	result := decider.Decide("SOL", 50, trade.Action("HEDGE"), nil, 100, testAccount())
	if !errors.Is(result.Err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", result.Err)
	}
}
