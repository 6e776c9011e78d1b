package sizing

import (
	"math"
	"testing"

	"copy-trader/internal/config"
	"copy-trader/internal/exchange"
	"copy-trader/internal/trade"
)

func TestNewEngine_RejectsUnknownMethod(t *testing.T) {
	_, err := NewEngine(config.SizingConfig{Method: "martingale"})
	if err == nil {
		t.Fatal("expected error for unknown sizing method")
	}
}

func TestComputeSize_FixedRatio(t *testing.T) {
	engine := mustEngine(t, config.SizingConfig{
		Method:          config.MethodFixedRatio,
		AccountRatio:    0.1,
		MaxPositionSize: 1000,
	})
	account := exchange.AccountState{AccountValue: 10000}

	got := engine.ComputeSize(50, 20, account)
	if diff := math.Abs(got - 5.0); diff > 1e-9 {
		t.Errorf("ComputeSize = %f, want 5.0", got)
	}

	// 符号只表示方向，数量按绝对值计算。
	got = engine.ComputeSize(-50, 20, account)
	if diff := math.Abs(got - 5.0); diff > 1e-9 {
		t.Errorf("ComputeSize(negative signal) = %f, want 5.0", got)
	}
}

func TestComputeSize_FixedRatio_MaxPositionCap(t *testing.T) {
	engine := mustEngine(t, config.SizingConfig{
		Method:          config.MethodFixedRatio,
		AccountRatio:    1.0,
		MaxPositionSize: 100,
	})
	account := exchange.AccountState{AccountValue: 10000}

	got := engine.ComputeSize(1000, 10, account)
	if diff := math.Abs(got - 10.0); diff > 1e-9 {
		t.Errorf("ComputeSize = %f, want cap at 10.0 (=100/10)", got)
	}
}

func TestComputeSize_FixedSize_IgnoresSignal(t *testing.T) {
	engine := mustEngine(t, config.SizingConfig{
		Method:          config.MethodFixedSize,
		FixedSize:       2.5,
		MaxPositionSize: 1000,
	})
	account := exchange.AccountState{AccountValue: 10000}

	for _, signal := range []float64{0.001, 42, -9999} {
		got := engine.ComputeSize(signal, 100, account)
		if diff := math.Abs(got - 2.5); diff > 1e-9 {
			t.Errorf("ComputeSize(signal=%f) = %f, want 2.5", signal, got)
		}
	}
}

func TestComputeSize_WalletPercentage(t *testing.T) {
	engine := mustEngine(t, config.SizingConfig{
		Method:           config.MethodWalletPercentage,
		WalletPercentage: 0.2,
	})
	account := exchange.AccountState{AccountValue: 5000}

	got := engine.ComputeSize(123, 50, account)
	if diff := math.Abs(got - 20.0); diff > 1e-9 {
		t.Errorf("ComputeSize = %f, want 20.0 (=5000*0.2/50)", got)
	}
}

func TestComputeSize_WalletFixed_CapsAtNinetyPercent(t *testing.T) {
	engine := mustEngine(t, config.SizingConfig{
		Method:            config.MethodWalletFixed,
		WalletFixedAmount: 500,
	})
	account := exchange.AccountState{AccountValue: 100}

	// min(500, 100*0.9)=90 → 数量 9，满足最小订单价值，不再兜底。
	got := engine.ComputeSize(1, 10, account)
	if diff := math.Abs(got - 9.0); diff > 1e-9 {
		t.Errorf("ComputeSize = %f, want 9.0", got)
	}
}

func TestComputeSize_MinimumFloorOverridesBalanceClamp(t *testing.T) {
	engine := mustEngine(t, config.SizingConfig{
		Method:            config.MethodWalletFixed,
		WalletFixedAmount: 10,
	})
	account := exchange.AccountState{AccountValue: 5}

	// 资金上限先把订单压到 $4.5，最小订单价值兜底再抬回 $10。
	got := engine.ComputeSize(1, 10, account)
	if diff := math.Abs(got - 1.0); diff > 1e-9 {
		t.Errorf("ComputeSize = %f, want 1.0 (order value 10)", got)
	}
}

func TestComputeSize_MinimumOrderFloor_AllMethods(t *testing.T) {
	account := exchange.AccountState{AccountValue: 10000}
	price := 100.0

	cases := []struct {
		name string
		cfg  config.SizingConfig
	}{
		{"fixed_ratio", config.SizingConfig{Method: config.MethodFixedRatio, AccountRatio: 0.001, MaxPositionSize: 1000}},
		{"fixed_size", config.SizingConfig{Method: config.MethodFixedSize, FixedSize: 0.0001, MaxPositionSize: 1000}},
		{"wallet_percentage", config.SizingConfig{Method: config.MethodWalletPercentage, WalletPercentage: 0.0001}},
		{"wallet_fixed", config.SizingConfig{Method: config.MethodWalletFixed, WalletFixedAmount: 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := mustEngine(t, tc.cfg)
			got := engine.ComputeSize(0.01, price, account)
			orderValue := got * price
			if orderValue < trade.MinOrderValue-1e-9 {
				t.Errorf("order value %f below minimum %f", orderValue, trade.MinOrderValue)
			}
			if orderValue > account.AccountValue*0.9+1e-9 {
				t.Errorf("order value %f above 90%% of account", orderValue)
			}
		})
	}
}

func TestComputeSize_SafetyClampAtNinetyPercent(t *testing.T) {
	engine := mustEngine(t, config.SizingConfig{
		Method:          config.MethodFixedRatio,
		AccountRatio:    1.0,
		MaxPositionSize: 1e9,
	})
	account := exchange.AccountState{AccountValue: 1000}

	got := engine.ComputeSize(1000, 10, account)
	if diff := math.Abs(got - 90.0); diff > 1e-9 {
		t.Errorf("ComputeSize = %f, want 90.0 (=1000*0.9/10)", got)
	}
}

func TestComputeSize_InvalidPrice(t *testing.T) {
	engine := mustEngine(t, config.SizingConfig{
		Method:          config.MethodFixedRatio,
		AccountRatio:    0.1,
		MaxPositionSize: 1000,
	})

	if got := engine.ComputeSize(50, 0, exchange.AccountState{AccountValue: 1000}); got != 0 {
		t.Errorf("ComputeSize(price=0) = %f, want 0", got)
	}
}

func mustEngine(t *testing.T, cfg config.SizingConfig) *Engine {
	t.Helper()
	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}
	return engine
}
