package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App: AppConfig{Environment: "test"},
		Exchange: ExchangeConfig{
			Name:       "hyperliquid",
			Wallet:     "0xfollower",
			PrivateKey: "0xkey",
			Retry: RetryConfig{
				MaxAttempts: 3,
				MinDelay:    500 * time.Millisecond,
				MaxDelay:    5 * time.Second,
			},
		},
		Signal: SignalConfig{
			ProviderAddress: "0xprovider",
			PollInterval:    30 * time.Second,
		},
		Sizing: SizingConfig{
			Method:          MethodFixedRatio,
			AccountRatio:    0.1,
			MaxPositionSize: 10,
		},
		Limiter: LimiterConfig{
			MaxTradesPerCoinPerHour: 3,
			MaxPositionPercent:      0.25,
			MinSecondsBetweenTrades: 30,
		},
		Execution: ExecutionConfig{Slippage: 0.02},
		Database:  DatabaseConfig{InMemory: true, MaxOpenConns: 1},
		Logging: LoggingConfig{
			Level:            "info",
			Encoding:         "console",
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
		},
		Scheduler: SchedulerConfig{LoopInterval: 15 * time.Second},
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("合法配置不应报错: %v", err)
	}
}

func TestValidateRejectsUnknownSizingMethod(t *testing.T) {
	cfg := validConfig()
	cfg.Sizing.Method = "martingale"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("未识别的 sizing.method 应在加载期报错")
	}
	if !strings.Contains(err.Error(), "martingale") {
		t.Errorf("错误信息应包含非法取值, 得到: %v", err)
	}
}

func TestValidateRequiresCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Exchange.PrivateKey = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("缺少 private_key 应报错")
	}
}

func TestValidateRequiresProviderAddress(t *testing.T) {
	cfg := validConfig()
	cfg.Signal.ProviderAddress = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("缺少 signal.provider_address 应报错")
	}
}

func TestValidateWalletMethodsSkipMaxPositionSize(t *testing.T) {
	cfg := validConfig()
	cfg.Sizing.Method = MethodWalletPercentage
	cfg.Sizing.WalletPercentage = 0.1
	cfg.Sizing.MaxPositionSize = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("钱包类计算方式不应要求 max_position_size: %v", err)
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.App.Environment = ""
	cfg.Limiter.MaxPositionPercent = 2

	err := cfg.Validate()
	if err == nil {
		t.Fatal("期望校验失败")
	}
	msg := err.Error()
	if !strings.Contains(msg, "app.environment") || !strings.Contains(msg, "max_position_percent") {
		t.Errorf("应聚合全部错误, 得到: %v", err)
	}
}

func TestValidatePollIntervalNotBelowLoopInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Signal.PollInterval = 5 * time.Second
	cfg.Scheduler.LoopInterval = 15 * time.Second

	if err := cfg.Validate(); err == nil {
		t.Fatal("poll_interval 小于 loop_interval 应报错")
	}
}
