package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// 可识别的仓位计算方式。
const (
	MethodFixedRatio       = "fixed_ratio"
	MethodFixedSize        = "fixed_size"
	MethodWalletPercentage = "wallet_percentage"
	MethodWalletFixed      = "wallet_fixed"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Signal    SignalConfig    `mapstructure:"signal"`
	Sizing    SizingConfig    `mapstructure:"sizing"`
	Limiter   LimiterConfig   `mapstructure:"limiter"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
}

// MonitorConfig 控制监控查询接口。
type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ExchangeConfig 描述跟单账户的交易所连接信息。
type ExchangeConfig struct {
	Name       string      `mapstructure:"name"`
	Wallet     string      `mapstructure:"wallet_address"`
	PrivateKey string      `mapstructure:"private_key"`
	UseSandbox bool        `mapstructure:"use_sandbox"`
	Retry      RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制交易所调用的重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// SignalConfig 描述被跟踪的信号源。
type SignalConfig struct {
	ProviderAddress string        `mapstructure:"provider_address"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
}

// SizingConfig 控制跟单的仓位计算。
type SizingConfig struct {
	Method            string  `mapstructure:"method"`
	AccountRatio      float64 `mapstructure:"account_ratio"`
	FixedSize         float64 `mapstructure:"fixed_size"`
	WalletPercentage  float64 `mapstructure:"wallet_percentage"`
	WalletFixedAmount float64 `mapstructure:"wallet_fixed_amount"`
	MaxPositionSize   float64 `mapstructure:"max_position_size"`
}

// LimiterConfig 控制单币种的交易频率与风险敞口上限。
type LimiterConfig struct {
	MaxTradesPerCoinPerHour int     `mapstructure:"max_trades_per_coin_per_hour"`
	MaxPositionPercent      float64 `mapstructure:"max_position_percent"`
	MinSecondsBetweenTrades int     `mapstructure:"min_seconds_between_trades"`
}

// ExecutionConfig 控制下单行为。
type ExecutionConfig struct {
	Slippage   float64 `mapstructure:"slippage"`
	Simulation bool    `mapstructure:"simulation"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// SchedulerConfig 控制主循环节奏。
type SchedulerConfig struct {
	LoopInterval time.Duration `mapstructure:"loop_interval"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Exchange.Name == "" {
		err = multierr.Append(err, errors.New("exchange.name 不能为空"))
	}
	if c.Exchange.Wallet == "" || c.Exchange.PrivateKey == "" {
		err = multierr.Append(err, errors.New("exchange 需要配置 wallet_address 与 private_key"))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}
	if c.Signal.ProviderAddress == "" {
		err = multierr.Append(err, errors.New("signal.provider_address 不能为空"))
	}
	if c.Signal.PollInterval <= 0 {
		err = multierr.Append(err, errors.New("signal.poll_interval 必须大于0"))
	}

	// 未识别的 sizing.method 在此显式报错，而不是静默退回 fixed_ratio。
	switch c.Sizing.Method {
	case MethodFixedRatio:
		if c.Sizing.AccountRatio <= 0 || c.Sizing.AccountRatio > 1 {
			err = multierr.Append(err, errors.New("sizing.account_ratio 必须位于(0,1]"))
		}
	case MethodFixedSize:
		if c.Sizing.FixedSize <= 0 {
			err = multierr.Append(err, errors.New("sizing.fixed_size 必须大于0"))
		}
	case MethodWalletPercentage:
		if c.Sizing.WalletPercentage <= 0 || c.Sizing.WalletPercentage > 1 {
			err = multierr.Append(err, errors.New("sizing.wallet_percentage 必须位于(0,1]"))
		}
	case MethodWalletFixed:
		if c.Sizing.WalletFixedAmount <= 0 {
			err = multierr.Append(err, errors.New("sizing.wallet_fixed_amount 必须大于0"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("sizing.method %q 不是可识别的计算方式", c.Sizing.Method))
	}
	if c.Sizing.Method == MethodFixedRatio || c.Sizing.Method == MethodFixedSize {
		if c.Sizing.MaxPositionSize <= 0 {
			err = multierr.Append(err, errors.New("sizing.max_position_size 必须大于0"))
		}
	}

	if c.Limiter.MaxTradesPerCoinPerHour < 1 {
		err = multierr.Append(err, errors.New("limiter.max_trades_per_coin_per_hour 必须不小于1"))
	}
	if c.Limiter.MaxPositionPercent <= 0 || c.Limiter.MaxPositionPercent > 1 {
		err = multierr.Append(err, errors.New("limiter.max_position_percent 必须位于(0,1]"))
	}
	if c.Limiter.MinSecondsBetweenTrades < 0 {
		err = multierr.Append(err, errors.New("limiter.min_seconds_between_trades 不能为负"))
	}

	if c.Execution.Slippage < 0 || c.Execution.Slippage > 0.2 {
		err = multierr.Append(err, errors.New("execution.slippage 应位于[0,0.2]"))
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if c.Monitor.Enabled && (c.Monitor.Port <= 0 || c.Monitor.Port > 65535) {
		err = multierr.Append(err, errors.New("monitor.port 必须位于[1,65535]"))
	}

	if c.Scheduler.LoopInterval <= 0 {
		err = multierr.Append(err, errors.New("scheduler.loop_interval 必须大于0"))
	}
	if c.Signal.PollInterval < c.Scheduler.LoopInterval {
		err = multierr.Append(err, errors.New("signal.poll_interval 不应小于 scheduler.loop_interval"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
