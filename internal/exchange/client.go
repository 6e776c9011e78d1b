package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"copy-trader/internal/config"
	"copy-trader/internal/instrument"
)

// ErrMaintenance 表示交易所处于维护状态，需要上层跳过本轮决策。
var ErrMaintenance = errors.New("exchange on maintenance")

// quoteSuffix 为永续合约统一交易对的后缀，核心内部只使用币种名。
const quoteSuffix = "/USDC:USDC"

// Client 负责与 Hyperliquid 交互并承担全部重试职责。
// 核心决策层不重试，网络层面的退避在这里完成。
type Client struct {
	cfg      config.ExchangeConfig
	logger   *zap.Logger
	exchange *ccxt.Hyperliquid

	marketsMu     sync.Mutex
	marketsLoaded bool
}

// NewClient 构造 Hyperliquid 客户端。
func NewClient(cfg config.ExchangeConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Wallet == "" || cfg.PrivateKey == "" {
		return nil, errors.New("exchange: 缺少 wallet_address 或 private_key")
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"walletAddress":   cfg.Wallet,
		"privateKey":      cfg.PrivateKey,
	}

	ex := ccxt.NewHyperliquid(userConfig)
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
	}

	return &Client{
		cfg:      cfg,
		logger:   logger,
		exchange: ex,
	}, nil
}

// Raw 返回底层 ccxt 客户端，供执行器下单使用。
func (c *Client) Raw() *ccxt.Hyperliquid {
	return c.exchange
}

// Wallet 返回跟单账户地址。
func (c *Client) Wallet() string {
	return c.cfg.Wallet
}

// MarketSymbol 把币种名映射为 ccxt 统一交易对。
func MarketSymbol(coin string) string {
	return strings.ToUpper(strings.TrimSpace(coin)) + quoteSuffix
}

// CoinFromSymbol 从统一交易对提取币种名。
func CoinFromSymbol(symbol string) string {
	s := strings.TrimSpace(symbol)
	if idx := strings.Index(s, "/"); idx > 0 {
		s = s[:idx]
	}
	if idx := strings.Index(s, ":"); idx > 0 {
		s = s[:idx]
	}
	return strings.ToUpper(s)
}

// FetchAccountState 拉取跟单账户的最新资金状况。
func (c *Client) FetchAccountState(ctx context.Context) (AccountState, error) {
	var state AccountState

	var balances ccxt.Balances
	err := c.callWithRetry(ctx, "fetch_balance", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := c.exchange.FetchBalance()
		if err != nil {
			return err
		}
		balances = result
		return nil
	})
	if err != nil {
		return state, fmt.Errorf("exchange: 获取账户余额失败: %w", err)
	}

	if balances.Info != nil {
		if summary, ok := balances.Info["marginSummary"].(map[string]interface{}); ok {
			state.AccountValue = parseNumeric(summary["accountValue"])
			state.MarginUsed = parseNumeric(summary["totalMarginUsed"])
		}
	}
	if state.AccountValue == 0 && balances.Total != nil {
		for _, code := range []string{"USDC", "USD", "USDT"} {
			if total, ok := balances.Total[code]; ok && total != nil {
				state.AccountValue = *total
				break
			}
		}
	}

	state.Timestamp = time.Now().UTC()
	return state, nil
}

// FetchPositions 拉取指定地址的持仓快照，user 为空时查询跟单账户自身。
func (c *Client) FetchPositions(ctx context.Context, user string) ([]Position, error) {
	var raw []ccxt.Position

	err := c.callWithRetry(ctx, "fetch_positions", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}

		var opts []ccxt.FetchPositionsOptions
		if user != "" {
			opts = append(opts, ccxt.WithFetchPositionsParams(map[string]interface{}{
				"user": user,
			}))
		}
		result, err := c.exchange.FetchPositions(opts...)
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("exchange: 获取持仓失败: %w", err)
	}

	positions := make([]Position, 0, len(raw))
	for _, rawPos := range raw {
		coin := CoinFromSymbol(derefString(rawPos.Symbol))
		if coin == "" {
			continue
		}

		signedSize := derefFloat(rawPos.Contracts)
		if strings.EqualFold(derefString(rawPos.Side), "short") {
			signedSize = -signedSize
		}
		entry := derefFloat(rawPos.EntryPrice)
		mark := derefFloat(rawPos.MarkPrice)
		unrealized := derefFloat(rawPos.UnrealizedPnl)

		if rawPos.Info != nil {
			if positionInfo, ok := rawPos.Info["position"].(map[string]interface{}); ok {
				if v := parseNumeric(positionInfo["szi"]); v != 0 {
					signedSize = v
				}
				if mark == 0 {
					mark = parseNumeric(positionInfo["markPx"])
				}
				if entry == 0 {
					entry = parseNumeric(positionInfo["entryPx"])
				}
			}
		}

		if signedSize == 0 {
			continue
		}

		positions = append(positions, Position{
			Coin:          coin,
			SignedSize:    signedSize,
			EntryPrice:    entry,
			MarkPrice:     mark,
			UnrealizedPnl: unrealized,
		})
	}

	return positions, nil
}

// FetchMidPrices 拉取全部币种的中间价。
func (c *Client) FetchMidPrices(ctx context.Context) (map[string]float64, error) {
	var tickers ccxt.Tickers

	err := c.callWithRetry(ctx, "fetch_tickers", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := c.exchange.FetchTickers()
		if err != nil {
			return err
		}
		tickers = result
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("exchange: 获取中间价失败: %w", err)
	}

	mids := make(map[string]float64, len(tickers.Tickers))
	for symbol, ticker := range tickers.Tickers {
		coin := CoinFromSymbol(symbol)
		if coin == "" {
			continue
		}

		bid := derefFloat(ticker.Bid)
		ask := derefFloat(ticker.Ask)
		switch {
		case bid > 0 && ask > 0:
			mids[coin] = (bid + ask) / 2
		case derefFloat(ticker.Last) > 0:
			mids[coin] = derefFloat(ticker.Last)
		case derefFloat(ticker.Close) > 0:
			mids[coin] = derefFloat(ticker.Close)
		}
	}

	return mids, nil
}

// FetchInstruments 拉取合约元数据，主要是数量精度。
func (c *Client) FetchInstruments(ctx context.Context) ([]instrument.Meta, error) {
	var markets map[string]ccxt.MarketInterface

	err := c.callWithRetry(ctx, "load_markets", func() error {
		result, err := c.exchange.LoadMarkets()
		if err != nil {
			return err
		}
		markets = result
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("exchange: 获取合约元数据失败: %w", err)
	}

	universe := make([]instrument.Meta, 0, len(markets))
	for symbol, market := range markets {
		coin := CoinFromSymbol(symbol)
		if coin == "" {
			continue
		}

		decimals := instrument.DefaultSizeDecimals
		if market.Info != nil {
			if v, ok := market.Info["szDecimals"]; ok {
				decimals = int(parseNumeric(v))
			}
		}

		universe = append(universe, instrument.Meta{
			Symbol:       coin,
			SizeDecimals: decimals,
		})
	}

	return universe, nil
}

func (c *Client) ensureMarketsLoaded(ctx context.Context) error {
	if c.marketsLoaded {
		return nil
	}

	c.marketsMu.Lock()
	defer c.marketsMu.Unlock()

	if c.marketsLoaded {
		return nil
	}

	loadErr := c.callWithRetry(ctx, "load_markets", func() error {
		_, err := c.exchange.LoadMarkets()
		return err
	})
	if loadErr != nil {
		return loadErr
	}

	c.marketsLoaded = true
	c.logger.Info("已完成市场元数据加载")
	return nil
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("交易所调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		normalizedErr, retry := classifyError(err)

		if errors.Is(normalizedErr, ErrMaintenance) {
			c.logger.Warn("交易所维护中",
				zap.String("operation", operation),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		if !retry || attempt >= c.cfg.Retry.MaxAttempts {
			c.logger.Error("交易所调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		c.logger.Warn("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(normalizedErr),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func classifyError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		switch ccxtErr.Type {
		case ccxt.NetworkErrorErrType,
			ccxt.RequestTimeoutErrType,
			ccxt.ExchangeNotAvailableErrType,
			ccxt.RateLimitExceededErrType,
			ccxt.DDoSProtectionErrType,
			ccxt.BadResponseErrType,
			ccxt.NullResponseErrType:
			return err, true
		case ccxt.OnMaintenanceErrType:
			message := strings.TrimSpace(ccxtErr.Message)
			if message == "" {
				message = "exchange under maintenance"
			}
			return fmt.Errorf("%w: %s", ErrMaintenance, message), false
		default:
			return err, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return err, true
	}

	return err, false
}
