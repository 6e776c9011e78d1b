package signal

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"copy-trader/internal/exchange"
)

type positionFetcher interface {
	FetchPositions(ctx context.Context, user string) ([]exchange.Position, error)
}

// Source 轮询信号源地址的链上仓位并产出变化事件。
type Source struct {
	client   positionFetcher
	provider string
	tracker  *Tracker
	logger   *zap.Logger
}

// NewSource 创建信号源。provider 是被跟单账户的钱包地址。
func NewSource(client positionFetcher, provider string, logger *zap.Logger) (*Source, error) {
	if client == nil {
		return nil, fmt.Errorf("signal: 缺少交易所客户端")
	}
	if provider == "" {
		return nil, fmt.Errorf("signal: 缺少信号源地址")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		client:   client,
		provider: provider,
		tracker:  NewTracker(logger),
		logger:   logger,
	}, nil
}

// Provider 返回信号源地址。
func (s *Source) Provider() string {
	return s.provider
}

// Poll 拉取一次信号源仓位并返回变化事件。
func (s *Source) Poll(ctx context.Context) ([]Event, error) {
	positions, err := s.client.FetchPositions(ctx, s.provider)
	if err != nil {
		return nil, fmt.Errorf("signal: 获取信号源仓位失败: %w", err)
	}
	return s.tracker.Observe(positions), nil
}

// Positions 拉取信号源当前仓位,不产生事件,供一次性对齐模式使用。
func (s *Source) Positions(ctx context.Context) ([]exchange.Position, error) {
	positions, err := s.client.FetchPositions(ctx, s.provider)
	if err != nil {
		return nil, fmt.Errorf("signal: 获取信号源仓位失败: %w", err)
	}
	return positions, nil
}
