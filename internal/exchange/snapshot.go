package exchange

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"copy-trader/internal/instrument"
)

// Snapshot 聚合一轮决策所需的全部市场与账户数据。
// 每轮重新拉取，不跨决策缓存。
type Snapshot struct {
	Account     AccountState
	Positions   []Position
	MidPrices   map[string]float64
	Universe    []instrument.Meta
	RetrievedAt time.Time
}

// PositionFor 返回指定币种的持仓，空仓时返回 nil。
func (s Snapshot) PositionFor(coin string) *Position {
	for i := range s.Positions {
		if s.Positions[i].Coin == coin {
			return &s.Positions[i]
		}
	}
	return nil
}

// SnapshotService 并发拉取账户、持仓、中间价与合约元数据。
type SnapshotService struct {
	client *Client
	logger *zap.Logger
}

// NewSnapshotService 创建快照服务。
func NewSnapshotService(client *Client, logger *zap.Logger) *SnapshotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotService{
		client: client,
		logger: logger,
	}
}

// GetSnapshot 拉取跟单账户的完整决策上下文。
func (s *SnapshotService) GetSnapshot(ctx context.Context) (Snapshot, error) {
	var (
		account   AccountState
		positions []Position
		mids      map[string]float64
		universe  []instrument.Meta
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		state, err := s.client.FetchAccountState(groupCtx)
		if err != nil {
			return err
		}
		account = state
		return nil
	})

	group.Go(func() error {
		result, err := s.client.FetchPositions(groupCtx, "")
		if err != nil {
			return err
		}
		positions = result
		return nil
	})

	group.Go(func() error {
		result, err := s.client.FetchMidPrices(groupCtx)
		if err != nil {
			return err
		}
		mids = result
		return nil
	})

	group.Go(func() error {
		result, err := s.client.FetchInstruments(groupCtx)
		if err != nil {
			return err
		}
		universe = result
		return nil
	})

	if err := group.Wait(); err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		Account:     account,
		Positions:   positions,
		MidPrices:   mids,
		Universe:    universe,
		RetrievedAt: time.Now().UTC(),
	}

	s.logger.Debug("决策上下文快照获取完成",
		zap.Time("retrieved_at", snapshot.RetrievedAt),
		zap.Float64("account_value", account.AccountValue),
		zap.Float64("available_margin", account.AvailableMargin()),
		zap.Int("positions", len(positions)),
		zap.Int("instruments", len(universe)),
	)

	return snapshot, nil
}
