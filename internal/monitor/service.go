package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"copy-trader/internal/exchange"
	"copy-trader/internal/limiter"
	"copy-trader/internal/rebalance"
	"copy-trader/internal/signal"
	"copy-trader/internal/store"
	"copy-trader/internal/trade"
)

// Service 负责持久化监控事件。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService 初始化监控服务，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("monitor: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     store.DB(),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS copy_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	coin TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_copy_events_type ON copy_events(event_type);
CREATE INDEX IF NOT EXISTS idx_copy_events_coin ON copy_events(coin);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("monitor: 初始化表失败: %w", err)
	}
	return nil
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, coin string, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("monitor: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO copy_events (event_type, coin, payload, created_at) VALUES (?, ?, ?, ?)`,
		string(event.Type), coin, string(payload), event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入事件失败: %w", err)
	}

	return nil
}

// RecordSignal 记录一次信号变化。
func (s *Service) RecordSignal(ctx context.Context, provider string, ev signal.Event) {
	if err := s.Record(ctx, ev.Coin, Event{
		Type:    EventSignal,
		Payload: SignalPayload{Provider: provider, Event: ev},
	}); err != nil {
		s.logger.Warn("记录信号事件失败", zap.Error(err))
	}
}

// RecordDecision 记录跟单决策。
func (s *Service) RecordDecision(ctx context.Context, decision trade.Decision, price float64) {
	if err := s.Record(ctx, decision.Coin, Event{
		Type:    EventDecision,
		Payload: DecisionPayload{Decision: decision, Price: price},
	}); err != nil {
		s.logger.Warn("记录决策事件失败", zap.Error(err))
	}
}

// RecordLimiterBlock 记录被风控拦截的交易。
func (s *Service) RecordLimiterBlock(ctx context.Context, coin string, tradeValue float64, verdict limiter.Verdict) {
	if err := s.Record(ctx, coin, Event{
		Type:    EventLimiterBlock,
		Payload: LimiterBlockPayload{Coin: coin, TradeValue: tradeValue, Verdict: verdict},
	}); err != nil {
		s.logger.Warn("记录风控拦截事件失败", zap.Error(err))
	}
}

// RecordExecution 记录订单执行结果。
func (s *Service) RecordExecution(ctx context.Context, decision trade.Decision, outcome trade.Outcome) {
	payload := ExecutionPayload{
		Decision:   decision,
		Status:     outcome.Status,
		FilledSize: outcome.FilledSize,
		AvgPrice:   outcome.AvgPrice,
		OrderID:    outcome.OrderID,
		Detail:     outcome.Reason,
	}
	if payload.Detail == "" && outcome.Err != nil {
		payload.Detail = outcome.Err.Error()
	}
	if err := s.Record(ctx, decision.Coin, Event{
		Type:    EventExecution,
		Payload: payload,
	}); err != nil {
		s.logger.Warn("记录执行事件失败", zap.Error(err))
	}
}

// RecordRebalance 记录仓位对齐计划。
func (s *Service) RecordRebalance(ctx context.Context, plan rebalance.Plan, position exchange.Position) {
	if err := s.Record(ctx, plan.Coin, Event{
		Type:    EventRebalance,
		Payload: RebalancePayload{Plan: plan, Position: position},
	}); err != nil {
		s.logger.Warn("记录对齐事件失败", zap.Error(err))
	}
}

// RecordError 记录异常。
func (s *Service) RecordError(ctx context.Context, msg string, err error, ctxMap map[string]interface{}) {
	payload := ErrorPayload{
		Message: msg,
		Context: ctxMap,
	}
	if err != nil {
		payload.Error = err.Error()
	}
	if recErr := s.Record(ctx, "", Event{
		Type:    EventError,
		Payload: payload,
	}); recErr != nil {
		s.logger.Warn("记录异常事件失败", zap.Error(recErr))
	}
}

// ListEvents 按类型检索最近事件。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_type, payload, created_at FROM copy_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			typ     string
			payload string
			created string
		)
		if scanErr := rows.Scan(&typ, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("monitor: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339, created)
		if parseErr != nil {
			ts = time.Now().UTC()
		}

		events = append(events, Event{
			Type:      EventType(typ),
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 读取事件失败: %w", err)
	}

	return events, nil
}
