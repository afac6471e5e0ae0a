package protection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KNICEX/position-guard/internal/repo"
	"github.com/KNICEX/position-guard/internal/service/exchange"
	"github.com/KNICEX/position-guard/internal/service/notification"
	"github.com/KNICEX/position-guard/internal/service/strategy"
	"github.com/KNICEX/position-guard/pkg/decimalx"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
)

// watchInterval 触发监听器订阅的K线周期
const watchInterval = exchange.Interval1m

// TriggerWatcher 一次性升级监听器：订阅实时K线，第一根收盘价越过升级触发价的
// K线出现时，下一张 reduce-only 市价止损单然后退出。无论下单成败都不重试，
// 重试的代价（重复市价平仓）高于错过一根K线
type TriggerWatcher struct {
	pair        exchange.TradingPair
	side        exchange.PositionSide
	trigger     decimal.Decimal
	marketSvc   exchange.MarketService
	positionSvc exchange.PositionService
	orderSvc    exchange.OrderService
	filter      exchange.SymbolFilter

	reconnect *backoff.Backoff
	notifier  notification.Service
	repo      repo.ProtectionRepo
	cycleId   int64
}

type WatcherOption func(w *TriggerWatcher)

func WithWatcherNotifier(notifier notification.Service) WatcherOption {
	return func(w *TriggerWatcher) {
		w.notifier = notifier
	}
}

// WithCycleRecord 升级下单后更新对应审计记录
func WithCycleRecord(protectionRepo repo.ProtectionRepo, cycleId int64) WatcherOption {
	return func(w *TriggerWatcher) {
		w.repo = protectionRepo
		w.cycleId = cycleId
	}
}

func NewTriggerWatcher(
	pair exchange.TradingPair,
	tc TriggerContext,
	marketSvc exchange.MarketService,
	positionSvc exchange.PositionService,
	orderSvc exchange.OrderService,
	filter exchange.SymbolFilter,
	opts ...WatcherOption,
) *TriggerWatcher {
	w := &TriggerWatcher{
		pair:        pair,
		side:        tc.Side,
		trigger:     strategy.EscalationTrigger(tc.Side, tc.EntryPrice, tc.WidthPercent, filter),
		marketSvc:   marketSvc,
		positionSvc: positionSvc,
		orderSvc:    orderSvc,
		filter:      filter,
		reconnect: &backoff.Backoff{
			Min:    5 * time.Second,
			Max:    30 * time.Second,
			Factor: 2,
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run 阻塞直到完成一次升级动作或观察到平仓。
// 流断开时以相同参数重新订阅并继续监听
func (w *TriggerWatcher) Run(ctx context.Context) error {
	// 退出时终止K线订阅，websocket 连接不随保护周期累积
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slog.Info("trigger watcher started",
		"pair", w.pair.ToString(),
		"side", w.side,
		"trigger", w.trigger)

	for {
		ch, err := w.marketSvc.SubscribeKline(ctx, w.pair, watchInterval)
		if err != nil {
			slog.Error("subscribe kline failed", "pair", w.pair.ToString(), "error", err)
			if !w.waitReconnect(ctx) {
				return ctx.Err()
			}
			continue
		}
		w.reconnect.Reset()

		done := w.consume(ctx, ch)
		if done {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("kline stream disconnected, resubscribing", "pair", w.pair.ToString())
		if !w.waitReconnect(ctx) {
			return ctx.Err()
		}
	}
}

// consume 处理一条订阅流直到其关闭；返回 true 表示监听器生命周期结束
func (w *TriggerWatcher) consume(ctx context.Context, ch <-chan exchange.Kline) bool {
	for kline := range ch {
		if !kline.Closed {
			continue
		}
		slog.Info("candle closed",
			"pair", w.pair.ToString(),
			"closeTime", kline.CloseTime.Format(time.DateTime),
			"close", kline.Close)

		position, err := w.positionSvc.GetActivePosition(ctx, w.pair)
		if err != nil {
			// 本根K线跳过：按过期数量下平仓单可能超出实际持仓
			slog.Warn("get position failed, skip candle", "error", err)
			continue
		}
		if position == nil {
			slog.Info("position flat, trigger watcher exiting", "pair", w.pair.ToString())
			return true
		}

		if !w.crossed(kline.Close) {
			continue
		}
		w.escalate(ctx, position)
		return true
	}
	return false
}

func (w *TriggerWatcher) crossed(closePrice decimal.Decimal) bool {
	if w.side == exchange.PositionSideLong {
		return closePrice.GreaterThan(w.trigger)
	}
	return closePrice.LessThan(w.trigger)
}

// escalate 下出一次性的 reduce-only 市价止损单，失败只记录不重试
func (w *TriggerWatcher) escalate(ctx context.Context, position *exchange.Position) {
	quantity := decimalx.QuantizeStep(position.Quantity, w.filter.StepSize)
	orderId, err := w.orderSvc.CreateOrder(ctx, exchange.CreateOrderReq{
		TradingPair: w.pair,
		Side:        w.side.CloseOrderSide(),
		Type:        exchange.OrderTypeStopMarket,
		Quantity:    quantity,
		StopPrice:   w.trigger,
		ReduceOnly:  true,
	})
	if err != nil {
		slog.Error("escalation order rejected",
			"pair", w.pair.ToString(), "trigger", w.trigger, "error", err)
		return
	}

	slog.Info("escalation stop-market order placed",
		"pair", w.pair.ToString(),
		"order", orderId,
		"stopPrice", w.trigger,
		"quantity", quantity)

	if w.repo != nil {
		if err := w.repo.MarkEscalated(ctx, w.cycleId); err != nil {
			slog.Error("mark cycle escalated failed", "cycleId", w.cycleId, "error", err)
		}
	}
	if w.notifier != nil {
		if err := w.notifier.Send(ctx, fmt.Sprintf(
			"escalation triggered: %s %s stop-market @ %s",
			w.pair.ToSlashString(), w.side, w.trigger)); err != nil {
			slog.Error("notify escalation failed", "error", err)
		}
	}
}

func (w *TriggerWatcher) waitReconnect(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(w.reconnect.Duration()):
		return true
	}
}
