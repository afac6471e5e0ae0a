package protection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KNICEX/position-guard/internal/service/exchange"
	"github.com/KNICEX/position-guard/internal/service/strategy"
)

// OrderManager 保护单状态机。每个保护周期内恰好撤一次旧单、下一组新单：
// 下单由状态迁移把关，已 PROTECTED 时不会因中途轮询失败而重复下单
type OrderManager struct {
	pair        exchange.TradingPair
	orderSvc    exchange.OrderService
	positionSvc exchange.PositionService
	filter      exchange.SymbolFilter

	state LifecycleState
	plan  *strategy.OrderPlan
}

func NewOrderManager(
	pair exchange.TradingPair,
	orderSvc exchange.OrderService,
	positionSvc exchange.PositionService,
	filter exchange.SymbolFilter,
) *OrderManager {
	return &OrderManager{
		pair:        pair,
		orderSvc:    orderSvc,
		positionSvc: positionSvc,
		filter:      filter,
		state:       StateIdle,
	}
}

func (m *OrderManager) State() LifecycleState {
	return m.state
}

// Plan 当前周期的订单计划，PROTECTED 之后不可变
func (m *OrderManager) Plan() (strategy.OrderPlan, bool) {
	if m.plan == nil {
		return strategy.OrderPlan{}, false
	}
	return *m.plan, true
}

// Protect IDLE 状态下撤掉历史挂单并下出止损/止盈单。
// 非 IDLE 状态为 no-op；任一步失败保持 IDLE，下个轮询重试
func (m *OrderManager) Protect(ctx context.Context, position *exchange.Position, plan strategy.OrderPlan) error {
	if m.state != StateIdle {
		return nil
	}

	// 先撤掉上个保护周期或人工操作留下的挂单
	cancelled, err := m.orderSvc.CancelAllOpenOrders(ctx, m.pair)
	if err != nil {
		return fmt.Errorf("cancel stale orders: %w", err)
	}
	if cancelled > 0 {
		slog.Info("cancelled stale open orders", "pair", m.pair.ToString(), "count", cancelled)
	}

	// 撤单后、下单前重读持仓：计算和撤单期间仓位可能已变化
	current, err := m.positionSvc.GetActivePosition(ctx, m.pair)
	if err != nil {
		return fmt.Errorf("recheck position: %w", err)
	}
	if current == nil ||
		current.PositionSide != position.PositionSide ||
		!current.Quantity.Equal(position.Quantity) {
		slog.Warn("position changed before placement, abort cycle",
			"pair", m.pair.ToString())
		return nil
	}

	closeSide := position.PositionSide.CloseOrderSide()

	slOrderId, err := m.orderSvc.CreateOrder(ctx, exchange.CreateOrderReq{
		TradingPair: m.pair,
		Side:        closeSide,
		Type:        exchange.OrderTypeStopLimit,
		Quantity:    plan.Quantity,
		Price:       plan.StopLossLimit,
		StopPrice:   plan.StopLossLimit,
		ReduceOnly:  true,
	})
	if err != nil {
		return fmt.Errorf("place stop-loss order: %w", err)
	}

	tpOrderId, err := m.orderSvc.CreateOrder(ctx, exchange.CreateOrderReq{
		TradingPair: m.pair,
		Side:        closeSide,
		Type:        exchange.OrderTypeLimit,
		Quantity:    plan.Quantity,
		Price:       plan.TakeProfitLimit,
		ReduceOnly:  true,
	})
	if err != nil {
		return fmt.Errorf("place take-profit order: %w", err)
	}

	m.plan = &plan
	m.state = StateProtected
	slog.Info("protective orders placed",
		"pair", m.pair.ToString(),
		"side", position.PositionSide,
		"stopLossOrder", slOrderId,
		"stopLossPrice", plan.StopLossLimit,
		"takeProfitOrder", tpOrderId,
		"takeProfitPrice", plan.TakeProfitLimit,
		"widthPercent", plan.WidthPercent.StringFixed(4))
	return nil
}

// MarkWatcherStarted 协调器启动触发监听器后调用
func (m *OrderManager) MarkWatcherStarted() {
	if m.state == StateProtected {
		m.state = StateAwaitingTrigger
	}
}

// HandleFlat 观察到平仓：撤掉剩余挂单并回到 IDLE，开始新周期
func (m *OrderManager) HandleFlat(ctx context.Context) error {
	if m.state == StateIdle {
		return nil
	}
	cancelled, err := m.orderSvc.CancelAllOpenOrders(ctx, m.pair)
	if err != nil {
		return fmt.Errorf("cancel remaining orders: %w", err)
	}
	slog.Info("position closed, cycle reset",
		"pair", m.pair.ToString(), "cancelledOrders", cancelled)
	m.state = StateIdle
	m.plan = nil
	return nil
}
