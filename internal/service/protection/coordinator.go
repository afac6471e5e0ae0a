package protection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KNICEX/position-guard/internal/entity"
	"github.com/KNICEX/position-guard/internal/repo"
	"github.com/KNICEX/position-guard/internal/schedule"
	"github.com/KNICEX/position-guard/internal/service/exchange"
	"github.com/KNICEX/position-guard/internal/service/notification"
	"github.com/KNICEX/position-guard/internal/service/strategy"
)

var _ schedule.Task = (*Coordinator)(nil)

// Coordinator 保护流水线协调器。每次 Run 为一个轮询 tick：
// 刷新持仓 -> 计算订单计划 -> 驱动状态机 -> 首次 PROTECTED 时启动一个触发监听器。
// 每个保护周期至多一个监听器存活
type Coordinator struct {
	pair        exchange.TradingPair
	marketSvc   exchange.MarketService
	positionSvc exchange.PositionService
	orderSvc    exchange.OrderService
	filter      exchange.SymbolFilter

	calc    *strategy.PlanCalculator
	manager *OrderManager

	notifier       notification.Service
	protectionRepo repo.ProtectionRepo

	watcherLive bool
	cycleId     int64

	// 测试注入点
	spawnWatcher func(ctx context.Context, tc TriggerContext)
}

type Option func(c *Coordinator)

func WithNotifier(notifier notification.Service) Option {
	return func(c *Coordinator) {
		c.notifier = notifier
	}
}

func WithProtectionRepo(protectionRepo repo.ProtectionRepo) Option {
	return func(c *Coordinator) {
		c.protectionRepo = protectionRepo
	}
}

func NewCoordinator(
	pair exchange.TradingPair,
	marketSvc exchange.MarketService,
	positionSvc exchange.PositionService,
	orderSvc exchange.OrderService,
	filter exchange.SymbolFilter,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		pair:        pair,
		marketSvc:   marketSvc,
		positionSvc: positionSvc,
		orderSvc:    orderSvc,
		filter:      filter,
		calc:        strategy.NewPlanCalculator(marketSvc, filter),
		manager:     NewOrderManager(pair, orderSvc, positionSvc, filter),
	}
	c.spawnWatcher = c.startWatcher
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Name() string {
	return "position protection task"
}

// Run 单次轮询。认证失败作为致命错误上抛，其余失败记录后等待下个 tick
func (c *Coordinator) Run(ctx context.Context) error {
	position, err := c.positionSvc.GetActivePosition(ctx, c.pair)
	if err != nil {
		if exchange.IsAuthenticationError(err) {
			return err
		}
		slog.Warn("get position failed, skip tick", "pair", c.pair.ToString(), "error", err)
		return nil
	}

	if position == nil {
		return c.handleFlat(ctx)
	}

	// 已保护：只轮询等待平仓
	if c.manager.State() != StateIdle {
		return nil
	}

	plan, ok := c.calc.ComputePlan(ctx, position)
	if !ok {
		// 等待波动放大，正常稳态
		return nil
	}

	if err := c.manager.Protect(ctx, position, plan); err != nil {
		if exchange.IsAuthenticationError(err) {
			return err
		}
		slog.Error("place protective orders failed, retry next tick",
			"pair", c.pair.ToString(), "error", err)
		return nil
	}
	if c.manager.State() != StateProtected {
		// 仓位竞态中止，回到 IDLE 重新计算
		return nil
	}

	c.recordCycle(ctx, position, plan)
	c.notify(ctx, fmt.Sprintf("protective orders placed: %s %s entry=%s SL=%s TP=%s width=%s%%",
		c.pair.ToSlashString(), position.PositionSide, position.EntryPrice,
		plan.StopLossLimit, plan.TakeProfitLimit, plan.WidthPercent.StringFixed(2)))

	if !c.watcherLive {
		c.spawnWatcher(ctx, TriggerContext{
			Side:         position.PositionSide,
			EntryPrice:   position.EntryPrice,
			WidthPercent: plan.WidthPercent,
		})
		c.watcherLive = true
		c.manager.MarkWatcherStarted()
	}
	return nil
}

func (c *Coordinator) handleFlat(ctx context.Context) error {
	wasProtected := c.manager.State() != StateIdle
	if err := c.manager.HandleFlat(ctx); err != nil {
		if exchange.IsAuthenticationError(err) {
			return err
		}
		slog.Warn("cycle reset failed, retry next tick", "pair", c.pair.ToString(), "error", err)
		return nil
	}
	if !wasProtected {
		return nil
	}

	c.watcherLive = false
	if c.protectionRepo != nil && c.cycleId != 0 {
		if err := c.protectionRepo.MarkClosedIfProtected(ctx, c.cycleId); err != nil {
			slog.Error("mark cycle closed failed", "cycleId", c.cycleId, "error", err)
		}
		c.cycleId = 0
	}
	c.notify(ctx, fmt.Sprintf("position closed: %s, protection cycle reset", c.pair.ToSlashString()))
	return nil
}

// startWatcher 一次性移交 TriggerContext 后不再与监听器通信。
// 监听器自带生命周期，不随协调器的 ctx 取消（它唯一的退出路径是
// 完成升级动作或观察到平仓）
func (c *Coordinator) startWatcher(ctx context.Context, tc TriggerContext) {
	opts := []WatcherOption{}
	if c.notifier != nil {
		opts = append(opts, WithWatcherNotifier(c.notifier))
	}
	if c.protectionRepo != nil && c.cycleId != 0 {
		opts = append(opts, WithCycleRecord(c.protectionRepo, c.cycleId))
	}
	watcher := NewTriggerWatcher(c.pair, tc, c.marketSvc, c.positionSvc, c.orderSvc, c.filter, opts...)

	go func() {
		if err := watcher.Run(context.WithoutCancel(ctx)); err != nil {
			slog.Error("trigger watcher exited with error", "pair", c.pair.ToString(), "error", err)
		}
	}()
}

func (c *Coordinator) recordCycle(ctx context.Context, position *exchange.Position, plan strategy.OrderPlan) {
	if c.protectionRepo == nil {
		return
	}
	id, err := c.protectionRepo.Create(ctx, entity.ProtectionCycle{
		BaseSymbol:        c.pair.Base,
		QuoteSymbol:       c.pair.Quote,
		Side:              string(position.PositionSide),
		EntryPrice:        position.EntryPrice.String(),
		WidthPercent:      plan.WidthPercent.String(),
		StopLossPrice:     plan.StopLossLimit.String(),
		TakeProfitPrice:   plan.TakeProfitLimit.String(),
		EscalationTrigger: plan.EscalationTrigger.String(),
		Status:            entity.CycleStatusProtected,
	})
	if err != nil {
		slog.Error("save protection cycle failed", "pair", c.pair.ToString(), "error", err)
		return
	}
	c.cycleId = id
}

func (c *Coordinator) notify(ctx context.Context, text string) {
	if c.notifier == nil {
		return
	}
	// 通知失败不影响主流程
	go func() {
		if err := c.notifier.Send(ctx, text); err != nil {
			slog.Error("send notification failed", "error", err)
		}
	}()
}
