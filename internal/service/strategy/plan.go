package strategy

import (
	"context"
	"log/slog"

	"github.com/KNICEX/position-guard/internal/service/exchange"
	"github.com/KNICEX/position-guard/pkg/decimalx"
	"github.com/shopspring/decimal"
)

// ScanIntervals 按固定优先级（由短到长）扫描，取第一个带宽达标的周期
var ScanIntervals = []exchange.Interval{
	exchange.Interval1m,
	exchange.Interval3m,
	exchange.Interval5m,
	exchange.Interval15m,
	exchange.Interval30m,
	exchange.Interval1h,
}

// MinWidthPercent 带宽达标门槛（百分比）
var MinWidthPercent = decimal.NewFromInt(2)

var (
	hundred = decimal.NewFromInt(100)
	three   = decimal.NewFromInt(3)
	// 止盈触发价相对止盈限价回缩 0.01 个百分点
	tpTriggerOffset = decimalx.MustFromString("0.01")
	// 升级触发价系数：带宽的 0.55 倍
	escalationCoefficient = decimalx.MustFromString("0.55")
)

// OrderPlan 一个保护周期内唯一的一组保护价位，计算后不可变
type OrderPlan struct {
	StopLossLimit     decimal.Decimal
	TakeProfitTrigger decimal.Decimal
	TakeProfitLimit   decimal.Decimal
	EscalationTrigger decimal.Decimal
	Quantity          decimal.Decimal
	WidthPercent      decimal.Decimal
}

// percentMove 返回 entry ± entry*(pct/100)，方向由 up 决定
func percentMove(entry, pct decimal.Decimal, up bool) decimal.Decimal {
	delta := pct.Div(hundred).Mul(entry)
	if up {
		return entry.Add(delta)
	}
	return entry.Sub(delta)
}

// EscalationTrigger 由 {方向, 开仓价, 带宽} 重新推导升级触发价并按 tick 截断。
// 触发监听器拿到的是这三个值而非绝对价格，精度总是按最新的交易所过滤器重算
func EscalationTrigger(side exchange.PositionSide, entryPrice, widthPercent decimal.Decimal, filter exchange.SymbolFilter) decimal.Decimal {
	pct := escalationCoefficient.Mul(widthPercent)
	price := percentMove(entryPrice, pct, side == exchange.PositionSideLong)
	return decimalx.QuantizeStep(price, filter.TickSize)
}

// PlanFromBands 纯函数：给定持仓和各周期布林带，推导订单计划。
// 按 ScanIntervals 顺序取第一个带宽 >= 2% 的周期；都不达标返回 false
func PlanFromBands(position *exchange.Position, bands []BandSnapshot, filter exchange.SymbolFilter) (OrderPlan, bool) {
	byInterval := make(map[exchange.Interval]BandSnapshot, len(bands))
	for _, b := range bands {
		byInterval[b.Interval] = b
	}

	for _, interval := range ScanIntervals {
		band, ok := byInterval[interval]
		if !ok || band.Middle.IsZero() {
			continue
		}
		width := band.WidthPercent()
		if width.LessThan(MinWidthPercent) {
			continue
		}
		return buildPlan(position, width, filter), true
	}
	return OrderPlan{}, false
}

// buildPlan 由选定带宽 x 和开仓价 e 推导四个价位：
// LONG: 止损 e-(x/3)%, 止盈触发 e+(x-0.01)%, 止盈限价 e+x%, 升级触发 e+0.55x%
// SHORT 为镜像。全部按 tick 向下截断，数量按 step 向下截断
func buildPlan(position *exchange.Position, width decimal.Decimal, filter exchange.SymbolFilter) OrderPlan {
	entry := position.EntryPrice
	long := position.PositionSide == exchange.PositionSideLong

	stopLoss := percentMove(entry, width.Div(three), !long)
	tpTrigger := percentMove(entry, width.Sub(tpTriggerOffset), long)
	tpLimit := percentMove(entry, width, long)

	return OrderPlan{
		StopLossLimit:     decimalx.QuantizeStep(stopLoss, filter.TickSize),
		TakeProfitTrigger: decimalx.QuantizeStep(tpTrigger, filter.TickSize),
		TakeProfitLimit:   decimalx.QuantizeStep(tpLimit, filter.TickSize),
		EscalationTrigger: EscalationTrigger(position.PositionSide, entry, width, filter),
		Quantity:          decimalx.QuantizeStep(position.Quantity, filter.StepSize),
		WidthPercent:      width,
	}
}

// PlanCalculator 拉取各周期K线并计算订单计划
type PlanCalculator struct {
	marketSvc exchange.MarketService
	filter    exchange.SymbolFilter
}

func NewPlanCalculator(marketSvc exchange.MarketService, filter exchange.SymbolFilter) *PlanCalculator {
	return &PlanCalculator{
		marketSvc: marketSvc,
		filter:    filter,
	}
}

// ComputePlan 扫描全部周期计算订单计划。
// 单个周期拉取失败或数据不足只是跳过该周期；没有达标周期返回 false，
// 这是正常稳态（等待波动放大），不是错误
func (c *PlanCalculator) ComputePlan(ctx context.Context, position *exchange.Position) (OrderPlan, bool) {
	bands := make([]BandSnapshot, 0, len(ScanIntervals))
	for _, interval := range ScanIntervals {
		klines, err := c.marketSvc.GetKlines(ctx, exchange.GetKlinesReq{
			TradingPair: position.TradingPair,
			Interval:    interval,
			Limit:       KlineFetchLimit,
		})
		if err != nil {
			slog.Warn("get klines failed, skip interval",
				"pair", position.TradingPair.ToString(), "interval", interval, "error", err)
			continue
		}
		band, ok := ComputeBands(interval, klines)
		if !ok {
			slog.Warn("not enough closed klines, skip interval",
				"pair", position.TradingPair.ToString(), "interval", interval)
			continue
		}
		if band.WidthPercent().GreaterThanOrEqual(MinWidthPercent) {
			slog.Info("band snapshot",
				"interval", interval,
				"middle", band.Middle.StringFixed(2),
				"upper", band.Upper.StringFixed(2),
				"lower", band.Lower.StringFixed(2))
		}
		bands = append(bands, band)
	}
	return PlanFromBands(position, bands, c.filter)
}
