package strategy

import (
	"github.com/KNICEX/position-guard/internal/service/exchange"
	"github.com/KNICEX/position-guard/pkg/decimalx"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	// BandPeriod 计算布林带所需的最小收盘K线数
	BandPeriod = 200
	// KlineFetchLimit 每次拉取的K线数，多取几根避免未收盘K线不够用
	KlineFetchLimit = 210
)

var stdDevMultiplier = decimal.NewFromInt(2)

// BandSnapshot 单个周期的布林带快照
type BandSnapshot struct {
	Interval exchange.Interval
	Middle   decimal.Decimal
	Upper    decimal.Decimal
	Lower    decimal.Decimal
}

// WidthPercent 中轨到上/下轨距离占中轨的百分比，作为波动率代理
func (b BandSnapshot) WidthPercent() decimal.Decimal {
	if b.Middle.IsZero() {
		return decimal.Zero
	}
	diffUpper := b.Upper.Sub(b.Middle).Abs()
	diffLower := b.Middle.Sub(b.Lower).Abs()
	return decimal.Max(diffUpper, diffLower).Div(b.Middle).Mul(decimal.NewFromInt(100))
}

// ComputeBands 用最近 200 根已收盘K线的收盘价计算布林带（均值 ± 2倍样本标准差）
// 不足 200 根时返回 false
func ComputeBands(interval exchange.Interval, klines []exchange.Kline) (BandSnapshot, bool) {
	closed := lo.Filter(klines, func(k exchange.Kline, _ int) bool {
		return k.Closed
	})
	if len(closed) < BandPeriod {
		return BandSnapshot{}, false
	}

	recent := closed[len(closed)-BandPeriod:]
	closes := lo.Map(recent, func(k exchange.Kline, _ int) decimal.Decimal {
		return k.Close
	})

	middle := decimalx.Mean(closes)
	halfWidth := decimalx.SampleStdDev(closes).Mul(stdDevMultiplier)
	return BandSnapshot{
		Interval: interval,
		Middle:   middle,
		Upper:    middle.Add(halfWidth),
		Lower:    middle.Sub(halfWidth),
	}, true
}
