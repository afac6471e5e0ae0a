package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KNICEX/position-guard/internal/service/exchange"
	"github.com/KNICEX/position-guard/pkg/decimalx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var testFilter = exchange.SymbolFilter{
	TickSize: decimalx.MustFromString("0.01"),
	StepSize: decimalx.MustFromString("0.001"),
}

func bandWithWidth(interval exchange.Interval, widthPercent float64) BandSnapshot {
	// middle=100 时 upper = 100 + width 即带宽为 widthPercent%
	return BandSnapshot{
		Interval: interval,
		Middle:   decimal.NewFromInt(100),
		Upper:    decimal.NewFromInt(100).Add(decimal.NewFromFloat(widthPercent)),
		Lower:    decimal.NewFromInt(100).Sub(decimal.NewFromFloat(widthPercent)),
	}
}

func longPosition(entry string, qty string) *exchange.Position {
	return &exchange.Position{
		TradingPair:  exchange.TradingPair{Base: "ETH", Quote: "USDT"},
		PositionSide: exchange.PositionSideLong,
		EntryPrice:   decimalx.MustFromString(entry),
		Quantity:     decimalx.MustFromString(qty),
	}
}

func TestPlanFromBandsLongLevels(t *testing.T) {
	// entry=3000, x=3.0%, LONG:
	// 止损 2970, 止盈触发 3089.7, 止盈限价 3090, 升级触发 3049.5
	plan, ok := PlanFromBands(
		longPosition("3000", "0.1234"),
		[]BandSnapshot{bandWithWidth(exchange.Interval1m, 3.0)},
		testFilter,
	)
	assert.True(t, ok)
	assert.Equal(t, "2970", plan.StopLossLimit.String())
	assert.Equal(t, "3089.7", plan.TakeProfitTrigger.String())
	assert.Equal(t, "3090", plan.TakeProfitLimit.String())
	assert.Equal(t, "3049.5", plan.EscalationTrigger.String())
	assert.Equal(t, "0.123", plan.Quantity.String())
	assert.True(t, plan.WidthPercent.Equal(decimal.NewFromInt(3)))
}

func TestPlanFromBandsShortMirror(t *testing.T) {
	position := &exchange.Position{
		TradingPair:  exchange.TradingPair{Base: "ETH", Quote: "USDT"},
		PositionSide: exchange.PositionSideShort,
		EntryPrice:   decimalx.MustFromString("3000"),
		Quantity:     decimalx.MustFromString("0.5"),
	}
	plan, ok := PlanFromBands(position, []BandSnapshot{bandWithWidth(exchange.Interval1m, 3.0)}, testFilter)
	assert.True(t, ok)
	assert.Equal(t, "3030", plan.StopLossLimit.String())
	assert.Equal(t, "2910.3", plan.TakeProfitTrigger.String())
	assert.Equal(t, "2910", plan.TakeProfitLimit.String())
	assert.Equal(t, "2950.5", plan.EscalationTrigger.String())
}

func TestPlanPriceOrdering(t *testing.T) {
	testCases := []struct {
		name  string
		side  exchange.PositionSide
		width float64
	}{
		{name: "LONG 最小带宽", side: exchange.PositionSideLong, width: 2.0},
		{name: "LONG 大带宽", side: exchange.PositionSideLong, width: 7.5},
		{name: "SHORT 最小带宽", side: exchange.PositionSideShort, width: 2.0},
		{name: "SHORT 大带宽", side: exchange.PositionSideShort, width: 7.5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			position := &exchange.Position{
				PositionSide: tc.side,
				EntryPrice:   decimalx.MustFromString("2500"),
				Quantity:     decimalx.MustFromString("1"),
			}
			plan, ok := PlanFromBands(position, []BandSnapshot{bandWithWidth(exchange.Interval1m, tc.width)}, testFilter)
			assert.True(t, ok)

			entry := position.EntryPrice
			if tc.side == exchange.PositionSideLong {
				// stopLoss < entry < escalation < tpTrigger <= tpLimit
				assert.True(t, plan.StopLossLimit.LessThan(entry))
				assert.True(t, entry.LessThan(plan.EscalationTrigger))
				assert.True(t, plan.EscalationTrigger.LessThan(plan.TakeProfitTrigger))
				assert.True(t, plan.TakeProfitTrigger.LessThanOrEqual(plan.TakeProfitLimit))
			} else {
				assert.True(t, plan.StopLossLimit.GreaterThan(entry))
				assert.True(t, entry.GreaterThan(plan.EscalationTrigger))
				assert.True(t, plan.EscalationTrigger.GreaterThan(plan.TakeProfitTrigger))
				assert.True(t, plan.TakeProfitTrigger.GreaterThanOrEqual(plan.TakeProfitLimit))
			}
		})
	}
}

func TestPlanFromBandsFirstQualifyingInterval(t *testing.T) {
	bands := []BandSnapshot{
		bandWithWidth(exchange.Interval1m, 1.0),  // 未达标
		bandWithWidth(exchange.Interval3m, 2.5),  // 第一个达标
		bandWithWidth(exchange.Interval15m, 6.0), // 更宽但优先级更低
	}
	plan, ok := PlanFromBands(longPosition("3000", "1"), bands, testFilter)
	assert.True(t, ok)
	assert.True(t, plan.WidthPercent.Equal(decimalx.MustFromString("2.5")))
}

func TestPlanFromBandsNoQualifying(t *testing.T) {
	bands := []BandSnapshot{
		bandWithWidth(exchange.Interval1m, 0.5),
		bandWithWidth(exchange.Interval1h, 1.99),
	}
	_, ok := PlanFromBands(longPosition("3000", "1"), bands, testFilter)
	assert.False(t, ok)

	// 中轨为零的周期跳过而不是除零
	_, ok = PlanFromBands(longPosition("3000", "1"), []BandSnapshot{{Interval: exchange.Interval1m}}, testFilter)
	assert.False(t, ok)
}

func TestPlanFromBandsIdempotent(t *testing.T) {
	bands := []BandSnapshot{bandWithWidth(exchange.Interval5m, 3.3)}
	position := longPosition("1875.42", "2.71828")

	first, ok1 := PlanFromBands(position, bands, testFilter)
	second, ok2 := PlanFromBands(position, bands, testFilter)
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.True(t, first.StopLossLimit.Equal(second.StopLossLimit))
	assert.True(t, first.TakeProfitTrigger.Equal(second.TakeProfitTrigger))
	assert.True(t, first.TakeProfitLimit.Equal(second.TakeProfitLimit))
	assert.True(t, first.EscalationTrigger.Equal(second.EscalationTrigger))
	assert.True(t, first.Quantity.Equal(second.Quantity))
}

func TestEscalationTrigger(t *testing.T) {
	long := EscalationTrigger(exchange.PositionSideLong,
		decimalx.MustFromString("3000"), decimal.NewFromInt(3), testFilter)
	assert.Equal(t, "3049.5", long.String())

	short := EscalationTrigger(exchange.PositionSideShort,
		decimalx.MustFromString("3000"), decimal.NewFromInt(3), testFilter)
	assert.Equal(t, "2950.5", short.String())
}

// ============ PlanCalculator ============

type mockMarketService struct {
	mock.Mock
}

func (m *mockMarketService) ServerTime(ctx context.Context) (tm time.Time, err error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *mockMarketService) GetKlines(ctx context.Context, req exchange.GetKlinesReq) ([]exchange.Kline, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]exchange.Kline), args.Error(1)
}

func (m *mockMarketService) SubscribeKline(ctx context.Context, tradingPair exchange.TradingPair, interval exchange.Interval) (<-chan exchange.Kline, error) {
	args := m.Called(ctx, tradingPair, interval)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan exchange.Kline), args.Error(1)
}

func TestPlanCalculatorSkipsFailedIntervals(t *testing.T) {
	position := longPosition("100", "1")
	marketSvc := new(mockMarketService)

	// 高波动K线：交替 90/110，带宽约 20%
	volatile := make([]float64, 200)
	for i := range volatile {
		if i%2 == 0 {
			volatile[i] = 90
		} else {
			volatile[i] = 110
		}
	}

	for _, interval := range ScanIntervals {
		req := exchange.GetKlinesReq{
			TradingPair: position.TradingPair,
			Interval:    interval,
			Limit:       KlineFetchLimit,
		}
		switch interval {
		case exchange.Interval1m:
			// 拉取失败：跳过该周期而非中止
			marketSvc.On("GetKlines", mock.Anything, req).Return(nil, errors.New("timeout")).Once()
		case exchange.Interval3m:
			// 数据不足：同样跳过
			marketSvc.On("GetKlines", mock.Anything, req).Return(makeKlines(repeatCloses(100, 50), true), nil).Once()
		case exchange.Interval5m:
			marketSvc.On("GetKlines", mock.Anything, req).Return(makeKlines(volatile, true), nil).Once()
		default:
			marketSvc.On("GetKlines", mock.Anything, req).Return(makeKlines(repeatCloses(100, 200), true), nil).Once()
		}
	}

	calc := NewPlanCalculator(marketSvc, testFilter)
	plan, ok := calc.ComputePlan(context.Background(), position)
	assert.True(t, ok)
	assert.True(t, plan.WidthPercent.GreaterThan(MinWidthPercent))
	marketSvc.AssertExpectations(t)
}

func TestPlanCalculatorNoQualifyingSteadyState(t *testing.T) {
	position := longPosition("100", "1")
	marketSvc := new(mockMarketService)
	// 所有周期都是平盘，带宽为 0
	marketSvc.On("GetKlines", mock.Anything, mock.Anything).
		Return(makeKlines(repeatCloses(100, 200), true), nil)

	calc := NewPlanCalculator(marketSvc, testFilter)
	_, ok := calc.ComputePlan(context.Background(), position)
	assert.False(t, ok)
}
