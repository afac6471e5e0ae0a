package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// https://developers.binance.com/docs/zh-CN/derivatives/usds-margined-futures/trade/rest-api

// TradingPair 交易对
type TradingPair struct {
	Base  string
	Quote string
}

func SplitSymbol(s string) (string, string) {
	s = strings.ToUpper(s)
	// 常见 Quote 列表
	quotes := []string{"USDT", "BUSD", "USDC", "BTC", "ETH"}
	for _, q := range quotes {
		if strings.HasSuffix(s, q) {
			return strings.TrimSuffix(s, q), q
		}
	}
	// fallback
	return s, ""
}

func (s *TradingPair) IsZero() bool {
	return s.Base == "" || s.Quote == ""
}

func (s *TradingPair) ToString() string {
	return fmt.Sprintf("%s%s", s.Base, s.Quote)
}

func (s *TradingPair) ToSlashString() string {
	return fmt.Sprintf("%s/%s", s.Base, s.Quote)
}

type Interval string

func (i Interval) ToString() string {
	return string(i)
}

const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
)

type Kline struct {
	OpenTime  time.Time
	CloseTime time.Time
	Open      decimal.Decimal
	Close     decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Volume    decimal.Decimal // 成交量
	Closed    bool            // 该K线是否已收盘
}

// SymbolFilter 交易所价格/数量粒度，启动时获取一次并缓存
type SymbolFilter struct {
	TickSize decimal.Decimal
	StepSize decimal.Decimal
}

func (f SymbolFilter) IsZero() bool {
	return f.TickSize.IsZero() || f.StepSize.IsZero()
}

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

type PositionSide string

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

// CloseOrderSide 根据持仓方向获取平仓订单方向
func (ps PositionSide) CloseOrderSide() Side {
	switch ps {
	case PositionSideLong:
		return Sell // 多头平仓用卖单
	case PositionSideShort:
		return Buy // 空头平仓用买单
	default:
		return Sell
	}
}

// Position 当前持仓快照，只读，每次轮询重新获取
type Position struct {
	TradingPair  TradingPair
	PositionSide PositionSide
	EntryPrice   decimal.Decimal
	Quantity     decimal.Decimal // 恒为正数
	UpdatedAt    time.Time
}

type OrderId string

func (id OrderId) IsZero() bool {
	return id == ""
}

func (id OrderId) ToString() string {
	return string(id)
}

type OrderType string

const (
	OrderTypeLimit      OrderType = "LIMIT"
	OrderTypeStopLimit  OrderType = "STOP"
	OrderTypeStopMarket OrderType = "STOP_MARKET"
)

type CreateOrderReq struct {
	TradingPair TradingPair
	Side        Side
	Type        OrderType
	Quantity    decimal.Decimal
	Price       decimal.Decimal // LIMIT / STOP 时有效
	StopPrice   decimal.Decimal // STOP / STOP_MARKET 触发价
	ReduceOnly  bool
}

type GetKlinesReq struct {
	TradingPair TradingPair
	Interval    Interval
	Limit       int
}

type MarketService interface {
	// ServerTime 返回服务端时间，实现方应同时校准后续签名请求用的时间偏移
	ServerTime(ctx context.Context) (time.Time, error)
	GetKlines(ctx context.Context, req GetKlinesReq) ([]Kline, error)
	// SubscribeKline 订阅已收盘K线，连接断开时关闭返回的 channel，由调用方重新订阅
	SubscribeKline(ctx context.Context, tradingPair TradingPair, interval Interval) (<-chan Kline, error)
}

type SymbolService interface {
	GetSymbolFilter(ctx context.Context, tradingPair TradingPair) (SymbolFilter, error)
}

type PositionService interface {
	// GetActivePosition 获取指定交易对持仓，无持仓时返回 nil
	GetActivePosition(ctx context.Context, tradingPair TradingPair) (*Position, error)
}

type OrderService interface {
	CreateOrder(ctx context.Context, req CreateOrderReq) (OrderId, error)
	// CancelAllOpenOrders 撤销交易对全部挂单，返回撤单数量
	CancelAllOpenOrders(ctx context.Context, tradingPair TradingPair) (int, error)
}
