package binance

import (
	"context"
	"log/slog"
	"time"

	"github.com/KNICEX/position-guard/internal/service/exchange"
	"github.com/adshao/go-binance/v2/futures"
)

var _ exchange.MarketService = (*MarketService)(nil)

type MarketService struct {
	cli *futures.Client
}

// NewMarketService 创建市场数据服务
func NewMarketService(cli *futures.Client) *MarketService {
	return &MarketService{cli: cli}
}

// ServerTime 同步本地与服务端的时间偏移并返回服务端时间，
// 同步后的偏移量供客户端后续签名请求使用
func (m *MarketService) ServerTime(ctx context.Context) (time.Time, error) {
	offset, err := withRetry(ctx, "sync server time", func(ctx context.Context) (int64, error) {
		return m.cli.NewSetServerTimeService().Do(ctx)
	})
	if err != nil {
		return time.Time{}, err
	}
	return time.Now().Add(time.Duration(offset) * time.Millisecond), nil
}

func (m *MarketService) convertKlines(klines []*futures.Kline) []exchange.Kline {
	now := time.Now()
	kls := make([]exchange.Kline, len(klines))
	for i, k := range klines {
		closeTime := time.UnixMilli(k.CloseTime)
		kls[i] = exchange.Kline{
			OpenTime:  time.UnixMilli(k.OpenTime),
			CloseTime: closeTime,
			Open:      mustDecimal(k.Open),
			Close:     mustDecimal(k.Close),
			High:      mustDecimal(k.High),
			Low:       mustDecimal(k.Low),
			Volume:    mustDecimal(k.Volume),
			// REST 返回的最后一根K线通常尚未收盘
			Closed: closeTime.Before(now),
		}
	}
	return kls
}

func (m *MarketService) GetKlines(ctx context.Context, req exchange.GetKlinesReq) ([]exchange.Kline, error) {
	res, err := withRetry(ctx, "get klines", func(ctx context.Context) ([]*futures.Kline, error) {
		svc := m.cli.NewKlinesService().
			Symbol(req.TradingPair.ToString()). // 币安合约API使用 BTCUSDT 格式，不是 BTC/USDT
			Interval(req.Interval.ToString())
		if req.Limit > 0 {
			svc.Limit(req.Limit)
		}
		return svc.Do(ctx)
	})
	if err != nil {
		return nil, err
	}
	return m.convertKlines(res), nil
}

// SubscribeKline 通过币安合约 websocket 订阅K线，只向 channel 转发已收盘的K线。
// 连接断开时关闭 channel，重连由调用方以相同参数重新订阅完成。
func (m *MarketService) SubscribeKline(ctx context.Context, tradingPair exchange.TradingPair, interval exchange.Interval) (<-chan exchange.Kline, error) {
	ch := make(chan exchange.Kline, 16)

	wsHandler := func(event *futures.WsKlineEvent) {
		if !event.Kline.IsFinal {
			return
		}
		k := exchange.Kline{
			OpenTime:  time.UnixMilli(event.Kline.StartTime),
			CloseTime: time.UnixMilli(event.Kline.EndTime),
			Open:      mustDecimal(event.Kline.Open),
			Close:     mustDecimal(event.Kline.Close),
			High:      mustDecimal(event.Kline.High),
			Low:       mustDecimal(event.Kline.Low),
			Volume:    mustDecimal(event.Kline.Volume),
			Closed:    true,
		}
		select {
		case ch <- k:
		case <-ctx.Done():
		}
	}
	errHandler := func(err error) {
		slog.Error("kline stream error", "pair", tradingPair.ToString(), "interval", interval, "error", err)
	}

	doneC, stopC, err := futures.WsKlineServe(tradingPair.ToString(), interval.ToString(), wsHandler, errHandler)
	if err != nil {
		return nil, err
	}

	go func() {
		defer close(ch)
		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
		case <-doneC:
			// 连接断开，channel 关闭后由调用方重连
		}
	}()

	return ch, nil
}
