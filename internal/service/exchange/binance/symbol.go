package binance

import (
	"context"
	"fmt"

	"github.com/KNICEX/position-guard/internal/service/exchange"
	"github.com/adshao/go-binance/v2/futures"
)

var _ exchange.SymbolService = (*SymbolService)(nil)

type SymbolService struct {
	cli *futures.Client
}

func NewSymbolService(cli *futures.Client) *SymbolService {
	return &SymbolService{cli: cli}
}

// GetSymbolFilter 获取交易对的价格/数量精度过滤器
func (s *SymbolService) GetSymbolFilter(ctx context.Context, tradingPair exchange.TradingPair) (exchange.SymbolFilter, error) {
	info, err := withRetry(ctx, "exchange info", func(ctx context.Context) (*futures.ExchangeInfo, error) {
		return s.cli.NewExchangeInfoService().Do(ctx)
	})
	if err != nil {
		return exchange.SymbolFilter{}, err
	}

	for i := range info.Symbols {
		sym := info.Symbols[i]
		if sym.Symbol != tradingPair.ToString() {
			continue
		}
		priceFilter := sym.PriceFilter()
		lotFilter := sym.LotSizeFilter()
		if priceFilter == nil || lotFilter == nil {
			return exchange.SymbolFilter{}, fmt.Errorf("symbol %s missing price/lot filter", sym.Symbol)
		}
		return exchange.SymbolFilter{
			TickSize: mustDecimal(priceFilter.TickSize),
			StepSize: mustDecimal(lotFilter.StepSize),
		}, nil
	}
	return exchange.SymbolFilter{}, fmt.Errorf("symbol %s not found", tradingPair.ToString())
}
