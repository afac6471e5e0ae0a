package binance

import (
	"github.com/KNICEX/position-guard/internal/service/exchange"
	"github.com/adshao/go-binance/v2/futures"
)

type Service struct {
	marketSvc   exchange.MarketService
	symbolSvc   exchange.SymbolService
	positionSvc exchange.PositionService
	orderSvc    exchange.OrderService
}

func NewService(cli *futures.Client) *Service {
	return &Service{
		marketSvc:   NewMarketService(cli),
		symbolSvc:   NewSymbolService(cli),
		positionSvc: NewPositionService(cli),
		orderSvc:    NewOrderService(cli),
	}
}

func (s *Service) MarketService() exchange.MarketService {
	return s.marketSvc
}

func (s *Service) SymbolService() exchange.SymbolService {
	return s.symbolSvc
}

func (s *Service) PositionService() exchange.PositionService {
	return s.positionSvc
}

func (s *Service) OrderService() exchange.OrderService {
	return s.orderSvc
}
