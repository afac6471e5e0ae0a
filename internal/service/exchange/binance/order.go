package binance

import (
	"context"
	"fmt"
	"strconv"

	"github.com/KNICEX/position-guard/internal/service/exchange"
	"github.com/adshao/go-binance/v2/futures"
)

var _ exchange.OrderService = (*OrderService)(nil)

type OrderService struct {
	cli *futures.Client
}

// NewOrderService 创建订单服务
func NewOrderService(cli *futures.Client) *OrderService {
	return &OrderService{cli: cli}
}

// CreateOrder 下单。价格/数量由调用方完成精度截断后以 decimal 字符串上送
func (o *OrderService) CreateOrder(ctx context.Context, req exchange.CreateOrderReq) (exchange.OrderId, error) {
	resp, err := once(ctx, "create order", func(ctx context.Context) (*futures.CreateOrderResponse, error) {
		svc := o.cli.NewCreateOrderService().
			Symbol(req.TradingPair.ToString()).
			Side(binanceSide(req.Side)).
			Type(binanceOrderType(req.Type)).
			Quantity(req.Quantity.String()).
			ReduceOnly(req.ReduceOnly)

		// STOP_MARKET 不接受 price/timeInForce
		switch req.Type {
		case exchange.OrderTypeLimit:
			svc.Price(req.Price.String()).TimeInForce(futures.TimeInForceTypeGTC)
		case exchange.OrderTypeStopLimit:
			svc.Price(req.Price.String()).
				StopPrice(req.StopPrice.String()).
				TimeInForce(futures.TimeInForceTypeGTC)
		case exchange.OrderTypeStopMarket:
			svc.StopPrice(req.StopPrice.String())
		default:
			return nil, fmt.Errorf("unsupported order type: %s", req.Type)
		}
		return svc.Do(ctx)
	})
	if err != nil {
		return "", err
	}
	return exchange.OrderId(strconv.FormatInt(resp.OrderID, 10)), nil
}

// CancelAllOpenOrders 撤销交易对全部挂单
// 币安的撤销接口不返回数量，先列出挂单统计
func (o *OrderService) CancelAllOpenOrders(ctx context.Context, tradingPair exchange.TradingPair) (int, error) {
	open, err := withRetry(ctx, "list open orders", func(ctx context.Context) ([]*futures.Order, error) {
		return o.cli.NewListOpenOrdersService().Symbol(tradingPair.ToString()).Do(ctx)
	})
	if err != nil {
		return 0, err
	}
	if len(open) == 0 {
		return 0, nil
	}

	_, err = withRetry(ctx, "cancel all open orders", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.cli.NewCancelAllOpenOrdersService().Symbol(tradingPair.ToString()).Do(ctx)
	})
	if err != nil {
		return 0, err
	}
	return len(open), nil
}
