package binance

import (
	"context"
	"time"

	"github.com/KNICEX/position-guard/internal/service/exchange"
	"github.com/adshao/go-binance/v2/futures"
)

var _ exchange.PositionService = (*PositionService)(nil)

type PositionService struct {
	cli *futures.Client
}

// NewPositionService 创建持仓服务
func NewPositionService(cli *futures.Client) *PositionService {
	return &PositionService{cli: cli}
}

// GetActivePosition 获取指定交易对持仓快照，无持仓返回 nil
// notice: 币安有挂单时也会返回数量为 0 的仓位记录，需要过滤掉
func (p *PositionService) GetActivePosition(ctx context.Context, tradingPair exchange.TradingPair) (*exchange.Position, error) {
	risks, err := withRetry(ctx, "position risk", func(ctx context.Context) ([]*futures.PositionRisk, error) {
		return p.cli.NewGetPositionRiskService().Symbol(tradingPair.ToString()).Do(ctx)
	})
	if err != nil {
		return nil, err
	}

	for _, risk := range risks {
		if risk.Symbol != tradingPair.ToString() {
			continue
		}
		amount := mustDecimal(risk.PositionAmt)
		if amount.IsZero() {
			continue
		}
		side := exchange.PositionSideLong
		if amount.IsNegative() {
			side = exchange.PositionSideShort
		}
		return &exchange.Position{
			TradingPair:  tradingPair,
			PositionSide: side,
			EntryPrice:   mustDecimal(risk.EntryPrice),
			Quantity:     amount.Abs(),
			UpdatedAt:    time.Now(),
		}, nil
	}
	return nil, nil
}
