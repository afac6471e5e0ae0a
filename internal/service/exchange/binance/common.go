package binance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KNICEX/position-guard/internal/service/exchange"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
)

const (
	reqTimeout  = 10 * time.Second
	maxAttempts = 3
)

func binanceSide(side exchange.Side) futures.SideType {
	switch side {
	case exchange.Buy:
		return futures.SideTypeBuy
	case exchange.Sell:
		return futures.SideTypeSell
	default:
		return futures.SideType(side)
	}
}

func binanceOrderType(typ exchange.OrderType) futures.OrderType {
	switch typ {
	case exchange.OrderTypeLimit:
		return futures.OrderTypeLimit
	case exchange.OrderTypeStopLimit:
		return futures.OrderTypeStop
	case exchange.OrderTypeStopMarket:
		return futures.OrderTypeStopMarket
	default:
		return futures.OrderType(typ)
	}
}

// isAuthAPIError 判断是否为签名/凭证类错误
// -1022 签名无效, -2014 API-key 格式错误, -2015 API-key 无效或权限不足
func isAuthAPIError(err error) bool {
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case -1022, -2014, -2015:
		return true
	default:
		return false
	}
}

func newBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    3 * time.Second,
		Factor: 2,
	}
}

// withRetry 带超时的有限次重试，认证错误立即返回且不重试
func withRetry[T any](ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	b := newBackoff()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, reqTimeout)
		res, err := fn(callCtx)
		cancel()
		if err == nil {
			return res, nil
		}
		if isAuthAPIError(err) {
			return zero, fmt.Errorf("%w: %s: %v", exchange.ErrAuthentication, op, err)
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return zero, fmt.Errorf("%s failed after %d attempts: %w", op, maxAttempts, lastErr)
}

// once 单次调用，仅加超时，不重试。下单必须用它：
// 超时的下单请求可能已被服务端接受，重试会造成重复平仓单
func once[T any](ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	callCtx, cancel := context.WithTimeout(ctx, reqTimeout)
	defer cancel()
	res, err := fn(callCtx)
	if err != nil {
		if isAuthAPIError(err) {
			return zero, fmt.Errorf("%w: %s: %v", exchange.ErrAuthentication, op, err)
		}
		return zero, fmt.Errorf("%s failed: %w", op, err)
	}
	return res, nil
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
