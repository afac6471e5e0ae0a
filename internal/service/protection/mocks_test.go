package protection

import (
	"context"
	"sync"
	"time"

	"github.com/KNICEX/position-guard/internal/entity"
	"github.com/KNICEX/position-guard/internal/service/exchange"
	"github.com/stretchr/testify/mock"
)

// ============ Mock 定义 ============

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, req exchange.CreateOrderReq) (exchange.OrderId, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(exchange.OrderId), args.Error(1)
}

func (m *MockOrderService) CancelAllOpenOrders(ctx context.Context, tradingPair exchange.TradingPair) (int, error) {
	args := m.Called(ctx, tradingPair)
	return args.Int(0), args.Error(1)
}

type MockPositionService struct {
	mock.Mock
}

func (m *MockPositionService) GetActivePosition(ctx context.Context, tradingPair exchange.TradingPair) (*exchange.Position, error) {
	args := m.Called(ctx, tradingPair)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exchange.Position), args.Error(1)
}

type MockMarketService struct {
	mock.Mock
}

func (m *MockMarketService) ServerTime(ctx context.Context) (time.Time, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockMarketService) GetKlines(ctx context.Context, req exchange.GetKlinesReq) ([]exchange.Kline, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]exchange.Kline), args.Error(1)
}

func (m *MockMarketService) SubscribeKline(ctx context.Context, tradingPair exchange.TradingPair, interval exchange.Interval) (<-chan exchange.Kline, error) {
	args := m.Called(ctx, tradingPair, interval)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan exchange.Kline), args.Error(1)
}

// fakeProtectionRepo 内存版审计仓储
type fakeProtectionRepo struct {
	mu     sync.Mutex
	nextId int64
	cycles map[int64]*entity.ProtectionCycle
}

func newFakeProtectionRepo() *fakeProtectionRepo {
	return &fakeProtectionRepo{
		cycles: make(map[int64]*entity.ProtectionCycle),
	}
}

func (r *fakeProtectionRepo) Create(ctx context.Context, cycle entity.ProtectionCycle) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextId++
	cycle.Id = r.nextId
	r.cycles[cycle.Id] = &cycle
	return cycle.Id, nil
}

func (r *fakeProtectionRepo) MarkEscalated(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cycles[id]; ok {
		c.Status = entity.CycleStatusEscalated
	}
	return nil
}

func (r *fakeProtectionRepo) MarkClosedIfProtected(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cycles[id]; ok && c.Status == entity.CycleStatusProtected {
		c.Status = entity.CycleStatusClosed
	}
	return nil
}

func (r *fakeProtectionRepo) FindByStatus(ctx context.Context, status int) ([]entity.ProtectionCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []entity.ProtectionCycle
	for _, c := range r.cycles {
		if c.Status == status {
			res = append(res, *c)
		}
	}
	return res, nil
}

func (r *fakeProtectionRepo) status(id int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cycles[id]; ok {
		return c.Status
	}
	return -1
}
