package protection

import (
	"github.com/KNICEX/position-guard/internal/service/exchange"
	"github.com/shopspring/decimal"
)

// LifecycleState 保护单生命周期状态，由 OrderManager 独占持有，
// 只通过定义好的事件迁移（不使用全局可变标志位）
type LifecycleState string

const (
	// StateIdle 无持仓或保护单尚未下出
	StateIdle LifecycleState = "IDLE"
	// StateProtected 止损/止盈单已被接受
	StateProtected LifecycleState = "PROTECTED"
	// StateAwaitingTrigger 触发监听器已启动，等待升级触发或平仓
	StateAwaitingTrigger LifecycleState = "AWAITING_TRIGGER"
)

// TriggerContext 协调器移交给触发监听器的最小上下文。
// 只传方向/开仓价/带宽而不传绝对触发价：监听器按最新交易所精度重新推导，
// 移交后不可变，监听器与协调器之间再无通信
type TriggerContext struct {
	Side         exchange.PositionSide
	EntryPrice   decimal.Decimal
	WidthPercent decimal.Decimal
}
