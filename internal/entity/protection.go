package entity

import (
	"time"
)

// ProtectionCycle 一次保护周期的审计记录（从下保护单到观察到平仓）
// 只做审计用途，进程重启后状态机总是从 IDLE 开始
type ProtectionCycle struct {
	Id                int64  `gorm:"primaryKey;autoIncrement"`
	BaseSymbol        string `gorm:"index"`
	QuoteSymbol       string `gorm:"index"`
	Side              string
	EntryPrice        string
	WidthPercent      string
	StopLossPrice     string
	TakeProfitPrice   string
	EscalationTrigger string
	Status            int       `gorm:"index"` // 0:保护中, 1:已平仓, 2:已触发升级
	CreatedAt         time.Time `gorm:"index"`
	UpdatedAt         time.Time `gorm:"index"`
}

const (
	CycleStatusProtected = 0
	CycleStatusClosed    = 1
	CycleStatusEscalated = 2
)
