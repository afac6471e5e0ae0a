package repo

import (
	"context"

	"github.com/KNICEX/position-guard/internal/entity"
	"gorm.io/gorm"
)

type ProtectionRepo interface {
	Create(ctx context.Context, cycle entity.ProtectionCycle) (int64, error)
	// MarkEscalated 触发监听器下出升级单后调用
	MarkEscalated(ctx context.Context, id int64) error
	// MarkClosedIfProtected 观察到平仓时调用，不覆盖已升级的记录
	MarkClosedIfProtected(ctx context.Context, id int64) error
	FindByStatus(ctx context.Context, status int) ([]entity.ProtectionCycle, error)
}

type protectionRepo struct {
	db *gorm.DB
}

func NewProtectionRepo(db *gorm.DB) ProtectionRepo {
	return &protectionRepo{
		db: db,
	}
}

func (r *protectionRepo) Create(ctx context.Context, cycle entity.ProtectionCycle) (int64, error) {
	err := r.db.WithContext(ctx).Create(&cycle).Error
	if err != nil {
		return 0, err
	}
	return cycle.Id, nil
}

func (r *protectionRepo) MarkEscalated(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&entity.ProtectionCycle{}).
		Where("id = ?", id).
		Update("status", entity.CycleStatusEscalated).Error
}

func (r *protectionRepo) MarkClosedIfProtected(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&entity.ProtectionCycle{}).
		Where("id = ? AND status = ?", id, entity.CycleStatusProtected).
		Update("status", entity.CycleStatusClosed).Error
}

func (r *protectionRepo) FindByStatus(ctx context.Context, status int) ([]entity.ProtectionCycle, error) {
	var cycles []entity.ProtectionCycle
	err := r.db.WithContext(ctx).Where("status = ?", status).Find(&cycles).Error
	if err != nil {
		return nil, err
	}
	return cycles, nil
}
