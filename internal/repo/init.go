package repo

import (
	"github.com/KNICEX/position-guard/internal/entity"
	"gorm.io/gorm"
)

func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(&entity.ProtectionCycle{})
}
