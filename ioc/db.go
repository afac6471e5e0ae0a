package ioc

import (
	"github.com/spf13/viper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func InitDB() *gorm.DB {
	type Config struct {
		Path string `mapstructure:"path"`
	}

	var cfg Config
	if err := viper.UnmarshalKey("db.sqlite", &cfg); err != nil {
		panic(err)
	}
	if cfg.Path == "" {
		cfg.Path = "position-guard.db"
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{})
	if err != nil {
		panic(err)
	}
	return db
}
