package ioc

import (
	"github.com/KNICEX/position-guard/internal/service/notification"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/viper"
)

// InitTelegramNotifier 未配置 telegram 时返回 nil，通知是可选能力
func InitTelegramNotifier() notification.Service {
	type Config struct {
		Token  string `mapstructure:"token"`
		ChatId int64  `mapstructure:"chat_id"`
	}

	var cfg Config
	if err := viper.UnmarshalKey("notify.telegram", &cfg); err != nil {
		panic(err)
	}
	if cfg.Token == "" || cfg.ChatId == 0 {
		return nil
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		panic(err)
	}
	return notification.NewTelegramService(bot, cfg.ChatId)
}
