package notification

import (
	"context"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var _ Service = (*TelegramService)(nil)

// TelegramService 向固定 chat 推送消息，未配置时静默跳过
type TelegramService struct {
	bot    *tgbot.BotAPI
	chatID int64
}

func NewTelegramService(bot *tgbot.BotAPI, chatID int64) *TelegramService {
	return &TelegramService{
		bot:    bot,
		chatID: chatID,
	}
}

func (s *TelegramService) Send(ctx context.Context, text string) error {
	if s == nil || s.bot == nil || s.chatID == 0 {
		return nil
	}
	_, err := s.bot.Send(tgbot.NewMessage(s.chatID, text))
	return err
}
