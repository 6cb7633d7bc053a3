package notify

import (
	"context"
	"fmt"

	"infomentor-notifier/pkg/htmlutil"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramBot is the part of *tgbotapi.BotAPI the channel uses.
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel sends the text to a chat, followed by the image and the attachments.
type TelegramChannel struct {
	bot    TelegramBot
	chatId int64
}

func NewTelegramChannel(bot TelegramBot, chatId int64) TelegramChannel {
	return TelegramChannel{bot: bot, chatId: chatId}
}

func (c TelegramChannel) Send(_ context.Context, msg Message) error {
	text := htmlutil.ToText(msg.Text)
	if msg.Title != "" {
		text = fmt.Sprintf("%s\n\n%s", msg.Title, text)
	}
	_, err := c.bot.Send(tgbotapi.NewMessage(c.chatId, text))
	if err != nil {
		return &DeliveryError{Channel: KindTelegram, Err: err}
	}

	if msg.Image != "" {
		_, err = c.bot.Send(tgbotapi.NewPhoto(c.chatId, tgbotapi.FilePath(msg.Image)))
		if err != nil {
			return &DeliveryError{Channel: KindTelegram, Err: err}
		}
	}
	for _, path := range msg.Files {
		_, err = c.bot.Send(tgbotapi.NewDocument(c.chatId, tgbotapi.FilePath(path)))
		if err != nil {
			return &DeliveryError{Channel: KindTelegram, Err: err}
		}
	}
	return nil
}
