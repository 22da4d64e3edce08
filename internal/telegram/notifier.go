package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rdavydov/node-laundry/internal/domain"
)

// Notifier sends reminders as chat messages. It satisfies scheduler.Messenger.
type Notifier struct {
	bot botAPI
}

func NewNotifier(bot botAPI) *Notifier {
	return &Notifier{bot: bot}
}

// Send delivers a reminder to a private chat. The address is the chat id.
func (n *Notifier) Send(_ context.Context, address string, kind domain.Kind) error {
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram address %q: %w", address, err)
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, reminderText(kind))); err != nil {
		return fmt.Errorf("send reminder to %d: %w", chatID, err)
	}
	return nil
}
