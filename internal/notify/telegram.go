package notify

import (
	"fmt"
	"strings"

	"sparkleclean/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender delivers drafted notifications to the owner's chat.
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramSender(token string, ownerChatID int64) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramSender{bot: bot, chatID: ownerChatID}, nil
}

// Deliver sends the notification document as a formatted message.
func (t *TelegramSender) Deliver(doc *models.NotificationDocument) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatNotification(doc))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// FormatNotification renders the document as HTML message text.
func FormatNotification(doc *models.NotificationDocument) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b>\n\n", doc.Subject)
	fmt.Fprintf(&sb, "%s\n\n", doc.Summary)
	fmt.Fprintf(&sb, "Customer: %s\n", doc.Details.Name)
	fmt.Fprintf(&sb, "Address: %s\n", doc.Details.Address)
	fmt.Fprintf(&sb, "Phone: %s\n", doc.Details.Phone)
	fmt.Fprintf(&sb, "Service: %s\n", doc.Details.Service)
	fmt.Fprintf(&sb, "When: %s\n", doc.Details.DateTime)
	if doc.Details.Notes != "" && doc.Details.Notes != "None provided" {
		fmt.Fprintf(&sb, "Notes: %s\n", doc.Details.Notes)
	}
	fmt.Fprintf(&sb, "\n%s", doc.SuggestedAction)
	return sb.String()
}
