package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrMissingTelegramConfig is returned when the token or chat id is unset.
var ErrMissingTelegramConfig = errors.New("missing telegram configuration")

// TelegramNotifier posts alerts to a chat through the Bot API.
type TelegramNotifier struct {
	token    string
	chatID   int64
	endpoint string
	client   *http.Client

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegramNotifier creates a notifier. The bot is authorized on first use so the
// server starts even when Telegram is unreachable.
func NewTelegramNotifier(token string, chatID int64, timeout time.Duration) *TelegramNotifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TelegramNotifier{
		token:    token,
		chatID:   chatID,
		endpoint: tgbotapi.APIEndpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (n *TelegramNotifier) api() (*tgbotapi.BotAPI, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.bot != nil {
		return n.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(n.token, n.endpoint, n.client)
	if err != nil {
		return nil, fmt.Errorf("authorize telegram bot: %w", err)
	}
	n.bot = bot
	return bot, nil
}

// Send posts the subject and body as one message. The Bot API client has no
// context support; the HTTP client timeout bounds the call.
func (n *TelegramNotifier) Send(ctx context.Context, subject, body string) error {
	if n.token == "" || n.chatID == 0 {
		return ErrMissingTelegramConfig
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	bot, err := n.api()
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, subject+"\n\n"+body)
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
