package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"moonread/internal/catalog"
	"moonread/internal/publisher"
)

// Options carries the bot's collaborators besides the Telegram API
type Options struct {
	Catalog        *catalog.Catalog
	Pages          *publisher.Index
	CatalogName    string
	AllowedUserIDs []int64
}

// NewBot creates a new Telegram bot
func NewBot(token string, opts Options, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	b := newBot(api, opts, logger)
	b.token = token
	return b, nil
}

func newBot(api *tgbotapi.BotAPI, opts Options, logger *zap.Logger) *Bot {
	allowedUsers := make(map[int64]bool)
	for _, id := range opts.AllowedUserIDs {
		allowedUsers[id] = true
	}

	c := opts.Catalog
	if c == nil {
		c = catalog.Empty()
	}

	b := &Bot{
		api:          api,
		catalog:      c,
		pages:        opts.Pages,
		catalogName:  opts.CatalogName,
		allowedUsers: allowedUsers,
		states:       make(map[int64]*ConversationState),
		logger:       logger,
	}
	if api != nil {
		b.sender = api
	}
	return b
}
