package bot

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"moonread/internal/catalog"
	"moonread/internal/publisher"
)

// sender is the part of the Telegram API the handlers use
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot represents the Telegram bot wrapper
type Bot struct {
	api          *tgbotapi.BotAPI
	sender       sender
	token        string
	catalog      *catalog.Catalog
	pages        *publisher.Index // nil when page publishing is disabled
	catalogName  string
	allowedUsers map[int64]bool // empty means the bot is public
	states       map[int64]*ConversationState
	statesMu     sync.RWMutex
	logger       *zap.Logger
}

// ConversationState tracks the state of multi-step commands.
// States are replaced, never mutated, once stored.
type ConversationState struct {
	Command string
	Step    int
}
