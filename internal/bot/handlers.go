package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// handleMessage processes a single message
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage", zap.Any("panic", r))
			b.sendText(message.Chat.ID, "An error occurred while processing your request. Please try again.")
		}
	}()

	userID := message.From.ID

	// Check if user is in a conversation
	if state, ok := b.getState(userID); ok {
		if message.IsCommand() {
			// Allow any command to interrupt/cancel an ongoing conversation
			b.clearState(userID)
		} else {
			// Not a command, continue the conversation
			b.handleConversation(message, state)
			return
		}
	}

	if !message.IsCommand() {
		if message.Chat.IsPrivate() {
			b.sendText(message.Chat.ID, "Use /search <keyword> to find a book, or /help to see all commands.")
		}
		return
	}

	b.logger.Debug("Handling command",
		zap.String("command", message.Command()),
		zap.Int64("user_id", userID),
	)

	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "search":
		b.handleSearch(message)
	case "browse":
		b.handleBrowse(message)
	case "random":
		b.handleRandom(message)
	case "stats":
		b.handleStats(message)
	case "catalog":
		b.handleCatalog(message)
	default:
		b.sendText(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery", zap.Any("panic", r))
		}
	}()

	// Answer the callback query to remove loading state
	if b.sender != nil {
		if _, err := b.sender.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
			b.logger.Warn("Failed to answer callback query", zap.Error(err))
		}
	}

	if query.Message == nil {
		return
	}

	b.handleCallbackData(query.Message.Chat.ID, query.Data)
}

func (b *Bot) getState(userID int64) (*ConversationState, bool) {
	b.statesMu.RLock()
	defer b.statesMu.RUnlock()
	state, ok := b.states[userID]
	return state, ok
}

func (b *Bot) setState(userID int64, state *ConversationState) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	b.states[userID] = state
}

func (b *Bot) clearState(userID int64) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	delete(b.states, userID)
}
