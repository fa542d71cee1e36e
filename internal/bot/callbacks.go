package bot

import (
	"strings"

	"go.uber.org/zap"
)

// handleCallbackData dispatches inline keyboard data by prefix
func (b *Bot) handleCallbackData(chatID int64, data string) {
	switch {
	case strings.HasPrefix(data, "browse:"):
		b.handleBrowseCallback(chatID, data)
	case data == "random":
		b.sendRandom(chatID)
	default:
		b.logger.Debug("Ignoring unknown callback data", zap.String("callback_data", data))
	}
}

// handleBrowseCallback processes letter selection from the browse keyboard
func (b *Bot) handleBrowseCallback(chatID int64, data string) {
	b.runBrowse(chatID, strings.TrimPrefix(data, "browse:"))
}
