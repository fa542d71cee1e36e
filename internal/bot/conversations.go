package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleConversation processes multi-step conversations
func (b *Bot) handleConversation(message *tgbotapi.Message, state *ConversationState) {
	done := true
	switch state.Command {
	case "search":
		done = b.handleSearchConversation(message, state)
	}

	// Clean up completed conversations
	if done {
		b.clearState(message.From.ID)
	}
}

// handleSearchConversation takes the keyword the user was asked for.
// It reports whether the conversation is complete.
func (b *Bot) handleSearchConversation(message *tgbotapi.Message, state *ConversationState) bool {
	switch state.Step {
	case 1: // Waiting for keyword
		keyword := strings.Join(strings.Fields(message.Text), " ")
		if keyword == "" {
			// Stickers, photos and blank text keep the conversation open
			b.sendText(message.Chat.ID, "Please send the keyword as text, e.g. tempest")
			return false
		}

		b.runSearch(message.Chat.ID, keyword)
	}
	return true
}
