package bot

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"moonread/internal/catalog"
	"moonread/internal/models"
)

// maxMessageLength is Telegram's limit for one text message
const maxMessageLength = 4096

// sendMessage sends any message, logging failures
func (b *Bot) sendMessage(msg tgbotapi.Chattable) {
	if b.sender == nil {
		return // For testing
	}
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Warn("Failed to send message", zap.Error(err))
	}
}

// sendText sends a plain text message
func (b *Bot) sendText(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

// sendHTML sends an HTML formatted message without link previews,
// split into several messages when it is too long
func (b *Bot) sendHTML(chatID int64, text string) {
	for _, part := range splitMessage(text, maxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		b.sendMessage(msg)
	}
}

// splitMessage cuts text at line breaks so that no part exceeds limit runes.
// A single line longer than limit is cut mid-line.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if part := strings.TrimRight(current.String(), "\n"); part != "" {
			parts = append(parts, part)
		}
		current.Reset()
		currentLen = 0
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		lineLen := utf8.RuneCountInString(line)
		if currentLen+lineLen > limit {
			flush()
		}
		for lineLen > limit {
			runes := []rune(line)
			parts = append(parts, string(runes[:limit]))
			line = string(runes[limit:])
			lineLen -= limit
		}
		current.WriteString(line)
		currentLen += lineLen
	}
	flush()
	return parts
}

// bookLink renders a book as an HTML link
func bookLink(book models.Book) string {
	title := html.EscapeString(book.Title)
	if book.Link == "" {
		return title
	}
	return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(book.Link), title)
}

// writeBookList writes a numbered list of books
func writeBookList(sb *strings.Builder, books []models.Book) {
	for i, book := range books {
		fmt.Fprintf(sb, "%d. %s\n\n", i+1, bookLink(book))
	}
}

// letterKeyboard builds the A-Z and # keyboard used by /browse
func letterKeyboard() tgbotapi.InlineKeyboardMarkup {
	const perRow = 6

	var rows [][]tgbotapi.InlineKeyboardButton
	var currentRow []tgbotapi.InlineKeyboardButton
	buckets := catalog.AllBuckets()
	for i, bucket := range buckets {
		currentRow = append(currentRow, tgbotapi.NewInlineKeyboardButtonData(bucket.String(), "browse:"+bucket.String()))

		// Add row when it is full or it's the last bucket
		if len(currentRow) == perRow || i == len(buckets)-1 {
			rows = append(rows, currentRow)
			currentRow = nil
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// randomKeyboard offers another random pick
func randomKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎲 Another one", "random"),
		),
	)
}
