package bot

import (
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"moonread/internal/catalog"
	"moonread/internal/models"
	"moonread/internal/publisher"
)

const searchUsage = `❌ Please provide a search keyword!

Example:
/search tempest
/search villainess romance

Or just send the keyword now.`

const browseUsage = `❌ Please specify a letter!

Examples:
/browse A - Books starting with A
/browse # - Books starting with numbers or symbols

Available: A-Z and #`

// handleStart shows welcome message and available commands
func (b *Bot) handleStart(message *tgbotapi.Message) {
	text := fmt.Sprintf(`🌙 <b>Welcome to %s!</b> 📚

Find novels from our collection of <b>%d</b> EPUBs!

🔍 <b>Search for a book:</b> /search tempest
📖 <b>Random book:</b> /random
📋 <b>Browse alphabetically:</b> /browse A or /browse #
🗂 <b>Full letter pages:</b> /catalog
📊 <b>Statistics:</b> /stats
ℹ️ <b>Help:</b> /help`, html.EscapeString(b.catalogName), b.catalog.Len())

	b.sendHTML(message.Chat.ID, text)
}

// handleHelp lists commands and search tips
func (b *Bot) handleHelp(message *tgbotapi.Message) {
	text := fmt.Sprintf(`📚 <b>%s - Help</b>

<b>Available Commands:</b>

🔍 /search keyword - Search for books
📋 /browse A - Show books starting with A (A-Z and #)
📖 /random - Get a random book recommendation
🗂 /catalog - Links to the full list for every letter
📊 /stats - Show catalog statistics

<b>Search Tips:</b>
• Search is case-insensitive
• Use several words: /search fantasy romance
• Partial matches work ("temp" finds "Tempest")`, html.EscapeString(b.catalogName))

	b.sendHTML(message.Chat.ID, text)
}

// handleSearch runs a keyword search, or asks for the keyword when none is given
func (b *Bot) handleSearch(message *tgbotapi.Message) {
	keyword := strings.Join(strings.Fields(message.CommandArguments()), " ")
	if keyword == "" {
		b.setState(message.From.ID, &ConversationState{Command: "search", Step: 1})
		b.sendText(message.Chat.ID, searchUsage)
		return
	}
	b.runSearch(message.Chat.ID, keyword)
}

func (b *Bot) runSearch(chatID int64, keyword string) {
	page, err := b.catalog.Search(keyword)
	switch {
	case errors.Is(err, catalog.ErrInvalidArgument):
		b.sendText(chatID, searchUsage)
		return
	case errors.Is(err, catalog.ErrNoMatch):
		b.sendHTML(chatID, fmt.Sprintf("📭 No books found for: <b>%s</b>\n\nTry different keywords!", html.EscapeString(keyword)))
		return
	case err != nil:
		b.logger.Error("Search failed", zap.String("keyword", keyword), zap.Error(err))
		b.sendText(chatID, "An error occurred while searching. Please try again.")
		return
	}

	var text strings.Builder
	fmt.Fprintf(&text, "🔍 <b>Search Results for: %s</b>\n\n", html.EscapeString(strings.ToLower(keyword)))
	fmt.Fprintf(&text, "Found <b>%d</b> book(s)\n", page.TotalMatched)
	if page.Truncated {
		fmt.Fprintf(&text, "<i>(Showing first %d results)</i>\n", len(page.Items))
	}
	text.WriteString("\n")
	writeBookList(&text, page.Items)
	if page.Truncated {
		fmt.Fprintf(&text, "<i>...and %d more results</i>\n", page.Hidden())
		text.WriteString("\n💡 Tip: Use more specific keywords to narrow results")
	}

	b.sendHTML(chatID, text.String())
}

// handleBrowse lists books for a letter, or shows the letter keyboard
func (b *Bot) handleBrowse(message *tgbotapi.Message) {
	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 {
		msg := tgbotapi.NewMessage(message.Chat.ID, "📋 Pick a letter to browse:")
		msg.ReplyMarkup = letterKeyboard()
		b.sendMessage(msg)
		return
	}
	b.runBrowse(message.Chat.ID, args[0])
}

func (b *Bot) runBrowse(chatID int64, token string) {
	bucket, err := catalog.ParseBucket(token)
	if err != nil {
		b.sendText(chatID, browseUsage)
		return
	}

	page, err := b.catalog.BrowseBucket(bucket)
	switch {
	case errors.Is(err, catalog.ErrNoMatch):
		b.sendHTML(chatID, fmt.Sprintf("📭 No books found starting with: <b>%s</b>", bucket))
		return
	case err != nil:
		b.logger.Error("Browse failed", zap.String("bucket", bucket.String()), zap.Error(err))
		b.sendText(chatID, "An error occurred while browsing. Please try again.")
		return
	}

	var text strings.Builder
	fmt.Fprintf(&text, "📚 <b>Books starting with '%s'</b>\n\n", html.EscapeString(bucket.String()))
	fmt.Fprintf(&text, "Total: <b>%d</b> book(s)\n", page.TotalMatched)
	if page.Truncated {
		fmt.Fprintf(&text, "<i>(Showing first %d)</i>\n", len(page.Items))
	}
	text.WriteString("\n")
	writeBookList(&text, page.Items)
	if page.Truncated {
		fmt.Fprintf(&text, "<i>...and %d more books</i>\n", page.Hidden())
		if link, err := b.pageFor(bucket); err == nil {
			fmt.Fprintf(&text, "\n🗂 <a href=\"%s\">See all %d books on one page</a>", html.EscapeString(link.URL), link.Count)
		} else if bucket != catalog.Other {
			fmt.Fprintf(&text, "\n💡 Use /search %s for better filtering", strings.ToLower(bucket.String()))
		}
	}

	b.sendHTML(chatID, text.String())
}

// handleRandom sends a random book
func (b *Bot) handleRandom(message *tgbotapi.Message) {
	b.sendRandom(message.Chat.ID)
}

func (b *Bot) sendRandom(chatID int64) {
	book, err := b.catalog.Random()
	if err != nil {
		if !errors.Is(err, catalog.ErrEmptyCatalog) {
			b.logger.Error("Random pick failed", zap.Error(err))
		}
		b.sendText(chatID, "❌ Catalog not loaded. Please try again later.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("📖 <b>Random Book Recommendation</b>\n\n%s", bookLink(book)))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = randomKeyboard()
	b.sendMessage(msg)
}

// handleStats shows per-letter counts
func (b *Bot) handleStats(message *tgbotapi.Message) {
	hist, err := b.catalog.Stats()
	if err != nil {
		b.sendText(message.Chat.ID, "❌ Catalog not loaded.")
		return
	}

	var text strings.Builder
	fmt.Fprintf(&text, "📊 <b>%s Statistics</b>\n\n", html.EscapeString(b.catalogName))
	fmt.Fprintf(&text, "📚 <b>Total Books:</b> %d\n\n", hist.Total())
	text.WriteString("🔤 <b>Books by Letter:</b>\n")
	for _, bc := range hist.Counts() {
		fmt.Fprintf(&text, "• %s: %d\n", bc.Bucket, bc.Count)
	}
	text.WriteString("\n💡 Use /browse &lt;letter&gt; to see books for any letter!")

	b.sendHTML(message.Chat.ID, text.String())
}

// handleCatalog lists the published letter pages, or one of them
func (b *Bot) handleCatalog(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if b.pages == nil {
		b.sendText(chatID, "🗂 Catalog pages are not available for this bot.")
		return
	}

	if args := strings.Fields(message.CommandArguments()); len(args) > 0 {
		bucket, err := catalog.ParseBucket(args[0])
		if err != nil {
			b.sendText(chatID, "❌ Please specify a letter A-Z or #.\n\nExample: /catalog A")
			return
		}
		link, err := b.pages.Lookup(bucket)
		switch {
		case errors.Is(err, publisher.ErrNotReady):
			b.sendText(chatID, notReadyText)
		case errors.Is(err, publisher.ErrNotFound):
			b.sendHTML(chatID, fmt.Sprintf("📭 No catalog page for: <b>%s</b>", bucket))
		case err != nil:
			b.logger.Error("Catalog page lookup failed", zap.String("bucket", bucket.String()), zap.Error(err))
		default:
			b.sendHTML(chatID, fmt.Sprintf("🗂 <b>%s</b>: <a href=\"%s\">%d book(s)</a>",
				bucket, html.EscapeString(link.URL), link.Count))
		}
		return
	}

	links, err := b.pages.Links()
	if err != nil {
		b.sendText(chatID, notReadyText)
		return
	}

	var text strings.Builder
	fmt.Fprintf(&text, "🗂 <b>%s by Letter</b>\n\n", html.EscapeString(b.catalogName))
	for _, l := range links {
		fmt.Fprintf(&text, "• <a href=\"%s\">%s</a>: %d book(s)\n", html.EscapeString(l.URL), l.Bucket, l.Count)
	}
	if b.pages.State() != publisher.Ready {
		text.WriteString("\n⏳ More letters are still being published.")
	} else if failed := b.pages.Failed(); failed > 0 {
		fmt.Fprintf(&text, "\n⚠️ %d letter page(s) could not be published.", failed)
	}

	b.sendHTML(chatID, text.String())
}

const notReadyText = "⏳ Catalog pages are still being prepared. Please try again in a few minutes."

// pageFor returns the published page for bucket when publishing is enabled
func (b *Bot) pageFor(bucket catalog.Bucket) (models.PageLink, error) {
	if b.pages == nil {
		return models.PageLink{}, publisher.ErrNotReady
	}
	return b.pages.Lookup(bucket)
}
