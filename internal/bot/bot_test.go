package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"moonread/internal/catalog"
	"moonread/internal/models"
	"moonread/internal/publisher"
)

const (
	testUserID = int64(123)
	testChatID = int64(456)
)

// recordingSender captures everything the bot sends instead of calling Telegram
type recordingSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (s *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c)
	return tgbotapi.Message{}, nil
}

func (s *recordingSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (s *recordingSender) messages() []tgbotapi.MessageConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range s.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg)
		}
	}
	return out
}

// lastText returns the text of the last sent message
func (s *recordingSender) lastText(t *testing.T) string {
	t.Helper()
	msgs := s.messages()
	require.NotEmpty(t, msgs, "expected a message to be sent")
	return msgs[len(msgs)-1].Text
}

type testBotOptions struct {
	books        []models.Book
	pages        *publisher.Index
	allowedUsers []int64
	empty        bool
}

func newTestBot(t *testing.T, opts testBotOptions) (*Bot, *recordingSender) {
	t.Helper()

	c := catalog.Empty()
	if !opts.empty {
		c = catalog.New(opts.books)
	}

	b := newBot(nil, Options{
		Catalog:        c,
		Pages:          opts.pages,
		CatalogName:    "Moon Read Catalog",
		AllowedUserIDs: opts.allowedUsers,
	}, zap.NewNop())

	rec := &recordingSender{}
	b.sender = rec
	return b, rec
}

// command builds a private-chat message; a leading slash marks it as a bot command
func command(text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: testUserID},
		Chat: &tgbotapi.Chat{ID: testChatID, Type: "private"},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		length := len(text)
		if i := strings.IndexByte(text, ' '); i >= 0 {
			length = i
		}
		msg.Entities = []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: length},
		}
	}
	return msg
}

func numbered(prefix string, n int) []models.Book {
	books := make([]models.Book, n)
	for i := range books {
		books[i] = models.Book{
			Title: fmt.Sprintf("%s %02d", prefix, i+1),
			Link:  fmt.Sprintf("https://example.com/%s/%d", strings.ToLower(prefix), i+1),
		}
	}
	return books
}

type instantPacer struct{}

func (instantPacer) Wait(context.Context) error { return nil }

func (instantPacer) Done() {}

// urlPublisher fails for titles listed in fail
type urlPublisher struct {
	fail map[string]bool
}

func (p urlPublisher) Publish(_ context.Context, doc models.Document) (string, error) {
	if p.fail[doc.Title] {
		return "", fmt.Errorf("publish %s: rejected", doc.Title)
	}
	return "https://telegra.ph/" + strings.ReplaceAll(doc.Title, " ", "-"), nil
}

// readyPages publishes every bucket of books into a fresh index,
// except the page titles listed in fail
func readyPages(t *testing.T, books []models.Book, fail ...string) *publisher.Index {
	t.Helper()
	pub := urlPublisher{fail: map[string]bool{}}
	for _, title := range fail {
		pub.fail[title] = true
	}
	index := publisher.NewIndex()
	builder := publisher.NewBuilder(catalog.New(books), pub, instantPacer{}, index,
		publisher.Options{TitlePrefix: "Moon"}, zap.NewNop())
	builder.Run(context.Background())
	require.Equal(t, publisher.Ready, index.State())
	return index
}

func TestBot_Start(t *testing.T) {
	b, rec := newTestBot(t, testBotOptions{books: numbered("Tempest", 3)})

	b.handleMessage(command("/start"))

	msgs := rec.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, tgbotapi.ModeHTML, msgs[0].ParseMode)
	assert.Contains(t, msgs[0].Text, "Moon Read Catalog")
	assert.Contains(t, msgs[0].Text, "<b>3</b> EPUBs")
}

func TestBot_Search(t *testing.T) {
	books := append(numbered("Tempest", 3), models.Book{Title: "Other <Story>", Link: "https://example.com/o"})
	b, rec := newTestBot(t, testBotOptions{books: books})

	b.handleMessage(command("/search TEMPEST"))

	text := rec.lastText(t)
	assert.Contains(t, text, "Search Results for: tempest")
	assert.Contains(t, text, "Found <b>3</b> book(s)")
	assert.Contains(t, text, `1. <a href="https://example.com/tempest/1">Tempest 01</a>`)
	assert.NotContains(t, text, "Showing first")
	assert.NotContains(t, text, "Other")
}

func TestBot_SearchTruncated(t *testing.T) {
	b, rec := newTestBot(t, testBotOptions{books: numbered("Tempest", 25)})

	b.handleMessage(command("/search tempest"))

	text := rec.lastText(t)
	assert.Contains(t, text, "Found <b>25</b> book(s)")
	assert.Contains(t, text, "(Showing first 20 results)")
	assert.Contains(t, text, "...and 5 more results")
	assert.Contains(t, text, "Tempest 20")
	assert.NotContains(t, text, "Tempest 21")
}

func TestBot_SearchNoMatch(t *testing.T) {
	b, rec := newTestBot(t, testBotOptions{books: numbered("Tempest", 3)})

	b.handleMessage(command("/search <dragon>"))

	assert.Contains(t, rec.lastText(t), "No books found for: <b>&lt;dragon&gt;</b>")
}

func TestBot_SearchConversation(t *testing.T) {
	b, rec := newTestBot(t, testBotOptions{books: numbered("Tempest", 3)})

	// Step 1: /search without a keyword asks for one
	b.handleMessage(command("/search"))

	state, ok := b.getState(testUserID)
	require.True(t, ok, "expected conversation state to be created")
	assert.Equal(t, "search", state.Command)
	assert.Equal(t, 1, state.Step)
	assert.Equal(t, searchUsage, rec.lastText(t))

	// Blank input keeps the conversation open
	b.handleMessage(command("   "))
	_, ok = b.getState(testUserID)
	assert.True(t, ok, "expected conversation to stay open on blank input")

	// Step 2: the keyword completes the conversation
	b.handleMessage(command("tempest"))

	_, ok = b.getState(testUserID)
	assert.False(t, ok, "expected conversation state to be cleared")
	assert.Contains(t, rec.lastText(t), "Found <b>3</b> book(s)")
}

func TestBot_CommandInterruptsConversation(t *testing.T) {
	b, rec := newTestBot(t, testBotOptions{books: numbered("Tempest", 3)})

	b.handleMessage(command("/search"))
	_, ok := b.getState(testUserID)
	require.True(t, ok)

	// Any command cancels the pending search
	b.handleMessage(command("/stats"))

	_, ok = b.getState(testUserID)
	assert.False(t, ok, "expected conversation state to be deleted when interrupted by new command")
	assert.Contains(t, rec.lastText(t), "Total Books:</b> 3")
}

func TestBot_Browse(t *testing.T) {
	books := append(numbered("Apple", 2), numbered("Banana", 1)...)
	b, rec := newTestBot(t, testBotOptions{books: books})

	b.handleMessage(command("/browse a"))

	text := rec.lastText(t)
	assert.Contains(t, text, "Books starting with 'A'")
	assert.Contains(t, text, "Total: <b>2</b> book(s)")
	assert.NotContains(t, text, "Banana")
}

func TestBot_BrowseTruncated(t *testing.T) {
	t.Run("without pages suggests search", func(t *testing.T) {
		b, rec := newTestBot(t, testBotOptions{books: numbered("Apple", 35)})

		b.handleMessage(command("/browse A"))

		text := rec.lastText(t)
		assert.Contains(t, text, "(Showing first 30)")
		assert.Contains(t, text, "...and 5 more books")
		assert.Contains(t, text, "/search a for better filtering")
	})

	t.Run("with pages links the full list", func(t *testing.T) {
		books := numbered("Apple", 35)
		b, rec := newTestBot(t, testBotOptions{books: books, pages: readyPages(t, books)})

		b.handleMessage(command("/browse A"))

		text := rec.lastText(t)
		assert.Contains(t, text, `<a href="https://telegra.ph/Moon:-A">See all 35 books on one page</a>`)
		assert.NotContains(t, text, "/search a")
	})
}

func TestBot_BrowseInvalidLetter(t *testing.T) {
	b, rec := newTestBot(t, testBotOptions{books: numbered("Apple", 1)})

	for _, arg := range []string{"AB", "1", "é"} {
		b.handleMessage(command("/browse " + arg))
		assert.Equal(t, browseUsage, rec.lastText(t), "arg %q", arg)
	}
}

func TestBot_BrowseNoMatch(t *testing.T) {
	b, rec := newTestBot(t, testBotOptions{books: numbered("Apple", 1)})

	b.handleMessage(command("/browse #"))

	assert.Contains(t, rec.lastText(t), "No books found starting with: <b>#</b>")
}

func TestBot_BrowseKeyboard(t *testing.T) {
	b, rec := newTestBot(t, testBotOptions{books: numbered("Apple", 1)})

	b.handleMessage(command("/browse"))

	msgs := rec.messages()
	require.Len(t, msgs, 1)
	markup, ok := msgs[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok, "expected an inline keyboard")
	require.Len(t, markup.InlineKeyboard, 5)
	assert.Len(t, markup.InlineKeyboard[0], 6)

	last := markup.InlineKeyboard[4]
	require.Len(t, last, 3)
	assert.Equal(t, "#", last[2].Text)
	require.NotNil(t, last[2].CallbackData)
	assert.Equal(t, "browse:#", *last[2].CallbackData)
}

func TestBot_Random(t *testing.T) {
	b, rec := newTestBot(t, testBotOptions{books: []models.Book{{Title: "Only Book", Link: "https://example.com/only"}}})

	b.handleMessage(command("/random"))

	msgs := rec.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, `<a href="https://example.com/only">Only Book</a>`)
	assert.IsType(t, tgbotapi.InlineKeyboardMarkup{}, msgs[0].ReplyMarkup)
}

func TestBot_RandomEmptyCatalog(t *testing.T) {
	b, rec := newTestBot(t, testBotOptions{empty: true})

	b.handleMessage(command("/random"))

	assert.Equal(t, "❌ Catalog not loaded. Please try again later.", rec.lastText(t))
}

func TestBot_Stats(t *testing.T) {
	books := append(numbered("Apple", 2), models.Book{Title: "1984", Link: "x"}, models.Book{Title: "Zen", Link: "y"})
	b, rec := newTestBot(t, testBotOptions{books: books})

	b.handleMessage(command("/stats"))

	text := rec.lastText(t)
	assert.Contains(t, text, "Total Books:</b> 4")
	assert.Contains(t, text, "• A: 2\n• Z: 1\n• #: 1\n")
	assert.NotContains(t, text, "• B:")
}

func TestBot_StatsNotLoaded(t *testing.T) {
	b, rec := newTestBot(t, testBotOptions{empty: true})

	b.handleMessage(command("/stats"))

	assert.Equal(t, "❌ Catalog not loaded.", rec.lastText(t))
}

func TestBot_Catalog(t *testing.T) {
	books := append(numbered("Apple", 2), numbered("Cherry", 1)...)

	t.Run("disabled", func(t *testing.T) {
		b, rec := newTestBot(t, testBotOptions{books: books})
		b.handleMessage(command("/catalog"))
		assert.Contains(t, rec.lastText(t), "not available")
	})

	t.Run("not ready", func(t *testing.T) {
		b, rec := newTestBot(t, testBotOptions{books: books, pages: publisher.NewIndex()})

		b.handleMessage(command("/catalog"))
		assert.Equal(t, notReadyText, rec.lastText(t))

		b.handleMessage(command("/catalog A"))
		assert.Equal(t, notReadyText, rec.lastText(t))
	})

	t.Run("links in display order", func(t *testing.T) {
		b, rec := newTestBot(t, testBotOptions{books: books, pages: readyPages(t, books)})

		b.handleMessage(command("/catalog"))

		text := rec.lastText(t)
		a := strings.Index(text, ">A</a>: 2 book(s)")
		c := strings.Index(text, ">C</a>: 1 book(s)")
		require.GreaterOrEqual(t, a, 0)
		require.GreaterOrEqual(t, c, 0)
		assert.Less(t, a, c)
		assert.NotContains(t, text, "still being published")
	})

	t.Run("reports failed letters", func(t *testing.T) {
		b, rec := newTestBot(t, testBotOptions{books: books, pages: readyPages(t, books, "Moon: C")})

		b.handleMessage(command("/catalog"))

		text := rec.lastText(t)
		assert.Contains(t, text, ">A</a>: 2 book(s)")
		assert.Contains(t, text, "1 letter page(s) could not be published")
	})

	t.Run("single letter", func(t *testing.T) {
		b, rec := newTestBot(t, testBotOptions{books: books, pages: readyPages(t, books)})

		b.handleMessage(command("/catalog c"))
		assert.Contains(t, rec.lastText(t), `<a href="https://telegra.ph/Moon:-C">1 book(s)</a>`)

		b.handleMessage(command("/catalog B"))
		assert.Contains(t, rec.lastText(t), "No catalog page for: <b>B</b>")

		b.handleMessage(command("/catalog ?!"))
		assert.Contains(t, rec.lastText(t), "Please specify a letter A-Z or #")
	})
}

func TestBot_UnknownCommand(t *testing.T) {
	b, rec := newTestBot(t, testBotOptions{books: numbered("Apple", 1)})

	b.handleMessage(command("/new_book"))

	assert.Contains(t, rec.lastText(t), "Unknown command")
}

func TestBot_PlainTextHint(t *testing.T) {
	b, rec := newTestBot(t, testBotOptions{books: numbered("Apple", 1)})

	b.handleMessage(command("hello"))
	assert.Contains(t, rec.lastText(t), "/search <keyword>")

	// Group chats are left alone
	msg := command("hello")
	msg.Chat.Type = "group"
	b.handleMessage(msg)
	assert.Len(t, rec.messages(), 1)
}

func TestBot_Authorization(t *testing.T) {
	t.Run("allowlist rejects strangers", func(t *testing.T) {
		b, rec := newTestBot(t, testBotOptions{books: numbered("Apple", 1), allowedUsers: []int64{testUserID}})

		msg := command("/start")
		msg.From.ID = 999
		b.HandleWebhookUpdate(tgbotapi.Update{Message: msg})

		assert.Equal(t, "Sorry, you are not authorized to use this bot.", rec.lastText(t))

		b.HandleWebhookUpdate(tgbotapi.Update{Message: command("/start")})
		assert.Contains(t, rec.lastText(t), "Welcome to")
	})

	t.Run("empty allowlist is public", func(t *testing.T) {
		b, rec := newTestBot(t, testBotOptions{books: numbered("Apple", 1)})

		msg := command("/start")
		msg.From.ID = 999
		b.HandleWebhookUpdate(tgbotapi.Update{Message: msg})

		assert.Contains(t, rec.lastText(t), "Welcome to")
	})

	t.Run("message without sender is ignored", func(t *testing.T) {
		b, rec := newTestBot(t, testBotOptions{books: numbered("Apple", 1)})

		msg := command("/start")
		msg.From = nil
		b.HandleWebhookUpdate(tgbotapi.Update{Message: msg})

		assert.Empty(t, rec.messages())
	})
}

func TestBot_Callbacks(t *testing.T) {
	books := append(numbered("Banana", 2), models.Book{Title: "Solo", Link: "https://example.com/solo"})
	b, rec := newTestBot(t, testBotOptions{books: books})

	query := &tgbotapi.CallbackQuery{
		ID:      "q1",
		From:    &tgbotapi.User{ID: testUserID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: testChatID}},
		Data:    "browse:B",
	}
	b.HandleWebhookUpdate(tgbotapi.Update{CallbackQuery: query})

	assert.Contains(t, rec.lastText(t), "Books starting with 'B'")
	require.Len(t, rec.requests, 1)
	assert.IsType(t, tgbotapi.CallbackConfig{}, rec.requests[0])

	query.Data = "random"
	b.handleCallbackQuery(query)
	assert.Contains(t, rec.lastText(t), "Random Book Recommendation")

	sent := len(rec.messages())
	query.Data = "unknown"
	b.handleCallbackQuery(query)
	assert.Len(t, rec.messages(), sent)
}

func TestBot_PanicRecovery(t *testing.T) {
	b, rec := newTestBot(t, testBotOptions{books: numbered("Apple", 1)})
	b.catalog = nil // Forces a nil dereference inside the handler

	assert.NotPanics(t, func() {
		b.handleMessage(command("/stats"))
	})
	assert.Contains(t, rec.lastText(t), "An error occurred while processing your request")
}

func TestBot_NoSender(t *testing.T) {
	b := newBot(nil, Options{Catalog: catalog.New(numbered("Apple", 1))}, zap.NewNop())

	assert.NotPanics(t, func() {
		b.handleMessage(command("/random"))
		b.handleCallbackQuery(&tgbotapi.CallbackQuery{
			ID:      "q",
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: testChatID}},
			Data:    "random",
		})
	})
}

func TestSplitMessage(t *testing.T) {
	t.Run("short text is one part", func(t *testing.T) {
		assert.Equal(t, []string{"hello"}, splitMessage("hello", 10))
	})

	t.Run("splits at line breaks", func(t *testing.T) {
		text := "line one\nline two\nline three\n"
		parts := splitMessage(text, 18)
		assert.Equal(t, []string{"line one\nline two", "line three"}, parts)
	})

	t.Run("cuts long lines", func(t *testing.T) {
		parts := splitMessage(strings.Repeat("ж", 25), 10)
		require.Len(t, parts, 3)
		assert.Equal(t, strings.Repeat("ж", 10), parts[0])
		assert.Equal(t, strings.Repeat("ж", 5), parts[2])
	})

	t.Run("long result lists stay under the limit", func(t *testing.T) {
		var sb strings.Builder
		writeBookList(&sb, numbered("Tempest", 300))
		for _, part := range splitMessage(sb.String(), maxMessageLength) {
			assert.LessOrEqual(t, len([]rune(part)), maxMessageLength)
		}
	})
}

func TestBookLink(t *testing.T) {
	assert.Equal(t, `<a href="https://x.test/?a=1&amp;b=2">Tom &amp; Jerry</a>`,
		bookLink(models.Book{Title: "Tom & Jerry", Link: "https://x.test/?a=1&b=2"}))
	assert.Equal(t, "No Link", bookLink(models.Book{Title: "No Link"}))
}

func TestBot_RegisterCommands(t *testing.T) {
	b, rec := newTestBot(t, testBotOptions{books: numbered("Apple", 1)})

	b.registerCommands()

	require.Len(t, rec.requests, 1)
	cfg, ok := rec.requests[0].(tgbotapi.SetMyCommandsConfig)
	require.True(t, ok)
	var names []string
	for _, c := range cfg.Commands {
		names = append(names, c.Command)
	}
	assert.ElementsMatch(t, []string{"search", "browse", "random", "catalog", "stats", "help"}, names)
}
