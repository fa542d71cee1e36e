package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Start starts the bot in polling mode
func (b *Bot) Start() error {
	b.logger.Info("Starting bot in polling mode")

	// Remove webhook (if any was set previously)
	_, err := b.api.Request(tgbotapi.DeleteWebhookConfig{})
	if err != nil {
		b.logger.Warn("Failed to delete webhook", zap.Error(err))
	}

	b.registerCommands()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Polling for updates")

	// Handle updates (blocks here)
	b.handleUpdates(updates)
	return nil
}

// Stop stops receiving updates in polling mode
func (b *Bot) Stop() {
	if b.api != nil {
		b.api.StopReceivingUpdates()
	}
}

// StartWebhook sets up the bot to receive updates via webhook
func (b *Bot) StartWebhook(webhookURL string) error {
	b.logger.Info("Setting up webhook", zap.String("webhook_url", webhookURL))

	// Configure webhook
	webhookConfig, err := tgbotapi.NewWebhook(webhookURL + "/telegram-webhook")
	if err != nil {
		return err
	}
	webhookConfig.MaxConnections = 40

	_, err = b.api.Request(webhookConfig)
	if err != nil {
		b.logger.Error("Failed to set webhook", zap.Error(err), zap.String("webhook_url", webhookURL))
		return err
	}

	// Get webhook info to verify
	info, err := b.api.GetWebhookInfo()
	if err != nil {
		b.logger.Warn("Failed to get webhook info", zap.Error(err))
	} else {
		b.logger.Info("Webhook set successfully",
			zap.String("url", info.URL),
			zap.Int("pending_updates", info.PendingUpdateCount),
		)
	}

	b.registerCommands()
	return nil
}

// commandMenu is the command list shown in Telegram's menu button
var commandMenu = []tgbotapi.BotCommand{
	{Command: "search", Description: "Search books by title"},
	{Command: "browse", Description: "Browse books by first letter"},
	{Command: "random", Description: "Get a random book"},
	{Command: "catalog", Description: "Full list pages for every letter"},
	{Command: "stats", Description: "Catalog statistics"},
	{Command: "help", Description: "How to use the bot"},
}

// registerCommands publishes the command menu; failure only costs the menu
func (b *Bot) registerCommands() {
	if b.sender == nil {
		return
	}
	if _, err := b.sender.Request(tgbotapi.NewSetMyCommands(commandMenu...)); err != nil {
		b.logger.Warn("Failed to register bot commands", zap.Error(err))
	}
}

// HandleWebhookUpdate processes a single update from webhook
func (b *Bot) HandleWebhookUpdate(update tgbotapi.Update) {
	// Handle regular messages
	if update.Message != nil && update.Message.From != nil {
		userID := update.Message.From.ID
		if !b.isAllowed(userID) {
			b.logger.Warn("Unauthorized access attempt",
				zap.Int64("user_id", userID),
				zap.String("username", update.Message.From.UserName),
				zap.String("text", update.Message.Text),
			)
			b.sendText(update.Message.Chat.ID, "Sorry, you are not authorized to use this bot.")
			return
		}
		b.handleMessage(update.Message)
	}

	// Handle callback queries (inline keyboard button clicks)
	if update.CallbackQuery != nil && update.CallbackQuery.From != nil {
		userID := update.CallbackQuery.From.ID
		if !b.isAllowed(userID) {
			b.logger.Warn("Unauthorized callback query attempt",
				zap.Int64("user_id", userID),
				zap.String("username", update.CallbackQuery.From.UserName),
				zap.String("callback_data", update.CallbackQuery.Data),
			)
			return
		}
		b.handleCallbackQuery(update.CallbackQuery)
	}
}

// handleUpdates processes incoming updates from polling mode
func (b *Bot) handleUpdates(updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		go b.HandleWebhookUpdate(update)
	}
}

// isAllowed reports whether userID may talk to the bot; an empty allowlist admits everyone
func (b *Bot) isAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || b.allowedUsers[userID]
}
