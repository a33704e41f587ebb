// Package telegram runs the admin chat mirror: admin-room events are posted
// to a Telegram chat, and pending requests can be accepted or rejected from
// inline buttons.
package telegram

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/campus_lending/internal/model"
	"github.com/Freeeeeet/campus_lending/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const rejectReason = "Rejected from the admin chat"

// Lending is the part of the coordinator the chat can drive
type Lending interface {
	AcceptRequest(ctx context.Context, id, adminID string) (*model.BorrowTransaction, error)
	RejectRequest(ctx context.Context, id, adminID, reason string) (*model.BorrowTransaction, error)
	ListPendingRequests(ctx context.Context) ([]model.PendingView, error)
}

type BotController struct {
	bot     *bot.Bot
	lending Lending
	chatID  int64
	logger  *zap.Logger
}

func NewBotController(b *bot.Bot, lending Lending, chatID int64, logger *zap.Logger) *BotController {
	return &BotController{
		bot:     b,
		lending: lending,
		chatID:  chatID,
		logger:  logger,
	}
}

// RegisterHandlers registers the commands and the button handler
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.handleHelp)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.handleHelp)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/pending", bot.MatchTypeExact, c.handlePending)
	c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, c.handleCallback)

	return c.setCommands(ctx)
}

func (c *BotController) setCommands(ctx context.Context) error {
	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: []models.BotCommand{
			{Command: "pending", Description: "📋 Open borrow requests"},
			{Command: "help", Description: "❓ Help"},
		},
	})
	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}
	return nil
}

// Start blocks until ctx is done
func (c *BotController) Start(ctx context.Context) {
	c.logger.Info("Starting telegram bot")
	c.bot.Start(ctx)
}

// fromAdminChat drops updates from any chat except the configured one
func (c *BotController) fromAdminChat(chatID int64) bool {
	return chatID == c.chatID
}

func (c *BotController) handleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || !c.fromAdminChat(update.Message.Chat.ID) {
		return
	}
	c.sendMessage(ctx, b, update.Message.Chat.ID,
		"Borrow requests arrive here as they are submitted.\n\n"+
			"Use the buttons under a request to accept or reject it.\n"+
			"/pending lists the open requests.")
}

func (c *BotController) handlePending(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || !c.fromAdminChat(update.Message.Chat.ID) {
		return
	}

	views, err := c.lending.ListPendingRequests(ctx)
	if err != nil {
		c.logger.Error("Failed to list pending requests", zap.Error(err))
		c.sendMessage(ctx, b, update.Message.Chat.ID, "❌ "+service.ErrorMessage(err))
		return
	}

	c.sendMessage(ctx, b, update.Message.Chat.ID, FormatPendingList(views))
}

func (c *BotController) handleCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery
	if callback == nil {
		return
	}

	msg := callback.Message.Message
	if msg == nil || !c.fromAdminChat(msg.Chat.ID) {
		c.answer(ctx, b, callback.ID, "")
		return
	}

	action, id, ok := ParseCallback(callback.Data)
	if !ok {
		c.answer(ctx, b, callback.ID, "")
		return
	}

	adminID := AdminID(callback.From.ID)
	c.logger.Info("Request button pressed",
		zap.String("action", action),
		zap.String("transaction_id", id),
		zap.String("admin_id", adminID))

	var err error
	reply := "✅ Accepted"
	switch action {
	case AcceptRequest:
		_, err = c.lending.AcceptRequest(ctx, id, adminID)
	case RejectRequest:
		_, err = c.lending.RejectRequest(ctx, id, adminID, rejectReason)
		reply = "🚫 Rejected"
	}
	if err != nil {
		reply = "❌ " + service.ErrorMessage(err)
	}

	c.answer(ctx, b, callback.ID, reply)

	// The buttons are single use either way
	if _, err := b.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
	}); err != nil {
		c.logger.Debug("Failed to drop request buttons", zap.Error(err))
	}
}

// AdminID is the actor recorded for decisions taken from the chat
func AdminID(telegramUserID int64) string {
	return fmt.Sprintf("telegram:%d", telegramUserID)
}

func (c *BotController) answer(ctx context.Context, b *bot.Bot, callbackID, text string) {
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
}

func (c *BotController) sendMessage(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		c.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
