package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Freeeeeet/campus_lending/internal/model"
	"github.com/Freeeeeet/campus_lending/internal/realtime"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const notifierBuffer = 128

var ErrNotifierFull = errors.New("telegram notifier queue full")

// Sender is the part of *bot.Bot the notifier needs
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Notifier mirrors admin-room events into a Telegram chat. It joins the
// room as a regular member; sending happens on its own goroutine so a slow
// Telegram API never holds up publishing.
type Notifier struct {
	sender Sender
	chatID int64
	queue  chan []byte
	logger *zap.Logger
	done   chan struct{}
}

func NewNotifier(sender Sender, chatID int64, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		chatID: chatID,
		queue:  make(chan []byte, notifierBuffer),
		logger: logger.With(zap.Int64("chat_id", chatID)),
		done:   make(chan struct{}),
	}
}

func (n *Notifier) ID() string {
	return fmt.Sprintf("telegram:%d", n.chatID)
}

// Deliver queues an encoded envelope without blocking
func (n *Notifier) Deliver(msg []byte) error {
	select {
	case n.queue <- msg:
		return nil
	default:
		return ErrNotifierFull
	}
}

// Run sends queued events until ctx is done
func (n *Notifier) Run(ctx context.Context) {
	defer close(n.done)

	for {
		select {
		case msg := <-n.queue:
			n.send(ctx, msg)
		case <-ctx.Done():
			n.logger.Info("Telegram notifier stopped")
			return
		}
	}
}

// Done is closed when Run returns
func (n *Notifier) Done() <-chan struct{} {
	return n.done
}

func (n *Notifier) send(ctx context.Context, msg []byte) {
	params, ok := n.render(msg)
	if !ok {
		return
	}

	if _, err := n.sender.SendMessage(ctx, params); err != nil {
		n.logger.Warn("Failed to send telegram notification", zap.Error(err))
	}
}

// render turns an envelope into a chat message. Events without a chat
// representation are skipped.
func (n *Notifier) render(msg []byte) (*bot.SendMessageParams, bool) {
	var env realtime.Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		n.logger.Warn("Undecodable envelope", zap.Error(err))
		return nil, false
	}

	params := &bot.SendMessageParams{ChatID: n.chatID}

	if env.Event == model.EventItemsOverdue {
		var e model.OverdueEvent
		if err := json.Unmarshal(env.Data, &e); err != nil {
			n.logger.Warn("Undecodable overdue event", zap.Error(err))
			return nil, false
		}
		params.Text = FormatOverdue(e)
		return params, true
	}

	var e model.TransactionEvent
	if err := json.Unmarshal(env.Data, &e); err != nil {
		n.logger.Warn("Undecodable transaction event", zap.String("event", env.Event), zap.Error(err))
		return nil, false
	}

	params.Text = FormatTransactionEvent(env.Event, e)
	if params.Text == "" {
		return nil, false
	}
	if env.Event == model.EventNewBorrowRequest {
		params.ReplyMarkup = RequestKeyboard(e.TransactionID)
	}

	return params, true
}
