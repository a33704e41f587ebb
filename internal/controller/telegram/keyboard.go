package telegram

import (
	"strings"

	"github.com/go-telegram/bot/models"
)

// Callback data prefixes of the request buttons
const (
	AcceptRequest = "accept:" // accept:<transaction id>
	RejectRequest = "reject:" // reject:<transaction id>
)

// RequestKeyboard returns the accept/reject buttons of a Pending request
func RequestKeyboard(transactionID string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "✅ Accept", CallbackData: AcceptRequest + transactionID},
			{Text: "🚫 Reject", CallbackData: RejectRequest + transactionID},
		}},
	}
}

// ParseCallback splits "accept:<id>" into its prefix and id
func ParseCallback(data string) (action, id string, ok bool) {
	for _, prefix := range []string{AcceptRequest, RejectRequest} {
		if rest, found := strings.CutPrefix(data, prefix); found && rest != "" {
			return prefix, rest, true
		}
	}
	return "", "", false
}
