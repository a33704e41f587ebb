package telegram

import (
	"fmt"
	"strings"

	"github.com/Freeeeeet/campus_lending/internal/model"
)

const timeLayout = "02.01.2006 15:04"

// StatusDisplay is the emoji and label shown for a status
type StatusDisplay struct {
	Emoji string
	Text  string
}

// GetStatusDisplay returns how a transaction status is shown in chat
func GetStatusDisplay(status model.TransactionStatus) StatusDisplay {
	displays := map[model.TransactionStatus]StatusDisplay{
		model.StatusPending:        {"⏳", "Waiting for admin"},
		model.StatusAccepted:       {"✅", "Accepted"},
		model.StatusStudentArrived: {"🙋", "Borrower at the desk"},
		model.StatusCompleted:      {"📦", "Handed out"},
		model.StatusRejected:       {"🚫", "Rejected"},
		model.StatusAutoRejected:   {"⌛", "Expired"},
	}

	if display, ok := displays[status]; ok {
		return display
	}

	return StatusDisplay{"❓", "Unknown"}
}

// FormatRemaining renders the time left to answer as m:ss
func FormatRemaining(seconds int) string {
	if seconds <= 0 {
		return "Expired"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func borrowerLine(e model.TransactionEvent) string {
	kind := "Student"
	if e.BorrowerType == model.BorrowerLecturer {
		kind = "Lecturer"
	}
	return fmt.Sprintf("%s %s (%s)", kind, e.BorrowerName, e.BorrowerID)
}

// FormatTransactionEvent builds the chat text of an admin-room event.
// Unknown events return an empty string and are not sent.
func FormatTransactionEvent(event string, e model.TransactionEvent) string {
	var title string
	switch event {
	case model.EventNewBorrowRequest:
		title = "🆕 New borrow request"
	case model.EventRequestAccepted:
		title = "✅ Request accepted"
	case model.EventStudentArrived:
		title = "🙋 Borrower arrived, scan the item"
	case model.EventRequestProcessed:
		title = "✔️ Request processed"
	case model.EventBorrowAutoRejected:
		title = "⌛ Request expired without an answer"
	case model.EventDirectLendingCompleted:
		title = "📦 Direct lending recorded"
	case model.EventItemReturned:
		title = "↩️ Item returned"
	default:
		return ""
	}

	display := GetStatusDisplay(e.Status)

	var sb strings.Builder
	sb.WriteString(title + "\n\n")
	sb.WriteString("👤 " + borrowerLine(e) + "\n")
	if e.ClassName != "" {
		sb.WriteString("🏫 " + e.ClassName + "\n")
	}
	if e.ItemID != nil {
		sb.WriteString(fmt.Sprintf("🔖 Item #%d\n", *e.ItemID))
	}
	sb.WriteString(fmt.Sprintf("📊 %s %s\n", display.Emoji, display.Text))
	if e.Reason != "" {
		sb.WriteString("💬 " + e.Reason + "\n")
	}
	if !e.PromisedReturnAt.IsZero() {
		sb.WriteString("🕑 Return by " + e.PromisedReturnAt.Local().Format(timeLayout) + "\n")
	}
	sb.WriteString("#" + shortID(e.TransactionID))

	return sb.String()
}

// FormatOverdue builds the chat text of an overdue scan
func FormatOverdue(e model.OverdueEvent) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⚠️ %d overdue loan(s)\n", e.Count))
	for _, id := range e.TransactionIDs {
		sb.WriteString("• #" + shortID(id) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatPendingList renders the /pending reply
func FormatPendingList(views []model.PendingView) string {
	if len(views) == 0 {
		return "📭 No open requests"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 Open requests: %d\n", len(views)))
	for _, v := range views {
		display := GetStatusDisplay(v.Status)
		sb.WriteString(fmt.Sprintf("\n%s %s\n", display.Emoji, borrowerLine(model.NewTransactionEvent(v.BorrowTransaction))))
		if v.IsPending() {
			sb.WriteString("⏱ " + FormatRemaining(v.SecondsRemaining) + "\n")
		} else {
			sb.WriteString("📊 " + display.Text + "\n")
		}
		sb.WriteString("#" + shortID(v.ID) + " (" + v.CreatedAt.Local().Format(timeLayout) + ")\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
