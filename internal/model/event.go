package model

import "time"

// Event names pushed to rooms
const (
	EventNewBorrowRequest       = "new_borrow_request"
	EventRequestAccepted        = "request_accepted"
	EventBorrowAccepted         = "borrow_accepted"
	EventBorrowRejected         = "borrow_rejected"
	EventRequestProcessed       = "request_processed"
	EventStudentArrived         = "student_arrived"
	EventBorrowCompleted        = "borrow_completed"
	EventBorrowAutoRejected     = "borrow_auto_rejected"
	EventDirectLendingCompleted = "direct_lending_completed"
	EventItemReturned           = "item_returned"
	EventItemsOverdue           = "items_overdue"
)

// TransactionEvent is the payload of every per-transaction event.
// Field names are read verbatim by the borrower and admin views.
type TransactionEvent struct {
	TransactionID    string            `json:"transaction_id"`
	BorrowerType     BorrowerKind      `json:"borrower_type"`
	BorrowerID       string            `json:"borrower_id"`
	BorrowerName     string            `json:"borrower_name"`
	StudentName      string            `json:"student_name"`
	Status           TransactionStatus `json:"status"`
	Reason           string            `json:"reason,omitempty"`
	Alasan           string            `json:"alasan,omitempty"`
	ItemID           *int64            `json:"item_id,omitempty"`
	AdminID          string            `json:"admin_id,omitempty"`
	ClassName        string            `json:"class_name,omitempty"`
	ProgramStudy     string            `json:"program_study,omitempty"`
	LecturerName     string            `json:"lecturer_name,omitempty"`
	PromisedReturnAt time.Time         `json:"promised_return_at"`
	CreatedAt        time.Time         `json:"created_at"`
	AcceptedAt       *time.Time        `json:"accepted_at,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	ReturnedAt       *time.Time        `json:"returned_at,omitempty"`
}

// NewTransactionEvent builds the event payload from the committed transaction
func NewTransactionEvent(t *BorrowTransaction) TransactionEvent {
	return TransactionEvent{
		TransactionID:    t.ID,
		BorrowerType:     t.BorrowerKind,
		BorrowerID:       t.BorrowerID,
		BorrowerName:     t.BorrowerName,
		StudentName:      t.BorrowerName,
		Status:           t.Status,
		Reason:           t.RejectionReason,
		Alasan:           t.RejectionReason,
		ItemID:           cloneInt64(t.ItemID),
		AdminID:          t.ProcessedBy,
		ClassName:        t.ClassName,
		ProgramStudy:     t.ProgramStudy,
		LecturerName:     t.LecturerName,
		PromisedReturnAt: t.PromisedReturnAt,
		CreatedAt:        t.CreatedAt,
		AcceptedAt:       cloneTime(t.AcceptedAt),
		CompletedAt:      cloneTime(t.CompletedAt),
		ReturnedAt:       cloneTime(t.ReturnedAt),
	}
}

// OverdueEvent lists loans past their promised return time
type OverdueEvent struct {
	TransactionIDs []string  `json:"transaction_ids"`
	Count          int       `json:"count"`
	CheckedAt      time.Time `json:"checked_at"`
}

// PendingView is one row of the admin pending list
type PendingView struct {
	*BorrowTransaction
	SecondsRemaining int  `json:"seconds_remaining"`
	StudentArrived   bool `json:"student_arrived"`
}
