package model

import "time"

type BorrowerKind string

const (
	BorrowerStudent  BorrowerKind = "student"
	BorrowerLecturer BorrowerKind = "lecturer"
)

// Valid reports whether k is a known borrower kind
func (k BorrowerKind) Valid() bool {
	return k == BorrowerStudent || k == BorrowerLecturer
}

type TransactionStatus string

const (
	StatusPending        TransactionStatus = "pending"         // Waiting for an admin
	StatusAccepted       TransactionStatus = "accepted"        // Accepted, borrower on the way
	StatusStudentArrived TransactionStatus = "student_arrived" // Borrower at the desk, waiting for scan
	StatusCompleted      TransactionStatus = "completed"       // Item handed out
	StatusRejected       TransactionStatus = "rejected"        // Rejected by an admin
	StatusAutoRejected   TransactionStatus = "auto_rejected"   // Nobody answered within the window
)

// transitions lists the statuses each status may move to.
var transitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:        {StatusAccepted, StatusRejected, StatusAutoRejected},
	StatusAccepted:       {StatusStudentArrived, StatusCompleted, StatusRejected},
	StatusStudentArrived: {StatusCompleted, StatusRejected},
}

// IsTerminal reports whether no transition leaves s
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusAutoRejected
}

// CanTransition reports whether the lifecycle allows moving from one status to another
func CanTransition(from, to TransactionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesOf returns every status from which to is reachable in one step
func SourcesOf(to TransactionStatus) []TransactionStatus {
	var from []TransactionStatus
	for _, s := range []TransactionStatus{StatusPending, StatusAccepted, StatusStudentArrived} {
		if CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}

type BorrowTransaction struct {
	ID               string            `json:"id"`
	BorrowerKind     BorrowerKind      `json:"borrower_type"`
	BorrowerID       string            `json:"borrower_id"` // NIM or NIP
	BorrowerName     string            `json:"borrower_name"`
	ItemID           *int64            `json:"item_id"`
	ScheduleRef      string            `json:"schedule_ref,omitempty"`
	ClassName        string            `json:"class_name,omitempty"`
	ProgramStudy     string            `json:"program_study,omitempty"`
	LecturerName     string            `json:"lecturer_name,omitempty"`
	PromisedReturnAt time.Time         `json:"promised_return_at"`
	Status           TransactionStatus `json:"status"`
	Direct           bool              `json:"direct"` // Created by an admin without a request
	RejectionReason  string            `json:"rejection_reason,omitempty"`
	ProcessedBy      string            `json:"processed_by,omitempty"` // Last admin that moved it
	CreatedAt        time.Time         `json:"created_at"`
	AcceptedAt       *time.Time        `json:"accepted_at"`
	ArrivedAt        *time.Time        `json:"arrived_at"`
	CompletedAt      *time.Time        `json:"completed_at"`
	ReturnedAt       *time.Time        `json:"returned_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// IsPending checks if the transaction still waits for an admin
func (t *BorrowTransaction) IsPending() bool {
	return t.Status == StatusPending
}

// IsOnLoan checks if the item was handed out and not yet returned
func (t *BorrowTransaction) IsOnLoan() bool {
	return t.Status == StatusCompleted && t.ReturnedAt == nil
}

// Room returns the borrower room key of the transaction
func (t *BorrowTransaction) Room() string {
	return BorrowerRoom(t.BorrowerKind, t.BorrowerID)
}

// Clone returns a deep copy, so stores can hand out values without sharing pointers
func (t *BorrowTransaction) Clone() *BorrowTransaction {
	c := *t
	c.ItemID = cloneInt64(t.ItemID)
	c.AcceptedAt = cloneTime(t.AcceptedAt)
	c.ArrivedAt = cloneTime(t.ArrivedAt)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.ReturnedAt = cloneTime(t.ReturnedAt)
	return &c
}

// StatusUpdate describes one lifecycle transition applied by a store.
// The update is applied only while the current status is one of From.
type StatusUpdate struct {
	From    []TransactionStatus
	To      TransactionStatus
	At      time.Time
	ItemID  *int64
	Reason  string
	AdminID string
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Apply writes upd into t. Timestamps already set stay untouched.
func (t *BorrowTransaction) Apply(upd StatusUpdate) {
	at := upd.At
	t.Status = upd.To
	t.UpdatedAt = at

	switch upd.To {
	case StatusAccepted:
		if t.AcceptedAt == nil {
			t.AcceptedAt = &at
		}
	case StatusStudentArrived:
		if t.ArrivedAt == nil {
			t.ArrivedAt = &at
		}
	case StatusCompleted:
		if t.CompletedAt == nil {
			t.CompletedAt = &at
		}
	case StatusRejected, StatusAutoRejected:
		t.RejectionReason = upd.Reason
	}

	if upd.ItemID != nil {
		t.ItemID = cloneInt64(upd.ItemID)
	}
	if upd.AdminID != "" {
		t.ProcessedBy = upd.AdminID
	}
}

// Allows reports whether the current status is one of from
func (u StatusUpdate) Allows(current TransactionStatus) bool {
	for _, s := range u.From {
		if s == current {
			return true
		}
	}
	return false
}
