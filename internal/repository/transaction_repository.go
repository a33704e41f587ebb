package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/campus_lending/internal/model"
	"github.com/Freeeeeet/campus_lending/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionColumns = `
	id, borrower_kind, borrower_id, borrower_name, item_id, schedule_ref,
	class_name, program_study, lecturer_name, promised_return_at, status, direct,
	rejection_reason, processed_by, created_at, accepted_at, arrived_at,
	completed_at, returned_at, updated_at`

type TransactionRepository struct {
	*base.Repository
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{Repository: base.NewRepository(pool)}
}

// Create inserts a new transaction
func (r *TransactionRepository) Create(ctx context.Context, t *model.BorrowTransaction) error {
	query := `
		INSERT INTO borrow_transactions (
			id, borrower_kind, borrower_id, borrower_name, item_id, schedule_ref,
			class_name, program_study, lecturer_name, promised_return_at, status, direct,
			rejection_reason, processed_by, created_at, accepted_at, arrived_at,
			completed_at, returned_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.Pool().Exec(
		ctx, query,
		t.ID,
		string(t.BorrowerKind),
		t.BorrowerID,
		t.BorrowerName,
		t.ItemID,
		t.ScheduleRef,
		t.ClassName,
		t.ProgramStudy,
		t.LecturerName,
		t.PromisedReturnAt,
		string(t.Status),
		t.Direct,
		t.RejectionReason,
		t.ProcessedBy,
		t.CreatedAt,
		t.AcceptedAt,
		t.ArrivedAt,
		t.CompletedAt,
		t.ReturnedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	return nil
}

// GetByID returns the transaction or nil when it does not exist
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*model.BorrowTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM borrow_transactions WHERE id = $1`

	t, err := scanTransaction(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}

	return t, nil
}

// UpdateStatus moves the transaction to upd.To in one statement, guarded by
// the current status. Returns nil, nil when the guard did not match.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id string, upd model.StatusUpdate) (*model.BorrowTransaction, error) {
	query := `
		UPDATE borrow_transactions
		SET status = $2::text,
		    updated_at = $3,
		    accepted_at = CASE WHEN $2::text = 'accepted' THEN COALESCE(accepted_at, $3) ELSE accepted_at END,
		    arrived_at = CASE WHEN $2::text = 'student_arrived' THEN COALESCE(arrived_at, $3) ELSE arrived_at END,
		    completed_at = CASE WHEN $2::text = 'completed' THEN COALESCE(completed_at, $3) ELSE completed_at END,
		    rejection_reason = CASE WHEN $2::text IN ('rejected', 'auto_rejected') THEN $4::text ELSE rejection_reason END,
		    item_id = COALESCE($5, item_id),
		    processed_by = CASE WHEN $6::text <> '' THEN $6::text ELSE processed_by END
		WHERE id = $1 AND status = ANY($7::text[])
		RETURNING ` + transactionColumns

	t, err := scanTransaction(r.QueryRow(
		ctx, query,
		id,
		string(upd.To),
		upd.At,
		upd.Reason,
		upd.ItemID,
		upd.AdminID,
		statusStrings(upd.From),
	))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("update transaction status: %w", err)
	}

	return t, nil
}

// MarkReturned records the return of a completed loan
func (r *TransactionRepository) MarkReturned(ctx context.Context, id string, at time.Time, adminID string) (*model.BorrowTransaction, error) {
	query := `
		UPDATE borrow_transactions
		SET returned_at = $2,
		    updated_at = $2,
		    processed_by = CASE WHEN $3::text <> '' THEN $3::text ELSE processed_by END
		WHERE id = $1 AND status = 'completed' AND returned_at IS NULL
		RETURNING ` + transactionColumns

	t, err := scanTransaction(r.QueryRow(ctx, query, id, at, adminID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mark transaction returned: %w", err)
	}

	return t, nil
}

// ListByStatus returns transactions in any of statuses, oldest first
func (r *TransactionRepository) ListByStatus(ctx context.Context, statuses ...model.TransactionStatus) ([]*model.BorrowTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM borrow_transactions
		WHERE status = ANY($1::text[])
		ORDER BY created_at, id
	`

	return r.list(ctx, "list transactions by status", query, statusStrings(statuses))
}

// ListOverdue returns loans whose promised return time has passed
func (r *TransactionRepository) ListOverdue(ctx context.Context, now time.Time) ([]*model.BorrowTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM borrow_transactions
		WHERE status = 'completed' AND returned_at IS NULL AND promised_return_at < $1
		ORDER BY created_at, id
	`

	return r.list(ctx, "list overdue transactions", query, now)
}

// ListCurrentLoans returns items handed out and not returned, newest first
func (r *TransactionRepository) ListCurrentLoans(ctx context.Context) ([]*model.BorrowTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM borrow_transactions
		WHERE status = 'completed' AND returned_at IS NULL
		ORDER BY created_at DESC, id DESC
	`

	return r.list(ctx, "list current loans", query)
}

// ListHistory returns one page of all transactions, newest first, and the total count
func (r *TransactionRepository) ListHistory(ctx context.Context, limit, offset int) ([]*model.BorrowTransaction, int, error) {
	var total int
	if err := r.QueryRow(ctx, `SELECT COUNT(*) FROM borrow_transactions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM borrow_transactions
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	page, err := r.list(ctx, "list history", query, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	return page, total, nil
}

// CountLoansByItem counts completed loans per item, most lent first
func (r *TransactionRepository) CountLoansByItem(ctx context.Context, limit int) ([]model.ItemLoanCount, error) {
	query := `
		SELECT item_id, COUNT(*), COUNT(*) FILTER (WHERE returned_at IS NULL)
		FROM borrow_transactions
		WHERE status = 'completed' AND item_id IS NOT NULL
		GROUP BY item_id
		ORDER BY COUNT(*) DESC, item_id
		LIMIT $1
	`

	rows, err := r.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("count loans by item: %w", err)
	}
	defer rows.Close()

	counts := make([]model.ItemLoanCount, 0)
	for rows.Next() {
		var c model.ItemLoanCount
		if err := rows.Scan(&c.ItemID, &c.Loans, &c.OnLoan); err != nil {
			return nil, fmt.Errorf("scan loan count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count loans by item: %w", err)
	}

	return counts, nil
}

func (r *TransactionRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.BorrowTransaction, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]*model.BorrowTransaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		result = append(result, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

func scanTransaction(row pgx.Row) (*model.BorrowTransaction, error) {
	var (
		t      model.BorrowTransaction
		kind   string
		status string
	)

	err := row.Scan(
		&t.ID,
		&kind,
		&t.BorrowerID,
		&t.BorrowerName,
		&t.ItemID,
		&t.ScheduleRef,
		&t.ClassName,
		&t.ProgramStudy,
		&t.LecturerName,
		&t.PromisedReturnAt,
		&status,
		&t.Direct,
		&t.RejectionReason,
		&t.ProcessedBy,
		&t.CreatedAt,
		&t.AcceptedAt,
		&t.ArrivedAt,
		&t.CompletedAt,
		&t.ReturnedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.BorrowerKind = model.BorrowerKind(kind)
	t.Status = model.TransactionStatus(status)
	return &t, nil
}

func statusStrings(statuses []model.TransactionStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
