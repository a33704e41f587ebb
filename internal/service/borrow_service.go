package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/campus_lending/internal/metrics"
	"github.com/Freeeeeet/campus_lending/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultExpiryWindow = 15 * time.Minute
	defaultStoreTimeout = 10 * time.Second
	defaultRejectReason = "Request rejected by admin"

	defaultHistoryLimit  = 10
	maxHistoryLimit      = 100
	defaultTopItemsLimit = 5
	maxTopItemsLimit     = 50

	// SystemActor is recorded as the processor of automatic transitions
	SystemActor = "system"
)

// TransactionStore is the persisted record of borrow transactions.
// Lookups return nil, nil when nothing matches.
type TransactionStore interface {
	Create(ctx context.Context, t *model.BorrowTransaction) error
	GetByID(ctx context.Context, id string) (*model.BorrowTransaction, error)
	// UpdateStatus applies upd atomically, only while the stored status is
	// one of upd.From. Returns nil, nil when no row matched.
	UpdateStatus(ctx context.Context, id string, upd model.StatusUpdate) (*model.BorrowTransaction, error)
	// MarkReturned sets returned_at on a completed, unreturned transaction.
	MarkReturned(ctx context.Context, id string, at time.Time, adminID string) (*model.BorrowTransaction, error)
	ListByStatus(ctx context.Context, statuses ...model.TransactionStatus) ([]*model.BorrowTransaction, error)
	ListOverdue(ctx context.Context, now time.Time) ([]*model.BorrowTransaction, error)
	ListCurrentLoans(ctx context.Context) ([]*model.BorrowTransaction, error)
	ListHistory(ctx context.Context, limit, offset int) ([]*model.BorrowTransaction, int, error)
	// CountLoansByItem counts completed loans per item, most lent first.
	CountLoansByItem(ctx context.Context, limit int) ([]model.ItemLoanCount, error)
}

// Publisher delivers an event to every member of a room
type Publisher interface {
	Publish(room, event string, payload any)
}

// BorrowRequest is a borrower submission
type BorrowRequest struct {
	BorrowerKind     model.BorrowerKind
	BorrowerID       string
	BorrowerName     string
	ItemID           *int64 // nil defers selection to the barcode scan
	ScheduleRef      string
	ClassName        string
	ProgramStudy     string
	LecturerName     string
	PromisedReturnAt time.Time
}

// DirectLending is an admin-initiated loan without a prior request
type DirectLending struct {
	BorrowerKind     model.BorrowerKind
	BorrowerID       string
	BorrowerName     string
	Barcode          string
	ScheduleRef      string
	ClassName        string
	ProgramStudy     string
	LecturerName     string
	PromisedReturnAt time.Time
}

type Options struct {
	ExpiryWindow time.Duration
	StoreTimeout time.Duration
	Clock        Clock
	Metrics      *metrics.Metrics
}

// BorrowService coordinates the borrow request lifecycle. Every mutation of a
// transaction runs under that transaction's lock, and events are published
// only after the store accepted the change, so events of one transaction
// leave in transition order.
type BorrowService struct {
	store     TransactionStore
	inventory Inventory
	resolver  *BarcodeResolver
	publisher Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics

	clock        Clock
	window       time.Duration
	storeTimeout time.Duration
	locks        *keyedMutex
	timers       *expiryTimers
	newID        func() string
}

func NewBorrowService(
	store TransactionStore,
	inventory Inventory,
	publisher Publisher,
	logger *zap.Logger,
	opts Options,
) *BorrowService {
	if opts.ExpiryWindow <= 0 {
		opts.ExpiryWindow = defaultExpiryWindow
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}

	return &BorrowService{
		store:        store,
		inventory:    inventory,
		resolver:     NewBarcodeResolver(inventory),
		publisher:    publisher,
		logger:       logger,
		metrics:      opts.Metrics,
		clock:        opts.Clock,
		window:       opts.ExpiryWindow,
		storeTimeout: opts.StoreTimeout,
		locks:        newKeyedMutex(),
		timers:       newExpiryTimers(opts.Clock),
		newID:        uuid.NewString,
	}
}

// SubmitRequest creates a Pending transaction and starts its expiry timer
func (s *BorrowService) SubmitRequest(ctx context.Context, req BorrowRequest) (*model.BorrowTransaction, error) {
	now := s.clock.Now()

	fields := validateBorrower(req.BorrowerKind, req.BorrowerID, req.BorrowerName, req.PromisedReturnAt, now)
	if req.ItemID != nil && *req.ItemID <= 0 {
		fields = append(fields, "item_id")
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	tx := &model.BorrowTransaction{
		ID:               s.newID(),
		BorrowerKind:     req.BorrowerKind,
		BorrowerID:       strings.TrimSpace(req.BorrowerID),
		BorrowerName:     strings.TrimSpace(req.BorrowerName),
		ItemID:           req.ItemID,
		ScheduleRef:      req.ScheduleRef,
		ClassName:        req.ClassName,
		ProgramStudy:     req.ProgramStudy,
		LecturerName:     req.LecturerName,
		PromisedReturnAt: req.PromisedReturnAt,
		Status:           model.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	unlock := s.locks.Lock(tx.ID)
	defer unlock()

	if err := s.store.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	s.timers.Arm(tx.ID, s.window, s.onExpiry)
	s.observe(tx.Status)
	s.metrics.SetArmedTimers(s.timers.Len())

	s.logger.Info("Borrow request submitted",
		zap.String("transaction_id", tx.ID),
		zap.String("borrower_type", string(tx.BorrowerKind)),
		zap.String("borrower_id", tx.BorrowerID),
		zap.Duration("window", s.window),
	)

	s.emit(model.AdminRoom, model.EventNewBorrowRequest, tx)

	return tx, nil
}

// AcceptRequest moves a Pending transaction to Accepted
func (s *BorrowService) AcceptRequest(ctx context.Context, id, adminID string) (*model.BorrowTransaction, error) {
	if adminID == "" {
		return nil, &ValidationError{Fields: []string{"admin_id"}}
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	tx, err := s.transition(ctx, id, model.StatusUpdate{
		From:    []model.TransactionStatus{model.StatusPending},
		To:      model.StatusAccepted,
		At:      s.clock.Now(),
		AdminID: adminID,
	})
	if err != nil {
		return nil, err
	}

	s.cancelExpiry(id)

	s.logger.Info("Borrow request accepted",
		zap.String("transaction_id", id),
		zap.String("admin_id", adminID),
	)

	s.emit(model.AdminRoom, model.EventRequestAccepted, tx)
	s.emit(tx.Room(), model.EventBorrowAccepted, tx)

	return tx, nil
}

// RejectRequest rejects any non-terminal transaction
func (s *BorrowService) RejectRequest(ctx context.Context, id, adminID, reason string) (*model.BorrowTransaction, error) {
	if adminID == "" {
		return nil, &ValidationError{Fields: []string{"admin_id"}}
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultRejectReason
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	tx, err := s.transition(ctx, id, model.StatusUpdate{
		From:    model.SourcesOf(model.StatusRejected),
		To:      model.StatusRejected,
		At:      s.clock.Now(),
		Reason:  reason,
		AdminID: adminID,
	})
	if err != nil {
		return nil, err
	}

	s.cancelExpiry(id)

	s.logger.Info("Borrow request rejected",
		zap.String("transaction_id", id),
		zap.String("admin_id", adminID),
		zap.String("reason", reason),
	)

	s.emit(tx.Room(), model.EventBorrowRejected, tx)
	s.emit(model.AdminRoom, model.EventRequestProcessed, tx)

	return tx, nil
}

// MarkStudentArrived records that the borrower of an Accepted request is at
// the desk. Only the borrower that submitted the request can report it.
func (s *BorrowService) MarkStudentArrived(ctx context.Context, id, borrowerID string) (*model.BorrowTransaction, error) {
	borrowerID = strings.TrimSpace(borrowerID)
	if borrowerID == "" {
		return nil, &ValidationError{Fields: []string{"borrower_id"}}
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if current == nil {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if current.BorrowerID != borrowerID {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrBorrowerMismatch)
	}

	tx, err := s.transition(ctx, id, model.StatusUpdate{
		From: []model.TransactionStatus{model.StatusAccepted},
		To:   model.StatusStudentArrived,
		At:   s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Borrower arrived", zap.String("transaction_id", id))

	s.emit(model.AdminRoom, model.EventStudentArrived, tx)

	return tx, nil
}

// ResolveBarcode looks up the available item behind a barcode without changing anything
func (s *BorrowService) ResolveBarcode(ctx context.Context, barcode string) (*model.Item, error) {
	return s.resolver.Resolve(ctx, barcode)
}

// CompleteWithScan hands out the scanned item and completes the transaction.
// On any failure the transaction keeps its previous status.
func (s *BorrowService) CompleteWithScan(ctx context.Context, id, barcode, adminID string) (*model.BorrowTransaction, error) {
	if adminID == "" {
		return nil, &ValidationError{Fields: []string{"admin_id"}}
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if current == nil {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}

	from := model.SourcesOf(model.StatusCompleted)
	if !model.CanTransition(current.Status, model.StatusCompleted) {
		return nil, fmt.Errorf("complete transaction %s from %s: %w", id, current.Status, ErrInvalidState)
	}

	item, err := s.claimItem(ctx, barcode)
	if err != nil {
		return nil, err
	}

	tx, err := s.transition(ctx, id, model.StatusUpdate{
		From:    from,
		To:      model.StatusCompleted,
		At:      s.clock.Now(),
		ItemID:  &item.ID,
		AdminID: adminID,
	})
	if err != nil {
		s.releaseItem(ctx, item.ID)
		return nil, err
	}

	s.logger.Info("Borrow transaction completed",
		zap.String("transaction_id", id),
		zap.Int64("item_id", item.ID),
		zap.String("barcode", item.Barcode),
	)

	s.emit(tx.Room(), model.EventBorrowCompleted, tx)
	s.emit(model.AdminRoom, model.EventRequestProcessed, tx)

	return tx, nil
}

// DirectAdminLending records a loan that never went through a request. The
// transaction is created already Completed and only the admin room hears of it.
func (s *BorrowService) DirectAdminLending(ctx context.Context, req DirectLending, adminID string) (*model.BorrowTransaction, error) {
	now := s.clock.Now()

	fields := validateBorrower(req.BorrowerKind, req.BorrowerID, req.BorrowerName, req.PromisedReturnAt, now)
	if strings.TrimSpace(req.Barcode) == "" {
		fields = append(fields, "barcode")
	}
	if adminID == "" {
		fields = append(fields, "admin_id")
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	item, err := s.claimItem(ctx, req.Barcode)
	if err != nil {
		return nil, err
	}

	tx := &model.BorrowTransaction{
		ID:               s.newID(),
		BorrowerKind:     req.BorrowerKind,
		BorrowerID:       strings.TrimSpace(req.BorrowerID),
		BorrowerName:     strings.TrimSpace(req.BorrowerName),
		ItemID:           &item.ID,
		ScheduleRef:      req.ScheduleRef,
		ClassName:        req.ClassName,
		ProgramStudy:     req.ProgramStudy,
		LecturerName:     req.LecturerName,
		PromisedReturnAt: req.PromisedReturnAt,
		Status:           model.StatusCompleted,
		Direct:           true,
		ProcessedBy:      adminID,
		CreatedAt:        now,
		AcceptedAt:       &now,
		CompletedAt:      &now,
		UpdatedAt:        now,
	}

	if err := s.store.Create(ctx, tx); err != nil {
		s.releaseItem(ctx, item.ID)
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	s.observe(tx.Status)

	s.logger.Info("Direct lending completed",
		zap.String("transaction_id", tx.ID),
		zap.String("admin_id", adminID),
		zap.Int64("item_id", item.ID),
	)

	s.emit(model.AdminRoom, model.EventDirectLendingCompleted, tx)

	return tx, nil
}

// ReturnItem closes a loan: the item goes back to the inventory. The
// transaction stays Completed.
func (s *BorrowService) ReturnItem(ctx context.Context, id, adminID string) (*model.BorrowTransaction, error) {
	if adminID == "" {
		return nil, &ValidationError{Fields: []string{"admin_id"}}
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	tx, err := s.store.MarkReturned(ctx, id, s.clock.Now(), adminID)
	if err != nil {
		return nil, fmt.Errorf("mark returned: %w", err)
	}

	if tx == nil {
		current, err := s.store.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get transaction: %w", err)
		}
		if current == nil {
			return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("return transaction %s (%s): %w", id, current.Status, ErrInvalidState)
	}

	if tx.ItemID != nil {
		if err := s.inventory.MarkAvailable(ctx, *tx.ItemID); err != nil {
			s.logger.Error("Failed to mark item available",
				zap.String("transaction_id", id),
				zap.Int64("item_id", *tx.ItemID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Item returned", zap.String("transaction_id", id), zap.String("admin_id", adminID))

	s.emit(model.AdminRoom, model.EventItemReturned, tx)

	return tx, nil
}

// GetTransaction returns one transaction or ErrNotFound
func (s *BorrowService) GetTransaction(ctx context.Context, id string) (*model.BorrowTransaction, error) {
	tx, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return tx, nil
}

// ListPendingRequests returns the admin working list: requests that are not
// yet handed out, oldest first, with the remaining response time.
func (s *BorrowService) ListPendingRequests(ctx context.Context) ([]model.PendingView, error) {
	txs, err := s.store.ListByStatus(ctx, model.StatusPending, model.StatusAccepted, model.StatusStudentArrived)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	now := s.clock.Now()
	views := make([]model.PendingView, 0, len(txs))
	for _, tx := range txs {
		view := model.PendingView{
			BorrowTransaction: tx,
			StudentArrived:    tx.Status == model.StatusStudentArrived,
		}
		if tx.IsPending() {
			view.SecondsRemaining = SecondsRemaining(s.window, tx.CreatedAt, now)
		}
		views = append(views, view)
	}

	return views, nil
}

// ListCurrentLoans returns items handed out and not yet returned
func (s *BorrowService) ListCurrentLoans(ctx context.Context) ([]*model.BorrowTransaction, error) {
	return s.store.ListCurrentLoans(ctx)
}

// HistoryPage is one page of the history log with the paging actually applied
type HistoryPage struct {
	Items []*model.BorrowTransaction `json:"items"`
	Total int                        `json:"total"`
	Page  int                        `json:"page"`
	Limit int                        `json:"limit"`
}

// ListHistory returns one page of all transactions, newest first. Out of
// range page and limit values fall back to the defaults.
func (s *BorrowService) ListHistory(ctx context.Context, page, limit int) (*HistoryPage, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	if page <= 0 {
		page = 1
	}

	items, total, err := s.store.ListHistory(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	return &HistoryPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// TopLendingItems ranks items by how often they were handed out, most lent
// first. Items no longer known to the inventory are listed by id only.
func (s *BorrowService) TopLendingItems(ctx context.Context, limit int) ([]model.ItemLendingStat, error) {
	if limit <= 0 || limit > maxTopItemsLimit {
		limit = defaultTopItemsLimit
	}

	counts, err := s.store.CountLoansByItem(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("count loans by item: %w", err)
	}

	stats := make([]model.ItemLendingStat, 0, len(counts))
	for _, c := range counts {
		stat := model.ItemLendingStat{
			ItemID:       c.ItemID,
			LentQuantity: c.Loans,
			OnLoan:       c.OnLoan,
		}

		item, err := s.inventory.GetItem(ctx, c.ItemID)
		if err != nil {
			return nil, fmt.Errorf("get item %d: %w", c.ItemID, err)
		}
		if item != nil {
			stat.Barcode = item.Barcode
			stat.Name = item.Name
			stat.Status = item.Status
		}

		stats = append(stats, stat)
	}

	return stats, nil
}

// RestoreTimers re-arms expiry timers for Pending transactions found in the
// store, e.g. after a restart. Already expired ones fire right away.
func (s *BorrowService) RestoreTimers(ctx context.Context) (int, error) {
	pending, err := s.store.ListByStatus(ctx, model.StatusPending)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	now := s.clock.Now()
	for _, tx := range pending {
		s.timers.Arm(tx.ID, remaining(s.window, tx.CreatedAt, now), s.onExpiry)
	}
	s.metrics.SetArmedTimers(s.timers.Len())

	return len(pending), nil
}

// ExpireStale auto-rejects every Pending transaction whose window has passed.
// It backs up the per-transaction timers.
func (s *BorrowService) ExpireStale(ctx context.Context) (int, error) {
	pending, err := s.store.ListByStatus(ctx, model.StatusPending)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	now := s.clock.Now()
	expired := 0
	for _, tx := range pending {
		if remaining(s.window, tx.CreatedAt, now) > 0 {
			continue
		}
		err := s.expire(ctx, tx.ID)
		switch {
		case err == nil:
			expired++
		case isLostRace(err):
			s.logger.Debug("Expiry sweep lost race", zap.String("transaction_id", tx.ID), zap.Error(err))
		default:
			return expired, err
		}
	}

	return expired, nil
}

// CheckOverdue notifies admins about loans past their promised return time
func (s *BorrowService) CheckOverdue(ctx context.Context) (int, error) {
	now := s.clock.Now()

	overdue, err := s.store.ListOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue: %w", err)
	}

	s.metrics.SetOverdueLoans(len(overdue))
	if len(overdue) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(overdue))
	for _, tx := range overdue {
		ids = append(ids, tx.ID)
	}

	s.logger.Info("Overdue loans found", zap.Int("count", len(ids)))

	s.publisher.Publish(model.AdminRoom, model.EventItemsOverdue, model.OverdueEvent{
		TransactionIDs: ids,
		Count:          len(ids),
		CheckedAt:      now,
	})

	return len(ids), nil
}

// Close stops every expiry timer
func (s *BorrowService) Close() {
	s.timers.StopAll()
	s.metrics.SetArmedTimers(0)
}

// onExpiry runs on the timer goroutine
func (s *BorrowService) onExpiry(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.storeTimeout)
	defer cancel()

	err := s.expire(ctx, id)
	switch {
	case err == nil:
	case isLostRace(err):
		// An admin got there first and the borrower already heard about it.
		s.logger.Debug("Expiry lost race", zap.String("transaction_id", id), zap.Error(err))
	default:
		s.logger.Error("Failed to auto-reject transaction", zap.String("transaction_id", id), zap.Error(err))
	}
}

// expire auto-rejects id if it is still Pending and its window has passed
func (s *BorrowService) expire(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	if current == nil {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if !current.IsPending() {
		return fmt.Errorf("expire transaction %s (%s): %w", id, current.Status, ErrInvalidState)
	}

	now := s.clock.Now()
	if left := remaining(s.window, current.CreatedAt, now); left > 0 {
		s.timers.Arm(id, left, s.onExpiry)
		return nil
	}

	tx, err := s.transition(ctx, id, model.StatusUpdate{
		From:    []model.TransactionStatus{model.StatusPending},
		To:      model.StatusAutoRejected,
		At:      now,
		Reason:  fmt.Sprintf("No admin response within %s", s.window),
		AdminID: SystemActor,
	})
	if err != nil {
		return err
	}

	s.cancelExpiry(id)

	s.logger.Info("Borrow request auto-rejected", zap.String("transaction_id", id))

	s.emit(tx.Room(), model.EventBorrowAutoRejected, tx)
	s.emit(model.AdminRoom, model.EventBorrowAutoRejected, tx)

	return nil
}

// transition applies upd and tells not-found apart from a status conflict
func (s *BorrowService) transition(ctx context.Context, id string, upd model.StatusUpdate) (*model.BorrowTransaction, error) {
	tx, err := s.store.UpdateStatus(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	if tx == nil {
		current, err := s.store.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get transaction: %w", err)
		}
		if current == nil {
			return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("move transaction %s from %s to %s: %w", id, current.Status, upd.To, ErrInvalidState)
	}

	s.observe(tx.Status)
	return tx, nil
}

// claimItem resolves barcode and marks the item lent. The inventory refuses
// items that are no longer available, so two scans cannot lend one item.
func (s *BorrowService) claimItem(ctx context.Context, barcode string) (*model.Item, error) {
	item, err := s.resolver.Resolve(ctx, barcode)
	if err != nil {
		return nil, err
	}

	if err := s.inventory.MarkLent(ctx, item.ID); err != nil {
		if errors.Is(err, model.ErrItemUnavailable) {
			return nil, fmt.Errorf("barcode %q: %w", barcode, ErrItemNotFound)
		}
		return nil, fmt.Errorf("mark item lent: %w", err)
	}

	return item, nil
}

func (s *BorrowService) releaseItem(ctx context.Context, itemID int64) {
	if err := s.inventory.MarkAvailable(ctx, itemID); err != nil {
		s.logger.Error("Failed to release item", zap.Int64("item_id", itemID), zap.Error(err))
	}
}

func (s *BorrowService) cancelExpiry(id string) {
	s.timers.Cancel(id)
	s.metrics.SetArmedTimers(s.timers.Len())
}

func (s *BorrowService) observe(status model.TransactionStatus) {
	s.metrics.ObserveTransition(string(status))
}

func (s *BorrowService) emit(room, event string, tx *model.BorrowTransaction) {
	s.publisher.Publish(room, event, model.NewTransactionEvent(tx))
}

func validateBorrower(kind model.BorrowerKind, id, name string, promised, now time.Time) []string {
	var fields []string
	if !kind.Valid() {
		fields = append(fields, "borrower_type")
	}
	if strings.TrimSpace(id) == "" {
		fields = append(fields, "borrower_id")
	}
	if strings.TrimSpace(name) == "" {
		fields = append(fields, "borrower_name")
	}
	if !promised.After(now) {
		fields = append(fields, "promised_return_at")
	}
	return fields
}

func isLostRace(err error) bool {
	return errors.Is(err, ErrInvalidState) || errors.Is(err, ErrNotFound)
}
