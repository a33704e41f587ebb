package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/campus_lending/internal/model"
	"github.com/Freeeeeet/campus_lending/internal/repository/memory"
	"go.uber.org/zap/zaptest"
)

const testWindow = 15 * time.Minute

var testStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	svc       *BorrowService
	store     *memory.TransactionStore
	inventory *memory.Inventory
	pub       *recordingPublisher
	clock     *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store: memory.NewTransactionStore(),
		inventory: memory.NewInventory(
			model.Item{ID: 1, Barcode: "BC-001", Name: "Projector Epson"},
			model.Item{ID: 2, Barcode: "BC-002", Name: "HDMI cable"},
			model.Item{ID: 3, Barcode: "BC-003", Name: "Speaker", Status: model.ItemStatusBroken},
		),
		pub:   &recordingPublisher{},
		clock: newFakeClock(testStart),
	}
	env.svc = NewBorrowService(env.store, env.inventory, env.pub, zaptest.NewLogger(t), Options{
		ExpiryWindow: testWindow,
		Clock:        env.clock,
	})
	t.Cleanup(env.svc.Close)

	return env
}

func (e *testEnv) studentRequest() BorrowRequest {
	return BorrowRequest{
		BorrowerKind:     model.BorrowerStudent,
		BorrowerID:       "2106",
		BorrowerName:     "Siti Rahma",
		ClassName:        "TI-3A",
		ProgramStudy:     "Teknik Informatika",
		LecturerName:     "Pak Andi",
		PromisedReturnAt: e.clock.Now().Add(24 * time.Hour),
	}
}

func (e *testEnv) submit(t *testing.T) *model.BorrowTransaction {
	t.Helper()
	tx, err := e.svc.SubmitRequest(context.Background(), e.studentRequest())
	if err != nil {
		t.Fatalf("SubmitRequest() error = %v", err)
	}
	return tx
}

func (e *testEnv) status(t *testing.T, id string) model.TransactionStatus {
	t.Helper()
	tx, err := e.store.GetByID(context.Background(), id)
	if err != nil || tx == nil {
		t.Fatalf("GetByID(%s) = %v, %v", id, tx, err)
	}
	return tx.Status
}

func equalNames(got, want []string) bool {
	return strings.Join(got, ",") == strings.Join(want, ",")
}

func TestSubmitRequest_Validation(t *testing.T) {
	env := newTestEnv(t)
	valid := env.studentRequest()
	badItem := int64(0)

	tests := []struct {
		name   string
		modify func(r *BorrowRequest)
		field  string
	}{
		{"unknown borrower type", func(r *BorrowRequest) { r.BorrowerKind = "staff" }, "borrower_type"},
		{"missing borrower id", func(r *BorrowRequest) { r.BorrowerID = "  " }, "borrower_id"},
		{"missing borrower name", func(r *BorrowRequest) { r.BorrowerName = "" }, "borrower_name"},
		{"missing promised return", func(r *BorrowRequest) { r.PromisedReturnAt = time.Time{} }, "promised_return_at"},
		{"promised return is now", func(r *BorrowRequest) { r.PromisedReturnAt = testStart }, "promised_return_at"},
		{"promised return in the past", func(r *BorrowRequest) { r.PromisedReturnAt = testStart.Add(-time.Minute) }, "promised_return_at"},
		{"non-positive item id", func(r *BorrowRequest) { r.ItemID = &badItem }, "item_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.modify(&req)

			_, err := env.svc.SubmitRequest(context.Background(), req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("SubmitRequest() error = %v, want ErrValidation", err)
			}

			var ve *ValidationError
			if !errors.As(err, &ve) || !strings.Contains(strings.Join(ve.Fields, ","), tt.field) {
				t.Errorf("ValidationError fields = %v, want %s", ve, tt.field)
			}
		})
	}

	if got := env.pub.count(model.EventNewBorrowRequest); got != 0 {
		t.Errorf("invalid submissions published %d events", got)
	}
	if n := env.svc.timers.Len(); n != 0 {
		t.Errorf("invalid submissions armed %d timers", n)
	}
}

func TestScenario_AcceptThenCompleteWithScan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	borrowerRoom := model.BorrowerRoom(model.BorrowerStudent, "2106")

	tx := env.submit(t)
	if tx.Status != model.StatusPending || tx.ItemID != nil {
		t.Fatalf("submitted transaction = %+v", tx)
	}
	if got := env.pub.names(model.AdminRoom); !equalNames(got, []string{model.EventNewBorrowRequest}) {
		t.Fatalf("admin events after submit = %v", got)
	}

	accepted, err := env.svc.AcceptRequest(ctx, tx.ID, "admin-1")
	if err != nil {
		t.Fatalf("AcceptRequest() error = %v", err)
	}
	if accepted.Status != model.StatusAccepted || accepted.AcceptedAt == nil {
		t.Fatalf("accepted transaction = %+v", accepted)
	}
	if got := env.pub.names(borrowerRoom); !equalNames(got, []string{model.EventBorrowAccepted}) {
		t.Fatalf("borrower events after accept = %v", got)
	}
	if env.svc.timers.Len() != 0 {
		t.Errorf("expiry timer still armed after accept")
	}

	completed, err := env.svc.CompleteWithScan(ctx, tx.ID, "BC-001", "admin-1")
	if err != nil {
		t.Fatalf("CompleteWithScan() error = %v", err)
	}
	if completed.Status != model.StatusCompleted || completed.ItemID == nil || *completed.ItemID != 1 {
		t.Fatalf("completed transaction = %+v", completed)
	}
	if completed.CompletedAt == nil || !completed.AcceptedAt.Equal(*accepted.AcceptedAt) {
		t.Errorf("timestamps changed: accepted %v -> %v", accepted.AcceptedAt, completed.AcceptedAt)
	}

	ev, ok := env.pub.last(borrowerRoom, model.EventBorrowCompleted)
	if !ok || ev.TransactionID != tx.ID {
		t.Fatalf("borrow_completed payload = %+v, %v", ev, ok)
	}

	wantAdmin := []string{model.EventNewBorrowRequest, model.EventRequestAccepted, model.EventRequestProcessed}
	if got := env.pub.names(model.AdminRoom); !equalNames(got, wantAdmin) {
		t.Errorf("admin events = %v, want %v", got, wantAdmin)
	}

	item, _ := env.inventory.Get(1)
	if item.Status != model.ItemStatusLent {
		t.Errorf("item status = %s, want lent", item.Status)
	}
}

func TestScenario_AutoExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	borrowerRoom := model.BorrowerRoom(model.BorrowerStudent, "2106")

	tx := env.submit(t)

	env.clock.Advance(testWindow - time.Second)
	if got := env.status(t, tx.ID); got != model.StatusPending {
		t.Fatalf("status before window = %s, want pending", got)
	}

	env.clock.Advance(time.Second)
	if got := env.status(t, tx.ID); got != model.StatusAutoRejected {
		t.Fatalf("status after window = %s, want auto_rejected", got)
	}

	ev, ok := env.pub.last(borrowerRoom, model.EventBorrowAutoRejected)
	if !ok || ev.Reason == "" || ev.TransactionID != tx.ID {
		t.Fatalf("borrower auto-reject payload = %+v, %v", ev, ok)
	}
	if _, ok := env.pub.last(model.AdminRoom, model.EventBorrowAutoRejected); !ok {
		t.Errorf("admin room did not receive borrow_auto_rejected")
	}

	pending, err := env.svc.ListPendingRequests(ctx)
	if err != nil {
		t.Fatalf("ListPendingRequests() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending list = %d entries, want 0", len(pending))
	}

	if _, err := env.svc.AcceptRequest(ctx, tx.ID, "admin-1"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("AcceptRequest() after expiry error = %v, want ErrInvalidState", err)
	}
}

func TestExpiryAfterAcceptIsNoop(t *testing.T) {
	env := newTestEnv(t)

	tx := env.submit(t)
	if _, err := env.svc.AcceptRequest(context.Background(), tx.ID, "admin-1"); err != nil {
		t.Fatalf("AcceptRequest() error = %v", err)
	}

	env.clock.Advance(2 * testWindow)

	if got := env.status(t, tx.ID); got != model.StatusAccepted {
		t.Errorf("status = %s, want accepted", got)
	}
	if n := env.pub.count(model.EventBorrowAutoRejected); n != 0 {
		t.Errorf("auto-reject events = %d, want 0", n)
	}
}

func TestExpiryOfStaleTimerCallback(t *testing.T) {
	env := newTestEnv(t)
	tx := env.submit(t)

	if _, err := env.svc.RejectRequest(context.Background(), tx.ID, "admin-1", "stok habis"); err != nil {
		t.Fatalf("RejectRequest() error = %v", err)
	}

	// A callback that was already running when the timer got cancelled.
	env.svc.onExpiry(tx.ID)

	if got := env.status(t, tx.ID); got != model.StatusRejected {
		t.Errorf("status = %s, want rejected", got)
	}
	if n := env.pub.count(model.EventBorrowAutoRejected); n != 0 {
		t.Errorf("auto-reject events = %d, want 0", n)
	}
}

func TestAcceptRacesExpiry(t *testing.T) {
	for i := 0; i < 50; i++ {
		t.Run(fmt.Sprintf("round-%d", i), func(t *testing.T) {
			env := newTestEnv(t)
			tx := env.submit(t)

			var (
				wg        sync.WaitGroup
				acceptErr error
			)
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, acceptErr = env.svc.AcceptRequest(context.Background(), tx.ID, "admin-1")
			}()
			go func() {
				defer wg.Done()
				env.clock.Advance(testWindow)
			}()
			wg.Wait()

			accepted := env.pub.count(model.EventBorrowAccepted)
			autoRejected := env.pub.count(model.EventBorrowAutoRejected)

			switch got := env.status(t, tx.ID); got {
			case model.StatusAccepted:
				if acceptErr != nil || accepted != 1 || autoRejected != 0 {
					t.Errorf("accepted: err=%v accepted=%d auto=%d", acceptErr, accepted, autoRejected)
				}
			case model.StatusAutoRejected:
				if !errors.Is(acceptErr, ErrInvalidState) || accepted != 0 || autoRejected != 2 {
					t.Errorf("auto-rejected: err=%v accepted=%d auto=%d", acceptErr, accepted, autoRejected)
				}
			default:
				t.Errorf("status = %s", got)
			}
		})
	}
}

func TestOnlyOneWayOutOfPending(t *testing.T) {
	tests := []struct {
		name  string
		first func(env *testEnv, id string) error
		want  model.TransactionStatus
	}{
		{
			name: "accept",
			first: func(env *testEnv, id string) error {
				_, err := env.svc.AcceptRequest(context.Background(), id, "admin-1")
				return err
			},
			want: model.StatusAccepted,
		},
		{
			name: "reject",
			first: func(env *testEnv, id string) error {
				_, err := env.svc.RejectRequest(context.Background(), id, "admin-1", "tidak tersedia")
				return err
			},
			want: model.StatusRejected,
		},
		{
			name: "expiry",
			first: func(env *testEnv, id string) error {
				env.clock.Advance(testWindow)
				return nil
			},
			want: model.StatusAutoRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			tx := env.submit(t)

			if err := tt.first(env, tx.ID); err != nil {
				t.Fatalf("first transition error = %v", err)
			}
			if got := env.status(t, tx.ID); got != tt.want {
				t.Fatalf("status = %s, want %s", got, tt.want)
			}

			if _, err := env.svc.AcceptRequest(context.Background(), tx.ID, "admin-2"); !errors.Is(err, ErrInvalidState) {
				t.Errorf("accept after %s error = %v, want ErrInvalidState", tt.name, err)
			}
			if tt.want != model.StatusAccepted {
				if _, err := env.svc.RejectRequest(context.Background(), tx.ID, "admin-2", "late"); !errors.Is(err, ErrInvalidState) {
					t.Errorf("reject after %s error = %v, want ErrInvalidState", tt.name, err)
				}
			}

			if _, err := env.svc.ExpireStale(context.Background()); err != nil {
				t.Errorf("ExpireStale() error = %v", err)
			}
			if got := env.status(t, tx.ID); got != tt.want {
				t.Errorf("status after sweep = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rejected := env.submit(t)
	if _, err := env.svc.RejectRequest(ctx, rejected.ID, "admin-1", "stok habis"); err != nil {
		t.Fatalf("RejectRequest() error = %v", err)
	}

	completed := env.submit(t)
	if _, err := env.svc.AcceptRequest(ctx, completed.ID, "admin-1"); err != nil {
		t.Fatalf("AcceptRequest() error = %v", err)
	}
	if _, err := env.svc.CompleteWithScan(ctx, completed.ID, "BC-002", "admin-1"); err != nil {
		t.Fatalf("CompleteWithScan() error = %v", err)
	}

	for _, id := range []string{rejected.ID, completed.ID} {
		before := env.status(t, id)

		ops := map[string]func() error{
			"accept": func() error { _, err := env.svc.AcceptRequest(ctx, id, "admin-1"); return err },
			"reject": func() error { _, err := env.svc.RejectRequest(ctx, id, "admin-1", "x"); return err },
			"arrive": func() error { _, err := env.svc.MarkStudentArrived(ctx, id, "2106"); return err },
			"complete": func() error {
				_, err := env.svc.CompleteWithScan(ctx, id, "BC-001", "admin-1")
				return err
			},
		}
		for name, op := range ops {
			if err := op(); !errors.Is(err, ErrInvalidState) {
				t.Errorf("%s on %s transaction: error = %v, want ErrInvalidState", name, before, err)
			}
		}

		if got := env.status(t, id); got != before {
			t.Errorf("terminal status changed from %s to %s", before, got)
		}
	}

	// The failed completion must not have lent BC-001.
	if item, _ := env.inventory.Get(1); item.Status != model.ItemStatusAvailable {
		t.Errorf("BC-001 status = %s, want available", item.Status)
	}
}

func TestUnknownTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ops := map[string]func() error{
		"accept":   func() error { _, err := env.svc.AcceptRequest(ctx, "missing", "admin-1"); return err },
		"reject":   func() error { _, err := env.svc.RejectRequest(ctx, "missing", "admin-1", ""); return err },
		"arrive":   func() error { _, err := env.svc.MarkStudentArrived(ctx, "missing", "2106"); return err },
		"complete": func() error { _, err := env.svc.CompleteWithScan(ctx, "missing", "BC-001", "admin-1"); return err },
		"return":   func() error { _, err := env.svc.ReturnItem(ctx, "missing", "admin-1"); return err },
		"get":      func() error { _, err := env.svc.GetTransaction(ctx, "missing"); return err },
	}

	for name, op := range ops {
		if err := op(); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: error = %v, want ErrNotFound", name, err)
		}
	}
}

func TestCompleteWithScan_BarcodeNotResolved(t *testing.T) {
	tests := []struct {
		name    string
		barcode string
		wantErr error
	}{
		{"unknown barcode", "BC-404", ErrItemNotFound},
		{"broken item", "BC-003", ErrItemNotFound},
		{"empty barcode", " ", ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()

			tx := env.submit(t)
			if _, err := env.svc.AcceptRequest(ctx, tx.ID, "admin-1"); err != nil {
				t.Fatalf("AcceptRequest() error = %v", err)
			}

			_, err := env.svc.CompleteWithScan(ctx, tx.ID, tt.barcode, "admin-1")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CompleteWithScan() error = %v, want %v", err, tt.wantErr)
			}

			stored, _ := env.store.GetByID(ctx, tx.ID)
			if stored.Status != model.StatusAccepted || stored.ItemID != nil || stored.CompletedAt != nil {
				t.Errorf("transaction mutated on failed scan: %+v", stored)
			}
			if n := env.pub.count(model.EventBorrowCompleted); n != 0 {
				t.Errorf("borrow_completed published %d times", n)
			}
		})
	}
}

func TestCompleteWithScan_ItemLentTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.submit(t)
	second := env.submit(t)
	for _, id := range []string{first.ID, second.ID} {
		if _, err := env.svc.AcceptRequest(ctx, id, "admin-1"); err != nil {
			t.Fatalf("AcceptRequest() error = %v", err)
		}
	}

	if _, err := env.svc.CompleteWithScan(ctx, first.ID, "BC-001", "admin-1"); err != nil {
		t.Fatalf("first CompleteWithScan() error = %v", err)
	}
	if _, err := env.svc.CompleteWithScan(ctx, second.ID, "BC-001", "admin-1"); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("second CompleteWithScan() error = %v, want ErrItemNotFound", err)
	}
	if got := env.status(t, second.ID); got != model.StatusAccepted {
		t.Errorf("second transaction status = %s, want accepted", got)
	}
}

func TestMarkStudentArrived(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tx := env.submit(t)
	if _, err := env.svc.MarkStudentArrived(ctx, tx.ID, "2106"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("arrival while pending error = %v, want ErrInvalidState", err)
	}

	if _, err := env.svc.AcceptRequest(ctx, tx.ID, "admin-1"); err != nil {
		t.Fatalf("AcceptRequest() error = %v", err)
	}
	arrived, err := env.svc.MarkStudentArrived(ctx, tx.ID, "2106")
	if err != nil {
		t.Fatalf("MarkStudentArrived() error = %v", err)
	}
	if arrived.Status != model.StatusStudentArrived || arrived.ArrivedAt == nil {
		t.Fatalf("arrived transaction = %+v", arrived)
	}

	ev, ok := env.pub.last(model.AdminRoom, model.EventStudentArrived)
	if !ok || ev.StudentName != "Siti Rahma" || ev.BorrowerType != model.BorrowerStudent {
		t.Errorf("student_arrived payload = %+v, %v", ev, ok)
	}

	if _, err := env.svc.MarkStudentArrived(ctx, tx.ID, "2106"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second arrival error = %v, want ErrInvalidState", err)
	}

	pending, _ := env.svc.ListPendingRequests(ctx)
	if len(pending) != 1 || !pending[0].StudentArrived {
		t.Errorf("pending view = %+v", pending)
	}

	if _, err := env.svc.CompleteWithScan(ctx, tx.ID, "BC-002", "admin-1"); err != nil {
		t.Fatalf("CompleteWithScan() from student_arrived error = %v", err)
	}
}

func TestRejectRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	borrowerRoom := model.BorrowerRoom(model.BorrowerStudent, "2106")

	tx := env.submit(t)
	if _, err := env.svc.AcceptRequest(ctx, tx.ID, "admin-1"); err != nil {
		t.Fatalf("AcceptRequest() error = %v", err)
	}

	rejected, err := env.svc.RejectRequest(ctx, tx.ID, "admin-2", "Barang sedang diperbaiki")
	if err != nil {
		t.Fatalf("RejectRequest() error = %v", err)
	}
	if rejected.Status != model.StatusRejected || rejected.RejectionReason != "Barang sedang diperbaiki" {
		t.Fatalf("rejected transaction = %+v", rejected)
	}

	ev, ok := env.pub.last(borrowerRoom, model.EventBorrowRejected)
	if !ok || ev.Alasan != "Barang sedang diperbaiki" || ev.Reason != ev.Alasan {
		t.Errorf("borrow_rejected payload = %+v, %v", ev, ok)
	}
	if _, ok := env.pub.last(model.AdminRoom, model.EventRequestProcessed); !ok {
		t.Errorf("admin room did not receive request_processed")
	}

	if _, err := env.svc.RejectRequest(ctx, "x", "", "reason"); !errors.Is(err, ErrValidation) {
		t.Errorf("reject without admin error = %v, want ErrValidation", err)
	}
}

func TestRejectRequest_DefaultReason(t *testing.T) {
	env := newTestEnv(t)
	tx := env.submit(t)

	rejected, err := env.svc.RejectRequest(context.Background(), tx.ID, "admin-1", "   ")
	if err != nil {
		t.Fatalf("RejectRequest() error = %v", err)
	}
	if rejected.RejectionReason != defaultRejectReason {
		t.Errorf("reason = %q, want default", rejected.RejectionReason)
	}
}

func TestDirectAdminLending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tx, err := env.svc.DirectAdminLending(ctx, DirectLending{
		BorrowerKind:     model.BorrowerLecturer,
		BorrowerID:       "198702112015",
		BorrowerName:     "Dr. Wulan",
		Barcode:          "BC-002",
		PromisedReturnAt: testStart.Add(3 * time.Hour),
	}, "admin-1")
	if err != nil {
		t.Fatalf("DirectAdminLending() error = %v", err)
	}

	if tx.Status != model.StatusCompleted || !tx.Direct || tx.ItemID == nil || *tx.ItemID != 2 {
		t.Fatalf("direct transaction = %+v", tx)
	}
	if got := env.pub.names(model.AdminRoom); !equalNames(got, []string{model.EventDirectLendingCompleted}) {
		t.Errorf("admin events = %v", got)
	}
	if got := env.pub.names(tx.Room()); len(got) != 0 {
		t.Errorf("borrower room received %v", got)
	}
	if env.svc.timers.Len() != 0 {
		t.Errorf("direct lending armed an expiry timer")
	}

	pending, _ := env.svc.ListPendingRequests(ctx)
	if len(pending) != 0 {
		t.Errorf("direct lending shows up in pending list")
	}

	if _, err := env.svc.DirectAdminLending(ctx, DirectLending{
		BorrowerKind:     model.BorrowerStudent,
		BorrowerID:       "2107",
		BorrowerName:     "Rudi",
		Barcode:          "BC-002",
		PromisedReturnAt: testStart.Add(time.Hour),
	}, "admin-1"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("lending a lent item error = %v, want ErrItemNotFound", err)
	}

	if _, err := env.svc.DirectAdminLending(ctx, DirectLending{BorrowerKind: model.BorrowerStudent}, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("empty direct lending error = %v, want ErrValidation", err)
	}
}

func TestReturnItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tx := env.submit(t)
	if _, err := env.svc.ReturnItem(ctx, tx.ID, "admin-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("return of pending transaction error = %v, want ErrInvalidState", err)
	}

	if _, err := env.svc.AcceptRequest(ctx, tx.ID, "admin-1"); err != nil {
		t.Fatalf("AcceptRequest() error = %v", err)
	}
	if _, err := env.svc.CompleteWithScan(ctx, tx.ID, "BC-001", "admin-1"); err != nil {
		t.Fatalf("CompleteWithScan() error = %v", err)
	}

	loans, _ := env.svc.ListCurrentLoans(ctx)
	if len(loans) != 1 {
		t.Fatalf("current loans = %d, want 1", len(loans))
	}

	returned, err := env.svc.ReturnItem(ctx, tx.ID, "admin-2")
	if err != nil {
		t.Fatalf("ReturnItem() error = %v", err)
	}
	if returned.Status != model.StatusCompleted || returned.ReturnedAt == nil {
		t.Errorf("returned transaction = %+v", returned)
	}
	if item, _ := env.inventory.Get(1); item.Status != model.ItemStatusAvailable {
		t.Errorf("item status = %s, want available", item.Status)
	}
	if _, ok := env.pub.last(model.AdminRoom, model.EventItemReturned); !ok {
		t.Errorf("admin room did not receive item_returned")
	}

	if _, err := env.svc.ReturnItem(ctx, tx.ID, "admin-2"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second return error = %v, want ErrInvalidState", err)
	}
}

func TestListPendingRequests_SecondsRemaining(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.submit(t)
	env.clock.Advance(5 * time.Minute)
	second := env.submit(t)
	env.clock.Advance(90 * time.Second)

	views, err := env.svc.ListPendingRequests(ctx)
	if err != nil {
		t.Fatalf("ListPendingRequests() error = %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("len(views) = %d, want 2", len(views))
	}

	if views[0].ID != first.ID || views[1].ID != second.ID {
		t.Fatalf("pending list not ordered oldest first")
	}
	if got, want := views[0].SecondsRemaining, int((testWindow - 5*time.Minute - 90*time.Second).Seconds()); got != want {
		t.Errorf("first seconds remaining = %d, want %d", got, want)
	}
	if got, want := views[1].SecondsRemaining, int((testWindow - 90*time.Second).Seconds()); got != want {
		t.Errorf("second seconds remaining = %d, want %d", got, want)
	}
}

func TestRestoreTimers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stale := &model.BorrowTransaction{
		ID: "stale", BorrowerKind: model.BorrowerStudent, BorrowerID: "1", BorrowerName: "A",
		Status: model.StatusPending, CreatedAt: testStart.Add(-20 * time.Minute),
		PromisedReturnAt: testStart.Add(time.Hour),
	}
	fresh := &model.BorrowTransaction{
		ID: "fresh", BorrowerKind: model.BorrowerStudent, BorrowerID: "2", BorrowerName: "B",
		Status: model.StatusPending, CreatedAt: testStart.Add(-5 * time.Minute),
		PromisedReturnAt: testStart.Add(time.Hour),
	}
	for _, tx := range []*model.BorrowTransaction{stale, fresh} {
		if err := env.store.Create(ctx, tx); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	n, err := env.svc.RestoreTimers(ctx)
	if err != nil || n != 2 {
		t.Fatalf("RestoreTimers() = %d, %v", n, err)
	}

	env.clock.Advance(0)
	if got := env.status(t, "stale"); got != model.StatusAutoRejected {
		t.Errorf("stale status = %s, want auto_rejected", got)
	}
	if got := env.status(t, "fresh"); got != model.StatusPending {
		t.Errorf("fresh status = %s, want pending", got)
	}

	env.clock.Advance(10 * time.Minute)
	if got := env.status(t, "fresh"); got != model.StatusAutoRejected {
		t.Errorf("fresh status after window = %s, want auto_rejected", got)
	}
}

func TestExpireStale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	old := env.submit(t)
	env.clock.Advance(10 * time.Minute)
	young := env.submit(t)

	// Drop the timers to exercise the sweep on its own.
	env.svc.timers.StopAll()
	env.clock.Advance(6 * time.Minute)

	n, err := env.svc.ExpireStale(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ExpireStale() = %d, %v, want 1", n, err)
	}
	if got := env.status(t, old.ID); got != model.StatusAutoRejected {
		t.Errorf("old status = %s, want auto_rejected", got)
	}
	if got := env.status(t, young.ID); got != model.StatusPending {
		t.Errorf("young status = %s, want pending", got)
	}
}

func TestExpiryNeverEarly(t *testing.T) {
	env := newTestEnv(t)
	tx := env.submit(t)

	// A timer that fires before the window ends only re-arms itself.
	env.svc.timers.StopAll()
	env.svc.timers.Arm(tx.ID, time.Minute, env.svc.onExpiry)
	env.clock.Advance(time.Minute)

	if got := env.status(t, tx.ID); got != model.StatusPending {
		t.Fatalf("status after early fire = %s, want pending", got)
	}
	if env.svc.timers.Len() != 1 {
		t.Fatalf("timer was not re-armed")
	}

	env.clock.Advance(testWindow - time.Minute)
	if got := env.status(t, tx.ID); got != model.StatusAutoRejected {
		t.Errorf("status at window end = %s, want auto_rejected", got)
	}
}

func TestCheckOverdue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tx, err := env.svc.DirectAdminLending(ctx, DirectLending{
		BorrowerKind:     model.BorrowerStudent,
		BorrowerID:       "2106",
		BorrowerName:     "Siti Rahma",
		Barcode:          "BC-001",
		PromisedReturnAt: testStart.Add(time.Hour),
	}, "admin-1")
	if err != nil {
		t.Fatalf("DirectAdminLending() error = %v", err)
	}

	if n, _ := env.svc.CheckOverdue(ctx); n != 0 {
		t.Fatalf("CheckOverdue() before due = %d, want 0", n)
	}

	env.clock.Advance(2 * time.Hour)
	n, err := env.svc.CheckOverdue(ctx)
	if err != nil || n != 1 {
		t.Fatalf("CheckOverdue() = %d, %v, want 1", n, err)
	}

	env.pub.mu.Lock()
	lastEvent := env.pub.events[len(env.pub.events)-1]
	env.pub.mu.Unlock()
	payload, ok := lastEvent.Payload.(model.OverdueEvent)
	if lastEvent.Event != model.EventItemsOverdue || !ok || payload.Count != 1 || payload.TransactionIDs[0] != tx.ID {
		t.Errorf("items_overdue event = %+v", lastEvent)
	}
}

func TestListHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, env.submit(t).ID)
		env.clock.Advance(time.Second)
	}

	first, err := env.svc.ListHistory(ctx, 1, 2)
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if first.Total != 3 || len(first.Items) != 2 || first.Items[0].ID != ids[2] {
		t.Errorf("page 1 = %d items (total %d)", len(first.Items), first.Total)
	}
	if first.Page != 1 || first.Limit != 2 {
		t.Errorf("page 1 paging = %d/%d, want 1/2", first.Page, first.Limit)
	}

	second, _ := env.svc.ListHistory(ctx, 2, 2)
	if len(second.Items) != 1 || second.Items[0].ID != ids[0] {
		t.Errorf("page 2 = %+v", second.Items)
	}
}

func TestListHistory_ReportsAppliedPaging(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.submit(t)

	tests := []struct {
		name      string
		page      int
		limit     int
		wantPage  int
		wantLimit int
	}{
		{"defaults", 0, 0, 1, defaultHistoryLimit},
		{"negative page", -3, 5, 1, 5},
		{"limit above max", 1, maxHistoryLimit + 1, 1, defaultHistoryLimit},
		{"limit at max", 2, maxHistoryLimit, 2, maxHistoryLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.svc.ListHistory(ctx, tt.page, tt.limit)
			if err != nil {
				t.Fatalf("ListHistory() error = %v", err)
			}
			if got.Page != tt.wantPage || got.Limit != tt.wantLimit {
				t.Errorf("paging = %d/%d, want %d/%d", got.Page, got.Limit, tt.wantPage, tt.wantLimit)
			}
		})
	}
}

func TestMarkStudentArrived_OnlyOwnRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tx := env.submit(t)
	if _, err := env.svc.AcceptRequest(ctx, tx.ID, "admin-1"); err != nil {
		t.Fatalf("AcceptRequest() error = %v", err)
	}

	if _, err := env.svc.MarkStudentArrived(ctx, tx.ID, "9999"); !errors.Is(err, ErrBorrowerMismatch) {
		t.Errorf("arrival by another borrower error = %v, want ErrBorrowerMismatch", err)
	}
	if _, err := env.svc.MarkStudentArrived(ctx, tx.ID, " "); !errors.Is(err, ErrValidation) {
		t.Errorf("arrival without borrower error = %v, want ErrValidation", err)
	}

	if got := env.status(t, tx.ID); got != model.StatusAccepted {
		t.Errorf("status = %s, want accepted", got)
	}
	if n := env.pub.count(model.EventStudentArrived); n != 0 {
		t.Errorf("student_arrived published %d times", n)
	}

	if _, err := env.svc.MarkStudentArrived(ctx, tx.ID, " 2106 "); err != nil {
		t.Errorf("arrival by the requesting borrower error = %v", err)
	}
}

func TestAdminOperationsRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tx := env.submit(t)
	if _, err := env.svc.AcceptRequest(ctx, tx.ID, "admin-1"); err != nil {
		t.Fatalf("AcceptRequest() error = %v", err)
	}

	if _, err := env.svc.CompleteWithScan(ctx, tx.ID, "BC-001", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("complete without admin error = %v, want ErrValidation", err)
	}
	if item, _ := env.inventory.Get(1); item.Status != model.ItemStatusAvailable {
		t.Errorf("item status after rejected completion = %s, want available", item.Status)
	}

	completed, err := env.svc.CompleteWithScan(ctx, tx.ID, "BC-001", "admin-1")
	if err != nil {
		t.Fatalf("CompleteWithScan() error = %v", err)
	}
	if completed.ProcessedBy != "admin-1" {
		t.Errorf("processed_by = %q, want admin-1", completed.ProcessedBy)
	}

	if _, err := env.svc.ReturnItem(ctx, tx.ID, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("return without admin error = %v, want ErrValidation", err)
	}
	if stored, _ := env.store.GetByID(ctx, tx.ID); stored.ReturnedAt != nil {
		t.Errorf("transaction returned without an admin")
	}
}

func TestTopLendingItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	lend := func(barcode string) *model.BorrowTransaction {
		t.Helper()
		tx, err := env.svc.DirectAdminLending(ctx, DirectLending{
			BorrowerKind:     model.BorrowerStudent,
			BorrowerID:       "2106",
			BorrowerName:     "Siti Rahma",
			Barcode:          barcode,
			PromisedReturnAt: env.clock.Now().Add(time.Hour),
		}, "admin-1")
		if err != nil {
			t.Fatalf("DirectAdminLending(%s) error = %v", barcode, err)
		}
		return tx
	}

	// BC-002 is lent twice, BC-001 once and still out.
	first := lend("BC-002")
	if _, err := env.svc.ReturnItem(ctx, first.ID, "admin-1"); err != nil {
		t.Fatalf("ReturnItem() error = %v", err)
	}
	lend("BC-002")
	lend("BC-001")

	// A rejected request never counts.
	rejected := env.submit(t)
	if _, err := env.svc.RejectRequest(ctx, rejected.ID, "admin-1", "stok habis"); err != nil {
		t.Fatalf("RejectRequest() error = %v", err)
	}

	stats, err := env.svc.TopLendingItems(ctx, 0)
	if err != nil {
		t.Fatalf("TopLendingItems() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("len(stats) = %d, want 2", len(stats))
	}
	if stats[0].ItemID != 2 || stats[0].LentQuantity != 2 || stats[0].OnLoan != 1 || stats[0].Name != "HDMI cable" {
		t.Errorf("first = %+v", stats[0])
	}
	if stats[1].ItemID != 1 || stats[1].LentQuantity != 1 || stats[1].Status != model.ItemStatusLent {
		t.Errorf("second = %+v", stats[1])
	}

	top, _ := env.svc.TopLendingItems(ctx, 1)
	if len(top) != 1 || top[0].ItemID != 2 {
		t.Errorf("TopLendingItems(1) = %+v", top)
	}
}

func TestEventsOfOneTransactionKeepOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tx := env.submit(t)
	if _, err := env.svc.AcceptRequest(ctx, tx.ID, "admin-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.MarkStudentArrived(ctx, tx.ID, "2106"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.CompleteWithScan(ctx, tx.ID, "BC-001", "admin-1"); err != nil {
		t.Fatal(err)
	}

	want := []string{
		model.EventNewBorrowRequest,
		model.EventRequestAccepted,
		model.EventStudentArrived,
		model.EventRequestProcessed,
	}
	if got := env.pub.names(model.AdminRoom); !equalNames(got, want) {
		t.Errorf("admin events = %v, want %v", got, want)
	}

	if n := env.svc.locks.size(); n != 0 {
		t.Errorf("lock table holds %d entries after all calls returned", n)
	}
}
