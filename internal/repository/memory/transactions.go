// Package memory keeps lending state in process memory. It backs tests and
// the development mode without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/campus_lending/internal/model"
)

type TransactionStore struct {
	mu   sync.RWMutex
	byID map[string]*model.BorrowTransaction
}

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{byID: make(map[string]*model.BorrowTransaction)}
}

func (s *TransactionStore) Create(ctx context.Context, t *model.BorrowTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[t.ID]; exists {
		return fmt.Errorf("transaction %s already exists", t.ID)
	}
	s.byID[t.ID] = t.Clone()
	return nil
}

func (s *TransactionStore) GetByID(ctx context.Context, id string) (*model.BorrowTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

// UpdateStatus checks and writes under one lock, like the conditional UPDATE of the SQL store
func (s *TransactionStore) UpdateStatus(ctx context.Context, id string, upd model.StatusUpdate) (*model.BorrowTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok || !upd.Allows(t.Status) {
		return nil, nil
	}
	t.Apply(upd)
	return t.Clone(), nil
}

func (s *TransactionStore) MarkReturned(ctx context.Context, id string, at time.Time, adminID string) (*model.BorrowTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok || !t.IsOnLoan() {
		return nil, nil
	}
	t.ReturnedAt = &at
	t.UpdatedAt = at
	if adminID != "" {
		t.ProcessedBy = adminID
	}
	return t.Clone(), nil
}

func (s *TransactionStore) ListByStatus(ctx context.Context, statuses ...model.TransactionStatus) ([]*model.BorrowTransaction, error) {
	want := make(map[model.TransactionStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	return s.filter(func(t *model.BorrowTransaction) bool { return want[t.Status] }, false), nil
}

func (s *TransactionStore) ListOverdue(ctx context.Context, now time.Time) ([]*model.BorrowTransaction, error) {
	return s.filter(func(t *model.BorrowTransaction) bool {
		return t.IsOnLoan() && t.PromisedReturnAt.Before(now)
	}, false), nil
}

func (s *TransactionStore) ListCurrentLoans(ctx context.Context) ([]*model.BorrowTransaction, error) {
	return s.filter((*model.BorrowTransaction).IsOnLoan, true), nil
}

func (s *TransactionStore) ListHistory(ctx context.Context, limit, offset int) ([]*model.BorrowTransaction, int, error) {
	all := s.filter(func(*model.BorrowTransaction) bool { return true }, true)
	total := len(all)

	if offset >= total {
		return []*model.BorrowTransaction{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *TransactionStore) CountLoansByItem(ctx context.Context, limit int) ([]model.ItemLoanCount, error) {
	s.mu.RLock()
	byItem := make(map[int64]*model.ItemLoanCount)
	for _, t := range s.byID {
		if t.Status != model.StatusCompleted || t.ItemID == nil {
			continue
		}
		c, ok := byItem[*t.ItemID]
		if !ok {
			c = &model.ItemLoanCount{ItemID: *t.ItemID}
			byItem[*t.ItemID] = c
		}
		c.Loans++
		if t.ReturnedAt == nil {
			c.OnLoan++
		}
	}
	s.mu.RUnlock()

	counts := make([]model.ItemLoanCount, 0, len(byItem))
	for _, c := range byItem {
		counts = append(counts, *c)
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Loans != counts[j].Loans {
			return counts[i].Loans > counts[j].Loans
		}
		return counts[i].ItemID < counts[j].ItemID
	})

	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts, nil
}

// filter returns clones ordered by creation time
func (s *TransactionStore) filter(keep func(*model.BorrowTransaction) bool, newestFirst bool) []*model.BorrowTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.BorrowTransaction, 0)
	for _, t := range s.byID {
		if keep(t) {
			result = append(result, t.Clone())
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			if newestFirst {
				return a.ID > b.ID
			}
			return a.ID < b.ID
		}
		if newestFirst {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	return result
}

// Ping satisfies the health check of the HTTP layer
func (s *TransactionStore) Ping(ctx context.Context) error {
	return nil
}
