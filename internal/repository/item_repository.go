package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/campus_lending/internal/model"
	"github.com/Freeeeeet/campus_lending/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ItemRepository struct {
	*base.Repository
}

func NewItemRepository(pool *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{Repository: base.NewRepository(pool)}
}

// GetItem returns the item with itemID in any status, or nil
func (r *ItemRepository) GetItem(ctx context.Context, itemID int64) (*model.Item, error) {
	query := `
		SELECT id, barcode, name, brand, status, updated_at
		FROM items
		WHERE id = $1
	`

	item, err := scanItem(r.QueryRow(ctx, query, itemID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	return item, nil
}

// FindAvailableItem returns the available item with barcode, or nil
func (r *ItemRepository) FindAvailableItem(ctx context.Context, barcode string) (*model.Item, error) {
	query := `
		SELECT id, barcode, name, brand, status, updated_at
		FROM items
		WHERE barcode = $1 AND status = 'available'
	`

	item, err := scanItem(r.QueryRow(ctx, query, barcode))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find available item: %w", err)
	}

	return item, nil
}

// MarkLent takes an available item. Fails with model.ErrItemUnavailable when
// somebody else took it first.
func (r *ItemRepository) MarkLent(ctx context.Context, itemID int64) error {
	affected, err := r.ExecAffected(ctx, `
		UPDATE items SET status = 'lent', updated_at = NOW()
		WHERE id = $1 AND status = 'available'
	`, itemID)
	if err != nil {
		return fmt.Errorf("mark item lent: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("item %d: %w", itemID, model.ErrItemUnavailable)
	}

	return nil
}

// MarkAvailable puts an item back on the shelf
func (r *ItemRepository) MarkAvailable(ctx context.Context, itemID int64) error {
	affected, err := r.ExecAffected(ctx, `
		UPDATE items SET status = 'available', updated_at = NOW()
		WHERE id = $1
	`, itemID)
	if err != nil {
		return fmt.Errorf("mark item available: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("item %d not found", itemID)
	}

	return nil
}

func scanItem(row pgx.Row) (*model.Item, error) {
	var (
		item   model.Item
		status string
	)

	err := row.Scan(
		&item.ID,
		&item.Barcode,
		&item.Name,
		&item.Brand,
		&status,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Status = model.ItemStatus(status)
	return &item, nil
}
