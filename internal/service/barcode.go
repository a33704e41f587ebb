package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/campus_lending/internal/model"
)

// Inventory is the inventory collaborator used by the lending flow
type Inventory interface {
	// GetItem returns the item with itemID in any status, or nil.
	GetItem(ctx context.Context, itemID int64) (*model.Item, error)
	FindAvailableItem(ctx context.Context, barcode string) (*model.Item, error)
	MarkLent(ctx context.Context, itemID int64) error
	MarkAvailable(ctx context.Context, itemID int64) error
}

// BarcodeResolver maps a scanned barcode to an available item. It never
// changes item state.
type BarcodeResolver struct {
	inventory Inventory
}

func NewBarcodeResolver(inventory Inventory) *BarcodeResolver {
	return &BarcodeResolver{inventory: inventory}
}

// Resolve returns the available item behind barcode or ErrItemNotFound
func (r *BarcodeResolver) Resolve(ctx context.Context, barcode string) (*model.Item, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, &ValidationError{Fields: []string{"barcode"}}
	}

	item, err := r.inventory.FindAvailableItem(ctx, barcode)
	if err != nil {
		return nil, fmt.Errorf("find item by barcode: %w", err)
	}

	if item == nil || !item.IsAvailable() {
		return nil, fmt.Errorf("barcode %q: %w", barcode, ErrItemNotFound)
	}

	return item, nil
}
