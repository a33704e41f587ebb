package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/campus_lending/internal/model"
)

// Inventory is an in-memory inventory collaborator
type Inventory struct {
	mu        sync.Mutex
	items     map[int64]*model.Item
	byBarcode map[string]int64
	nextID    int64
}

func NewInventory(items ...model.Item) *Inventory {
	inv := &Inventory{
		items:     make(map[int64]*model.Item),
		byBarcode: make(map[string]int64),
	}
	for _, item := range items {
		inv.Add(item)
	}
	return inv
}

// Add stores item, assigning an id when it has none
func (inv *Inventory) Add(item model.Item) model.Item {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if item.ID == 0 {
		inv.nextID++
		item.ID = inv.nextID
	} else if item.ID > inv.nextID {
		inv.nextID = item.ID
	}
	if item.Status == "" {
		item.Status = model.ItemStatusAvailable
	}

	stored := item
	inv.items[item.ID] = &stored
	inv.byBarcode[item.Barcode] = item.ID
	return item
}

// Get returns a copy of the item with id
func (inv *Inventory) Get(id int64) (model.Item, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	item, ok := inv.items[id]
	if !ok {
		return model.Item{}, false
	}
	return *item, true
}

func (inv *Inventory) GetItem(ctx context.Context, itemID int64) (*model.Item, error) {
	item, ok := inv.Get(itemID)
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (inv *Inventory) FindAvailableItem(ctx context.Context, barcode string) (*model.Item, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	id, ok := inv.byBarcode[barcode]
	if !ok {
		return nil, nil
	}
	item := *inv.items[id]
	if !item.IsAvailable() {
		return nil, nil
	}
	return &item, nil
}

func (inv *Inventory) MarkLent(ctx context.Context, itemID int64) error {
	return inv.setStatus(itemID, model.ItemStatusAvailable, model.ItemStatusLent)
}

func (inv *Inventory) MarkAvailable(ctx context.Context, itemID int64) error {
	return inv.setStatus(itemID, "", model.ItemStatusAvailable)
}

// setStatus moves an item to status; from, when set, must match the current one
func (inv *Inventory) setStatus(itemID int64, from, to model.ItemStatus) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	item, ok := inv.items[itemID]
	if !ok {
		return fmt.Errorf("item %d not found", itemID)
	}
	if from != "" && item.Status != from {
		return fmt.Errorf("item %d is %s: %w", itemID, item.Status, model.ErrItemUnavailable)
	}
	item.Status = to
	item.UpdatedAt = time.Now()
	return nil
}
