package model

import (
	"errors"
	"time"
)

type ItemStatus string

const (
	ItemStatusAvailable ItemStatus = "available"
	ItemStatusLent      ItemStatus = "lent"
	ItemStatusBroken    ItemStatus = "broken"
)

// Item is an inventory unit as the lending flow sees it
type Item struct {
	ID        int64      `json:"id"`
	Barcode   string     `json:"barcode"`
	Name      string     `json:"name"`
	Brand     string     `json:"brand,omitempty"`
	Status    ItemStatus `json:"status"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsAvailable checks if the item can be handed out
func (i *Item) IsAvailable() bool {
	return i.Status == ItemStatusAvailable
}

// ItemLoanCount is the number of completed loans of one item
type ItemLoanCount struct {
	ItemID int64
	Loans  int
	OnLoan int // Loans not returned yet
}

// ItemLendingStat is one row of the most lent items ranking
type ItemLendingStat struct {
	ItemID       int64      `json:"item_id"`
	Barcode      string     `json:"barcode,omitempty"`
	Name         string     `json:"name,omitempty"`
	Status       ItemStatus `json:"status,omitempty"`
	LentQuantity int        `json:"lent_quantity"`
	OnLoan       int        `json:"on_loan"`
}

// ErrItemUnavailable is returned by the inventory when an item cannot be lent
var ErrItemUnavailable = errors.New("item is not available")
