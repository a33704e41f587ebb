package model

import "fmt"

// AdminRoom groups every connected admin view
const AdminRoom = "admin"

// BorrowerRoom returns the room key of a single borrower
func BorrowerRoom(kind BorrowerKind, borrowerID string) string {
	return fmt.Sprintf("borrower:%s:%s", kind, borrowerID)
}
