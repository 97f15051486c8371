// Package schema defines the records the importer reconciles against the
// backing store. Every record carries a store-assigned surrogate ID and the
// natural key the importer uses to find it again.
package schema

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by store lookups when no record matches.
var ErrNotFound = errors.New("record not found")

// Customer is a client that sales are billed to. Natural key: Email (case-insensitive).
type Customer struct {
	ID          int64
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Address     string
	Role        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Product is a sellable item. Natural key: Name (case-insensitive).
type Product struct {
	ID          int64
	Name        string
	Description string
	UnitPrice   decimal.Decimal
	Stock       int64
	CategoryID  *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Sale is an invoice header. Natural key: InvoiceNumber (exact match).
type Sale struct {
	ID            int64
	InvoiceNumber string
	SaleDate      time.Time
	ClientID      int64
	Subtotal      decimal.Decimal
	TaxRate       decimal.Decimal
	Total         decimal.Decimal
	PaymentMethod string
	IsPaid        bool
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SaleItem is one invoice line. Natural key: the (SaleID, ProductID) pair.
type SaleItem struct {
	ID        int64
	SaleID    int64
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ComputeLineTotal sets LineTotal to Quantity * UnitPrice.
func (i *SaleItem) ComputeLineTotal() {
	i.LineTotal = i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}
