package importer

import (
	"context"

	"github.com/JonMunkholm/salesimport/internal/schema"
)

// CustomerStore persists customers. Email lookups are case-insensitive.
type CustomerStore interface {
	FindCustomerByID(ctx context.Context, id int64) (*schema.Customer, error)
	FindCustomerByEmail(ctx context.Context, email string) (*schema.Customer, error)
	InsertCustomer(ctx context.Context, c *schema.Customer) error
	UpdateCustomer(ctx context.Context, c *schema.Customer) error
}

// ProductStore persists products. Name lookups are case-insensitive.
type ProductStore interface {
	FindProductByID(ctx context.Context, id int64) (*schema.Product, error)
	FindProductByName(ctx context.Context, name string) (*schema.Product, error)
	InsertProduct(ctx context.Context, p *schema.Product) error
	UpdateProduct(ctx context.Context, p *schema.Product) error
}

// SaleStore persists sales. Invoice lookups match exactly.
type SaleStore interface {
	FindSaleByID(ctx context.Context, id int64) (*schema.Sale, error)
	FindSaleByInvoice(ctx context.Context, invoice string) (*schema.Sale, error)
	InsertSale(ctx context.Context, s *schema.Sale) error
	UpdateSale(ctx context.Context, s *schema.Sale) error
}

// SaleItemStore persists sale line-items, keyed by (sale, product).
type SaleItemStore interface {
	FindSaleItem(ctx context.Context, saleID, productID int64) (*schema.SaleItem, error)
	InsertSaleItem(ctx context.Context, it *schema.SaleItem) error
	UpdateSaleItem(ctx context.Context, it *schema.SaleItem) error
}

// Store is the record store a run reconciles against.
//
// Find methods return schema.ErrNotFound when nothing matches. Insert
// methods assign the record's ID and timestamps. A failed Insert or
// Update must leave the store as it was before the call, so the run can
// continue with the next row.
//
// Flush makes everything written since the previous Flush durable. The
// pipeline calls it once at the end of every phase.
type Store interface {
	CustomerStore
	ProductStore
	SaleStore
	SaleItemStore
	Flush(ctx context.Context) error
}
