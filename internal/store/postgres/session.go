package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/salesimport/internal/importer"
	"github.com/JonMunkholm/salesimport/internal/schema"
)

var _ importer.Store = (*Session)(nil)

// Session is the store one import run writes through. The phase
// transaction is opened by the first statement after a Flush.
type Session struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (s *Session) phaseTx(ctx context.Context) (pgx.Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin phase transaction: %w", err)
	}
	s.tx = tx
	return tx, nil
}

// inSavepoint runs fn inside a savepoint of the phase transaction. A failed
// statement would otherwise abort the whole phase.
func (s *Session) inSavepoint(ctx context.Context, fn func(q DBTX) error) error {
	tx, err := s.phaseTx(ctx)
	if err != nil {
		return err
	}
	sp, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}
	if err := fn(sp); err != nil {
		if rbErr := sp.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback savepoint: %w", rbErr))
		}
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

// Flush commits the phase transaction.
func (s *Session) Flush(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit phase: %w", err)
	}
	return nil
}

// Close rolls back anything not yet flushed.
func (s *Session) Close(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback phase: %w", err)
	}
	return nil
}

// notFound maps pgx.ErrNoRows to schema.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return schema.ErrNotFound
	}
	return err
}

func (s *Session) FindCustomerByID(ctx context.Context, id int64) (*schema.Customer, error) {
	return s.findCustomer(ctx, selectCustomer+` WHERE id = $1`, id)
}

func (s *Session) FindCustomerByEmail(ctx context.Context, email string) (*schema.Customer, error) {
	return s.findCustomer(ctx, selectCustomer+` WHERE lower(email) = lower($1)`, email)
}

func (s *Session) findCustomer(ctx context.Context, query string, arg any) (*schema.Customer, error) {
	var c schema.Customer
	err := s.inSavepoint(ctx, func(q DBTX) error {
		return q.QueryRow(ctx, query, arg).Scan(
			&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.PhoneNumber,
			&c.Address, &c.Role, &c.CreatedAt, &c.UpdatedAt,
		)
	})
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Session) InsertCustomer(ctx context.Context, c *schema.Customer) error {
	return s.inSavepoint(ctx, func(q DBTX) error {
		return q.QueryRow(ctx, insertCustomer,
			c.FirstName, c.LastName, c.Email, c.PhoneNumber, c.Address, c.Role,
		).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	})
}

func (s *Session) UpdateCustomer(ctx context.Context, c *schema.Customer) error {
	return s.inSavepoint(ctx, func(q DBTX) error {
		return notFound(q.QueryRow(ctx, updateCustomer,
			c.ID, c.FirstName, c.LastName, c.Email, c.PhoneNumber, c.Address, c.Role,
		).Scan(&c.UpdatedAt))
	})
}

func (s *Session) FindProductByID(ctx context.Context, id int64) (*schema.Product, error) {
	return s.findProduct(ctx, selectProduct+` WHERE id = $1`, id)
}

func (s *Session) FindProductByName(ctx context.Context, name string) (*schema.Product, error) {
	return s.findProduct(ctx, selectProduct+` WHERE lower(name) = lower($1)`, name)
}

func (s *Session) findProduct(ctx context.Context, query string, arg any) (*schema.Product, error) {
	var p schema.Product
	err := s.inSavepoint(ctx, func(q DBTX) error {
		return q.QueryRow(ctx, query, arg).Scan(
			&p.ID, &p.Name, &p.Description, &p.UnitPrice, &p.Stock,
			&p.CategoryID, &p.CreatedAt, &p.UpdatedAt,
		)
	})
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Session) InsertProduct(ctx context.Context, p *schema.Product) error {
	return s.inSavepoint(ctx, func(q DBTX) error {
		return q.QueryRow(ctx, insertProduct,
			p.Name, p.Description, p.UnitPrice, p.Stock, p.CategoryID,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	})
}

func (s *Session) UpdateProduct(ctx context.Context, p *schema.Product) error {
	return s.inSavepoint(ctx, func(q DBTX) error {
		return notFound(q.QueryRow(ctx, updateProduct,
			p.ID, p.Name, p.Description, p.UnitPrice, p.Stock, p.CategoryID,
		).Scan(&p.UpdatedAt))
	})
}

func (s *Session) FindSaleByID(ctx context.Context, id int64) (*schema.Sale, error) {
	return s.findSale(ctx, selectSale+` WHERE id = $1`, id)
}

func (s *Session) FindSaleByInvoice(ctx context.Context, invoice string) (*schema.Sale, error) {
	return s.findSale(ctx, selectSale+` WHERE invoice_number = $1`, invoice)
}

func (s *Session) findSale(ctx context.Context, query string, arg any) (*schema.Sale, error) {
	var sl schema.Sale
	err := s.inSavepoint(ctx, func(q DBTX) error {
		return q.QueryRow(ctx, query, arg).Scan(
			&sl.ID, &sl.InvoiceNumber, &sl.SaleDate, &sl.ClientID, &sl.Subtotal,
			&sl.TaxRate, &sl.Total, &sl.PaymentMethod, &sl.IsPaid, &sl.Notes,
			&sl.CreatedAt, &sl.UpdatedAt,
		)
	})
	if err != nil {
		return nil, notFound(err)
	}
	return &sl, nil
}

func (s *Session) InsertSale(ctx context.Context, sl *schema.Sale) error {
	return s.inSavepoint(ctx, func(q DBTX) error {
		return q.QueryRow(ctx, insertSale,
			sl.InvoiceNumber, sl.SaleDate, sl.ClientID, sl.Subtotal, sl.TaxRate,
			sl.Total, sl.PaymentMethod, sl.IsPaid, sl.Notes,
		).Scan(&sl.ID, &sl.CreatedAt, &sl.UpdatedAt)
	})
}

func (s *Session) UpdateSale(ctx context.Context, sl *schema.Sale) error {
	return s.inSavepoint(ctx, func(q DBTX) error {
		return notFound(q.QueryRow(ctx, updateSale,
			sl.ID, sl.InvoiceNumber, sl.SaleDate, sl.ClientID, sl.Subtotal,
			sl.TaxRate, sl.Total, sl.PaymentMethod, sl.IsPaid, sl.Notes,
		).Scan(&sl.UpdatedAt))
	})
}

func (s *Session) FindSaleItem(ctx context.Context, saleID, productID int64) (*schema.SaleItem, error) {
	var it schema.SaleItem
	err := s.inSavepoint(ctx, func(q DBTX) error {
		return q.QueryRow(ctx, selectSaleItem, saleID, productID).Scan(
			&it.ID, &it.SaleID, &it.ProductID, &it.Quantity, &it.UnitPrice,
			&it.LineTotal, &it.CreatedAt, &it.UpdatedAt,
		)
	})
	if err != nil {
		return nil, notFound(err)
	}
	return &it, nil
}

func (s *Session) InsertSaleItem(ctx context.Context, it *schema.SaleItem) error {
	return s.inSavepoint(ctx, func(q DBTX) error {
		return q.QueryRow(ctx, insertSaleItem,
			it.SaleID, it.ProductID, it.Quantity, it.UnitPrice, it.LineTotal,
		).Scan(&it.ID, &it.CreatedAt, &it.UpdatedAt)
	})
}

func (s *Session) UpdateSaleItem(ctx context.Context, it *schema.SaleItem) error {
	return s.inSavepoint(ctx, func(q DBTX) error {
		return notFound(q.QueryRow(ctx, updateSaleItem,
			it.ID, it.Quantity, it.UnitPrice, it.LineTotal,
		).Scan(&it.UpdatedAt))
	})
}
