// Package memory is an in-memory record store with the same semantics as the
// postgres store: case-insensitive email and product-name keys, exact
// invoice numbers, unique (sale, product) items, and writes that only become
// durable on Flush. It backs tests and local dry runs.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/salesimport/internal/schema"
)

// ErrDuplicate is returned when an insert or update would break a natural
// key's uniqueness.
var ErrDuplicate = errors.New("duplicate key value violates unique constraint")

// ErrForeignKey is returned when a record references a missing parent.
var ErrForeignKey = errors.New("insert or update violates foreign key constraint")

// Op names a store operation for failure injection.
type Op string

const (
	OpInsertCustomer Op = "InsertCustomer"
	OpUpdateCustomer Op = "UpdateCustomer"
	OpInsertProduct  Op = "InsertProduct"
	OpUpdateProduct  Op = "UpdateProduct"
	OpInsertSale     Op = "InsertSale"
	OpUpdateSale     Op = "UpdateSale"
	OpInsertSaleItem Op = "InsertSaleItem"
	OpUpdateSaleItem Op = "UpdateSaleItem"
	OpFlush          Op = "Flush"
)

// FailFunc decides whether an operation should fail. key is the natural key
// of the record being written ("" for Flush).
type FailFunc func(op Op, key string) error

type itemKey struct{ saleID, productID int64 }

// Store holds the four collections. It is safe for concurrent use.
type Store struct {
	mu  sync.Mutex
	now func() time.Time
	// Fail, when set, is consulted before every write and flush.
	Fail FailFunc

	nextID int64

	customers map[int64]schema.Customer
	products  map[int64]schema.Product
	sales     map[int64]schema.Sale
	items     map[int64]schema.SaleItem

	byEmail   map[string]int64
	byName    map[string]int64
	byInvoice map[string]int64
	byItem    map[itemKey]int64

	// undo reverts every write since the last successful Flush, newest last.
	undo []func()

	flushes int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		now:       time.Now,
		customers: make(map[int64]schema.Customer),
		products:  make(map[int64]schema.Product),
		sales:     make(map[int64]schema.Sale),
		items:     make(map[int64]schema.SaleItem),
		byEmail:   make(map[string]int64),
		byName:    make(map[string]int64),
		byInvoice: make(map[string]int64),
		byItem:    make(map[itemKey]int64),
	}
}

// SetClock replaces the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) check(op Op, key string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op, key)
}

func (s *Store) allocID() int64 {
	s.nextID++
	return s.nextID
}

func lower(v string) string { return strings.ToLower(strings.TrimSpace(v)) }

// Customers

func (s *Store) FindCustomerByID(_ context.Context, id int64) (*schema.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, schema.ErrNotFound
	}
	return &c, nil
}

func (s *Store) FindCustomerByEmail(_ context.Context, email string) (*schema.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[lower(email)]
	if !ok {
		return nil, schema.ErrNotFound
	}
	c := s.customers[id]
	return &c, nil
}

func (s *Store) InsertCustomer(_ context.Context, c *schema.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := lower(c.Email)
	if err := s.check(OpInsertCustomer, key); err != nil {
		return err
	}
	if _, taken := s.byEmail[key]; taken {
		return fmt.Errorf("insert customer %q: %w", c.Email, ErrDuplicate)
	}

	now := s.now()
	c.ID = s.allocID()
	c.CreatedAt, c.UpdatedAt = now, now
	s.customers[c.ID] = *c
	s.byEmail[key] = c.ID

	id := c.ID
	s.undo = append(s.undo, func() {
		delete(s.customers, id)
		delete(s.byEmail, key)
	})
	return nil
}

func (s *Store) UpdateCustomer(_ context.Context, c *schema.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := lower(c.Email)
	if err := s.check(OpUpdateCustomer, key); err != nil {
		return err
	}
	prev, ok := s.customers[c.ID]
	if !ok {
		return fmt.Errorf("update customer %d: %w", c.ID, schema.ErrNotFound)
	}
	if owner, taken := s.byEmail[key]; taken && owner != c.ID {
		return fmt.Errorf("update customer %q: %w", c.Email, ErrDuplicate)
	}

	c.CreatedAt = prev.CreatedAt
	c.UpdatedAt = s.now()
	prevKey := lower(prev.Email)
	delete(s.byEmail, prevKey)
	s.byEmail[key] = c.ID
	s.customers[c.ID] = *c

	s.undo = append(s.undo, func() {
		delete(s.byEmail, key)
		s.byEmail[prevKey] = prev.ID
		s.customers[prev.ID] = prev
	})
	return nil
}

// Products

func (s *Store) FindProductByID(_ context.Context, id int64) (*schema.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, schema.ErrNotFound
	}
	return &p, nil
}

func (s *Store) FindProductByName(_ context.Context, name string) (*schema.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byName[lower(name)]
	if !ok {
		return nil, schema.ErrNotFound
	}
	p := s.products[id]
	return &p, nil
}

func (s *Store) InsertProduct(_ context.Context, p *schema.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := lower(p.Name)
	if err := s.check(OpInsertProduct, key); err != nil {
		return err
	}
	if _, taken := s.byName[key]; taken {
		return fmt.Errorf("insert product %q: %w", p.Name, ErrDuplicate)
	}

	now := s.now()
	p.ID = s.allocID()
	p.CreatedAt, p.UpdatedAt = now, now
	s.products[p.ID] = *p
	s.byName[key] = p.ID

	id := p.ID
	s.undo = append(s.undo, func() {
		delete(s.products, id)
		delete(s.byName, key)
	})
	return nil
}

func (s *Store) UpdateProduct(_ context.Context, p *schema.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := lower(p.Name)
	if err := s.check(OpUpdateProduct, key); err != nil {
		return err
	}
	prev, ok := s.products[p.ID]
	if !ok {
		return fmt.Errorf("update product %d: %w", p.ID, schema.ErrNotFound)
	}
	if owner, taken := s.byName[key]; taken && owner != p.ID {
		return fmt.Errorf("update product %q: %w", p.Name, ErrDuplicate)
	}

	p.CreatedAt = prev.CreatedAt
	p.UpdatedAt = s.now()
	prevKey := lower(prev.Name)
	delete(s.byName, prevKey)
	s.byName[key] = p.ID
	s.products[p.ID] = *p

	s.undo = append(s.undo, func() {
		delete(s.byName, key)
		s.byName[prevKey] = prev.ID
		s.products[prev.ID] = prev
	})
	return nil
}

// Sales

func (s *Store) FindSaleByID(_ context.Context, id int64) (*schema.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[id]
	if !ok {
		return nil, schema.ErrNotFound
	}
	return &sale, nil
}

func (s *Store) FindSaleByInvoice(_ context.Context, invoice string) (*schema.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byInvoice[strings.TrimSpace(invoice)]
	if !ok {
		return nil, schema.ErrNotFound
	}
	sale := s.sales[id]
	return &sale, nil
}

func (s *Store) InsertSale(_ context.Context, sale *schema.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(sale.InvoiceNumber)
	if err := s.check(OpInsertSale, key); err != nil {
		return err
	}
	if _, taken := s.byInvoice[key]; taken {
		return fmt.Errorf("insert sale %q: %w", key, ErrDuplicate)
	}
	if _, ok := s.customers[sale.ClientID]; !ok {
		return fmt.Errorf("insert sale %q: client %d: %w", key, sale.ClientID, ErrForeignKey)
	}

	now := s.now()
	sale.ID = s.allocID()
	sale.CreatedAt, sale.UpdatedAt = now, now
	s.sales[sale.ID] = *sale
	s.byInvoice[key] = sale.ID

	id := sale.ID
	s.undo = append(s.undo, func() {
		delete(s.sales, id)
		delete(s.byInvoice, key)
	})
	return nil
}

func (s *Store) UpdateSale(_ context.Context, sale *schema.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(sale.InvoiceNumber)
	if err := s.check(OpUpdateSale, key); err != nil {
		return err
	}
	prev, ok := s.sales[sale.ID]
	if !ok {
		return fmt.Errorf("update sale %d: %w", sale.ID, schema.ErrNotFound)
	}
	if owner, taken := s.byInvoice[key]; taken && owner != sale.ID {
		return fmt.Errorf("update sale %q: %w", key, ErrDuplicate)
	}
	if _, ok := s.customers[sale.ClientID]; !ok {
		return fmt.Errorf("update sale %q: client %d: %w", key, sale.ClientID, ErrForeignKey)
	}

	sale.CreatedAt = prev.CreatedAt
	sale.UpdatedAt = s.now()
	prevKey := strings.TrimSpace(prev.InvoiceNumber)
	delete(s.byInvoice, prevKey)
	s.byInvoice[key] = sale.ID
	s.sales[sale.ID] = *sale

	s.undo = append(s.undo, func() {
		delete(s.byInvoice, key)
		s.byInvoice[prevKey] = prev.ID
		s.sales[prev.ID] = prev
	})
	return nil
}

// Sale items

func (s *Store) FindSaleItem(_ context.Context, saleID, productID int64) (*schema.SaleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byItem[itemKey{saleID, productID}]
	if !ok {
		return nil, schema.ErrNotFound
	}
	it := s.items[id]
	return &it, nil
}

func (s *Store) InsertSaleItem(_ context.Context, it *schema.SaleItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := itemKey{it.SaleID, it.ProductID}
	if err := s.check(OpInsertSaleItem, fmt.Sprintf("%d/%d", key.saleID, key.productID)); err != nil {
		return err
	}
	if _, taken := s.byItem[key]; taken {
		return fmt.Errorf("insert sale item %d/%d: %w", key.saleID, key.productID, ErrDuplicate)
	}
	if err := s.checkItemParents(*it); err != nil {
		return err
	}

	now := s.now()
	it.ID = s.allocID()
	it.CreatedAt, it.UpdatedAt = now, now
	s.items[it.ID] = *it
	s.byItem[key] = it.ID

	id := it.ID
	s.undo = append(s.undo, func() {
		delete(s.items, id)
		delete(s.byItem, key)
	})
	return nil
}

func (s *Store) UpdateSaleItem(_ context.Context, it *schema.SaleItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := itemKey{it.SaleID, it.ProductID}
	if err := s.check(OpUpdateSaleItem, fmt.Sprintf("%d/%d", key.saleID, key.productID)); err != nil {
		return err
	}
	prev, ok := s.items[it.ID]
	if !ok {
		return fmt.Errorf("update sale item %d: %w", it.ID, schema.ErrNotFound)
	}
	if owner, taken := s.byItem[key]; taken && owner != it.ID {
		return fmt.Errorf("update sale item %d/%d: %w", key.saleID, key.productID, ErrDuplicate)
	}
	if err := s.checkItemParents(*it); err != nil {
		return err
	}

	it.CreatedAt = prev.CreatedAt
	it.UpdatedAt = s.now()
	prevKey := itemKey{prev.SaleID, prev.ProductID}
	delete(s.byItem, prevKey)
	s.byItem[key] = it.ID
	s.items[it.ID] = *it

	s.undo = append(s.undo, func() {
		delete(s.byItem, key)
		s.byItem[prevKey] = prev.ID
		s.items[prev.ID] = prev
	})
	return nil
}

func (s *Store) checkItemParents(it schema.SaleItem) error {
	if _, ok := s.sales[it.SaleID]; !ok {
		return fmt.Errorf("sale item: sale %d: %w", it.SaleID, ErrForeignKey)
	}
	if _, ok := s.products[it.ProductID]; !ok {
		return fmt.Errorf("sale item: product %d: %w", it.ProductID, ErrForeignKey)
	}
	return nil
}

// Flush makes pending writes durable. When it fails, every write since the
// previous successful Flush is reverted.
func (s *Store) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpFlush, ""); err != nil {
		s.rollback()
		return fmt.Errorf("flush: %w", err)
	}
	s.undo = nil
	s.flushes++
	return nil
}

// Discard reverts every write since the last successful Flush.
func (s *Store) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollback()
}

func (s *Store) rollback() {
	for i := len(s.undo) - 1; i >= 0; i-- {
		s.undo[i]()
	}
	s.undo = nil
}

// Counts reports the number of customers, products, sales and sale items.
type Counts struct {
	Customers, Products, Sales, SaleItems int
}

func (s *Store) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counts{
		Customers: len(s.customers),
		Products:  len(s.products),
		Sales:     len(s.sales),
		SaleItems: len(s.items),
	}
}

// Flushes reports how many flushes succeeded.
func (s *Store) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }
