package importer

import (
	"context"
	"errors"
	"strings"

	"github.com/JonMunkholm/salesimport/internal/schema"
	"github.com/JonMunkholm/salesimport/internal/sheet"
)

// ResolutionContext maps natural keys to the surrogate IDs of records that
// were inserted, updated or looked up during the current run. It lives for
// one run only and is not safe for concurrent use.
type ResolutionContext struct {
	customers map[string]int64 // lower-cased email
	products  map[string]int64 // lower-cased name
	sales     map[string]int64 // invoice number, exact
}

// NewResolutionContext returns an empty context.
func NewResolutionContext() *ResolutionContext {
	return &ResolutionContext{
		customers: make(map[string]int64),
		products:  make(map[string]int64),
		sales:     make(map[string]int64),
	}
}

func (rc *ResolutionContext) RememberCustomer(email string, id int64) {
	rc.customers[normalizeEmail(email)] = id
}

func (rc *ResolutionContext) RememberProduct(name string, id int64) {
	rc.products[normalizeName(name)] = id
}

func (rc *ResolutionContext) RememberSale(invoice string, id int64) {
	rc.sales[strings.TrimSpace(invoice)] = id
}

func (rc *ResolutionContext) CustomerID(email string) (int64, bool) {
	id, ok := rc.customers[normalizeEmail(email)]
	return id, ok
}

func (rc *ResolutionContext) ProductID(name string) (int64, bool) {
	id, ok := rc.products[normalizeName(name)]
	return id, ok
}

func (rc *ResolutionContext) SaleID(invoice string) (int64, bool) {
	id, ok := rc.sales[strings.TrimSpace(invoice)]
	return id, ok
}

// Len reports how many keys are known, across all record types.
func (rc *ResolutionContext) Len() int {
	return len(rc.customers) + len(rc.products) + len(rc.sales)
}

// reference describes one foreign key a row may carry, either as an
// explicit surrogate id column or as a natural key column.
type reference struct {
	idColumn  string
	keyColumn string
	byID      func(ctx context.Context, st Store, id int64) error
	byKey     func(ctx context.Context, st Store, key string) (int64, error)
	cached    func(rc *ResolutionContext, key string) (int64, bool)
	remember  func(rc *ResolutionContext, key string, id int64)
}

var (
	clientRef = reference{
		idColumn:  ColClientID,
		keyColumn: ColClientEmail,
		byID: func(ctx context.Context, st Store, id int64) error {
			_, err := st.FindCustomerByID(ctx, id)
			return err
		},
		byKey: func(ctx context.Context, st Store, key string) (int64, error) {
			c, err := st.FindCustomerByEmail(ctx, normalizeEmail(key))
			if err != nil {
				return 0, err
			}
			return c.ID, nil
		},
		cached:   (*ResolutionContext).CustomerID,
		remember: (*ResolutionContext).RememberCustomer,
	}

	saleRef = reference{
		idColumn:  ColSalesID,
		keyColumn: ColInvoiceNumber,
		byID: func(ctx context.Context, st Store, id int64) error {
			_, err := st.FindSaleByID(ctx, id)
			return err
		},
		byKey: func(ctx context.Context, st Store, key string) (int64, error) {
			s, err := st.FindSaleByInvoice(ctx, strings.TrimSpace(key))
			if err != nil {
				return 0, err
			}
			return s.ID, nil
		},
		cached:   (*ResolutionContext).SaleID,
		remember: (*ResolutionContext).RememberSale,
	}

	productRef = reference{
		idColumn:  ColProductID,
		keyColumn: ColProductName,
		byID: func(ctx context.Context, st Store, id int64) error {
			_, err := st.FindProductByID(ctx, id)
			return err
		},
		byKey: func(ctx context.Context, st Store, key string) (int64, error) {
			p, err := st.FindProductByName(ctx, normalizeName(key))
			if err != nil {
				return 0, err
			}
			return p.ID, nil
		},
		cached:   (*ResolutionContext).ProductID,
		remember: (*ResolutionContext).RememberProduct,
	}
)

// resolver turns row references into surrogate IDs.
type resolver struct {
	store Store
	rc    *ResolutionContext
}

// resolve returns the referenced ID, or a Reference error when the row
// names no existing record. A non-nil error is a store failure.
//
// Order: an explicit id column that parses is used directly after an
// existence check. Otherwise the natural key is looked up in the run's
// context, then in the store; a store hit is cached for later rows.
func (r *resolver) resolve(ctx context.Context, ref reference, row sheet.Row) (int64, *ImportError, error) {
	if raw := row.Get(ref.idColumn); raw != "" {
		if id, ok := parseID(raw); ok {
			err := ref.byID(ctx, r.store, id)
			switch {
			case err == nil:
				return id, nil, nil
			case errors.Is(err, schema.ErrNotFound):
				ie := referenceError(row.Number, ref)
				return 0, &ie, nil
			default:
				return 0, nil, err
			}
		}
	}

	key := row.Get(ref.keyColumn)
	if key == "" {
		ie := referenceError(row.Number, ref)
		return 0, &ie, nil
	}
	if id, ok := ref.cached(r.rc, key); ok {
		return id, nil, nil
	}

	id, err := ref.byKey(ctx, r.store, key)
	switch {
	case err == nil:
		ref.remember(r.rc, key, id)
		return id, nil, nil
	case errors.Is(err, schema.ErrNotFound):
		ie := referenceError(row.Number, ref)
		return 0, &ie, nil
	default:
		return 0, nil, err
	}
}
