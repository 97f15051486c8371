package importer

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/salesimport/internal/schema"
	"github.com/JonMunkholm/salesimport/internal/sheet"
)

// Defaults applied when a row leaves a column blank on insert.
const (
	DefaultRole          = "Client"
	DefaultPaymentMethod = "Cash"
	MaxProductNameLen    = 150
)

// Decimal places the store keeps for money columns and for tax rates.
// Values with more places are rejected instead of rounded.
const (
	MoneyScale   = 2
	TaxRateScale = 4
)

// DefaultTaxRate is used for sales whose TaxRate is absent or unparseable,
// unless the run is configured with another rate.
var DefaultTaxRate = decimal.RequireFromString("0.19")

// phases lists the record types in dependency order. Classification tries
// them in the same order; the first match wins.
var phases = []phase{
	customerPhase,
	productPhase,
	salePhase,
	saleItemPhase,
}

// Customers

var customerPhase = &entityPhase[schema.Customer]{
	entity: EntityCustomer,
	matches: func(row sheet.Row) bool {
		return row.HasAny(ColFirstName, ColLastName) &&
			row.Has(ColEmail) &&
			!row.HasAny(ColInvoiceNumber, ColUnitPrice, ColSalesID)
	},
	parse: parseCustomer,
	find: func(ctx context.Context, st Store, c *schema.Customer) (*schema.Customer, error) {
		return st.FindCustomerByEmail(ctx, c.Email)
	},
	merge: func(dst, src *schema.Customer, row sheet.Row) {
		dst.FirstName = src.FirstName
		dst.LastName = src.LastName
		dst.Email = src.Email
		if row.Has(ColPhoneNumber) {
			dst.PhoneNumber = src.PhoneNumber
		}
		if row.Has(ColAddress) {
			dst.Address = src.Address
		}
		if row.Has(ColRole) {
			dst.Role = src.Role
		}
	},
	insert: func(ctx context.Context, st Store, c *schema.Customer) error { return st.InsertCustomer(ctx, c) },
	update: func(ctx context.Context, st Store, c *schema.Customer) error { return st.UpdateCustomer(ctx, c) },
	remember: func(rc *ResolutionContext, c *schema.Customer) {
		rc.RememberCustomer(c.Email, c.ID)
	},
	id: func(c *schema.Customer) int64 { return c.ID },
}

func parseCustomer(_ *runEnv, row sheet.Row) (*schema.Customer, []ImportError) {
	c := &schema.Customer{
		FirstName:   row.Get(ColFirstName),
		LastName:    row.Get(ColLastName),
		Email:       normalizeEmail(row.Get(ColEmail)),
		PhoneNumber: row.Get(ColPhoneNumber),
		Address:     row.Get(ColAddress),
		Role:        row.Get(ColRole),
	}
	if c.Role == "" {
		c.Role = DefaultRole
	}

	var errs []ImportError
	if c.FirstName == "" {
		errs = append(errs, fieldError(row.Number, ColFirstName, "FirstName is required"))
	}
	if c.LastName == "" {
		errs = append(errs, fieldError(row.Number, ColLastName, "LastName is required"))
	}
	switch {
	case c.Email == "":
		errs = append(errs, fieldError(row.Number, ColEmail, "Email is required"))
	case !validEmail(c.Email):
		errs = append(errs, fieldError(row.Number, ColEmail, "Email %q is not a valid email address", row.Get(ColEmail)))
	}
	return c, errs
}

// Products

var productPhase = &entityPhase[schema.Product]{
	entity: EntityProduct,
	matches: func(row sheet.Row) bool {
		return row.Has(ColName) &&
			row.HasAny(ColUnitPrice, ColStock) &&
			!row.HasAny(ColEmail, ColInvoiceNumber, ColSalesID)
	},
	parse: parseProduct,
	find: func(ctx context.Context, st Store, p *schema.Product) (*schema.Product, error) {
		return st.FindProductByName(ctx, normalizeName(p.Name))
	},
	merge: func(dst, src *schema.Product, row sheet.Row) {
		dst.Name = src.Name
		if row.Has(ColDescription) {
			dst.Description = src.Description
		}
		if row.Has(ColUnitPrice) {
			dst.UnitPrice = src.UnitPrice
		}
		if row.Has(ColStock) {
			dst.Stock = src.Stock
		}
		if row.Has(ColCategoryID) {
			dst.CategoryID = src.CategoryID
		}
	},
	insert: func(ctx context.Context, st Store, p *schema.Product) error { return st.InsertProduct(ctx, p) },
	update: func(ctx context.Context, st Store, p *schema.Product) error { return st.UpdateProduct(ctx, p) },
	remember: func(rc *ResolutionContext, p *schema.Product) {
		rc.RememberProduct(p.Name, p.ID)
	},
	id: func(p *schema.Product) int64 { return p.ID },
}

func parseProduct(_ *runEnv, row sheet.Row) (*schema.Product, []ImportError) {
	p := &schema.Product{
		Name:        row.Get(ColName),
		Description: row.Get(ColDescription),
	}

	var errs []ImportError
	switch {
	case p.Name == "":
		errs = append(errs, fieldError(row.Number, ColName, "Name is required"))
	case utf8.RuneCountInString(p.Name) > MaxProductNameLen:
		errs = append(errs, fieldError(row.Number, ColName, "Name must be at most %d characters", MaxProductNameLen))
	}

	if raw := row.Get(ColUnitPrice); raw != "" {
		price, ok := parseDecimal(raw)
		switch {
		case !ok || price.IsNegative():
			errs = append(errs, fieldError(row.Number, ColUnitPrice, "UnitPrice %q must be a non-negative decimal", raw))
		case !fitsScale(price, MoneyScale):
			errs = append(errs, scaleError(row, ColUnitPrice, MoneyScale))
		}
		p.UnitPrice = price
	}
	if raw := row.Get(ColStock); raw != "" {
		stock, ok := parseInt(raw)
		if !ok || stock < 0 {
			errs = append(errs, fieldError(row.Number, ColStock, "Stock %q must be a non-negative integer", raw))
		}
		p.Stock = stock
	}
	if raw := row.Get(ColCategoryID); raw != "" {
		id, ok := parseID(raw)
		if !ok {
			errs = append(errs, fieldError(row.Number, ColCategoryID, "CategoryId %q must be a positive integer", raw))
		} else {
			p.CategoryID = &id
		}
	}
	return p, errs
}

// Sales

var salePhase = &entityPhase[schema.Sale]{
	entity: EntitySale,
	matches: func(row sheet.Row) bool {
		return row.Has(ColInvoiceNumber) &&
			row.HasAny(ColClientID, ColClientEmail) &&
			!row.HasAny(ColSalesID, ColProductID)
	},
	parse: parseSale,
	link: func(ctx context.Context, env *runEnv, row sheet.Row, s *schema.Sale) ([]ImportError, error) {
		id, refErr, err := env.resolve(ctx, clientRef, row)
		if err != nil || refErr != nil {
			return errList(refErr), err
		}
		s.ClientID = id
		return nil, nil
	},
	find: func(ctx context.Context, st Store, s *schema.Sale) (*schema.Sale, error) {
		return st.FindSaleByInvoice(ctx, s.InvoiceNumber)
	},
	merge: func(dst, src *schema.Sale, row sheet.Row) {
		dst.ClientID = src.ClientID
		dst.Subtotal = src.Subtotal
		dst.Total = src.Total
		// src carries the run default when the cell is unparseable.
		if row.Has(ColTaxRate) {
			dst.TaxRate = src.TaxRate
		}
		if row.Has(ColSaleDate) {
			dst.SaleDate = src.SaleDate
		}
		if row.Has(ColPaymentMethod) {
			dst.PaymentMethod = src.PaymentMethod
		}
		if row.Has(ColIsPaid) {
			dst.IsPaid = src.IsPaid
		}
		if row.Has(ColNotes) {
			dst.Notes = src.Notes
		}
	},
	insert: func(ctx context.Context, st Store, s *schema.Sale) error { return st.InsertSale(ctx, s) },
	update: func(ctx context.Context, st Store, s *schema.Sale) error { return st.UpdateSale(ctx, s) },
	remember: func(rc *ResolutionContext, s *schema.Sale) {
		rc.RememberSale(s.InvoiceNumber, s.ID)
	},
	id: func(s *schema.Sale) int64 { return s.ID },
}

func parseSale(env *runEnv, row sheet.Row) (*schema.Sale, []ImportError) {
	s := &schema.Sale{
		InvoiceNumber: strings.TrimSpace(row.Get(ColInvoiceNumber)),
		SaleDate:      env.now,
		TaxRate:       env.defaultTaxRate,
		PaymentMethod: row.Get(ColPaymentMethod),
		IsPaid:        parseFlag(row.Get(ColIsPaid)),
		Notes:         row.Get(ColNotes),
	}
	if s.PaymentMethod == "" {
		s.PaymentMethod = DefaultPaymentMethod
	}
	var errs []ImportError
	if rate, ok := parseDecimal(row.Get(ColTaxRate)); ok {
		if fitsScale(rate, TaxRateScale) {
			s.TaxRate = rate
		} else {
			errs = append(errs, scaleError(row, ColTaxRate, TaxRateScale))
		}
	}
	if s.InvoiceNumber == "" {
		errs = append(errs, fieldError(row.Number, ColInvoiceNumber, "InvoiceNumber is required"))
	}
	if raw := row.Get(ColSaleDate); raw != "" {
		date, ok := parseDate(raw, env.now)
		if !ok {
			errs = append(errs, fieldError(row.Number, ColSaleDate, "SaleDate %q is not a recognised date (use YYYY-MM-DD)", raw))
		}
		s.SaleDate = date
	}

	var ok bool
	if s.Subtotal, ok = parseDecimal(row.Get(ColSubtotal)); !ok {
		errs = append(errs, requiredDecimal(row, ColSubtotal))
	} else if !fitsScale(s.Subtotal, MoneyScale) {
		errs = append(errs, scaleError(row, ColSubtotal, MoneyScale))
	}
	if s.Total, ok = parseDecimal(row.Get(ColTotal)); !ok {
		errs = append(errs, requiredDecimal(row, ColTotal))
	} else if !fitsScale(s.Total, MoneyScale) {
		errs = append(errs, scaleError(row, ColTotal, MoneyScale))
	}
	return s, errs
}

// Sale items

var saleItemPhase = &entityPhase[schema.SaleItem]{
	entity: EntitySaleItem,
	matches: func(row sheet.Row) bool {
		return row.Has(ColQuantity) &&
			row.HasAny(ColSalesID, ColInvoiceNumber) &&
			row.HasAny(ColProductID, ColProductName)
	},
	parse: parseSaleItem,
	link:  linkSaleItem,
	find: func(ctx context.Context, st Store, it *schema.SaleItem) (*schema.SaleItem, error) {
		return st.FindSaleItem(ctx, it.SaleID, it.ProductID)
	},
	merge: func(dst, src *schema.SaleItem, row sheet.Row) {
		dst.Quantity = src.Quantity
		if row.Has(ColUnitPrice) {
			dst.UnitPrice = src.UnitPrice
		}
		dst.ComputeLineTotal()
	},
	insert: func(ctx context.Context, st Store, it *schema.SaleItem) error { return st.InsertSaleItem(ctx, it) },
	update: func(ctx context.Context, st Store, it *schema.SaleItem) error { return st.UpdateSaleItem(ctx, it) },
	// Items are not referenced by later rows; the (sale, product) pair is
	// matched against the store directly.
	remember: func(*ResolutionContext, *schema.SaleItem) {},
	id:       func(it *schema.SaleItem) int64 { return it.ID },
}

func parseSaleItem(_ *runEnv, row sheet.Row) (*schema.SaleItem, []ImportError) {
	it := &schema.SaleItem{}

	var errs []ImportError
	raw := row.Get(ColQuantity)
	qty, ok := parseInt(raw)
	if !ok || qty <= 0 {
		errs = append(errs, fieldError(row.Number, ColQuantity, "Quantity %q must be a positive integer", raw))
	}
	it.Quantity = qty

	if raw := row.Get(ColUnitPrice); raw != "" {
		price, ok := parseDecimal(raw)
		switch {
		case !ok || price.IsNegative():
			errs = append(errs, fieldError(row.Number, ColUnitPrice, "UnitPrice %q must be a non-negative decimal", raw))
		case !fitsScale(price, MoneyScale):
			errs = append(errs, scaleError(row, ColUnitPrice, MoneyScale))
		}
		it.UnitPrice = price
	}
	it.ComputeLineTotal()
	return it, errs
}

// linkSaleItem resolves the parent sale, then the product. A missing sale
// stops resolution, since the product check means nothing without it. When
// the row has no UnitPrice the product's current price is used.
func linkSaleItem(ctx context.Context, env *runEnv, row sheet.Row, it *schema.SaleItem) ([]ImportError, error) {
	saleID, refErr, err := env.resolve(ctx, saleRef, row)
	if err != nil || refErr != nil {
		return errList(refErr), err
	}
	productID, refErr, err := env.resolve(ctx, productRef, row)
	if err != nil || refErr != nil {
		return errList(refErr), err
	}
	it.SaleID = saleID
	it.ProductID = productID

	if !row.Has(ColUnitPrice) {
		p, err := env.store.FindProductByID(ctx, productID)
		if err != nil {
			return nil, err
		}
		it.UnitPrice = p.UnitPrice
		it.ComputeLineTotal()
	}
	return nil, nil
}

func requiredDecimal(row sheet.Row, column string) ImportError {
	raw := row.Get(column)
	if raw == "" {
		return fieldError(row.Number, column, "%s is required", column)
	}
	return fieldError(row.Number, column, "%s %q must be a decimal", column, raw)
}

func fitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

func scaleError(row sheet.Row, column string, places int32) ImportError {
	return fieldError(row.Number, column, "%s %q has more than %d decimal places", column, row.Get(column), places)
}

func errList(e *ImportError) []ImportError {
	if e == nil {
		return nil
	}
	return []ImportError{*e}
}
