package importer_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/salesimport/internal/importer"
	"github.com/JonMunkholm/salesimport/internal/sheet"
	"github.com/JonMunkholm/salesimport/internal/store/memory"
)

type cells = map[string]string

// rows numbers data rows from 2, as they appear below the header.
func rows(data ...cells) []sheet.Row {
	out := make([]sheet.Row, len(data))
	for i, c := range data {
		out[i] = sheet.NewRow(i+2, c)
	}
	return out
}

func run(t *testing.T, st *memory.Store, data ...cells) importer.ImportResult {
	t.Helper()
	im := importer.New(st, importer.Options{})
	return im.Run(context.Background(), rows(data...))
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decimalPtr(s string) *decimal.Decimal {
	d := mustDecimal(s)
	return &d
}

func assertNoErrors(t *testing.T, res importer.ImportResult) {
	t.Helper()
	if res.ErrorCount != 0 {
		t.Fatalf("ErrorCount = %d, errors: %v", res.ErrorCount, res.Errors)
	}
}

var mixedSheet = []cells{
	{"FirstName": "Ana", "LastName": "Ruiz", "Email": "ana@x.com"},
	{"FirstName": "Ben", "LastName": "Ortiz", "Email": "ben@x.com", "PhoneNumber": "555-0101"},
	{"Name": "Widget", "UnitPrice": "12.50", "Stock": "40"},
	{"InvoiceNumber": "INV-1", "ClientEmail": "ana@x.com", "Subtotal": "100", "Total": "119"},
	{"FirstName": "Cleo", "LastName": "Diaz", "Email": "cleo@x.com"},
	{"Name": "Gadget", "Stock": "3"},
}

func TestRun_MixedSheet(t *testing.T) {
	st := memory.New()
	res := run(t, st, mixedSheet...)

	assertNoErrors(t, res)
	if res.TotalRows != 6 || res.Inserted != 6 || res.Updated != 0 {
		t.Errorf("result = %+v, want 6 rows, 6 inserted", res)
	}

	ana, err := st.FindCustomerByEmail(context.Background(), "ana@x.com")
	if err != nil {
		t.Fatalf("find Ana: %v", err)
	}
	sale, err := st.FindSaleByInvoice(context.Background(), "INV-1")
	if err != nil {
		t.Fatalf("find sale: %v", err)
	}
	if sale.ClientID != ana.ID {
		t.Errorf("sale ClientID = %d, want Ana's id %d", sale.ClientID, ana.ID)
	}
	if !sale.TaxRate.Equal(mustDecimal("0.19")) {
		t.Errorf("TaxRate = %s, want default 0.19", sale.TaxRate)
	}
	if sale.PaymentMethod != importer.DefaultPaymentMethod || sale.IsPaid {
		t.Errorf("sale defaults = %q/%v", sale.PaymentMethod, sale.IsPaid)
	}
	if ana.Role != importer.DefaultRole {
		t.Errorf("Role = %q, want %q", ana.Role, importer.DefaultRole)
	}

	wantPhases := map[importer.EntityType]int{
		importer.EntityCustomer: 3,
		importer.EntityProduct:  2,
		importer.EntitySale:     1,
	}
	for _, ps := range res.Phases {
		if ps.Inserted != wantPhases[ps.Entity] {
			t.Errorf("phase %s inserted = %d, want %d", ps.Entity, ps.Inserted, wantPhases[ps.Entity])
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	st := memory.New()
	sheetRows := append(append([]cells{}, mixedSheet...),
		cells{"InvoiceNumber": "INV-1", "ProductName": "widget", "Quantity": "2"},
	)

	first := run(t, st, sheetRows...)
	assertNoErrors(t, first)
	before := st.Counts()

	second := run(t, st, sheetRows...)
	assertNoErrors(t, second)

	if second.Inserted != 0 {
		t.Errorf("second run inserted = %d, want 0", second.Inserted)
	}
	if second.Updated != len(sheetRows) {
		t.Errorf("second run updated = %d, want %d", second.Updated, len(sheetRows))
	}
	if after := st.Counts(); after != before {
		t.Errorf("counts changed: %+v -> %+v", before, after)
	}
}

func TestRun_SaleItemBeforeParents(t *testing.T) {
	st := memory.New()
	res := run(t, st,
		cells{"InvoiceNumber": "INV-9", "ProductName": "Lamp", "Quantity": "3"},
		cells{"InvoiceNumber": "INV-9", "ClientEmail": "DORA@x.com", "Subtotal": "60", "Total": "71.4"},
		cells{"Name": "Lamp", "UnitPrice": "20"},
		cells{"FirstName": "Dora", "LastName": "Vega", "Email": "dora@x.com"},
	)
	assertNoErrors(t, res)
	if res.Inserted != 4 {
		t.Fatalf("inserted = %d, want 4", res.Inserted)
	}

	ctx := context.Background()
	sale, _ := st.FindSaleByInvoice(ctx, "INV-9")
	lamp, _ := st.FindProductByName(ctx, "lamp")
	item, err := st.FindSaleItem(ctx, sale.ID, lamp.ID)
	if err != nil {
		t.Fatalf("find item: %v", err)
	}
	if !item.UnitPrice.Equal(mustDecimal("20")) {
		t.Errorf("item UnitPrice = %s, want product price 20", item.UnitPrice)
	}
	if !item.LineTotal.Equal(mustDecimal("60")) {
		t.Errorf("LineTotal = %s, want 60", item.LineTotal)
	}
}

func TestRun_UnknownProductReference(t *testing.T) {
	st := memory.New()
	res := run(t, st,
		cells{"FirstName": "Ana", "LastName": "Ruiz", "Email": "ana@x.com"},
		cells{"InvoiceNumber": "INV-1", "ClientEmail": "ana@x.com", "Subtotal": "10", "Total": "11.9"},
		cells{"InvoiceNumber": "INV-1", "ProductName": "Nowhere", "Quantity": "1"},
	)

	if res.ErrorCount != 1 {
		t.Fatalf("ErrorCount = %d, want 1: %v", res.ErrorCount, res.Errors)
	}
	e := res.Errors[0]
	if e.Kind != importer.KindReference || e.Field != importer.ColProductID || e.RowNumber != 4 {
		t.Errorf("error = %+v", e)
	}
	if e.Message != "ProductId or ProductName is required and the referenced entity must exist" {
		t.Errorf("message = %q", e.Message)
	}
	if got := st.Counts().SaleItems; got != 0 {
		t.Errorf("SaleItems = %d, want 0", got)
	}
}

func TestRun_MissingSaleStopsResolution(t *testing.T) {
	st := memory.New()
	res := run(t, st,
		cells{"SalesId": "999", "ProductName": "Nowhere", "Quantity": "1"},
	)
	if res.ErrorCount != 1 {
		t.Fatalf("ErrorCount = %d, want 1: %v", res.ErrorCount, res.Errors)
	}
	if res.Errors[0].Field != importer.ColSalesID {
		t.Errorf("field = %q, want SalesId", res.Errors[0].Field)
	}
}

func TestRun_InvalidUnitPrice(t *testing.T) {
	st := memory.New()
	res := run(t, st, cells{"Name": "Widget", "UnitPrice": "abc"})

	if res.ErrorCount != 1 {
		t.Fatalf("ErrorCount = %d, want 1: %v", res.ErrorCount, res.Errors)
	}
	if e := res.Errors[0]; e.Field != importer.ColUnitPrice || e.Kind != importer.KindField {
		t.Errorf("error = %+v", e)
	}
	if res.Inserted != 0 || st.Counts().Products != 0 {
		t.Errorf("invalid row was inserted")
	}
}

func TestRun_UnknownRow(t *testing.T) {
	st := memory.New()
	res := run(t, st, cells{"Color": "blue", "Size": "XL"})

	if res.TotalRows != 1 || res.ErrorCount != 1 {
		t.Fatalf("result = %+v", res)
	}
	if e := res.Errors[0]; e.Field != importer.FieldDetection || e.Kind != importer.KindDetection || e.RowNumber != 2 {
		t.Errorf("error = %+v", e)
	}
}

func TestRun_AllErrorsForRow(t *testing.T) {
	st := memory.New()
	res := run(t, st, cells{"FirstName": "Ana", "Email": "not-an-email"})

	if res.ErrorCount != 2 {
		t.Fatalf("ErrorCount = %d, want 2: %v", res.ErrorCount, res.Errors)
	}
	got := []string{res.Errors[0].Field, res.Errors[1].Field}
	if got[0] != importer.ColLastName || got[1] != importer.ColEmail {
		t.Errorf("fields = %v, want [LastName Email]", got)
	}
}

func TestRun_UpdateKeepsAbsentColumns(t *testing.T) {
	st := memory.New()
	assertNoErrors(t, run(t, st, cells{
		"FirstName": "Ana", "LastName": "Ruiz", "Email": "ana@x.com",
		"PhoneNumber": "555-1", "Address": "Calle 1", "Role": "VIP",
	}))

	res := run(t, st, cells{"FirstName": "Ana María", "LastName": "Ruiz", "Email": "ANA@X.COM", "PhoneNumber": "555-2"})
	assertNoErrors(t, res)
	if res.Updated != 1 {
		t.Fatalf("updated = %d, want 1", res.Updated)
	}

	c, _ := st.FindCustomerByEmail(context.Background(), "ana@x.com")
	if c.FirstName != "Ana María" || c.PhoneNumber != "555-2" {
		t.Errorf("present columns not applied: %+v", c)
	}
	if c.Address != "Calle 1" || c.Role != "VIP" {
		t.Errorf("absent columns overwritten: %+v", c)
	}
	if !c.UpdatedAt.After(c.CreatedAt) && !c.UpdatedAt.Equal(c.CreatedAt) {
		t.Errorf("timestamps out of order: %+v", c)
	}
}

func TestRun_ExplicitClientID(t *testing.T) {
	st := memory.New()
	assertNoErrors(t, run(t, st, cells{"FirstName": "Ana", "LastName": "Ruiz", "Email": "ana@x.com"}))
	ana, _ := st.FindCustomerByEmail(context.Background(), "ana@x.com")

	tests := []struct {
		name      string
		row       cells
		wantError bool
	}{
		{"existing id", cells{"InvoiceNumber": "A-1", "ClientId": "1", "Subtotal": "1", "Total": "1"}, false},
		{"missing id", cells{"InvoiceNumber": "A-2", "ClientId": "77", "Subtotal": "1", "Total": "1"}, true},
		{"unparseable id falls back to email", cells{"InvoiceNumber": "A-3", "ClientId": "n/a", "ClientEmail": "ana@x.com", "Subtotal": "1", "Total": "1"}, false},
		{"pre-existing email", cells{"InvoiceNumber": "A-4", "ClientEmail": "Ana@X.com", "Subtotal": "1", "Total": "1"}, false},
	}
	if ana.ID != 1 {
		t.Fatalf("Ana id = %d, test assumes 1", ana.ID)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, st, tt.row)
			if gotErr := res.ErrorCount > 0; gotErr != tt.wantError {
				t.Fatalf("errors = %v, wantError %v", res.Errors, tt.wantError)
			}
			if tt.wantError {
				e := res.Errors[0]
				if e.Kind != importer.KindReference || e.Field != importer.ColClientID {
					t.Errorf("error = %+v", e)
				}
			}
		})
	}
}

func TestRun_GeneralErrorContinues(t *testing.T) {
	st := memory.New()
	st.Fail = func(op memory.Op, key string) error {
		if op == memory.OpInsertProduct && key == "widget" {
			return errors.New("connection reset by peer")
		}
		return nil
	}

	res := run(t, st,
		cells{"Name": "Widget", "UnitPrice": "1"},
		cells{"Name": "Gadget", "UnitPrice": "2"},
	)

	if res.ErrorCount != 1 || res.Inserted != 1 {
		t.Fatalf("result = %+v", res)
	}
	e := res.Errors[0]
	if e.Kind != importer.KindGeneral || e.Field != importer.FieldGeneral || e.RowNumber != 2 {
		t.Errorf("error = %+v", e)
	}
	if _, err := st.FindProductByName(context.Background(), "gadget"); err != nil {
		t.Errorf("next row not processed: %v", err)
	}
}

func TestRun_FlushFailureStopsRun(t *testing.T) {
	st := memory.New()
	flushes := 0
	st.Fail = func(op memory.Op, _ string) error {
		if op != memory.OpFlush {
			return nil
		}
		flushes++
		if flushes == 2 {
			return errors.New("connection reset by peer")
		}
		return nil
	}

	res := run(t, st, mixedSheet...)

	if res.Inserted != 3 {
		t.Errorf("inserted = %d, want only the 3 flushed customers", res.Inserted)
	}
	last := res.Errors[len(res.Errors)-1]
	if last.Kind != importer.KindSystem || last.RowNumber != 0 {
		t.Fatalf("last error = %+v, want System error", last)
	}
	if !strings.Contains(last.Message, "Product") {
		t.Errorf("message = %q, want phase name", last.Message)
	}
	if got := st.Counts(); got.Products != 0 || got.Sales != 0 || got.Customers != 3 {
		t.Errorf("counts = %+v", got)
	}
}

func TestRun_CancelledBetweenRows(t *testing.T) {
	st := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st.Fail = func(op memory.Op, key string) error {
		if op == memory.OpInsertCustomer && key == "ana@x.com" {
			cancel()
		}
		return nil
	}

	im := importer.New(st, importer.Options{})
	res := im.Run(ctx, rows(mixedSheet...))

	if res.Inserted != 1 {
		t.Errorf("inserted = %d, want 1", res.Inserted)
	}
	if !res.HasSystemError() {
		t.Fatalf("want System error, got %v", res.Errors)
	}
	if got := st.Counts(); got.Customers != 1 || got.Products != 0 {
		t.Errorf("counts = %+v", got)
	}
	if st.Flushes() != 1 {
		t.Errorf("flushes = %d, want the cancelled phase flushed once", st.Flushes())
	}
}

func TestRun_DefaultSaleDateAndTaxRate(t *testing.T) {
	st := memory.New()
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	im := importer.New(st, importer.Options{
		DefaultTaxRate: decimalPtr("0.08"),
		Now:            func() time.Time { return now },
	})

	res := im.Run(context.Background(), rows(
		cells{"FirstName": "Ana", "LastName": "Ruiz", "Email": "ana@x.com"},
		cells{"InvoiceNumber": "D-1", "ClientEmail": "ana@x.com", "Subtotal": "$1,000.00", "Total": "1080", "TaxRate": "n/a"},
		cells{"InvoiceNumber": "D-2", "ClientEmail": "ana@x.com", "Subtotal": "5", "Total": "5", "SaleDate": "2024-01-15", "TaxRate": "0", "IsPaid": "TRUE"},
	))
	assertNoErrors(t, res)

	ctx := context.Background()
	d1, _ := st.FindSaleByInvoice(ctx, "D-1")
	if !d1.SaleDate.Equal(now) || !d1.TaxRate.Equal(mustDecimal("0.08")) {
		t.Errorf("D-1 = date %v rate %s", d1.SaleDate, d1.TaxRate)
	}
	if !d1.Subtotal.Equal(mustDecimal("1000")) {
		t.Errorf("D-1 Subtotal = %s", d1.Subtotal)
	}
	d2, _ := st.FindSaleByInvoice(ctx, "D-2")
	if d2.SaleDate.Format("2006-01-02") != "2024-01-15" || !d2.TaxRate.IsZero() || !d2.IsPaid {
		t.Errorf("D-2 = %+v", d2)
	}
}

func TestImport_CSV(t *testing.T) {
	input := "firstname,lastname,email,Name,UnitPrice,InvoiceNumber,ClientEmail,Subtotal,Total\n" +
		"Ana,Ruiz,ana@x.com,,,,,,\n" +
		",,,Widget,9.99,,,,\n" +
		",,,,,,,,\n" +
		",,,,,INV-1,ana@x.com,100,119\n"

	st := memory.New()
	res := importer.New(st, importer.Options{}).Import(context.Background(), strings.NewReader(input))

	assertNoErrors(t, res)
	if res.TotalRows != 3 || res.Inserted != 3 {
		t.Errorf("result = %+v, want 3 rows inserted", res)
	}
}

func TestImport_Unreadable(t *testing.T) {
	st := memory.New()
	res := importer.New(st, importer.Options{}).Import(context.Background(), strings.NewReader(""))

	if res.TotalRows != 0 || res.ErrorCount != 1 {
		t.Fatalf("result = %+v", res)
	}
	if e := res.Errors[0]; e.RowNumber != 0 || e.Field != importer.FieldSystem || e.Kind != importer.KindSystem {
		t.Errorf("error = %+v", e)
	}
}

func TestRun_ConfiguredZeroTaxRate(t *testing.T) {
	st := memory.New()
	im := importer.New(st, importer.Options{DefaultTaxRate: decimalPtr("0")})

	res := im.Run(context.Background(), rows(
		cells{"FirstName": "Ana", "LastName": "Ruiz", "Email": "ana@x.com"},
		cells{"InvoiceNumber": "Z-1", "ClientEmail": "ana@x.com", "Subtotal": "10", "Total": "10"},
	))
	assertNoErrors(t, res)

	sale, err := st.FindSaleByInvoice(context.Background(), "Z-1")
	if err != nil {
		t.Fatalf("find sale: %v", err)
	}
	if !sale.TaxRate.IsZero() {
		t.Errorf("TaxRate = %s, want the configured 0", sale.TaxRate)
	}
}

func TestRun_SaleUpdateTaxRate(t *testing.T) {
	tests := []struct {
		name string
		row  cells
		want string
	}{
		{"parseable rate replaces", cells{"TaxRate": "0.05"}, "0.05"},
		{"unparseable rate means default", cells{"TaxRate": "n/a"}, "0.19"},
		{"absent column keeps stored", cells{}, "0.07"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := memory.New()
			res := run(t, st,
				cells{"FirstName": "Ana", "LastName": "Ruiz", "Email": "ana@x.com"},
				cells{"InvoiceNumber": "U-1", "ClientEmail": "ana@x.com", "Subtotal": "10", "Total": "10.70", "TaxRate": "0.07"},
			)
			assertNoErrors(t, res)

			update := cells{"InvoiceNumber": "U-1", "ClientEmail": "ana@x.com", "Subtotal": "10", "Total": "10.70"}
			for k, v := range tt.row {
				update[k] = v
			}
			res = run(t, st, update)
			assertNoErrors(t, res)
			if res.Updated != 1 {
				t.Fatalf("Updated = %d, want 1", res.Updated)
			}

			sale, _ := st.FindSaleByInvoice(context.Background(), "U-1")
			if !sale.TaxRate.Equal(mustDecimal(tt.want)) {
				t.Errorf("TaxRate = %s, want %s", sale.TaxRate, tt.want)
			}
		})
	}
}

func TestRun_RejectsUnstorablePrecision(t *testing.T) {
	st := memory.New()
	res := run(t, st,
		cells{"FirstName": "Ana", "LastName": "Ruiz", "Email": "ana@x.com"},
		cells{"Name": "Widget", "UnitPrice": "12.555"},
		cells{"Name": "Gadget", "UnitPrice": "12.500"},
		cells{"InvoiceNumber": "P-1", "ClientEmail": "ana@x.com", "Subtotal": "10.001", "Total": "10"},
		cells{"InvoiceNumber": "P-2", "ClientEmail": "ana@x.com", "Subtotal": "10", "Total": "10", "TaxRate": "0.12345"},
	)

	got := map[int]string{}
	for _, e := range res.Errors {
		got[e.RowNumber] = e.Field
	}
	want := map[int]string{3: importer.ColUnitPrice, 5: importer.ColSubtotal, 6: importer.ColTaxRate}
	if len(got) != len(want) {
		t.Fatalf("errors = %v, want rows %v", res.Errors, want)
	}
	for row, field := range want {
		if got[row] != field {
			t.Errorf("row %d error field = %q, want %q", row, got[row], field)
		}
	}

	if _, err := st.FindProductByName(context.Background(), "gadget"); err != nil {
		t.Errorf("Gadget at 12.500 should be stored: %v", err)
	}
}
