package postgres

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/salesimport/internal/core"
	"github.com/JonMunkholm/salesimport/internal/importer"
	"github.com/JonMunkholm/salesimport/internal/schema"
	"github.com/JonMunkholm/salesimport/internal/sheet"
)

// openTestDB connects to TEST_DATABASE_URL, migrates it and empties the
// tables. Tests are skipped when the variable is unset.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, Config{URL: url, MaxConns: 4})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if _, err := db.pool.Exec(ctx, `TRUNCATE sale_items, sales, products, customers, import_runs RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

func newSession(t *testing.T, db *DB) *Session {
	t.Helper()
	s, err := db.NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s.(*Session)
}

func TestSession_CustomerRoundTrip(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)
	ctx := context.Background()

	c := &schema.Customer{FirstName: "Ana", LastName: "Ruiz", Email: "ana@example.com", Role: "Client"}
	if err := s.InsertCustomer(ctx, c); err != nil {
		t.Fatalf("InsertCustomer() error = %v", err)
	}
	if c.ID == 0 {
		t.Fatal("InsertCustomer() did not assign an ID")
	}

	got, err := s.FindCustomerByEmail(ctx, "ANA@example.com")
	if err != nil {
		t.Fatalf("FindCustomerByEmail() error = %v", err)
	}
	if got.ID != c.ID {
		t.Errorf("FindCustomerByEmail() ID = %d, want %d", got.ID, c.ID)
	}

	if _, err := s.FindCustomerByEmail(ctx, "nobody@example.com"); !errors.Is(err, schema.ErrNotFound) {
		t.Errorf("FindCustomerByEmail(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestSession_FailedWriteKeepsPhase(t *testing.T) {
	db := openTestDB(t)
	s := newSession(t, db)
	ctx := context.Background()

	first := &schema.Customer{FirstName: "A", LastName: "B", Email: "dup@example.com", Role: "Client"}
	if err := s.InsertCustomer(ctx, first); err != nil {
		t.Fatalf("InsertCustomer() error = %v", err)
	}

	dup := &schema.Customer{FirstName: "C", LastName: "D", Email: "DUP@example.com", Role: "Client"}
	err := s.InsertCustomer(ctx, dup)
	if err == nil || !strings.Contains(err.Error(), "duplicate key") {
		t.Fatalf("InsertCustomer(duplicate) error = %v, want duplicate key", err)
	}

	// The savepoint rollback must leave the phase transaction usable.
	other := &schema.Customer{FirstName: "E", LastName: "F", Email: "other@example.com", Role: "Client"}
	if err := s.InsertCustomer(ctx, other); err != nil {
		t.Fatalf("InsertCustomer() after failure error = %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var n int
	if err := db.pool.QueryRow(ctx, `SELECT count(*) FROM customers`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("customers = %d, want 2", n)
	}
}

func TestSession_CloseDiscardsUnflushed(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	s := newSession(t, db)
	p := &schema.Product{Name: "Widget", UnitPrice: decimal.RequireFromString("9.99")}
	if err := s.InsertProduct(ctx, p); err != nil {
		t.Fatalf("InsertProduct() error = %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s2 := newSession(t, db)
	if _, err := s2.FindProductByName(ctx, "widget"); !errors.Is(err, schema.ErrNotFound) {
		t.Errorf("FindProductByName() after Close error = %v, want ErrNotFound", err)
	}
}

func TestSession_ImportEndToEnd(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rows := []map[string]string{
		{"FirstName": "Ana", "LastName": "Ruiz", "Email": "ana@example.com"},
		{"Name": "Widget", "UnitPrice": "10.00", "Stock": "5"},
		{"InvoiceNumber": "INV-1", "ClientEmail": "ana@example.com", "Subtotal": "20", "Total": "23.80"},
		{"InvoiceNumber": "INV-1", "ProductName": "Widget", "Quantity": "2"},
	}

	for pass := range 2 {
		s := newSession(t, db)
		res := importer.New(s, importer.Options{}).Run(ctx, toRows(rows))
		if res.ErrorCount != 0 {
			t.Fatalf("pass %d errors = %v", pass, res.Errors)
		}
		if pass == 0 && res.Inserted != 4 {
			t.Errorf("pass 0 Inserted = %d, want 4", res.Inserted)
		}
		if pass == 1 && res.Updated != 4 {
			t.Errorf("pass 1 Updated = %d, want 4", res.Updated)
		}
	}

	s := newSession(t, db)
	sale, err := s.FindSaleByInvoice(ctx, "INV-1")
	if err != nil {
		t.Fatalf("FindSaleByInvoice() error = %v", err)
	}
	prod, err := s.FindProductByName(ctx, "WIDGET")
	if err != nil {
		t.Fatalf("FindProductByName() error = %v", err)
	}
	item, err := s.FindSaleItem(ctx, sale.ID, prod.ID)
	if err != nil {
		t.Fatalf("FindSaleItem() error = %v", err)
	}
	if !item.LineTotal.Equal(decimal.NewFromInt(20)) {
		t.Errorf("LineTotal = %s, want 20", item.LineTotal)
	}
}

func TestHistory_SaveAndGet(t *testing.T) {
	db := openTestDB(t)
	h := db.History()
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := &core.Run{
		ID:         uuid.New(),
		FileName:   "sales.xlsx",
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Result: importer.ImportResult{
			TotalRows:  1,
			ErrorCount: 1,
			Errors:     []importer.ImportError{{RowNumber: 2, Field: "Email", Message: "invalid email"}},
		},
	}
	if err := h.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	got, err := h.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.FileName != run.FileName || len(got.Result.Errors) != 1 {
		t.Errorf("GetRun() = %+v", got)
	}

	if _, err := h.GetRun(ctx, uuid.New()); !errors.Is(err, core.ErrRunNotFound) {
		t.Errorf("GetRun(unknown) error = %v, want ErrRunNotFound", err)
	}

	runs, err := h.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("ListRuns() len = %d, want 1", len(runs))
	}
}

func toRows(data []map[string]string) []sheet.Row {
	out := make([]sheet.Row, len(data))
	for i, c := range data {
		out[i] = sheet.NewRow(i+2, c)
	}
	return out
}
