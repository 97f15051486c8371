package importer

import (
	"testing"

	"github.com/JonMunkholm/salesimport/internal/sheet"
)

func row(cells map[string]string) sheet.Row {
	return sheet.NewRow(2, cells)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		cells map[string]string
		want  EntityType
	}{
		{"customer", map[string]string{"FirstName": "Ana", "Email": "a@x.com"}, EntityCustomer},
		{"customer last name only", map[string]string{"LastName": "Ruiz", "Email": "a@x.com"}, EntityCustomer},
		{"customer headers any case", map[string]string{"firstname": "Ana", "EMAIL": "a@x.com"}, EntityCustomer},
		{"customer with unit price is not a customer", map[string]string{"FirstName": "Ana", "Email": "a@x.com", "UnitPrice": "1"}, EntityUnknown},
		{"customer without email", map[string]string{"FirstName": "Ana", "LastName": "Ruiz"}, EntityUnknown},
		{"customer blank invoice does not block", map[string]string{"FirstName": "Ana", "Email": "a@x.com", "InvoiceNumber": "  "}, EntityCustomer},
		{"product with price", map[string]string{"Name": "Widget", "UnitPrice": "1"}, EntityProduct},
		{"product with stock", map[string]string{"Name": "Widget", "Stock": "3"}, EntityProduct},
		{"product name only", map[string]string{"Name": "Widget", "Description": "x"}, EntityUnknown},
		{"product with email", map[string]string{"Name": "Widget", "UnitPrice": "1", "Email": "a@x.com"}, EntityUnknown},
		{"sale by email", map[string]string{"InvoiceNumber": "INV-1", "ClientEmail": "a@x.com"}, EntitySale},
		{"sale by id", map[string]string{"InvoiceNumber": "INV-1", "ClientId": "4"}, EntitySale},
		{"sale with product id is an item candidate", map[string]string{"InvoiceNumber": "INV-1", "ClientId": "4", "ProductId": "1"}, EntityUnknown},
		{"sale wins over item when client present", map[string]string{"InvoiceNumber": "INV-1", "ClientEmail": "a@x.com", "ProductName": "W", "Quantity": "1"}, EntitySale},
		{"item by invoice and name", map[string]string{"InvoiceNumber": "INV-1", "ProductName": "W", "Quantity": "1"}, EntitySaleItem},
		{"item by ids", map[string]string{"SalesId": "3", "ProductId": "1", "Quantity": "1"}, EntitySaleItem},
		{"item with unit price", map[string]string{"SalesId": "3", "ProductId": "1", "Quantity": "1", "UnitPrice": "2"}, EntitySaleItem},
		{"item without quantity", map[string]string{"SalesId": "3", "ProductId": "1"}, EntityUnknown},
		{"item without product", map[string]string{"SalesId": "3", "Quantity": "1"}, EntityUnknown},
		{"customer beats product", map[string]string{"FirstName": "Ana", "Email": "a@x.com", "Name": "W", "Stock": "1"}, EntityCustomer},
		{"empty", map[string]string{}, EntityUnknown},
		{"unrecognised columns", map[string]string{"Color": "blue"}, EntityUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(row(tt.cells)); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyAll_PreservesOrder(t *testing.T) {
	rows := []sheet.Row{
		sheet.NewRow(2, map[string]string{"Name": "W", "Stock": "1"}),
		sheet.NewRow(3, map[string]string{"Color": "blue"}),
		sheet.NewRow(4, map[string]string{"FirstName": "Ana", "Email": "a@x.com"}),
	}
	got := ClassifyAll(rows)
	want := []EntityType{EntityProduct, EntityUnknown, EntityCustomer}
	for i, cr := range got {
		if cr.Entity != want[i] || cr.Number != rows[i].Number {
			t.Errorf("got[%d] = %s row %d, want %s row %d", i, cr.Entity, cr.Number, want[i], rows[i].Number)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		entity     EntityType
		cells      map[string]string
		wantFields []string
	}{
		{"valid customer", EntityCustomer, map[string]string{"FirstName": "Ana", "LastName": "Ruiz", "Email": "a@x.com"}, nil},
		{"customer missing names", EntityCustomer, map[string]string{"Email": "a@x.com"}, []string{ColFirstName, ColLastName}},
		{"customer bad email", EntityCustomer, map[string]string{"FirstName": "A", "LastName": "B", "Email": "a@"}, []string{ColEmail}},
		{"valid product", EntityProduct, map[string]string{"Name": "W", "UnitPrice": "$1,200.50", "Stock": "4"}, nil},
		{"product negative price", EntityProduct, map[string]string{"Name": "W", "UnitPrice": "(5.00)"}, []string{ColUnitPrice}},
		{"product fractional stock", EntityProduct, map[string]string{"Name": "W", "Stock": "2.5"}, []string{ColStock}},
		{"product negative stock", EntityProduct, map[string]string{"Name": "W", "Stock": "-1"}, []string{ColStock}},
		{"product bad category", EntityProduct, map[string]string{"Name": "W", "Stock": "1", "CategoryId": "x"}, []string{ColCategoryID}},
		{"valid sale", EntitySale, map[string]string{"InvoiceNumber": "I", "Subtotal": "1", "Total": "1.19"}, nil},
		{"sale missing totals", EntitySale, map[string]string{"InvoiceNumber": "I"}, []string{ColSubtotal, ColTotal}},
		{"sale bad date", EntitySale, map[string]string{"InvoiceNumber": "I", "Subtotal": "1", "Total": "1", "SaleDate": "someday"}, []string{ColSaleDate}},
		{"sale bad tax rate defaults", EntitySale, map[string]string{"InvoiceNumber": "I", "Subtotal": "1", "Total": "1", "TaxRate": "high"}, nil},
		{"valid item", EntitySaleItem, map[string]string{"Quantity": "2", "UnitPrice": "3"}, nil},
		{"item zero quantity", EntitySaleItem, map[string]string{"Quantity": "0"}, []string{ColQuantity}},
		{"item bad price", EntitySaleItem, map[string]string{"Quantity": "1", "UnitPrice": "free"}, []string{ColUnitPrice}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(row(tt.cells), tt.entity)
			if len(errs) != len(tt.wantFields) {
				t.Fatalf("Validate() = %v, want fields %v", errs, tt.wantFields)
			}
			for i, e := range errs {
				if e.Field != tt.wantFields[i] || e.Kind != KindField || e.RowNumber != 2 {
					t.Errorf("errs[%d] = %+v, want field %s", i, e, tt.wantFields[i])
				}
			}
		})
	}
}

func TestValidate_ProductNameLength(t *testing.T) {
	long := make([]rune, MaxProductNameLen+1)
	for i := range long {
		long[i] = 'é'
	}
	errs := Validate(row(map[string]string{"Name": string(long), "Stock": "1"}), EntityProduct)
	if len(errs) != 1 || errs[0].Field != ColName {
		t.Errorf("Validate() = %v, want one Name error", errs)
	}

	ok := Validate(row(map[string]string{"Name": string(long[:MaxProductNameLen]), "Stock": "1"}), EntityProduct)
	if len(ok) != 0 {
		t.Errorf("name of exactly %d runes rejected: %v", MaxProductNameLen, ok)
	}
}

func TestValidate_UnknownEntity(t *testing.T) {
	errs := Validate(row(map[string]string{"Color": "blue"}), EntityUnknown)
	if len(errs) != 1 || errs[0].Kind != KindDetection {
		t.Errorf("Validate(Unknown) = %v", errs)
	}
}
