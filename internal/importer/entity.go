// Package importer reconciles a mixed spreadsheet of customers, products,
// sales and sale line-items against the record store.
//
// # Pipeline
//
// Every data row is classified once by the fields it carries. Rows are then
// processed in four phases, always in this order:
//
//	Customers -> Products -> Sales -> SaleItems
//
// Within a phase rows run strictly in sheet order. Each row is validated,
// matched against the store by natural key (email, product name, invoice
// number, or the sale/product pair for items) and then updated or inserted.
// The surrogate ID of every committed row is recorded in a
// [ResolutionContext] so that later rows, in the same or a later phase, can
// reference it by natural key.
//
// # Failures
//
// Row-scoped problems (unclassifiable rows, invalid fields, unresolved
// references, a failed write) are recorded as [ImportError] values and the
// run moves on to the next row. Only a failure that prevents the run as a
// whole (unreadable sheet, failed phase flush, cancellation) ends it early,
// reported as a single System error with row number 0.
package importer

// EntityType is the record type a row was classified as.
type EntityType string

const (
	EntityCustomer EntityType = "Customer"
	EntityProduct  EntityType = "Product"
	EntitySale     EntityType = "Sale"
	EntitySaleItem EntityType = "SaleItem"
	EntityUnknown  EntityType = "Unknown"
)

// Recognised column names. Header matching is case-insensitive.
const (
	ColFirstName   = "FirstName"
	ColLastName    = "LastName"
	ColEmail       = "Email"
	ColPhoneNumber = "PhoneNumber"
	ColAddress     = "Address"
	ColRole        = "Role"

	ColName        = "Name"
	ColDescription = "Description"
	ColUnitPrice   = "UnitPrice"
	ColStock       = "Stock"
	ColCategoryID  = "CategoryId"

	ColInvoiceNumber = "InvoiceNumber"
	ColSaleDate      = "SaleDate"
	ColClientID      = "ClientId"
	ColClientEmail   = "ClientEmail"
	ColSubtotal      = "Subtotal"
	ColTaxRate       = "TaxRate"
	ColTotal         = "Total"
	ColPaymentMethod = "PaymentMethod"
	ColIsPaid        = "IsPaid"
	ColNotes         = "Notes"

	ColSalesID     = "SalesId"
	ColProductID   = "ProductId"
	ColProductName = "ProductName"
	ColQuantity    = "Quantity"
)

// Column documents one recognised header.
type Column struct {
	Name        string
	Entity      EntityType
	Description string
	Example     string
}

// Columns lists every recognised header once, grouped by the record type
// that first uses it.
var Columns = []Column{
	{ColFirstName, EntityCustomer, "Customer first name (required)", "Ana"},
	{ColLastName, EntityCustomer, "Customer last name (required)", "Ruiz"},
	{ColEmail, EntityCustomer, "Customer email, used to match existing customers (required)", "ana@example.com"},
	{ColPhoneNumber, EntityCustomer, "Customer phone number", "+57 300 000 0000"},
	{ColAddress, EntityCustomer, "Customer postal address", "Calle 1 # 2-3"},
	{ColRole, EntityCustomer, "Customer role (default Client)", "Client"},

	{ColName, EntityProduct, "Product name, used to match existing products (required, max 150 characters)", "Widget"},
	{ColDescription, EntityProduct, "Product description", "Blue widget"},
	{ColUnitPrice, EntityProduct, "Product unit price, or line unit price on sale items (non-negative decimal)", "12.50"},
	{ColStock, EntityProduct, "Units in stock (non-negative integer)", "40"},
	{ColCategoryID, EntityProduct, "Category id (integer)", "3"},

	{ColInvoiceNumber, EntitySale, "Invoice number, used to match existing sales; on sale items it names the parent sale", "INV-1001"},
	{ColSaleDate, EntitySale, "Sale date (YYYY-MM-DD or similar, default import date)", "2024-01-15"},
	{ColClientID, EntitySale, "Customer id of the buyer", "12"},
	{ColClientEmail, EntitySale, "Customer email of the buyer, used when ClientId is absent", "ana@example.com"},
	{ColSubtotal, EntitySale, "Sale subtotal (required decimal)", "100.00"},
	{ColTaxRate, EntitySale, "Tax rate as a fraction (default 0.19)", "0.19"},
	{ColTotal, EntitySale, "Sale total (required decimal)", "119.00"},
	{ColPaymentMethod, EntitySale, "Payment method (default Cash)", "Card"},
	{ColIsPaid, EntitySale, "true or 1 when paid", "true"},
	{ColNotes, EntitySale, "Free-form notes", ""},

	{ColSalesID, EntitySaleItem, "Sale id of the parent sale", "7"},
	{ColProductID, EntitySaleItem, "Product id of the line product", "4"},
	{ColProductName, EntitySaleItem, "Product name, used when ProductId is absent", "Widget"},
	{ColQuantity, EntitySaleItem, "Units sold (positive integer)", "2"},
}
