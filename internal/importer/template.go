package importer

import "github.com/JonMunkholm/salesimport/internal/sheet"

// Template describes the blank workbook users fill in. Every recognised
// header appears once, in Columns order.
func Template() sheet.Template {
	cols := make([]sheet.TemplateColumn, len(Columns))
	for i, c := range Columns {
		cols[i] = sheet.TemplateColumn{
			Name:        c.Name,
			Group:       string(c.Entity),
			Description: c.Description,
			Example:     c.Example,
		}
	}
	return sheet.Template{
		SheetName: "Import",
		Title:     "Sales import",
		Notes: []string{
			"Put one customer, product, sale or sale item on each row; leave the other columns blank.",
			"Rows are matched to existing records by Email, Name, InvoiceNumber, or sale and product.",
			"Customers and products are imported before the sales and sale items that refer to them.",
		},
		Columns: cols,
	}
}
