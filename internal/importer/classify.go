package importer

import "github.com/JonMunkholm/salesimport/internal/sheet"

// ClassifiedRow is a row with the record type it was assigned.
type ClassifiedRow struct {
	sheet.Row
	Entity EntityType
}

// Classify assigns a record type from the set of populated columns. Types
// are tried in priority order (Customer, Product, Sale, SaleItem) and the
// first whose signature matches wins. A row matching none is Unknown.
func Classify(row sheet.Row) EntityType {
	for _, p := range phases {
		if p.Matches(row) {
			return p.Entity()
		}
	}
	return EntityUnknown
}

// ClassifyAll classifies every row, preserving sheet order.
func ClassifyAll(rows []sheet.Row) []ClassifiedRow {
	out := make([]ClassifiedRow, len(rows))
	for i, row := range rows {
		out[i] = ClassifiedRow{Row: row, Entity: Classify(row)}
	}
	return out
}

// Validate runs the field checks for entity that need no store access:
// required columns, formats and ranges. Reference checks happen during a
// run, once earlier phases have committed the records a row may point at.
func Validate(row sheet.Row, entity EntityType) []ImportError {
	for _, p := range phases {
		if p.Entity() == entity {
			return p.Validate(row)
		}
	}
	return []ImportError{detectionError(row.Number)}
}
