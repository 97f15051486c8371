package importer

import "fmt"

// ErrorKind classifies an ImportError.
type ErrorKind string

const (
	KindDetection ErrorKind = "Detection" // row could not be classified
	KindField     ErrorKind = "Field"     // a field failed required/format validation
	KindReference ErrorKind = "Reference" // a referenced record does not exist
	KindGeneral   ErrorKind = "General"   // persisting the row failed
	KindSystem    ErrorKind = "System"    // the run could not proceed
)

// Field names used for errors not tied to a column.
const (
	FieldDetection = "Detection"
	FieldGeneral   = "General"
	FieldSystem    = "System"
)

// ImportError describes one problem found during a run. It is informational:
// recording it never stops the run.
type ImportError struct {
	RowNumber int       `json:"rowNumber"`
	Field     string    `json:"field"`
	Message   string    `json:"message"`
	Kind      ErrorKind `json:"kind"`
}

func (e ImportError) String() string {
	if e.RowNumber == 0 {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("row %d: %s: %s", e.RowNumber, e.Field, e.Message)
}

func fieldError(row int, field, format string, args ...any) ImportError {
	return ImportError{
		RowNumber: row,
		Field:     field,
		Message:   fmt.Sprintf(format, args...),
		Kind:      KindField,
	}
}

func referenceError(row int, ref reference) ImportError {
	return ImportError{
		RowNumber: row,
		Field:     ref.idColumn,
		Message:   fmt.Sprintf("%s or %s is required and the referenced entity must exist", ref.idColumn, ref.keyColumn),
		Kind:      KindReference,
	}
}

func detectionError(row int) ImportError {
	return ImportError{
		RowNumber: row,
		Field:     FieldDetection,
		Message:   "could not determine record type (Customer, Product, Sale or SaleItem) from the populated columns",
		Kind:      KindDetection,
	}
}

func generalError(row int, msg string) ImportError {
	return ImportError{
		RowNumber: row,
		Field:     FieldGeneral,
		Message:   msg,
		Kind:      KindGeneral,
	}
}

// SystemError builds the run-level error entry reported with row number 0.
func SystemError(msg string) ImportError {
	return ImportError{
		Field:   FieldSystem,
		Message: msg,
		Kind:    KindSystem,
	}
}
