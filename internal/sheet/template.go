package sheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// TemplateColumn describes one header of an import template.
type TemplateColumn struct {
	Name        string
	Group       string // record type the column belongs to
	Description string
	Example     string
}

// Template describes a blank import workbook.
type Template struct {
	SheetName string
	Title     string
	Notes     []string
	Columns   []TemplateColumn
}

// WriteTemplate writes an xlsx workbook with a styled header row on the data
// sheet and an Instructions sheet listing every column.
func WriteTemplate(w io.Writer, tpl Template) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := tpl.SheetName
	if sheetName == "" {
		sheetName = "Import"
	}
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, col := range tpl.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, col.Name); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return err
		}
		colName, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, colName, colName, 18); err != nil {
			return err
		}
	}

	if err := writeInstructions(f, tpl); err != nil {
		return fmt.Errorf("instructions sheet: %w", err)
	}

	idx, err := f.GetSheetIndex(sheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeInstructions(f *excelize.File, tpl Template) error {
	const sheet = "Instructions"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	rowNum := 1
	put := func(values ...any) error {
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		rowNum++
		return f.SetSheetRow(sheet, cell, &values)
	}

	if tpl.Title != "" {
		if err := put(tpl.Title); err != nil {
			return err
		}
		rowNum++
	}
	for _, note := range tpl.Notes {
		if err := put(note); err != nil {
			return err
		}
	}
	if len(tpl.Notes) > 0 {
		rowNum++
	}

	if err := put("Column", "Record", "Description", "Example"); err != nil {
		return err
	}
	for _, col := range tpl.Columns {
		if err := put(col.Name, col.Group, col.Description, col.Example); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 18); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "B", 12); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "C", "C", 70)
}
