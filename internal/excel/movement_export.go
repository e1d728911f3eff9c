package excel

import (
	"fmt"
	"io"

	"stockledger/internal/domain"

	"github.com/xuri/excelize/v2"
)

const movementSheet = "Stock Movements"

var movementHeader = []any{
	"Date", "Item", "Reference Type", "Reference", "Line",
	"Movement", "Quantity", "Before", "After", "Notes", "Created By",
}

// WriteMovements renders movements as a single-sheet workbook.
func WriteMovements(w io.Writer, movements []domain.StockMovement) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", movementSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := file.SetSheetRow(movementSheet, "A1", &movementHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, mv := range movements {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row %d cell: %w", i+2, err)
		}
		notes := ""
		if mv.Notes != nil {
			notes = *mv.Notes
		}
		row := []any{
			mv.CreatedAt.Format("2006-01-02 15:04:05"),
			mv.ItemName,
			string(mv.RefType),
			mv.RefNumber,
			mv.LineNo,
			string(mv.MovementType),
			mv.Quantity,
			mv.BeforeStock,
			mv.AfterStock,
			notes,
			mv.CreatedBy,
		}
		if err := file.SetSheetRow(movementSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := file.SetColWidth(movementSheet, "A", "A", 20); err != nil {
		return fmt.Errorf("size columns: %w", err)
	}
	if err := file.SetColWidth(movementSheet, "B", "B", 28); err != nil {
		return fmt.Errorf("size columns: %w", err)
	}
	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
