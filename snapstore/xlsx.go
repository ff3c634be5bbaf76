package snapstore

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hazyhaar/rankwatch/rank"
)

// WriteXLSX renders a snapshot as a spreadsheet at path. This is a
// convenience export for sharing; the CSV written by the store remains
// the canonical record.
func WriteXLSX(path string, snap *rank.Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Ranking " + snap.Date.Format("2006-01-02")
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("snapstore: rename sheet: %w", err)
	}

	headers := []string{"Rank", "Brand", "Product", "Original", "Sale", "Discount %", "Flags", "Rating", "Link"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("snapstore: header cell: %w", err)
		}
	}

	for row, e := range snap.Entries {
		values := []interface{}{
			e.Rank, e.Brand, e.DisplayName,
			blankIfZero(e.OriginalPrice), e.SalePrice, blankIfZero(e.DiscountPct),
			strings.Join(e.Flags, ", "), e.Rating, e.URL,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("snapstore: cell %s: %w", cell, err)
			}
		}
	}

	// Product and link columns need room; the rest are narrow numbers.
	if err := f.SetColWidth(sheet, "C", "C", 48); err == nil {
		f.SetColWidth(sheet, "I", "I", 60)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("snapstore: save %s: %w", path, err)
	}
	return nil
}

// blankIfZero keeps unknown amounts out of the sheet instead of showing
// a misleading 0.
func blankIfZero(n int) interface{} {
	if n == 0 {
		return ""
	}
	return n
}
