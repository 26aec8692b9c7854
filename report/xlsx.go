// Package report writes optional debug artifacts of a preprocessing run: a
// spreadsheet with the first rows of the output and Q-Q plots of the
// distributions used to replace outliers.
package report

import (
	"fmt"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/YuminosukeSato/listingprep/core/frame"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
)

// SheetName is the worksheet the sample is written to.
const SheetName = "Sheet1"

// WriteSampleXLSX writes the header and the first rows rows of df to path.
// Missing cells are left empty.
func WriteSampleXLSX(df *frame.Frame, path string, rows int) (err error) {
	if rows <= 0 || rows > df.NumRows() {
		rows = df.NumRows()
	}
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for j, col := range df.Columns() {
		cell, err := excelize.CoordinatesToCellName(j+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, col.Name()); err != nil {
			return errors.Wrapf(err, "writing header %s", col.Name())
		}
		for i := 0; i < rows; i++ {
			v := cellValue(col.Value(i))
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return errors.Wrapf(err, "writing %s row %d", col.Name(), i)
			}
		}
	}
	return f.SaveAs(path)
}

func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsInf(x, 0) {
			return fmt.Sprint(x)
		}
		return x
	case string, time.Time, bool:
		return x
	}
	return fmt.Sprint(v)
}
