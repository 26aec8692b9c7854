package pipeline

import (
	"github.com/YuminosukeSato/listingprep/core/frame"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
)

// AssemblyContext carries the group outputs of one Transform into Reassemble.
// Nil frames are treated as empty groups.
type AssemblyContext struct {
	// Rows is the input row count. It is kept when every group is empty;
	// zero takes the count from the groups.
	Rows int

	Numeric     *frame.Frame
	DateSpecial *frame.Frame
	CommonDates *frame.Frame
	OneHot      *frame.Frame
	// OneHotNames lists the indicator columns produced by the encoder, in encoder order.
	OneHotNames []string
	Others      *frame.Frame
}

// Reassemble concatenates the groups as numeric, date-special, common dates,
// one-hot indicators, others, then sorts the columns by name. Numeric,
// date-special and indicator columns are forced back to float storage; a
// DataConversionWarning is emitted for every column that needed it.
func Reassemble(ctx AssemblyContext) (*frame.Frame, error) {
	var cols []*frame.Column

	for _, g := range []*frame.Frame{ctx.Numeric, ctx.DateSpecial} {
		c, err := numericColumns(g, nil)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c...)
	}
	cols = append(cols, columns(ctx.CommonDates)...)

	if len(ctx.OneHotNames) > 0 {
		if ctx.OneHot == nil {
			return nil, errors.NewInputShapeError("reassemble", nil, nil, ctx.OneHotNames)
		}
		c, err := numericColumns(ctx.OneHot, ctx.OneHotNames)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c...)
	}
	cols = append(cols, columns(ctx.Others)...)

	rows := ctx.Rows
	if rows == 0 && len(cols) > 0 {
		rows = cols[0].Len()
	}
	out, err := frame.NewWithRows(rows, cols...)
	if err != nil {
		return nil, errors.Wrap(err, "reassembling groups")
	}
	return out.SortedByName(), nil
}

func columns(g *frame.Frame) []*frame.Column {
	if g == nil {
		return nil
	}
	return g.Columns()
}

// numericColumns returns the named columns of g (all when names is nil) in float storage.
func numericColumns(g *frame.Frame, names []string) ([]*frame.Column, error) {
	if g == nil {
		return nil, nil
	}
	if names != nil {
		if missing := g.Missing(names); len(missing) > 0 {
			return nil, errors.NewInputShapeError("reassemble", nil, nil, missing)
		}
		sel, err := g.Select(names...)
		if err != nil {
			return nil, err
		}
		g = sel
	}
	out := make([]*frame.Column, 0, g.NumCols())
	for _, col := range g.Columns() {
		if col.IsNumeric() {
			out = append(out, col)
			continue
		}
		converted, lost := col.ToFloat()
		reason := "numeric column stored as " + col.Kind().String()
		if lost > 0 {
			reason += "; unparsable entries became missing"
		}
		errors.Warn(errors.NewDataConversionWarning(col.Name(), col.Kind().String(), frame.KindFloat.String(), reason))
		out = append(out, converted)
	}
	return out, nil
}
