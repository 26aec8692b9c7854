// Package arrowio converts frames to and from Apache Arrow records so the
// pipeline can sit between Arrow-speaking loaders and trainers.
//
// Float columns map to nullable float64 (NaN is written as null), string and
// object columns to utf8, and timestamp columns to UTC nanosecond timestamps.
// Object values are stringified, so composite entries do not survive a
// round trip.
package arrowio

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/YuminosukeSato/listingprep/core/frame"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
)

var timestampType = &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"}

// Schema returns the Arrow schema ToRecord produces for df.
func Schema(df *frame.Frame) *arrow.Schema {
	fields := make([]arrow.Field, 0, df.NumCols())
	for _, col := range df.Columns() {
		fields = append(fields, arrow.Field{Name: col.Name(), Type: dataType(col.Kind()), Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}

func dataType(k frame.Kind) arrow.DataType {
	switch k {
	case frame.KindFloat:
		return arrow.PrimitiveTypes.Float64
	case frame.KindTime:
		return timestampType
	default:
		return arrow.BinaryTypes.String
	}
}

// ToRecord builds a record from df. The caller owns the record and must
// Release it. A nil mem selects the Go allocator.
func ToRecord(df *frame.Frame, mem memory.Allocator) (arrow.Record, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	b := array.NewRecordBuilder(mem, Schema(df))
	defer b.Release()

	for j, col := range df.Columns() {
		switch fb := b.Field(j).(type) {
		case *array.Float64Builder:
			for _, v := range col.Floats() {
				if math.IsNaN(v) {
					fb.AppendNull()
				} else {
					fb.Append(v)
				}
			}
		case *array.TimestampBuilder:
			times, valid := col.Times()
			for i, t := range times {
				if !valid[i] {
					fb.AppendNull()
				} else {
					fb.Append(arrow.Timestamp(t.UnixNano()))
				}
			}
		case *array.StringBuilder:
			for i := 0; i < col.Len(); i++ {
				if s, ok := col.StringAt(i); ok {
					fb.Append(s)
				} else {
					fb.AppendNull()
				}
			}
		default:
			return nil, errors.NewValueError("arrowio.ToRecord", fmt.Sprintf("unsupported builder %T", fb))
		}
	}
	return b.NewRecord(), nil
}

// FromRecord converts one record into a frame.
func FromRecord(rec arrow.Record) (*frame.Frame, error) {
	return FromRecords(rec.Schema(), []arrow.Record{rec})
}

// FromRecords concatenates records sharing schema into one frame.
func FromRecords(schema *arrow.Schema, recs []arrow.Record) (*frame.Frame, error) {
	var rows int64
	for _, rec := range recs {
		rows += rec.NumRows()
	}
	cols := make([]*frame.Column, schema.NumFields())
	for j, field := range schema.Fields() {
		chunks := make([]arrow.Array, len(recs))
		for k, rec := range recs {
			chunks[k] = rec.Column(j)
		}
		col, err := column(field, chunks)
		if err != nil {
			return nil, err
		}
		cols[j] = col
	}
	return frame.NewWithRows(int(rows), cols...)
}

func column(field arrow.Field, chunks []arrow.Array) (*frame.Column, error) {
	switch field.Type.ID() {
	case arrow.FLOAT64, arrow.FLOAT32, arrow.INT64, arrow.INT32, arrow.BOOL:
		var vals []float64
		for _, arr := range chunks {
			for i := 0; i < arr.Len(); i++ {
				vals = append(vals, floatAt(arr, i))
			}
		}
		return frame.NewFloatColumn(field.Name, vals), nil

	case arrow.STRING:
		var vals []string
		var valid []bool
		for _, arr := range chunks {
			s := arr.(*array.String)
			for i := 0; i < s.Len(); i++ {
				vals = append(vals, strings.Clone(s.Value(i)))
				valid = append(valid, s.IsValid(i))
			}
		}
		return frame.NewStringColumn(field.Name, vals, valid), nil

	case arrow.TIMESTAMP:
		unit := field.Type.(*arrow.TimestampType).Unit
		var vals []time.Time
		var valid []bool
		for _, arr := range chunks {
			ts := arr.(*array.Timestamp)
			for i := 0; i < ts.Len(); i++ {
				if ts.IsNull(i) {
					vals = append(vals, time.Time{})
					valid = append(valid, false)
					continue
				}
				vals = append(vals, ts.Value(i).ToTime(unit))
				valid = append(valid, true)
			}
		}
		return frame.NewTimeColumn(field.Name, vals, valid), nil
	}
	return nil, errors.NewValueError("arrowio.FromRecords",
		fmt.Sprintf("column %s has unsupported type %s", field.Name, field.Type))
}

func floatAt(arr arrow.Array, i int) float64 {
	if arr.IsNull(i) {
		return math.NaN()
	}
	switch a := arr.(type) {
	case *array.Float64:
		return a.Value(i)
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Int64:
		return float64(a.Value(i))
	case *array.Int32:
		return float64(a.Value(i))
	case *array.Boolean:
		if a.Value(i) {
			return 1
		}
		return 0
	}
	return math.NaN()
}

// WriteIPC writes df as a single-record Arrow IPC stream.
func WriteIPC(w io.Writer, df *frame.Frame) error {
	mem := memory.NewGoAllocator()
	rec, err := ToRecord(df, mem)
	if err != nil {
		return err
	}
	defer rec.Release()

	iw := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err := iw.Write(rec); err != nil {
		_ = iw.Close()
		return errors.Wrap(err, "writing arrow record")
	}
	return iw.Close()
}

// ReadIPC reads every record of an Arrow IPC stream into one frame.
func ReadIPC(r io.Reader) (*frame.Frame, error) {
	rdr, err := ipc.NewReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, errors.Wrap(err, "opening arrow stream")
	}
	defer rdr.Release()

	var recs []arrow.Record
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := rdr.Err(); err != nil {
		return nil, errors.Wrap(err, "reading arrow stream")
	}
	return FromRecords(rdr.Schema(), recs)
}
