package arrowconv

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/quiver"
	"github.com/ajitpratap0/quiver/pkg/columnar"
	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/schema"
)

// ToRecordBatch wraps converted columns into an Arrow record batch. The
// batch shares the column buffers; the caller must Release it.
func ToRecordBatch(cols *quiver.Columns) (arrow.Record, error) {
	arrowSchema, err := ToArrowSchema(cols.Fields)
	if err != nil {
		return nil, err
	}
	arrays := make([]arrow.Array, 0, len(cols.Mappings))
	defer func() {
		for _, a := range arrays {
			a.Release()
		}
	}()
	for i := range cols.Mappings {
		arr, err := BuildArray(&cols.Mappings[i], cols.Buffers, cols.NumRows)
		if err != nil {
			return nil, err
		}
		arrays = append(arrays, arr)
	}
	return array.NewRecord(arrowSchema, arrays, int64(cols.NumRows)), nil
}

// FromRecordBatch extracts a record batch back into columns. The column
// fields are derived from the batch schema; wrap the result with
// quiver.FromColumns to get records back.
func FromRecordBatch(rec arrow.Record) (*quiver.Columns, error) {
	fields, err := FromArrowSchema(rec.Schema())
	if err != nil {
		return nil, err
	}
	if int64(int(rec.NumRows())) != rec.NumRows() {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"record batch of %d rows exceeds addressable size", rec.NumRows())
	}
	buffers := columnar.NewBuffers()
	mappings := make([]columnar.FieldMapping, 0, len(fields))
	for i := range fields {
		mapping, err := ExtractBuffers(rec.Column(i), &fields[i], buffers)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, mapping)
	}
	return &quiver.Columns{
		Fields:   fields,
		Mappings: mappings,
		Buffers:  buffers,
		NumRows:  int(rec.NumRows()),
	}, nil
}

// SerializeRecords traces, converts and wraps a slice of records in one
// call. Overrides, when non-nil, adjust the traced fields before
// compilation: declared types must be reachable from the traced ones by
// widening or date reinterpretation.
func SerializeRecords(records interface{}, overrides *schema.Schema) (arrow.Record, error) {
	fields, err := quiver.TraceFields(records)
	if err != nil {
		return nil, err
	}
	if overrides != nil {
		fields, err = overrides.ApplyOverrides(fields)
		if err != nil {
			return nil, err
		}
	}
	cols, err := quiver.ToColumns(records, fields)
	if err != nil {
		return nil, err
	}
	return ToRecordBatch(cols)
}

// DeserializeRecords reads a record batch back into out, a pointer to a
// slice of records.
func DeserializeRecords(rec arrow.Record, out interface{}) error {
	cols, err := FromRecordBatch(rec)
	if err != nil {
		return err
	}
	return quiver.FromColumns(cols, out)
}
