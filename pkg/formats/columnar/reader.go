package columnar

import (
	"context"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/jvparquet/pkg/errors"
	"github.com/ajitpratap0/jvparquet/pkg/models"
	"github.com/ajitpratap0/jvparquet/pkg/schema"
)

// ColumnInfo describes one column of a segment
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SegmentContents is what ReadSegment returns: the segment's metadata and
// its leading rows
type SegmentContents struct {
	RecordSpec   schema.RecordSpec         `json:"record_spec"`
	IndexColumns []string                  `json:"index_columns"`
	Columns      []ColumnInfo              `json:"columns"`
	TotalRows    int64                     `json:"total_rows"`
	Rows         []map[string]models.Value `json:"-"`
}

// ReadSegment opens a local segment and returns its columns plus at most
// maxRows rows; maxRows <= 0 reads every row.
func ReadSegment(ctx context.Context, path string, maxRows int) (*SegmentContents, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open segment").
			WithDetail("path", path)
	}
	defer rdr.Close()

	out := &SegmentContents{TotalRows: rdr.NumRows()}
	if kv := rdr.MetaData().KeyValueMetadata(); kv != nil {
		if v := kv.FindValue(MetaRecordSpec); v != nil {
			out.RecordSpec = schema.RecordSpec(*v)
		}
		if v := kv.FindValue(MetaIndexColumns); v != nil && *v != "" {
			out.IndexColumns = strings.Split(*v, ",")
		}
	}

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: 1024}, memory.NewGoAllocator())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create Arrow reader").
			WithDetail("path", path)
	}

	sc, err := fr.Schema()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read segment schema").
			WithDetail("path", path)
	}
	for _, f := range sc.Fields() {
		out.Columns = append(out.Columns, ColumnInfo{Name: f.Name, Type: f.Type.String()})
	}

	rr, err := fr.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read segment rows").
			WithDetail("path", path)
	}
	defer rr.Release()

	for rr.Next() {
		rec := rr.Record()
		for row := 0; row < int(rec.NumRows()); row++ {
			if maxRows > 0 && len(out.Rows) >= maxRows {
				return out, nil
			}
			out.Rows = append(out.Rows, rowValues(rec, row))
		}
	}
	// the record reader reports io.EOF once the last batch is consumed
	if err := rr.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read segment rows").
			WithDetail("path", path)
	}
	return out, nil
}

func rowValues(rec arrow.Record, row int) map[string]models.Value {
	values := make(map[string]models.Value, rec.NumCols())
	for i, f := range rec.Schema().Fields() {
		values[f.Name] = columnValue(rec.Column(i), row)
	}
	return values
}

func columnValue(col arrow.Array, row int) models.Value {
	if col.IsNull(row) {
		return models.Absent()
	}
	switch c := col.(type) {
	case *array.Int64:
		return models.IntegerValue(c.Value(row))
	case *array.String:
		return models.TextValue(c.Value(row))
	case *array.LargeString:
		return models.TextValue(c.Value(row))
	default:
		return models.TextValue(c.ValueStr(row))
	}
}
