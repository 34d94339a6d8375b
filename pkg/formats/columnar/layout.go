package columnar

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/jvparquet/pkg/models"
	"github.com/ajitpratap0/jvparquet/pkg/schema"
)

// Parquet key/value metadata written on every segment
const (
	MetaRecordSpec   = "jv.record_spec"
	MetaIndexColumns = "jv.index_columns"
)

const manifestName = "_manifest.json"

// column is one planned output column
type column struct {
	name       string
	typ        schema.ColumnType
	registered bool
}

// planColumns returns the union of field names in records. Index columns
// come first in registered order, then other registered columns in schema
// order, then unregistered names by first appearance; names first seen on
// the same record are sorted.
func planColumns(reg *schema.Registry, spec schema.RecordSpec, records []models.ParsedRecord) []column {
	seen := make(map[string]struct{})
	var unregistered []string
	var registered []string

	entry, hasEntry := reg.Lookup(spec)
	for _, rec := range records {
		var fresh []string
		for name := range rec.Fields {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			fresh = append(fresh, name)
		}
		sort.Strings(fresh)
		for _, name := range fresh {
			if hasEntry {
				if _, ok := entry.Type(name); ok {
					registered = append(registered, name)
					continue
				}
			}
			unregistered = append(unregistered, name)
		}
	}

	index := make(map[string]int)
	for i, name := range reg.IndexColumns(spec) {
		index[name] = i
	}

	sort.SliceStable(registered, func(i, j int) bool {
		ii, iIdx := index[registered[i]]
		ji, jIdx := index[registered[j]]
		switch {
		case iIdx && jIdx:
			return ii < ji
		case iIdx != jIdx:
			return iIdx
		}
		pi, _ := entry.Position(registered[i])
		pj, _ := entry.Position(registered[j])
		return pi < pj
	})

	cols := make([]column, 0, len(registered)+len(unregistered))
	for _, name := range registered {
		cols = append(cols, column{name: name, typ: reg.ResolveType(spec, name), registered: true})
	}
	for _, name := range unregistered {
		cols = append(cols, column{name: name, typ: reg.ResolveType(spec, name)})
	}
	return cols
}

// arrowType maps a column type to its Arrow storage type
func arrowType(t schema.ColumnType) arrow.DataType {
	if t == schema.Integer {
		return arrow.PrimitiveTypes.Int64
	}
	return arrow.BinaryTypes.String
}

func arrowSchema(spec schema.RecordSpec, cols []column, indexColumns []string) *arrow.Schema {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = arrow.Field{Name: c.name, Type: arrowType(c.typ), Nullable: true}
	}
	md := arrow.NewMetadata(
		[]string{MetaRecordSpec, MetaIndexColumns},
		[]string{spec.String(), strings.Join(indexColumns, ",")},
	)
	return arrow.NewSchema(fields, &md)
}

// segmentKey names the seq-th segment of spec. With date partitioning the
// make date of first decides the directory.
func (c *WriterConfig) segmentKey(spec schema.RecordSpec, first models.FieldMap, seq int) string {
	name := fmt.Sprintf("%s-%06d.parquet", c.FilePrefix, seq)
	if c.RunID != "" {
		name = fmt.Sprintf("%s-%s-%06d.parquet", c.FilePrefix, c.RunID, seq)
	}
	if !c.PartitionByMakeDate {
		return path.Join(spec.String(), name)
	}
	return path.Join(spec.String(),
		"year="+partitionValue(first, "head_MakeDate_Year"),
		"month="+partitionValue(first, "head_MakeDate_Month"),
		"day="+partitionValue(first, "head_MakeDate_Day"),
		name,
	)
}

func manifestKey(spec schema.RecordSpec) string {
	return path.Join(spec.String(), manifestName)
}

// partitionValue returns the digits of field, or "unknown" when the field
// is absent, blank, or not numeric
func partitionValue(fields models.FieldMap, field string) string {
	text, ok := fields.Get(field).Text()
	if !ok {
		return "unknown"
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "unknown"
	}
	for i := 0; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			return "unknown"
		}
	}
	return text
}
