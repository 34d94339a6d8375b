package columnar

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/jvparquet/pkg/errors"
	"github.com/ajitpratap0/jvparquet/pkg/metrics"
	"github.com/ajitpratap0/jvparquet/pkg/models"
	"github.com/ajitpratap0/jvparquet/pkg/schema"
	"github.com/ajitpratap0/jvparquet/pkg/storage"
)

func hnRecord(num, name string) models.ParsedRecord {
	return models.NewParsedRecord("HN", models.FieldsFromStrings(map[string]string{
		"head_RecordSpec":     "HN",
		"head_DataKubun":      "1",
		"head_MakeDate_Year":  "2024",
		"head_MakeDate_Month": "01",
		"head_MakeDate_Day":   "06",
		"HansyokuNum":         num,
		"KettoNum":            "2002100816",
		"Bamei":               name,
		"BirthYear":           "2002",
	}))
}

func newTestWriter(t *testing.T, cfg *WriterConfig, opts ...Option) (*ParquetWriter, string) {
	t.Helper()
	root := t.TempDir()
	sink, err := storage.NewLocalSink(root, zaptest.NewLogger(t))
	require.NoError(t, err)

	alloc := memory.NewCheckedAllocator(memory.NewGoAllocator())
	t.Cleanup(func() { alloc.AssertSize(t, 0) })

	opts = append([]Option{WithAllocator(alloc)}, opts...)
	w, err := NewParquetWriter(schema.Default(), sink, cfg, zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	return w, root
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, p)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

// counterValue returns the counter named name whose label matches
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabel(m.GetLabel(), label, value) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(pairs []*dto.LabelPair, name, value string) bool {
	for _, p := range pairs {
		if p.GetName() == name && p.GetValue() == value {
			return true
		}
	}
	return false
}

func TestParquetWriter_RoundTrip(t *testing.T) {
	w, root := newTestWriter(t, nil)
	ctx := context.Background()

	records := []models.ParsedRecord{
		hnRecord("0001234567", "ディープインパクト　　　　　"),
		hnRecord("0001234568", "キングカメハメハ　　　　　　"),
	}
	require.NoError(t, w.WriteBatch(ctx, "HN", records))

	files := listFiles(t, root)
	require.Equal(t, []string{"HN/year=2024/month=01/day=06/data-000001.parquet"}, files)

	got, err := ReadSegment(ctx, filepath.Join(root, files[0]), 0)
	require.NoError(t, err)
	assert.Equal(t, schema.RecordSpec("HN"), got.RecordSpec)
	assert.Equal(t, []string{"HansyokuNum"}, got.IndexColumns)
	assert.Equal(t, int64(2), got.TotalRows)
	require.Len(t, got.Rows, 2)

	assert.Equal(t, "HansyokuNum", got.Columns[0].Name)
	assert.Equal(t, models.TextValue("0001234567"), got.Rows[0]["HansyokuNum"])
	assert.Equal(t, models.TextValue("ディープインパクト　　　　　"), got.Rows[0]["Bamei"])
	assert.Equal(t, models.TextValue("キングカメハメハ　　　　　　"), got.Rows[1]["Bamei"])
	assert.Equal(t, models.IntegerValue(2002), got.Rows[1]["BirthYear"])
	assert.Equal(t, models.IntegerValue(1), got.Rows[0]["head_MakeDate_Month"])

	types := map[string]string{}
	for _, c := range got.Columns {
		types[c.Name] = c.Type
	}
	assert.Equal(t, "int64", types["BirthYear"])
	assert.Equal(t, "utf8", types["Bamei"])
	assert.Equal(t, "utf8", types["KettoNum"])

	segs := w.Segments("HN")
	require.Len(t, segs, 1)
	assert.Equal(t, 2, segs[0].Rows)
	assert.Equal(t, CodecSnappy, segs[0].Codec)
	assert.Greater(t, segs[0].Bytes, int64(0))
}

func TestParquetWriter_ColumnOrder(t *testing.T) {
	rec := hnRecord("1", "A")
	rec.Fields["Zeta_Note"] = models.Raw("x")
	rec.Fields["Extra_Odds"] = models.Raw("0125")
	second := hnRecord("2", "B")
	second.Fields["Alpha"] = models.Raw("y")

	cols := planColumns(schema.Default(), "HN", []models.ParsedRecord{rec, second})
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	assert.Equal(t, []string{
		"HansyokuNum",
		"head_RecordSpec", "head_DataKubun", "head_MakeDate_Year", "head_MakeDate_Month", "head_MakeDate_Day",
		"KettoNum", "Bamei", "BirthYear",
		"Extra_Odds", "Zeta_Note", "Alpha",
	}, names)

	byName := map[string]column{}
	for _, c := range cols {
		byName[c.name] = c
	}
	assert.Equal(t, schema.Integer, byName["Extra_Odds"].typ)
	assert.False(t, byName["Extra_Odds"].registered)
	assert.Equal(t, schema.Text, byName["Alpha"].typ)
}

func TestParquetWriter_UnionOfFields(t *testing.T) {
	w, root := newTestWriter(t, nil)
	ctx := context.Background()

	first := hnRecord("1", "A")
	delete(first.Fields, "Bamei")
	second := hnRecord("2", "B")
	second.Fields["Extra_Odds"] = models.Raw("0125")

	require.NoError(t, w.WriteBatch(ctx, "HN", []models.ParsedRecord{first, second}))

	files := listFiles(t, root)
	require.Len(t, files, 1)
	got, err := ReadSegment(ctx, filepath.Join(root, files[0]), 0)
	require.NoError(t, err)
	require.Len(t, got.Rows, 2)

	assert.True(t, got.Rows[0]["Bamei"].IsAbsent())
	assert.True(t, got.Rows[0]["Extra_Odds"].IsAbsent())
	assert.Equal(t, models.IntegerValue(125), got.Rows[1]["Extra_Odds"])
}

func TestParquetWriter_StrictConversionFailure(t *testing.T) {
	w, root := newTestWriter(t, nil)

	bad := hnRecord("1", "A")
	bad.Fields["BirthYear"] = models.Raw("20X2")
	err := w.WriteBatch(context.Background(), "HN", []models.ParsedRecord{hnRecord("2", "B"), bad})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConversion))

	var jerr *errors.Error
	require.True(t, errors.As(err, &jerr))
	assert.Equal(t, "BirthYear", jerr.Details["field"])
	assert.Equal(t, 1, jerr.Details["row"])

	assert.Empty(t, listFiles(t, root))
	assert.Empty(t, w.Segments("HN"))
}

func TestParquetWriter_LenientConversion(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	cfg := DefaultWriterConfig()
	cfg.CoercionPolicy = CoercionLenient
	w, root := newTestWriter(t, cfg, WithMetrics(collector))
	ctx := context.Background()

	bad := hnRecord("1", "A")
	bad.Fields["BirthYear"] = models.Raw("20X2")
	require.NoError(t, w.WriteBatch(ctx, "HN", []models.ParsedRecord{bad, hnRecord("2", "B")}))

	files := listFiles(t, root)
	require.Len(t, files, 1)
	got, err := ReadSegment(ctx, filepath.Join(root, files[0]), 0)
	require.NoError(t, err)
	assert.True(t, got.Rows[0]["BirthYear"].IsAbsent())
	assert.Equal(t, models.IntegerValue(2002), got.Rows[1]["BirthYear"])

	assert.Equal(t, float64(1), counterValue(t, reg, "jvparquet_coercion_failures_total", "field", "BirthYear"))
	assert.Equal(t, float64(2), counterValue(t, reg, "jvparquet_rows_written_total", "spec", "HN"))
}

func TestParquetWriter_PartitionUnknownDate(t *testing.T) {
	cfg := DefaultWriterConfig()
	cfg.RunID = "r1"
	w, root := newTestWriter(t, cfg)

	rec := hnRecord("1", "A")
	delete(rec.Fields, "head_MakeDate_Year")
	rec.Fields["head_MakeDate_Month"] = models.Raw("  ")
	require.NoError(t, w.WriteBatch(context.Background(), "HN", []models.ParsedRecord{rec}))
	require.NoError(t, w.WriteBatch(context.Background(), "HN", []models.ParsedRecord{hnRecord("2", "B")}))

	assert.ElementsMatch(t, []string{
		"HN/year=unknown/month=unknown/day=06/data-r1-000001.parquet",
		"HN/year=2024/month=01/day=06/data-r1-000002.parquet",
	}, listFiles(t, root))
}

func TestParquetWriter_NoPartitioning(t *testing.T) {
	cfg := DefaultWriterConfig()
	cfg.PartitionByMakeDate = false
	cfg.FilePrefix = "hn"
	cfg.Compression = CodecZstd
	w, root := newTestWriter(t, cfg)

	require.NoError(t, w.WriteBatch(context.Background(), "HN", []models.ParsedRecord{hnRecord("1", "A")}))
	assert.Equal(t, []string{"HN/hn-000001.parquet"}, listFiles(t, root))
	assert.Equal(t, CodecZstd, w.Segments("HN")[0].Codec)
}

func TestParquetWriter_CancelledContext(t *testing.T) {
	w, root := newTestWriter(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.WriteBatch(ctx, "HN", []models.ParsedRecord{hnRecord("1", "A")})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
	assert.Empty(t, listFiles(t, root))
	assert.Empty(t, w.Segments("HN"))
}

func TestParquetWriter_EmptyBatch(t *testing.T) {
	w, root := newTestWriter(t, nil)
	require.NoError(t, w.WriteBatch(context.Background(), "HN", nil))
	assert.Empty(t, listFiles(t, root))
	assert.Empty(t, w.Specs())
}

func TestParquetWriter_MixedSpecPanics(t *testing.T) {
	w, _ := newTestWriter(t, nil)
	other := models.NewParsedRecord("UM", models.FieldsFromStrings(map[string]string{"KettoNum": "1"}))

	assert.Panics(t, func() {
		_ = w.WriteBatch(context.Background(), "HN", []models.ParsedRecord{hnRecord("1", "A"), other})
	})
}

func TestParquetWriter_CloseWritesManifest(t *testing.T) {
	now := time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC)
	w, root := newTestWriter(t, nil, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, w.WriteBatch(ctx, "HN", []models.ParsedRecord{hnRecord("1", "A"), hnRecord("2", "B")}))
	require.NoError(t, w.WriteBatch(ctx, "HN", []models.ParsedRecord{hnRecord("3", "C")}))
	unknown := models.NewParsedRecord("ZZ", models.FieldsFromStrings(map[string]string{"Umaban": "01"}))
	require.NoError(t, w.WriteBatch(ctx, "ZZ", []models.ParsedRecord{unknown}))

	require.NoError(t, w.CloseAll(ctx))
	assert.Equal(t, []schema.RecordSpec{"HN", "ZZ"}, w.Specs())

	data, err := os.ReadFile(filepath.Join(root, "HN", manifestName))
	require.NoError(t, err)
	m, err := DecodeManifest(data)
	require.NoError(t, err)

	assert.Equal(t, schema.RecordSpec("HN"), m.RecordSpec)
	assert.Equal(t, "breeding horse master", m.Title)
	assert.Equal(t, []string{"HansyokuNum"}, m.IndexColumns)
	assert.Equal(t, 3, m.TotalRows)
	require.Len(t, m.Segments, 2)
	assert.True(t, strings.HasSuffix(m.Segments[1].Key, "data-000002.parquet"))
	assert.Equal(t, now, m.UpdatedAt)

	data, err = os.ReadFile(filepath.Join(root, "ZZ", manifestName))
	require.NoError(t, err)
	m, err = DecodeManifest(data)
	require.NoError(t, err)
	assert.Empty(t, m.IndexColumns)
	assert.Equal(t, []string{"Umaban"}, m.Segments[0].Columns)

	// unregistered specs still get inferred types
	got, err := ReadSegment(ctx, filepath.Join(root, m.Segments[0].Key), 0)
	require.NoError(t, err)
	assert.Equal(t, models.IntegerValue(1), got.Rows[0]["Umaban"])
}

func TestParquetWriter_CloseWithoutSegments(t *testing.T) {
	w, root := newTestWriter(t, nil)
	require.NoError(t, w.Close(context.Background(), "HN"))
	assert.Empty(t, listFiles(t, root))
}

func TestReadSegment_MaxRows(t *testing.T) {
	w, root := newTestWriter(t, nil)
	ctx := context.Background()
	require.NoError(t, w.WriteBatch(ctx, "HN", []models.ParsedRecord{
		hnRecord("1", "A"), hnRecord("2", "B"), hnRecord("3", "C"),
	}))

	files := listFiles(t, root)
	require.Len(t, files, 1)

	tests := []struct {
		maxRows int
		want    int
	}{
		{0, 3},
		{1, 1},
		{2, 2},
		{3, 3},
		{10, 3},
	}
	for _, tt := range tests {
		got, err := ReadSegment(ctx, filepath.Join(root, files[0]), tt.maxRows)
		require.NoError(t, err, "maxRows=%d", tt.maxRows)
		assert.Equal(t, int64(3), got.TotalRows)
		assert.Len(t, got.Rows, tt.want, "maxRows=%d", tt.maxRows)
	}

	_, err := ReadSegment(ctx, filepath.Join(root, "missing.parquet"), 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestParseCodec(t *testing.T) {
	for _, name := range []string{CodecSnappy, CodecGzip, CodecZstd, CodecLZ4, CodecBrotli, CodecNone, "", "ZSTD"} {
		_, err := ParseCodec(name, true)
		assert.NoError(t, err, name)
	}
	_, err := ParseCodec("lzo", true)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = ParseCodec("lzo", false)
	assert.NoError(t, err)
	assert.Equal(t, CodecNone, codecName(CodecGzip, false))
	assert.Equal(t, CodecSnappy, codecName("", true))
}

func TestWriterConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*WriterConfig)
	}{
		{name: "bad codec", mutate: func(c *WriterConfig) { c.Compression = "lzo" }},
		{name: "bad policy", mutate: func(c *WriterConfig) { c.CoercionPolicy = "loose" }},
		{name: "empty prefix", mutate: func(c *WriterConfig) { c.FilePrefix = "" }},
		{name: "prefix with slash", mutate: func(c *WriterConfig) { c.FilePrefix = "a/b" }},
		{name: "negative timeout", mutate: func(c *WriterConfig) { c.WriteTimeout = -time.Second }},
	}
	require.NoError(t, DefaultWriterConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultWriterConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestNewParquetWriter_RequiresSink(t *testing.T) {
	_, err := NewParquetWriter(nil, nil, nil, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
