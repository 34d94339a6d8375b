package columnar

import (
	"time"

	"github.com/ajitpratap0/jvparquet/pkg/errors"
	jsonpool "github.com/ajitpratap0/jvparquet/pkg/json"
	"github.com/ajitpratap0/jvparquet/pkg/schema"
)

// SegmentInfo describes one committed segment
type SegmentInfo struct {
	Key       string    `json:"key"`
	Location  string    `json:"location"`
	Rows      int       `json:"rows"`
	Bytes     int64     `json:"bytes"`
	Columns   []string  `json:"columns"`
	Codec     string    `json:"codec"`
	CreatedAt time.Time `json:"created_at"`
}

// Manifest lists every segment committed for one record spec
type Manifest struct {
	RecordSpec   schema.RecordSpec `json:"record_spec"`
	Title        string            `json:"title,omitempty"`
	IndexColumns []string          `json:"index_columns"`
	TotalRows    int               `json:"total_rows"`
	Segments     []SegmentInfo     `json:"segments"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func newManifest(reg *schema.Registry, spec schema.RecordSpec, segments []SegmentInfo, now time.Time) *Manifest {
	m := &Manifest{
		RecordSpec:   spec,
		IndexColumns: reg.IndexColumns(spec),
		Segments:     append([]SegmentInfo(nil), segments...),
		UpdatedAt:    now,
	}
	if m.IndexColumns == nil {
		m.IndexColumns = []string{}
	}
	if entry, ok := reg.Lookup(spec); ok {
		m.Title = entry.Title()
	}
	for _, s := range segments {
		m.TotalRows += s.Rows
	}
	return m
}

// Encode renders the manifest as indented JSON
func (m *Manifest) Encode() ([]byte, error) {
	data, err := jsonpool.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode manifest")
	}
	return data, nil
}

// DecodeManifest parses a manifest written by Close
func DecodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := jsonpool.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to decode manifest")
	}
	return &m, nil
}
