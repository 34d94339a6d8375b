package schema

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Builder collects schema entries during startup. It is not safe for
// concurrent use; call Build once registration is complete.
type Builder struct {
	entries map[RecordSpec]*SchemaEntry
	logger  *zap.Logger
}

// NewBuilder creates an empty builder
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		entries: make(map[RecordSpec]*SchemaEntry),
		logger:  logger,
	}
}

// Register sets the entry for spec. A later registration replaces the
// earlier one entirely; columns are never merged.
func (b *Builder) Register(spec RecordSpec, entry *SchemaEntry) *Builder {
	if _, exists := b.entries[spec]; exists {
		b.logger.Debug("schema replaced",
			zap.String("record_spec", spec.String()),
			zap.Int("fields", entry.Len()))
	}
	b.entries[spec] = entry
	return b
}

// Build returns a read-only registry holding the registered entries
func (b *Builder) Build() *Registry {
	entries := make(map[RecordSpec]*SchemaEntry, len(b.entries))
	for spec, entry := range b.entries {
		entries[spec] = entry
	}

	b.logger.Info("schema registry built", zap.Int("record_specs", len(entries)))

	return &Registry{entries: entries}
}

// Registry answers column type and index questions per record spec. It is
// read-only and safe to share between goroutines without locking.
type Registry struct {
	entries map[RecordSpec]*SchemaEntry
}

// ResolveType returns the registered type of field for spec, falling back
// to InferType when spec or field is not registered.
func (r *Registry) ResolveType(spec RecordSpec, field string) ColumnType {
	if typ, ok := r.RegisteredType(spec, field); ok {
		return typ
	}
	return InferType(field)
}

// RegisteredType returns the explicit type of field, if any
func (r *Registry) RegisteredType(spec RecordSpec, field string) (ColumnType, bool) {
	entry, ok := r.entries[spec]
	if !ok {
		return 0, false
	}
	return entry.Type(field)
}

// IndexColumns returns spec's index columns, or nil when spec is unknown
func (r *Registry) IndexColumns(spec RecordSpec) []string {
	entry, ok := r.entries[spec]
	if !ok {
		return nil
	}
	return entry.IndexColumns()
}

// Lookup returns the entry registered for spec
func (r *Registry) Lookup(spec RecordSpec) (*SchemaEntry, bool) {
	entry, ok := r.entries[spec]
	return entry, ok
}

// Specs returns the registered record specs in sorted order
func (r *Registry) Specs() []RecordSpec {
	specs := make([]RecordSpec, 0, len(r.entries))
	for spec := range r.entries {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i] < specs[j] })
	return specs
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the shared registry of every built-in record type
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = RegisterDefinitions(NewBuilder(nil)).Build()
	})
	return defaultRegistry
}

// RegisterDefinitions adds every built-in record type to b
func RegisterDefinitions(b *Builder) *Builder {
	for _, d := range definitions {
		b.Register(d.spec, NewSchemaEntry(d.fields, d.index...).WithTitle(d.title))
	}
	return b
}
