// Package spanstate holds the consumer-side span-name table: the
// mapping from LocalSpanId to display name used to annotate Enter
// and Exit records (spec §3, §4.5). It is owned exclusively by the
// ingest consumer; no locking is needed per spec §5.
package spanstate

import "github.com/auxoncorp/modality-tracing-go/pkg/types"

// Table maps LocalSpanId to the span's display name.
type Table struct {
	names map[types.LocalSpanId]string
}

// New builds an empty Table.
func New() *Table {
	return &Table{names: make(map[types.LocalSpanId]string)}
}

// Set records name for id, populated on NewSpan.
func (t *Table) Set(id types.LocalSpanId, name string) {
	t.names[id] = name
}

// Lookup returns the stored name for id, if any.
func (t *Table) Lookup(id types.LocalSpanId) (string, bool) {
	name, ok := t.names[id]
	return name, ok
}

// Remove erases id's entry, done on Close.
func (t *Table) Remove(id types.LocalSpanId) {
	delete(t.names, id)
}

// Rename copies old's entry to new, done on IdChange.
func (t *Table) Rename(old, new types.LocalSpanId) {
	if name, ok := t.names[old]; ok {
		t.names[new] = name
	}
}
