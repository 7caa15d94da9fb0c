package statetree

import (
	"sort"

	"github.com/gmliao/landsync/internal/patch"
	"github.com/gmliao/landsync/internal/snapshot"
)

// MappingItem is one entry of a mapping as seen by the policy evaluator.
// Exactly one of HasLeaf or Child applies.
type MappingItem struct {
	Key     string
	Leaf    snapshot.Value
	HasLeaf bool
	Child   *Node
}

// StructuralItem is one entry of a mapping as seen by StructuralValue,
// already reduced to a snapshot value regardless of shape.
type StructuralItem struct {
	Key   string
	Value snapshot.Value
}

// MappingView is the structural surface a reactive mapping exposes to its
// owning node: what the evaluator and dirty/clear/propagation machinery need,
// independent of the mapping's Go value type.
type MappingView interface {
	Entries() ([]MappingItem, error)
	StructuralEntries() ([]StructuralItem, error)
	// Children returns the nested nodes held by this mapping (nil for a
	// leaf-valued mapping), for recursive dirty/clear traversal.
	Children() []*Node
	attachContext(rec *patch.Recorder, parentPath snapshot.Path)
}

// ReactiveMap is a per-player (or otherwise string-keyed) mapping field.
// Writes mark the owning node dirty and, when a recorder is attached,
// append structural patches with the correct absolute path.
type ReactiveMap[V any] struct {
	items map[string]V

	leafOf  func(V) (snapshot.Value, error) // nil for node-valued maps
	childOf func(V) *Node                   // nil for leaf-valued maps

	owner *Node
	field string

	recorder   *patch.Recorder
	parentPath snapshot.Path
	hasContext bool
}

// NewLeafMap creates a mapping whose values are plain (non-tree) data,
// reduced to snapshot values by encode.
func NewLeafMap[V any](encode func(V) (snapshot.Value, error)) *ReactiveMap[V] {
	return &ReactiveMap[V]{leafOf: encode}
}

// NewNodeMap creates a mapping whose values are themselves nested state
// nodes. childOf extracts the *Node from a domain value (e.g. a struct that
// embeds *statetree.Node).
func NewNodeMap[V any](childOf func(V) *Node) *ReactiveMap[V] {
	return &ReactiveMap[V]{childOf: childOf}
}

// Bind associates this mapping with its owning node and field name. It must
// be called once, typically right after registering the field, so that
// writes can mark the owner dirty and (once a recorder is attached) record
// patches at the right path.
func (m *ReactiveMap[V]) Bind(owner *Node, field string) {
	m.owner = owner
	m.field = field
}

func (m *ReactiveMap[V]) attachContext(rec *patch.Recorder, parentPath snapshot.Path) {
	m.recorder = rec
	m.parentPath = parentPath
	m.hasContext = true
	if m.childOf != nil {
		for key, v := range m.items {
			m.childOf(v).propagate(rec, parentPath.Child(key))
		}
	}
}

// Get returns the value for key, if present.
func (m *ReactiveMap[V]) Get(key string) (V, bool) {
	v, ok := m.items[key]
	return v, ok
}

// Keys returns the mapping's keys, sorted ascending.
func (m *ReactiveMap[V]) Keys() []string {
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len reports the number of entries.
func (m *ReactiveMap[V]) Len() int { return len(m.items) }

// Set assigns v to key, marking the owner dirty and recording a set patch.
func (m *ReactiveMap[V]) Set(key string, v V) {
	if m.items == nil {
		m.items = make(map[string]V)
	}
	m.items[key] = v
	if m.childOf != nil && m.hasContext {
		m.childOf(v).propagate(m.recorder, m.parentPath.Child(key))
	}
	m.markDirty()
	m.recordSet(key, v)
}

// Delete removes key, marking the owner dirty and recording a delete patch.
// Per the dirty-tracker contract, this marks dirty even if key was not
// present: any explicit write is a write.
func (m *ReactiveMap[V]) Delete(key string) {
	delete(m.items, key)
	m.markDirty()
	m.recordDelete(key)
}

// MutateValue clones the current value for key (via f), writes it back, and
// records a single set patch. If key is absent, f receives the zero value of
// V and the result is inserted.
func (m *ReactiveMap[V]) MutateValue(key string, f func(V) V) {
	current := m.items[key]
	updated := f(current)
	m.Set(key, updated)
}

func (m *ReactiveMap[V]) markDirty() {
	if m.owner != nil {
		m.owner.MarkDirty(m.field)
	}
}

func (m *ReactiveMap[V]) recordSet(key string, v V) {
	if !m.hasContext {
		return
	}
	val, err := m.structuralEncode(v)
	if err != nil {
		return
	}
	m.recorder.Record(snapshot.Patch{Path: m.parentPath.Child(key), Op: snapshot.OpSet, Value: val})
}

func (m *ReactiveMap[V]) recordDelete(key string) {
	if !m.hasContext {
		return
	}
	m.recorder.Record(snapshot.Patch{Path: m.parentPath.Child(key), Op: snapshot.OpDelete})
}

func (m *ReactiveMap[V]) structuralEncode(v V) (snapshot.Value, error) {
	if m.leafOf != nil {
		return m.leafOf(v)
	}
	return m.childOf(v).StructuralValue(), nil
}

// Entries implements MappingView for the policy evaluator.
func (m *ReactiveMap[V]) Entries() ([]MappingItem, error) {
	keys := m.Keys()
	items := make([]MappingItem, 0, len(keys))
	for _, k := range keys {
		v := m.items[k]
		if m.leafOf != nil {
			val, err := m.leafOf(v)
			if err != nil {
				return nil, err
			}
			items = append(items, MappingItem{Key: k, Leaf: val, HasLeaf: true})
			continue
		}
		items = append(items, MappingItem{Key: k, Child: m.childOf(v)})
	}
	return items, nil
}

// StructuralEntries implements MappingView for StructuralValue.
func (m *ReactiveMap[V]) StructuralEntries() ([]StructuralItem, error) {
	keys := m.Keys()
	items := make([]StructuralItem, 0, len(keys))
	for _, k := range keys {
		val, err := m.structuralEncode(m.items[k])
		if err != nil {
			return nil, err
		}
		items = append(items, StructuralItem{Key: k, Value: val})
	}
	return items, nil
}

// Children implements MappingView for dirty/clear traversal.
func (m *ReactiveMap[V]) Children() []*Node {
	if m.childOf == nil {
		return nil
	}
	keys := m.Keys()
	out := make([]*Node, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.childOf(m.items[k]))
	}
	return out
}
