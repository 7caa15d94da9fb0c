// Package statetree implements the rooted state tree: field registration,
// recursive dirty tracking, patch-context propagation, and the policy
// evaluator that turns a tree into a viewer-specific snapshot value.
package statetree

import (
	"github.com/gmliao/landsync/internal/dirty"
	"github.com/gmliao/landsync/internal/patch"
	"github.com/gmliao/landsync/internal/policy"
	"github.com/gmliao/landsync/internal/snapshot"
)

// Shape identifies the structural kind of a registered field.
type Shape int

const (
	// ShapeLeaf is a primitive or collection value with no further tree
	// structure (int, string, array of primitives, etc).
	ShapeLeaf Shape = iota
	// ShapeNode is a single nested state node, possibly absent (nil).
	ShapeNode
	// ShapeMapping is a reactive mapping keyed by string (typically a
	// player id).
	ShapeMapping
)

// FieldDef is one entry of a node's registration table: name, policy, shape,
// and the purely structural accessor for that shape. Exactly one accessor is
// used, matching Shape.
type FieldDef struct {
	Name   string
	Policy policy.Policy
	Shape  Shape

	Leaf    func() (snapshot.Value, error)
	Child   func() *Node
	Mapping func() MappingView
}

// Node is one record in the state tree: a named field registration table
// plus the dirty set and patch-context state needed for recursive clear and
// patch propagation. Domain types embed *Node (or hold one) and register
// their fields once at construction; Node itself holds no domain data.
type Node struct {
	dirty  dirty.FieldSet
	fields []FieldDef

	recorder *patch.Recorder
	basePath snapshot.Path
}

// NewNode creates an empty, unregistered node.
func NewNode() *Node {
	return &Node{}
}

// RegisterLeaf adds a leaf field. accessor must be purely structural (no
// reflection, no side effects).
func (n *Node) RegisterLeaf(name string, p policy.Policy, accessor func() (snapshot.Value, error)) error {
	if p.RequiresMapping() {
		return &policy.ViolationError{Field: name, Policy: p.Kind(), Reason: "leaf field cannot carry a per-player mapping policy"}
	}
	n.fields = append(n.fields, FieldDef{Name: name, Policy: p, Shape: ShapeLeaf, Leaf: accessor})
	return nil
}

// RegisterNode adds a nested-node field. accessor may return nil for an
// optional, currently-unset nested node.
func (n *Node) RegisterNode(name string, p policy.Policy, accessor func() *Node) error {
	if p.RequiresMapping() {
		return &policy.ViolationError{Field: name, Policy: p.Kind(), Reason: "nested node field cannot carry a per-player mapping policy"}
	}
	n.fields = append(n.fields, FieldDef{Name: name, Policy: p, Shape: ShapeNode, Child: accessor})
	return nil
}

// RegisterMapping adds a reactive-mapping field.
func (n *Node) RegisterMapping(name string, p policy.Policy, accessor func() MappingView) error {
	n.fields = append(n.fields, FieldDef{Name: name, Policy: p, Shape: ShapeMapping, Mapping: accessor})
	return nil
}

// Fields returns the registration table. Callers must not mutate it.
func (n *Node) Fields() []FieldDef { return n.fields }

// MarkDirty records field as directly mutated since the last ClearDirty.
// Domain setters call this after writing a leaf or nested-node field.
// Reactive mappings mark dirty on their owning node automatically.
func (n *Node) MarkDirty(field string) {
	n.dirty.Mark(field)
}

// IsDirty reports whether this node's own dirty set is non-empty, or any
// reachable nested node's is (recursively through nested-node fields and
// node-valued mapping entries).
func (n *Node) IsDirty() bool {
	if !n.dirty.Empty() {
		return true
	}
	for _, f := range n.fields {
		switch f.Shape {
		case ShapeNode:
			if child := f.Child(); child != nil && child.IsDirty() {
				return true
			}
		case ShapeMapping:
			for _, child := range f.Mapping().Children() {
				if child.IsDirty() {
					return true
				}
			}
		}
	}
	return false
}

// GetDirtyFields returns this node's own dirty field names (not recursive).
func (n *Node) GetDirtyFields() []string {
	return n.dirty.Names()
}

// ClearDirty recursively clears this node and every reachable nested node.
func (n *Node) ClearDirty() {
	n.dirty.Clear()
	for _, f := range n.fields {
		switch f.Shape {
		case ShapeNode:
			if child := f.Child(); child != nil {
				child.ClearDirty()
			}
		case ShapeMapping:
			for _, child := range f.Mapping().Children() {
				child.ClearDirty()
			}
		}
	}
}

// AttachRecorder stamps (recorder, parent_path) into this node and
// recursively into every nested node and reactive mapping reachable from it.
// Propagation is idempotent and never marks anything dirty.
func (n *Node) AttachRecorder(rec *patch.Recorder) {
	n.propagate(rec, snapshot.RootPath())
}

func (n *Node) propagate(rec *patch.Recorder, base snapshot.Path) {
	n.recorder = rec
	n.basePath = base
	for _, f := range n.fields {
		switch f.Shape {
		case ShapeNode:
			if child := f.Child(); child != nil {
				child.propagate(rec, base.Child(f.Name))
			}
		case ShapeMapping:
			f.Mapping().attachContext(rec, base.Child(f.Name))
		}
	}
}

// RecordSet appends a set(value) patch at this node's base path + field,
// when a recorder is attached. It does not mark anything dirty; callers
// mark dirty separately (domain setters call both).
func (n *Node) RecordSet(field string, value snapshot.Value) {
	if n.recorder == nil {
		return
	}
	n.recorder.Record(snapshot.Patch{Path: n.basePath.Child(field), Op: snapshot.OpSet, Value: value})
}

// RecordDelete appends a delete patch at this node's base path + field, when
// a recorder is attached.
func (n *Node) RecordDelete(field string) {
	if n.recorder == nil {
		return
	}
	n.recorder.Record(snapshot.Patch{Path: n.basePath.Child(field), Op: snapshot.OpDelete})
}

// StructuralValue dumps every registered field regardless of policy,
// recursing into nested nodes and mappings. It is used to validate the
// record-vs-diff equivalence invariant; production per-viewer output always
// goes through Evaluate, which applies policy.
func (n *Node) StructuralValue() snapshot.Value {
	obj := make(map[string]snapshot.Value, len(n.fields))
	for _, f := range n.fields {
		switch f.Shape {
		case ShapeLeaf:
			v, err := f.Leaf()
			if err != nil {
				v = snapshot.Null()
			}
			obj[f.Name] = v
		case ShapeNode:
			child := f.Child()
			if child == nil {
				obj[f.Name] = snapshot.Null()
			} else {
				obj[f.Name] = child.StructuralValue()
			}
		case ShapeMapping:
			items, err := f.Mapping().StructuralEntries()
			m := map[string]snapshot.Value{}
			if err == nil {
				for _, it := range items {
					m[it.Key] = it.Value
				}
			}
			obj[f.Name] = snapshot.Object(m)
		}
	}
	return snapshot.Object(obj)
}
