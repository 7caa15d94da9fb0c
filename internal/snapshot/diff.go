package snapshot

// Diff computes the structural patches that transform prev into curr, rooted
// at path. Rules:
//   - equal values -> no patch;
//   - unequal leaves, including a type change -> set(curr) at path;
//   - object vs object -> recurse per key: missing in curr -> delete; missing
//     in prev -> set(curr); present in both -> recurse;
//   - array vs array -> whole-array set if unequal;
//   - object<->array, or either<->leaf -> set(curr) at path.
func Diff(path Path, prev, curr Value) []Patch {
	if DeepEqual(prev, curr) {
		return nil
	}
	if prev.kind == KindObject && curr.kind == KindObject {
		return diffObjects(path, prev, curr)
	}
	return []Patch{{Path: path, Op: OpSet, Value: curr}}
}

func diffObjects(path Path, prev, curr Value) []Patch {
	keys := make(map[string]struct{}, len(prev.obj)+len(curr.obj))
	for k := range prev.obj {
		keys[k] = struct{}{}
	}
	for k := range curr.obj {
		keys[k] = struct{}{}
	}

	var patches []Patch
	for k := range keys {
		childPath := path.Child(k)
		prevVal, inPrev := prev.obj[k]
		currVal, inCurr := curr.obj[k]
		switch {
		case inPrev && !inCurr:
			patches = append(patches, Patch{Path: childPath, Op: OpDelete})
		case !inPrev && inCurr:
			patches = append(patches, Patch{Path: childPath, Op: OpSet, Value: currVal})
		default:
			patches = append(patches, Diff(childPath, prevVal, currVal)...)
		}
	}
	return patches
}

// Apply applies patches to base, returning the resulting value. Apply is
// provided for tests and for host processes that want to verify apply
// equivalence locally rather than trusting a remote client; the engine
// itself never needs to apply its own patches.
func Apply(base Value, patches []Patch) Value {
	root := base
	for _, p := range patches {
		root = applyOne(root, p.Path.Segments(), p)
	}
	return root
}

func applyOne(node Value, remaining []string, p Patch) Value {
	if len(remaining) == 0 {
		switch p.Op {
		case OpDelete:
			return Null()
		default:
			return p.Value
		}
	}

	seg := remaining[0]
	obj := map[string]Value{}
	if node.kind == KindObject {
		for k, v := range node.obj {
			obj[k] = v
		}
	}
	if len(remaining) == 1 && p.Op == OpDelete {
		delete(obj, seg)
		return Object(obj)
	}
	child, ok := obj[seg]
	if !ok {
		child = Object(nil)
	}
	obj[seg] = applyOne(child, remaining[1:], p)
	return Object(obj)
}
