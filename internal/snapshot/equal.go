package snapshot

// DeepEqual reports whether a and b are structurally equal. Objects compare
// key sets and per-key values; arrays compare element-wise in order. Int and
// double are distinct kinds even when numerically equal (Int(2) != Double(2)).
func DeepEqual(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindDouble:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !DeepEqual(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !DeepEqual(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
