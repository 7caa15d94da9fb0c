package snapshot

import "testing"

func patchesEqual(t *testing.T, got, want []Patch) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d patches %+v, want %d patches %+v", len(got), got, len(want), want)
	}
	for i := range got {
		if got[i].Path.String() != want[i].Path.String() || got[i].Op != want[i].Op || !DeepEqual(got[i].Value, want[i].Value) {
			t.Fatalf("patch %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDiffEqualLeavesProduceNoPatch(t *testing.T) {
	got := Diff(RootPath(), Int(1), Int(1))
	if got != nil {
		t.Fatalf("expected no patches for equal leaves, got %+v", got)
	}
}

func TestDiffUnequalLeafIsSet(t *testing.T) {
	got := Canonicalize(Diff(NewPath("health"), Int(100), Int(50)))
	patchesEqual(t, got, []Patch{{Path: NewPath("health"), Op: OpSet, Value: Int(50)}})
}

func TestDiffTypeChangeIsSet(t *testing.T) {
	got := Canonicalize(Diff(NewPath("v"), Int(1), String("one")))
	patchesEqual(t, got, []Patch{{Path: NewPath("v"), Op: OpSet, Value: String("one")}})
}

// S1 Dictionary upsert.
func TestDiffDictionaryUpsert(t *testing.T) {
	prev := Object(map[string]Value{"items": Object(nil)})
	curr := Object(map[string]Value{"items": Object(map[string]Value{"x": Int(42)})})
	got := Canonicalize(Diff(RootPath(), prev, curr))
	patchesEqual(t, got, []Patch{{Path: NewPath("items", "x"), Op: OpSet, Value: Int(42)}})
}

// S2 Delete.
func TestDiffDictionaryDelete(t *testing.T) {
	prev := Object(map[string]Value{"items": Object(map[string]Value{"x": Int(42)})})
	curr := Object(map[string]Value{"items": Object(nil)})
	got := Canonicalize(Diff(RootPath(), prev, curr))
	patchesEqual(t, got, []Patch{{Path: NewPath("items", "x"), Op: OpDelete}})
}

// S3 Mixed set+delete.
func TestDiffMixedSetAndDelete(t *testing.T) {
	prev := Object(map[string]Value{"items": Object(map[string]Value{"keep": Int(1), "remove": Int(2)})})
	curr := Object(map[string]Value{"items": Object(map[string]Value{"keep": Int(1), "new": Int(10)})})
	got := Canonicalize(Diff(RootPath(), prev, curr))
	patchesEqual(t, got, []Patch{
		{Path: NewPath("items", "new"), Op: OpSet, Value: Int(10)},
		{Path: NewPath("items", "remove"), Op: OpDelete},
	})
}

// S4 Nested broadcast scalar: the whole-object patch at /child is dropped
// because a strictly more specific patch exists at /child/health.
func TestDiffSpecificityDropsAncestorPatch(t *testing.T) {
	prev := Object(map[string]Value{
		"child": Object(map[string]Value{"health": Int(100), "name": String("a")}),
	})
	curr := Object(map[string]Value{
		"child": Object(map[string]Value{"health": Int(50), "name": String("a")}),
	})
	got := Canonicalize(Diff(RootPath(), prev, curr))
	patchesEqual(t, got, []Patch{{Path: NewPath("child", "health"), Op: OpSet, Value: Int(50)}})
}

func TestDiffArraysAreWholeArraySet(t *testing.T) {
	prev := Array(Int(1), Int(2))
	curr := Array(Int(1), Int(2), Int(3))
	got := Canonicalize(Diff(NewPath("hand"), prev, curr))
	patchesEqual(t, got, []Patch{{Path: NewPath("hand"), Op: OpSet, Value: curr}})
}

func TestApplySetAndDelete(t *testing.T) {
	base := Object(map[string]Value{"items": Object(map[string]Value{"keep": Int(1), "remove": Int(2)})})
	patches := []Patch{
		{Path: NewPath("items", "new"), Op: OpSet, Value: Int(10)},
		{Path: NewPath("items", "remove"), Op: OpDelete},
	}
	got := Apply(base, patches)
	want := Object(map[string]Value{"items": Object(map[string]Value{"keep": Int(1), "new": Int(10)})})
	if !DeepEqual(got, want) {
		t.Fatalf("Apply = %+v, want %+v", got, want)
	}
}

func TestCanonicalizeCollapsesDuplicatePathsKeepingLast(t *testing.T) {
	patches := []Patch{
		{Path: NewPath("x"), Op: OpSet, Value: Int(1)},
		{Path: NewPath("x"), Op: OpSet, Value: Int(2)},
	}
	got := Canonicalize(patches)
	patchesEqual(t, got, []Patch{{Path: NewPath("x"), Op: OpSet, Value: Int(2)}})
}

func TestCanonicalizeSortsByPathAscending(t *testing.T) {
	patches := []Patch{
		{Path: NewPath("z"), Op: OpSet, Value: Int(1)},
		{Path: NewPath("a"), Op: OpSet, Value: Int(2)},
	}
	got := Canonicalize(patches)
	if got[0].Path.String() != "/a" || got[1].Path.String() != "/z" {
		t.Fatalf("Canonicalize did not sort by path: %+v", got)
	}
}
