package typecheck_test

import (
	"testing"

	"pyrite/internal/pyparse"
	"pyrite/internal/typecheck"
)

const statsFixture = `# pyre-fixme[7]
G = 1
H: int = 2
Z = 3  # type: ignore

def plain(a, b):
    pass

def typed(a: int, b: str) -> bool:
    return True

def half(a: int, b) -> None:
    pass

def outer():
    def inner(q):
        pass

class C:
    attr = 1
    tattr: int = 2

    def method(self, x: int) -> None:
        pass

    def bare(self):
        y = 1
`

func TestCollectStats(t *testing.T) {
	src, err := pyparse.New(pyparse.Options{}).Parse("m.py", []byte(statsFixture))
	if err != nil {
		t.Fatal(err)
	}
	src.Qualifier = "m"

	ms := typecheck.CollectStats(src)
	if ms.Qualifier != "m" || ms.Mode != "default" {
		t.Errorf("header = %s/%s", ms.Qualifier, ms.Mode)
	}

	want := typecheck.AnnotationStats{
		FunctionCount:           7,
		FullyAnnotated:          2, // typed, method
		PartiallyAnnotated:      1, // half
		ReturnCount:             7,
		AnnotatedReturnCount:    3,
		ParamCount:              8, // self skipped twice
		AnnotatedParamCount:     4,
		GlobalCount:             3,
		AnnotatedGlobalCount:    1,
		AttributeCount:          2,
		AnnotatedAttributeCount: 1,
	}
	if ms.Annotations != want {
		t.Errorf("annotations = %+v\nwant          %+v", ms.Annotations, want)
	}

	if len(ms.Fixmes) != 1 || ms.Fixmes[7] != 1 {
		t.Errorf("fixmes = %v, want {7:1}", ms.Fixmes)
	}
	if ms.Ignores != 1 {
		t.Errorf("ignores = %d, want 1", ms.Ignores)
	}
}

func TestAggregateAdd(t *testing.T) {
	var agg typecheck.Aggregate
	agg.Add(typecheck.ModuleStats{
		Qualifier:   "a",
		Mode:        "strict",
		Annotations: typecheck.AnnotationStats{FunctionCount: 2, GlobalCount: 1},
		Fixmes:      map[int]int{21: 1},
		Ignores:     1,
	})
	agg.Add(typecheck.ModuleStats{
		Qualifier:   "b",
		Mode:        "strict",
		Annotations: typecheck.AnnotationStats{FunctionCount: 3},
		Fixmes:      map[int]int{21: 2, 0: 1},
	})
	agg.Add(typecheck.ModuleStats{Qualifier: "c", Mode: "default"})

	if agg.ModuleCount != 3 {
		t.Errorf("modules = %d", agg.ModuleCount)
	}
	if agg.Annotations.FunctionCount != 5 || agg.Annotations.GlobalCount != 1 {
		t.Errorf("annotations = %+v", agg.Annotations)
	}
	if agg.Fixmes[21] != 3 || agg.Fixmes[0] != 1 {
		t.Errorf("fixmes = %v", agg.Fixmes)
	}
	if agg.Ignores != 1 {
		t.Errorf("ignores = %d", agg.Ignores)
	}
	if agg.Modes["strict"] != 2 || agg.Modes["default"] != 1 {
		t.Errorf("modes = %v", agg.Modes)
	}
}
