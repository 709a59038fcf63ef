package vessel

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"scrapyard.dev/internal/naming"
)

func rocket() *Snapshot {
	return &Snapshot{
		Name:  "Kerbal X",
		Stage: StageConstruct,
		Parts: []Part{
			{Name: "mk1pod", Parent: NoParent, Resources: []Resource{{Name: "MonoPropellant", Amount: 10}}},
			{Name: "fuelTank", Parent: 0, Resources: []Resource{{Name: "LiquidFuel", Amount: 180}, {Name: "Oxidizer", Amount: 220}}},
			{Name: "fuelTank", Parent: 1, Modules: []naming.ScaleModule{{Name: naming.ScaleModuleName, DefaultScale: "1.25", CurrentScale: "2.5"}},
				Resources: []Resource{{Name: "LiquidFuel", Amount: 720}}},
			{Name: "liquidEngine", Parent: 2},
			{Name: "solidBooster", Parent: 2, Counterparts: 3, Resources: []Resource{{Name: "SolidFuel", Amount: 375}}},
		},
	}
}

func TestAggregateParts(t *testing.T) {
	got := AggregateParts(rocket())
	want := map[string]int{
		"mk1pod":       1,
		"fuelTank":     1,
		"fuelTank,2.5": 1,
		"liquidEngine": 1,
		"solidBooster": 4,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("parts (-want +got):\n%s", diff)
	}
}

func TestAggregateResources(t *testing.T) {
	s := rocket()
	got := AggregateResources(s.Parts)
	want := map[string]float64{
		"MonoPropellant": 10,
		"LiquidFuel":     900,
		"Oxidizer":       220,
		"SolidFuel":      1500,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("resources (-want +got):\n%s", diff)
	}
	if s.ResourceAmount("LiquidFuel") != 900 {
		t.Fatalf("ResourceAmount=%v", s.ResourceAmount("LiquidFuel"))
	}
}

func TestFlatAndTreeAgree(t *testing.T) {
	tree := rocket()
	flat := rocket()
	flat.Stage = StageProto
	if diff := cmp.Diff(AggregateParts(tree), AggregateParts(flat)); diff != "" {
		t.Fatalf("tree and flat disagree:\n%s", diff)
	}
}

func TestSubtree(t *testing.T) {
	s := rocket()
	got := AggregateSubtree(s, 2)
	want := map[string]int{"fuelTank,2.5": 1, "liquidEngine": 1, "solidBooster": 4}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("subtree (-want +got):\n%s", diff)
	}
	if len(s.Subtree(99)) != 0 {
		t.Fatalf("out of range root should yield nothing")
	}
}

func TestWalkOrder(t *testing.T) {
	var order []int
	rocket().Walk(0, func(i int, _ Part) { order = append(order, i) })
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, order); diff != "" {
		t.Fatalf("order:\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	if err := rocket().Validate(); err != nil {
		t.Fatalf("valid rocket: %v", err)
	}

	bad := rocket()
	bad.Parts[3].Parent = 42
	if err := bad.Validate(); !errors.Is(err, ErrBadParent) {
		t.Fatalf("expected ErrBadParent, got %v", err)
	}

	loop := &Snapshot{Stage: StageConstruct, Parts: []Part{
		{Name: "a", Parent: NoParent},
		{Name: "b", Parent: 2},
		{Name: "c", Parent: 1},
	}}
	if err := loop.Validate(); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
	// Cyclic records still count exactly once.
	if diff := cmp.Diff(map[string]int{"a": 1, "b": 1, "c": 1}, AggregateParts(loop)); diff != "" {
		t.Fatalf("cyclic aggregate:\n%s", diff)
	}

	flat := &Snapshot{Stage: StageProto, Parts: []Part{{Name: "a", Parent: 7}}}
	if err := flat.Validate(); err != nil {
		t.Fatalf("flat snapshots ignore parents: %v", err)
	}
}
