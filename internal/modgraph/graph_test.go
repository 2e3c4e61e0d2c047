package modgraph_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/oratorbot/orator/internal/modgraph"
)

// recordingFactory returns a factory that appends name to *order and returns
// name as the instance.
func recordingFactory(name string, order *[]string) modgraph.Factory {
	return func(_ context.Context, _ map[string]any) (any, error) {
		*order = append(*order, name)
		return name, nil
	}
}

func TestLoad_ParentBeforeChild(t *testing.T) {
	t.Parallel()

	g := modgraph.New()
	var order []string
	g.Register("child", []string{"parent"}, recordingFactory("child", &order))
	g.Register("parent", nil, recordingFactory("parent", &order))
	g.Register("grandchild", []string{"child"}, recordingFactory("grandchild", &order))

	if err := g.Load(context.Background()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	want := []string{"parent", "child", "grandchild"}
	if !slices.Equal(order, want) {
		t.Errorf("construction order = %v, want %v", order, want)
	}
}

func TestLoad_FactoryReceivesDeclaredParentsOnly(t *testing.T) {
	t.Parallel()

	g := modgraph.New()
	g.Register("a", nil, func(_ context.Context, _ map[string]any) (any, error) { return "A", nil })
	g.Register("b", nil, func(_ context.Context, _ map[string]any) (any, error) { return "B", nil })

	var got map[string]any
	g.Register("c", []string{"a"}, func(_ context.Context, parents map[string]any) (any, error) {
		got = parents
		return "C", nil
	})

	if err := g.Load(context.Background()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("parents = %v, want exactly the declared parent", got)
	}
	if got["a"] != "A" {
		t.Errorf(`parents["a"] = %v, want "A"`, got["a"])
	}
}

func TestLoad_FailurePropagatesToDescendantsOnly(t *testing.T) {
	t.Parallel()

	g := modgraph.New()
	boom := errors.New("boom")
	g.Register("root", nil, func(_ context.Context, _ map[string]any) (any, error) { return "root", nil })
	g.Register("broken", []string{"root"}, func(_ context.Context, _ map[string]any) (any, error) { return nil, boom })
	g.Register("victim", []string{"broken"}, func(_ context.Context, _ map[string]any) (any, error) { return "victim", nil })
	g.Register("sibling", []string{"root"}, func(_ context.Context, _ map[string]any) (any, error) { return "sibling", nil })

	if err := g.Load(context.Background()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	skipped := g.Skipped()
	want := []string{"broken", "victim"}
	if !slices.Equal(skipped, want) {
		t.Errorf("Skipped() = %v, want %v", skipped, want)
	}

	if _, ok := g.Instance("sibling"); !ok {
		t.Error("sibling should have loaded despite broken branch")
	}
	if !errors.Is(g.Err("broken"), boom) {
		t.Errorf("Err(broken) = %v, want %v", g.Err("broken"), boom)
	}
	if g.Err("victim") != nil {
		t.Errorf("Err(victim) = %v, want nil (skipped via parent)", g.Err("victim"))
	}
}

func TestLoad_CycleDetected(t *testing.T) {
	t.Parallel()

	g := modgraph.New()
	noop := func(_ context.Context, _ map[string]any) (any, error) { return nil, nil }
	g.Register("a", []string{"c"}, noop)
	g.Register("b", []string{"a"}, noop)
	g.Register("c", []string{"b"}, noop)

	err := g.Load(context.Background())
	var cyc *modgraph.CycleError
	if !errors.As(err, &cyc) {
		t.Fatalf("Load() = %v, want *CycleError", err)
	}
	if len(cyc.Names) == 0 {
		t.Error("CycleError.Names should not be empty")
	}
}

func TestLoad_UnknownDependency(t *testing.T) {
	t.Parallel()

	g := modgraph.New()
	g.Register("lonely", []string{"ghost"}, func(_ context.Context, _ map[string]any) (any, error) { return nil, nil })

	if err := g.Load(context.Background()); err == nil {
		t.Fatal("Load() should fail for a dependency that was never registered")
	}
}

func TestReloadAll_KeepsPreviousInstanceOnFailure(t *testing.T) {
	t.Parallel()

	g := modgraph.New()
	calls := 0
	g.Register("flaky", nil, func(_ context.Context, _ map[string]any) (any, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("reload failure")
		}
		return calls, nil
	})

	if err := g.Load(context.Background()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := g.ReloadAll(context.Background()); err == nil {
		t.Fatal("ReloadAll() should report the failed component")
	}

	inst, ok := g.Instance("flaky")
	if !ok {
		t.Fatal("flaky should still be loaded after failed reload")
	}
	if inst != 1 {
		t.Errorf("instance = %v, want previous instance 1", inst)
	}
}

func TestReloadAll_RunsInLoadOrder(t *testing.T) {
	t.Parallel()

	g := modgraph.New()
	var order []string
	g.Register("late", []string{"early"}, recordingFactory("late", &order))
	g.Register("early", nil, recordingFactory("early", &order))

	if err := g.Load(context.Background()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	order = order[:0]
	if err := g.ReloadAll(context.Background()); err != nil {
		t.Fatalf("ReloadAll() error: %v", err)
	}
	want := []string{"early", "late"}
	if !slices.Equal(order, want) {
		t.Errorf("reload order = %v, want %v", order, want)
	}
}
