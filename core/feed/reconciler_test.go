package feed

import (
	"testing"
)

func viewIDs(r *Reconciler) []string {
	items := r.Items()
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func wantView(t *testing.T, r *Reconciler, want ...string) {
	t.Helper()
	got := viewIDs(r)
	if len(got) != len(want) {
		t.Fatalf("view = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("view = %v; want %v", got, want)
		}
	}
}

func TestReconciler_apply(t *testing.T) {
	ref := Ref{Collection: "docs"}
	r := NewReconciler(byNDesc, nil, nopLogger{})

	r.Apply(
		Change{Op: OpAdded, Ref: ref, Doc: doc{ID: "a", N: 1}},
		Change{Op: OpAdded, Ref: ref, Doc: doc{ID: "b", N: 5}},
		Change{Op: OpAdded, Ref: ref, Doc: doc{ID: "c", N: 3}},
	)
	wantView(t, r, "b", "c", "a")

	// modified patches in place without reordering the view
	r.Apply(Change{Op: OpModified, Ref: ref, Doc: doc{ID: "a", N: 99}})
	wantView(t, r, "b", "c", "a")
	if it, ok := r.Get("a"); !ok || it.Doc.(doc).N != 99 {
		t.Errorf("Get(a) = %+v, %v; want patched doc", it, ok)
	}

	r.Apply(Change{Op: OpRemoved, Ref: ref, Doc: doc{ID: "c"}})
	wantView(t, r, "b", "a")

	// modified/removed for unknown IDs reconcile to logged no-ops
	r.Apply(
		Change{Op: OpModified, Ref: ref, Doc: doc{ID: "ghost", N: 1}},
		Change{Op: OpRemoved, Ref: ref, Doc: doc{ID: "ghost"}},
	)
	wantView(t, r, "b", "a")

	// duplicate add patches instead of re-inserting
	r.Apply(Change{Op: OpAdded, Ref: ref, Doc: doc{ID: "b", N: 7}})
	wantView(t, r, "b", "a")
	if r.Len() != 2 {
		t.Errorf("Len() = %d; want 2", r.Len())
	}
}

func TestReconciler_headInsertWithoutLess(t *testing.T) {
	// newest-first feeds: no ordering key inserts at the head
	ref := Ref{Collection: "docs"}
	r := NewReconciler(nil, nil, nopLogger{})

	r.Apply(
		Change{Op: OpAdded, Ref: ref, Doc: doc{ID: "first"}},
		Change{Op: OpAdded, Ref: ref, Doc: doc{ID: "second"}},
	)
	wantView(t, r, "second", "first")
}

func TestReconciler_openStateSurvivesPatch(t *testing.T) {
	ref := Ref{Collection: "docs"}
	r := NewReconciler(byNDesc, nil, nopLogger{})

	r.Apply(Change{Op: OpAdded, Ref: ref, Doc: doc{ID: "a", N: 1}})
	if err := r.SetOpen("a", true); err != nil {
		t.Fatalf("SetOpen() failed: %v", err)
	}

	r.Apply(Change{Op: OpModified, Ref: ref, Doc: doc{ID: "a", N: 2}})
	if it, _ := r.Get("a"); !it.Open {
		t.Error("Open state lost on modified")
	}

	// SetOpen on an unknown item is a logged no-op
	if err := r.SetOpen("ghost", true); err != nil {
		t.Errorf("SetOpen(ghost) = %v; want nil", err)
	}
}

func TestReconciler_nestedLifecycle(t *testing.T) {
	ref := Ref{Collection: "docs"}

	disposed := make(map[string]int)
	nested := NewNestedManager(func(parentID string) (Disposer, error) {
		return func() { disposed[parentID]++ }, nil
	})
	r := NewReconciler(byNDesc, nested, nopLogger{})

	r.Apply(
		Change{Op: OpAdded, Ref: ref, Doc: doc{ID: "a", N: 1}},
		Change{Op: OpAdded, Ref: ref, Doc: doc{ID: "b", N: 2}},
	)

	if err := r.SetOpen("a", true); err != nil {
		t.Fatalf("SetOpen() failed: %v", err)
	}
	if err := r.SetOpen("b", true); err != nil {
		t.Fatalf("SetOpen() failed: %v", err)
	}
	if !nested.IsOpen("a") || !nested.IsOpen("b") {
		t.Fatal("nested subscriptions not open")
	}

	// closing via the panel toggle
	if err := r.SetOpen("a", false); err != nil {
		t.Fatalf("SetOpen() failed: %v", err)
	}
	if disposed["a"] != 1 {
		t.Errorf("disposed[a] = %d; want 1", disposed["a"])
	}

	// removal of the parent disposes its nested subscription
	r.Apply(Change{Op: OpRemoved, Ref: ref, Doc: doc{ID: "b"}})
	if disposed["b"] != 1 {
		t.Errorf("disposed[b] = %d; want 1", disposed["b"])
	}
	if nested.Len() != 0 {
		t.Errorf("nested.Len() = %d; want 0", nested.Len())
	}
}

func TestReconciler_reset(t *testing.T) {
	ref := Ref{Collection: "docs"}

	disposed := 0
	nested := NewNestedManager(func(string) (Disposer, error) {
		return func() { disposed++ }, nil
	})
	r := NewReconciler(byNDesc, nested, nopLogger{})

	r.Apply(Change{Op: OpAdded, Ref: ref, Doc: doc{ID: "a", N: 1}})
	if err := r.SetOpen("a", true); err != nil {
		t.Fatalf("SetOpen() failed: %v", err)
	}

	r.Reset()
	if r.Len() != 0 {
		t.Errorf("Len() = %d; want 0", r.Len())
	}
	if disposed != 1 {
		t.Errorf("disposed = %d; want 1", disposed)
	}
}
