package table

import (
	"sync"
	"testing"
)

func intPtr(i int) *int { return &i }

func TestRegistryUpsert(t *testing.T) {
	r := NewRegistry()

	if err := r.Upsert(ColumnSpec{Name: "a", SourceColumn: intPtr(0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Upsert(ColumnSpec{Name: "b", SourceColumn: intPtr(1)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same name replaces in place, keeping insertion order.
	if err := r.Upsert(ColumnSpec{Name: "a", SourceColumn: intPtr(2)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	specs := r.List()
	if len(specs) != 2 {
		t.Fatalf("got %d specs, want 2", len(specs))
	}
	if specs[0].Name != "a" || *specs[0].SourceColumn != 2 {
		t.Errorf("spec 0 = %+v, want name a with source 2", specs[0])
	}
	if specs[1].Name != "b" {
		t.Errorf("spec 1 = %+v, want name b", specs[1])
	}
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	r := NewRegistry()

	if err := r.Upsert(ColumnSpec{}); err != ErrEmptySpecName {
		t.Errorf("Upsert: got %v, want ErrEmptySpecName", err)
	}

	// An invalid entry rejects the whole batch.
	err := r.BulkUpsert([]ColumnSpec{{Name: "ok"}, {}})
	if err != ErrEmptySpecName {
		t.Errorf("BulkUpsert: got %v, want ErrEmptySpecName", err)
	}
	if r.Len() != 0 {
		t.Errorf("registry has %d specs after rejected batch, want 0", r.Len())
	}
}

func TestRegistryListIsSnapshot(t *testing.T) {
	r := NewRegistry()
	if err := r.BulkUpsert([]ColumnSpec{{Name: "a"}, {Name: "b"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := r.List()
	r.Clear()

	if len(snap) != 2 {
		t.Errorf("snapshot has %d specs after Clear, want 2", len(snap))
	}
	if r.Len() != 0 {
		t.Errorf("registry has %d specs after Clear, want 0", r.Len())
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = r.BulkUpsert([]ColumnSpec{{Name: "x"}, {Name: "y"}, {Name: "z"}})
				specs := r.List()
				// A reader never observes a torn batch.
				if n := len(specs); n != 0 && n != 3 {
					t.Errorf("observed partial batch of %d specs", n)
					return
				}
				r.Clear()
			}
		}()
	}
	wg.Wait()
}
