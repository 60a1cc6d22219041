package ring

import "testing"

func TestPushFrontOrder(t *testing.T) {
	r := New[int](4)
	for i := 1; i <= 3; i++ {
		r.PushFront(i)
	}
	if r.Len() != 3 {
		t.Fatalf("expected len 3, got %d", r.Len())
	}
	// Newest first: 3, 2, 1.
	want := []int{3, 2, 1}
	for i, w := range want {
		got, ok := r.Get(i)
		if !ok || got != w {
			t.Errorf("Get(%d) = %d, %v; want %d", i, got, ok, w)
		}
	}
}

func TestEvictOldest(t *testing.T) {
	r := New[int](3)
	for i := 1; i <= 5; i++ {
		r.PushFront(i)
	}
	if r.Len() != 3 {
		t.Fatalf("expected len 3 after overflow, got %d", r.Len())
	}
	want := []int{5, 4, 3}
	for i, w := range want {
		if got := r.At(i); got != w {
			t.Errorf("At(%d) = %d, want %d", i, got, w)
		}
	}
	if _, ok := r.Get(3); ok {
		t.Error("expected Get(3) to be out of range")
	}
}

func TestSet(t *testing.T) {
	r := New[string](2)
	r.PushFront("a")
	r.PushFront("b")
	if !r.Set(1, "c") {
		t.Fatal("Set(1) failed")
	}
	if got := r.At(1); got != "c" {
		t.Errorf("At(1) = %q, want %q", got, "c")
	}
	if r.Set(2, "x") {
		t.Error("expected Set(2) to report out of range")
	}
}

func TestDropOldest(t *testing.T) {
	r := New[int](4)
	r.PushFront(1)
	r.PushFront(2)
	r.DropOldest()
	if r.Len() != 1 {
		t.Fatalf("expected len 1, got %d", r.Len())
	}
	if got := r.At(0); got != 2 {
		t.Errorf("At(0) = %d, want 2", got)
	}
	r.DropOldest()
	r.DropOldest() // no-op on empty
	if r.Len() != 0 {
		t.Errorf("expected empty ring, got len %d", r.Len())
	}
}

func TestClear(t *testing.T) {
	r := New[int](3)
	for i := 0; i < 3; i++ {
		r.PushFront(i)
	}
	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("expected empty ring after Clear, got %d", r.Len())
	}
	r.PushFront(42)
	if got := r.At(0); got != 42 {
		t.Errorf("At(0) = %d, want 42", got)
	}
}

func TestWraparoundStress(t *testing.T) {
	r := New[int](7)
	for i := 0; i < 1000; i++ {
		r.PushFront(i)
		if got := r.At(0); got != i {
			t.Fatalf("iteration %d: At(0) = %d", i, got)
		}
		for j := 1; j < r.Len(); j++ {
			if got := r.At(j); got != i-j {
				t.Fatalf("iteration %d: At(%d) = %d, want %d", i, j, got, i-j)
			}
		}
	}
}
