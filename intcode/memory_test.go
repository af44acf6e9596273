package intcode

import (
	"fmt"
	"testing"
)

func TestMemory(t *testing.T) {
	m := NewMemory([]int64{1, 2, 3})
	if g := m.Len(); g != 3 {
		t.Errorf("Len() = %d, want 3", g)
	}
	for _, c := range []struct {
		addr int64
		want int64
	}{
		{0, 1},
		{2, 3},
		{3, 0},
		{pageSize, 0},
		{1 << 40, 0},
	} {
		t.Run(fmt.Sprint(c.addr), func(t *testing.T) {
			g, err := m.Read(c.addr)
			if err != nil {
				t.Fatal(err)
			}
			if g != c.want {
				t.Errorf("Read(%d) = %d, want %d", c.addr, g, c.want)
			}
		})
	}
	if _, err := m.Read(-1); err != ErrAddress {
		t.Errorf("Read(-1) error = %v, want %v", err, ErrAddress)
	}
	if err := m.Write(-1, 5); err != ErrAddress {
		t.Errorf("Write(-1) error = %v, want %v", err, ErrAddress)
	}
}

func TestMemoryGrow(t *testing.T) {
	m := NewMemory([]int64{1})
	const far = 5*pageSize + 17
	if err := m.Write(far, 42); err != nil {
		t.Fatal(err)
	}
	if g := m.Len(); g != far+1 {
		t.Errorf("Len() = %d, want %d", g, far+1)
	}
	for _, a := range []int64{1, pageSize, far - 1, far + 1} {
		if g, _ := m.Read(a); g != 0 {
			t.Errorf("Read(%d) = %d, want 0", a, g)
		}
	}
	if g, _ := m.Read(far); g != 42 {
		t.Errorf("Read(%d) = %d, want 42", int64(far), g)
	}
	if n := len(m.pages); n != 2 {
		t.Errorf("%d pages allocated, want 2", n)
	}

	// Zero writes to untouched pages extend the memory without allocating.
	if err := m.Write(1<<50, 0); err != nil {
		t.Fatal(err)
	}
	if n := len(m.pages); n != 2 {
		t.Errorf("%d pages allocated after zero write, want 2", n)
	}
	if g := m.Len(); g != 1<<50+1 {
		t.Errorf("Len() = %d, want %d", g, int64(1<<50+1))
	}
}

func TestMemoryDump(t *testing.T) {
	m := NewMemory([]int64{7, 8})
	m.Write(pageSize+1, 9)
	cells := m.Dump()
	if g, w := len(cells), pageSize+2; g != w {
		t.Fatalf("Dump() returned %d cells, want %d", g, w)
	}
	for i, c := range cells {
		if c.Addr != int64(i) {
			t.Fatalf("cell %d has address %d", i, c.Addr)
		}
	}
	for _, c := range []Cell{{0, 7}, {1, 8}, {2, 0}, {pageSize + 1, 9}} {
		if g := cells[c.Addr]; g != c {
			t.Errorf("cell %d = %v, want %v", c.Addr, g, c)
		}
	}
}
