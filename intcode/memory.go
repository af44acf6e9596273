package intcode

import "sort"

const pageSize = 1 << 10

type page [pageSize]int64

// Memory is the growable word store of an Intcode machine.
// Addresses beyond the populated extent read as zero and are allocated
// a page at a time when written.
type Memory struct {
	pages map[int64]*page
	n     int64 // one past the highest address ever written
}

// Cell is a single populated memory word.
type Cell struct {
	Addr  int64
	Value int64
}

// NewMemory returns a Memory holding a copy of image at address 0.
func NewMemory(image []int64) *Memory {
	m := &Memory{pages: make(map[int64]*page)}
	for i, v := range image {
		m.store(int64(i), v)
	}
	return m
}

// Read returns the word at addr.
func (m *Memory) Read(addr int64) (int64, error) {
	if addr < 0 {
		return 0, ErrAddress
	}
	p, ok := m.pages[addr/pageSize]
	if !ok {
		return 0, nil
	}
	return p[addr%pageSize], nil
}

// Write stores v at addr, growing the memory if needed.
func (m *Memory) Write(addr, v int64) error {
	if addr < 0 {
		return ErrAddress
	}
	m.store(addr, v)
	return nil
}

func (m *Memory) store(addr, v int64) {
	p, ok := m.pages[addr/pageSize]
	switch {
	case !ok && v == 0:
		// Unallocated words already read as zero.
	case !ok:
		p = new(page)
		m.pages[addr/pageSize] = p
		p[addr%pageSize] = v
	default:
		p[addr%pageSize] = v
	}
	if addr >= m.n {
		m.n = addr + 1
	}
}

// Len reports the populated extent: one past the highest address written.
func (m *Memory) Len() int64 { return m.n }

// Dump returns the words of every allocated page below Len() in address
// order. Unallocated gaps, which read as zero, are omitted.
func (m *Memory) Dump() []Cell {
	idx := make([]int64, 0, len(m.pages))
	for i := range m.pages {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
	var cells []Cell
	for _, i := range idx {
		for j, v := range m.pages[i] {
			a := i*pageSize + int64(j)
			if a >= m.n {
				break
			}
			cells = append(cells, Cell{a, v})
		}
	}
	return cells
}
