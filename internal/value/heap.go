package value

import "seni/internal/errors"

// node is one element of a heap-allocated VECTOR's intrusive linked list.
type node struct {
	val  Value
	next Cell
	mark bool
	used bool
}

// Heap is a single contiguous slab of node cells, pre-allocated at
// construction, with a free list threading the unused cells. VECTOR cells
// are handed out when the VM builds or appends to a vector; the stack cell
// (Value.Head) only ever holds the list head.
type Heap struct {
	cells     []node
	freeHead  Cell
	freeCount int
	watermark int
}

// NewHeap pre-allocates size cells, all initially free, and triggers a
// mark-and-sweep once the free list drops below watermark cells.
func NewHeap(size, watermark int) *Heap {
	h := &Heap{cells: make([]node, size), watermark: watermark}
	h.rebuildFreeList()
	return h
}

func (h *Heap) rebuildFreeList() {
	h.freeHead = NilCell
	h.freeCount = 0
	for i := len(h.cells) - 1; i >= 0; i-- {
		h.cells[i].used = false
		h.cells[i].mark = false
		h.cells[i].next = h.freeHead
		h.freeHead = Cell(i)
		h.freeCount++
	}
}

// Avail reports how many cells remain on the free list.
func (h *Heap) Avail() int { return h.freeCount }

// NeedsSweep reports whether the free list has dropped below the watermark.
func (h *Heap) NeedsSweep() bool { return h.freeCount < h.watermark }

// Alloc pops one cell off the free list and returns its index, or an error
// if the heap is exhausted (callers should run a sweep and retry once).
func (h *Heap) Alloc(v Value, next Cell) (Cell, error) {
	if h.freeHead == NilCell {
		return NilCell, errors.New(errors.Runtime, "heap exhausted: free list empty after sweep")
	}
	c := h.freeHead
	cell := &h.cells[c]
	h.freeHead = cell.next
	h.freeCount--
	cell.val = v
	cell.next = next
	cell.used = true
	cell.mark = false
	return c, nil
}

func (h *Heap) Get(c Cell) Value  { return h.cells[c].val }
func (h *Heap) Next(c Cell) Cell  { return h.cells[c].next }
func (h *Heap) SetNext(c Cell, n Cell) { h.cells[c].next = n }

// Mark recursively marks c and every VECTOR cell reachable from it.
func (h *Heap) Mark(c Cell) {
	for c != NilCell {
		cell := &h.cells[c]
		if cell.mark {
			return
		}
		cell.mark = true
		if cell.val.Kind == KindVector && !cell.val.Pair && cell.val.Head != NilCell {
			h.Mark(cell.val.Head)
		}
		c = cell.next
	}
}

// MarkRoots marks every VECTOR value reachable from the live stack region.
func (h *Heap) MarkRoots(stack []Value) {
	for _, v := range stack {
		if v.Kind == KindVector && !v.Pair && v.Head != NilCell {
			h.Mark(v.Head)
		}
	}
}

// Sweep clears every unmarked cell back to the free list, in slab order,
// and resets mark bits on survivors. The free list after Sweep contains
// exactly the cells with mark=false.
func (h *Heap) Sweep() {
	h.freeHead = NilCell
	h.freeCount = 0
	for i := len(h.cells) - 1; i >= 0; i-- {
		cell := &h.cells[i]
		if !cell.used || !cell.mark {
			cell.used = false
			cell.mark = false
			cell.next = h.freeHead
			h.freeHead = Cell(i)
			h.freeCount++
		} else {
			cell.mark = false
		}
	}
}

// Reset clears the heap without freeing the underlying slab.
func (h *Heap) Reset() { h.rebuildFreeList() }

// VectorLen walks a VECTOR's list counting elements (used by
// VEC_NON_EMPTY); a 2D pair value always has length 2.
func (h *Heap) VectorLen(v Value) int {
	if v.Pair {
		return 2
	}
	n := 0
	c := v.Head
	for c != NilCell {
		n++
		c = h.cells[c].next
	}
	return n
}

// Elements materialises a VECTOR's values into a slice, in list order.
func (h *Heap) Elements(v Value) []Value {
	if v.Pair {
		return []Value{Float(v.F[0]), Float(v.F[1])}
	}
	var out []Value
	c := v.Head
	for c != NilCell {
		out = append(out, h.cells[c].val)
		c = h.cells[c].next
	}
	return out
}

// Append pushes val onto the tail of vec's list, allocating a new cell. A
// 2D pair is first copied into a two-element heap VECTOR, so appending to
// `[x y]` yields `[x y val]`.
// Because cells only ever point forward, append walks to the tail; this
// matches the source's APPEND opcode which is always O(n) per call too.
func (h *Heap) Append(vec Value, val Value) (Value, error) {
	if vec.Pair {
		promoted, err := h.BuildVector([]Value{Float(vec.F[0]), Float(vec.F[1])})
		if err != nil {
			return Value{}, err
		}
		vec = promoted
	}
	cell, err := h.Alloc(val, NilCell)
	if err != nil {
		return Value{}, err
	}
	if vec.Head == NilCell {
		vec.Head = cell
		return vec, nil
	}
	tail := vec.Head
	for h.cells[tail].next != NilCell {
		tail = h.cells[tail].next
	}
	h.cells[tail].next = cell
	return vec, nil
}

// SetAt overwrites the value at list position index of vec's cell chain in
// place, without reallocating — used by prng/values to write the advanced
// RNG state back into the handle vector the caller is still holding, the
// same way the source mutates its heap-allocated seni_prng_state in place.
func (h *Heap) SetAt(vec Value, index int, val Value) error {
	if vec.Pair {
		return errors.New(errors.Runtime, "cannot SetAt on a 2D pair")
	}
	c := vec.Head
	for i := 0; i < index && c != NilCell; i++ {
		c = h.cells[c].next
	}
	if c == NilCell {
		return errors.New(errors.Runtime, "SetAt index out of range")
	}
	h.cells[c].val = val
	return nil
}

// BuildVector allocates a fresh list holding elems, in order.
func (h *Heap) BuildVector(elems []Value) (Value, error) {
	v := EmptyVector()
	for _, e := range elems {
		var err error
		v, err = h.Append(v, e)
		if err != nil {
			return Value{}, err
		}
	}
	return v, nil
}
