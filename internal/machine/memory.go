package machine

import (
	"fortio.org/safecast"
)

// Provenance names the allocation a pointer was derived from. Zero means
// the pointer carries no provenance and cannot be used for access.
type Provenance uint32

// AbsByte is one byte of abstract memory.
type AbsByte struct {
	Init bool
	Val  byte
	Prov Provenance // set on the bytes of a stored pointer
}

// Pointer is an address together with its provenance.
type Pointer struct {
	Addr uint64
	Prov Provenance
}

type allocKind uint8

const (
	allocStack allocKind = iota
	allocHeap
	allocFn
)

func (k allocKind) String() string {
	switch k {
	case allocStack:
		return "stack"
	case allocHeap:
		return "heap"
	default:
		return "function"
	}
}

type allocation struct {
	kind  allocKind
	addr  uint64
	align int
	data  []AbsByte
	freed bool
}

type memory struct {
	next   uint64
	allocs []*allocation // indexed by Provenance-1
}

const memoryBase = 0x1000

func newMemory() *memory {
	return &memory{next: memoryBase}
}

func (m *memory) get(p Provenance) *allocation {
	if p == 0 || int(p) > len(m.allocs) {
		return nil
	}
	return m.allocs[p-1]
}

func (m *Machine) alloc(kind allocKind, size, align int) (Pointer, *UbError) {
	if size < 0 || align <= 0 || align&(align-1) != 0 {
		return Pointer{}, m.eb.makeError(UbBadDealloc, "invalid allocation of %d bytes aligned to %d", size, align)
	}
	mem := m.mem
	a := uint64(align)
	addr := (mem.next + a - 1) / a * a
	mem.allocs = append(mem.allocs, &allocation{
		kind:  kind,
		addr:  addr,
		align: align,
		data:  make([]AbsByte, size),
	})
	// Leave a gap so distinct allocations never share an address.
	mem.next = addr + uint64(size) + 1
	prov, err := safecast.Conv[Provenance](len(mem.allocs))
	if err != nil {
		return Pointer{}, m.eb.makeError(UbDangling, "too many allocations")
	}
	return Pointer{Addr: addr, Prov: prov}, nil
}

func (m *Machine) free(kind allocKind, ptr Pointer, size, align int) *UbError {
	a := m.mem.get(ptr.Prov)
	if a == nil {
		return m.eb.makeError(UbBadDealloc, "deallocation of pointer without provenance")
	}
	if a.freed {
		return m.eb.makeError(UbBadDealloc, "double free of %s allocation", a.kind)
	}
	if a.kind != kind {
		return m.eb.makeError(UbBadDealloc, "deallocation of %s memory as %s memory", a.kind, kind)
	}
	if ptr.Addr != a.addr {
		return m.eb.makeError(UbBadDealloc, "deallocation with pointer into the middle of an allocation")
	}
	if len(a.data) != size || a.align != align {
		return m.eb.makeError(UbBadDealloc, "deallocation with wrong layout: got size %d align %d, allocated with size %d align %d",
			size, align, len(a.data), a.align)
	}
	a.freed = true
	a.data = nil
	return nil
}

// access resolves a pointer to the bytes it may touch.
func (m *Machine) access(ptr Pointer, size, align int) ([]AbsByte, *UbError) {
	if ptr.Addr%uint64(align) != 0 {
		return nil, m.eb.makeError(UbMisaligned, "access at %#x requires alignment %d", ptr.Addr, align)
	}
	if size == 0 {
		return nil, nil
	}
	a := m.mem.get(ptr.Prov)
	if a == nil {
		return nil, m.eb.makeError(UbDangling, "access at %#x through pointer without provenance", ptr.Addr)
	}
	if a.freed {
		return nil, m.eb.makeError(UbDangling, "access to freed %s memory", a.kind)
	}
	if a.kind == allocFn {
		return nil, m.eb.makeError(UbDangling, "access to function memory")
	}
	if ptr.Addr < a.addr || ptr.Addr+uint64(size) > a.addr+uint64(len(a.data)) {
		return nil, m.eb.makeError(UbDangling, "access of %d bytes at %#x out of bounds of allocation [%#x, %#x)",
			size, ptr.Addr, a.addr, a.addr+uint64(len(a.data)))
	}
	off := ptr.Addr - a.addr
	return a.data[off : off+uint64(size)], nil
}

func (m *Machine) load(ptr Pointer, size, align int) ([]AbsByte, *UbError) {
	bytes, err := m.access(ptr, size, align)
	if err != nil {
		return nil, err
	}
	out := make([]AbsByte, size)
	copy(out, bytes)
	return out, nil
}

func (m *Machine) store(ptr Pointer, data []AbsByte, align int) *UbError {
	bytes, err := m.access(ptr, len(data), align)
	if err != nil {
		return err
	}
	copy(bytes, data)
	return nil
}

// inBounds reports whether addr lies within (or one past) the allocation.
func (m *Machine) inBounds(prov Provenance, addr uint64) bool {
	a := m.mem.get(prov)
	if a == nil || a.freed {
		return false
	}
	return addr >= a.addr && addr <= a.addr+uint64(len(a.data))
}

// liveHeap counts heap allocations that were never freed.
func (m *memory) liveHeap() int {
	n := 0
	for _, a := range m.allocs {
		if a.kind == allocHeap && !a.freed {
			n++
		}
	}
	return n
}
