package vmm

import "github.com/hf-ikea/popcorn/kernel/mem"

// pageTableWalker is a function that can be passed to the walk method. The
// function receives the current page level and page table entry as its
// arguments. If the function returns false, then the page walk is aborted.
type pageTableWalker func(pteLevel uint8, pte *PageTableEntry) bool

// walk performs a page table walk for the given virtual address starting at
// the top-level table. It calls the supplied walkFn with the page table entry
// that corresponds to each page table level, level 0 being the top-level
// table. The walk stops early if walkFn returns false or if an intermediate
// entry does not point to a table once walkFn returns.
func walk(top *PageTable, virtAddr mem.VirtAddr, walkFn pageTableWalker) {
	table := top
	for level := uint8(0); level < mem.PageLevels; level++ {
		pte := table.Entry(virtAddr.LevelIndex(level))
		if !walkFn(level, pte) {
			return
		}

		if level == mem.PageLevels-1 {
			return
		}

		next, ok := pte.Table()
		if !ok {
			return
		}
		table = next
	}
}
