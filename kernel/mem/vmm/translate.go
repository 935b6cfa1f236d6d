package vmm

import (
	"github.com/hf-ikea/popcorn/kernel"
	"github.com/hf-ikea/popcorn/kernel/kfmt"
	"github.com/hf-ikea/popcorn/kernel/mem"
)

// Translate returns the physical address that corresponds to the supplied
// virtual address or ErrInvalidMapping if the virtual address does not
// correspond to a mapped physical address. Encountering a huge page while
// walking the tables halts the kernel.
func Translate(top *PageTable, virtAddr mem.VirtAddr) (mem.PhysAddr, *kernel.Error) {
	var (
		physAddr mem.PhysAddr
		err      = ErrInvalidMapping
	)

	walk(top, virtAddr, func(pteLevel uint8, pte *PageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			return false
		}

		if pteLevel < mem.PageLevels-1 {
			if pte.HasFlags(FlagHugePage) {
				kfmt.Panic(errNoHugePageSupport)
				return false
			}
			return true
		}

		// Calculate the physical address by taking the physical frame address and
		// appending the offset from the virtual address
		physAddr = pte.Address().Add(uint64(virtAddr.PageOffset()))
		err = nil
		return true
	})

	return physAddr, err
}
