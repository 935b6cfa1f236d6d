package main

import (
	"fmt"
	"strconv"

	"github.com/hf-ikea/popcorn/kernel/mem"
	"github.com/hf-ikea/popcorn/kernel/mem/vmm"
	"github.com/spf13/cobra"
)

var (
	mapAt       string
	mapSize     uint64
	mapWritable bool
	mapUnmap    bool
)

func init() {
	cmd := newMapCmd()
	cmd.Flags().StringVar(&mapAt, "at", "0x444444440000", "Virtual address of the first page")
	cmd.Flags().Uint64Var(&mapSize, "size", 16<<10, "Number of bytes to map")
	cmd.Flags().BoolVar(&mapWritable, "writable", true, "Map the pages writable")
	cmd.Flags().BoolVar(&mapUnmap, "unmap", false, "Unmap the range again after mapping it")
	rootCmd.AddCommand(cmd)
}

func newMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Map a range of pages and translate it back",
		Long: `The map command backs a virtual range with frames from simulated
physical memory, creating intermediate page tables as needed, and then
translates every page of the range through the new tables.

Example:
  memsim map --at 0x444444440000 --size 102400
  memsim map --at 0xffff800000000000 --size 8192 --unmap -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := strconv.ParseUint(mapAt, 0, 64)
			if err != nil {
				return fmt.Errorf("invalid --at address %q: %w", mapAt, err)
			}
			if _, kErr := mem.TryNewVirtAddr(start); kErr != nil {
				return fmt.Errorf("invalid --at address %q: %w", mapAt, kernelError(kErr))
			}

			return runKernel(func() error { return runMap(mem.NewVirtAddr(start)) })
		},
	}
	return cmd
}

// MapStats summarizes a map run.
type MapStats struct {
	Pages       uint64
	DataFrames  uint64
	TableFrames uint64
	Unmapped    uint64
}

func runMap(start mem.VirtAddr) (err error) {
	pm, err := newPhysMemory(physMem, reserved)
	if err != nil {
		return err
	}
	defer pm.release(&err)

	flags := vmm.FlagPresent
	if mapWritable {
		flags |= vmm.FlagRW
	}

	mapper := vmm.NewMapper(pm.top, pm.frames)
	pages := vmm.PageRange[mem.Size4KiB](start, mem.Size(mapSize))
	if kErr := mapper.MapRange(pages, flags); kErr != nil {
		return fmt.Errorf("failed to map %d pages at 0x%x: %w", pages.Len(), uint64(start), kernelError(kErr))
	}

	stats := MapStats{Pages: pages.Len()}
	for page := range pages.All() {
		phys, kErr := mapper.Translate(page.Address())
		if kErr != nil {
			return fmt.Errorf("page 0x%x did not translate: %w", uint64(page.Address()), kernelError(kErr))
		}
		printVerbose("0x%016x -> 0x%x\n", uint64(page.Address()), uint64(phys))
	}

	// One frame for the top-level table, one per page and the rest for
	// intermediate tables.
	stats.DataFrames = stats.Pages
	stats.TableFrames = pm.frames.AllocCount() - stats.Pages

	if mapUnmap {
		for page := range pages.All() {
			if _, kErr := mapper.Unmap(page); kErr != nil {
				return fmt.Errorf("failed to unmap page 0x%x: %w", uint64(page.Address()), kernelError(kErr))
			}
			stats.Unmapped++
		}

		if _, kErr := mapper.Translate(start); kErr != vmm.ErrInvalidMapping {
			return fmt.Errorf("page 0x%x still translates after unmap", uint64(start))
		}
	}

	printInfo("mapped %d pages at 0x%x (%s)\n", stats.Pages, uint64(start), flags.String())
	printInfo("frames used: %d data, %d page tables\n", stats.DataFrames, stats.TableFrames)
	if mapUnmap {
		printInfo("unmapped %d pages\n", stats.Unmapped)
	}
	return nil
}
