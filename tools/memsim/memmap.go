package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newMemmapCmd())
}

func newMemmapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memmap",
		Short: "Print the memory map handed to the frame allocator",
		Long: `The memmap command builds simulated physical memory, describes it the
way a bootloader would and prints the map as seen by the frame allocator.

Example:
  memsim memmap
  memsim memmap --phys-mem 16777216 --reserved 1048576`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKernel(runMemmap)
		},
	}
	return cmd
}

func runMemmap() (err error) {
	pm, err := newPhysMemory(physMem, reserved)
	if err != nil {
		return err
	}
	defer pm.release(&err)

	pm.frames.PrintMemoryMap()
	return nil
}
