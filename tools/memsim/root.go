package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	physMem  uint64
	reserved uint64
	verbose  bool
	quiet    bool
)

var rootCmd = &cobra.Command{
	Use:   "memsim",
	Short: "Run the kernel memory manager on simulated memory",
	Long: `memsim runs the kernel's frame allocator, page table mapper and heap
allocators against an anonymous host mapping that stands in for physical
memory. Kernel log output is prefixed with "kernel: ".`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().Uint64Var(&physMem, "phys-mem", 4<<20, "Size of simulated physical memory in bytes")
	rootCmd.PersistentFlags().
		Uint64Var(&reserved, "reserved", 64<<10, "Bytes at the start of physical memory reported as reserved")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}
