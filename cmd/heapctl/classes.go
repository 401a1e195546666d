package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/internal/format"
)

func init() {
	rootCmd.AddCommand(newClassesCmd())
}

func newClassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "Print the free-list size class table",
		Long: `The classes command prints every segregated free list with the range of
block sizes (header included) it holds.

Example:
  heapctl classes
  heapctl classes --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses()
		},
	}
}

// SizeClass is one row of the class table. Max is 0 for the unbounded class.
type SizeClass struct {
	Class int    `json:"class"`
	Min   uint32 `json:"min"`
	Max   uint32 `json:"max,omitempty"`
}

func sizeClasses() []SizeClass {
	classes := make([]SizeClass, 0, format.NumClasses)
	lo := uint32(format.MinBlockSize)
	for c := range format.NumClasses {
		hi, _ := alloc.ClassBound(c)
		classes = append(classes, SizeClass{Class: c, Min: lo, Max: hi})
		lo = hi + 1
	}
	return classes
}

func runClasses() error {
	classes := sizeClasses()
	if jsonOut {
		return printJSON(classes)
	}

	printInfo("%-6s %10s %10s\n", "class", "min", "max")
	for _, c := range classes {
		if c.Max == 0 {
			printInfo("%-6d %10d %10s\n", c.Class, c.Min, "-")
			continue
		}
		printInfo("%-6d %10d %10d\n", c.Class, c.Min, c.Max)
	}
	return nil
}
