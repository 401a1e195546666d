package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/arena"
	"github.com/joshuapare/heapkit/heap/trace"
	"github.com/joshuapare/heapkit/internal/format"
)

var (
	replayArena  string
	replayLimit  int
	replayChunk  uint32
	replayCheck  bool
	replayTiming bool
)

func init() {
	cmd := newReplayCmd()
	cmd.Flags().StringVar(&replayArena, "arena", string(arena.KindMemory), "Arena provider: memory or mmap")
	cmd.Flags().IntVar(&replayLimit, "limit", arena.DefaultLimit, "Maximum arena size in bytes")
	cmd.Flags().Uint32Var(&replayChunk, "chunk", format.DefaultChunkSize, "Bytes to grow the arena by when no block fits")
	cmd.Flags().BoolVar(&replayCheck, "check", true, "Run the heap checker after every request")
	cmd.Flags().BoolVar(&replayTiming, "timing", true, "Time a second, unvalidated pass for throughput")
	rootCmd.AddCommand(cmd)
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <trace>...",
		Short: "Replay allocation traces and report utilization",
		Long: `The replay command runs each trace file against a fresh heap, validating
every returned block (alignment, bounds, overlap, preserved contents) and,
with --check, the full heap structure after each request. It reports peak
space utilization per trace and an overall performance index.

Example:
  heapctl replay traces/*.rep
  heapctl replay --arena mmap --limit 67108864 short1.rep
  heapctl replay --check=false --json traces/*.rep`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(args)
		},
	}
	return cmd
}

// TraceReport is the per-trace row of the replay output.
type TraceReport struct {
	Path        string  `json:"path"`
	Valid       bool    `json:"valid"`
	Ops         int     `json:"ops,omitempty"`
	PeakPayload int64   `json:"peak_payload,omitempty"`
	HeapSize    int     `json:"heap_size,omitempty"`
	Utilization float64 `json:"utilization"`
	Seconds     float64 `json:"seconds,omitempty"`
	Throughput  float64 `json:"throughput,omitempty"`
	GrowCalls   int     `json:"grow_calls,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// ReplayReport is the full replay output.
type ReplayReport struct {
	Arena   string        `json:"arena"`
	Traces  []TraceReport `json:"traces"`
	Summary trace.Summary `json:"summary"`
}

var errTracesFailed = errors.New("traces failed")

func runReplay(args []string) error {
	provider, err := arena.New(arena.Kind(replayArena), replayLimit)
	if err != nil {
		return fmt.Errorf("failed to create arena: %w", err)
	}
	defer provider.Close()

	heap := alloc.New(provider,
		alloc.WithChunkSize(replayChunk),
		alloc.WithLogger(logger),
	)
	opts := &trace.Options{CheckHeap: replayCheck, Timing: replayTiming, Logger: logger}

	report := ReplayReport{Arena: replayArena}
	var results []*trace.Result
	failed := 0
	for _, path := range args {
		printVerbose("Replaying %s\n", path)
		row, res := replayOne(heap, path, opts)
		report.Traces = append(report.Traces, row)
		if res == nil {
			failed++
			continue
		}
		results = append(results, res)
	}
	report.Summary = trace.Summarize(results)

	if jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		printReport(report)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d %w", failed, len(args), errTracesFailed)
	}
	return nil
}

func replayOne(heap *alloc.Allocator, path string, opts *trace.Options) (TraceReport, *trace.Result) {
	row := TraceReport{Path: path}

	tr, err := trace.ParseFile(path)
	if err != nil {
		row.Error = err.Error()
		return row, nil
	}
	if err := heap.Reset(); err != nil {
		row.Error = err.Error()
		return row, nil
	}
	res, err := trace.Replay(heap, tr, opts)
	if err != nil {
		logger.Error("trace failed", "path", path, "err", err)
		row.Error = err.Error()
		return row, nil
	}

	row.Valid = true
	row.Ops = res.Ops
	row.PeakPayload = res.PeakPayload
	row.HeapSize = res.HeapSize
	row.Utilization = res.Utilization
	row.Seconds = res.Elapsed.Seconds()
	row.Throughput = res.Throughput
	row.GrowCalls = res.Stats.GrowCalls
	return row, res
}

func printReport(r ReplayReport) {
	printInfo("%-24s %5s %6s %8s %10s %12s\n", "trace", "valid", "util", "ops", "secs", "Kops")
	for _, t := range r.Traces {
		if !t.Valid {
			printInfo("%-24s %5s %6s %8s %10s %12s\n", t.Path, "no", "-", "-", "-", "-")
			continue
		}
		printInfo("%-24s %5s %5.0f%% %8d %10.6f %12.0f\n",
			t.Path, "yes", 100*t.Utilization, t.Ops, t.Seconds, t.Throughput/1e3)
		printVerbose("  peak %s in a %s heap, %d grow calls\n",
			formatBytes(t.PeakPayload), formatBytes(int64(t.HeapSize)), t.GrowCalls)
	}

	s := r.Summary
	printInfo("%-24s %5d %5.0f%% %8d %10s %12.0f\n",
		"Total", s.Traces, 100*s.Utilization, s.Ops, "", s.Throughput/1e3)
	printInfo("\nPerf index = %.0f (util) + %.0f (thru) = %.0f/100\n",
		100*trace.UtilWeight*s.Utilization,
		100*(s.Index-trace.UtilWeight*s.Utilization),
		100*s.Index)

	for _, t := range r.Traces {
		if t.Error != "" {
			printInfo("\n%s: %s\n", t.Path, t.Error)
		}
	}
}
