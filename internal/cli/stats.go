package cli

import (
	"fmt"
	"io"

	"github.com/nomdev/corbo/internal/metrics"
)

// printStats displays the statistics collected during the command.
func printStats(w io.Writer, s metrics.Snapshot) {
	ops := s.Operations()
	if len(ops) == 0 {
		return
	}

	fmt.Fprintf(w, "\nStatistics (this command)\n")
	fmt.Fprintf(w, "═════════════════════════\n")
	fmt.Fprintf(w, "Uptime: %.1f seconds\n", s.UptimeSeconds)

	for _, op := range ops {
		fmt.Fprintf(w, "\n%s:\n", op.Name)
		printOpStats(w, op.Stats)
		printFrameStats(w, op.Stats)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(w io.Writer, op *metrics.OperationSnapshot) {
	fmt.Fprintf(w, "  Calls: %d, Errors: %d, Total: %dms\n", op.Count, op.Errors, op.TotalTimeMs)
	fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printFrameStats displays frame statistics if available.
func printFrameStats(w io.Writer, op *metrics.OperationSnapshot) {
	if op.TotalFrames == nil {
		return
	}
	fmt.Fprintf(w, "  Frames: %d total", *op.TotalFrames)
	if op.AvgFrames != nil {
		fmt.Fprintf(w, ", avg %.0f", *op.AvgFrames)
	}
	if op.MinFrames != nil && op.MaxFrames != nil {
		fmt.Fprintf(w, ", min %d, max %d", *op.MinFrames, *op.MaxFrames)
	}
	if op.DroppedFrames != nil && *op.DroppedFrames > 0 {
		fmt.Fprintf(w, ", dropped %d", *op.DroppedFrames)
	}
	fmt.Fprintln(w)
}
