package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/tokei/sim"
	"github.com/sarchlab/tokei/tracing"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure dispatch throughput or real-time jitter.",
	Long: "`bench --events N --spread D` schedules N empty events across D " +
		"of virtual time. Without --realtime the run is unpaced and the " +
		"dispatch throughput is reported; with --realtime the run is paced " +
		"by the wall clock and jitter percentiles are reported instead.",
	Run: func(cmd *cobra.Command, _ []string) {
		runBench(cmd)
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().Int("events", 100000, "Number of events to schedule")
	benchCmd.Flags().String("spread", "1s",
		"Virtual time to spread the events across")
	benchCmd.Flags().Bool("realtime", false,
		"Pace the run against the wall clock")
}

func runBench(cmd *cobra.Command) {
	events, _ := cmd.Flags().GetInt("events")
	spreadName, _ := cmd.Flags().GetString("spread")
	realtime, _ := cmd.Flags().GetBool("realtime")

	if events <= 0 {
		fatalf("the number of events must be positive")
	}

	spread, err := parseVTime(spreadName)
	if err != nil {
		fatalf("bad spread: %s", err)
	}

	builder := sim.MakeSimulatorBuilder()
	if !realtime {
		builder = builder.WithSynchronizer(sim.NewNullSynchronizer())
	}

	simulator := builder.Build()

	jitter := &jitterCollector{}
	if realtime {
		tracing.Attach(simulator, jitter)
	}

	for i := 0; i < events; i++ {
		_, err := simulator.Schedule(
			spread*sim.VTime(i)/sim.VTime(events), func() {})
		if err != nil {
			fatalf("scheduling: %s", err)
		}
	}

	if realtime {
		_, err = simulator.StopAfter(spread + sim.Millisecond)
		if err != nil {
			fatalf("scheduling the stop: %s", err)
		}
	}

	start := time.Now()

	err = simulator.Run()
	if err != nil {
		fatalf("running: %s", err)
	}

	wall := time.Since(start)

	if realtime {
		jitter.report(os.Stdout)
		return
	}

	fmt.Printf("Dispatched %d events in %s (%.0f events/s)\n",
		events, wall.Round(time.Millisecond),
		float64(events)/wall.Seconds())
}

// jitterCollector keeps every dispatch jitter so percentiles can be computed
// after the run.
type jitterCollector struct {
	jitters []sim.VTime
}

func (c *jitterCollector) RunStart(_ tracing.Run) {
	// Do nothing.
}

func (c *jitterCollector) Dispatch(r tracing.Record) {
	c.jitters = append(c.jitters, r.Jitter)
}

func (c *jitterCollector) RunEnd(_ tracing.Run) {
	// Do nothing.
}

func (c *jitterCollector) report(w io.Writer) {
	if len(c.jitters) == 0 {
		fmt.Fprintln(w, "No events dispatched.")
		return
	}

	sorted := make([]sim.VTime, len(c.jitters))
	copy(sorted, c.jitters)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	fmt.Fprintf(w, "Dispatched %d events\n", len(sorted))
	fmt.Fprintf(w, "jitter p50 %s  p90 %s  p99 %s  max %s\n",
		percentile(sorted, 50), percentile(sorted, 90),
		percentile(sorted, 99), sorted[len(sorted)-1])
}

// percentile returns the value at the given percentile of a sorted slice.
func percentile(sorted []sim.VTime, p int) sim.VTime {
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return sorted[idx]
}
