package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sarchlab/tokei/monitoring"
	"github.com/sarchlab/tokei/sim"
	"github.com/sarchlab/tokei/simulation"
	"github.com/sarchlab/tokei/tracing"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario file against the wall clock.",
	Long: "`run --scenario scenario.yaml` schedules the events listed in " +
		"the file, dispatches them paced by the wall clock, and prints a " +
		"per-event dispatch report.",
	Run: func(cmd *cobra.Command, _ []string) {
		runScenario(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("scenario", "", "Path to the scenario YAML file")
	runCmd.Flags().String("policy", "",
		"Synchronization policy: besteffort or hardlimit")
	runCmd.Flags().String("hard-limit", "",
		"Jitter bound for the hardlimit policy, such as 100ms")
	runCmd.Flags().Bool("monitor", false, "Start the monitoring server")
	runCmd.Flags().Bool("browser", false, "Open the dashboard in a browser")
	runCmd.Flags().String("output", "", "Recording file name")
	runCmd.Flags().String("clickhouse", "",
		"ClickHouse DSN to record to instead of a SQLite file")

	err := runCmd.MarkFlagRequired("scenario")
	if err != nil {
		panic(err)
	}
}

func runScenario(cmd *cobra.Command) {
	path, _ := cmd.Flags().GetString("scenario")

	scenario, err := LoadScenario(path)
	if err != nil {
		fatalf("%s", err)
	}

	s := buildSimulation(cmd, scenario)
	defer s.Terminate()

	report := &reportTracer{labels: make(map[uint64]string)}
	s.AttachTracer(report)

	stats := tracing.NewStatsTracer()
	s.AttachTracer(stats)

	total := scheduleScenario(s, scenario, report)

	if s.Monitor() != nil {
		bar := s.Monitor().CreateProgressBar("scenario", total)
		report.bar = bar
		defer s.Monitor().CompleteProgressBar(bar)
	}

	err = s.Run()
	if err != nil {
		fatalf("%s", err)
	}

	report.print(os.Stdout)
	printSummary(os.Stdout, s, stats)
}

func buildSimulation(
	cmd *cobra.Command,
	scenario *Scenario,
) *simulation.Simulation {
	builder := simulation.MakeBuilder()

	policyName := resolveOption(cmd, "policy", "TOKEI_POLICY", scenario.Policy)
	if policyName != "" {
		policy, err := parsePolicy(policyName)
		if err != nil {
			fatalf("%s", err)
		}

		builder = builder.WithSyncPolicy(policy)
	}

	limitName := resolveOption(
		cmd, "hard-limit", "TOKEI_HARD_LIMIT", scenario.HardLimit)
	if limitName != "" {
		limit, err := parseVTime(limitName)
		if err != nil {
			fatalf("bad hard limit: %s", err)
		}

		builder = builder.WithHardLimit(limit)
	}

	monitorOn, _ := cmd.Flags().GetBool("monitor")
	if monitorOn {
		if port := os.Getenv("TOKEI_MONITOR_PORT"); port != "" {
			p, err := strconv.Atoi(port)
			if err != nil {
				fatalf("TOKEI_MONITOR_PORT is not a number: %s", port)
			}

			builder = builder.WithMonitorPort(p)
		}

		browserOn, _ := cmd.Flags().GetBool("browser")
		if browserOn {
			builder = builder.WithBrowser()
		}
	} else {
		builder = builder.WithoutMonitoring()
	}

	output, _ := cmd.Flags().GetString("output")
	dsn, _ := cmd.Flags().GetString("clickhouse")

	if output != "" && dsn != "" {
		fatalf("--output and --clickhouse cannot be combined")
	}

	if output != "" {
		builder = builder.WithOutputFileName(output)
	}

	if dsn != "" {
		builder = builder.WithClickHouse(dsn)
	}

	return builder.Build()
}

// resolveOption picks the flag when set, then the environment variable, then
// the scenario value.
func resolveOption(cmd *cobra.Command, flag, env, fromScenario string) string {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetString(flag)
		return v
	}

	if v := os.Getenv(env); v != "" {
		return v
	}

	return fromScenario
}

// scheduleScenario queues every event the scenario lists, plus the stop that
// ends the run one millisecond after the last of them. It returns the number
// of scheduled events, the stop included.
func scheduleScenario(
	s *simulation.Simulation,
	scenario *Scenario,
	report *reportTracer,
) uint64 {
	simulator := s.Simulator()

	var total uint64
	var last sim.VTime

	scheduleOne := func(at sim.VTime, context *uint32, label string) {
		var (
			id  sim.EventID
			err error
		)

		if context != nil {
			id, err = simulator.ScheduleWithContext(*context, at, func() {})
		} else {
			id, err = simulator.Schedule(at, func() {})
		}

		if err != nil {
			fatalf("scheduling %s: %s", label, err)
		}

		report.labels[id.UID()] = label

		total++
		if at > last {
			last = at
		}
	}

	for i, e := range scenario.Events {
		at, _ := parseVTime(e.At)

		label := e.Label
		if label == "" {
			label = fmt.Sprintf("event-%d", i)
		}

		scheduleOne(at, e.Context, label)
	}

	for i, p := range scenario.Periodic {
		start, _ := parseVTime(p.Start)
		interval, _ := parseVTime(p.Interval)

		label := p.Label
		if label == "" {
			label = fmt.Sprintf("periodic-%d", i)
		}

		for k := 0; k < p.Count; k++ {
			scheduleOne(start+sim.VTime(k)*interval, nil,
				fmt.Sprintf("%s[%d]", label, k))
		}
	}

	id, err := simulator.StopAfter(last + sim.Millisecond)
	if err != nil {
		fatalf("scheduling the stop: %s", err)
	}

	report.labels[id.UID()] = "stop"
	total++

	return total
}

// reportTracer collects every dispatch so the run can be reported after the
// fact. The labels map is filled at scheduling time and read after the run,
// so it needs no lock.
type reportTracer struct {
	labels  map[uint64]string
	records []tracing.Record
	bar     *monitoring.ProgressBar
}

func (t *reportTracer) RunStart(_ tracing.Run) {
	// Do nothing.
}

func (t *reportTracer) Dispatch(r tracing.Record) {
	t.records = append(t.records, r)

	if t.bar != nil {
		t.bar.IncrementFinished(1)
	}
}

func (t *reportTracer) RunEnd(_ tracing.Run) {
	// Do nothing.
}

func (t *reportTracer) print(w io.Writer) {
	fmt.Fprintf(w, "%-20s %14s %14s %12s %12s\n",
		"EVENT", "AT", "REALTIME", "JITTER", "HANDLER")

	for _, r := range t.records {
		label := t.labels[r.UID]
		if label == "" {
			label = fmt.Sprintf("uid-%d", r.UID)
		}

		fmt.Fprintf(w, "%-20s %14s %14s %12s %12s\n",
			label, r.Ts, r.Realtime, r.Jitter, r.Handler)
	}
}

func printSummary(
	w io.Writer,
	s *simulation.Simulation,
	stats *tracing.StatsTracer,
) {
	fmt.Fprintf(w, "\nRun %s: %d events, virtual time %s\n",
		s.ID(), stats.Count(), s.Simulator().Now())
	fmt.Fprintf(w, "jitter avg %s max %s, handler avg %s\n",
		stats.AverageJitter(), stats.MaxJitter(), stats.AverageHandlerTime())
}
