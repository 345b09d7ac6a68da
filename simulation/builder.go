package simulation

import (
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/tokei/datarecording"
	"github.com/sarchlab/tokei/monitoring"
	"github.com/sarchlab/tokei/sim"
	"github.com/sarchlab/tokei/tracing"
)

// recentDispatches is the capacity of the ring tracer that backs the
// monitor's recent-dispatches view.
const recentDispatches = 64

// Builder can be used to build a simulation.
type Builder struct {
	policy         sim.SyncPolicy
	hardLimit      sim.VTime
	virtualTime    bool
	insertionQueue bool
	outputFileName string
	clickhouseDSN  string
	monitorOn      bool
	monitorPort    int
	browserOn      bool
	tracingOn      bool
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		policy:    sim.SyncBestEffort,
		monitorOn: true,
		tracingOn: true,
	}
}

// WithSyncPolicy sets how the simulator reacts when the wall clock and the
// event timeline drift apart.
func (b Builder) WithSyncPolicy(p sim.SyncPolicy) Builder {
	b.policy = p
	return b
}

// WithHardLimit sets the jitter bound enforced under the hard-limit policy.
func (b Builder) WithHardLimit(limit sim.VTime) Builder {
	b.hardLimit = limit
	return b
}

// WithVirtualTime makes the simulation run unpaced, dispatching events as
// fast as possible.
func (b Builder) WithVirtualTime() Builder {
	b.virtualTime = true
	return b
}

// WithInsertionQueue selects the list-based scheduler backend, which is
// faster when most events are scheduled near the queue head.
func (b Builder) WithInsertionQueue() Builder {
	b.insertionQueue = true
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithClickHouse records to a ClickHouse server instead of a local SQLite
// file.
func (b Builder) WithClickHouse(dsn string) Builder {
	b.clickhouseDSN = dsn
	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithBrowser opens the monitoring dashboard in the default browser.
func (b Builder) WithBrowser() Builder {
	b.browserOn = true
	return b
}

// WithoutTracing disables the database tracer, so dispatches are not
// recorded.
func (b Builder) WithoutTracing() Builder {
	b.tracingOn = false
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if !b.monitorOn && b.browserOn {
		panic("browser cannot be opened when monitoring is disabled")
	}

	if b.clickhouseDSN != "" && b.outputFileName != "" {
		panic("output file name cannot be set when recording to ClickHouse")
	}

	if b.virtualTime && b.policy == sim.SyncHardLimit {
		panic("the hard-limit policy needs real-time pacing")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{}
	s.id = xid.New().String()

	s.dataRecorder = b.buildRecorder(s.id)
	s.simulator = b.buildSimulator()

	// Invariant violations exit through atexit, so the recorder's
	// registered flush still writes what the run produced so far.
	s.simulator.SetFatalHandler(atexit.Fatalf)

	if b.tracingOn {
		s.dbTracer = tracing.NewDBTracer(s.dataRecorder)
		tracing.Attach(s.simulator, s.dbTracer)
		s.tracers = append(s.tracers, s.dbTracer)
	}

	if b.monitorOn {
		b.buildMonitor(s)
	}

	return s
}

func (b Builder) buildRecorder(id string) datarecording.DataRecorder {
	if b.clickhouseDSN != "" {
		return datarecording.NewClickHouse(b.clickhouseDSN)
	}

	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "tokei_sim_" + id
	}

	return datarecording.New(outputPath)
}

func (b Builder) buildSimulator() *sim.Simulator {
	sb := sim.MakeSimulatorBuilder().WithSyncPolicy(b.policy)

	if b.hardLimit > 0 {
		sb = sb.WithHardLimit(b.hardLimit)
	}

	if b.virtualTime {
		sb = sb.WithSynchronizer(sim.NewNullSynchronizer())
	}

	if b.insertionQueue {
		sb = sb.WithEventQueue(sim.NewInsertionQueue())
	}

	return sb.Build()
}

func (b Builder) buildMonitor(s *Simulation) {
	s.ringTracer = tracing.NewRingTracer(recentDispatches)
	tracing.Attach(s.simulator, s.ringTracer)
	s.tracers = append(s.tracers, s.ringTracer)

	s.monitor = monitoring.NewMonitor()

	if b.monitorPort > 0 {
		s.monitor.WithPortNumber(b.monitorPort)
	}

	if b.browserOn {
		s.monitor.WithBrowser()
	}

	s.monitor.RegisterSimulator(s.simulator)
	s.monitor.RegisterRingTracer(s.ringTracer)
	s.monitor.RegisterObservable("simulator", s.simulator)
	s.monitor.StartServer()
}
