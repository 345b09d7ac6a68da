// Package simulation wires a simulator together with the services around
// it: a data recorder, tracers, and the monitoring server.
package simulation

import (
	"time"

	"github.com/sarchlab/tokei/datarecording"
	"github.com/sarchlab/tokei/monitoring"
	"github.com/sarchlab/tokei/sim"
	"github.com/sarchlab/tokei/tracing"
)

// A Simulation bundles a simulator with its recorder, tracers, and monitor.
type Simulation struct {
	id string

	simulator    *sim.Simulator
	dataRecorder datarecording.DataRecorder
	dbTracer     *tracing.DBTracer
	ringTracer   *tracing.RingTracer
	monitor      *monitoring.Monitor
	tracers      []tracing.Tracer
}

// ID returns the id of the simulation. It also tags the rows the tracers
// record, so runs sharing one database stay distinguishable.
func (s *Simulation) ID() string {
	return s.id
}

// Simulator returns the simulator driving the simulation.
func (s *Simulation) Simulator() *sim.Simulator {
	return s.simulator
}

// DataRecorder returns the data recorder used in the simulation.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// Monitor returns the monitor used in the simulation. It is nil when the
// simulation is built without monitoring.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// RingTracer returns the tracer behind the monitor's recent-dispatches
// view. It is nil when the simulation is built without monitoring.
func (s *Simulation) RingTracer() *tracing.RingTracer {
	return s.ringTracer
}

// AttachTracer registers an extra tracer with the simulator and includes it
// in the run lifecycle.
func (s *Simulation) AttachTracer(t tracing.Tracer) {
	tracing.Attach(s.simulator, t)
	s.tracers = append(s.tracers, t)
}

// Run drives the simulator until it stops, then records the run summary.
func (s *Simulation) Run() error {
	run := tracing.Run{
		ID:        s.id,
		Policy:    s.simulator.Policy().String(),
		HardLimit: s.simulator.HardLimit(),
	}

	for _, t := range s.tracers {
		t.RunStart(run)
	}

	start := time.Now()
	startCount := s.simulator.EventCount()

	err := s.simulator.Run()
	if err != nil {
		return err
	}

	run.Events = s.simulator.EventCount() - startCount
	run.Virtual = s.simulator.Now()
	run.Wall = time.Since(start)

	for _, t := range s.tracers {
		t.RunEnd(run)
	}

	return nil
}

// Terminate flushes and closes the services behind the simulation. The
// simulation must not be used afterwards.
func (s *Simulation) Terminate() {
	s.dataRecorder.Close()
}
