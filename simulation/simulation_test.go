package simulation

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tokei/datarecording"
	"github.com/sarchlab/tokei/sim"
	"github.com/sarchlab/tokei/tracing"
)

var _ = Describe("Simulation", func() {
	var s *Simulation

	BeforeEach(func() {
		s = MakeBuilder().
			WithoutMonitoring().
			WithVirtualTime().
			Build()
	})

	AfterEach(func() {
		s.Terminate()

		os.Remove("tokei_sim_" + s.ID() + ".sqlite3")
	})

	It("should expose its services", func() {
		Expect(s.ID()).ToNot(BeEmpty())
		Expect(s.Simulator()).ToNot(BeNil())
		Expect(s.DataRecorder()).ToNot(BeNil())
		Expect(s.Monitor()).To(BeNil())
	})

	It("should record dispatches and the run summary", func() {
		simulator := s.Simulator()

		_, err := simulator.Schedule(sim.Millisecond, func() {})
		Expect(err).ToNot(HaveOccurred())
		_, err = simulator.Schedule(2*sim.Millisecond, func() {})
		Expect(err).ToNot(HaveOccurred())

		Expect(s.Run()).To(Succeed())

		reader := datarecording.NewReader("tokei_sim_" + s.ID() + ".sqlite3")
		defer reader.Close()

		reader.MapTable("dispatches", tracing.DispatchRow{})
		reader.MapTable("runs", tracing.RunRow{})

		rows, total, err := reader.Query(context.Background(),
			"dispatches", datarecording.QueryParams{OrderBy: "Ts"})
		Expect(err).ToNot(HaveOccurred())
		Expect(total).To(Equal(2))

		first := rows[0].(*tracing.DispatchRow)
		Expect(first.Run).To(Equal(s.ID()))
		Expect(first.Ts).To(Equal(int64(sim.Millisecond)))

		runs, total, err := reader.Query(context.Background(),
			"runs", datarecording.QueryParams{})
		Expect(err).ToNot(HaveOccurred())
		Expect(total).To(Equal(1))

		summary := runs[0].(*tracing.RunRow)
		Expect(summary.Run).To(Equal(s.ID()))
		Expect(summary.Policy).To(Equal("BestEffort"))
		Expect(summary.Events).To(Equal(uint64(2)))
		Expect(summary.VirtualNs).To(Equal(int64(2 * sim.Millisecond)))
	})

	It("should drive extra tracers through the run lifecycle", func() {
		stats := tracing.NewStatsTracer()
		s.AttachTracer(stats)

		_, err := s.Simulator().Schedule(sim.Microsecond, func() {})
		Expect(err).ToNot(HaveOccurred())

		Expect(s.Run()).To(Succeed())

		Expect(stats.Count()).To(Equal(uint64(1)))
	})

	It("should run with the insertion queue backend", func() {
		alt := MakeBuilder().
			WithoutMonitoring().
			WithVirtualTime().
			WithInsertionQueue().
			Build()
		defer func() {
			alt.Terminate()
			os.Remove("tokei_sim_" + alt.ID() + ".sqlite3")
		}()

		dispatched := 0
		_, err := alt.Simulator().Schedule(sim.Microsecond, func() {
			dispatched++
		})
		Expect(err).ToNot(HaveOccurred())

		Expect(alt.Run()).To(Succeed())
		Expect(dispatched).To(Equal(1))
	})

	It("should refuse a monitor port when monitoring is disabled", func() {
		Expect(func() {
			MakeBuilder().WithoutMonitoring().WithMonitorPort(8080).Build()
		}).To(Panic())
	})

	It("should refuse the hard-limit policy in virtual time", func() {
		Expect(func() {
			MakeBuilder().
				WithoutMonitoring().
				WithVirtualTime().
				WithSyncPolicy(sim.SyncHardLimit).
				Build()
		}).To(Panic())
	})

	Context("with a custom output file", func() {
		var customSim *Simulation

		AfterEach(func() {
			if customSim != nil {
				customSim.Terminate()
				os.Remove("test_custom_output.sqlite3")
				customSim = nil
			}
		})

		It("should write to the named file", func() {
			customSim = MakeBuilder().
				WithoutMonitoring().
				WithVirtualTime().
				WithOutputFileName("test_custom_output").
				Build()

			_, err := os.Stat("test_custom_output.sqlite3")
			Expect(err).ToNot(HaveOccurred())
		})
	})
})
