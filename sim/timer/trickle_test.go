package timer

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tokei/sim"
)

var _ = Describe("TrickleTimer", func() {
	const unit = sim.Microsecond

	var (
		s         *sim.Simulator
		trickle   *TrickleTimer
		collect   bool
		fireTimes []sim.VTime
	)

	BeforeEach(func() {
		s = newVirtualSimulator()
		collect = false
		fireTimes = nil

		trickle = NewTrickleTimer(s, unit, 4, 1)
		trickle.SetFunction(func() {
			if collect {
				fireTimes = append(fireTimes, s.Now())
			}
		})
	})

	It("should recompute its doublings from the interval bounds", func() {
		Expect(trickle.Doublings()).To(Equal(4))
		Expect(trickle.IntervalMin()).To(Equal(unit))
		Expect(trickle.IntervalMax()).To(Equal(16 * unit))
		Expect(trickle.Redundancy()).To(Equal(1))
	})

	It("should settle into firing gaps within [Imax/2, Imax+Imax/2]", func() {
		trickle.Enable()
		trickle.Reset()

		// The transient is over after (2^(doublings+1) - 1) minimum
		// intervals at the latest.
		_, err := s.Schedule(31*unit, func() { collect = true })
		Expect(err).To(BeNil())
		_, err = s.StopAfter(50000 * unit)
		Expect(err).To(BeNil())

		Expect(s.Run()).To(Succeed())

		Expect(len(fireTimes)).To(BeNumerically(">", 1))
		for i := 1; i < len(fireTimes); i++ {
			gap := fireTimes[i] - fireTimes[i-1]
			Expect(gap).To(BeNumerically(">=", 8*unit))
			Expect(gap).To(BeNumerically("<=", 24*unit))
		}
	})

	It("should suppress its firing under redundant consistent events", func() {
		trickle.Enable()
		trickle.Reset()

		var consistent func()
		consistent = func() {
			trickle.ConsistentEvent()
			_, err := s.Schedule(8*unit, consistent)
			Expect(err).To(BeNil())
		}

		_, err := s.Schedule(31*unit, func() {
			collect = true
			consistent()
		})
		Expect(err).To(BeNil())
		_, err = s.StopAfter(50000 * unit)
		Expect(err).To(BeNil())

		Expect(s.Run()).To(Succeed())

		Expect(fireTimes).To(BeEmpty())
	})

	It("should fall back to the minimum interval on an inconsistency", func() {
		trickle.Enable()
		trickle.Reset()

		var resetAt sim.VTime
		_, err := s.Schedule(100*unit, func() {
			collect = true
			resetAt = s.Now()
			trickle.InconsistentEvent()
		})
		Expect(err).To(BeNil())
		_, err = s.StopAfter(200 * unit)
		Expect(err).To(BeNil())

		Expect(s.Run()).To(Succeed())

		Expect(fireTimes).NotTo(BeEmpty())
		Expect(fireTimes[0] - resetAt).To(BeNumerically(">=", unit/2))
		Expect(fireTimes[0] - resetAt).To(BeNumerically("<", unit))
	})

	It("should go quiet after a stop", func() {
		trickle.Enable()
		trickle.Reset()
		collect = true

		_, err := s.Schedule(50*unit, trickle.Stop)
		Expect(err).To(BeNil())

		Expect(s.Run()).To(Succeed())

		for _, ts := range fireTimes {
			Expect(ts).To(BeNumerically("<=", 50*unit))
		}
	})

	It("should refuse to be enabled without a function", func() {
		bare := NewTrickleTimer(s, unit, 4, 1)

		Expect(func() { bare.Enable() }).To(Panic())
	})

	It("should refuse to reset while disabled", func() {
		Expect(func() { trickle.Reset() }).To(Panic())
	})

	It("should reject bad parameters", func() {
		Expect(func() { NewTrickleTimer(s, 0, 4, 1) }).To(Panic())
		Expect(func() { NewTrickleTimer(s, unit, 63, 1) }).To(Panic())
		Expect(func() { NewTrickleTimer(s, unit, 4, -1) }).To(Panic())
	})
})
