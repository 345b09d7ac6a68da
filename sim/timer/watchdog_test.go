package timer

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tokei/sim"
)

var _ = Describe("Watchdog", func() {
	var (
		s     *sim.Simulator
		w     *Watchdog
		fired []sim.VTime
	)

	BeforeEach(func() {
		s = newVirtualSimulator()
		w = NewWatchdog(s)
		fired = nil
		w.SetFunction(func() { fired = append(fired, s.Now()) })
	})

	It("should fire when not pinged in time", func() {
		w.Ping(5 * sim.Millisecond)

		Expect(s.Run()).To(Succeed())

		Expect(fired).To(Equal([]sim.VTime{5 * sim.Millisecond}))
	})

	It("should push the deadline out on every ping", func() {
		w.Ping(5 * sim.Millisecond)
		_, err := s.Schedule(3*sim.Millisecond, func() {
			w.Ping(5 * sim.Millisecond)
		})
		Expect(err).To(BeNil())

		Expect(s.Run()).To(Succeed())

		Expect(fired).To(Equal([]sim.VTime{8 * sim.Millisecond}))
	})

	It("should never move the deadline closer", func() {
		w.Ping(10 * sim.Millisecond)
		w.Ping(sim.Millisecond)

		Expect(s.Run()).To(Succeed())

		Expect(fired).To(Equal([]sim.VTime{10 * sim.Millisecond}))
	})

	It("should re-arm after firing", func() {
		w.Ping(5 * sim.Millisecond)
		_, err := s.Schedule(10*sim.Millisecond, func() {
			w.Ping(2 * sim.Millisecond)
		})
		Expect(err).To(BeNil())

		Expect(s.Run()).To(Succeed())

		Expect(fired).To(Equal([]sim.VTime{
			5 * sim.Millisecond, 12 * sim.Millisecond,
		}))
	})

	It("should refuse to be pinged with no function set", func() {
		bare := NewWatchdog(s)

		Expect(func() { bare.Ping(sim.Millisecond) }).To(Panic())
	})
})
