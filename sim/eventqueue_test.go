package sim

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("HeapQueue", func() {
	var queue *HeapQueue

	BeforeEach(func() {
		queue = NewHeapQueue()
	})

	It("should pop in timestamp order, breaking ties by uid", func() {
		numEvents := 100
		for i := 0; i < numEvents; i++ {
			id := MakeEventID(
				NewEventImpl(func() {}),
				VTime(rand.Int63n(20))*Millisecond,
				NoContext,
				UIDFirst+uint64(i),
			)
			queue.Insert(id)
		}

		prevTs := VTime(-1)
		prevUID := uint64(0)
		for i := 0; i < numEvents; i++ {
			id := queue.RemoveNext()

			if id.Ts() == prevTs {
				Expect(id.UID()).To(BeNumerically(">", prevUID))
			} else {
				Expect(id.Ts()).To(BeNumerically(">", prevTs))
			}

			prevTs = id.Ts()
			prevUID = id.UID()
		}

		Expect(queue.IsEmpty()).To(BeTrue())
	})

	It("should peek without removing", func() {
		queue.Insert(MakeEventID(NewEventImpl(func() {}), 2*Second, NoContext, 4))
		queue.Insert(MakeEventID(NewEventImpl(func() {}), 1*Second, NoContext, 5))

		Expect(queue.PeekNext().Ts()).To(Equal(1 * Second))
		Expect(queue.Len()).To(Equal(2))
	})

	It("should remove an event by uid", func() {
		first := MakeEventID(NewEventImpl(func() {}), 1*Second, NoContext, 3)
		second := MakeEventID(NewEventImpl(func() {}), 2*Second, NoContext, 4)
		third := MakeEventID(NewEventImpl(func() {}), 3*Second, NoContext, 5)
		queue.Insert(first)
		queue.Insert(second)
		queue.Insert(third)

		Expect(queue.Remove(second)).To(BeTrue())
		Expect(queue.Len()).To(Equal(2))
		Expect(queue.RemoveNext()).To(Equal(first))
		Expect(queue.RemoveNext()).To(Equal(third))
	})

	It("should report removal of an unknown event", func() {
		queue.Insert(MakeEventID(NewEventImpl(func() {}), 1*Second, NoContext, 3))

		unknown := MakeEventID(NewEventImpl(func() {}), 1*Second, NoContext, 99)
		Expect(queue.Remove(unknown)).To(BeFalse())
		Expect(queue.Len()).To(Equal(1))
	})
})

var _ = Describe("InsertionQueue", func() {
	var queue *InsertionQueue

	BeforeEach(func() {
		queue = NewInsertionQueue()
	})

	It("should pop in timestamp order, breaking ties by uid", func() {
		numEvents := 100
		for i := 0; i < numEvents; i++ {
			id := MakeEventID(
				NewEventImpl(func() {}),
				VTime(rand.Int63n(20))*Millisecond,
				NoContext,
				UIDFirst+uint64(i),
			)
			queue.Insert(id)
		}

		prevTs := VTime(-1)
		prevUID := uint64(0)
		for i := 0; i < numEvents; i++ {
			id := queue.RemoveNext()

			if id.Ts() == prevTs {
				Expect(id.UID()).To(BeNumerically(">", prevUID))
			} else {
				Expect(id.Ts()).To(BeNumerically(">", prevTs))
			}

			prevTs = id.Ts()
			prevUID = id.UID()
		}

		Expect(queue.IsEmpty()).To(BeTrue())
	})

	It("should keep insertion order among same-time events", func() {
		for i := 0; i < 10; i++ {
			queue.Insert(MakeEventID(
				NewEventImpl(func() {}), Second, NoContext, UIDFirst+uint64(i)))
		}

		for i := 0; i < 10; i++ {
			Expect(queue.RemoveNext().UID()).To(Equal(UIDFirst + uint64(i)))
		}
	})

	It("should remove an event by uid", func() {
		first := MakeEventID(NewEventImpl(func() {}), 1*Second, NoContext, 3)
		second := MakeEventID(NewEventImpl(func() {}), 2*Second, NoContext, 4)
		queue.Insert(first)
		queue.Insert(second)

		Expect(queue.Remove(first)).To(BeTrue())
		Expect(queue.Remove(first)).To(BeFalse())
		Expect(queue.RemoveNext()).To(Equal(second))
		Expect(queue.IsEmpty()).To(BeTrue())
	})
})
