package tracing

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	gomock "go.uber.org/mock/gomock"

	"github.com/sarchlab/tokei/sim"
)

var _ = Describe("DBTracer", func() {
	var (
		mockCtrl *gomock.Controller
		backend  *MockDataRecorder
		tracer   *DBTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		backend = NewMockDataRecorder(mockCtrl)

		backend.EXPECT().CreateTable("dispatches", DispatchRow{})
		backend.EXPECT().CreateTable("runs", RunRow{})

		tracer = NewDBTracer(backend)
	})

	It("should store dispatch rows under the current run", func() {
		backend.EXPECT().InsertData("dispatches", DispatchRow{
			Run:       "run-1",
			Ts:        1500,
			UID:       3,
			Context:   7,
			Realtime:  1600,
			Jitter:    100,
			HandlerNs: 250,
		})

		tracer.RunStart(Run{ID: "run-1"})
		tracer.Dispatch(Record{
			Ts:       1500,
			UID:      3,
			Context:  7,
			Realtime: 1600,
			Jitter:   100,
			Handler:  250 * time.Nanosecond,
		})
	})

	It("should write the run summary and flush on run end", func() {
		backend.EXPECT().InsertData("runs", RunRow{
			Run:         "run-1",
			Policy:      "BestEffort",
			HardLimitNs: 0,
			Events:      10,
			VirtualNs:   5000000,
			WallNs:      7000000,
		})
		backend.EXPECT().Flush()

		tracer.RunEnd(Run{
			ID:      "run-1",
			Policy:  "BestEffort",
			Events:  10,
			Virtual: 5 * sim.Millisecond,
			Wall:    7 * time.Millisecond,
		})
	})

	It("should flush on terminate", func() {
		backend.EXPECT().Flush()

		tracer.Terminate()
	})
})
