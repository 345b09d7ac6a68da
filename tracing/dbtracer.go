package tracing

import (
	"sync"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/tokei/datarecording"
)

// DispatchRow is the database row written for one dispatched event.
type DispatchRow struct {
	Run       string
	Ts        int64
	UID       uint64
	Context   uint32
	Realtime  int64
	Jitter    int64
	HandlerNs int64
}

// RunRow is the database row written for one completed run.
type RunRow struct {
	Run         string
	Policy      string
	HardLimitNs int64
	Events      uint64
	VirtualNs   int64
	WallNs      int64
}

// DBTracer stores the dispatch stream in a database. DBTracers can connect
// with different backends so that the rows can land in different types of
// databases (SQLite files, ClickHouse servers).
type DBTracer struct {
	mu      sync.Mutex
	backend datarecording.DataRecorder

	run Run
}

// NewDBTracer creates a DBTracer and prepares the dispatch and run tables on
// the backend.
func NewDBTracer(backend datarecording.DataRecorder) *DBTracer {
	backend.CreateTable("dispatches", DispatchRow{})
	backend.CreateTable("runs", RunRow{})

	t := &DBTracer{backend: backend}

	atexit.Register(func() { t.Terminate() })

	return t
}

// RunStart remembers the run so that later dispatch rows carry its id.
func (t *DBTracer) RunStart(run Run) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.run = run
}

// Dispatch buffers one dispatch row.
func (t *DBTracer) Dispatch(record Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.backend.InsertData("dispatches", DispatchRow{
		Run:       t.run.ID,
		Ts:        int64(record.Ts),
		UID:       record.UID,
		Context:   record.Context,
		Realtime:  int64(record.Realtime),
		Jitter:    int64(record.Jitter),
		HandlerNs: record.Handler.Nanoseconds(),
	})
}

// RunEnd writes the run summary row and flushes the backend.
func (t *DBTracer) RunEnd(run Run) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.backend.InsertData("runs", RunRow{
		Run:         run.ID,
		Policy:      run.Policy,
		HardLimitNs: int64(run.HardLimit),
		Events:      run.Events,
		VirtualNs:   int64(run.Virtual),
		WallNs:      run.Wall.Nanoseconds(),
	})

	t.backend.Flush()
}

// Terminate flushes whatever is still buffered.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.backend.Flush()
}
