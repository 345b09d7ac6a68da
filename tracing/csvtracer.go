package tracing

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// CSVTracer writes the dispatch stream into a CSV file, one row per
// dispatched event.
type CSVTracer struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *csv.Writer

	run Run
}

// NewCSVTracer creates a CSVTracer writing to the path plus a ".csv" suffix.
// An empty path picks a unique file name. The file must not exist yet.
func NewCSVTracer(path string) *CSVTracer {
	t := &CSVTracer{path: path}

	t.init()

	atexit.Register(func() {
		t.Flush()

		err := t.file.Close()
		if err != nil {
			panic(err)
		}
	})

	return t
}

func (t *CSVTracer) init() {
	if t.path == "" {
		t.path = "tokei_trace_" + xid.New().String()
	}

	filename := t.path + ".csv"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	file, err := os.Create(filename)
	if err != nil {
		panic(err)
	}

	t.file = file
	t.writer = csv.NewWriter(file)

	err = t.writer.Write([]string{
		"Run", "Ts", "UID", "Context", "Realtime", "Jitter", "HandlerNs"})
	if err != nil {
		panic(err)
	}
}

// RunStart remembers the run so that later rows carry its id.
func (t *CSVTracer) RunStart(run Run) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.run = run
}

// Dispatch writes one row.
func (t *CSVTracer) Dispatch(record Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.writer.Write([]string{
		t.run.ID,
		strconv.FormatInt(int64(record.Ts), 10),
		strconv.FormatUint(record.UID, 10),
		strconv.FormatUint(uint64(record.Context), 10),
		strconv.FormatInt(int64(record.Realtime), 10),
		strconv.FormatInt(int64(record.Jitter), 10),
		strconv.FormatInt(record.Handler.Nanoseconds(), 10),
	})
	if err != nil {
		panic(err)
	}
}

// RunEnd flushes the file.
func (t *CSVTracer) RunEnd(_ Run) {
	t.Flush()
}

// Flush pushes the buffered rows to the file.
func (t *CSVTracer) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.writer.Flush()

	err := t.writer.Error()
	if err != nil {
		panic(err)
	}
}
