package datarecording

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const execInfoTable = "exec_info"

const execTimeFormat = "2006-01-02 15:04:05.000000000"

// execInfo rows describe the program execution that produced the database.
type execInfo struct {
	Property string
	Value    string
}

// execRecorder stores run metadata next to the recorded data so that a
// database file can always be traced back to the command that produced it.
type execRecorder struct {
	recorder DataRecorder
}

// newExecRecorder prepares the exec_info table on the given recorder.
func newExecRecorder(recorder DataRecorder) *execRecorder {
	e := &execRecorder{recorder: recorder}

	e.recorder.CreateTable(execInfoTable, execInfo{})

	return e
}

// Start records the launch time, the command line, and the directory the
// program runs from.
func (e *execRecorder) Start() {
	startTime := time.Now().Format(execTimeFormat)
	e.recorder.InsertData(execInfoTable, execInfo{"Start Time", startTime})

	cmd := strings.Join(os.Args, " ")
	e.recorder.InsertData(execInfoTable, execInfo{"Command", cmd})

	ex, err := os.Executable()
	if err != nil {
		panic(err)
	}

	cwd := filepath.Dir(ex)
	e.recorder.InsertData(execInfoTable, execInfo{"Working Directory", cwd})
}

// End records the completion time and flushes everything recorded so far.
func (e *execRecorder) End() {
	endTime := time.Now().Format(execTimeFormat)
	e.recorder.InsertData(execInfoTable, execInfo{"End Time", endTime})

	e.recorder.Flush()
}
