// Package monitoring turns a running simulation into a small web server, so
// that the simulator can be observed and controlled from outside the process.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/tokei/monitoring/web"
	"github.com/sarchlab/tokei/sim"
	"github.com/sarchlab/tokei/tracing"
)

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	simulator  *sim.Simulator
	ring       *tracing.RingTracer
	portNumber int
	useBrowser bool

	observablesLock sync.Mutex
	observables     map[string]any

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		observables: make(map[string]any),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser opens the dashboard in the default browser once the server is
// up.
func (m *Monitor) WithBrowser() *Monitor {
	m.useBrowser = true

	return m
}

// RegisterSimulator registers the simulator to be monitored.
func (m *Monitor) RegisterSimulator(s *sim.Simulator) {
	m.simulator = s
}

// RegisterRingTracer registers the tracer that backs the recent-dispatches
// endpoint. The tracer must already be attached to the simulator.
func (m *Monitor) RegisterRingTracer(t *tracing.RingTracer) {
	m.ring = t
}

// RegisterObservable makes the object inspectable through the state endpoint
// under the given name.
func (m *Monitor) RegisterObservable(name string, obj any) {
	if name == "" {
		panic("observable name must not be empty")
	}

	m.observablesLock.Lock()
	defer m.observablesLock.Unlock()

	_, taken := m.observables[name]
	if taken {
		panic(fmt.Sprintf("observable %s is already registered", name))
	}

	m.observables[name] = obj
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// StartServer starts the monitor as a web server.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()

	fs := web.GetAssets()
	fServer := http.FileServer(fs)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/run", m.run)
	r.HandleFunc("/api/stop", m.stop)
	r.HandleFunc("/api/pause", m.pause)
	r.HandleFunc("/api/continue", m.continueRun)
	r.HandleFunc("/api/step", m.step)
	r.HandleFunc("/api/info", m.info)
	r.HandleFunc("/api/recent", m.recent)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/api/state/{name}", m.state)
	r.PathPrefix("/").Handler(fServer)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	port := listener.Addr().(*net.TCPAddr).Port
	fmt.Fprintf(os.Stderr,
		"Monitoring simulation with http://localhost:%d\n", port)

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()

	if m.useBrowser {
		err := browser.OpenURL(fmt.Sprintf("http://localhost:%d", port))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open the browser: %s\n", err)
		}
	}
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"now\":%d}", int64(m.simulator.Now()))
}

func (m *Monitor) run(w http.ResponseWriter, _ *http.Request) {
	if m.simulator.IsRunning() {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"error":"the simulator is already running"}`)

		return
	}

	go func() {
		err := m.simulator.Run()
		if err != nil && !errors.Is(err, sim.ErrDoubleRun) {
			panic(err)
		}
	}()
}

func (m *Monitor) stop(w http.ResponseWriter, _ *http.Request) {
	m.simulator.Stop()

	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	m.simulator.Pause()

	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueRun(w http.ResponseWriter, _ *http.Request) {
	m.simulator.Continue()

	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) step(w http.ResponseWriter, _ *http.Request) {
	err := m.simulator.ProcessOneEvent()
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "{\"error\":%q}", err.Error())

		return
	}

	fmt.Fprintf(w, "{\"now\":%d}", int64(m.simulator.Now()))
}

type infoRsp struct {
	Now         int64  `json:"now"`
	Policy      string `json:"policy"`
	HardLimitNs int64  `json:"hard_limit_ns"`
	EventCount  uint64 `json:"event_count"`
	QueueLength int    `json:"queue_length"`
	Realtime    bool   `json:"realtime"`
	Running     bool   `json:"running"`
	Finished    bool   `json:"finished"`
}

func (m *Monitor) info(w http.ResponseWriter, _ *http.Request) {
	s := m.simulator

	rsp := infoRsp{
		Now:         int64(s.Now()),
		Policy:      s.Policy().String(),
		HardLimitNs: int64(s.HardLimit()),
		EventCount:  s.EventCount(),
		QueueLength: s.QueueLength(),
		Realtime:    s.Realtime(),
		Running:     s.IsRunning(),
		Finished:    s.IsFinished(),
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type recentEntry struct {
	Ts        int64  `json:"ts"`
	UID       uint64 `json:"uid"`
	Context   uint32 `json:"context"`
	Realtime  int64  `json:"realtime"`
	Jitter    int64  `json:"jitter"`
	HandlerNs int64  `json:"handler_ns"`
}

func (m *Monitor) recent(w http.ResponseWriter, _ *http.Request) {
	if m.ring == nil {
		_, err := w.Write([]byte("[]"))
		dieOnErr(err)

		return
	}

	records := m.ring.Records()
	entries := make([]recentEntry, 0, len(records))

	for _, r := range records {
		entries = append(entries, recentEntry{
			Ts:        int64(r.Ts),
			UID:       r.UID,
			Context:   r.Context,
			Realtime:  int64(r.Realtime),
			Jitter:    int64(r.Jitter),
			HandlerNs: r.Handler.Nanoseconds(),
		})
	}

	bytes, err := json.Marshal(entries)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) state(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	obj := m.findObservableOr404(w, name)
	if obj == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(obj)
	serializer.SetMaxDepth(1)

	err := serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) findObservableOr404(
	w http.ResponseWriter,
	name string,
) any {
	m.observablesLock.Lock()
	obj, found := m.observables[name]
	m.observablesLock.Unlock()

	if !found {
		w.WriteHeader(http.StatusNotFound)

		_, err := w.Write([]byte("Observable not found"))
		dieOnErr(err)

		return nil
	}

	return obj
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bytes, err := json.Marshal(m.progressBars)
	m.progressBarsLock.Unlock()
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
