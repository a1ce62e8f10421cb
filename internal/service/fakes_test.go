package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path"
	"sync"
	"time"

	"printerbot/internal/client"
	"printerbot/internal/config"
	"printerbot/internal/logger"
	"printerbot/internal/metrics"
	"printerbot/internal/models"
	"printerbot/internal/printer"
)

// fakeEventRepo is a stub for repository.EventRepo that captures inputs.
type fakeEventRepo struct {
	mu sync.Mutex

	// captured inputs
	gotCtx   context.Context
	gotFrom  time.Time
	gotTo    time.Time
	gotType  string
	appended []models.PrinterEvent

	// configured outputs
	events []models.PrinterEvent
	err    error

	calls int
}

func (f *fakeEventRepo) List(ctx context.Context, from, to time.Time, typ string) ([]models.PrinterEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotCtx = ctx
	f.gotFrom = from
	f.gotTo = to
	f.gotType = typ
	return f.events, f.err
}

func (f *fakeEventRepo) Append(_ context.Context, e models.PrinterEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, e)
	return f.err
}

func (f *fakeEventRepo) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.appended))
	for _, e := range f.appended {
		out = append(out, e.Type)
	}
	return out
}

type fakeJobRepo struct {
	mu       sync.Mutex
	saved    []models.PrintJob
	recent   []models.PrintJob
	gotLimit int
}

func (f *fakeJobRepo) Save(_ context.Context, j models.PrintJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, j)
	return nil
}

func (f *fakeJobRepo) Recent(_ context.Context, limit int) ([]models.PrintJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotLimit = limit
	return f.recent, nil
}

func (f *fakeJobRepo) jobs() []models.PrintJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PrintJob(nil), f.saved...)
}

// fakeController is an in-memory Controller.
type fakeController struct {
	mu sync.Mutex

	info      client.PrinterInfo
	infoErr   error
	objects   []string
	status    client.ObjectStatus
	metadata  map[string]client.FileMetadata
	files     []client.FileEntry
	devices   []client.PowerDevice
	updates   client.UpdateStatus
	db        map[string]json.RawMessage
	powerCode int
	powerBody string
	rejectOn  bool
	callErr   error

	queried   []map[string][]string
	powerReqs []client.Request
	started   []string
	uploaded  map[string]string
	gcode     []string
	feeds     []string
}

func newFakeController() *fakeController {
	return &fakeController{
		info:      client.PrinterInfo{State: "ready"},
		objects:   []string{"print_stats", "virtual_sdcard", "extruder", "heater_bed", "gcode_macro PRINT_START"},
		status:    client.ObjectStatus{},
		metadata:  map[string]client.FileMetadata{},
		db:        map[string]json.RawMessage{},
		powerCode: http.StatusOK,
		uploaded:  map[string]string{},
	}
}

func (f *fakeController) Do(_ context.Context, req client.Request) (*client.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.powerReqs = append(f.powerReqs, req)
	if f.rejectOn && req.Query.Get("action") == "on" {
		return &client.Response{
			Status: http.StatusBadRequest,
			Body:   []byte(`{"error":{"code":400,"message":"Power device locked while printing"}}`),
		}, nil
	}
	return &client.Response{Status: f.powerCode, Body: []byte(f.powerBody)}, nil
}

func (f *fakeController) PrinterInfo(context.Context) (client.PrinterInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info, f.infoErr
}

func (f *fakeController) ObjectsList(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.objects...), nil
}

func (f *fakeController) QueryObjects(_ context.Context, objects map[string][]string) (client.ObjectStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queried = append(f.queried, objects)
	return f.status, f.callErr
}

func (f *fakeController) FileMetadata(_ context.Context, filename string) (client.FileMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.metadata[filename]
	if !ok {
		return client.FileMetadata{}, &client.StatusError{Path: "/server/files/metadata", Status: http.StatusNotFound}
	}
	return m, nil
}

func (f *fakeController) ListFiles(context.Context) ([]client.FileEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]client.FileEntry(nil), f.files...), f.callErr
}

func (f *fakeController) UploadFile(_ context.Context, dir, name string, content io.Reader) error {
	b, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded[path.Join(dir, name)] = string(b)
	return f.callErr
}

func (f *fakeController) AnnounceFeed(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds = append(f.feeds, name)
	return f.callErr
}

func (f *fakeController) StartPrint(_ context.Context, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, filename)
	return f.callErr
}

func (f *fakeController) RunGcode(_ context.Context, script string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gcode = append(f.gcode, script)
	return f.callErr
}

func (f *fakeController) PowerDevices(context.Context) ([]client.PowerDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]client.PowerDevice(nil), f.devices...), nil
}

func (f *fakeController) UpdateStatus(context.Context) (client.UpdateStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates, f.callErr
}

func (f *fakeController) DatabaseGet(_ context.Context, namespace, key string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.db[namespace+"/"+key]
	if !ok {
		return nil, &client.StatusError{Path: "/server/database/item", Status: http.StatusNotFound}
	}
	return v, nil
}

func (f *fakeController) DatabasePut(_ context.Context, namespace, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.db[namespace+"/"+key] = b
	return nil
}

func (f *fakeController) DatabaseDelete(_ context.Context, namespace, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.db, namespace+"/"+key)
	return nil
}

func (f *fakeController) Subscribe(ctx context.Context, objects map[string][]string, h client.FeedHandler) error {
	f.mu.Lock()
	status := f.status
	f.queried = append(f.queried, objects)
	f.mu.Unlock()
	h.StatusUpdate(status)
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeController) setStatus(raw map[string]string) {
	st := client.ObjectStatus{}
	for obj, payload := range raw {
		st[obj] = json.RawMessage(payload)
	}
	f.mu.Lock()
	f.status = st
	f.mu.Unlock()
}

// fixture wires the services around one fake controller.
type fixture struct {
	ctrl    *fakeController
	events  *fakeEventRepo
	jobs    *fakeJobRepo
	journal *Journal
	state   *printer.State
	metrics *metrics.Metrics
	power   *PowerService
	printer *PrinterService
	tele    *TelemetryService
}

func testConfig() config.Config {
	return config.Config{
		Devices:   config.Devices{Power: "printer", Light: "chamber_light"},
		Namespace: "printerbot",
		BotName:   "printerbot",
		Status: config.Status{
			EtaSource:    config.EtaSourceSlicer,
			Fields:       config.DefaultStatusFields,
			HiddenMacros: []string{"SECRET"},
			Heaters:      []string{"extruder", "heater_bed"},
		},
	}
}

func newFixture(cfg config.Config) *fixture {
	f := &fixture{
		ctrl:    newFakeController(),
		events:  &fakeEventRepo{},
		jobs:    &fakeJobRepo{},
		metrics: metrics.New(),
	}
	log := logger.Nop()
	f.journal = NewJournal(f.events, f.jobs, log)
	f.state = printer.New(f.ctrl, printer.Options{Log: log, Listener: f.journal})
	f.power = NewPowerService(f.ctrl, f.state, f.journal, f.metrics, cfg, log)
	f.printer = NewPrinterService(f.ctrl, f.state, f.journal, cfg, log)
	f.tele = NewTelemetryService(f.ctrl, f.state, f.journal, f.power, f.metrics, cfg.Status, log)
	return f
}
