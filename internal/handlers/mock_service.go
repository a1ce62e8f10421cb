package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"printerbot/internal/client"
	"printerbot/internal/models"
	"printerbot/internal/printer"
	"printerbot/internal/service"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockPrinter struct {
	snapshot  printer.Snapshot
	text      string
	macros    []string
	allMacros []string
	files     []client.FileEntry
	updates   client.UpdateStatus
	err       error

	versions string
	fileInfo service.FileSummary
	botOnly  bool
	infoFor  string
	feeds    int

	started  []string
	uploaded map[string]string
	gcode    []string
}

func (m *mockPrinter) Snapshot() printer.Snapshot      { return m.snapshot }
func (m *mockPrinter) StatusText(now time.Time) string { return m.text }
func (m *mockPrinter) SensorsText() string             { return m.text }
func (m *mockPrinter) Macros() []string                { return m.macros }
func (m *mockPrinter) AllMacros() []string             { return m.allMacros }
func (m *mockPrinter) Files(context.Context) ([]client.FileEntry, error) {
	return m.files, m.err
}
func (m *mockPrinter) Updates(context.Context) (client.UpdateStatus, error) {
	return m.updates, m.err
}
func (m *mockPrinter) Versions(_ context.Context, botOnly bool) (string, error) {
	m.botOnly = botOnly
	return m.versions, m.err
}
func (m *mockPrinter) FileInfo(_ context.Context, filename string) (service.FileSummary, error) {
	m.infoFor = filename
	return m.fileInfo, m.err
}
func (m *mockPrinter) AnnounceFeed(context.Context) error {
	m.feeds++
	return m.err
}
func (m *mockPrinter) StartPrint(_ context.Context, filename string) error {
	m.started = append(m.started, filename)
	return m.err
}
func (m *mockPrinter) Upload(_ context.Context, name string, content io.Reader, size int64) error {
	b, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	if m.uploaded == nil {
		m.uploaded = map[string]string{}
	}
	m.uploaded[name] = string(b)
	return m.err
}
func (m *mockPrinter) RunGcode(_ context.Context, script string) error {
	m.gcode = append(m.gcode, script)
	return m.err
}

type mockPower struct {
	devices []models.DeviceStatus
	status  models.DeviceStatus
	err     error

	lastName string
	lastOn   bool
	toggles  int
}

func (m *mockPower) Devices() []models.DeviceStatus { return m.devices }
func (m *mockPower) SwitchDevice(_ context.Context, name string, on bool) (models.DeviceStatus, error) {
	m.lastName = name
	m.lastOn = on
	return m.status, m.err
}
func (m *mockPower) ToggleDevice(_ context.Context, name string) (models.DeviceStatus, error) {
	m.lastName = name
	m.toggles++
	return m.status, m.err
}

type mockStorage struct {
	items map[string]json.RawMessage
	err   error
}

func (m *mockStorage) GetItem(_ context.Context, key string) (json.RawMessage, error) {
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.items[key]
	if !ok {
		return nil, &client.StatusError{Path: "/server/database/item", Status: http.StatusNotFound}
	}
	return v, nil
}
func (m *mockStorage) PutItem(_ context.Context, key string, value any) error {
	if m.err != nil {
		return m.err
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.items == nil {
		m.items = map[string]json.RawMessage{}
	}
	m.items[key] = b
	return nil
}
func (m *mockStorage) DeleteItem(_ context.Context, key string) error {
	delete(m.items, key)
	return m.err
}

type mockEventLog struct {
	resp     []models.PrinterEvent
	jobs     []models.PrintJob
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
	lastLim  int
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.PrinterEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}
func (m *mockEventLog) Jobs(_ context.Context, limit int) ([]models.PrintJob, error) {
	m.lastLim = limit
	return m.jobs, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// authedRequest builds a request carrying a bearer token accepted by mockAuth.
func authedRequest(method, target string, body io.Reader) *http.Request {
	req, _ := http.NewRequest(method, target, body)
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	return req
}
