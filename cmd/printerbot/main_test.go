package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type fakeController struct {
	mu        sync.Mutex
	powerCmds []string
	started   []string
}

func (f *fakeController) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	result := func(v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"result": v})
	}
	switch r.URL.Path {
	case "/printer/info":
		result(map[string]any{"state": "ready", "hostname": "voron"})
	case "/printer/objects/list":
		result(map[string]any{"objects": []string{"print_stats", "virtual_sdcard", "display_status", "gcode_move", "extruder", "heater_bed"}})
	case "/printer/objects/query":
		result(map[string]any{"status": map[string]any{
			"print_stats": map[string]any{"state": "standby", "filename": ""},
			"extruder":    map[string]any{"temperature": 24.6, "target": 0},
			"heater_bed":  map[string]any{"temperature": 23.1, "target": 0},
		}})
	case "/machine/device_power/devices":
		result(map[string]any{"devices": []map[string]any{{"device": "printer", "status": "off", "type": "gpio"}}})
	case "/machine/device_power/device":
		f.mu.Lock()
		f.powerCmds = append(f.powerCmds, r.URL.Query().Get("device")+"="+r.URL.Query().Get("action"))
		f.mu.Unlock()
		result(map[string]any{r.URL.Query().Get("device"): r.URL.Query().Get("action")})
	case "/server/files/list":
		result([]map[string]any{{"path": "cube.gcode", "modified": 1700000000, "size": 2048}})
	case "/server/files/metadata":
		result(map[string]any{
			"filename":              r.URL.Query().Get("filename"),
			"filament_total":        1234.0,
			"filament_weight_total": 3.7,
			"thumbnails":            []map[string]any{{"size": 4096, "relative_path": ".thumbs/cube-32x32.png"}},
		})
	case "/machine/update/status":
		result(map[string]any{"busy": false, "version_info": map[string]any{
			"klipper":    map[string]any{"version": "v0.12.0-42"},
			"printerbot": map[string]any{"version": "v1.2.0", "full_version_string": "v1.2.0-3-gabc123"},
			"system":     map[string]any{"package_count": 4},
		}})
	case "/printer/print/start":
		f.mu.Lock()
		f.started = append(f.started, r.URL.Query().Get("filename"))
		f.mu.Unlock()
		result("ok")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeTestConfig(t *testing.T, controllerURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	body := "controller:\n" +
		"  url: " + controllerURL + "\n" +
		"devices:\n" +
		"  power: printer\n" +
		"db_path: " + filepath.Join(dir, "bot.db") + "\n" +
		"log_level: error\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatusJSON(t *testing.T) {
	srv := httptest.NewServer(&fakeController{})
	defer srv.Close()
	cfgPath := writeTestConfig(t, srv.URL)

	out, err := runCLI(t, "--config", cfgPath, "status", "--json")
	if err != nil {
		t.Fatalf("status: %v (%s)", err, out)
	}
	var snap struct {
		Connected bool   `json:"connected"`
		Phase     string `json:"phase"`
		Sensors   map[string]struct {
			Temperature float64 `json:"temperature"`
		} `json:"sensors"`
	}
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if !snap.Connected || snap.Phase != "standby" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Sensors["extruder"].Temperature != 24.6 {
		t.Fatalf("unexpected sensors %+v", snap.Sensors)
	}
}

func TestDevicesAndPower(t *testing.T) {
	fc := &fakeController{}
	srv := httptest.NewServer(fc)
	defer srv.Close()
	cfgPath := writeTestConfig(t, srv.URL)

	out, err := runCLI(t, "--config", cfgPath, "devices")
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	if !strings.Contains(out, "printer") || !strings.Contains(out, "gpio") {
		t.Fatalf("unexpected devices output:\n%s", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "power", "printer", "on")
	if err != nil {
		t.Fatalf("power: %v", err)
	}
	if strings.TrimSpace(out) != "printer is on" {
		t.Fatalf("unexpected power output %q", out)
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if len(fc.powerCmds) != 1 || fc.powerCmds[0] != "printer=on" {
		t.Fatalf("unexpected power commands %v", fc.powerCmds)
	}
}

func TestPowerRejectsUnknownAction(t *testing.T) {
	srv := httptest.NewServer(&fakeController{})
	defer srv.Close()
	cfgPath := writeTestConfig(t, srv.URL)

	if _, err := runCLI(t, "--config", cfgPath, "power", "printer", "blink"); err == nil {
		t.Fatalf("expected error for unknown action")
	}
}

func TestFilesAndPrint(t *testing.T) {
	fc := &fakeController{}
	srv := httptest.NewServer(fc)
	defer srv.Close()
	cfgPath := writeTestConfig(t, srv.URL)

	out, err := runCLI(t, "--config", cfgPath, "files")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if !strings.Contains(out, "cube.gcode") || !strings.Contains(out, "2.0 kB") {
		t.Fatalf("unexpected files output:\n%s", out)
	}

	if _, err := runCLI(t, "--config", cfgPath, "print", "cube.gcode"); err != nil {
		t.Fatalf("print: %v", err)
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if len(fc.started) != 1 || fc.started[0] != "cube.gcode" {
		t.Fatalf("unexpected prints %v", fc.started)
	}
}

func TestVersionsAndFile(t *testing.T) {
	srv := httptest.NewServer(&fakeController{})
	defer srv.Close()
	cfgPath := writeTestConfig(t, srv.URL)

	out, err := runCLI(t, "--config", cfgPath, "versions")
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if !strings.Contains(out, "klipper: v0.12.0-42") || !strings.Contains(out, "printerbot: v1.2.0-3-gabc123") {
		t.Fatalf("unexpected versions output:\n%s", out)
	}
	if strings.Contains(out, "system") {
		t.Fatalf("system entry should be skipped:\n%s", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "versions", "--bot")
	if err != nil {
		t.Fatalf("versions --bot: %v", err)
	}
	if strings.Contains(out, "klipper") || !strings.Contains(out, "printerbot:") {
		t.Fatalf("unexpected bot-only output:\n%s", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "file", "parts/cube.gcode")
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	for _, want := range []string{"parts/cube.gcode", "Filament: 1.23m, weight: 3.7g", "Thumbnail: parts/.thumbs/cube-32x32.png"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in file output:\n%s", want, out)
		}
	}
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(&fakeController{})
	defer srv.Close()
	cfgPath := writeTestConfig(t, srv.URL)

	out, err := runCLI(t, "--config", cfgPath, "probe")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if !strings.Contains(out, "reachable (state: ready, authenticated: no)") {
		t.Fatalf("unexpected probe output %q", out)
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"x"}, {"y", "z"}}, []columnAlignment{alignLeft, alignRight})
	for _, want := range []string{"A", "B", "x", "y", "z"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in\n%s", want, out)
		}
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatalf("expected empty table for no headers")
	}
}
