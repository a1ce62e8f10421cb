package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"printerbot/internal/client"
	"printerbot/internal/models"
	"printerbot/internal/printer"
)

func connectedFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(testConfig())
	if err := f.tele.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	return f
}

func TestPrinterService_RequiresConnection(t *testing.T) {
	f := newFixture(testConfig())
	ctx := context.Background()

	if _, err := f.printer.Files(ctx); !errors.Is(err, printer.ErrNotConnected) {
		t.Fatalf("Files: expected ErrNotConnected, got %v", err)
	}
	if err := f.printer.StartPrint(ctx, "cube.gcode"); !errors.Is(err, printer.ErrNotConnected) {
		t.Fatalf("StartPrint: expected ErrNotConnected, got %v", err)
	}
	if err := f.printer.RunGcode(ctx, "G28"); !errors.Is(err, printer.ErrNotConnected) {
		t.Fatalf("RunGcode: expected ErrNotConnected, got %v", err)
	}
	if got := f.printer.StatusText(time.Now()); !strings.Contains(got, "Printer is disconnected") {
		t.Fatalf("unexpected status text %q", got)
	}
}

func TestPrinterService_StartPrint(t *testing.T) {
	f := connectedFixture(t)

	if err := f.printer.StartPrint(context.Background(), " cube.gcode "); err != nil {
		t.Fatalf("StartPrint() error = %v", err)
	}
	if len(f.ctrl.started) != 1 || f.ctrl.started[0] != "cube.gcode" {
		t.Fatalf("unexpected start calls %v", f.ctrl.started)
	}
	types := f.events.types()
	if types[len(types)-1] != models.EventPrintStart {
		t.Fatalf("expected print start event, got %v", types)
	}
}

func TestPrinterService_StartPrintRejectedWhileActive(t *testing.T) {
	f := newFixture(testConfig())
	f.ctrl.setStatus(printingStatus())
	if err := f.tele.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	if err := f.printer.StartPrint(context.Background(), "other.gcode"); !errors.Is(err, ErrJobActive) {
		t.Fatalf("expected ErrJobActive, got %v", err)
	}
	if err := f.printer.StartPrint(context.Background(), " "); !errors.Is(err, ErrEmptyFilename) {
		t.Fatalf("expected ErrEmptyFilename, got %v", err)
	}
}

func TestPrinterService_Upload(t *testing.T) {
	f := connectedFixture(t)
	ctx := context.Background()

	if err := f.printer.Upload(ctx, "model.stl", strings.NewReader("solid"), 5); !errors.Is(err, ErrUnsupportedFile) {
		t.Fatalf("expected ErrUnsupportedFile, got %v", err)
	}
	if err := f.printer.Upload(ctx, "Cube.GCODE", strings.NewReader("G28\n"), 4); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if got := f.ctrl.uploaded["Cube.GCODE"]; got != "G28\n" {
		t.Fatalf("unexpected uploaded content %q", got)
	}
}

func TestPrinterService_UploadIntoSubdirectory(t *testing.T) {
	f := connectedFixture(t)
	ctx := context.Background()

	if err := f.printer.Upload(ctx, "parts//brackets/cube.gcode", strings.NewReader("G28\n"), 4); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if _, ok := f.ctrl.uploaded["parts/brackets/cube.gcode"]; !ok {
		t.Fatalf("expected upload into parts/brackets, got %v", f.ctrl.uploaded)
	}

	for _, bad := range []string{"../cube.gcode", "parts/../../cube.gcode"} {
		if err := f.printer.Upload(ctx, bad, strings.NewReader("G28\n"), 4); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("%s: expected ErrInvalidPath, got %v", bad, err)
		}
	}
	if err := f.printer.Upload(ctx, "parts/", strings.NewReader(""), 0); !errors.Is(err, ErrUnsupportedFile) {
		t.Fatalf("expected a directory to be rejected, got %v", err)
	}
}

func TestPrinterService_Versions(t *testing.T) {
	f := connectedFixture(t)
	f.ctrl.updates = client.UpdateStatus{VersionInfo: map[string]client.ComponentVersion{
		"system":     {PackageCount: 3},
		"klipper":    {Version: "v0.12.0", FullVersionString: "v0.12.0-45-gdeadbee"},
		"printerbot": {Version: "v1.2.0"},
	}}

	all, err := f.printer.Versions(context.Background(), false)
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	if all != "klipper: v0.12.0-45-gdeadbee\nprinterbot: v1.2.0" {
		t.Fatalf("unexpected versions %q", all)
	}
	bot, err := f.printer.Versions(context.Background(), true)
	if err != nil {
		t.Fatalf("Versions(botOnly) error = %v", err)
	}
	if bot != "printerbot: v1.2.0" {
		t.Fatalf("unexpected bot version %q", bot)
	}
}

func TestPrinterService_FileInfo(t *testing.T) {
	f := connectedFixture(t)
	f.ctrl.metadata["parts/cube.gcode"] = client.FileMetadata{
		FilamentTotal:       printer.Float(1500),
		FilamentWeightTotal: printer.Float(4.5),
		EstimatedTime:       printer.Float(600),
		Thumbnails: []client.Thumbnail{
			{Size: 1000, RelativePath: ".thumbs/cube-32x32.png"},
			{Size: 9000, RelativePath: ".thumbs/cube-300x300.png"},
		},
	}

	info, err := f.printer.FileInfo(context.Background(), "parts/cube.gcode")
	if err != nil {
		t.Fatalf("FileInfo() error = %v", err)
	}
	if info.Text != "Filament: 1.5m, weight: 4.5g\nEstimated printing time: 0:10:00" {
		t.Fatalf("unexpected summary %q", info.Text)
	}
	if info.ThumbnailPath != "parts/.thumbs/cube-300x300.png" {
		t.Fatalf("unexpected thumbnail %q", info.ThumbnailPath)
	}

	var se *client.StatusError
	if _, err := f.printer.FileInfo(context.Background(), "missing.gcode"); !errors.As(err, &se) || se.Status != 404 {
		t.Fatalf("expected controller 404, got %v", err)
	}
	if _, err := f.printer.FileInfo(context.Background(), " "); !errors.Is(err, ErrEmptyFilename) {
		t.Fatalf("expected ErrEmptyFilename, got %v", err)
	}
}

func TestPrinterService_AnnounceFeed(t *testing.T) {
	f := newFixture(testConfig())
	if err := f.printer.AnnounceFeed(context.Background()); err != nil {
		t.Fatalf("AnnounceFeed() error = %v", err)
	}
	if len(f.ctrl.feeds) != 1 || f.ctrl.feeds[0] != "printerbot" {
		t.Fatalf("unexpected feeds %v", f.ctrl.feeds)
	}

	cfg := testConfig()
	cfg.BotName = ""
	g := newFixture(cfg)
	if err := g.printer.AnnounceFeed(context.Background()); err != nil {
		t.Fatalf("AnnounceFeed() error = %v", err)
	}
	if len(g.ctrl.feeds) != 0 {
		t.Fatalf("expected no feed without a bot name, got %v", g.ctrl.feeds)
	}
}

func TestPrinterService_RunGcode(t *testing.T) {
	f := connectedFixture(t)

	if err := f.printer.RunGcode(context.Background(), "  "); !errors.Is(err, ErrEmptyGcode) {
		t.Fatalf("expected ErrEmptyGcode, got %v", err)
	}
	if err := f.printer.RunGcode(context.Background(), "PRINT_START"); err != nil {
		t.Fatalf("RunGcode() error = %v", err)
	}
	if len(f.ctrl.gcode) != 1 || f.ctrl.gcode[0] != "PRINT_START" {
		t.Fatalf("unexpected gcode calls %v", f.ctrl.gcode)
	}

	f.ctrl.callErr = &client.StatusError{Path: "/printer/gcode/script", Status: 400, Message: "Unknown command"}
	if err := f.printer.RunGcode(context.Background(), "FOO"); err == nil {
		t.Fatalf("expected controller error")
	}
}

func TestPrinterService_FilesNewestFirst(t *testing.T) {
	f := connectedFixture(t)
	f.ctrl.files = []client.FileEntry{
		{Path: "old.gcode", Modified: 100},
		{Path: "new.gcode", Modified: 300},
		{Path: "mid.gcode", Modified: 200},
	}

	files, err := f.printer.Files(context.Background())
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}
	if files[0].Path != "new.gcode" || files[1].Path != "mid.gcode" || files[2].Path != "old.gcode" {
		t.Fatalf("unexpected order %+v", files)
	}
}

func TestPrinterService_MacrosHideBotDataAndConfigured(t *testing.T) {
	f := newFixture(testConfig())
	f.ctrl.objects = []string{
		"gcode_macro PRINT_START",
		"gcode_macro bot_data",
		"gcode_macro secret",
		"gcode_macro _PRIVATE",
		"gcode_macro LOAD_FILAMENT",
	}
	if err := f.tele.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	got := f.printer.Macros()
	if len(got) != 2 || got[0] != "LOAD_FILAMENT" || got[1] != "PRINT_START" {
		t.Fatalf("unexpected macros %v", got)
	}

	all := f.printer.AllMacros()
	if len(all) != 5 || all[0] != "BOT_DATA" {
		t.Fatalf("unexpected full macro list %v", all)
	}
}

func TestPrinterService_StatusTextIncludesSensors(t *testing.T) {
	f := newFixture(testConfig())
	f.ctrl.setStatus(printingStatus())
	if err := f.tele.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	text := f.printer.StatusText(time.Now())
	if !strings.Contains(text, "Extruder: 210 °C") {
		t.Fatalf("expected extruder line in %q", text)
	}
	if !strings.Contains(f.printer.SensorsText(), "Heater Bed: 60 °C") {
		t.Fatalf("expected bed line in %q", f.printer.SensorsText())
	}
}
