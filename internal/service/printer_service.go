package service

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"printerbot/internal/client"
	"printerbot/internal/config"
	"printerbot/internal/logger"
	"printerbot/internal/models"
	"printerbot/internal/printer"
	"printerbot/internal/report"
)

// botDataMacro stores bot settings on the controller and is never listed.
const botDataMacro = "BOT_DATA"

// PrinterService serves the printer view and job commands.
type PrinterService struct {
	ctrl    Controller
	state   *printer.State
	journal *Journal
	log     *logger.Logger

	statusOpts report.StatusOptions
	deviceOpts report.DeviceOptions
	macros     printer.MacroFilter
	botName    string
}

// FileSummary describes one gcode file from its slicer metadata.
type FileSummary struct {
	Filename      string              `json:"filename"`
	Text          string              `json:"text"`
	ThumbnailPath string              `json:"thumbnail_path,omitempty"`
	Metadata      client.FileMetadata `json:"metadata"`
}

func NewPrinterService(ctrl Controller, state *printer.State, journal *Journal, cfg config.Config, log *logger.Logger) *PrinterService {
	if log == nil {
		log = logger.Nop()
	}
	hidden := append([]string{botDataMacro}, cfg.Status.HiddenMacros...)
	return &PrinterService{
		ctrl:    ctrl,
		state:   state,
		journal: journal,
		log:     log.Named("printer_service"),
		statusOpts: report.StatusOptions{
			Fields:    cfg.Status.Fields,
			EtaSource: printer.ParseEtaSource(cfg.Status.EtaSource),
		},
		deviceOpts: report.DeviceOptions{
			Light: cfg.Devices.Light,
			PSU:   cfg.Devices.Power,
			Shown: cfg.Status.Devices,
		},
		macros:  printer.MacroFilter{Hidden: hidden, ShowPrivate: cfg.Status.ShowPrivateMacros},
		botName: cfg.BotName,
	}
}

func (s *PrinterService) Snapshot() printer.Snapshot { return s.state.Snapshot() }

// StatusText renders the full status report.
func (s *PrinterService) StatusText(now time.Time) string {
	return report.Full(s.state.Snapshot(), s.statusOpts, s.deviceOpts, now)
}

// SensorsText renders the sensor block alone.
func (s *PrinterService) SensorsText() string {
	return report.Sensors(s.state.Snapshot())
}

// Macros returns the macros an operator may run.
func (s *PrinterService) Macros() []string {
	return s.state.Snapshot().VisibleMacros(s.macros)
}

// AllMacros returns every macro the controller reports, ignoring the
// visibility settings.
func (s *PrinterService) AllMacros() []string {
	return s.state.Snapshot().Macros()
}

// Files lists gcode files, newest first.
func (s *PrinterService) Files(ctx context.Context) ([]client.FileEntry, error) {
	if !s.state.Connected() {
		return nil, printer.ErrNotConnected
	}
	files, err := s.ctrl.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].Modified > files[j].Modified })
	return files, nil
}

func (s *PrinterService) Updates(ctx context.Context) (client.UpdateStatus, error) {
	if !s.state.Connected() {
		return client.UpdateStatus{}, printer.ErrNotConnected
	}
	return s.ctrl.UpdateStatus(ctx)
}

// Versions renders the component versions of the update manager. botOnly
// keeps only this bot's own component.
func (s *PrinterService) Versions(ctx context.Context, botOnly bool) (string, error) {
	st, err := s.Updates(ctx)
	if err != nil {
		return "", err
	}
	only := ""
	if botOnly {
		only = s.botName
	}
	return report.Versions(st.VersionInfo, only), nil
}

// FileInfo summarizes filename from its slicer metadata.
func (s *PrinterService) FileInfo(ctx context.Context, filename string) (FileSummary, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return FileSummary{}, ErrEmptyFilename
	}
	if !s.state.Connected() {
		return FileSummary{}, printer.ErrNotConnected
	}
	meta, err := s.ctrl.FileMetadata(ctx, filename)
	if err != nil {
		return FileSummary{}, err
	}
	if meta.Filename == "" {
		meta.Filename = filename
	}
	return FileSummary{
		Filename:      filename,
		Text:          report.FileSummary(meta),
		ThumbnailPath: meta.LargestThumbnail(),
		Metadata:      meta,
	}, nil
}

// AnnounceFeed subscribes the controller's announcements to this bot's feed.
// It does nothing when no bot name is configured.
func (s *PrinterService) AnnounceFeed(ctx context.Context) error {
	if s.botName == "" {
		return nil
	}
	if err := s.ctrl.AnnounceFeed(ctx, s.botName); err != nil {
		s.log.Warnw("announcement_feed_failed", "feed", s.botName, "err", err)
		return err
	}
	s.log.Debugw("announcement_feed_added", "feed", s.botName)
	return nil
}

// StartPrint starts filename unless a job is already printing or paused.
func (s *PrinterService) StartPrint(ctx context.Context, filename string) error {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return ErrEmptyFilename
	}
	if !s.state.Connected() {
		return printer.ErrNotConnected
	}
	if s.state.Phase().Active() {
		return ErrJobActive
	}
	if err := s.ctrl.StartPrint(ctx, filename); err != nil {
		s.log.Errorw("print_start_failed", "file", filename, "err", err)
		return err
	}
	s.log.Infow("print_started", "file", filename)
	s.journal.Record(models.EventPrintStart, "print started", map[string]any{"file": filename})
	return nil
}

// Upload stores a gcode file on the controller. name may carry a directory
// relative to the gcode root, such as "parts/cube.gcode".
func (s *PrinterService) Upload(ctx context.Context, name string, content io.Reader, size int64) error {
	dir, base, err := splitUploadPath(name)
	if err != nil {
		return err
	}
	if !strings.EqualFold(path.Ext(base), ".gcode") {
		return ErrUnsupportedFile
	}
	if !s.state.Connected() {
		return printer.ErrNotConnected
	}
	name = path.Join(dir, base)
	if err := s.ctrl.UploadFile(ctx, dir, base, content); err != nil {
		s.log.Errorw("upload_failed", "file", name, "err", err)
		return err
	}
	var human string
	if size > 0 {
		human = humanize.Bytes(uint64(size))
	}
	s.log.Infow("file_uploaded", "file", name, "size", human)
	s.journal.Record(models.EventUpload, "file uploaded", map[string]any{"file": name, "size_bytes": size})
	return nil
}

// splitUploadPath cleans name and splits it into a directory below the gcode
// root and a file name. Paths leaving the root are rejected.
func splitUploadPath(name string) (string, string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return "", "", ErrEmptyFilename
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", "", ErrInvalidPath
		}
	}
	dir, base := path.Split(strings.TrimPrefix(path.Clean("/"+name), "/"))
	if base == "" {
		return "", "", ErrEmptyFilename
	}
	return strings.TrimSuffix(dir, "/"), base, nil
}

// RunGcode sends a gcode script.
func (s *PrinterService) RunGcode(ctx context.Context, script string) error {
	script = strings.TrimSpace(script)
	if script == "" {
		return ErrEmptyGcode
	}
	if !s.state.Connected() {
		return printer.ErrNotConnected
	}
	if err := s.ctrl.RunGcode(ctx, script); err != nil {
		s.log.Errorw("gcode_failed", "script", script, "err", err)
		return err
	}
	s.journal.Record(models.EventGcode, script, nil)
	return nil
}
