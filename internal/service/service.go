package service

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"printerbot/internal/client"
	"printerbot/internal/config"
	"printerbot/internal/logger"
	"printerbot/internal/metrics"
	"printerbot/internal/models"
	"printerbot/internal/printer"
	"printerbot/internal/repository"
)

// Controller is the part of the controller API the services depend on.
// *client.Session implements it.
type Controller interface {
	Do(ctx context.Context, req client.Request) (*client.Response, error)
	PrinterInfo(ctx context.Context) (client.PrinterInfo, error)
	ObjectsList(ctx context.Context) ([]string, error)
	QueryObjects(ctx context.Context, objects map[string][]string) (client.ObjectStatus, error)
	FileMetadata(ctx context.Context, filename string) (client.FileMetadata, error)
	ListFiles(ctx context.Context) ([]client.FileEntry, error)
	UploadFile(ctx context.Context, dir, name string, content io.Reader) error
	AnnounceFeed(ctx context.Context, name string) error
	StartPrint(ctx context.Context, filename string) error
	RunGcode(ctx context.Context, script string) error
	PowerDevices(ctx context.Context) ([]client.PowerDevice, error)
	UpdateStatus(ctx context.Context) (client.UpdateStatus, error)
	DatabaseGet(ctx context.Context, namespace, key string) (json.RawMessage, error)
	DatabasePut(ctx context.Context, namespace, key string, value any) error
	DatabaseDelete(ctx context.Context, namespace, key string) error
	Subscribe(ctx context.Context, objects map[string][]string, h client.FeedHandler) error
}

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Printer exposes the live printer view and job control.
type Printer interface {
	Snapshot() printer.Snapshot
	StatusText(now time.Time) string
	SensorsText() string
	Macros() []string
	AllMacros() []string
	Files(ctx context.Context) ([]client.FileEntry, error)
	Updates(ctx context.Context) (client.UpdateStatus, error)
	Versions(ctx context.Context, botOnly bool) (string, error)
	FileInfo(ctx context.Context, filename string) (FileSummary, error)
	AnnounceFeed(ctx context.Context) error
	StartPrint(ctx context.Context, filename string) error
	Upload(ctx context.Context, name string, content io.Reader, size int64) error
	RunGcode(ctx context.Context, script string) error
}

// Power switches controller power devices.
type Power interface {
	Devices() []models.DeviceStatus
	SwitchDevice(ctx context.Context, name string, on bool) (models.DeviceStatus, error)
	ToggleDevice(ctx context.Context, name string) (models.DeviceStatus, error)
}

// Storage reads and writes the bot's namespace of the controller database.
type Storage interface {
	GetItem(ctx context.Context, key string) (json.RawMessage, error)
	PutItem(ctx context.Context, key string, value any) error
	DeleteItem(ctx context.Context, key string) error
}

// EventLog exposes the journal with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.PrinterEvent, error)
	Jobs(ctx context.Context, limit int) ([]models.PrintJob, error)
}

// Telemetry keeps the printer state in sync with the controller. Stop the
// loops via context cancellation.
type Telemetry interface {
	Poll(ctx context.Context) error
	Run(ctx context.Context, tick time.Duration)
	Follow(ctx context.Context)
}

type Service struct {
	Printer
	Power
	Storage
	EventLog
	Telemetry
	Authorization
}

// Deps are the collaborators NewService wires together.
type Deps struct {
	Controller Controller
	Repos      *repository.Repository
	Config     config.Config
	Metrics    *metrics.Metrics
	Log        *logger.Logger
}

// NewService builds the printer state and every sub-service around it.
func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	m := d.Metrics
	if m == nil {
		m = metrics.New()
	}

	journal := NewJournal(d.Repos.EventRepo, d.Repos.JobRepo, log)
	state := printer.New(d.Controller, printer.Options{Log: log, Listener: journal})
	power := NewPowerService(d.Controller, state, journal, m, d.Config, log)

	return &Service{
		Printer:       NewPrinterService(d.Controller, state, journal, d.Config, log),
		Power:         power,
		Storage:       NewStorageService(d.Controller, d.Config.Namespace),
		EventLog:      NewEventLogService(d.Repos.EventRepo, d.Repos.JobRepo),
		Telemetry:     NewTelemetryService(d.Controller, state, journal, power, m, d.Config.Status, log),
		Authorization: NewAuthService(d.Repos.Auth, d.Config.Server.JWTKey),
	}
}
