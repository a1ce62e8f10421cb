package repository

import (
	"context"
	"database/sql"
	"time"

	"printerbot/internal/models"
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.PrinterEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.PrinterEvent, error)
}

type JobRepo interface {
	Save(ctx context.Context, j models.PrintJob) error
	Recent(ctx context.Context, limit int) ([]models.PrintJob, error)
}

type Repository struct {
	EventRepo EventRepo
	JobRepo   JobRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
		JobRepo:   NewJobSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
