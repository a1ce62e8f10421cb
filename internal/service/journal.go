package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"printerbot/internal/logger"
	"printerbot/internal/models"
	"printerbot/internal/printer"
	"printerbot/internal/repository"
)

const journalWriteTimeout = 5 * time.Second

// Journal records printer events and print job history. It implements
// printer.Listener. Write failures are logged, never returned: the journal
// must not block telemetry.
type Journal struct {
	events repository.EventRepo
	jobs   repository.JobRepo
	log    *logger.Logger
	now    func() time.Time

	mu  sync.Mutex
	job *models.PrintJob
}

func NewJournal(events repository.EventRepo, jobs repository.JobRepo, log *logger.Logger) *Journal {
	if log == nil {
		log = logger.Nop()
	}
	return &Journal{events: events, jobs: jobs, log: log.Named("journal"), now: time.Now}
}

// Record appends one event.
func (j *Journal) Record(typ, description string, meta map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()

	ev := models.PrinterEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  j.now().UTC(),
		Type:        typ,
		Description: description,
	}
	if meta != nil {
		ev.Metadata = meta
	}
	if err := j.events.Append(ctx, ev); err != nil {
		j.log.Errorw("journal_append_failed", "type", typ, "err", err)
	}
}

// Observe keeps the latest job progress so a finished job is saved with the
// values it had before the state cleared them.
func (j *Journal) Observe(snap printer.Snapshot) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.job != nil && snap.Filename == j.job.Filename {
		j.job.Progress = snap.Progress
		j.job.ElapsedSec = snap.Elapsed
		j.job.FilamentUsed = snap.FilamentUsed
	}
}

// PhaseChanged opens a job when printing starts and closes it when the job
// leaves the printing or paused phases.
func (j *Journal) PhaseChanged(from, to printer.JobPhase, filename string) {
	j.Record(models.EventPhaseChange, from.String()+" -> "+to.String(), map[string]any{
		"from": from.String(),
		"to":   to.String(),
		"file": filename,
	})

	j.mu.Lock()
	var save []models.PrintJob
	now := j.now().UTC()
	switch {
	case to == printer.PhasePrinting && from != printer.PhasePaused:
		if j.job != nil {
			// a new print started before the previous one was closed
			j.job.Outcome = printer.PhaseStandby.String()
			j.job.EndedAt = now
			save = append(save, *j.job)
		}
		j.job = &models.PrintJob{
			JobID:     uuid.NewString(),
			Filename:  filename,
			StartedAt: now,
			Outcome:   printer.PhasePrinting.String(),
		}
		save = append(save, *j.job)
	case from.Active() && !to.Active() && j.job != nil:
		j.job.Outcome = to.String()
		j.job.EndedAt = now
		save = append(save, *j.job)
		j.job = nil
	}
	j.mu.Unlock()

	for _, job := range save {
		j.saveJob(job)
	}
}

// ConnectionChanged records controller connectivity.
func (j *Journal) ConnectionChanged(connected bool) {
	desc := "controller disconnected"
	if connected {
		desc = "controller connected"
	}
	j.Record(models.EventConnection, desc, map[string]any{"connected": connected})
}

// CurrentJob returns the open job, if any.
func (j *Journal) CurrentJob() (models.PrintJob, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.job == nil {
		return models.PrintJob{}, false
	}
	return *j.job, true
}

func (j *Journal) saveJob(job models.PrintJob) {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()
	if err := j.jobs.Save(ctx, job); err != nil {
		j.log.Errorw("job_save_failed", "job_id", job.JobID, "err", err)
		return
	}
	j.log.Infow("job_saved", "job_id", job.JobID, "file", job.Filename, "outcome", job.Outcome)
}
