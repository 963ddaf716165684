package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/weave-logic-ai/clawft/internal/bus"
)

// tickInterval is how often the background loop checks for due jobs.
const tickInterval = 60 * time.Second

// CronService manages periodic jobs and fires them as InboundMessages
// on the message bus. Jobs are held in memory by a CronScheduler and
// persisted to an append-only JSONL CronStorage.
type CronService struct {
	scheduler *CronScheduler
	storage   *CronStorage
	producer  *bus.InboundProducer
}

// NewCronService loads any jobs persisted at storagePath and returns a
// service ready to Start. Invalid persisted jobs are skipped with a
// warning rather than failing startup.
func NewCronService(storagePath string, producer *bus.InboundProducer) (*CronService, error) {
	storage := NewCronStorage(storagePath)
	scheduler := NewCronScheduler()

	jobs, err := storage.LoadJobs()
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if err := scheduler.AddJob(job); err != nil {
			slog.Warn("skipping invalid persisted cron job", "job_id", job.ID, "error", err)
		}
	}

	return &CronService{scheduler: scheduler, storage: storage, producer: producer}, nil
}

// AddJob creates and persists a new 7-field cron-scheduled job, returning
// its generated ID.
func (s *CronService) AddJob(name, schedule, prompt string) (string, error) {
	now := time.Now().UTC()
	next, err := ComputeNextRun(CronSchedule{Kind: ScheduleCron, Expr: schedule, TZ: "UTC"}, now)
	if err != nil {
		return "", err
	}

	job := CronJob{
		ID:       "job-" + uuid.NewString(),
		Name:     name,
		Enabled:  true,
		Schedule: CronSchedule{Kind: ScheduleCron, Expr: schedule, TZ: "UTC"},
		Payload:  CronPayload{Message: prompt},
		State:    CronJobState{NextRunAt: next},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.scheduler.AddJob(job); err != nil {
		return "", err
	}
	if err := s.storage.AppendCreate(job); err != nil {
		return "", err
	}

	slog.Info("added cron job", "job_id", job.ID, "name", name)
	return job.ID, nil
}

// RemoveJob deletes a job by ID.
func (s *CronService) RemoveJob(jobID string) error {
	if err := s.scheduler.RemoveJob(jobID); err != nil {
		return err
	}
	if err := s.storage.AppendDelete(jobID); err != nil {
		return err
	}
	slog.Info("removed cron job", "job_id", jobID)
	return nil
}

// EnableJob toggles a job's enabled flag.
func (s *CronService) EnableJob(jobID string, enabled bool) error {
	if err := s.scheduler.SetEnabled(jobID, enabled); err != nil {
		return err
	}
	if err := s.storage.AppendUpdate(jobID, "enabled", enabled); err != nil {
		return err
	}
	slog.Info("updated cron job enabled state", "job_id", jobID, "enabled", enabled)
	return nil
}

// ListJobs returns every registered job.
func (s *CronService) ListJobs() []CronJob {
	return s.scheduler.ListJobs()
}

// RunJobNow fires job jobID immediately and records the run.
func (s *CronService) RunJobNow(jobID string) error {
	job, ok := s.scheduler.GetJob(jobID)
	if !ok {
		return jobNotFoundErr(jobID)
	}

	if err := s.fireJob(job); err != nil {
		return err
	}

	now := time.Now().UTC()
	return s.scheduler.UpdateJobRun(jobID, now)
}

// Start runs the 60-second due-job polling loop until ctx is cancelled.
func (s *CronService) Start(ctx context.Context) error {
	slog.Info("cron service started")
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("cron service shutting down")
			return nil
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *CronService) tick() {
	due := s.scheduler.GetDueJobs(time.Now().UTC())
	for _, job := range due {
		slog.Debug("firing cron job", "job_id", job.ID, "job_name", job.Name)

		if err := s.fireJob(job); err != nil {
			slog.Error("failed to fire cron job, aborting tick", "job_id", job.ID, "error", err)
			return
		}

		now := time.Now().UTC()
		if err := s.scheduler.UpdateJobRun(job.ID, now); err != nil {
			slog.Error("failed to update cron job run time", "job_id", job.ID, "error", err)
		}
	}
}

func (s *CronService) fireJob(job CronJob) error {
	msg := bus.InboundMessage{
		Channel:  "cron",
		SenderID: "system",
		ChatID:   job.ID,
		Content:  job.Payload.Message,
		Timestamp: time.Now().UTC(),
		Metadata: map[string]string{
			"job_id":   job.ID,
			"job_name": job.Name,
		},
	}

	if err := s.producer.Publish(msg); err != nil {
		return &Error{Kind: ChannelClosed, Detail: err.Error()}
	}
	return nil
}
