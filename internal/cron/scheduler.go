package cron

import (
	"sync"
	"time"
)

// CronScheduler holds the in-memory id → CronJob map and determines
// which jobs are due to fire. CronService is the only writer; storage
// replay on startup feeds it via AddJob just like a live Add.
type CronScheduler struct {
	mu   sync.RWMutex
	jobs map[string]CronJob
}

// NewCronScheduler creates an empty scheduler.
func NewCronScheduler() *CronScheduler {
	return &CronScheduler{jobs: make(map[string]CronJob)}
}

// AddJob validates job.Schedule and inserts it, rejecting a name
// collision with any other job already present.
func (s *CronScheduler) AddJob(job CronJob) error {
	if _, err := ComputeNextRun(job.Schedule, job.CreatedAt); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.jobs {
		if existing.Name == job.Name && id != job.ID {
			return duplicateNameErr(job.Name)
		}
	}
	s.jobs[job.ID] = job
	return nil
}

// RemoveJob deletes a job by ID.
func (s *CronScheduler) RemoveJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return jobNotFoundErr(id)
	}
	delete(s.jobs, id)
	return nil
}

// SetEnabled toggles a job's enabled flag.
func (s *CronScheduler) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return jobNotFoundErr(id)
	}
	job.Enabled = enabled
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
	return nil
}

// GetDueJobs returns every enabled job whose NextRunAt is at or before now.
func (s *CronScheduler) GetDueJobs(now time.Time) []CronJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []CronJob
	for _, job := range s.jobs {
		if !job.Enabled {
			continue
		}
		if job.State.NextRunAt != nil && !job.State.NextRunAt.After(now) {
			due = append(due, job)
		}
	}
	return due
}

// ListJobs returns every job currently held by the scheduler.
func (s *CronScheduler) ListJobs() []CronJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]CronJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// GetJob returns a copy of the job with the given ID.
func (s *CronScheduler) GetJob(id string) (CronJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// UpdateJobRun records runTime as the job's last run and recomputes
// its next run from the schedule.
func (s *CronScheduler) UpdateJobRun(id string, runTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return jobNotFoundErr(id)
	}

	job.State.LastRunAt = &runTime
	if next, err := ComputeNextRun(job.Schedule, runTime); err == nil {
		job.State.NextRunAt = next
	}
	job.UpdatedAt = runTime
	s.jobs[id] = job
	return nil
}
