package cron

import (
	"testing"
	"time"
)

func makeJob(id, name, expr string) CronJob {
	now := time.Now().UTC()
	return CronJob{
		ID:        id,
		Name:      name,
		Enabled:   true,
		Schedule:  CronSchedule{Kind: ScheduleCron, Expr: expr, TZ: "UTC"},
		Payload:   CronPayload{Message: "test prompt"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestParseValidCronExpression(t *testing.T) {
	next, err := ComputeNextRun(CronSchedule{Kind: ScheduleCron, Expr: "0 0 * * * * *"}, time.Now().UTC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next == nil {
		t.Fatal("expected a next run time")
	}
}

func TestRejectInvalidCronExpression(t *testing.T) {
	_, err := ComputeNextRun(CronSchedule{Kind: ScheduleCron, Expr: "not a cron"}, time.Now().UTC())
	if err == nil {
		t.Fatal("expected an error")
	}
	cronErr, ok := err.(*Error)
	if !ok || cronErr.Kind != InvalidCronExpression {
		t.Fatalf("expected InvalidCronExpression, got %v", err)
	}
}

func TestAddJobAndList(t *testing.T) {
	s := NewCronScheduler()
	job := makeJob("j1", "hourly", "0 0 * * * * *")
	if err := s.AddJob(job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jobs := s.ListJobs()
	if len(jobs) != 1 || jobs[0].Name != "hourly" {
		t.Fatalf("got %v", jobs)
	}
}

func TestAddJobWithInvalidScheduleFails(t *testing.T) {
	s := NewCronScheduler()
	job := makeJob("j1", "bad", "not valid")
	if err := s.AddJob(job); err == nil {
		t.Fatal("expected error")
	}
}

func TestAddDuplicateNameFails(t *testing.T) {
	s := NewCronScheduler()
	if err := s.AddJob(makeJob("j1", "hourly", "0 0 * * * * *")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.AddJob(makeJob("j2", "hourly", "0 0 * * * * *"))
	if err == nil {
		t.Fatal("expected error")
	}
	cronErr, ok := err.(*Error)
	if !ok || cronErr.Kind != DuplicateJobName {
		t.Fatalf("expected DuplicateJobName, got %v", err)
	}
}

func TestRemoveJob(t *testing.T) {
	s := NewCronScheduler()
	if err := s.AddJob(makeJob("j1", "hourly", "0 0 * * * * *")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.RemoveJob("j1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.ListJobs()) != 0 {
		t.Fatal("expected empty scheduler")
	}
}

func TestRemoveNonexistentJobFails(t *testing.T) {
	s := NewCronScheduler()
	err := s.RemoveJob("nope")
	cronErr, ok := err.(*Error)
	if !ok || cronErr.Kind != JobNotFound {
		t.Fatalf("expected JobNotFound, got %v", err)
	}
}

func TestGetDueJobsReturnsPastJobs(t *testing.T) {
	s := NewCronScheduler()
	job := makeJob("j1", "past", "0 0 * * * * *")
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	job.State.NextRunAt = &past
	if err := s.AddJob(job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	due := s.GetDueJobs(time.Now().UTC())
	if len(due) != 1 {
		t.Fatalf("expected 1 due job, got %d", len(due))
	}
}

func TestNoDueJobsWhenAllInFuture(t *testing.T) {
	s := NewCronScheduler()
	job := makeJob("j1", "future", "0 0 * * * * *")
	future := time.Date(2099, 12, 31, 23, 59, 59, 0, time.UTC)
	job.State.NextRunAt = &future
	if err := s.AddJob(job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	due := s.GetDueJobs(time.Now().UTC())
	if len(due) != 0 {
		t.Fatalf("expected no due jobs, got %d", len(due))
	}
}

func TestDisabledJobsNotDue(t *testing.T) {
	s := NewCronScheduler()
	job := makeJob("j1", "disabled", "0 0 * * * * *")
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	job.State.NextRunAt = &past
	job.Enabled = false
	if err := s.AddJob(job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	due := s.GetDueJobs(time.Now().UTC())
	if len(due) != 0 {
		t.Fatalf("expected no due jobs, got %d", len(due))
	}
}

func TestJobsWithoutNextRunNotDue(t *testing.T) {
	s := NewCronScheduler()
	job := makeJob("j1", "no-next", "0 0 * * * * *")
	if err := s.AddJob(job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	due := s.GetDueJobs(time.Now().UTC())
	if len(due) != 0 {
		t.Fatalf("expected no due jobs, got %d", len(due))
	}
}

func TestUpdateJobRunSetsLastAndNext(t *testing.T) {
	s := NewCronScheduler()
	if err := s.AddJob(makeJob("j1", "hourly", "0 0 * * * * *")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runTime := time.Now().UTC()
	if err := s.UpdateJobRun("j1", runTime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, ok := s.GetJob("j1")
	if !ok {
		t.Fatal("expected job to exist")
	}
	if job.State.LastRunAt == nil || !job.State.LastRunAt.Equal(runTime) {
		t.Fatalf("expected last_run_at == %v, got %v", runTime, job.State.LastRunAt)
	}
	if job.State.NextRunAt == nil || !job.State.NextRunAt.After(runTime) {
		t.Fatalf("expected next_run_at after %v, got %v", runTime, job.State.NextRunAt)
	}
}

func TestUpdateNonexistentJobFails(t *testing.T) {
	s := NewCronScheduler()
	err := s.UpdateJobRun("nope", time.Now().UTC())
	cronErr, ok := err.(*Error)
	if !ok || cronErr.Kind != JobNotFound {
		t.Fatalf("expected JobNotFound, got %v", err)
	}
}

func TestGetJobByID(t *testing.T) {
	s := NewCronScheduler()
	if err := s.AddJob(makeJob("j1", "test", "0 0 * * * * *")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.GetJob("j1"); !ok {
		t.Fatal("expected job to exist")
	}
	if _, ok := s.GetJob("nope"); ok {
		t.Fatal("expected job to not exist")
	}
}

func TestDefaultCreatesEmptyScheduler(t *testing.T) {
	s := NewCronScheduler()
	if len(s.ListJobs()) != 0 {
		t.Fatal("expected empty scheduler")
	}
}
