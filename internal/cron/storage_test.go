package cron

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStorageRoundTripsCreatedJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cron.jsonl")
	storage := NewCronStorage(path)

	now := time.Now().UTC()
	next := now.Add(time.Hour)
	job := CronJob{
		ID:        "job-1",
		Name:      "hourly",
		Enabled:   true,
		Schedule:  CronSchedule{Kind: ScheduleCron, Expr: "0 0 * * * * *", TZ: "UTC"},
		Payload:   CronPayload{Message: "hello"},
		State:     CronJobState{NextRunAt: &next},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := storage.AppendCreate(job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jobs, err := storage.LoadJobs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "job-1" || jobs[0].Payload.Message != "hello" {
		t.Fatalf("got %+v", jobs)
	}
}

func TestStorageAppendDeleteRemovesJobOnReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cron.jsonl")
	storage := NewCronStorage(path)

	job := makeJob("job-1", "hourly", "0 0 * * * * *")
	if err := storage.AppendCreate(job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := storage.AppendDelete("job-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jobs, err := storage.LoadJobs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected job to be deleted, got %+v", jobs)
	}
}

func TestStorageAppendUpdateAppliesEnabledField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cron.jsonl")
	storage := NewCronStorage(path)

	job := makeJob("job-1", "hourly", "0 0 * * * * *")
	if err := storage.AppendCreate(job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := storage.AppendUpdate("job-1", "enabled", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jobs, err := storage.LoadJobs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Enabled {
		t.Fatalf("expected disabled job, got %+v", jobs)
	}
}

func TestStorageLoadJobsOnMissingFileReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.jsonl")
	storage := NewCronStorage(path)

	jobs, err := storage.LoadJobs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected empty job set, got %+v", jobs)
	}
}

func TestStorageSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cron.jsonl")
	storage := NewCronStorage(path)

	job := makeJob("job-1", "hourly", "0 0 * * * * *")
	if err := storage.AppendCreate(job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := storage.appendRaw("not json at all"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jobs, err := storage.LoadJobs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected malformed line to be skipped, got %+v", jobs)
	}
}
