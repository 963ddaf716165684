package cron

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/weave-logic-ai/clawft/internal/bus"
)

func setupService(t *testing.T) (*CronService, *bus.MessageBus) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, uuid.NewString()+".jsonl")

	msgBus := bus.NewMessageBus()
	producer := msgBus.NewInboundProducer()
	t.Cleanup(producer.Release)

	svc, err := NewCronService(path, producer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc, msgBus
}

func TestAddJobReturnsUniqueID(t *testing.T) {
	svc, _ := setupService(t)
	id1, err := svc.AddJob("j1", "0 0 * * * * *", "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id2, err := svc.AddJob("j2", "0 0 * * * * *", "p2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id1 == id2 {
		t.Fatal("expected unique ids")
	}
}

func TestListJobsReturnsAll(t *testing.T) {
	svc, _ := setupService(t)
	if _, err := svc.AddJob("a", "0 0 * * * * *", "p"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.AddJob("b", "0 0 * * * * *", "p"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(svc.ListJobs()) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(svc.ListJobs()))
	}
}

func TestRemoveJobWorks(t *testing.T) {
	svc, _ := setupService(t)
	id, err := svc.AddJob("x", "0 0 * * * * *", "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.RemoveJob(id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(svc.ListJobs()) != 0 {
		t.Fatal("expected empty job list")
	}
}

func TestEnableDisableJob(t *testing.T) {
	svc, _ := setupService(t)
	id, err := svc.AddJob("x", "0 0 * * * * *", "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.EnableJob(id, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	jobs := svc.ListJobs()
	if findJob(jobs, id).Enabled {
		t.Fatal("expected job disabled")
	}

	if err := svc.EnableJob(id, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	jobs = svc.ListJobs()
	if !findJob(jobs, id).Enabled {
		t.Fatal("expected job enabled")
	}
}

func TestRunJobNowPostsMessage(t *testing.T) {
	svc, msgBus := setupService(t)
	id, err := svc.AddJob("fire", "0 0 * * * * *", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.RunJobNow(id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := msgBus.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.Channel != "cron" || msg.SenderID != "system" || msg.ChatID != id || msg.Content != "hello" {
		t.Fatalf("got %+v", msg)
	}
	if msg.Metadata["job_name"] != "fire" {
		t.Fatalf("got metadata %+v", msg.Metadata)
	}
}

func TestRunNonexistentJobFails(t *testing.T) {
	svc, _ := setupService(t)
	if err := svc.RunJobNow("nonexistent"); err == nil {
		t.Fatal("expected error")
	}
}

func TestAddJobWithInvalidCronFails(t *testing.T) {
	svc, _ := setupService(t)
	if _, err := svc.AddJob("bad", "not valid", "p"); err == nil {
		t.Fatal("expected error")
	}
}

func TestAddJobHasNextRunSet(t *testing.T) {
	svc, _ := setupService(t)
	if _, err := svc.AddJob("scheduled", "0 0 * * * * *", "p"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	jobs := svc.ListJobs()
	if jobs[0].State.NextRunAt == nil {
		t.Fatal("expected next_run_at to be set")
	}
}

func findJob(jobs []CronJob, id string) CronJob {
	for _, j := range jobs {
		if j.ID == id {
			return j
		}
	}
	return CronJob{}
}
