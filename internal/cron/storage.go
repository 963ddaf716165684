package cron

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// eventEnvelope is the on-disk shape of one JSONL line. Op selects
// which of the optional fields are populated: "create" carries Job,
// "update" carries JobID/Field/Value, "delete" carries JobID.
type eventEnvelope struct {
	Op    string          `json:"op"`
	Job   *wireJob        `json:"job,omitempty"`
	JobID string          `json:"job_id,omitempty"`
	Field string          `json:"field,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// wireJob is CronJob's JSON projection; CronJob itself stays
// Go-idiomatic (time.Time, typed enums) while this type owns the
// on-disk encoding.
type wireJob struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Enabled        bool      `json:"enabled"`
	Schedule       wireSched `json:"schedule"`
	Message        string    `json:"message"`
	NextRunAt      *string   `json:"next_run_at,omitempty"`
	LastRunAt      *string   `json:"last_run_at,omitempty"`
	CreatedAt      string    `json:"created_at"`
	UpdatedAt      string    `json:"updated_at"`
	DeleteAfterRun bool      `json:"delete_after_run"`
}

type wireSched struct {
	Kind    string `json:"kind"`
	Expr    string `json:"expr,omitempty"`
	AtMs    int64  `json:"at_ms,omitempty"`
	EveryMs int64  `json:"every_ms,omitempty"`
	TZ      string `json:"tz,omitempty"`
}

// CronStorage is an append-only JSONL event log at Path. Replaying the
// log in order reconstructs the scheduler's current job set.
type CronStorage struct {
	mu   sync.Mutex
	Path string
}

// NewCronStorage points storage at path; the file is created lazily on
// first append.
func NewCronStorage(path string) *CronStorage {
	return &CronStorage{Path: path}
}

// AppendCreate records a new job.
func (s *CronStorage) AppendCreate(job CronJob) error {
	return s.appendLine(eventEnvelope{Op: "create", Job: toWireJob(job)})
}

// AppendUpdate records a single-field mutation on an existing job.
func (s *CronStorage) AppendUpdate(jobID, field string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.appendLine(eventEnvelope{Op: "update", JobID: jobID, Field: field, Value: raw})
}

// AppendDelete records a job's removal.
func (s *CronStorage) AppendDelete(jobID string) error {
	return s.appendLine(eventEnvelope{Op: "delete", JobID: jobID})
}

// appendRaw writes line verbatim followed by a newline. Used by tests
// to exercise LoadJobs' tolerance of malformed entries.
func (s *CronStorage) appendRaw(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open cron storage: %w", err)
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}

func (s *CronStorage) appendLine(ev eventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cron storage dir: %w", err)
		}
	}

	f, err := os.OpenFile(s.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open cron storage: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append cron event: %w", err)
	}
	return nil
}

// LoadJobs replays the event log and returns the resulting job set.
// Malformed lines are skipped; a missing file yields an empty set.
func (s *CronStorage) LoadJobs() ([]CronJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open cron storage: %w", err)
	}
	defer f.Close()

	jobs := make(map[string]CronJob)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev eventEnvelope
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		applyEvent(jobs, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cron storage: %w", err)
	}

	out := make([]CronJob, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job)
	}
	return out, nil
}

func applyEvent(jobs map[string]CronJob, ev eventEnvelope) {
	switch ev.Op {
	case "create":
		if ev.Job == nil {
			return
		}
		job, err := fromWireJob(*ev.Job)
		if err != nil {
			return
		}
		jobs[job.ID] = job
	case "delete":
		delete(jobs, ev.JobID)
	case "update":
		job, ok := jobs[ev.JobID]
		if !ok {
			return
		}
		applyFieldUpdate(&job, ev.Field, ev.Value)
		jobs[ev.JobID] = job
	}
}

func applyFieldUpdate(job *CronJob, field string, value json.RawMessage) {
	switch field {
	case "enabled":
		var v bool
		if json.Unmarshal(value, &v) == nil {
			job.Enabled = v
		}
	case "name":
		var v string
		if json.Unmarshal(value, &v) == nil {
			job.Name = v
		}
	}
}
