package cron

import (
	"fmt"
	"time"
)

const wireTimeLayout = time.RFC3339Nano

func scheduleKindWire(k ScheduleKind) string {
	switch k {
	case ScheduleAt:
		return "at"
	case ScheduleEvery:
		return "every"
	default:
		return "cron"
	}
}

func scheduleKindFromWire(s string) (ScheduleKind, error) {
	switch s {
	case "at":
		return ScheduleAt, nil
	case "every":
		return ScheduleEvery, nil
	case "cron":
		return ScheduleCron, nil
	default:
		return 0, fmt.Errorf("unknown schedule kind %q", s)
	}
}

func toWireJob(job CronJob) *wireJob {
	w := &wireJob{
		ID:      job.ID,
		Name:    job.Name,
		Enabled: job.Enabled,
		Schedule: wireSched{
			Kind:    scheduleKindWire(job.Schedule.Kind),
			Expr:    job.Schedule.Expr,
			AtMs:    job.Schedule.AtMs,
			EveryMs: job.Schedule.EveryMs,
			TZ:      job.Schedule.TZ,
		},
		Message:        job.Payload.Message,
		CreatedAt:      job.CreatedAt.UTC().Format(wireTimeLayout),
		UpdatedAt:      job.UpdatedAt.UTC().Format(wireTimeLayout),
		DeleteAfterRun: job.DeleteAfterRun,
	}
	if job.State.NextRunAt != nil {
		s := job.State.NextRunAt.UTC().Format(wireTimeLayout)
		w.NextRunAt = &s
	}
	if job.State.LastRunAt != nil {
		s := job.State.LastRunAt.UTC().Format(wireTimeLayout)
		w.LastRunAt = &s
	}
	return w
}

func fromWireJob(w wireJob) (CronJob, error) {
	kind, err := scheduleKindFromWire(w.Schedule.Kind)
	if err != nil {
		return CronJob{}, err
	}

	createdAt, err := time.Parse(wireTimeLayout, w.CreatedAt)
	if err != nil {
		return CronJob{}, err
	}
	updatedAt, err := time.Parse(wireTimeLayout, w.UpdatedAt)
	if err != nil {
		updatedAt = createdAt
	}

	job := CronJob{
		ID:      w.ID,
		Name:    w.Name,
		Enabled: w.Enabled,
		Schedule: CronSchedule{
			Kind:    kind,
			Expr:    w.Schedule.Expr,
			AtMs:    w.Schedule.AtMs,
			EveryMs: w.Schedule.EveryMs,
			TZ:      w.Schedule.TZ,
		},
		Payload:        CronPayload{Message: w.Message},
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
		DeleteAfterRun: w.DeleteAfterRun,
	}
	if w.NextRunAt != nil {
		if t, err := time.Parse(wireTimeLayout, *w.NextRunAt); err == nil {
			job.State.NextRunAt = &t
		}
	}
	if w.LastRunAt != nil {
		if t, err := time.Parse(wireTimeLayout, *w.LastRunAt); err == nil {
			job.State.LastRunAt = &t
		}
	}
	return job, nil
}
