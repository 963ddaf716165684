package cron

import "time"

// ScheduleKind selects how CronSchedule.Expr/AtMs/EveryMs is interpreted.
type ScheduleKind int

const (
	// ScheduleCron fires on the 7-field cron expression in Expr.
	ScheduleCron ScheduleKind = iota
	// ScheduleAt fires exactly once, at AtMs.
	ScheduleAt
	// ScheduleEvery fires repeatedly every EveryMs milliseconds.
	ScheduleEvery
)

// CronSchedule describes when a job fires. Exactly the field matching
// Kind is meaningful; the others are left zero.
type CronSchedule struct {
	Kind    ScheduleKind
	Expr    string // 7-field "sec min hour dom month dow year", ScheduleCron only
	AtMs    int64  // unix millis, ScheduleAt only
	EveryMs int64  // interval in milliseconds, ScheduleEvery only
	TZ      string // IANA zone name; "" means UTC
}

// CronPayload is the content injected into the bus when a job fires.
type CronPayload struct {
	Message string
}

// CronJobState is the scheduler's mutable view of a job's run history.
type CronJobState struct {
	NextRunAt *time.Time
	LastRunAt *time.Time
}

// CronJob is a persisted, schedulable unit of work. Firing posts
// Payload.Message as an InboundMessage with channel "cron".
type CronJob struct {
	ID             string
	Name           string
	Enabled        bool
	Schedule       CronSchedule
	Payload        CronPayload
	State          CronJobState
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeleteAfterRun bool
}
