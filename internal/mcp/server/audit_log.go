package server

import (
	"context"
	"sync"
	"time"
)

// AuditEntry records one middleware-chain invocation.
type AuditEntry struct {
	ToolName  string
	Principal string
	Outcome   Outcome
	ElapsedMs int64
	At        time.Time
}

// AuditLog keeps a fixed-capacity ring buffer of the most recent calls;
// once full, the oldest entry is evicted to make room for the newest.
// It wraps the whole chain so it observes the final outcome regardless
// of which stage produced it (allowed through, denied, or errored).
type AuditLog struct {
	mu       sync.Mutex
	entries  []AuditEntry
	capacity int
	next     int
	size     int
}

// NewAuditLog creates a ring buffer holding at most capacity entries.
// capacity <= 0 defaults to 10,000.
func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = 10000
	}
	return &AuditLog{
		entries:  make([]AuditEntry, capacity),
		capacity: capacity,
	}
}

// Middleware returns this log as the outermost chain Middleware,
// timing and recording every call that passes through it.
func (a *AuditLog) Middleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, call Call) (*Result, error) {
			start := time.Now()
			result, err := next(ctx, call)
			elapsed := time.Since(start)

			outcome := OutcomeSuccess
			switch {
			case err != nil:
				outcome = OutcomeError
			case result != nil && result.IsError:
				outcome = OutcomeDenied
			}

			a.record(AuditEntry{
				ToolName:  call.ToolName,
				Principal: call.Principal,
				Outcome:   outcome,
				ElapsedMs: elapsed.Milliseconds(),
				At:        start,
			})

			return result, err
		}
	}
}

func (a *AuditLog) record(e AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[a.next] = e
	a.next = (a.next + 1) % a.capacity
	if a.size < a.capacity {
		a.size++
	}
}

// Entries returns a copy of the buffered entries, oldest first.
func (a *AuditLog) Entries() []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]AuditEntry, a.size)
	if a.size < a.capacity {
		copy(out, a.entries[:a.size])
		return out
	}
	// Buffer is full and wrapped: oldest entry is at a.next.
	n := copy(out, a.entries[a.next:])
	copy(out[n:], a.entries[:a.next])
	return out
}

// Len returns the number of buffered entries.
func (a *AuditLog) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size
}
