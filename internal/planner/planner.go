// Package planner drives one asynchronous plan-generation request from
// submission through terminal resolution: submit the request to a job
// service, poll its status on a backoff schedule, classify the outcome and
// hand the parsed plan to an optional store.
package planner

import (
	"context"
	"time"
)

// Status is the controller's lifecycle state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusPolling    Status = "polling"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusTimedOut   Status = "timed_out"
	StatusCancelled  Status = "cancelled"
)

// JobStatus is the normalized status vocabulary of the upstream job service.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Request carries the inputs of one generation request.
type Request struct {
	Domain      string
	Language    string
	CompanySize string
	Industry    string
	PrimaryGoal string
}

// PollResponse is one observation of a job's state. Result is only expected
// to be populated alongside JobCompleted; Message may carry an upstream
// error description for failed jobs.
type PollResponse struct {
	Status  JobStatus
	Result  string
	Message string
}

// JobService is the external generation service: submission returns an
// opaque job identifier which the controller then polls.
type JobService interface {
	Submit(ctx context.Context, req Request) (string, error)
	Poll(ctx context.Context, jobID string) (*PollResponse, error)
}

// Clock abstracts timed suspension so tests can run the controller without
// real wall-clock waits.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock sleeps on a timer, waking early when the context is done.
type RealClock struct{}

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PlanStore persists completed plans. Persistence is best-effort: a store
// failure never downgrades a completed generation.
type PlanStore interface {
	UpsertPlan(ctx context.Context, domain, language string, plan *Plan) error
}
