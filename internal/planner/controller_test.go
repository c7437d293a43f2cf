package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

const validResult = `{"title":"Growth plan","summary":"A plan.","sections":[{"heading":"Week 1","actions":["Set up tracking"]}],"channels":["email"]}`

// fakeClock never sleeps; SleepHook can observe or interrupt each wait.
type fakeClock struct {
	SleepHook func(d time.Duration) error
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	if c.SleepHook != nil {
		return c.SleepHook(d)
	}
	return nil
}

// scriptedService replays a fixed submit result and a sequence of poll
// outcomes, repeating the last one when polled past the script's end.
type scriptedService struct {
	submitID  string
	submitErr error

	mu    sync.Mutex
	polls []pollOutcome
	calls int
}

type pollOutcome struct {
	resp *PollResponse
	err  error
}

func (s *scriptedService) Submit(_ context.Context, _ Request) (string, error) {
	return s.submitID, s.submitErr
}

func (s *scriptedService) Poll(_ context.Context, _ string) (*PollResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.calls
	if idx >= len(s.polls) {
		idx = len(s.polls) - 1
	}
	s.calls++
	return s.polls[idx].resp, s.polls[idx].err
}

type recordingStore struct {
	mu       sync.Mutex
	plans    []*Plan
	fail     bool
	failures int
}

func (s *recordingStore) UpsertPlan(_ context.Context, _, _ string, plan *Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		s.failures++
		return errors.New("store is down")
	}
	s.plans = append(s.plans, plan)
	return nil
}

func newTestController(service JobService, store PlanStore, cfg Config) *Controller {
	return New(service, Options{
		Store:  store,
		Clock:  &fakeClock{},
		Logger: zap.NewNop(),
		Config: cfg,
	})
}

func TestRunCompletesAndPersists(t *testing.T) {
	service := &scriptedService{
		submitID: "job-1",
		polls: []pollOutcome{
			{resp: &PollResponse{Status: JobPending}},
			{resp: &PollResponse{Status: JobRunning}},
			{resp: &PollResponse{Status: JobCompleted, Result: validResult}},
		},
	}
	store := &recordingStore{}
	controller := newTestController(service, store, Config{})

	plan, err := controller.Run(context.Background(), Request{Domain: "example.com", Language: "en"})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if plan.Title != "Growth plan" {
		t.Fatalf("unexpected plan title: %q", plan.Title)
	}
	if plan.Domain != "example.com" || plan.Language != "en" {
		t.Fatalf("plan not stamped with the request: %+v", plan)
	}
	if controller.Status() != StatusCompleted {
		t.Fatalf("expected completed status, got %s", controller.Status())
	}
	if controller.PollCount() != 3 {
		t.Fatalf("expected 3 polls, got %d", controller.PollCount())
	}
	if controller.Progress() != 100 {
		t.Fatalf("expected progress 100 after completion, got %d", controller.Progress())
	}
	if len(store.plans) != 1 {
		t.Fatalf("expected 1 persisted plan, got %d", len(store.plans))
	}
}

func TestRunTimesOutAtMaxAttempts(t *testing.T) {
	service := &scriptedService{
		submitID: "job-1",
		polls:    []pollOutcome{{resp: &PollResponse{Status: JobRunning}}},
	}
	controller := newTestController(service, nil, Config{MaxAttempts: 5})

	_, err := controller.Run(context.Background(), Request{Domain: "example.com"})
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if controller.Status() != StatusTimedOut {
		t.Fatalf("expected timed_out status, got %s", controller.Status())
	}
	if controller.PollCount() != 5 {
		t.Fatalf("expected exactly 5 polls, got %d", controller.PollCount())
	}
}

func TestRunFailsFastOnPermanentError(t *testing.T) {
	service := &scriptedService{
		submitID: "job-1",
		polls:    []pollOutcome{{err: errors.New("bad status: 404 Not Found")}},
	}
	controller := newTestController(service, nil, Config{})

	_, err := controller.Run(context.Background(), Request{Domain: "example.com"})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if controller.Status() != StatusFailed {
		t.Fatalf("expected failed status, got %s", controller.Status())
	}
	if service.calls != 1 {
		t.Fatalf("expected a single poll for a permanent error, got %d", service.calls)
	}
}

func TestRunToleratesTransientErrorsWithinBudget(t *testing.T) {
	service := &scriptedService{
		submitID: "job-1",
		polls: []pollOutcome{
			{err: errors.New("connection reset")},
			{err: errors.New("connection reset")},
			{err: errors.New("connection reset")},
			{resp: &PollResponse{Status: JobCompleted, Result: validResult}},
		},
	}
	controller := newTestController(service, nil, Config{TransportErrorBudget: 3})

	if _, err := controller.Run(context.Background(), Request{Domain: "example.com"}); err != nil {
		t.Fatalf("expected recovery within the error budget, got %v", err)
	}
}

func TestRunFailsPastTransportErrorBudget(t *testing.T) {
	service := &scriptedService{
		submitID: "job-1",
		polls:    []pollOutcome{{err: errors.New("connection reset")}},
	}
	controller := newTestController(service, nil, Config{TransportErrorBudget: 3})

	_, err := controller.Run(context.Background(), Request{Domain: "example.com"})
	if err == nil {
		t.Fatalf("expected an error after exhausting the budget")
	}
	if controller.Status() != StatusFailed {
		t.Fatalf("expected failed status, got %s", controller.Status())
	}
	// Budget of 3 means the 4th consecutive error gives up.
	if service.calls != 4 {
		t.Fatalf("expected 4 polls, got %d", service.calls)
	}
}

func TestRunSuccessfulPollResetsErrorStreak(t *testing.T) {
	service := &scriptedService{
		submitID: "job-1",
		polls: []pollOutcome{
			{err: errors.New("connection reset")},
			{err: errors.New("connection reset")},
			{resp: &PollResponse{Status: JobRunning}},
			{err: errors.New("connection reset")},
			{err: errors.New("connection reset")},
			{resp: &PollResponse{Status: JobCompleted, Result: validResult}},
		},
	}
	controller := newTestController(service, nil, Config{TransportErrorBudget: 2})

	if _, err := controller.Run(context.Background(), Request{Domain: "example.com"}); err != nil {
		t.Fatalf("expected the streak to reset on success, got %v", err)
	}
}

func TestRunFailsOnUnparsableResult(t *testing.T) {
	service := &scriptedService{
		submitID: "job-1",
		polls:    []pollOutcome{{resp: &PollResponse{Status: JobCompleted, Result: "I could not produce a plan, sorry!"}}},
	}
	store := &recordingStore{}
	controller := newTestController(service, store, Config{})

	_, err := controller.Run(context.Background(), Request{Domain: "example.com"})
	if !errors.Is(err, ErrUnusableResult) {
		t.Fatalf("expected ErrUnusableResult, got %v", err)
	}
	if len(store.plans) != 0 {
		t.Fatalf("unusable results must not be persisted")
	}
}

func TestRunSurfacesUpstreamFailureMessage(t *testing.T) {
	service := &scriptedService{
		submitID: "job-1",
		polls:    []pollOutcome{{resp: &PollResponse{Status: JobFailed, Message: "agent exploded"}}},
	}
	controller := newTestController(service, nil, Config{})

	_, err := controller.Run(context.Background(), Request{Domain: "example.com"})
	if err == nil || !errors.Is(controller.Err(), err) {
		t.Fatalf("expected the terminal error to be observable, got %v", err)
	}
	if got := err.Error(); got != "generation failed upstream: agent exploded" {
		t.Fatalf("unexpected error: %q", got)
	}
}

func TestRunCancelledBeforeSubmit(t *testing.T) {
	service := &scriptedService{submitID: "job-1", polls: []pollOutcome{{resp: &PollResponse{Status: JobRunning}}}}
	controller := newTestController(service, nil, Config{})

	controller.Cancel()

	_, err := controller.Run(context.Background(), Request{Domain: "example.com"})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if controller.Status() != StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", controller.Status())
	}
}

func TestRunCancellationDiscardsInFlightResult(t *testing.T) {
	// The job completes upstream, but cancellation lands first: the
	// completed result must be discarded.
	service := &scriptedService{
		submitID: "job-1",
		polls:    []pollOutcome{{resp: &PollResponse{Status: JobCompleted, Result: validResult}}},
	}
	store := &recordingStore{}
	controller := newTestController(service, store, Config{})
	controller.clock = &fakeClock{SleepHook: func(time.Duration) error {
		controller.Cancel()
		return nil
	}}

	_, err := controller.Run(context.Background(), Request{Domain: "example.com"})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if controller.Status() != StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", controller.Status())
	}
	if controller.Plan() != nil {
		t.Fatalf("cancelled runs must not expose a plan")
	}
	if len(store.plans) != 0 {
		t.Fatalf("cancelled runs must not persist anything")
	}
}

func TestCancelWakesWaitingController(t *testing.T) {
	// The clock blocks until released, standing in for a long poll
	// interval. Cancel must end the run without waiting it out.
	block := make(chan struct{})
	defer close(block)

	service := &scriptedService{
		submitID: "job-1",
		polls:    []pollOutcome{{resp: &PollResponse{Status: JobRunning}}},
	}
	controller := newTestController(service, nil, Config{})
	controller.clock = &fakeClock{SleepHook: func(time.Duration) error {
		<-block
		return nil
	}}

	done := make(chan error, 1)
	go func() {
		_, err := controller.Run(context.Background(), Request{Domain: "example.com"})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	controller.Cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("cancellation did not wake the waiting controller")
	}

	if controller.Status() != StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", controller.Status())
	}
}

func TestRunContextCancellationDuringSleep(t *testing.T) {
	service := &scriptedService{
		submitID: "job-1",
		polls:    []pollOutcome{{resp: &PollResponse{Status: JobRunning}}},
	}
	controller := newTestController(service, nil, Config{})
	controller.clock = &fakeClock{SleepHook: func(time.Duration) error {
		return context.Canceled
	}}

	_, err := controller.Run(context.Background(), Request{Domain: "example.com"})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestRunSubmitFailure(t *testing.T) {
	service := &scriptedService{submitErr: errors.New("dial tcp: connection refused")}
	controller := newTestController(service, nil, Config{})

	_, err := controller.Run(context.Background(), Request{Domain: "example.com"})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if controller.Status() != StatusFailed {
		t.Fatalf("expected failed status, got %s", controller.Status())
	}
}

func TestRunPersistenceFailureIsNotFatal(t *testing.T) {
	service := &scriptedService{
		submitID: "job-1",
		polls:    []pollOutcome{{resp: &PollResponse{Status: JobCompleted, Result: validResult}}},
	}
	store := &recordingStore{fail: true}
	controller := newTestController(service, store, Config{})

	plan, err := controller.Run(context.Background(), Request{Domain: "example.com"})
	if err != nil {
		t.Fatalf("a store failure must not fail the run: %s", err)
	}
	if plan == nil {
		t.Fatalf("expected a plan despite the store failure")
	}
	if store.failures != 1 {
		t.Fatalf("expected 1 persistence attempt, got %d", store.failures)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	controller := newTestController(&scriptedService{submitID: "job-1", polls: []pollOutcome{{resp: &PollResponse{Status: JobRunning}}}}, nil, Config{})

	controller.Cancel()
	controller.Cancel()

	if !controller.isCancelled() {
		t.Fatalf("expected the controller to be cancelled")
	}
}

func TestProgressLogsMentionEstimate(t *testing.T) {
	service := &scriptedService{
		submitID: "job-1",
		polls: []pollOutcome{
			{resp: &PollResponse{Status: JobRunning}},
			{resp: &PollResponse{Status: JobCompleted, Result: validResult}},
		},
	}
	controller := newTestController(service, nil, Config{})

	if _, err := controller.Run(context.Background(), Request{Domain: "example.com"}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	logs := controller.Logs()
	want := fmt.Sprintf("Still working on it... about %d%% done", ProgressEstimate(1))
	found := false
	for _, line := range logs {
		if line == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %q in logs, got %v", want, logs)
	}
}

func TestIsPermanentError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("bad status: 404 Not Found"), true},
		{errors.New("job abc not found"), true},
		{errors.New("invalid conversation id"), true},
		{errors.New("connection reset by peer"), false},
		{errors.New("bad status: 500 Internal Server Error"), false},
	}

	for _, tt := range tests {
		if got := isPermanentError(tt.err); got != tt.want {
			t.Fatalf("isPermanentError(%q) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
