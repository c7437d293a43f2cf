package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrTimedOut is returned when the job never reached a terminal status
	// within the attempt cap.
	ErrTimedOut = errors.New("generation timed out waiting for the job to finish")
	// ErrCancelled is returned after an external cancellation.
	ErrCancelled = errors.New("generation cancelled")
	// ErrUnusableResult is the terminal parse failure. It deliberately names
	// only the failure kind, never the payload content.
	ErrUnusableResult = errors.New("generation completed but the result could not be parsed")
)

// permanentErrorPatterns mark transport errors that will never succeed on
// retry, such as polling a job the upstream no longer knows about.
var permanentErrorPatterns = []string{"not found", "invalid conversation", "404"}

// Config bounds one controller run.
type Config struct {
	// MaxAttempts is the hard cap on poll attempts before timing out.
	MaxAttempts int
	// TransportErrorBudget is how many consecutive transient transport
	// errors are tolerated before the run fails.
	TransportErrorBudget int
	Schedule             Schedule
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:          60,
		TransportErrorBudget: 3,
		Schedule:             DefaultSchedule(),
	}
}

// Options carries the controller's optional collaborators.
type Options struct {
	// Store receives the parsed plan after completion; nil disables
	// persistence.
	Store PlanStore
	// Clock defaults to the real clock.
	Clock Clock
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	Config Config
}

// Controller owns the lifecycle of exactly one generation request. Each
// instance holds its own state; concurrent requests use separate instances
// and share nothing.
type Controller struct {
	service JobService
	store   PlanStore
	clock   Clock
	logger  *zap.Logger
	cfg     Config

	cancelOnce sync.Once
	cancelled  chan struct{}

	mu        sync.Mutex
	status    Status
	jobID     string
	pollCount int
	logs      []string
	plan      *Plan
	err       error
}

func New(service JobService, opts Options) *Controller {
	clock := opts.Clock
	if clock == nil {
		clock = RealClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.TransportErrorBudget <= 0 {
		cfg.TransportErrorBudget = DefaultConfig().TransportErrorBudget
	}
	if cfg.Schedule == (Schedule{}) {
		cfg.Schedule = DefaultSchedule()
	}

	return &Controller{
		service:   service,
		store:     opts.Store,
		clock:     clock,
		logger:    logger,
		cfg:       cfg,
		cancelled: make(chan struct{}),
		status:    StatusIdle,
	}
}

// Run drives the request to a terminal state and returns the parsed plan on
// completion. Terminal outcomes are also observable via Status and Err; Run
// never panics and never retries past its budgets.
func (c *Controller) Run(ctx context.Context, req Request) (*Plan, error) {
	c.setStatus(StatusSubmitting)
	c.appendLog("Submitting your request to the planning agent...")

	if c.isCancelled() {
		return nil, c.finishCancelled()
	}

	jobID, err := c.service.Submit(ctx, req)
	if c.isCancelled() {
		// The submission may have succeeded upstream, but its result is
		// discarded: no state transition other than cancelled may happen.
		return nil, c.finishCancelled()
	}
	if err != nil {
		return nil, c.finishFailed(fmt.Errorf("submitting generation request: %w", err))
	}

	c.mu.Lock()
	c.jobID = jobID
	c.mu.Unlock()

	c.setStatus(StatusPolling)
	c.appendLog("Request accepted, generating your plan...")
	c.logger.Debug("job submitted", zap.String("job_id", jobID))

	consecutiveErrors := 0
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if c.isCancelled() {
			return nil, c.finishCancelled()
		}

		if err := c.sleep(ctx, c.cfg.Schedule.Interval(attempt)); err != nil {
			return nil, c.finishCancelled()
		}

		if c.isCancelled() {
			return nil, c.finishCancelled()
		}

		resp, err := c.service.Poll(ctx, jobID)

		c.mu.Lock()
		c.pollCount++
		count := c.pollCount
		c.mu.Unlock()

		if c.isCancelled() {
			// An in-flight poll that resolves after cancellation is
			// discarded, whatever it says.
			return nil, c.finishCancelled()
		}

		if err != nil {
			if isPermanentError(err) {
				return nil, c.finishFailed(fmt.Errorf("polling job: %w", err))
			}
			consecutiveErrors++
			c.logger.Warn("transient poll error",
				zap.String("job_id", jobID),
				zap.Int("attempt", attempt),
				zap.Int("consecutive_errors", consecutiveErrors),
				zap.Error(err),
			)
			if consecutiveErrors > c.cfg.TransportErrorBudget {
				return nil, c.finishFailed(fmt.Errorf("giving up after %d consecutive poll errors: %w", consecutiveErrors, err))
			}
			c.appendLog("Connection hiccup, retrying...")
			continue
		}
		consecutiveErrors = 0

		switch resp.Status {
		case JobCompleted:
			plan := ParsePlan(resp.Result, req)
			if plan == nil {
				return nil, c.finishFailed(ErrUnusableResult)
			}
			c.persist(ctx, plan)
			c.finishCompleted(plan)
			return plan, nil

		case JobFailed, JobCancelled:
			message := strings.TrimSpace(resp.Message)
			if message == "" {
				message = "the planning agent reported a failure"
			}
			return nil, c.finishFailed(fmt.Errorf("generation failed upstream: %s", message))

		default:
			// pending, running, or anything unrecognized: keep polling.
			c.appendLog(fmt.Sprintf("Still working on it... about %d%% done", ProgressEstimate(count)))
		}
	}

	return nil, c.finishTimedOut()
}

// sleep waits out one poll interval, waking immediately on cancellation
// instead of letting a long interval delay the cancelled state.
func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- c.clock.Sleep(ctx, d) }()

	select {
	case <-c.cancelled:
		return ErrCancelled
	case err := <-done:
		return err
	}
}

// Cancel requests cooperative cancellation. It is safe to call from any
// goroutine and at any time; after the first call no transition other than
// to cancelled can happen.
func (c *Controller) Cancel() {
	c.cancelOnce.Do(func() { close(c.cancelled) })
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Err returns the terminal error, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Plan returns the parsed plan after a completed run.
func (c *Controller) Plan() *Plan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan
}

func (c *Controller) PollCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pollCount
}

// Progress reports the cosmetic completion estimate: the capped curve while
// the job runs, 100 only once the run actually completed.
func (c *Controller) Progress() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusCompleted {
		return 100
	}
	return ProgressEstimate(c.pollCount)
}

// Logs returns a copy of the append-only status log.
func (c *Controller) Logs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	logs := make([]string, len(c.logs))
	copy(logs, c.logs)
	return logs
}

func (c *Controller) isCancelled() bool {
	select {
	case <-c.cancelled:
		return true
	default:
		return false
	}
}

// persist hands the plan to the store best-effort. Storage failure is logged
// and swallowed: the plan was already generated successfully.
func (c *Controller) persist(ctx context.Context, plan *Plan) {
	if c.store == nil {
		return
	}
	if err := c.store.UpsertPlan(ctx, plan.Domain, plan.Language, plan); err != nil {
		c.logger.Warn("storing generated plan failed",
			zap.String("domain", plan.Domain),
			zap.String("language", plan.Language),
			zap.Error(err),
		)
	}
}

func (c *Controller) setStatus(status Status) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

func (c *Controller) appendLog(line string) {
	c.mu.Lock()
	c.logs = append(c.logs, line)
	c.mu.Unlock()
}

func (c *Controller) finishCompleted(plan *Plan) {
	c.mu.Lock()
	c.status = StatusCompleted
	c.plan = plan
	c.logs = append(c.logs, "Your plan is ready.")
	c.mu.Unlock()
	c.logger.Info("generation completed", zap.Int("polls", c.PollCount()))
}

func (c *Controller) finishFailed(err error) error {
	c.mu.Lock()
	c.status = StatusFailed
	c.err = err
	c.logs = append(c.logs, "Generation failed.")
	c.mu.Unlock()
	c.logger.Warn("generation failed", zap.Error(err))
	return err
}

func (c *Controller) finishTimedOut() error {
	err := fmt.Errorf("%w: gave up after %d poll attempts", ErrTimedOut, c.cfg.MaxAttempts)
	c.mu.Lock()
	c.status = StatusTimedOut
	c.err = err
	c.logs = append(c.logs, "Generation timed out.")
	c.mu.Unlock()
	c.logger.Warn("generation timed out", zap.Int("max_attempts", c.cfg.MaxAttempts))
	return err
}

func (c *Controller) finishCancelled() error {
	c.mu.Lock()
	c.status = StatusCancelled
	c.err = ErrCancelled
	c.logs = append(c.logs, "Generation cancelled.")
	c.mu.Unlock()
	c.logger.Info("generation cancelled")
	return ErrCancelled
}

func isPermanentError(err error) bool {
	message := strings.ToLower(err.Error())
	for _, pattern := range permanentErrorPatterns {
		if strings.Contains(message, pattern) {
			return true
		}
	}
	return false
}
