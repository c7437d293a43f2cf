// Package gemini runs plan generation in-process against the Gemini API
// while presenting the same submit/poll surface as the remote agent service,
// so the same polling controller drives both.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "embed"

	"github.com/google/uuid"
	"go.uber.org/zap"

	applog "github.com/brevera/stackmatch/internal/logger"
	"github.com/brevera/stackmatch/internal/planner"
)

//go:embed prompt.md
var promptTemplate string

// generationTimeout bounds one background generation run.
const generationTimeout = 3 * time.Minute

// Raw generator output only ever reaches logs as a truncated preview.
const resultPreviewLimit = 256

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Provider is an in-process planner.JobService. Submit starts generation on
// a background goroutine keyed by a fresh job id; Poll reports its state.
type Provider struct {
	generator contentGenerator
	logger    *zap.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

type job struct {
	status  planner.JobStatus
	result  string
	message string
}

func NewProvider(generator contentGenerator, logger *zap.Logger) *Provider {
	return &Provider{
		generator: generator,
		logger:    logger,
		jobs:      make(map[string]*job),
	}
}

// Submit registers a job and starts generating in the background. The
// returned id is immediately pollable.
func (p *Provider) Submit(_ context.Context, req planner.Request) (string, error) {
	jobID := uuid.NewString()

	p.mu.Lock()
	p.jobs[jobID] = &job{status: planner.JobPending}
	p.mu.Unlock()

	go p.run(jobID, req)

	return jobID, nil
}

// Poll reports the job's current state. Unknown ids yield a "not found"
// error, which callers classify as permanent.
func (p *Provider) Poll(_ context.Context, jobID string) (*planner.PollResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	j, ok := p.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s not found", jobID)
	}

	return &planner.PollResponse{
		Status:  j.status,
		Result:  j.result,
		Message: j.message,
	}, nil
}

// run executes the generation on its own context: the job outlives the
// submit call, like a real remote job would.
func (p *Provider) run(jobID string, req planner.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), generationTimeout)
	defer cancel()

	p.setStatus(jobID, planner.JobRunning, "", "")

	output, err := p.generator.GenerateContent(ctx, buildPrompt(req))
	if err != nil {
		p.logger.Warn("in-process generation failed", zap.String("job_id", jobID), zap.Error(err))
		p.setStatus(jobID, planner.JobFailed, "", err.Error())
		return
	}

	p.logger.Debug("in-process generation completed",
		zap.String("job_id", jobID),
		zap.String("result_preview", applog.TruncateForLog(output, resultPreviewLimit)),
	)
	p.setStatus(jobID, planner.JobCompleted, output, "")
}

func (p *Provider) setStatus(jobID string, status planner.JobStatus, result, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	j, ok := p.jobs[jobID]
	if !ok {
		return
	}
	j.status = status
	j.result = result
	j.message = message
}

func buildPrompt(req planner.Request) string {
	replacer := strings.NewReplacer(
		"{{DOMAIN}}", orPlaceholder(req.Domain, "the company website"),
		"{{LANGUAGE}}", orPlaceholder(req.Language, "en"),
		"{{COMPANY_SIZE}}", orPlaceholder(req.CompanySize, "unknown"),
		"{{INDUSTRY}}", orPlaceholder(req.Industry, "General"),
		"{{PRIMARY_GOAL}}", orPlaceholder(req.PrimaryGoal, "growth"),
	)
	return replacer.Replace(promptTemplate)
}

func orPlaceholder(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
