// Package dust is a thin client for the Dust agent API, exposing it as a
// planner.JobService: a conversation with the planning agent is the job, its
// identifier the job ID.
package dust

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	applog "github.com/brevera/stackmatch/internal/logger"
	"github.com/brevera/stackmatch/internal/planner"
)

const (
	defaultBaseURL = "https://dust.tt"
	contentType    = "application/json"
	userAgent      = "brevera/stackmatch"

	// Individual calls are bounded so a hung request cannot stall a whole
	// poll cycle.
	requestTimeout = 15 * time.Second

	// Raw agent output only ever reaches logs as a truncated preview.
	resultPreviewLimit = 256
)

// Config identifies the workspace and agent to talk to.
type Config struct {
	BaseURL     string
	WorkspaceID string
	AgentID     string
	APIKey      string
}

type Client struct {
	cfg        Config
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
}

func New(logger *zap.Logger, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.WorkspaceID) == "" {
		return nil, errors.New("dust workspace id is required")
	}
	if strings.TrimSpace(cfg.AgentID) == "" {
		return nil, errors.New("dust agent id is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("dust api key is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
		HTTPClient: &http.Client{
			Timeout: requestTimeout,
		},
		UserAgent: userAgent,
	}, nil
}

// Submit opens a conversation with the planning agent and returns its id.
func (c *Client) Submit(ctx context.Context, req planner.Request) (string, error) {
	payload := map[string]any{
		"title":      fmt.Sprintf("Marketing plan for %s", req.Domain),
		"visibility": "unlisted",
		"message": map[string]any{
			"content": buildMessage(req),
			"mentions": []map[string]any{
				{"configurationId": c.cfg.AgentID},
			},
			"context": map[string]any{
				"origin":   "api",
				"username": "stackmatch",
			},
		},
	}

	body, err := c.postJSON(ctx, c.conversationsURL(), payload)
	if err != nil {
		return "", err
	}

	conversationID := gjson.GetBytes(body, "conversation.sId").String()
	if conversationID == "" {
		return "", errors.New("dust api returned no conversation id")
	}

	c.logger.Debug("dust conversation created", zap.String("conversation_id", conversationID))
	return conversationID, nil
}

// Poll reads the conversation and normalizes the agent message status into
// the planner vocabulary.
func (c *Client) Poll(ctx context.Context, jobID string) (*planner.PollResponse, error) {
	body, err := c.getJSON(ctx, c.conversationsURL()+"/"+jobID)
	if err != nil {
		return nil, err
	}

	message := lastAgentMessage(body)
	if !message.Exists() {
		return &planner.PollResponse{Status: planner.JobPending}, nil
	}

	switch message.Get("status").String() {
	case "succeeded":
		result := message.Get("content").String()
		c.logger.Debug("agent message succeeded",
			zap.String("conversation_id", jobID),
			zap.String("result_preview", applog.TruncateForLog(result, resultPreviewLimit)),
		)
		return &planner.PollResponse{
			Status: planner.JobCompleted,
			Result: result,
		}, nil
	case "failed", "errored":
		return &planner.PollResponse{
			Status:  planner.JobFailed,
			Message: message.Get("error.message").String(),
		}, nil
	case "cancelled":
		return &planner.PollResponse{Status: planner.JobCancelled}, nil
	case "created", "pending":
		return &planner.PollResponse{Status: planner.JobPending}, nil
	default:
		return &planner.PollResponse{Status: planner.JobRunning}, nil
	}
}

// lastAgentMessage walks the conversation content (an array of message
// version groups) backwards to the newest agent message.
func lastAgentMessage(body []byte) gjson.Result {
	groups := gjson.GetBytes(body, "conversation.content").Array()
	for i := len(groups) - 1; i >= 0; i-- {
		versions := groups[i].Array()
		if len(versions) == 0 {
			continue
		}
		latest := versions[len(versions)-1]
		if latest.Get("type").String() == "agent_message" {
			return latest
		}
	}
	return gjson.Result{}
}

func (c *Client) conversationsURL() string {
	return fmt.Sprintf("%s/api/v1/w/%s/assistant/conversations", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.WorkspaceID)
}

func (c *Client) postJSON(ctx context.Context, url string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	return c.do(req)
}

func (c *Client) getJSON(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	c.logger.Debug("dust api request", zap.String("method", req.Method), zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		// The status text is kept in the error so "404 Not Found" style
		// responses classify as permanent upstream failures.
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.APIKey))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.UserAgent)
}

func buildMessage(req planner.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a personalized marketing plan for the website %s.\n", req.Domain)
	fmt.Fprintf(&b, "Respond in language: %s.\n", req.Language)
	if req.CompanySize != "" {
		fmt.Fprintf(&b, "Company size: %s.\n", req.CompanySize)
	}
	if req.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s.\n", req.Industry)
	}
	if req.PrimaryGoal != "" {
		fmt.Fprintf(&b, "Primary marketing goal: %s.\n", req.PrimaryGoal)
	}
	return b.String()
}
