package trainclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"trainworker/internal/convert"
)

// Client talks to the external GRPO training backend. The backend owns model
// weights and the per-model step counter; this service only submits scored
// groups and reads state back.
type Client struct {
	http      *resty.Client
	project   string
	baseModel string
	logger    *zap.Logger
}

func New(baseURL string, apiKey string, project string, baseModel string, timeout time.Duration, logger *zap.Logger) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		http.SetAuthToken(apiKey)
	}
	return &Client{http: http, project: project, baseModel: baseModel, logger: logger}
}

func (c *Client) Configured() bool {
	return c != nil && c.http.BaseURL != ""
}

type registerRequest struct {
	Name      string `json:"name"`
	Project   string `json:"project"`
	BaseModel string `json:"base_model"`
}

type registerResponse struct {
	InferenceName string `json:"inference_name"`
}

// RegisterModel creates or resumes the named model on the backend and returns
// the inference endpoint name assigned to it. Registration is idempotent on
// the backend side.
func (c *Client) RegisterModel(ctx context.Context, name string) (string, error) {
	var out registerResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(registerRequest{Name: name, Project: c.project, BaseModel: c.baseModel}).
		SetResult(&out).
		Post("/models")
	if err != nil {
		return "", fmt.Errorf("trainclient: register model %s: %w", name, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("trainclient: register model %s: status %d: %s", name, resp.StatusCode(), resp.String())
	}
	if out.InferenceName == "" {
		out.InferenceName = name
	}
	return out.InferenceName, nil
}

type trainRequest struct {
	Groups       []*convert.Group `json:"groups"`
	LearningRate float64          `json:"learning_rate"`
}

type trainResponse struct {
	Status string `json:"status"`
}

// Train submits scored groups for one GRPO update on the named model. The
// call blocks until the backend accepts (or rejects) the job.
func (c *Client) Train(ctx context.Context, name string, groups []*convert.Group, learningRate float64) error {
	if len(groups) == 0 {
		return fmt.Errorf("trainclient: no groups to train on")
	}
	var out trainResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(trainRequest{Groups: groups, LearningRate: learningRate}).
		SetResult(&out).
		Post(fmt.Sprintf("/models/%s/train", name))
	if err != nil {
		return fmt.Errorf("trainclient: train %s: %w", name, err)
	}
	if resp.IsError() {
		return fmt.Errorf("trainclient: train %s: status %d: %s", name, resp.StatusCode(), resp.String())
	}
	if c.logger != nil {
		c.logger.Info("training submitted",
			zap.String("model", name),
			zap.Int("groups", len(groups)),
			zap.String("status", out.Status),
		)
	}
	return nil
}

type stepResponse struct {
	Step int `json:"step"`
}

// Step returns the backend's current training step for the named model.
func (c *Client) Step(ctx context.Context, name string) (int, error) {
	var out stepResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/models/%s/step", name))
	if err != nil {
		return 0, fmt.Errorf("trainclient: step for %s: %w", name, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("trainclient: step for %s: status %d: %s", name, resp.StatusCode(), resp.String())
	}
	return out.Step, nil
}
