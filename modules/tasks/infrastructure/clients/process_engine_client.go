package clients

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// ProcessEngineClient reports task outcomes back to the workflow engine.
type ProcessEngineClient struct {
	base *baseClient
}

func NewProcessEngineClient(baseURL string, timeout time.Duration, tokens TokenSource) (*ProcessEngineClient, error) {
	base, err := newBaseClient(baseURL, timeout, tokens)
	if err != nil {
		return nil, err
	}
	return &ProcessEngineClient{base: base}, nil
}

type outcomeRequest struct {
	At time.Time `json:"at"`
}

func (c *ProcessEngineClient) NotifyCompleted(ctx context.Context, taskID string, at time.Time) error {
	return c.base.doJSON(ctx, http.MethodPost, "/engine/tasks/"+url.PathEscape(taskID)+"/complete", nil, outcomeRequest{At: at}, nil)
}

func (c *ProcessEngineClient) NotifyCancelled(ctx context.Context, taskID string, at time.Time) error {
	return c.base.doJSON(ctx, http.MethodPost, "/engine/tasks/"+url.PathEscape(taskID)+"/cancel", nil, outcomeRequest{At: at}, nil)
}
