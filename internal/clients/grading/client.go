package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/types"
)

// Client reads latest learner signals from the grading/completion source
// over HTTP. A slow or failing source is reported as an error and mapped to
// "signal unavailable" by the evaluator; it never crashes the pipeline.
type Client struct {
	log     *logger.Logger
	baseURL string
	http    *http.Client
}

func NewClient(baseLog *logger.Logger, baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("missing grading source base URL")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		log:     baseLog.With("client", "GradingClient"),
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) GetLatestSignal(ctx context.Context, learnerID uuid.UUID, objectID string) (*types.LearnerSignal, error) {
	endpoint := fmt.Sprintf("%s/v1/learners/%s/objects/%s/signal",
		c.baseURL, learnerID, url.PathEscape(objectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("grading source request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		// No signal on record yet: not an error, just nothing to evaluate.
		return &types.LearnerSignal{}, nil
	default:
		return nil, fmt.Errorf("grading source returned %d", resp.StatusCode)
	}

	var sig types.LearnerSignal
	if err := json.NewDecoder(resp.Body).Decode(&sig); err != nil {
		return nil, fmt.Errorf("decode learner signal: %w", err)
	}
	return &sig, nil
}
