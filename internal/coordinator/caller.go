package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"

	"marketscanner/pkg/errors"
)

const maxResponseBytes = 4 << 20

// AgentCaller performs one agent call and returns the raw success payload
type AgentCaller interface {
	Call(ctx context.Context, task AgentTask) (map[string]interface{}, error)
}

// HTTPCaller calls agents over POST /task. The deadline comes from ctx.
type HTTPCaller struct {
	client *http.Client
}

func NewHTTPCaller(client *http.Client) *HTTPCaller {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPCaller{client: client}
}

// Call maps a 4xx answer to ErrInvalidInput and everything else that is not
// a 2xx JSON object with a numeric confidence in [0,1] to ErrUpstreamUnavailable.
func (c *HTTPCaller) Call(ctx context.Context, task AgentTask) (map[string]interface{}, error) {
	payload := task.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "encode task for %s: %v", task.Agent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, task.URL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "build request for %s: %v", task.Agent, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "call %s: %v", task.Agent, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "read %s response: %v", task.Agent, err)
	}

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%s rejected task: %s", task.Agent, errorMessage(raw, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "%s failed: %s", task.Agent, errorMessage(raw, resp.StatusCode))
	}

	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "%s returned a non-object body", task.Agent)
	}

	if _, err := confidenceOf(data); err != nil {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "%s: %v", task.Agent, err)
	}

	return data, nil
}

// confidenceOf extracts a payload's confidence, which must be a number in [0,1]
func confidenceOf(data map[string]interface{}) (float64, error) {
	v, ok := data["confidence"]
	if !ok {
		return 0, errors.New("response has no confidence")
	}
	f, ok := v.(float64)
	if !ok {
		return 0, errors.Newf("confidence is %T, not a number", v)
	}
	if math.IsNaN(f) || f < 0 || f > 1 {
		return 0, errors.Newf("confidence %v outside [0,1]", f)
	}
	return f, nil
}

func errorMessage(raw []byte, status int) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	return http.StatusText(status)
}
