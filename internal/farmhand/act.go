package farmhand

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ActionResult is the server's answer to an action. A refusal (409) is a
// result, not an error: the farm said no for a game reason.
type ActionResult struct {
	Success bool
	Status  int
	Body    map[string]any
}

// Actor executes actions via the admin API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with admin auth.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Act posts the decision's request.
func (a *Actor) Act(d *Decision) (*ActionResult, error) {
	if d.Path == "" {
		return nil, fmt.Errorf("decision %q has no endpoint", d.Action)
	}
	body, err := json.Marshal(d.Body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", d.Action, err)
	}

	req, err := http.NewRequest(http.MethodPost, a.BaseURL+d.Path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.AdminKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", d.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusConflict:
	default:
		return nil, fmt.Errorf("%s failed (%d): %s", d.Action, resp.StatusCode, string(respBody))
	}

	result := &ActionResult{Success: resp.StatusCode == http.StatusOK, Status: resp.StatusCode}
	if err := json.Unmarshal(respBody, &result.Body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}
