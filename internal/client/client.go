// Package client is the HTTP client for the analytics API, used by the
// lvctl CLI and the event seeder.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lovendo/analytics-service/internal/models"
	"github.com/lovendo/analytics-service/internal/service"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(method, path string, body, dst interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("API error (%d)", resp.StatusCode)
	}

	if dst != nil {
		if err := json.Unmarshal(respBody, dst); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// TrackRequest mirrors the track endpoint payload.
type TrackRequest struct {
	Event       string                 `json:"event"`
	UserID      string                 `json:"user_id,omitempty"`
	AnonymousID string                 `json:"anonymous_id,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
	Timestamp   *time.Time             `json:"timestamp,omitempty"`
}

func (c *Client) Track(req *TrackRequest) error {
	return c.do(http.MethodPost, "/api/v1/track", req, nil)
}

func (c *Client) Identify(userID string, traits map[string]interface{}) error {
	payload := map[string]interface{}{"user_id": userID, "traits": traits}
	return c.do(http.MethodPost, "/api/v1/identify", payload, nil)
}

func (c *Client) Flush() error {
	return c.do(http.MethodPost, "/api/v1/flush", nil, nil)
}

func (c *Client) QueryEvents(filter *models.EventFilter) ([]*models.Event, error) {
	var resp struct {
		Events []*models.Event `json:"events"`
	}
	if err := c.do(http.MethodPost, "/api/v1/events/query", filter, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *Client) Stats(since *time.Time) (*service.Summary, error) {
	path := "/api/v1/events/stats"
	if since != nil {
		path += "?since=" + since.UTC().Format(time.RFC3339)
	}
	var summary service.Summary
	if err := c.do(http.MethodGet, path, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) GetUser(userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := c.do(http.MethodGet, "/api/v1/users/"+userID, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) CreateCohort(name, description string, def models.CohortDefinition) (*models.Cohort, error) {
	payload := map[string]interface{}{
		"name": name, "description": description, "definition": def,
	}
	var cohort models.Cohort
	if err := c.do(http.MethodPost, "/api/v1/cohorts", payload, &cohort); err != nil {
		return nil, err
	}
	return &cohort, nil
}

func (c *Client) ListCohorts() ([]*models.Cohort, error) {
	var resp struct {
		Cohorts []*models.Cohort `json:"cohorts"`
	}
	if err := c.do(http.MethodGet, "/api/v1/cohorts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Cohorts, nil
}

func (c *Client) GetCohortMembers(id string) ([]string, error) {
	var resp struct {
		Members []string `json:"members"`
	}
	if err := c.do(http.MethodGet, "/api/v1/cohorts/"+id+"/members", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Members, nil
}

func (c *Client) AnalyzeFunnel(req *models.FunnelRequest) (*models.FunnelResult, error) {
	var result models.FunnelResult
	if err := c.do(http.MethodPost, "/api/v1/funnels/analyze", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListABTests() ([]*models.ABTest, error) {
	var resp struct {
		Tests []*models.ABTest `json:"tests"`
	}
	if err := c.do(http.MethodGet, "/api/v1/abtests", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tests, nil
}

func (c *Client) StartTest(id string) (*models.ABTest, error) {
	var test models.ABTest
	if err := c.do(http.MethodPost, "/api/v1/abtests/"+id+"/start", nil, &test); err != nil {
		return nil, err
	}
	return &test, nil
}

func (c *Client) GetVariant(testID, userID string) (*models.Variant, error) {
	var variant models.Variant
	path := "/api/v1/abtests/" + testID + "/variant?user_id=" + userID
	if err := c.do(http.MethodGet, path, nil, &variant); err != nil {
		return nil, err
	}
	return &variant, nil
}

func (c *Client) AnalyzeTest(id string) (*models.ABTestAnalysis, error) {
	var analysis models.ABTestAnalysis
	if err := c.do(http.MethodPost, "/api/v1/abtests/"+id+"/analyze", nil, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (c *Client) GenerateInsights() ([]models.Insight, error) {
	var resp struct {
		Insights []models.Insight `json:"insights"`
	}
	if err := c.do(http.MethodPost, "/api/v1/insights", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Insights, nil
}
