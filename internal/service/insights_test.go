package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLLM struct {
	response string
	err      error
	prompt   string
}

func (m *mockLLM) Complete(_ context.Context, prompt string) (string, error) {
	m.prompt = prompt
	return m.response, m.err
}

func TestGenerateInsights(t *testing.T) {
	llm := &mockLLM{response: "Here is my analysis:\n```json\n" + `[
		{
			"type": "trend",
			"title": "Purchases up",
			"description": "Purchase volume rose sharply.",
			"impact": "high",
			"confidence": 0.8,
			"recommendations": ["Increase inventory"]
		}
	]` + "\n```\nHope that helps!"}

	svc, repo := newTestService(t, WithLLM(llm, 5))
	now := time.Now().UTC()
	seedEvent(t, repo, "purchase", "u1", nil, now.Add(-time.Hour))
	seedEvent(t, repo, "view_gift", "u2", nil, now.Add(-time.Hour))

	insights, err := svc.GenerateInsights(context.Background())
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, "trend", insights[0].Type)
	assert.Equal(t, "Purchases up", insights[0].Title)
	assert.InDelta(t, 0.8, insights[0].Confidence, 1e-9)
	assert.Equal(t, []string{"Increase inventory"}, insights[0].Recommendations)

	// The prompt carries the activity summary.
	assert.True(t, strings.Contains(llm.prompt, "purchase: 1"))
	assert.True(t, strings.Contains(llm.prompt, "Distinct users: 2"))
}

func TestGenerateInsights_NotConfigured(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GenerateInsights(context.Background())
	assert.ErrorIs(t, err, ErrInsightsUnavailable)
}

func TestGenerateInsights_LLMError(t *testing.T) {
	llm := &mockLLM{err: errors.New("rate limited")}
	svc, _ := newTestService(t, WithLLM(llm, 5))

	_, err := svc.GenerateInsights(context.Background())
	assert.ErrorContains(t, err, "rate limited")
}

func TestGenerateInsights_UnparseableResponseIsEmpty(t *testing.T) {
	llm := &mockLLM{response: "I could not produce any findings."}
	svc, repo := newTestService(t, WithLLM(llm, 5))
	seedEvent(t, repo, "purchase", "u1", nil, time.Now().UTC().Add(-time.Hour))

	insights, err := svc.GenerateInsights(context.Background())
	require.NoError(t, err)
	assert.Empty(t, insights)
}

func TestParseInsights_Malformed(t *testing.T) {
	_, err := parseInsights("I could not produce any findings.")
	assert.Error(t, err)

	_, err = parseInsights("[{broken json}]")
	assert.Error(t, err)

	out, err := parseInsights("[]")
	require.NoError(t, err)
	assert.Empty(t, out)
}
